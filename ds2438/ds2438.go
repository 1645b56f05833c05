// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ds2438 reads the Maxim DS2438 smart battery monitor, commonly used
// as a 1-wire front end for humidity and light sensors.
//
// The Decoder exposes:
//
//	temperature           converted temperature (physic.Temperature)
//	latesttemp            temperature of the last conversion (physic.Temperature)
//	vad, vdd              voltage of the AD and VDD inputs (physic.ElectricPotential)
//	vsense                voltage across the current sense inputs (physic.ElectricPotential)
//	humidity              alias of hih3600/humidity
//	hih3600/humidity      Honeywell HIH-3600 relative humidity (physic.RelativeHumidity)
//	hih4000/humidity      Honeywell HIH-4000 relative humidity (physic.RelativeHumidity)
//	sfh5711/illuminance   Osram SFH 5711 illuminance in lux (float64)
//
// # Datasheet
//
// https://www.analog.com/media/en/technical-documentation/data-sheets/DS2438.pdf
package ds2438

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/GermanBionicSystems/owbridge/owpath"
)

// Family is the family code of the DS2438.
const Family = 0x26

// Status and configuration register bits, page 0 byte 0.
const (
	BitIAD = 0x01 // current A/D and ICA enabled
	BitCA  = 0x02 // current accumulator enabled
	BitEE  = 0x04 // current accumulator shadowed to EEPROM
	BitAD  = 0x08 // voltage conversions read VDD instead of VAD
	BitTB  = 0x10 // temperature conversion busy
	BitNVB = 0x20 // EEPROM busy
	BitADB = 0x40 // A/D converter busy
)

const (
	cmdConvertT  = 0x44
	cmdConvertV  = 0xb4
	cmdRecall    = 0xb8
	cmdReadSP    = 0xbe
	cmdWriteSP   = 0x4e
	cmdCopySP    = 0x48
	pageSize     = 9 // 8 bytes and the CRC
	convertDelay = 10 * time.Millisecond
	copyDelay    = 10 * time.Millisecond
	currentDelay = 50 * time.Millisecond
)

// vsenseLSB is the resolution of the current register, 0.2441mV.
const vsenseLSB = 244100 * physic.NanoVolt

var errNoSupply = errors.New("ds2438: supply voltage too low to compute humidity")

// Decoder implements owpath.Decoder for the DS2438 family.
type Decoder struct {
	ops map[string]owpath.Op
}

// NewDecoder returns the DS2438 decoder.
func NewDecoder() *Decoder {
	hih3600 := owpath.Op{Read: humidityReader(hih3600)}
	return &Decoder{ops: map[string]owpath.Op{
		"temperature":         {Read: read(Temperature)},
		"latesttemp":          {Read: read(LatestTemperature)},
		"vad":                 {Read: read(VAD)},
		"vdd":                 {Read: read(VDD)},
		"vsense":              {Read: read(VSense)},
		"humidity":            hih3600,
		"hih3600/humidity":    hih3600,
		"hih4000/humidity":    {Read: humidityReader(hih4000)},
		"sfh5711/illuminance": {Read: read(Illuminance)},
	}}
}

// Ops implements owpath.Decoder.
func (d *Decoder) Ops() map[string]owpath.Op {
	return d.ops
}

func read[T any](f func(b owpath.Bus, id string) (T, error)) owpath.ReadFunc {
	return func(b owpath.Bus, id string) (any, error) {
		v, err := f(b, id)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

// ReadPage recalls the memory page into the scratchpad and reads it.
func ReadPage(b owpath.Bus, id string, page byte) ([]byte, error) {
	if page > 7 {
		return nil, fmt.Errorf("ds2438: invalid page %d", page)
	}
	if err := owpath.Command(b, id, cmdRecall, page); err != nil {
		return nil, err
	}
	r, err := owpath.ReadFrame(b, id, []byte{cmdReadSP, page}, pageSize, owpath.CRC8)
	if err != nil {
		return nil, err
	}
	return r[:8], nil
}

// SetConfig sets or clears the bits of mask in the configuration register
// and reads it back until it holds the change, up to owpath.Retries writes.
//
// The new value is written to the scratchpad and then copied to memory.
func SetConfig(b owpath.Bus, id string, mask byte, on bool) error {
	v, err := readConfig(b, id)
	if err != nil {
		return err
	}
	for i := 0; i < owpath.Retries; i++ {
		if (v&mask != 0) == on {
			return nil
		}
		want := v &^ mask
		if on {
			want |= mask
		}
		if err := owpath.Command(b, id, cmdWriteSP, 0, want); err != nil {
			return err
		}
		if err := owpath.Command(b, id, cmdCopySP, 0); err != nil {
			return err
		}
		sleep(copyDelay)
		if v, err = readConfig(b, id); err != nil {
			return err
		}
	}
	if (v&mask != 0) == on {
		return nil
	}
	return fmt.Errorf("%w: ds2438 %s configuration bits %#x", owpath.ErrVerifyFailed, id, mask)
}

// readConfig recalls page 0 and reads its first byte, the status and
// configuration register.
func readConfig(b owpath.Bus, id string) (byte, error) {
	if err := owpath.Command(b, id, cmdRecall, 0); err != nil {
		return 0, err
	}
	r, err := owpath.ShortRead(b, id, []byte{cmdReadSP, 0}, 1)
	if err != nil {
		return 0, err
	}
	return r[0], nil
}

// Temperature runs a temperature conversion and returns its result.
func Temperature(b owpath.Bus, id string) (physic.Temperature, error) {
	if err := owpath.Command(b, id, cmdConvertT); err != nil {
		return 0, err
	}
	sleep(convertDelay)
	return LatestTemperature(b, id)
}

// LatestTemperature returns the result of the last temperature conversion.
func LatestTemperature(b owpath.Bus, id string) (physic.Temperature, error) {
	p, err := ReadPage(b, id, 0)
	if err != nil {
		return 0, err
	}
	// 1/256°C, the 3 low bits are always 0.
	raw := int16(binary.LittleEndian.Uint16(p[1:3]))
	return physic.Temperature(raw)*physic.Kelvin/256 + physic.ZeroCelsius, nil
}

// VAD converts the voltage of the AD input.
func VAD(b owpath.Bus, id string) (physic.ElectricPotential, error) {
	return voltage(b, id, false)
}

// VDD converts the supply voltage.
func VDD(b owpath.Bus, id string) (physic.ElectricPotential, error) {
	return voltage(b, id, true)
}

func voltage(b owpath.Bus, id string, vdd bool) (physic.ElectricPotential, error) {
	if err := SetConfig(b, id, BitAD, vdd); err != nil {
		return 0, err
	}
	if err := owpath.Command(b, id, cmdConvertV); err != nil {
		return 0, err
	}
	sleep(convertDelay)
	p, err := ReadPage(b, id, 0)
	if err != nil {
		return 0, err
	}
	raw := binary.LittleEndian.Uint16(p[3:5]) & 0x3ff
	return physic.ElectricPotential(raw) * 10 * physic.MilliVolt, nil
}

// VSense returns the voltage across the current sense resistor.
func VSense(b owpath.Bus, id string) (physic.ElectricPotential, error) {
	if err := SetConfig(b, id, BitIAD, true); err != nil {
		return 0, err
	}
	// The current A/D samples 36.41 times per second.
	sleep(currentDelay)
	p, err := ReadPage(b, id, 0)
	if err != nil {
		return 0, err
	}
	raw := int16(binary.LittleEndian.Uint16(p[5:7]))
	return physic.ElectricPotential(raw) * vsenseLSB, nil
}

// Illuminance returns the illuminance in lux measured by a SFH 5711 whose
// output current flows through a 47Ω sense resistor.
//
// The sensor current is logarithmic, 10µA per decade.
func Illuminance(b owpath.Bus, id string) (float64, error) {
	v, err := VSense(b, id)
	if err != nil {
		return 0, err
	}
	microAmps := float64(v) / float64(physic.MicroVolt) / 47
	return math.Pow(10, microAmps/10), nil
}

// humidity converts the ratio of the sensor output to its supply into
// relative humidity, before temperature compensation.
type humidity func(vad, vdd float64) float64

func hih3600(vad, vdd float64) float64 {
	return (vad/vdd - 0.8/vdd) / 0.0062
}

func hih4000(vad, vdd float64) float64 {
	return (vad/vdd - 0.16) / 0.0062
}

// Humidity measures the temperature and both voltages and returns the
// temperature compensated relative humidity of the sensor.
func (h humidity) Humidity(b owpath.Bus, id string) (physic.RelativeHumidity, error) {
	t, err := Temperature(b, id)
	if err != nil {
		return 0, err
	}
	vad, err := VAD(b, id)
	if err != nil {
		return 0, err
	}
	vdd, err := VDD(b, id)
	if err != nil {
		return 0, err
	}
	supply := float64(vdd) / float64(physic.Volt)
	if supply < 0.01 {
		return 0, fmt.Errorf("%w: %s", errNoSupply, vdd)
	}
	celsius := float64(t-physic.ZeroCelsius) / float64(physic.Kelvin)
	rh := h(float64(vad)/float64(physic.Volt), supply) / (1.0546 - 0.00216*celsius)
	return physic.RelativeHumidity(math.Round(rh * float64(physic.PercentRH))), nil
}

func humidityReader(h humidity) owpath.ReadFunc {
	return read(h.Humidity)
}

var sleep = time.Sleep

var _ owpath.Decoder = &Decoder{}
