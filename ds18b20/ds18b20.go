// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ds18b20 reads the Maxim DS18B20 1-wire temperature sensor.
//
// Dev drives a single sensor over any onewire.Bus. Decoder exposes the
// sensor family as owpath operations: "temperature9" to "temperature12",
// "temperature" (10 bits) and their "parasite/" variants that power the
// conversion with the strong pull-up.
//
// # Datasheet
//
// https://www.analog.com/media/en/technical-documentation/data-sheets/DS18B20.pdf
package ds18b20

import (
	"errors"
	"time"

	"periph.io/x/conn/v3/physic"
)

// Family code of the specific device type
type Family byte

func (f Family) String() string {
	if f == DS18B20 {
		return "DS18B20"
	}
	return "unknown"
}

// DS18B20 is the family code of the sensor.
const DS18B20 Family = 0x28

// resolution describes one of the conversion resolutions of the sensor.
type resolution struct {
	bits    int
	config  byte          // configuration register value
	timeout time.Duration // maximum conversion time
	mask    byte          // undefined low bits of the temperature LSB
}

var resolutions = [...]resolution{
	{9, 0x1f, 110 * time.Millisecond, 0xf8},
	{10, 0x3f, 200 * time.Millisecond, 0xfc},
	{11, 0x5f, 400 * time.Millisecond, 0xfe},
	{12, 0x7f, 1000 * time.Millisecond, 0xff},
}

var errResolution = errors.New("ds18b20: invalid resolution, must be 9 to 12 bits")

func lookup(bits int) (resolution, error) {
	if bits < 9 || bits > 12 {
		return resolution{}, errResolution
	}
	return resolutions[bits-9], nil
}

// decode converts the 2 temperature bytes of the scratchpad.
//
// The value has 4 fractional bits; the bits the resolution leaves undefined
// are masked out first.
func (r resolution) decode(lsb, msb byte) physic.Temperature {
	raw := int16(uint16(msb)<<8 | uint16(lsb&r.mask))
	return physic.Temperature(raw)*physic.Kelvin/16 + physic.ZeroCelsius
}

const (
	cmdConvert         = 0x44
	cmdReadScratchpad  = 0xbe
	cmdWriteScratchpad = 0x4e
	cmdCopyScratchpad  = 0x48

	scratchpadSize = 9
	pollInterval   = 30 * time.Millisecond
)

var sleep = time.Sleep
var now = time.Now
