// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds18b20

import (
	"errors"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/onewire"
	"periph.io/x/conn/v3/physic"
)

// ConvertAll performs a conversion on all DS18B20 devices on the bus.
//
// During the conversion it places the bus in strong pull-up mode to power
// parasitic devices and returns when the conversions have completed. This time
// period is determined by the maximum resolution of all devices on the bus and
// must be provided.
func ConvertAll(o onewire.Bus, maxResolutionBits int) error {
	r, err := lookup(maxResolutionBits)
	if err != nil {
		return err
	}
	if err := StartAll(o); err != nil {
		return err
	}
	sleep(r.timeout)
	return nil
}

// StartAll starts a conversion on all DS18B20 devices on the bus and returns
// without waiting, to be used with LastTemp.
func StartAll(o onewire.Bus) error {
	return o.Tx([]byte{0xcc, cmdConvert}, nil, onewire.StrongPullup)
}

// New returns an object that communicates over 1-wire to the DS18B20 sensor
// with the specified 64-bit address.
//
// resolutionBits must be in the range 9..12. When the sensor is configured
// differently the new resolution is written and copied to its EEPROM.
func New(o onewire.Bus, addr onewire.Address, resolutionBits int) (*Dev, error) {
	r, err := lookup(resolutionBits)
	if err != nil {
		return nil, err
	}
	d := &Dev{onewire: onewire.Dev{Bus: o, Addr: addr}, res: r}

	// Reading the scratchpad tells whether the sensor answers and how it is
	// configured.
	spad, err := d.readScratchpad()
	if err != nil {
		return nil, err
	}
	if spad[4] != r.config {
		if err := d.onewire.Tx([]byte{cmdWriteScratchpad, spad[2], spad[3], r.config}, nil); err != nil {
			return nil, err
		}
		if err := d.onewire.TxPower([]byte{cmdCopyScratchpad}, nil); err != nil {
			return nil, err
		}
		// EEPROM write time.
		sleep(10 * time.Millisecond)
	}
	return d, nil
}

// Dev is a handle to a DS18B20 temperature sensor on a 1-wire bus.
type Dev struct {
	onewire onewire.Dev
	res     resolution

	mu   sync.Mutex
	stop chan struct{}
}

func (d *Dev) Family() Family {
	return Family(d.onewire.Addr & 0xff)
}

func (d *Dev) String() string {
	return d.Family().String() + "{" + d.onewire.String() + "}"
}

// Halt implements conn.Resource. It stops a SenseContinuous loop.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		close(d.stop)
		d.stop = nil
	}
	return nil
}

// Sense implements physic.SenseEnv.
func (d *Dev) Sense(e *physic.Env) error {
	if err := d.onewire.TxPower([]byte{cmdConvert}, nil); err != nil {
		return err
	}
	sleep(d.res.timeout)
	t, err := d.LastTemp()
	if err != nil {
		return err
	}
	e.Temperature = t
	return nil
}

// SenseContinuous implements physic.SenseEnv.
//
// The interval must be longer than the conversion time. The channel is
// closed by Halt or on the first error.
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	if interval < d.res.timeout {
		return nil, errors.New("ds18b20: interval shorter than the conversion time")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return nil, errors.New("ds18b20: already sensing continuously")
	}
	stop := make(chan struct{})
	d.stop = stop
	ch := make(chan physic.Env)
	go func() {
		defer close(ch)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			var e physic.Env
			if err := d.Sense(&e); err != nil {
				return
			}
			select {
			case ch <- e:
			case <-stop:
				return
			}
			select {
			case <-t.C:
			case <-stop:
				return
			}
		}
	}()
	return ch, nil
}

// Precision implements physic.SenseEnv.
func (d *Dev) Precision(e *physic.Env) {
	e.Temperature = physic.Kelvin / 16 << uint(12-d.res.bits)
}

// LastTemp reads the temperature resulting from the last conversion from the
// device.
//
// It is useful in combination with ConvertAll.
func (d *Dev) LastTemp() (physic.Temperature, error) {
	spad, err := d.readScratchpad()
	if err != nil {
		return 0, err
	}
	c := d.res.decode(spad[0], spad[1])

	// The device powers up with a value of 85°C, so if we read that odds are
	// very high that either no conversion was performed or that the conversion
	// failed due to lack of power.
	if c == 85*physic.Kelvin+physic.ZeroCelsius {
		return 0, busError("ds18b20: has not performed a temperature conversion (insufficient pull-up?)")
	}
	return c, nil
}

// readScratchpad reads the 9 bytes of scratchpad and checks the CRC.
// It returns the 8 bytes of scratchpad data (excluding the CRC byte).
func (d *Dev) readScratchpad() ([]byte, error) {
	var spad [scratchpadSize]byte
	if err := d.onewire.Tx([]byte{cmdReadScratchpad}, spad[:]); err != nil {
		return nil, err
	}
	if !onewire.CheckCRC(spad[:]) {
		for _, s := range spad {
			if s != 0xff {
				return nil, busError("ds18b20: incorrect scratchpad CRC")
			}
		}
		return nil, busError("ds18b20: device did not respond")
	}
	return spad[:8], nil
}

// busError implements error and onewire.BusError.
type busError string

func (e busError) Error() string  { return string(e) }
func (e busError) BusError() bool { return true }

var _ conn.Resource = &Dev{}
var _ physic.SenseEnv = &Dev{}
