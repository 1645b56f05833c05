// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds18b20

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"periph.io/x/conn/v3/onewire"
	"periph.io/x/conn/v3/onewire/onewiretest"
	"periph.io/x/conn/v3/physic"
)

func TestNew_fail_resolution(t *testing.T) {
	bus := &onewiretest.Playback{}
	var addr onewire.Address = 0x740000070e41ac28
	if d, err := New(bus, addr, 1); d != nil || err == nil {
		t.Fatal("invalid resolution")
	}
}

func TestNew_fail_read(t *testing.T) {
	bus := &onewiretest.Playback{DontPanic: true}
	var addr onewire.Address = 0x740000070e41ac28
	if d, err := New(bus, addr, 9); d != nil || err == nil {
		t.Fatal("invalid read")
	}
}

func TestNew_not_responding(t *testing.T) {
	ops := []onewiretest.IO{
		{
			W: []uint8{0x55, 0x28, 0xac, 0x41, 0xe, 0x7, 0x0, 0x0, 0x74, 0xbe},
			R: []uint8{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		},
	}
	bus := &onewiretest.Playback{Ops: ops}
	_, err := New(bus, 0x740000070e41ac28, 10)
	if err == nil || err.Error() != "ds18b20: device did not respond" {
		t.Fatalf("got %v", err)
	}
	var be onewire.BusError
	if !errors.As(err, &be) || !be.BusError() {
		t.Fatal("expected a bus error")
	}
}

func TestNew_resolution(t *testing.T) {
	ops := []onewiretest.IO{
		// Match ROM + Read Scratchpad, the sensor is at 10 bits.
		{
			W: []uint8{0x55, 0x28, 0xac, 0x41, 0xe, 0x7, 0x0, 0x0, 0x74, 0xbe},
			R: []uint8{0xe0, 0x1, 0x0, 0x0, 0x3f, 0xff, 0x10, 0x10, 0x3f},
		},
		// Match ROM + Write Scratchpad
		{W: []uint8{0x55, 0x28, 0xac, 0x41, 0xe, 0x7, 0x0, 0x0, 0x74, 0x4e, 0x0, 0x0, 0x7f}},
		// Match ROM + Copy Scratchpad
		{W: []uint8{0x55, 0x28, 0xac, 0x41, 0xe, 0x7, 0x0, 0x0, 0x74, 0x48}, Pull: true},
	}
	bus := &onewiretest.Playback{Ops: ops}
	var sleeps []time.Duration
	sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	defer func() { sleep = func(time.Duration) {} }()
	if _, err := New(bus, 0x740000070e41ac28, 12); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(sleeps, []time.Duration{10 * time.Millisecond}) {
		t.Errorf("expected EEPROM write wait: %v", sleeps)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

// TestSense tests a temperature conversion on a ds18b20 using
// recorded bus transactions.
func TestSense(t *testing.T) {
	ops := []onewiretest.IO{
		// Match ROM + Read Scratchpad (init)
		{
			W: []uint8{0x55, 0x28, 0xac, 0x41, 0xe, 0x7, 0x0, 0x0, 0x74, 0xbe},
			R: []uint8{0xe0, 0x1, 0x0, 0x0, 0x3f, 0xff, 0x10, 0x10, 0x3f},
		},
		// Match ROM + Convert
		{
			W:    []uint8{0x55, 0x28, 0xac, 0x41, 0xe, 0x7, 0x0, 0x0, 0x74, 0x44},
			Pull: true,
		},
		// Match ROM + Read Scratchpad (read temp)
		{
			W: []uint8{0x55, 0x28, 0xac, 0x41, 0xe, 0x7, 0x0, 0x0, 0x74, 0xbe},
			R: []uint8{0xe0, 0x1, 0x0, 0x0, 0x3f, 0xff, 0x10, 0x10, 0x3f},
		},
	}
	var addr onewire.Address = 0x740000070e41ac28
	bus := onewiretest.Playback{Ops: ops}
	dev, err := New(&bus, addr, 10)
	if err != nil {
		t.Fatal(err)
	}
	if s := dev.String(); s != "DS18B20{playback(0x740000070e41ac28)}" {
		t.Fatal(s)
	}
	var sleeps []time.Duration
	sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	defer func() { sleep = func(time.Duration) {} }()
	e := physic.Env{}
	if err := dev.Sense(&e); err != nil {
		t.Fatal(err)
	}
	if expected := 30*physic.Celsius + physic.ZeroCelsius; e.Temperature != expected {
		t.Errorf("expected %s, got %s", expected.String(), e.Temperature.String())
	}
	if !reflect.DeepEqual(sleeps, []time.Duration{200 * time.Millisecond}) {
		t.Errorf("expected conversion to sleep: %v", sleeps)
	}
	dev.Precision(&e)
	if e.Temperature != physic.Kelvin/4 {
		t.Errorf("precision %s", e.Temperature)
	}
	if _, err := dev.SenseContinuous(time.Millisecond); err == nil {
		t.Error("interval shorter than the conversion accepted")
	}
	if err := dev.Halt(); err != nil {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestLastTemp_not_converted(t *testing.T) {
	r, _ := lookup(12)
	ops := []onewiretest.IO{
		{
			W: []uint8{0x55, 0x28, 0xac, 0x41, 0xe, 0x7, 0x0, 0x0, 0x74, 0xbe},
			R: []uint8{0x50, 0x05, 0x4b, 0x46, 0x7f, 0xff, 0x0c, 0x10, 0x1c},
		},
	}
	bus := &onewiretest.Playback{Ops: ops}
	d := &Dev{onewire: onewire.Dev{Bus: bus, Addr: 0x740000070e41ac28}, res: r}
	if _, err := d.LastTemp(); err == nil {
		t.Fatal("85°C must be reported as a missing conversion")
	}
}

func TestDecode(t *testing.T) {
	var testData = []struct {
		bits         int
		lsb, msb     byte
		expectedTemp float64
	}{
		{12, 0xD0, 0x07, 125},
		{12, 0x50, 0x05, 85},
		{12, 0x91, 0x01, 25.0625},
		{12, 0xA2, 0x00, 10.125},
		{12, 0x08, 0x00, 0.5},
		{12, 0x00, 0x00, 0},
		{12, 0xF8, 0xFF, -0.5},
		{12, 0x5E, 0xFF, -10.125},
		{12, 0x6F, 0xFE, -25.0625},
		{12, 0x90, 0xFC, -55},
		// The undefined bits are ignored.
		{11, 0x91, 0x01, 25},
		{10, 0x97, 0x01, 25.25},
		{9, 0x9f, 0x01, 25.5},
		{9, 0x6F, 0xFE, -25.5},
	}
	for _, entry := range testData {
		t.Run(fmt.Sprintf("%d>%f", entry.bits, entry.expectedTemp), func(st *testing.T) {
			r, err := lookup(entry.bits)
			if err != nil {
				st.Fatal(err)
			}
			if c := r.decode(entry.lsb, entry.msb); c.Celsius() != entry.expectedTemp {
				st.Errorf("expected %f, got %f", entry.expectedTemp, c.Celsius())
			}
		})
	}
}

// TestConvertAll tests a temperature conversion on all ds18b20 using
// recorded bus transactions.
func TestConvertAll(t *testing.T) {
	ops := []onewiretest.IO{
		// Skip ROM + Convert
		{W: []uint8{0xcc, 0x44}, R: []uint8(nil), Pull: true},
	}
	bus := onewiretest.Playback{Ops: ops}
	var sleeps []time.Duration
	sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	defer func() { sleep = func(time.Duration) {} }()
	if err := ConvertAll(&bus, 9); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(sleeps, []time.Duration{110 * time.Millisecond}) {
		t.Errorf("expected conversion to take 110ms, took %s", sleeps)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestConvertAll_fail_resolution(t *testing.T) {
	bus := &onewiretest.Playback{}
	if err := ConvertAll(bus, 1); err == nil {
		t.Fatal("invalid resolution")
	}
}

func TestConvertAll_fail_io(t *testing.T) {
	bus := &onewiretest.Playback{DontPanic: true}
	if err := ConvertAll(bus, 9); err == nil {
		t.Fatal("invalid io")
	}
}

func init() {
	sleep = func(time.Duration) {}
}
