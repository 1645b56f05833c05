// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds18b20

import (
	"fmt"
	"strconv"

	"periph.io/x/conn/v3/physic"

	"github.com/GermanBionicSystems/owbridge/ds248x"
	"github.com/GermanBionicSystems/owbridge/owpath"
)

// Decoder implements owpath.Decoder for the DS18B20 family.
//
// Read values are physic.Temperature.
type Decoder struct {
	ops map[string]owpath.Op
}

// NewDecoder returns the DS18B20 decoder.
func NewDecoder() *Decoder {
	d := &Decoder{ops: map[string]owpath.Op{}}
	for _, r := range resolutions {
		d.ops["temperature"+strconv.Itoa(r.bits)] = owpath.Op{Read: r.reader(false)}
		d.ops["parasite/temperature"+strconv.Itoa(r.bits)] = owpath.Op{Read: r.reader(true)}
	}
	d.ops["temperature"] = d.ops["temperature10"]
	d.ops["parasite/temperature"] = d.ops["parasite/temperature10"]
	return d
}

// Ops implements owpath.Decoder.
func (d *Decoder) Ops() map[string]owpath.Op {
	return d.ops
}

func (r resolution) reader(parasite bool) owpath.ReadFunc {
	return func(b owpath.Bus, id string) (any, error) {
		return r.temperature(b, id, parasite)
	}
}

// temperature sets the resolution if needed, runs a conversion and fetches
// its result.
func (r resolution) temperature(b owpath.Bus, id string, parasite bool) (physic.Temperature, error) {
	sp, err := owpath.ReadFrame(b, id, []byte{cmdReadScratchpad}, scratchpadSize, owpath.CRC8)
	if err != nil {
		return 0, err
	}
	if sp[4] != r.config {
		// TH, TL and the configuration register must always be written
		// together.
		if err := owpath.Command(b, id, cmdWriteScratchpad, sp[2], sp[3], r.config); err != nil {
			return 0, err
		}
	}
	if err := r.convert(b, id, parasite); err != nil {
		return 0, err
	}
	t, err := owpath.ShortRead(b, id, []byte{cmdReadScratchpad}, 2)
	if err != nil {
		return 0, err
	}
	return r.decode(t[0], t[1]), nil
}

// convert starts a conversion and waits for it.
//
// In parasite mode the sensor draws its power from the strong pull-up for the
// whole conversion time. Otherwise the sensor answers read slots with 0 until
// the conversion is done.
func (r resolution) convert(b owpath.Bus, id string, parasite bool) error {
	if err := b.MatchROM(id); err != nil {
		return err
	}
	if parasite {
		if err := b.StrongPullup(); err != nil {
			return err
		}
		if err := b.WriteData([]byte{cmdConvert}); err != nil {
			return err
		}
		sleep(r.timeout)
		return nil
	}
	if err := b.WriteData([]byte{cmdConvert}); err != nil {
		return err
	}
	deadline := now().Add(r.timeout)
	for {
		v, err := b.ReadData(1)
		if err != nil {
			return err
		}
		if v[0] != 0 {
			return nil
		}
		if now().After(deadline) {
			return fmt.Errorf("ds18b20: %s: conversion not done after %s: %w", id, r.timeout, ds248x.ErrWaitTimeout)
		}
		sleep(pollInterval)
	}
}

var _ owpath.Decoder = &Decoder{}
