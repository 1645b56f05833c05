// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ds1420 decodes ROM-only 1-wire devices: the DS1420 serial number
// (family 0x81) and the DS2401/DS1990A silicon serial numbers (family 0x01).
//
// These devices have no function commands; the only path is "id" which
// returns the 16 hex digit ROM id as a string.
package ds1420

import (
	"github.com/GermanBionicSystems/owbridge/ds248x"
	"github.com/GermanBionicSystems/owbridge/owpath"
)

// Family codes handled by the decoder.
const (
	FamilyDS2401 = 0x01
	FamilyDS1420 = 0x81
)

// Decoder implements owpath.Decoder for ROM-only devices.
type Decoder struct{}

// NewDecoder returns the ROM-only decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Ops implements owpath.Decoder.
func (d *Decoder) Ops() map[string]owpath.Op {
	return map[string]owpath.Op{"id": {Read: readID}}
}

// readID returns the canonical form of id without touching the bus.
func readID(_ owpath.Bus, id string) (any, error) {
	r, err := ds248x.ParseROM(id)
	if err != nil {
		return nil, err
	}
	return r.String(), nil
}

var _ owpath.Decoder = &Decoder{}
