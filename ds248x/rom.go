// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds248x

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"periph.io/x/conn/v3/onewire"
)

const romSize = 8

// ROM is a 64-bit 1-wire ROM id in bus order: family code, 6 serial bytes
// and the CRC-8 of the first 7 bytes.
type ROM [romSize]byte

// ParseROM parses a 16 hex digit ROM id. A '.' may separate the family code
// from the serial number, as in "28.ac410e07000074".
func ParseROM(s string) (ROM, error) {
	var r ROM
	if len(s) > 2 && s[2] == '.' {
		s = s[:2] + s[3:]
	}
	if len(s) != 2*romSize {
		return r, fmt.Errorf("%w: %q has %d hex digits, expected 16", ErrROMInvalid, s, len(s))
	}
	if _, err := hex.Decode(r[:], []byte(s)); err != nil {
		return r, fmt.Errorf("%w: %q: %v", ErrROMInvalid, s, err)
	}
	if err := r.Validate(); err != nil {
		return r, err
	}
	return r, nil
}

// FromAddress converts a periph onewire.Address, which keeps the family code
// in its least significant byte.
func FromAddress(a onewire.Address) ROM {
	var r ROM
	binary.LittleEndian.PutUint64(r[:], uint64(a))
	return r
}

// Validate checks that the family code is nonzero and the CRC matches.
func (r ROM) Validate() error {
	if r[0] == 0 {
		return fmt.Errorf("%w: %s has a zero family code", ErrROMInvalid, r)
	}
	if !onewire.CheckCRC(r[:]) {
		return fmt.Errorf("%w: rom %s", ErrCRCMismatch, r)
	}
	return nil
}

// Family returns the family code.
func (r ROM) Family() byte {
	return r[0]
}

// Address returns r as a periph onewire.Address.
func (r ROM) Address() onewire.Address {
	return onewire.Address(binary.LittleEndian.Uint64(r[:]))
}

// String returns the 16 lowercase hex digits of the id.
func (r ROM) String() string {
	return hex.EncodeToString(r[:])
}
