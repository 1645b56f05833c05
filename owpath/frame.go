// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owpath

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/onewire"

	"github.com/GermanBionicSystems/owbridge/common"
	"github.com/GermanBionicSystems/owbridge/ds248x"
)

// Retries is the number of attempts of a read validated by a CRC.
const Retries = 5

// Check validates the answer r to the command bytes w.
type Check func(w, r []byte) bool

// CRC8 checks that r ends with the CRC-8 of the bytes before it.
func CRC8(w, r []byte) bool {
	return onewire.CheckCRC(r)
}

// CRC16 checks that r ends with the CRC-16 of w followed by the bytes of r
// before it.
func CRC16(w, r []byte) bool {
	return common.CheckCRC16(append(append([]byte(nil), w...), r...))
}

// ReadFrame addresses the device id, sends w and reads n bytes, which check
// validates. The whole sequence is retried up to Retries times when the check
// fails.
//
// An answer made only of 0xff bytes fails with ErrDeviceNotPresent without
// retrying. When all the attempts fail the error wraps ds248x.ErrCRCMismatch.
func ReadFrame(b Bus, id string, w []byte, n int, check Check) ([]byte, error) {
	for i := 0; i < Retries; i++ {
		if err := b.MatchROM(id); err != nil {
			return nil, err
		}
		if err := b.WriteData(w); err != nil {
			return nil, err
		}
		r, err := b.ReadData(n)
		if err != nil {
			return nil, err
		}
		if check(w, r) {
			return r, nil
		}
		if AllFF(r) {
			return nil, fmt.Errorf("%w: %s", ErrDeviceNotPresent, id)
		}
	}
	return nil, fmt.Errorf("%w: %s after %d attempts", ds248x.ErrCRCMismatch, id, Retries)
}

// ShortRead addresses the device id, sends w and reads the first n bytes of
// the answer, then resets the bus to abort the transfer.
//
// The device sends no CRC before the end of the frame so the bytes are not
// validated.
func ShortRead(b Bus, id string, w []byte, n int) ([]byte, error) {
	if err := b.MatchROM(id); err != nil {
		return nil, err
	}
	if err := b.WriteData(w); err != nil {
		return nil, err
	}
	r, err := b.ReadData(n)
	if err != nil {
		return nil, err
	}
	if _, err := b.ResetWire(); err != nil && !errors.Is(err, ds248x.ErrNoDevicePresent) {
		return nil, err
	}
	return r, nil
}

// Command addresses the device id and sends w.
func Command(b Bus, id string, w ...byte) error {
	if err := b.MatchROM(id); err != nil {
		return err
	}
	return b.WriteData(w)
}

// AllFF reports whether b only holds 0xff bytes.
func AllFF(b []byte) bool {
	for _, v := range b {
		if v != 0xff {
			return false
		}
	}
	return len(b) != 0
}
