// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds248x

import "errors"

// Errors returned by the bridge. Use errors.Is() to check for them.
//
// Errors that describe the state of the 1-wire bus rather than of the ds248x
// itself also implement onewire.BusError.
var (
	// ErrIO is wrapped around failures of the underlying I²C transaction.
	ErrIO = errors.New("ds248x: i2c transaction failed")
	// ErrBusShort is returned when a 1-wire reset detects a short circuit.
	ErrBusShort error = shortedBusError("ds248x: 1-wire bus has a short")
	// ErrNoDevicePresent is returned when no presence pulse follows a reset.
	ErrNoDevicePresent error = busError("ds248x: no device present")
	// ErrCRCMismatch is returned when a ROM or frame fails its CRC check.
	ErrCRCMismatch error = busError("ds248x: crc mismatch")
	// ErrROMInvalid is returned for ROM ids of the wrong length, with invalid
	// hex digits or with a zero family code.
	ErrROMInvalid error = busError("ds248x: rom invalid")
	// ErrBadSearchResult is returned when a search triplet reports that no
	// device drove either bit value.
	ErrBadSearchResult error = busError("ds248x: bad search result")

	ErrConfigMismatch      = errors.New("ds248x: configuration readback mismatch")
	ErrInvalidChannel      = errors.New("ds248x: invalid channel")
	ErrChannelSelectFailed = errors.New("ds248x: channel select failed")
	ErrWaitTimeout         = errors.New("ds248x: timeout waiting for bus cycle to finish")
	ErrLockTimeout         = errors.New("ds248x: timeout waiting for bus lock")
)

// shortedBusError implements error and onewire.ShortedBusError.
type shortedBusError string

func (e shortedBusError) Error() string   { return string(e) }
func (e shortedBusError) IsShorted() bool { return true }
func (e shortedBusError) BusError() bool  { return true }

// busError implements error and onewire.BusError.
type busError string

func (e busError) Error() string  { return string(e) }
func (e busError) BusError() bool { return true }
