// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package owpath maps 1-wire devices to named operations and routes path
// reads and writes to the decoder of the device family.
//
// A path is "<family>.<serial>/<operation>", for example
// "28.ac410e07000074/temperature12". The '.' is optional and paths are case
// insensitive.
//
// The router holds the bridge lock for the whole duration of a path
// operation, so decoders run their command sequences on an exclusive bus.
package owpath

import (
	"context"
	"errors"
)

// Bus is the set of bridge primitives decoders build their command sequences
// from. The bus is locked while a decoder runs.
//
// ds248x.Dev implements it.
type Bus interface {
	ResetWire() (byte, error)
	MatchROM(rom string) error
	SkipROM() error
	ResumeROM() error
	WriteData(w []byte) error
	ReadData(n int) ([]byte, error)
	StrongPullup() error
}

// Bridge is a Bus that can be locked and enumerated.
type Bridge interface {
	Bus
	Lock(ctx context.Context) error
	Unlock()
	SearchAll() ([]string, error)
}

// ReadFunc reads a value from the device with ROM id on b. id is 16
// lowercase hex digits without separator.
type ReadFunc func(b Bus, id string) (any, error)

// WriteFunc writes v to the device with ROM id on b and returns the result of
// the write, if any.
type WriteFunc func(b Bus, id string, v any) (any, error)

// Op is a named operation of a decoder. Either function may be nil.
type Op struct {
	Read  ReadFunc
	Write WriteFunc
}

// Decoder is the protocol implementation of a device family.
//
// Decoders keep no per-device state, a single instance serves all the
// devices of its family.
type Decoder interface {
	// Ops returns the operations keyed by their lowercase path, like
	// "temperature12" or "pio/ch3".
	Ops() map[string]Op
}

// Factory returns a new Decoder.
type Factory func() Decoder

var (
	// ErrInvalidPath is returned for malformed paths.
	ErrInvalidPath = errors.New("owpath: invalid path")
	// ErrDeviceNotPresent is returned when a device answers with only 0xff
	// bytes, the idle state of the bus.
	ErrDeviceNotPresent = errors.New("owpath: device not present")
	// ErrVerifyFailed is returned when a register still does not hold the
	// written value after all attempts.
	ErrVerifyFailed = errors.New("owpath: register verification failed")
	// ErrNotAcknowledged is returned when a device does not acknowledge a
	// command with 0xaa.
	ErrNotAcknowledged = errors.New("owpath: command not acknowledged")
	// ErrInvalidValue is returned when a written value has the wrong type or
	// is out of range.
	ErrInvalidValue = errors.New("owpath: invalid value")
)
