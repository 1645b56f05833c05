// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds248x

import "fmt"

// Register level access to the bridge. Nothing here retries; retry policy
// belongs to the callers.

// tx performs one I²C transaction with the bridge.
func (d *Dev) tx(w, r []byte) error {
	if err := d.i2c.Tx(w, r); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// i2cWrite sends a bridge command followed by its parameter bytes.
func (d *Dev) i2cWrite(cmd byte, params ...byte) error {
	return d.tx(append([]byte{cmd}, params...), nil)
}

// i2cRead reads one byte from the register selected by the read pointer.
func (d *Dev) i2cRead() (byte, error) {
	var b [1]byte
	if err := d.tx(nil, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// readRegister moves the read pointer to reg and reads it.
func (d *Dev) readRegister(reg byte) (byte, error) {
	var b [1]byte
	if err := d.tx([]byte{cmdSetReadPtr, reg}, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// readStatus reads the status register.
func (d *Dev) readStatus() (byte, error) {
	return d.readRegister(regStatus)
}

// waitIdle polls the status register until the 1-wire busy bit clears and
// returns the last status byte read.
//
// Every 1-wire command leaves the read pointer on the status register, so the
// pointer is only set explicitly when setPointer is true, which is needed
// before a command when the pointer position is unknown. The first poll is
// immediate; further polls are PollInterval apart and the whole procedure is
// bounded by WaitTimeout.
func (d *Dev) waitIdle(setPointer bool) (byte, error) {
	deadline := now().Add(d.opts.WaitTimeout)
	for {
		var status byte
		var err error
		if setPointer {
			status, err = d.readStatus()
			setPointer = false
		} else {
			status, err = d.i2cRead()
		}
		if err != nil {
			return 0, err
		}
		if status&statusBusy == 0 {
			return status, nil
		}
		if now().After(deadline) {
			return status, ErrWaitTimeout
		}
		// Try not to hog the kernel thread.
		sleep(d.opts.PollInterval)
	}
}

// encodeConfig returns the byte to write for the configuration nibble cfg:
// the chip only accepts it when the upper nibble is the complement of the lower.
func encodeConfig(cfg byte) byte {
	cfg &= 0x0f
	return (^cfg&0x0f)<<4 | cfg
}
