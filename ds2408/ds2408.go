// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ds2408 controls the Maxim DS2408 8-channel addressable switch.
//
// The Decoder exposes the chip as owpath operations:
//
//	sensed/all, sensed/ch0..7    PIO logic state (read)
//	pio/all, pio/ch0..7          output latch state (read, write)
//	latch/all                    activity latch state (read, write resets)
//	latch/ch0..7                 activity latch of one channel (read)
//	power                        VCC power status (read)
//	por                          power-on reset latch (read, write)
//	strobe                       RSTZ pin strobe mode (read, write)
//	disable_test_mode            leave the power-up test mode (write)
//
// Whole registers are returned as a byte, single channels and status bits as
// a bool.
//
// # Datasheet
//
// https://www.analog.com/media/en/technical-documentation/data-sheets/DS2408.pdf
package ds2408

import (
	"fmt"
	"strconv"

	"github.com/GermanBionicSystems/owbridge/ds248x"
	"github.com/GermanBionicSystems/owbridge/owpath"
)

// Family is the family code of the DS2408.
const Family = 0x29

// Registers.
const (
	RegLogicState    = 0x88
	RegOutputLatch   = 0x89
	RegActivityLatch = 0x8a
	RegSelectionMask = 0x8b
	RegPolarity      = 0x8c
	RegControl       = 0x8d
)

// Control and status register bits.
const (
	BitPLS  = 0x01 // pin or activity latch selection for conditional search
	BitCT   = 0x02 // conditional search term
	BitROS  = 0x04 // RSTZ configured as strobe output
	BitPORL = 0x08 // power-on reset latch, can only be cleared
	BitVCCP = 0x80 // VCC powered, read only
)

const (
	cmdReadPIO       = 0xf0
	cmdChannelWrite  = 0x5a
	cmdWriteRegister = 0xcc
	cmdResetLatches  = 0xc3
	cmdTestMode1     = 0x96
	cmdTestMode2     = 0x3c

	ack = 0xaa
)

// Decoder implements owpath.Decoder for the DS2408 family.
type Decoder struct {
	ops map[string]owpath.Op
}

// NewDecoder returns the DS2408 decoder.
func NewDecoder() *Decoder {
	d := &Decoder{ops: map[string]owpath.Op{
		"power":             {Read: bitReader(RegControl, BitVCCP, false)},
		"por":               {Read: bitReader(RegControl, BitPORL, false), Write: bitWriter(RegControl, BitPORL, false)},
		"strobe":            {Read: bitReader(RegControl, BitROS, false), Write: bitWriter(RegControl, BitROS, false)},
		"disable_test_mode": {Write: writeDisableTestMode},
		"sensed/all":        {Read: registerReader(RegLogicState)},
		"pio/all":           {Read: registerReader(RegOutputLatch), Write: writePIO},
		"latch/all":         {Read: registerReader(RegActivityLatch), Write: writeResetLatches},
	}}
	for i := uint(0); i < 8; i++ {
		ch := "/ch" + strconv.Itoa(int(i))
		mask := byte(1) << i
		d.ops["sensed"+ch] = owpath.Op{Read: bitReader(RegLogicState, mask, false)}
		d.ops["pio"+ch] = owpath.Op{Read: bitReader(RegOutputLatch, mask, false), Write: channelWriter(mask)}
		d.ops["latch"+ch] = owpath.Op{Read: bitReader(RegActivityLatch, mask, false)}
	}
	return d
}

// Ops implements owpath.Decoder.
func (d *Decoder) Ops() map[string]owpath.Op {
	return d.ops
}

// ReadRegisters reads the register space 0x88 to 0x8f in one CRC protected
// burst.
func ReadRegisters(b owpath.Bus, id string) ([8]byte, error) {
	var regs [8]byte
	r, err := owpath.ReadFrame(b, id, []byte{cmdReadPIO, RegLogicState, 0x00}, 10, owpath.CRC16)
	if err != nil {
		return regs, err
	}
	copy(regs[:], r)
	return regs, nil
}

// ReadRegister reads one register.
func ReadRegister(b owpath.Bus, id string, reg byte) (byte, error) {
	if reg < RegLogicState || reg > 0x8f {
		return 0, fmt.Errorf("ds2408: invalid register %#x", reg)
	}
	regs, err := ReadRegisters(b, id)
	if err != nil {
		return 0, err
	}
	return regs[reg-RegLogicState], nil
}

// WriteRegister writes one of the conditional search registers 0x8b to 0x8d.
func WriteRegister(b owpath.Bus, id string, reg, v byte) error {
	if reg < RegSelectionMask || reg > RegControl {
		return fmt.Errorf("ds2408: register %#x is not writable", reg)
	}
	if err := owpath.Command(b, id, cmdWriteRegister, reg, 0x00, v); err != nil {
		return err
	}
	_, err := b.ResetWire()
	return err
}

// Bit reports whether any bit of mask is set in reg. With invert the
// register is complemented first, for active low bits.
func Bit(b owpath.Bus, id string, reg, mask byte, invert bool) (bool, error) {
	v, err := ReadRegister(b, id, reg)
	if err != nil {
		return false, err
	}
	if invert {
		v = ^v
	}
	return v&mask != 0, nil
}

// SetBit sets or clears the bits of mask in reg and reads the register back
// until it holds the change, up to owpath.Retries times. With invert, on
// clears the bits.
//
// Only the bits of mask are compared, the others may change on their own.
func SetBit(b owpath.Bus, id string, reg, mask byte, on, invert bool) error {
	if invert {
		on = !on
	}
	v, err := ReadRegister(b, id, reg)
	if err != nil {
		return err
	}
	for i := 0; i < owpath.Retries; i++ {
		if (v&mask != 0) == on {
			return nil
		}
		want := v &^ mask
		if on {
			want |= mask
		}
		if err := WriteRegister(b, id, reg, want); err != nil {
			return err
		}
		if v, err = ReadRegister(b, id, reg); err != nil {
			return err
		}
	}
	if (v&mask != 0) == on {
		return nil
	}
	return fmt.Errorf("%w: ds2408 %s register %#x bits %#x", owpath.ErrVerifyFailed, id, reg, mask)
}

// WritePIO sets the output latches with a channel access write and checks the
// acknowledgment.
func WritePIO(b owpath.Bus, id string, v byte) error {
	if err := owpath.Command(b, id, cmdChannelWrite, v, ^v); err != nil {
		return err
	}
	// At least 2 bytes must be read for the outputs to switch reliably.
	r, err := b.ReadData(2)
	if err != nil {
		return err
	}
	if r[0] != ack {
		return fmt.Errorf("%w: ds2408 %s channel write got %#x", owpath.ErrNotAcknowledged, id, r[0])
	}
	return nil
}

// ResetLatches clears the activity latches.
func ResetLatches(b owpath.Bus, id string) error {
	var r []byte
	for i := 0; i < owpath.Retries; i++ {
		if err := owpath.Command(b, id, cmdResetLatches); err != nil {
			return err
		}
		var err error
		if r, err = b.ReadData(2); err != nil {
			return err
		}
		if r[0] == ack {
			return nil
		}
	}
	return fmt.Errorf("%w: ds2408 %s latch reset got %#x", owpath.ErrNotAcknowledged, id, r[0])
}

// DisableTestMode takes a chip out of the test mode it may power up in.
func DisableTestMode(b owpath.Bus, id string) error {
	rom, err := ds248x.ParseROM(id)
	if err != nil {
		return err
	}
	if _, err := b.ResetWire(); err != nil {
		return err
	}
	w := append(append([]byte{cmdTestMode1}, rom[:]...), cmdTestMode2)
	if err := b.WriteData(w); err != nil {
		return err
	}
	_, err = b.ResetWire()
	return err
}

func registerReader(reg byte) owpath.ReadFunc {
	return func(b owpath.Bus, id string) (any, error) {
		return ReadRegister(b, id, reg)
	}
}

func bitReader(reg, mask byte, invert bool) owpath.ReadFunc {
	return func(b owpath.Bus, id string) (any, error) {
		on, err := Bit(b, id, reg, mask, invert)
		if err != nil {
			return nil, err
		}
		return on, nil
	}
}

func bitWriter(reg, mask byte, invert bool) owpath.WriteFunc {
	return func(b owpath.Bus, id string, v any) (any, error) {
		on, err := owpath.Bool(v)
		if err != nil {
			return nil, err
		}
		if err := SetBit(b, id, reg, mask, on, invert); err != nil {
			return nil, err
		}
		return on, nil
	}
}

// channelWriter changes one output latch with a read-modify-write of the
// output latch register.
func channelWriter(mask byte) owpath.WriteFunc {
	return func(b owpath.Bus, id string, v any) (any, error) {
		on, err := owpath.Bool(v)
		if err != nil {
			return nil, err
		}
		latch, err := ReadRegister(b, id, RegOutputLatch)
		if err != nil {
			return nil, err
		}
		if on {
			latch |= mask
		} else {
			latch &^= mask
		}
		if err := WritePIO(b, id, latch); err != nil {
			return nil, err
		}
		return true, nil
	}
}

func writePIO(b owpath.Bus, id string, v any) (any, error) {
	latch, err := owpath.Byte(v)
	if err != nil {
		return nil, err
	}
	if err := WritePIO(b, id, latch); err != nil {
		return nil, err
	}
	return true, nil
}

func writeResetLatches(b owpath.Bus, id string, _ any) (any, error) {
	if err := ResetLatches(b, id); err != nil {
		return nil, err
	}
	return true, nil
}

func writeDisableTestMode(b owpath.Bus, id string, _ any) (any, error) {
	if err := DisableTestMode(b, id); err != nil {
		return nil, err
	}
	return true, nil
}

var _ owpath.Decoder = &Decoder{}
