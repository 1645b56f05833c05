// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds248xtest

import (
	"periph.io/x/conn/v3/onewire"

	"github.com/GermanBionicSystems/owbridge/common"
)

// ROMDevice is a device with a ROM id and no function commands, like a
// DS1420 or a DS2401.
type ROMDevice struct {
	ID       [8]byte
	Alarming bool
}

func (r *ROMDevice) ROM() [8]byte { return r.ID }
func (r *ROMDevice) Reset()       {}
func (r *ROMDevice) Write(byte)   {}
func (r *ROMDevice) Read() byte   { return 0xff }
func (r *ROMDevice) Alarm() bool  { return r.Alarming }

// function is the command parser shared by the device models: the first byte
// after selection is the command, the following ones its parameters, and out
// holds what the device sends on read slots.
type function struct {
	cmd  byte
	has  bool
	args []byte
	out  []byte
	idle byte // value of read slots once out is drained
}

func (f *function) reset() {
	f.has = false
	f.args = f.args[:0]
	f.out = nil
	f.idle = 0xff
}

func (f *function) read() byte {
	if len(f.out) == 0 {
		return f.idle
	}
	v := f.out[0]
	f.out = f.out[1:]
	return v
}

// DS18B20 simulates a temperature sensor.
type DS18B20 struct {
	ID [8]byte
	// Scratchpad holds the 8 scratchpad bytes; the CRC is computed on read.
	Scratchpad [8]byte
	// Raw is copied to the temperature bytes by a conversion.
	Raw int16
	// ConvertPolls is the number of read slots answering 0 after a conversion
	// is started.
	ConvertPolls int
	// CorruptReads is the number of next scratchpad reads sent with a wrong
	// CRC.
	CorruptReads int

	// Conversions counts the convert commands.
	Conversions int
	// Writes records the parameters of every write scratchpad command.
	Writes [][]byte

	f    function
	busy int
}

// NewDS18B20 returns a DS18B20 with the power-on scratchpad: 85°C, 12 bits.
func NewDS18B20(id [8]byte) *DS18B20 {
	return &DS18B20{
		ID:         id,
		Scratchpad: [8]byte{0x50, 0x05, 0x4b, 0x46, 0x7f, 0xff, 0x0c, 0x10},
		Raw:        0x0550,
	}
}

func (d *DS18B20) ROM() [8]byte { return d.ID }

func (d *DS18B20) Reset() {
	d.f.reset()
}

func (d *DS18B20) Write(b byte) {
	if !d.f.has {
		d.f.cmd, d.f.has = b, true
		switch b {
		case 0x44:
			d.Conversions++
			d.Scratchpad[0] = byte(d.Raw)
			d.Scratchpad[1] = byte(uint16(d.Raw) >> 8)
			d.busy = d.ConvertPolls
		case 0xbe:
			sp := append(d.Scratchpad[:], onewire.CalcCRC(d.Scratchpad[:]))
			if d.CorruptReads > 0 {
				d.CorruptReads--
				sp[8] ^= 0x55
			}
			d.f.out = sp
		}
		return
	}
	if d.f.cmd == 0x4e {
		d.f.args = append(d.f.args, b)
		if len(d.f.args) == 3 {
			copy(d.Scratchpad[2:5], d.f.args)
			d.Writes = append(d.Writes, append([]byte(nil), d.f.args...))
		}
	}
}

func (d *DS18B20) Read() byte {
	if d.f.has && d.f.cmd == 0x44 {
		if d.busy > 0 {
			d.busy--
			return 0
		}
		return 0xff
	}
	return d.f.read()
}

// DS2408 simulates the 8-channel addressable switch.
type DS2408 struct {
	ID [8]byte
	// Registers holds the register space 0x88 to 0x8f. The PIO logic state
	// at 0x88 is computed from the output latch and Inputs.
	Registers [8]byte
	// Inputs is ANDed with the output latch to get the sensed logic state.
	Inputs byte
	// CorruptReads is the number of next register reads sent with a wrong
	// CRC.
	CorruptReads int
	// NoAck makes channel access writes and latch resets unacknowledged.
	NoAck bool
	// Stuck makes register writes be ignored.
	Stuck bool

	f function
}

// NewDS2408 returns a DS2408 in its power-on state.
func NewDS2408(id [8]byte) *DS2408 {
	return &DS2408{
		ID:        id,
		Registers: [8]byte{0xff, 0xff, 0x00, 0x00, 0x00, 0x88, 0xff, 0xff},
		Inputs:    0xff,
	}
}

func (d *DS2408) ROM() [8]byte { return d.ID }

func (d *DS2408) Reset() {
	d.f.reset()
}

func (d *DS2408) Write(b byte) {
	if !d.f.has {
		d.f.cmd, d.f.has = b, true
		if d.f.cmd == 0xc3 {
			if !d.NoAck {
				d.Registers[2] = 0
				d.f.idle = 0xaa
			}
		}
		return
	}
	d.f.args = append(d.f.args, b)
	switch d.f.cmd {
	case 0xf0:
		if len(d.f.args) == 2 {
			d.f.out = d.registerFrame(d.f.args[0])
		}
	case 0x5a:
		if len(d.f.args)%2 != 0 {
			return
		}
		v, c := d.f.args[len(d.f.args)-2], d.f.args[len(d.f.args)-1]
		if v != ^c || d.NoAck {
			d.f.out = []byte{0xff}
			return
		}
		d.Registers[2] |= d.Registers[1] ^ v
		d.Registers[1] = v
		d.f.out = []byte{0xaa, d.sensed()}
	case 0xcc:
		if len(d.f.args) != 3 || d.Stuck {
			return
		}
		switch addr, v := d.f.args[0], d.f.args[2]; addr {
		case 0x8b, 0x8c:
			d.Registers[addr-0x88] = v
		case 0x8d:
			// Only the low nibble is writable and PORL can only be cleared.
			r := d.Registers[5]
			d.Registers[5] = r&0xf0 | v&0x07 | r&v&0x08
		}
	}
}

func (d *DS2408) Read() byte {
	return d.f.read()
}

func (d *DS2408) sensed() byte {
	return d.Registers[1] & d.Inputs
}

func (d *DS2408) registerFrame(addr byte) []byte {
	if addr < 0x88 || addr > 0x8f {
		return nil
	}
	regs := d.Registers
	regs[0] = d.sensed()
	frame := append([]byte{0xf0, addr, 0x00}, regs[addr-0x88:]...)
	crc := common.CRC16(frame)
	out := append(frame[3:], byte(crc), byte(crc>>8))
	if d.CorruptReads > 0 {
		d.CorruptReads--
		out[len(out)-1] ^= 0xff
	}
	return out
}

// DS2438 simulates the smart battery monitor.
type DS2438 struct {
	ID [8]byte
	// Memory holds the 8 pages of memory. Page 0 byte 0 is the status and
	// configuration register.
	Memory [8][8]byte
	// Scratch holds the scratchpad pages.
	Scratch [8][8]byte
	// Temp is the temperature in 1/256°C loaded by a conversion.
	Temp int16
	// VAD and VDD are the voltages in 10mV units loaded by a conversion,
	// depending on the AD bit.
	VAD, VDD uint16
	// Current is the current register value loaded on recall when IAD is set.
	Current int16
	// CorruptReads is the number of next scratchpad reads sent with a wrong
	// CRC.
	CorruptReads int
	// Copies counts the copy scratchpad commands.
	Copies int
	// DroppedCopies is the number of next copy scratchpad commands that
	// leave the memory unchanged.
	DroppedCopies int

	f function
}

// DS2438 configuration bits.
const (
	DS2438IAD = 0x01
	DS2438CA  = 0x02
	DS2438EE  = 0x04
	DS2438AD  = 0x08
)

// NewDS2438 returns a DS2438 with IAD, CA, EE and AD set.
func NewDS2438(id [8]byte) *DS2438 {
	d := &DS2438{ID: id}
	d.Memory[0][0] = DS2438IAD | DS2438CA | DS2438EE | DS2438AD
	return d
}

func (d *DS2438) ROM() [8]byte { return d.ID }

func (d *DS2438) Reset() {
	d.f.reset()
}

func (d *DS2438) Write(b byte) {
	if !d.f.has {
		d.f.cmd, d.f.has = b, true
		p0 := &d.Memory[0]
		switch b {
		case 0x44:
			p0[1], p0[2] = byte(d.Temp), byte(uint16(d.Temp)>>8)
		case 0xb4:
			v := d.VAD
			if p0[0]&DS2438AD != 0 {
				v = d.VDD
			}
			p0[3], p0[4] = byte(v), byte(v>>8)
		}
		return
	}
	d.f.args = append(d.f.args, b)
	page := int(d.f.args[0] & 7)
	switch d.f.cmd {
	case 0xb8:
		if len(d.f.args) != 1 {
			return
		}
		if page == 0 && d.Memory[0][0]&DS2438IAD != 0 {
			d.Memory[0][5], d.Memory[0][6] = byte(d.Current), byte(uint16(d.Current)>>8)
		}
		d.Scratch[page] = d.Memory[page]
	case 0xbe:
		if len(d.f.args) != 1 {
			return
		}
		sp := append(d.Scratch[page][:], onewire.CalcCRC(d.Scratch[page][:]))
		if d.CorruptReads > 0 {
			d.CorruptReads--
			sp[8] ^= 0x55
		}
		d.f.out = sp
	case 0x4e:
		if i := len(d.f.args) - 2; i >= 0 && i < 8 {
			d.Scratch[page][i] = b
		}
	case 0x48:
		if len(d.f.args) != 1 {
			return
		}
		d.Copies++
		if d.DroppedCopies > 0 {
			d.DroppedCopies--
			return
		}
		if page == 0 {
			// Only the configuration bits of page 0 are writable.
			d.Memory[0][0] = d.Memory[0][0]&0xf0 | d.Scratch[0][0]&0x0f
			d.Memory[0][7] = d.Scratch[0][7]
			return
		}
		d.Memory[page] = d.Scratch[page]
	}
}

func (d *DS2438) Read() byte {
	return d.f.read()
}
