// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ds248xtest simulates a ds248x I²C to 1-wire bridge and the 1-wire
// devices wired behind it.
//
// Bus implements i2c.Bus at the register level: commands, read pointer,
// status bits, configuration nibble checking and channel selection behave as
// described in the datasheets. The 1-wire side runs ROM commands, the search
// triplet with wired-AND semantics and forwards function commands to the
// selected Device models.
package ds248xtest

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/onewire"
	"periph.io/x/conn/v3/physic"
)

// Variant selects the simulated bridge chip.
type Variant int

const (
	DS2482x100 Variant = iota
	DS2482x800
	DS2483
)

// Device is a simulated 1-wire device.
//
// Reset is called on every 1-wire reset. Write and Read are called for the
// function command bytes once the device is selected by a ROM command.
type Device interface {
	ROM() [8]byte
	Reset()
	Write(b byte)
	Read() byte
}

// Alarmer is implemented by devices that can answer an alarm search.
type Alarmer interface {
	Alarm() bool
}

// ErrNack is returned for transactions the chip would not acknowledge.
var ErrNack = errors.New("ds248xtest: nack")

// Bus is a simulated ds248x. The zero value is a DS2482-100 at 0x18 with an
// empty 1-wire bus.
//
// Exported fields may be changed by tests between transactions; the mutex
// protects the simulation while a transaction runs.
type Bus struct {
	// Addr is the I²C address of the bridge; 0 means 0x18.
	Addr    uint16
	Variant Variant
	Devices []Device

	// Short makes every 1-wire reset report a short.
	Short bool
	// BusyPolls is the number of status reads reporting 1WB after each 1-wire
	// command. A negative value means busy forever.
	BusyPolls int
	// StuckConfig makes configuration writes be ignored.
	StuckConfig bool
	// ChannelFault makes channel selection read back a wrong code.
	ChannelFault bool
	// Fail, when set, is returned by every transaction.
	Fail error

	// Ops records every transaction.
	Ops []i2ctest.IO
	// Matches records the ROM id of every completed match ROM command.
	Matches []string
	// PulledUp records the bytes written while the strong pull-up was armed.
	PulledUp []byte
	// Port records the DS2483 port adjustment bytes.
	Port []byte

	mu       sync.Mutex
	reset    bool
	ptr      byte
	status   byte
	config   byte
	data     byte
	channel  int
	busyLeft int
	pullup   bool
	wire     wire
}

func (b *Bus) String() string {
	return "ds248xtest"
}

// SetSpeed implements i2c.Bus.
func (b *Bus) SetSpeed(physic.Frequency) error {
	return nil
}

// Close implements i2c.BusCloser.
func (b *Bus) Close() error {
	return nil
}

// Channel returns the selected channel.
func (b *Bus) Channel() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.channel
}

// Config returns the configuration nibble.
func (b *Bus) Config() byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.config
}

// Tx implements i2c.Bus.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	io := i2ctest.IO{Addr: addr, W: append([]byte(nil), w...)}
	err := b.tx(addr, w, r)
	io.R = append([]byte(nil), r...)
	b.Ops = append(b.Ops, io)
	return err
}

func (b *Bus) tx(addr uint16, w, r []byte) error {
	if b.Fail != nil {
		return b.Fail
	}
	want := b.Addr
	if want == 0 {
		want = 0x18
	}
	if addr != want {
		return ErrNack
	}
	if !b.reset {
		b.powerUp()
	}
	if len(w) != 0 {
		if err := b.command(w[0], w[1:]); err != nil {
			return err
		}
	}
	for i := range r {
		r[i] = b.readPtr()
	}
	return nil
}

func (b *Bus) powerUp() {
	b.reset = true
	b.deviceReset()
}

func (b *Bus) deviceReset() {
	b.status = stRST | stLL
	b.config = 0
	b.channel = 0
	b.ptr = regStatus
	b.busyLeft = 0
	b.wire = wire{}
}

func (b *Bus) command(cmd byte, p []byte) error {
	need := map[byte]int{cmdReset: 0, cmdSRP: 1, cmdWCFG: 1, cmd1WReset: 0, cmd1WBit: 1, cmd1WWrite: 1, cmd1WRead: 0, cmd1WTriplet: 1}
	if cmd == cmdChannel {
		switch b.Variant {
		case DS2482x800:
			need[cmd] = 1
		case DS2483:
			need[cmd] = len(p)
		default:
			return fmt.Errorf("%w: command %#x on a DS2482-100", ErrNack, cmd)
		}
	}
	n, ok := need[cmd]
	if !ok || len(p) != n {
		return fmt.Errorf("%w: command %#x with %d parameters", ErrNack, cmd, len(p))
	}
	switch cmd {
	case cmdReset:
		b.deviceReset()
	case cmdSRP:
		if !b.validRegister(p[0]) {
			return fmt.Errorf("%w: read pointer %#x", ErrNack, p[0])
		}
		b.ptr = p[0]
	case cmdWCFG:
		if p[0]>>4 != ^p[0]&0x0f {
			return fmt.Errorf("%w: configuration %#x", ErrNack, p[0])
		}
		if !b.StuckConfig {
			b.config = p[0] & 0x0f
		}
		b.status &^= stRST
		b.ptr = regConfig
	case cmdChannel:
		if b.Variant == DS2483 {
			b.Port = append([]byte(nil), p...)
			b.ptr = regPort
			return nil
		}
		idx := -1
		for i, c := range chanWrite {
			if c == p[0] {
				idx = i
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: channel code %#x", ErrNack, p[0])
		}
		if !b.ChannelFault {
			b.channel = idx
		}
		b.ptr = regChannel
	default:
		b.oneWire(cmd, p)
	}
	return nil
}

func (b *Bus) validRegister(reg byte) bool {
	switch reg {
	case regStatus, regData, regConfig:
		return true
	case regChannel:
		return b.Variant == DS2482x800
	case regPort:
		return b.Variant == DS2483
	}
	return false
}

func (b *Bus) oneWire(cmd byte, p []byte) {
	if b.pullup {
		// The strong pull-up ends with the next 1-wire command.
		b.pullup = false
		b.config &^= cfgSPU
	}
	b.status &^= stRST | stSBR | stTSB | stDIR
	b.ptr = regStatus
	b.busyLeft = b.BusyPolls
	switch cmd {
	case cmd1WReset:
		b.status &^= stPPD | stSD
		if b.Short {
			b.status |= stSD | stPPD
			return
		}
		if len(b.Devices) != 0 {
			b.status |= stPPD
		}
		b.wire.reset(b)
	case cmd1WWrite:
		b.wire.write(b, p[0])
		if b.config&cfgSPU != 0 {
			b.pullup = true
			b.PulledUp = append(b.PulledUp, p[0])
		}
	case cmd1WRead:
		b.data = b.wire.read(b)
	case cmd1WBit:
		if p[0]&0x80 != 0 {
			b.status |= stSBR
		}
		b.pullup = b.config&cfgSPU != 0
	case cmd1WTriplet:
		b.status |= b.wire.triplet(b, p[0]&0x80 != 0)
	}
}

func (b *Bus) readPtr() byte {
	switch b.ptr {
	case regStatus:
		if b.busyLeft != 0 {
			if b.busyLeft > 0 {
				b.busyLeft--
			}
			return b.status | stBusy
		}
		return b.status
	case regData:
		return b.data
	case regConfig:
		return b.config
	case regChannel:
		if b.ChannelFault {
			return 0
		}
		return chanRead[b.channel]
	case regPort:
		return 0
	}
	return 0xff
}

// MakeROM returns a valid ROM id for the family code and the 48 bit serial
// number.
func MakeROM(family byte, serial uint64) [8]byte {
	var r [8]byte
	r[0] = family
	for i := 1; i < 7; i++ {
		r[i] = byte(serial >> (8 * uint(i-1)))
	}
	r[7] = onewire.CalcCRC(r[:7])
	return r
}

const (
	cmdReset     = 0xf0
	cmdSRP       = 0xe1
	cmdWCFG      = 0xd2
	cmdChannel   = 0xc3
	cmd1WReset   = 0xb4
	cmd1WBit     = 0x87
	cmd1WWrite   = 0xa5
	cmd1WRead    = 0x96
	cmd1WTriplet = 0x78

	regStatus  = 0xf0
	regData    = 0xe1
	regConfig  = 0xc3
	regChannel = 0xd2
	regPort    = 0xb4

	stBusy = 0x01
	stPPD  = 0x02
	stSD   = 0x04
	stLL   = 0x08
	stRST  = 0x10
	stSBR  = 0x20
	stTSB  = 0x40
	stDIR  = 0x80

	cfgSPU = 0x04
)

var (
	chanWrite = [...]byte{0xf0, 0xe1, 0xd2, 0xc3, 0xb4, 0xa5, 0x96, 0x87}
	chanRead  = [...]byte{0xb8, 0xb1, 0xaa, 0xa3, 0x9c, 0x95, 0x8e, 0x87}
)
