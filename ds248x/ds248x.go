// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ds248x drives the DS2482-100, DS2482-800 and DS2483 I²C to 1-wire
// bridges.
//
// The Dev type exposes the raw bridge primitives (1-wire reset, bit, byte and
// triplet cycles, ROM commands and the ROM search) and also implements
// onewire.Bus so that any periph 1-wire driver can use it.
//
// The bridge and the 1-wire bus behind it are a single non-reentrant
// resource. The primitives do not lock; callers running a multi-step
// sequence must hold the bus with Lock/Unlock for its whole duration. Tx and
// Search lock on their own.
//
// # Datasheet
//
// https://www.analog.com/media/en/technical-documentation/data-sheets/DS2482-100.pdf
//
// https://www.analog.com/media/en/technical-documentation/data-sheets/DS2482-800.pdf
package ds248x

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
)

// PupOhm controls the strength of the passive pull-up resistor
// on the 1-wire data line. The default value is 1000Ω.
type PupOhm uint8

const (
	// R500Ω passive pull-up resistor.
	R500Ω = 4
	// R1000Ω passive pull-up resistor.
	R1000Ω = 6
)

// Opts contains options to pass to the constructor.
type Opts struct {
	PassivePullup bool // false:use active pull-up, true: disable active pullup

	// The following options are only available on the ds2483 (not ds2482-100).
	// The actual value used is the closest possible value (rounded up or down).
	ResetLow       time.Duration // reset low time, range 440μs..740μs
	PresenceDetect time.Duration // presence detect sample time, range 58μs..76μs
	Write0Low      time.Duration // write zero low time, range 52μs..70μs
	Write0Recovery time.Duration // write zero recovery time, range 2750ns..25250ns
	PullupRes      PupOhm        // passive pull-up resistance, true: 500Ω, false: 1kΩ

	// PollInterval is the sleep between two status reads while the bridge
	// reports busy.
	PollInterval time.Duration
	// WaitTimeout bounds the whole busy-wait after a bridge command.
	WaitTimeout time.Duration
	// LockTimeout bounds how long Tx and Search wait for the bus lock.
	LockTimeout time.Duration

	// Logger receives diagnostics. nil disables logging.
	Logger *slog.Logger
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	PassivePullup:  false,
	ResetLow:       560 * time.Microsecond,
	PresenceDetect: 68 * time.Microsecond,
	Write0Low:      64 * time.Microsecond,
	Write0Recovery: 5250 * time.Nanosecond,
	PullupRes:      R1000Ω,
	PollInterval:   10 * time.Millisecond,
	WaitTimeout:    200 * time.Millisecond,
	LockTimeout:    5 * time.Second,
}

// New returns a device object that communicates over I²C to the DS2482/DS2483
// controller.
//
// The bridge is reset, its configuration register is written and confirmed
// and the chip variant is detected.
//
// Valid I²C addresses are 0x18 to 0x1f.
func New(i i2c.Bus, addr uint16, opts *Opts) (*Dev, error) {
	if addr < 0x18 || addr > 0x1f {
		return nil, errors.New("ds248x: given address not supported by device")
	}
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultOpts.PollInterval
	}
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = DefaultOpts.WaitTimeout
	}
	if o.LockTimeout <= 0 {
		o.LockTimeout = DefaultOpts.LockTimeout
	}
	log := o.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d := &Dev{
		i2c:     &i2c.Dev{Bus: i, Addr: addr},
		sem:     semaphore.NewWeighted(1),
		opts:    o,
		log:     log.With("component", "ds248x"),
		channel: -1,
	}
	if err := d.makeDev(); err != nil {
		return nil, err
	}
	d.log.Info("bridge ready", "device", d.String(), "channels", d.channels())
	return d, nil
}

// Dev is a handle to a ds248x device and it implements the onewire.Bus
// interface.
//
// Errors are returned to the caller of the primitive that hit them; Dev keeps
// no error state between calls. The bus lock, the selected channel and the
// search cursor are the only state it carries.
type Dev struct {
	sem      *semaphore.Weighted // exclusive session over bridge and bus
	i2c      conn.Conn           // i2c device handle for the ds248x
	isDS248x int                 // 0: ds2482-100 1: ds2482-800 2: ds2483,
	confReg  byte                // configuration nibble last written, without SPU
	opts     Opts
	log      *slog.Logger

	channel int // selected 1-wire channel, -1 before the first bridge reset

	// Search cursor, owned by the search algorithm.
	lastFound    *ROM
	lastConflict int
}

func (d *Dev) String() string {
	switch d.isDS248x {
	case isDS2482x100:
		return fmt.Sprintf("DS2482-100{%s}", d.i2c)
	case isDS2482x800:
		return fmt.Sprintf("DS2482-800{%s}", d.i2c)
	case isDS2483:
		return fmt.Sprintf("DS2483{%s}", d.i2c)
	default:
		return fmt.Sprintf("Undefined{%s}", d.i2c)
	}
}

// Halt implements conn.Resource.
func (d *Dev) Halt() error {
	return nil
}

// Lock acquires exclusive use of the bridge and its bus. It fails with
// ErrLockTimeout when ctx is done before the bus becomes available.
//
// Every successful Lock must be paired with Unlock.
func (d *Dev) Lock(ctx context.Context) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		d.log.Warn("bus lock not acquired", "error", err)
		return fmt.Errorf("%w: %w", ErrLockTimeout, err)
	}
	return nil
}

// Unlock releases the bus acquired with Lock.
func (d *Dev) Unlock() {
	d.sem.Release(1)
}

// lockDefault locks using the configured LockTimeout.
func (d *Dev) lockDefault() error {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.LockTimeout)
	defer cancel()
	return d.Lock(ctx)
}

// channels returns the number of 1-wire channels of the detected chip.
func (d *Dev) channels() int {
	if d.isDS248x == isDS2482x800 {
		return len(chanWrite)
	}
	return 1
}

func (d *Dev) makeDev() error {
	// Issue a reset command.
	status, err := d.ResetBridge()
	if err != nil {
		return fmt.Errorf("ds248x: error while resetting: %w", err)
	}
	// Confirm that we have a responding ds248x.
	if status&statusRST == 0 {
		return fmt.Errorf("ds248x: invalid status register value: %#x, expected RST bit", status)
	}

	// Write the device configuration register to get the chip out of reset
	// state, immediately read it back to get confirmation.
	cfg := BridgeConfig{ActivePullup: On}
	if d.opts.PassivePullup {
		cfg.ActivePullup = Off
	}
	if _, err := d.ConfigureBridge(cfg, true); err != nil {
		return fmt.Errorf("ds248x: failure to write device config register: %w", err)
	}

	// Set the read ptr to the port configuration register to determine whether we have a
	// ds2483 vs ds2482-100. This will fail on devices that do not have a port config
	// register, such as the ds2482-100.
	if d.i2c.Tx([]byte{cmdSetReadPtr, regPCR}, nil) == nil {
		d.isDS248x = isDS2483
		o := &d.opts
		buf := []byte{cmdAdjPort,
			byte(0x00 + ((o.ResetLow/time.Microsecond - 430) / 20 & 0x0f)),
			byte(0x20 + ((o.PresenceDetect/time.Microsecond - 55) / 2 & 0x0f)),
			byte(0x40 + ((o.Write0Low/time.Microsecond - 51) / 2 & 0x0f)),
			byte(0x60 + (((o.Write0Recovery-1250)/2500 + 5) & 0x0f)),
			byte(0x80 + (o.PullupRes & 0x0f)),
		}
		if err := d.i2c.Tx(buf, nil); err != nil {
			return fmt.Errorf("ds248x: error while setting port config values: %w", err)
		}
	} else if d.i2c.Tx([]byte{cmdSetReadPtr, regCSR}, nil) == nil {
		d.isDS248x = isDS2482x800
		// The chip comes out of reset on channel 0.
		d.channel = -1
		if _, err := d.SelectChannel(0); err != nil {
			return fmt.Errorf("ds2482-800: error while selecting channel: %w", err)
		}
	} else {
		d.isDS248x = isDS2482x100
	}
	return nil
}

var sleep = time.Sleep
var now = time.Now

var _ conn.Resource = &Dev{}

const (
	cmdReset         = 0xf0 // reset ds248x
	cmdSetReadPtr    = 0xe1 // set the read pointer
	cmdWriteConfig   = 0xd2 // write the device configuration
	cmdAdjPort       = 0xc3 // adjust 1-wire port (ds2483)
	cmdChannelSelect = 0xc3 // channel select (ds2482-800)
	cmd1WReset       = 0xb4 // reset the 1-wire bus
	cmd1WBit         = 0x87 // perform a single-bit transaction on the 1-wire bus
	cmd1WWrite       = 0xa5 // perform a byte write on the 1-wire bus
	cmd1WRead        = 0x96 // perform a byte read on the 1-wire bus
	cmd1WTriplet     = 0x78 // perform a triplet operation (2 bit reads, a bit write)

	regDCR    = 0xc3 // read ptr for device configuration register
	regStatus = 0xf0 // read ptr for status register
	regRDR    = 0xe1 // read ptr for read-data register
	regPCR    = 0xb4 // read ptr for port configuration register
	regCSR    = 0xd2 // read ptr for channel selection register

	statusBusy = 0x01 // 1-wire busy
	statusPPD  = 0x02 // presence pulse detected
	statusSD   = 0x04 // short detected
	statusLL   = 0x08 // logic level of the 1-wire line
	statusRST  = 0x10 // device reset has occurred
	statusSBR  = 0x20 // single bit result
	statusTSB  = 0x40 // triplet second bit
	statusDIR  = 0x80 // branch direction taken

	cfgAPU = 0x01 // active pull-up
	cfgPPM = 0x02 // presence pulse masking (reserved on the ds2482-800)
	cfgSPU = 0x04 // strong pull-up
	cfg1WS = 0x08 // 1-wire overdrive speed

	isDS2482x100 = 0 // DS2482-100 selected
	isDS2482x800 = 1 // DS2482-800 selected
	isDS2483     = 2 // DS2483 selected
)

// ds2482-800 channel selection codes to be written and read back.
var (
	chanWrite = [...]byte{0xf0, 0xe1, 0xd2, 0xc3, 0xb4, 0xa5, 0x96, 0x87}
	chanRead  = [...]byte{0xb8, 0xb1, 0xaa, 0xa3, 0x9c, 0x95, 0x8e, 0x87}
)
