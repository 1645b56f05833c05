// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds248x

import "fmt"

// Switch requests a change of one configuration bit.
type Switch int8

const (
	// Keep leaves the bit as currently configured.
	Keep Switch = iota
	// On sets the bit.
	On
	// Off clears the bit.
	Off
)

func (s Switch) apply(cfg, bit byte) byte {
	switch s {
	case On:
		return cfg | bit
	case Off:
		return cfg &^ bit
	default:
		return cfg
	}
}

// BridgeConfig lists the configuration register bits ConfigureBridge can
// change.
type BridgeConfig struct {
	ActivePullup Switch
	StrongPullup Switch
	Overdrive    Switch
}

// Reset clears the search cursor, resets the bridge and then the 1-wire bus.
// It returns the status byte of the 1-wire reset.
func (d *Dev) Reset() (byte, error) {
	d.resetCursor()
	if _, err := d.ResetBridge(); err != nil {
		return 0, err
	}
	return d.ResetWire()
}

// ResetBridge issues a device reset of the ds248x and returns its status.
//
// The reset clears the configuration register and selects channel 0.
func (d *Dev) ResetBridge() (byte, error) {
	if err := d.i2cWrite(cmdReset); err != nil {
		return 0, err
	}
	status, err := d.waitIdle(false)
	if err != nil {
		return 0, err
	}
	d.channel = 0
	d.confReg = 0
	return status, nil
}

// ResetWire issues a reset on the 1-wire bus and returns the status byte.
//
// It fails with ErrBusShort if the bridge detected a short and with
// ErrNoDevicePresent if no device answered with a presence pulse.
func (d *Dev) ResetWire() (byte, error) {
	if _, err := d.waitIdle(true); err != nil {
		return 0, err
	}
	if err := d.i2cWrite(cmd1WReset); err != nil {
		return 0, err
	}
	status, err := d.waitIdle(false)
	if err != nil {
		return 0, err
	}
	if status&statusSD != 0 {
		return status, ErrBusShort
	}
	if status&statusPPD == 0 {
		return status, ErrNoDevicePresent
	}
	return status, nil
}

// ConfigureBridge reads the configuration register, applies the requested
// changes and writes it back. The new configuration nibble is returned.
//
// When confirm is true the register is read back and ErrConfigMismatch is
// returned if it does not hold the written value.
func (d *Dev) ConfigureBridge(c BridgeConfig, confirm bool) (byte, error) {
	if _, err := d.waitIdle(true); err != nil {
		return 0, err
	}
	cfg, err := d.readRegister(regDCR)
	if err != nil {
		return 0, err
	}
	cfg &= 0x0f
	cfg = c.ActivePullup.apply(cfg, cfgAPU)
	cfg = c.StrongPullup.apply(cfg, cfgSPU)
	cfg = c.Overdrive.apply(cfg, cfg1WS)

	if err := d.i2cWrite(cmdWriteConfig, encodeConfig(cfg)); err != nil {
		return 0, err
	}
	if confirm {
		// The read pointer is left on the configuration register, which
		// reads back as the bottom nibble only.
		resp, err := d.i2cRead()
		if err != nil {
			return 0, err
		}
		if resp != cfg {
			return resp, fmt.Errorf("%w: wrote %#x got %#x back", ErrConfigMismatch, cfg, resp)
		}
	}
	d.confReg = cfg &^ cfgSPU
	return cfg, nil
}

// StrongPullup arms the strong pull-up; the bridge applies it after the next
// 1-wire byte or bit and releases it on the following 1-wire command.
//
// The bridge clears SPU on its own, so the other bits are written as last
// configured without reading the register first.
func (d *Dev) StrongPullup() error {
	if _, err := d.waitIdle(true); err != nil {
		return err
	}
	return d.i2cWrite(cmdWriteConfig, encodeConfig(d.confReg|cfgSPU))
}

// SelectChannel selects the active 1-wire channel of a DS2482-800 and
// returns the channel selection register value. Single channel chips only
// accept channel 0.
//
// Selecting the current channel is a no-op.
func (d *Dev) SelectChannel(n int) (byte, error) {
	if n < 0 || n >= d.channels() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidChannel, n)
	}
	if d.channel == n {
		return chanRead[n], nil
	}
	if _, err := d.waitIdle(true); err != nil {
		return 0, err
	}
	if err := d.i2cWrite(cmdChannelSelect, chanWrite[n]); err != nil {
		return 0, err
	}
	resp, err := d.i2cRead()
	if err != nil {
		return 0, err
	}
	if resp != chanRead[n] {
		d.channel = -1
		return resp, fmt.Errorf("%w: channel %d read back %#x", ErrChannelSelectFailed, n, resp)
	}
	d.channel = n
	return resp, nil
}

// SelectedChannel reads which 1-wire channel the DS2482-800 has selected. On
// other chips it always returns 0.
func (d *Dev) SelectedChannel() (int, error) {
	if d.isDS248x != isDS2482x800 {
		return 0, nil
	}
	csr, err := d.readRegister(regCSR)
	if err != nil {
		return 0, err
	}
	for i, c := range chanRead {
		if c == csr {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown selection code %#x", ErrChannelSelectFailed, csr)
}

// WriteData writes the bytes to the 1-wire bus, one write byte cycle per
// byte.
func (d *Dev) WriteData(w []byte) error {
	if _, err := d.waitIdle(true); err != nil {
		return err
	}
	for _, b := range w {
		if err := d.i2cWrite(cmd1WWrite, b); err != nil {
			return err
		}
		if _, err := d.waitIdle(false); err != nil {
			return err
		}
	}
	return nil
}

// ReadData reads n bytes from the 1-wire bus.
func (d *Dev) ReadData(n int) ([]byte, error) {
	r := make([]byte, n)
	if _, err := d.waitIdle(true); err != nil {
		return nil, err
	}
	for i := range r {
		if err := d.i2cWrite(cmd1WRead); err != nil {
			return nil, err
		}
		if _, err := d.waitIdle(false); err != nil {
			return nil, err
		}
		b, err := d.readRegister(regRDR)
		if err != nil {
			return nil, err
		}
		r[i] = b
	}
	return r, nil
}

// Bit performs a single bit time slot: it writes a 1 (which is also a read
// slot) when setHigh is true, a 0 otherwise, and returns the sampled bit.
func (d *Dev) Bit(setHigh bool) (bool, error) {
	if _, err := d.waitIdle(true); err != nil {
		return false, err
	}
	if err := d.i2cWrite(cmd1WBit, dirByte(setHigh)); err != nil {
		return false, err
	}
	status, err := d.waitIdle(false)
	if err != nil {
		return false, err
	}
	return status&statusSBR != 0, nil
}

// Triplet performs a search triplet: two read slots followed by a write slot
// of the branch chosen by the bridge, dir being used when both bit values
// are present. It returns the raw status byte.
func (d *Dev) Triplet(dir bool) (byte, error) {
	if _, err := d.waitIdle(true); err != nil {
		return 0, err
	}
	if err := d.i2cWrite(cmd1WTriplet, dirByte(dir)); err != nil {
		return 0, err
	}
	return d.waitIdle(false)
}

// MatchROM resets the bus and addresses the device with the given ROM id.
func (d *Dev) MatchROM(rom string) error {
	r, err := ParseROM(rom)
	if err != nil {
		return err
	}
	if _, err := d.ResetWire(); err != nil {
		return err
	}
	return d.WriteData(append([]byte{owMatchROM}, r[:]...))
}

// SkipROM resets the bus and addresses all devices.
func (d *Dev) SkipROM() error {
	if _, err := d.ResetWire(); err != nil {
		return err
	}
	return d.WriteData([]byte{owSkipROM})
}

// ResumeROM resets the bus and addresses again the device selected by the
// last match ROM or search.
func (d *Dev) ResumeROM() error {
	if _, err := d.ResetWire(); err != nil {
		return err
	}
	return d.WriteData([]byte{owResumeROM})
}

// ReadROM reads the ROM id of the only device on the bus.
func (d *Dev) ReadROM() (string, error) {
	if _, err := d.ResetWire(); err != nil {
		return "", err
	}
	if err := d.WriteData([]byte{owReadROM}); err != nil {
		return "", err
	}
	b, err := d.ReadData(romSize)
	if err != nil {
		return "", err
	}
	var r ROM
	copy(r[:], b)
	if err := r.Validate(); err != nil {
		return "", err
	}
	return r.String(), nil
}

// SendCommand addresses the device rom, or all devices when rom is empty,
// and sends cmd.
func (d *Dev) SendCommand(cmd byte, rom string) error {
	var err error
	if rom != "" {
		err = d.MatchROM(rom)
	} else {
		err = d.SkipROM()
	}
	if err != nil {
		return err
	}
	return d.WriteData([]byte{cmd})
}

func dirByte(b bool) byte {
	if b {
		return 0x80
	}
	return 0
}

// 1-wire ROM commands.
const (
	owReadROM   = 0x33
	owMatchROM  = 0x55
	owSkipROM   = 0xcc
	owResumeROM = 0xa5
	owSearchROM = 0xf0
	owAlarmROM  = 0xec
)
