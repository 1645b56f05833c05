// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds248xtest

import "encoding/hex"

type phase int

const (
	phaseIdle     phase = iota // no reset since power up or bus unusable
	phaseROM                   // waiting for a ROM command
	phaseReadROM               // sending the ROM id
	phaseMatch                 // receiving the ROM id to match
	phaseSearch                // search triplets
	phaseFunction              // selected devices get the bytes
)

// wire is the state of the simulated 1-wire bus.
type wire struct {
	phase    phase
	selected []Device
	last     Device // last device selected on its own, for resume
	alarm    bool
	buf      []byte
	bit      int
}

func (w *wire) reset(b *Bus) {
	for _, d := range b.Devices {
		d.Reset()
	}
	w.phase = phaseROM
	w.selected = nil
	w.buf = w.buf[:0]
	w.bit = 0
}

func (w *wire) write(b *Bus, v byte) {
	switch w.phase {
	case phaseROM:
		w.romCommand(b, v)
	case phaseMatch:
		w.buf = append(w.buf, v)
		if len(w.buf) < 8 {
			return
		}
		b.Matches = append(b.Matches, hex.EncodeToString(w.buf))
		w.selected = nil
		for _, d := range b.Devices {
			if rom := d.ROM(); string(rom[:]) == string(w.buf) {
				w.selected = append(w.selected, d)
				w.last = d
			}
		}
		w.phase = phaseFunction
	case phaseFunction:
		for _, d := range w.selected {
			d.Write(v)
		}
	}
}

func (w *wire) romCommand(b *Bus, v byte) {
	w.buf = w.buf[:0]
	switch v {
	case 0x33:
		w.selected = append([]Device(nil), b.Devices...)
		w.phase = phaseReadROM
	case 0x55:
		w.phase = phaseMatch
	case 0xcc:
		w.selected = append([]Device(nil), b.Devices...)
		w.phase = phaseFunction
	case 0xa5:
		w.selected = nil
		if w.last != nil {
			w.selected = []Device{w.last}
		}
		w.phase = phaseFunction
	case 0xf0, 0xec:
		w.selected = nil
		for _, d := range b.Devices {
			if v == 0xec {
				if a, ok := d.(Alarmer); !ok || !a.Alarm() {
					continue
				}
			}
			w.selected = append(w.selected, d)
		}
		w.bit = 0
		w.phase = phaseSearch
	default:
		w.phase = phaseIdle
	}
}

func (w *wire) read(b *Bus) byte {
	switch w.phase {
	case phaseReadROM:
		// All the devices answer at once, the line is a wired-AND.
		v := byte(0xff)
		for _, d := range w.selected {
			rom := d.ROM()
			v &= rom[len(w.buf)]
		}
		w.buf = append(w.buf, v)
		if len(w.buf) == 8 {
			w.phase = phaseFunction
		}
		return v
	case phaseFunction:
		v := byte(0xff)
		for _, d := range w.selected {
			v &= d.Read()
		}
		return v
	}
	return 0xff
}

// triplet runs one search step and returns the SBR, TSB and DIR status bits.
func (w *wire) triplet(b *Bus, dir bool) byte {
	if w.phase != phaseSearch {
		return stSBR | stTSB | stDIR
	}
	has0, has1 := false, false
	for _, d := range w.selected {
		if romBit(d, w.bit) {
			has1 = true
		} else {
			has0 = true
		}
	}
	var status byte
	if !has0 {
		status |= stSBR
	}
	if !has1 {
		status |= stTSB
	}
	switch {
	case has0 && has1:
	case has1:
		dir = true
	case has0:
		dir = false
	default:
		dir = true
	}
	if dir {
		status |= stDIR
	}
	var keep []Device
	for _, d := range w.selected {
		if romBit(d, w.bit) == dir {
			keep = append(keep, d)
		}
	}
	w.selected = keep
	w.bit++
	if w.bit == 64 {
		w.phase = phaseFunction
		if len(keep) == 1 {
			w.last = keep[0]
		}
	}
	return status
}

func romBit(d Device, i int) bool {
	rom := d.ROM()
	return rom[i/8]&(1<<uint(i%8)) != 0
}
