// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds248x

import "fmt"

// SearchAll enumerates all devices on the bus and returns their ROM ids in
// discovery order. It does not lock the bus.
//
// If an error occurs during the search the already-discovered devices are
// returned with the error.
func (d *Dev) SearchAll() ([]string, error) {
	return d.search(owSearchROM)
}

// SearchAlarm enumerates the devices that are in alarm state.
func (d *Dev) SearchAlarm() ([]string, error) {
	return d.search(owAlarmROM)
}

func (d *Dev) search(cmd byte) ([]string, error) {
	d.resetCursor()
	defer d.resetCursor()
	var found []string
	seen := map[ROM]bool{}
	for {
		rom, ok, err := d.searchROM(cmd)
		if err != nil {
			return found, err
		}
		if !ok {
			// Nobody answered the conditional search.
			return found, nil
		}
		if seen[rom] {
			return found, fmt.Errorf("%w: %s found twice", ErrBadSearchResult, rom)
		}
		seen[rom] = true
		found = append(found, rom.String())
		if d.lastConflict == 0 {
			break
		}
	}
	d.log.Debug("search done", "cmd", fmt.Sprintf("%#x", cmd), "found", len(found))
	return found, nil
}

// SearchByFamily enumerates the devices whose family code is code.
//
// The cursor is seeded so that the first pass descends into the subtree
// of the family; the search stops once the remaining branches differ in the
// family byte.
func (d *Dev) SearchByFamily(code byte) ([]string, error) {
	d.resetCursor()
	defer d.resetCursor()
	d.lastFound = &ROM{code}
	d.lastConflict = 64
	var found []string
	for {
		rom, ok, err := d.searchROM(owSearchROM)
		if err != nil {
			return found, err
		}
		if !ok {
			return found, nil
		}
		if rom.Family() == code {
			found = append(found, rom.String())
		}
		if d.lastConflict <= 7 || len(found) == 0 {
			break
		}
	}
	d.log.Debug("family search done", "family", fmt.Sprintf("%02x", code), "found", len(found))
	return found, nil
}

// searchROM runs one search pass from bit 1 to 64 following the cursor and
// moves the cursor to the device found. ok is false when an alarm search got
// no answer.
func (d *Dev) searchROM(cmd byte) (rom ROM, ok bool, err error) {
	if _, err := d.ResetWire(); err != nil {
		return rom, false, err
	}
	if err := d.WriteData([]byte{cmd}); err != nil {
		return rom, false, err
	}
	conflict := 0
	for bit := 1; bit <= 64; bit++ {
		offset, mask := (bit-1)/8, byte(1)<<uint((bit-1)%8)
		var dir bool
		if d.lastFound != nil && bit < d.lastConflict {
			dir = d.lastFound[offset]&mask != 0
		} else {
			dir = bit == d.lastConflict
		}
		status, err := d.Triplet(dir)
		if err != nil {
			return rom, false, err
		}
		sbr := status&statusSBR != 0
		tsb := status&statusTSB != 0
		taken := status&statusDIR != 0
		if sbr && tsb {
			if bit == 1 && cmd == owAlarmROM {
				return rom, false, nil
			}
			return rom, false, fmt.Errorf("%w: at bit %d", ErrBadSearchResult, bit)
		}
		if !sbr && !tsb && !taken {
			conflict = bit
		}
		if taken {
			rom[offset] |= mask
		}
	}
	if err := rom.Validate(); err != nil {
		return rom, false, err
	}
	found := rom
	d.lastFound = &found
	d.lastConflict = conflict
	return rom, true, nil
}

func (d *Dev) resetCursor() {
	d.lastFound = nil
	d.lastConflict = 0
}
