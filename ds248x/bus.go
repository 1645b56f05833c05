// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds248x

import (
	"periph.io/x/conn/v3/onewire"
)

// Tx implements onewire.Bus.
//
// It locks the bus for the whole transaction, resets the wire, writes w and
// then reads len(r) bytes. With onewire.StrongPullup the strong pull-up is
// armed before the last byte so that it stays on after the transaction.
func (d *Dev) Tx(w, r []byte, power onewire.Pullup) error {
	if err := d.lockDefault(); err != nil {
		return err
	}
	defer d.Unlock()

	if _, err := d.ResetWire(); err != nil {
		return err
	}
	for i, b := range w {
		if power == onewire.StrongPullup && i == len(w)-1 && len(r) == 0 {
			// This is the last byte, need to activate strong pull-up.
			if err := d.StrongPullup(); err != nil {
				return err
			}
		}
		if err := d.WriteData([]byte{b}); err != nil {
			return err
		}
	}
	for i := range r {
		if power == onewire.StrongPullup && i == len(r)-1 {
			if err := d.StrongPullup(); err != nil {
				return err
			}
		}
		b, err := d.ReadData(1)
		if err != nil {
			return err
		}
		r[i] = b[0]
	}
	return nil
}

// Search implements onewire.Bus.
func (d *Dev) Search(alarmOnly bool) ([]onewire.Address, error) {
	if err := d.lockDefault(); err != nil {
		return nil, err
	}
	defer d.Unlock()
	var ids []string
	var err error
	if alarmOnly {
		ids, err = d.SearchAlarm()
	} else {
		ids, err = d.SearchAll()
	}
	out := make([]onewire.Address, 0, len(ids))
	for _, id := range ids {
		// The ids were validated by the search.
		r, _ := ParseROM(id)
		out = append(out, r.Address())
	}
	return out, err
}

var _ onewire.Bus = &Dev{}
