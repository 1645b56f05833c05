// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owpath

import (
	"context"
	"encoding/hex"
	"errors"
	"math"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/GermanBionicSystems/owbridge/ds248x"
	"github.com/GermanBionicSystems/owbridge/ds248x/ds248xtest"
)

type fakeDecoder map[string]Op

func (f fakeDecoder) Ops() map[string]Op { return f }

func idOf(rom [8]byte) string {
	return hex.EncodeToString(rom[:])
}

func newBridge(t *testing.T, devices ...ds248xtest.Device) (*ds248x.Dev, *ds248xtest.Bus) {
	t.Helper()
	sim := &ds248xtest.Bus{Devices: devices}
	d, err := ds248x.New(sim, 0x18, nil)
	if err != nil {
		t.Fatal(err)
	}
	return d, sim
}

func TestParsePath(t *testing.T) {
	data := []struct {
		in  string
		out Path
		err bool
	}{
		{"28.ac410e07000074/temperature12", Path{"28ac410e07000074", "temperature12"}, false},
		{"28ac410e07000074/temperature12", Path{"28ac410e07000074", "temperature12"}, false},
		{"29.AC410E07000074/PIO/CH3", Path{"29ac410e07000074", "pio/ch3"}, false},
		{"28.ac410e07000074/", Path{}, true},
		{"28.ac410e07000074", Path{}, true},
		{"28.ac410e0700007/temperature", Path{}, true},
		{"28.ac410e070000745/temperature", Path{}, true},
		{"28.ac410e0700007z/temperature", Path{}, true},
		{"2.8ac410e07000074/temperature", Path{}, true},
		{"", Path{}, true},
	}
	for _, line := range data {
		p, err := ParsePath(line.in)
		if line.err {
			if !errors.Is(err, ErrInvalidPath) {
				t.Errorf("ParsePath(%q): got %v", line.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePath(%q): %v", line.in, err)
			continue
		}
		if p != line.out {
			t.Errorf("ParsePath(%q) = %#v", line.in, p)
		}
	}
	p := Path{ID: "28ac410e07000074", Op: "temperature"}
	if s := p.String(); s != "28.ac410e07000074/temperature" {
		t.Fatal(s)
	}
	if f := p.Family(); f != "28" {
		t.Fatal(f)
	}
}

func TestRegistry(t *testing.T) {
	calls := 0
	r := NewRegistry(map[string]Factory{
		"2A": func() Decoder {
			calls++
			return fakeDecoder{"x": {}}
		},
	})
	a := r.Worker("2a")
	b := r.Worker("2A")
	if calls != 1 {
		t.Fatalf("factory called %d times", calls)
	}
	if _, ok := a.Ops()["x"]; !ok {
		t.Fatal("wrong decoder")
	}
	if _, ok := b.Ops()["x"]; !ok {
		t.Fatal("wrong decoder")
	}
	g := r.Worker("77")
	if diff := cmp.Diff([]string{"not_implemented"}, keys(g.Ops())); diff != "" {
		t.Fatalf("generic decoder (-want +got):\n%s", diff)
	}
	if op := g.Ops()["not_implemented"]; op.Read != nil || op.Write != nil {
		t.Fatal("generic decoder must not have functions")
	}
	if diff := cmp.Diff([]string{"2a"}, r.Families()); diff != "" {
		t.Fatalf("families (-want +got):\n%s", diff)
	}
}

func keys(m map[string]Op) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestRouter_Paths(t *testing.T) {
	a := ds248xtest.MakeROM(0x2a, 1)
	b := ds248xtest.MakeROM(0x77, 2)
	d, _ := newBridge(t, &ds248xtest.ROMDevice{ID: b}, &ds248xtest.ROMDevice{ID: a})
	reg := NewRegistry(map[string]Factory{"2a": func() Decoder {
		return fakeDecoder{"value": {}, "pio/ch1": {}, "pio/ch0": {}}
	}})
	r := New(d, reg, nil)
	got, err := r.Paths(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	ida, idb := idOf(a), idOf(b)
	expected := []string{
		"2a." + ida[2:] + "/pio/ch0",
		"2a." + ida[2:] + "/pio/ch1",
		"2a." + ida[2:] + "/value",
		"77." + idb[2:] + "/not_implemented",
	}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Fatalf("paths (-want +got):\n%s", diff)
	}
}

func TestRouter_ReadWrite(t *testing.T) {
	rom := ds248xtest.MakeROM(0x2a, 1)
	d, _ := newBridge(t, &ds248xtest.ROMDevice{ID: rom})
	var gotID string
	var written any
	reg := NewRegistry(map[string]Factory{"2a": func() Decoder {
		return fakeDecoder{
			"value": {
				Read: func(b Bus, id string) (any, error) {
					gotID = id
					return 42, nil
				},
				Write: func(b Bus, id string, v any) (any, error) {
					written = v
					return true, nil
				},
			},
			"readonly": {Read: func(Bus, string) (any, error) { return "ro", nil }},
			"broken": {Read: func(Bus, string) (any, error) {
				return nil, ErrDeviceNotPresent
			}},
		}
	}})
	r := New(d, reg, nil)
	ctx := context.Background()
	path := "2A." + idOf(rom)[2:] + "/VALUE"
	v, err := r.ReadPath(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if v != 42 || gotID != idOf(rom) {
		t.Fatalf("got %v from %q", v, gotID)
	}
	res, err := r.WritePath(ctx, path, "on")
	if err != nil {
		t.Fatal(err)
	}
	if res != true || written != "on" {
		t.Fatalf("got %v, wrote %v", res, written)
	}

	// Missing functions and operations are not errors.
	for _, p := range []string{"readonly", "unknown"} {
		res, err := r.WritePath(ctx, idOf(rom)+"/"+p, 1)
		if res != nil || err != nil {
			t.Errorf("write %s: got %v, %v", p, res, err)
		}
	}
	if v, err := r.ReadPath(ctx, idOf(rom)+"/unknown"); v != nil || err != nil {
		t.Fatalf("got %v, %v", v, err)
	}
	if _, err := r.ReadPath(ctx, idOf(rom)+"/broken"); !errors.Is(err, ErrDeviceNotPresent) {
		t.Fatalf("got %v", err)
	}
	if _, err := r.ReadPath(ctx, "xx/value"); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("got %v", err)
	}
}

func TestRouter_lockTimeout(t *testing.T) {
	rom := ds248xtest.MakeROM(0x2a, 1)
	d, _ := newBridge(t, &ds248xtest.ROMDevice{ID: rom})
	reg := NewRegistry(map[string]Factory{"2a": func() Decoder {
		return fakeDecoder{"value": {Read: func(Bus, string) (any, error) { return 1, nil }}}
	}})
	r := New(d, reg, &Opts{ReadTimeout: 10 * time.Millisecond})
	if err := d.Lock(context.Background()); err != nil {
		t.Fatal(err)
	}
	_, err := r.ReadPath(context.Background(), idOf(rom)+"/value")
	d.Unlock()
	if !errors.Is(err, ds248x.ErrLockTimeout) {
		t.Fatalf("got %v", err)
	}
	if v, err := r.ReadPath(context.Background(), idOf(rom)+"/value"); err != nil || v != 1 {
		t.Fatalf("got %v, %v", v, err)
	}
}

// TestRouter_serialized checks that two concurrent path reads never
// interleave their bus sequences.
func TestRouter_serialized(t *testing.T) {
	a := ds248xtest.MakeROM(0x2a, 1)
	b := ds248xtest.MakeROM(0x2a, 2)
	d, sim := newBridge(t, &ds248xtest.ROMDevice{ID: a}, &ds248xtest.ROMDevice{ID: b})
	reg := NewRegistry(map[string]Factory{"2a": func() Decoder {
		return fakeDecoder{"slow": {Read: func(bus Bus, id string) (any, error) {
			for i := 0; i < 4; i++ {
				if err := Command(bus, id, 0x00); err != nil {
					return nil, err
				}
				runtime.Gosched()
			}
			return nil, nil
		}}}
	}})
	r := New(d, reg, nil)
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, id := range []string{idOf(a), idOf(b)} {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			_, err := r.ReadPath(context.Background(), path)
			errs <- err
		}(id + "/slow")
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
	if len(sim.Matches) != 8 {
		t.Fatalf("%d matches", len(sim.Matches))
	}
	transitions := 0
	for i := 1; i < len(sim.Matches); i++ {
		if sim.Matches[i] != sim.Matches[i-1] {
			transitions++
		}
	}
	if transitions != 1 {
		t.Fatalf("sessions interleaved: %v", sim.Matches)
	}
}

func TestReadFrame(t *testing.T) {
	rom := ds248xtest.MakeROM(0x28, 1)
	dev := ds248xtest.NewDS18B20(rom)
	d, _ := newBridge(t, dev)
	dev.CorruptReads = Retries - 1
	r, err := ReadFrame(d, idOf(rom), []byte{0xbe}, 9, CRC8)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(dev.Scratchpad[:], r[:8]); diff != "" {
		t.Fatalf("scratchpad (-want +got):\n%s", diff)
	}
	dev.CorruptReads = Retries
	if _, err := ReadFrame(d, idOf(rom), []byte{0xbe}, 9, CRC8); !errors.Is(err, ds248x.ErrCRCMismatch) {
		t.Fatalf("got %v", err)
	}
	dev.CorruptReads = 0

	// Nobody answers to another id.
	other := idOf(ds248xtest.MakeROM(0x28, 2))
	if _, err := ReadFrame(d, other, []byte{0xbe}, 9, CRC8); !errors.Is(err, ErrDeviceNotPresent) {
		t.Fatalf("got %v", err)
	}
}

func TestShortRead(t *testing.T) {
	rom := ds248xtest.MakeROM(0x28, 1)
	dev := ds248xtest.NewDS18B20(rom)
	d, _ := newBridge(t, dev)
	r, err := ShortRead(d, idOf(rom), []byte{0xbe}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(dev.Scratchpad[:2], r); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestAllFF(t *testing.T) {
	if AllFF(nil) || AllFF([]byte{0xff, 0xfe}) || !AllFF([]byte{0xff, 0xff}) {
		t.Fatal("AllFF")
	}
}

func TestBool(t *testing.T) {
	data := []struct {
		in  any
		out bool
		err bool
	}{
		{true, true, false},
		{false, false, false},
		{1, true, false},
		{uint8(0), false, false},
		{float64(1), true, false},
		{"ON", true, false},
		{" off ", false, false},
		{"1", true, false},
		{2, false, true},
		{"maybe", false, true},
		{nil, false, true},
	}
	for _, line := range data {
		got, err := Bool(line.in)
		if line.err {
			if !errors.Is(err, ErrInvalidValue) {
				t.Errorf("Bool(%v): got %v", line.in, err)
			}
			continue
		}
		if err != nil || got != line.out {
			t.Errorf("Bool(%v) = %v, %v", line.in, got, err)
		}
	}
}

func TestByte(t *testing.T) {
	data := []struct {
		in  any
		out byte
		err bool
	}{
		{0, 0, false},
		{255, 255, false},
		{int64(17), 17, false},
		{"0x3c", 0x3c, false},
		{"0b101", 5, false},
		{"200", 200, false},
		{256, 0, true},
		{-1, 0, true},
		{"256", 0, true},
		{1.5, 0, true},
		{true, 0, true},
		{uint(7), 7, false},
		{uint64(200), 200, false},
		{uint64(math.MaxUint64), 0, true},
	}
	for _, line := range data {
		got, err := Byte(line.in)
		if line.err {
			if !errors.Is(err, ErrInvalidValue) {
				t.Errorf("Byte(%v): got %v", line.in, err)
			}
			continue
		}
		if err != nil || got != line.out {
			t.Errorf("Byte(%v) = %v, %v", line.in, got, err)
		}
	}
}

func TestInteger(t *testing.T) {
	data := []struct {
		in  any
		out int64
		ok  bool
	}{
		{uint64(math.MaxInt64), math.MaxInt64, true},
		{uint64(math.MaxInt64) + 1, 0, false},
		{uint(300), 300, true},
		{int8(-3), -3, true},
		{float64(12), 12, true},
		{"12", 0, false},
	}
	for _, line := range data {
		got, ok := integer(line.in)
		if ok != line.ok || got != line.out {
			t.Errorf("integer(%v) = %d, %t", line.in, got, ok)
		}
	}
}
