// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package drivers

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/physic"

	"github.com/GermanBionicSystems/owbridge/ds248x"
	"github.com/GermanBionicSystems/owbridge/ds248x/ds248xtest"
	"github.com/GermanBionicSystems/owbridge/owpath"
)

func TestNames(t *testing.T) {
	if diff := cmp.Diff([]string{"ds1420", "ds18b20", "ds2408", "ds2438"}, Names()); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
	for family, name := range DefaultFamilies {
		if _, ok := Decoders[name]; !ok {
			t.Errorf("family %s uses unknown decoder %s", family, name)
		}
	}
}

func TestNewRegistry_fail(t *testing.T) {
	for _, f := range []map[string]string{
		{"28": "ds9999"},
		{"2": "ds18b20"},
		{"zz": "ds18b20"},
	} {
		if _, err := NewRegistry(f); err == nil {
			t.Errorf("%v accepted", f)
		}
	}
}

type fleet struct {
	router  *owpath.Router
	thermo  string
	sw      string
	monitor string
	serial  string
	unknown string
}

func newFleet(t *testing.T) fleet {
	t.Helper()
	thermoROM := ds248xtest.MakeROM(0x28, 0x0e07ac41)
	swROM := ds248xtest.MakeROM(0x29, 0x2408)
	monitorROM := ds248xtest.MakeROM(0x26, 0x2438)
	serialROM := ds248xtest.MakeROM(0x81, 0x3a2e4f)
	unknownROM := ds248xtest.MakeROM(0x3a, 1)
	thermo := ds248xtest.NewDS18B20(thermoROM)
	thermo.Raw = 0x0191
	sim := &ds248xtest.Bus{
		Variant: ds248xtest.DS2482x100,
		Devices: []ds248xtest.Device{
			thermo,
			ds248xtest.NewDS2408(swROM),
			ds248xtest.NewDS2438(monitorROM),
			&ds248xtest.ROMDevice{ID: serialROM},
			&ds248xtest.ROMDevice{ID: unknownROM},
		},
	}
	b, err := ds248x.New(sim, 0x18, nil)
	if err != nil {
		t.Fatal(err)
	}
	reg, err := NewRegistry(nil)
	if err != nil {
		t.Fatal(err)
	}
	return fleet{
		router:  owpath.New(b, reg, nil),
		thermo:  hex.EncodeToString(thermoROM[:]),
		sw:      hex.EncodeToString(swROM[:]),
		monitor: hex.EncodeToString(monitorROM[:]),
		serial:  hex.EncodeToString(serialROM[:]),
		unknown: hex.EncodeToString(unknownROM[:]),
	}
}

func TestRouter_Paths(t *testing.T) {
	f := newFleet(t)
	paths, err := f.router.Paths(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// 10 temperature, 31 I/O, 9 analog, the serial id and the placeholder.
	if len(paths) != 52 {
		t.Fatalf("%d paths", len(paths))
	}
	count := map[string]int{}
	for _, p := range paths {
		count[strings.ReplaceAll(p[:strings.Index(p, "/")], ".", "")]++
	}
	expected := map[string]int{f.thermo: 10, f.sw: 31, f.monitor: 9, f.serial: 1, f.unknown: 1}
	if diff := cmp.Diff(expected, count); diff != "" {
		t.Fatalf("paths per device (-want +got):\n%s", diff)
	}
	want := f.unknown[:2] + "." + f.unknown[2:] + "/not_implemented"
	found := false
	for _, p := range paths {
		found = found || p == want
	}
	if !found {
		t.Fatalf("%s not listed", want)
	}
}

func TestRouter_ReadPath(t *testing.T) {
	f := newFleet(t)
	ctx := context.Background()
	v, err := f.router.ReadPath(ctx, f.thermo+"/temperature12")
	if err != nil {
		t.Fatal(err)
	}
	if expected := physic.ZeroCelsius + 25062500*physic.MicroKelvin; v != expected {
		t.Fatalf("%s", v)
	}
	v, err = f.router.ReadPath(ctx, f.serial[:2]+"."+f.serial[2:]+"/ID")
	if err != nil {
		t.Fatal(err)
	}
	if v != f.serial {
		t.Fatalf("%v", v)
	}
	v, err = f.router.ReadPath(ctx, f.sw+"/sensed/all")
	if err != nil || v != byte(0xff) {
		t.Fatalf("%v %v", v, err)
	}
	if v, err := f.router.ReadPath(ctx, f.unknown+"/not_implemented"); v != nil || err != nil {
		t.Fatalf("%v %v", v, err)
	}
}

func TestRouter_WritePath(t *testing.T) {
	f := newFleet(t)
	ctx := context.Background()
	// Read only and unknown operations yield no value.
	for _, p := range []string{f.thermo + "/temperature12", f.sw + "/power", f.sw + "/nothing"} {
		if v, err := f.router.WritePath(ctx, p, true); v != nil || err != nil {
			t.Fatalf("%s: %v %v", p, v, err)
		}
	}
	if _, err := f.router.WritePath(ctx, f.sw+"/pio/all", 0x0f); err != nil {
		t.Fatal(err)
	}
	v, err := f.router.ReadPath(ctx, f.sw+"/latch/all")
	if err != nil || v != byte(0xf0) {
		t.Fatalf("%v %v", v, err)
	}
}
