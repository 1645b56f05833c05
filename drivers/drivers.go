// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package drivers lists the decoders available to the path router and the
// default mapping of 1-wire family codes to them.
package drivers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/GermanBionicSystems/owbridge/ds1420"
	"github.com/GermanBionicSystems/owbridge/ds18b20"
	"github.com/GermanBionicSystems/owbridge/ds2408"
	"github.com/GermanBionicSystems/owbridge/ds2438"
	"github.com/GermanBionicSystems/owbridge/owpath"
)

// Decoders maps a decoder name to its constructor.
var Decoders = map[string]owpath.Factory{
	"ds1420":  func() owpath.Decoder { return ds1420.NewDecoder() },
	"ds18b20": func() owpath.Decoder { return ds18b20.NewDecoder() },
	"ds2408":  func() owpath.Decoder { return ds2408.NewDecoder() },
	"ds2438":  func() owpath.Decoder { return ds2438.NewDecoder() },
}

// DefaultFamilies maps the 2 hex digit family codes to decoder names.
var DefaultFamilies = map[string]string{
	"01": "ds1420",
	"81": "ds1420",
	"26": "ds2438",
	"28": "ds18b20",
	"29": "ds2408",
}

// Names returns the sorted names of the decoders.
func Names() []string {
	out := make([]string, 0, len(Decoders))
	for n := range Decoders {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// NewRegistry returns a registry decoding each family of families with the
// named decoder. A nil map selects DefaultFamilies.
func NewRegistry(families map[string]string) (*owpath.Registry, error) {
	if families == nil {
		families = DefaultFamilies
	}
	m := make(map[string]owpath.Factory, len(families))
	for family, name := range families {
		if err := checkFamily(family); err != nil {
			return nil, err
		}
		f, ok := Decoders[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("drivers: unknown decoder %q for family %s", name, family)
		}
		m[family] = f
	}
	return owpath.NewRegistry(m), nil
}

func checkFamily(family string) error {
	if len(family) != 2 || strings.Trim(strings.ToLower(family), "0123456789abcdef") != "" {
		return fmt.Errorf("drivers: family code %q is not 2 hex digits", family)
	}
	return nil
}
