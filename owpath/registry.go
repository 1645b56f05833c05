// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owpath

import (
	"strings"
	"sync"
)

// Registry maps family codes to decoders.
//
// Decoders are created on first use and kept for the lifetime of the
// Registry. Families without a Factory share a generic decoder that exposes
// no operations.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	workers   map[string]Decoder
}

// NewRegistry returns a Registry for the family to Factory mapping. Family
// codes are 2 hex digits, like "28".
func NewRegistry(families map[string]Factory) *Registry {
	r := &Registry{factories: map[string]Factory{}, workers: map[string]Decoder{}}
	for family, factory := range families {
		r.factories[strings.ToLower(family)] = factory
	}
	return r
}

// Worker returns the decoder for the family code.
func (r *Registry) Worker(family string) Decoder {
	family = strings.ToLower(family)
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.workers[family]; ok {
		return d
	}
	var d Decoder = generic{}
	if factory, ok := r.factories[family]; ok && factory != nil {
		d = factory()
	}
	r.workers[family] = d
	return d
}

// Families returns the family codes that have a decoder.
func (r *Registry) Families() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.factories))
	for f := range r.factories {
		out = append(out, f)
	}
	return out
}

// generic is the decoder of unknown device families. Its only path has no
// functions so the devices still show up in a listing.
type generic struct{}

func (generic) Ops() map[string]Op {
	return map[string]Op{"not_implemented": {}}
}
