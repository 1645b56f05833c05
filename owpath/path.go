// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owpath

import (
	"fmt"
	"strings"
)

// Path is a parsed device operation path.
type Path struct {
	// ID is the ROM id as 16 lowercase hex digits.
	ID string
	// Op is the lowercase operation, like "pio/ch3".
	Op string
}

// ParsePath parses "<16 hex digits id>/<operation>". A '.' may follow the 2
// digit family code.
func ParsePath(s string) (Path, error) {
	s = strings.ToLower(s)
	id, op, ok := strings.Cut(s, "/")
	if !ok || op == "" {
		return Path{}, fmt.Errorf("%w: %q has no operation", ErrInvalidPath, s)
	}
	if len(id) > 2 && id[2] == '.' {
		id = id[:2] + id[3:]
	}
	if len(id) != 16 {
		return Path{}, fmt.Errorf("%w: %q: id must have 16 hex digits", ErrInvalidPath, s)
	}
	for _, c := range id {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return Path{}, fmt.Errorf("%w: %q: id is not hexadecimal", ErrInvalidPath, s)
		}
	}
	return Path{ID: id, Op: op}, nil
}

// Family returns the 2 hex digits family code.
func (p Path) Family() string {
	return p.ID[:2]
}

// String returns the path in its listing form "ff.serial/op".
func (p Path) String() string {
	return p.ID[:2] + "." + p.ID[2:] + "/" + p.Op
}
