// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/hex"
	"image/color"
	"io"

	"github.com/maruel/ansi256"
)

// swatch prints a coloured block identifying the family of a device in front
// of each line, using ANSI colour codes.
type swatch struct {
	w       io.Writer
	palette *ansi256.Palette
	buf     bytes.Buffer
}

func newSwatch(w io.Writer) *swatch {
	return &swatch{w: w, palette: ansi256.Default}
}

// family writes the block of the family in the first 2 hex digits of id.
func (s *swatch) family(id string) error {
	var f [1]byte
	if len(id) < 2 {
		return nil
	}
	if _, err := hex.Decode(f[:], []byte(id[:2])); err != nil {
		return nil
	}
	s.buf.Reset()
	_, _ = s.buf.WriteString("\033[0m")
	_, _ = io.WriteString(&s.buf, s.palette.Block(familyColor(f[0])))
	_, _ = s.buf.WriteString("\033[0m ")
	_, err := s.buf.WriteTo(s.w)
	return err
}

var familyColors = map[byte]color.NRGBA{
	0x01: {0x80, 0x80, 0x80, 0xff},
	0x26: {0x20, 0x90, 0xff, 0xff},
	0x28: {0xff, 0x60, 0x20, 0xff},
	0x29: {0x40, 0xd0, 0x40, 0xff},
	0x81: {0xa0, 0xa0, 0xa0, 0xff},
}

// familyColor spreads unknown families over the colour cube.
func familyColor(f byte) color.NRGBA {
	if c, ok := familyColors[f]; ok {
		return c
	}
	return color.NRGBA{f * 37, 255 - f*53, f * 97, 0xff}
}
