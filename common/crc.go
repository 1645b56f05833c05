// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package common contains functions used across multiple packages. For
// example, the Dallas/Maxim CRC calculations used on the 1-wire bus.
package common

import "periph.io/x/conn/v3/onewire"

// CRC8 calculates the CRC-8/MAXIM (poly 0x31 reflected, init 0x00) of the
// byte slice parameter and returns the calculated value.
//
// Running CRC8 over a buffer that ends with its own transmitted CRC yields 0,
// which is how ROM codes and scratchpads are validated.
func CRC8(bytes []byte) byte {
	return onewire.CalcCRC(bytes)
}

// CRC16 calculates the CRC-16/MAXIM (poly 0x8005 reflected, init 0x0000,
// output inverted) of the byte slice parameter.
//
// Devices like the DS2408 transmit this value least significant byte first.
func CRC16(bytes []byte) uint16 {
	var crc uint16
	for _, val := range bytes {
		crc ^= uint16(val)
		for range 8 {
			if (crc & 0x01) == 0 {
				crc >>= 1
			} else {
				crc = (crc >> 1) ^ 0xa001
			}
		}
	}
	return ^crc
}

// CheckCRC16 reports whether the last two bytes of frame hold the
// little-endian CRC16 of the bytes preceding them.
func CheckCRC16(frame []byte) bool {
	if len(frame) < 2 {
		return false
	}
	n := len(frame) - 2
	return CRC16(frame[:n]) == uint16(frame[n])|uint16(frame[n+1])<<8
}
