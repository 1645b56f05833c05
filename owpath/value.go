// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owpath

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Bool converts a written value to a bool. It accepts bool, integers 0 and 1
// and the strings "0", "1", "true", "false", "on" and "off".
func Bool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "on":
			return true, nil
		case "0", "false", "off":
			return false, nil
		}
	default:
		if i, ok := integer(v); ok && (i == 0 || i == 1) {
			return i == 1, nil
		}
	}
	return false, fmt.Errorf("%w: %v is not a boolean", ErrInvalidValue, v)
}

// Byte converts a written value to a byte. It accepts integers and numeric
// strings in the range 0 to 255; strings may use a 0x or 0b prefix.
func Byte(v any) (byte, error) {
	if s, ok := v.(string); ok {
		u, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrInvalidValue, s, err)
		}
		return byte(u), nil
	}
	if i, ok := integer(v); ok && i >= 0 && i <= 0xff {
		return byte(i), nil
	}
	return 0, fmt.Errorf("%w: %v is not a byte", ErrInvalidValue, v)
}

func integer(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint:
		if uint64(t) > math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		if t > math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case float64:
		// Values decoded from JSON or YAML.
		if t == float64(int64(t)) {
			return int64(t), true
		}
	}
	return 0, false
}
