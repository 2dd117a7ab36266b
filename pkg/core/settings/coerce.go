package settings

import (
	"math"
	"strconv"
	"strings"
)

// Metadata written by older portals carried loosely-typed values ("true",
// "0.5", 3). The coercers below accept those shapes without ever guessing:
// anything ambiguous reports ok=false and the field stays absent.

// CoerceBool accepts bools and the usual string spellings.
func CoerceBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "y", "on":
			return true, true
		case "0", "false", "no", "n", "off":
			return false, true
		}
	}
	return false, false
}

// CoerceFloat accepts JSON numbers and numeric strings.
func CoerceFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// CoerceInt accepts integers, integral floats and numeric strings. A float
// with a fractional part is not an int.
func CoerceInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
