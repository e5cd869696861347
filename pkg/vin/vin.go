// Package vin detects vehicle identification numbers in free text.
package vin

import (
	"regexp"
	"strings"
)

// Length is the fixed length of a modern VIN.
const Length = 17

// VINs never contain I, O or Q. The pattern is anchored on non-VIN
// characters so a VIN embedded in a longer alphanumeric run is not matched.
var pattern = regexp.MustCompile(`(^|[^A-HJ-NPR-Z0-9])([A-HJ-NPR-Z0-9]{17})($|[^A-HJ-NPR-Z0-9])`)

// Valid reports whether s is a well-formed VIN: exactly 17 characters,
// digits and uppercase letters excluding I, O and Q.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'A' && r <= 'Z' && r != 'I' && r != 'O' && r != 'Q':
		default:
			return false
		}
	}
	return true
}

// Extract returns the first well-formed VIN found in text, if any.
// Matching is case-insensitive; the returned VIN is uppercase.
func Extract(text string) (string, bool) {
	upper := strings.ToUpper(text)
	m := pattern.FindStringSubmatch(upper)
	if m == nil {
		return "", false
	}
	candidate := m[2]
	if !Valid(candidate) {
		return "", false
	}
	return candidate, true
}
