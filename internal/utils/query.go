package utils

import (
	"strconv"
	"strings"
)

// FirstParam returns the first value of key exactly as given. Absent keys
// yield "".
// Example:
//
//	?category=museums&category=parks  → "museums"
func FirstParam(q map[string][]string, key string) string {
	values := q[key]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// ParsePK parses a positive integer primary key.
func ParsePK(s string) (int, bool) {
	pk, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || pk <= 0 {
		return 0, false
	}
	return pk, true
}
