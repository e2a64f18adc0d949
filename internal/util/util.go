// Package util provides common helpers used across the simulator.
package util

import (
	"math"
	"strings"
)

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// NormalizeArg trims whitespace and quotes and lowercases a command argument.
func NormalizeArg(s string) string {
	return strings.ToLower(TrimQuotes(strings.TrimSpace(s)))
}

// SanitizeFileName replaces characters that are awkward in file names.
func SanitizeFileName(s string) string {
	r := strings.NewReplacer(" ", "_", ":", "_", "/", "_", `\`, "_")
	return r.Replace(s)
}
