// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // returns 42
//	n = utils.AtoiDefault("", 10)   // returns 10
//	n = utils.AtoiDefault("x", 5)   // returns 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// BoundedAtoi parses s like AtoiDefault and additionally falls back to def
// when the parsed value lies outside [min, max]. Used for pagination and
// batch-size query parameters where an out-of-range value should behave
// like an absent one rather than an error.
func BoundedAtoi(s string, def, min, max int) int {
	n := AtoiDefault(s, def)
	if n < min || n > max {
		return def
	}
	return n
}
