// Package counter embeds a contract holding one unsigned counter.
//
// increment and decrement take an optional decimal step as raw input;
// get_num returns the value as a decimal string.
package counter

import (
	_ "embed"
	"strconv"
)

// Code is the contract source.
//
//go:embed counter.js
var Code []byte

// Step encodes the input of increment and decrement.
func Step(n uint64) []byte {
	return []byte(strconv.FormatUint(n, 10))
}

// ParseNum decodes the result of get_num.
func ParseNum(result []byte) (uint64, error) {
	return strconv.ParseUint(string(result), 10, 64)
}
