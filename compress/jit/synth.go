package jit

import (
	"github.com/ethereum/go-ethereum/log"
)

// Synthesise compiles data into a small EVM contract that reconstructs
// data exactly in memory at [28, 28+len(data)) and forwards it as a
// sub-call to whatever 20-byte address its own calldata carries. It
// never executes the bytecode it produces; correctness is only checked
// by tests that run the output on a minimal EVM interpreter
// (roundtrip_test.go's miniEVM).
//
// Synthesise never returns an error for a well-formed byte slice: every
// finite byte string has a valid, if not maximally compact, encoding.
func Synthesise(data []byte) []byte {
	padded := pad(data)
	p, preSeed := buildPlan(padded, len(data))
	code := generate(p, preSeed)
	log.Debug("jit: synthesised calldata reconstructor", "inputBytes", len(data), "codeBytes", len(code))
	return code
}

// pad prefixes data with 28 zero bytes so the 4-byte ABI selector lands
// right-aligned in the first word, then
// rounds the total length up to a multiple of 32.
func pad(data []byte) []byte {
	n := 28 + len(data)
	padded := make([]byte, roundUp32(uint64(n)))
	copy(padded[28:], data)
	return padded
}
