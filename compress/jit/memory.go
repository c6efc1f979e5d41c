package jit

import "github.com/holiman/uint256"

// memory is a sparse model of the EVM memory the emitted contract will
// build up. Only 32-byte-aligned writes are tracked as full words;
// MSTORE8 only advances the high-water mark, since single-byte writes
// never get reused across words. Per SPEC_FULL.md, a hash map indexed by
// offset is preferred over a dense byte array — the only dense scalar
// that matters is the high-water mark.
type memory struct {
	words       map[uint64]*uint256.Int
	highWater   uint64 // rounded up to a multiple of 32
}

func newMemory() *memory {
	return &memory{words: make(map[uint64]*uint256.Int)}
}

func roundUp32(n uint64) uint64 {
	return (n + 31) &^ 31
}

// store records an MSTORE at offset. It always advances the high-water
// mark to round_up32(offset+32) regardless of whether offset is itself
// 32-aligned; only alignment-preserving callers (the planner) rely on
// offset being aligned for later reuse lookups.
func (m *memory) store(offset uint64, v *uint256.Int) {
	m.words[offset] = v.Clone()
	if hw := roundUp32(offset + 32); hw > m.highWater {
		m.highWater = hw
	}
}

// store8 records an MSTORE8: it never populates the word map (a
// single byte write can't satisfy a later 32-byte reuse lookup) but does
// advance the high-water mark.
func (m *memory) store8(offset uint64) {
	if hw := roundUp32(offset + 1); hw > m.highWater {
		m.highWater = hw
	}
}

// load returns the word last stored at offset, or zero if the offset was
// never written (matches EVM MLOAD semantics for untouched memory).
func (m *memory) load(offset uint64) *uint256.Int {
	if v, ok := m.words[offset]; ok {
		return v.Clone()
	}
	return new(uint256.Int)
}
