package jit

import "github.com/holiman/uint256"

// pushCandidate is one way of getting v onto the stack; cost is measured
// in emitted bytes.
type pushCandidate struct {
	cost  int
	apply func(e *emitter, v *uint256.Int)
}

// hardConstantCandidates computes four alternative encodings for a
// literal that would otherwise need more than one immediate byte. Only
// candidates whose cost is strictly less than the
// plain-literal cost are worth considering; the caller folds them into
// the same min-cost selection as DUP and the constant rewrites.
func hardConstantCandidates(v *uint256.Int, litCost int) []pushCandidate {
	var out []pushCandidate

	// 1. PUSHk(~v); NOT
	notV := new(uint256.Int).Not(v)
	notLen := byteLenOf(notV)
	cost1 := 1 + notLen + 1
	if cost1 < litCost {
		out = append(out, pushCandidate{cost: cost1, apply: func(e *emitter, v *uint256.Int) {
			e.emitLiteralPush(notV, notLen)
			e.emitOp(NOT)
		}})
	}

	// 2. PUSHk(-v mod 2^256) ... PUSH0; SUB, computing 0 - (-v) = v.
	// SUB pops (top, second) and pushes top-second, so -v must be pushed
	// first (it ends up "second") and PUSH0 pushed last (it ends up
	// "top"): SUB then yields 0 - (-v) = v.
	negV := new(uint256.Int).Sub(new(uint256.Int), v) // 0 - v, i.e. -v mod 2^256
	negLen := byteLenOf(negV)
	cost2 := (1 + negLen) + 1 /* PUSH0 */ + 1 /* SUB */
	if cost2 < litCost {
		out = append(out, pushCandidate{cost: cost2, apply: func(e *emitter, v *uint256.Int) {
			e.emitLiteralPush(negV, negLen)
			e.emitLiteralPush(new(uint256.Int), 0)
			e.emitOp(SUB)
		}})
	}

	// 3. PUSHk(v_truncated); PUSH1(numBytes-1); SIGNEXTEND
	// beneficial when v is the sign extension of a short negative value,
	// i.e. the high bytes of v are all 0xff and a short two's-complement
	// value sign-extends back out to v.
	if truncLen, ok := signExtendSource(v); ok {
		truncated := new(uint256.Int).And(v, byteMask(truncLen))
		cost3 := 1 + truncLen + 1 + 1 + 1 // PUSHk(trunc) + PUSH1(n) + SIGNEXTEND
		if cost3 < litCost {
			out = append(out, pushCandidate{cost: cost3, apply: func(e *emitter, v *uint256.Int) {
				e.emitLiteralPush(truncated, truncLen)
				e.emitLiteralPush(uint256.NewInt(uint64(truncLen-1)), 1)
				e.emitOp(SIGNEXTEND)
			}})
		}
	}

	// 4. PUSHk(~v >> s); PUSH1(s); SHL; NOT, scanning s in {8,16,...,248}.
	for s := 8; s <= 248; s += 8 {
		shifted := new(uint256.Int).Rsh(notV, uint(s))
		back := new(uint256.Int).Lsh(shifted, uint(s))
		if !back.Eq(notV) {
			continue
		}
		shLen := byteLenOf(shifted)
		cost4 := 1 + shLen + 1 + 1 + 1 + 1 // PUSHk(shifted) + PUSH1(s) + SHL + NOT
		if cost4 < litCost {
			ss := s
			shiftedCopy := shifted
			out = append(out, pushCandidate{cost: cost4, apply: func(e *emitter, v *uint256.Int) {
				e.emitLiteralPush(shiftedCopy, byteLenOf(shiftedCopy))
				e.emitLiteralPush(uint256.NewInt(uint64(ss)), 1)
				e.emitOp(SHL)
				e.emitOp(NOT)
			}})
		}
		break // accept the first s that round-trips exactly
	}

	return out
}

// signExtendSource reports whether v is the sign extension of some
// shorter two's-complement value, and if so the byte length of that
// shorter value (1..31, since a full 32-byte value never benefits).
func signExtendSource(v *uint256.Int) (int, bool) {
	for n := 1; n < 32; n++ {
		mask := byteMask(n)
		low := new(uint256.Int).And(v, mask)
		signBit := byte(1) << 7
		lowBytes := low.Bytes32()
		highByte := lowBytes[32-n]
		var extended *uint256.Int
		if highByte&signBit != 0 {
			// negative: high bytes of v must all be 0xff
			extended = new(uint256.Int).Or(low, new(uint256.Int).Not(mask))
		} else {
			extended = low
		}
		if extended.Eq(v) {
			return n, true
		}
	}
	return 0, false
}

func byteMask(numBytes int) *uint256.Int {
	if numBytes >= 32 {
		return new(uint256.Int).Not(new(uint256.Int))
	}
	one := uint256.NewInt(1)
	shifted := new(uint256.Int).Lsh(one, uint(numBytes*8))
	return new(uint256.Int).Sub(shifted, uint256.NewInt(1))
}

// pushValue is the shared core of emit_push_int and emit_push_bytes: it
// picks the cheapest way to get v onto the stack, given a caller-chosen
// literal width (minimal byte length for emit_push_int, the explicit
// run length for emit_push_bytes), and applies it.
func (e *emitter) pushValue(v *uint256.Int, litLen int) {
	litCost := 1 + litLen

	best := pushCandidate{cost: litCost, apply: func(e *emitter, v *uint256.Int) {
		e.emitLiteralPush(v, litLen)
	}}

	if n := e.stack.lastIndexOf(v); n > 0 {
		cost := 1
		if cost < best.cost {
			best = pushCandidate{cost: cost, apply: func(e *emitter, v *uint256.Int) {
				e.emitDup(n, v)
			}}
		}
	}
	if v.Eq(calldataSize) && 1 < best.cost {
		best = pushCandidate{cost: 1, apply: func(e *emitter, v *uint256.Int) {
			e.emitConstOp(CALLDATASIZE, v)
		}}
	}
	if e.mem.highWater != 0 && v.IsUint64() && v.Uint64() == e.mem.highWater && 1 < best.cost {
		best = pushCandidate{cost: 1, apply: func(e *emitter, v *uint256.Int) {
			e.emitConstOp(MSIZE, v)
		}}
	}
	if v.Eq(addressValue) && 1 < best.cost {
		best = pushCandidate{cost: 1, apply: func(e *emitter, v *uint256.Int) {
			e.emitConstOp(ADDRESS, v)
		}}
	}
	if v.Eq(allOnes) && 2 < best.cost {
		best = pushCandidate{cost: 2, apply: func(e *emitter, v *uint256.Int) {
			e.emitLiteralPush(new(uint256.Int), 0)
			e.emitOp(NOT)
		}}
	}

	if litLen > 1 {
		for _, cand := range hardConstantCandidates(v, litCost) {
			if cand.cost < best.cost {
				best = cand
			}
		}
	}

	best.apply(e, v)
}

// pushInt implements emit_push_int: push the integer v using the
// cheapest strategy the emitter knows.
func (e *emitter) pushInt(v *uint256.Int) {
	e.pushValue(v, byteLenOf(v))
}

// pushBytes implements emit_push_bytes: push the literal byte run b
// (1 <= len(b) <= 32), preferring the same DUP/constant peepholes as
// pushInt but defaulting to a literal of exactly len(b) bytes rather
// than the minimal width, since the caller is asking for a specific
// byte run (e.g. an ABI tail that intentionally starts with a non-zero
// byte at a fixed offset).
func (e *emitter) pushBytes(b []byte) {
	if len(b) == 0 || len(b) > 32 {
		panic("jit: pushBytes requires 1..32 bytes")
	}
	v := new(uint256.Int).SetBytes(b)
	e.pushValue(v, len(b))
}
