package jit

import "github.com/holiman/uint256"

// reservedConstants are excluded from the pre-seed list: the emitter
// already synthesises 0, 32 and 0xe0 in a single byte (PUSH0,
// CALLDATASIZE, ADDRESS), and generate seeds 1 onto the stack itself.
var reservedConstants = map[uint64]bool{0: true, 1: true, 32: true, 0xe0: true}

const preSeedSize = 15 // upper end of the acceptable range, to maximize DUP reachability.

// maxPreSeedValue bounds pre-seed candidates to values that fit in 16
// push bytes (2^128-1).
var maxPreSeedValue = func() *uint256.Int {
	one := uint256.NewInt(1)
	shifted := new(uint256.Int).Lsh(one, 128)
	return new(uint256.Int).Sub(shifted, one)
}()

// segment is a maximal run of non-zero bytes within a 32-byte word,
// [start,end] inclusive, 0-indexed from the start of the word.
type segment struct {
	start, end int
}

func segmentsOf(word []byte) []segment {
	var segs []segment
	i := 0
	for i < len(word) {
		if word[i] == 0 {
			i++
			continue
		}
		j := i
		for j < len(word) && word[j] != 0 {
			j++
		}
		segs = append(segs, segment{start: i, end: j - 1})
		i = j
	}
	return segs
}

func isAllZero(word []byte) bool {
	for _, b := range word {
		if b != 0 {
			return false
		}
	}
	return true
}

// reuseInfo tracks the planner's word-reuse cache decision for one
// distinct word value.
type reuseInfo struct {
	firstBase uint64
	cost      int // per-use byte cost, or neverReuse if not worth caching
	seen      bool
}

// buildPlan runs the first pass over the padded buffer B and returns the
// resulting plan together with the pre-seed list derived from the
// planning emitter's frequency statistics.
func buildPlan(padded []byte, dataLen int) (plan, []*uint256.Int) {
	e := newEmitter()
	var p plan

	numWords := len(padded) / 32
	reuse := make(map[string]*reuseInfo)

	// Pre-count occurrences of each distinct non-zero word so the
	// word-reuse cache's "would reusing at every occurrence save net
	// bytes" estimate can be evaluated at first sighting.
	counts := make(map[string]int)
	for i := 0; i < numWords; i++ {
		w := padded[i*32 : i*32+32]
		if isAllZero(w) {
			continue
		}
		counts[string(w)]++
	}

	for i := 0; i < numWords; i++ {
		base := uint64(i * 32)
		word := padded[i*32 : i*32+32]
		if isAllZero(word) {
			continue
		}
		key := string(word)
		wordVal := new(uint256.Int).SetBytes(word)
		segs := segmentsOf(word)

		steps, cost := planWord(e, word, wordVal, segs, base, key, counts, reuse)
		p = append(p, steps...)

		for _, step := range steps {
			replayPlanningStep(e, step)
		}
		_ = cost // cost is only needed for candidate selection, already applied above
	}

	// Fixed trailer pushed by the planner, outside the word loop.
	tailSteps := []planStep{
		numStep(new(uint256.Int)),                       // retSize = 0
		numStep(new(uint256.Int)),                       // retOffset = 0
		numStep(new(uint256.Int).SetUint64(uint64(dataLen))), // argsSize = |D|
		numStep(uint256.NewInt(28)),                      // argsOffset, skips the padding
	}
	p = append(p, tailSteps...)
	for _, step := range tailSteps {
		replayPlanningStep(e, step)
	}

	preSeed := discoverPreSeed(e)
	return p, preSeed
}

// replayPlanningStep drives the planning-pass emitter the same way
// plan.replay drives the second-pass emitter, so frequency counts,
// stack contents, and the memory high-water mark stay accurate for
// later words' cost decisions.
func replayPlanningStep(e *emitter, step planStep) {
	switch step.kind {
	case stepNum:
		e.pushInt(step.num)
	case stepBytes:
		e.pushBytes(step.raw)
	case stepOp:
		e.emitOp(step.op)
	}
}

// planWord chooses the cheapest of the five strategies (literal/hard
// constant, word reuse, SHL/OR, MSTORE8) for one 32-byte word and
// returns the plan steps implementing it, plus its byte cost.
func planWord(e *emitter, word []byte, wordVal *uint256.Int, segs []segment, base uint64, key string, counts map[string]int, reuse map[string]*reuseInfo) ([]planStep, int) {
	s0 := segs[0].start
	tail := word[s0:]
	literalCost := 1 + len(tail)

	// Combine LITERAL with the word-level peephole families: both reduce
	// to the plan step `num(wordVal)`, since emit_push_int's own
	// hard-constant logic (peephole.go) picks whichever of the two is
	// actually cheaper at emission time. We only need their combined
	// cost here to compare against the other three strategies.
	numCost := literalCost
	if len(tail) > 1 {
		for _, cand := range hardConstantCandidates(wordVal, literalCost) {
			if cand.cost < numCost {
				numCost = cand.cost
			}
		}
	}

	// SHL/OR
	shlOrCost := 0
	for idx, seg := range segs {
		shlOrCost += 1 + (seg.end - seg.start + 1)
		if 31-seg.end > 0 {
			shlOrCost += 3
		}
		if idx > 0 {
			shlOrCost++
		}
	}

	// MSTORE8 per byte, only when every segment is a single byte.
	allSingle := true
	for _, seg := range segs {
		if seg.end != seg.start {
			allSingle = false
			break
		}
	}
	mstore8Cost := len(segs) * 3

	// Only "num" and "shlor" end by writing the word's real bytes to
	// base with a full 32-byte MSTORE; mstore8 writes each segment to
	// its own sub-word offset and never touches base as a whole word.
	// A word whose first occurrence would win on mstore8 must never be
	// offered to the reuse cache below: a later occurrence's MLOAD from
	// base would read back zero instead of the word's real bytes.
	endsWithFullStore := true
	localBest := numCost
	if shlOrCost < localBest {
		localBest = shlOrCost
	}
	if allSingle && mstore8Cost < localBest {
		localBest = mstore8Cost
		endsWithFullStore = false
	}

	best := numCost
	bestKind := "num"

	// WORD REUSE
	info, wordIsCached := decideReuse(key, base, literalCost, endsWithFullStore, counts, reuse)
	if wordIsCached && info.firstBase != base && info.cost != neverReuse {
		if info.cost < best {
			best = info.cost
			bestKind = "reuse"
		}
	}

	if shlOrCost < best {
		best = shlOrCost
		bestKind = "shlor"
	}

	if allSingle && mstore8Cost < best {
		best = mstore8Cost
		bestKind = "mstore8"
	}

	switch bestKind {
	case "reuse":
		return []planStep{
			numStep(new(uint256.Int).SetUint64(info.firstBase)),
			opStep(MLOAD),
			numStep(new(uint256.Int).SetUint64(base)),
			opStep(MSTORE),
		}, best
	case "shlor":
		var steps []planStep
		for idx, seg := range segs {
			segBytes := word[seg.start : seg.end+1]
			steps = append(steps, bytesStep(append([]byte(nil), segBytes...)))
			if shift := 31 - seg.end; shift > 0 {
				steps = append(steps, numStep(new(uint256.Int).SetUint64(uint64(shift*8))))
				steps = append(steps, opStep(SHL))
			}
			if idx > 0 {
				steps = append(steps, opStep(OR))
			}
		}
		steps = append(steps, numStep(new(uint256.Int).SetUint64(base)), opStep(MSTORE))
		return steps, best
	case "mstore8":
		var steps []planStep
		for _, seg := range segs {
			b := word[seg.start]
			off := base + uint64(seg.start)
			steps = append(steps, bytesStep([]byte{b}))
			steps = append(steps, numStep(new(uint256.Int).SetUint64(off)))
			steps = append(steps, opStep(MSTORE8))
		}
		return steps, best
	default: // "num" — literal or word-level peephole, decided at replay time.
		if wordIsCached && info.firstBase == base {
			// This occurrence establishes the cached copy other
			// occurrences will MLOAD from; still emitted as a plain
			// literal/peephole push.
		}
		return []planStep{
			numStep(wordVal),
			numStep(new(uint256.Int).SetUint64(base)),
			opStep(MSTORE),
		}, best
	}
}

// decideReuse implements the word-reuse cache: on the first sighting
// of a costly-enough word, decide whether caching it (so
// every later occurrence loads it back from the first occurrence's
// memory slot instead of re-emitting a literal) saves net bytes across
// all its occurrences.
func decideReuse(key string, base uint64, literalCost int, endsWithFullStore bool, counts map[string]int, reuse map[string]*reuseInfo) (*reuseInfo, bool) {
	info, ok := reuse[key]
	if ok {
		return info, info.cost != neverReuse
	}
	count := counts[key]
	info = &reuseInfo{firstBase: base, cost: neverReuse, seen: true}
	if endsWithFullStore && literalCost > 8 && count > 1 {
		baseBytes := 1 + byteLenOf(new(uint256.Int).SetUint64(base))
		reuseCost := baseBytes + 3
		netSavings := (count - 1) * (literalCost - reuseCost)
		if netSavings > 0 {
			info.cost = reuseCost
		}
	}
	reuse[key] = info
	return info, info.cost != neverReuse
}

// discoverPreSeed picks the pre-seed set: values with frequency > 1,
// excluding reserved constants, sorted by
// first-appearance order descending (most-recently-first-seen first),
// filtered to values that fit in 16 push bytes, truncated to the top N.
func discoverPreSeed(e *emitter) []*uint256.Int {
	type entry struct {
		v         uint256.Int
		firstSeen int
	}
	var entries []entry
	for v, freq := range e.freq {
		if freq <= 1 {
			continue
		}
		if v.IsUint64() && reservedConstants[v.Uint64()] {
			continue
		}
		if v.Gt(maxPreSeedValue) {
			continue
		}
		vCopy := v
		entries = append(entries, entry{v: vCopy, firstSeen: e.firstSeen[v]})
	}
	// Sort by first-appearance order descending (most recently seen
	// constants first). Simple insertion sort keeps this deterministic
	// without pulling in sort just for one small slice.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].firstSeen > entries[j-1].firstSeen; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
	if len(entries) > preSeedSize {
		entries = entries[:preSeedSize]
	}
	out := make([]*uint256.Int, len(entries))
	for i := range entries {
		v := entries[i].v
		out[i] = &v
	}
	return out
}
