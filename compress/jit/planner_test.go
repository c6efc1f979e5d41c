package jit

import (
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

// TestPlanWordCostMonotonicity checks cost monotonicity directly
// against planWord's own candidate costs: the chosen strategy's cost must never
// exceed any of LITERAL/hard-constant, SHL/OR, or MSTORE8's cost for the
// same word (word reuse is exercised separately in
// TestPlanWordPrefersReuseWhenCheaper, since its cost depends on
// cross-word occurrence counts rather than the word alone).
func TestPlanWordCostMonotonicity(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 200; trial++ {
		word := make([]byte, 32)
		density := 1 + rng.Intn(4) // 1-in-N bytes non-zero
		for i := range word {
			if rng.Intn(density) == 0 {
				word[i] = byte(1 + rng.Intn(255))
			}
		}
		if isAllZero(word) {
			continue
		}

		e := newEmitter()
		wordVal := new(uint256.Int).SetBytes(word)
		segs := segmentsOf(word)
		counts := map[string]int{string(word): 1}
		reuse := make(map[string]*reuseInfo)

		_, chosen := planWord(e, word, wordVal, segs, 0, string(word), counts, reuse)

		s0 := segs[0].start
		literalCost := 1 + len(word[s0:])
		assert.LessOrEqual(t, chosen, literalCost)

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
		assert.LessOrEqual(t, chosen, shlOrCost)

		allSingle := true
		for _, seg := range segs {
			if seg.end != seg.start {
				allSingle = false
			}
		}
		if allSingle {
			assert.LessOrEqual(t, chosen, len(segs)*3)
		}
	}
}

func TestPlanWordPrefersReuseWhenCheaper(t *testing.T) {
	word := make([]byte, 32)
	for i := range word {
		word[i] = byte(0x10 + i)
	}
	key := string(word)
	counts := map[string]int{key: 5}
	reuse := make(map[string]*reuseInfo)

	e := newEmitter()
	wordVal := new(uint256.Int).SetBytes(word)
	segs := segmentsOf(word)

	// First sighting establishes the cache but still emits a literal at
	// its own base.
	steps1, cost1 := planWord(e, word, wordVal, segs, 0, key, counts, reuse)
	assert.NotEmpty(t, steps1)
	assert.Equal(t, 1+32, cost1) // full 32-byte literal, no leading zero segment

	// A later occurrence should prefer the cached MLOAD/MSTORE reuse path,
	// which is far cheaper than repeating the 33-byte literal.
	steps2, cost2 := planWord(e, word, wordVal, segs, 64, key, counts, reuse)
	assert.Less(t, cost2, cost1)
	assert.Len(t, steps2, 4) // num(firstBase) MLOAD num(base) MSTORE
}
