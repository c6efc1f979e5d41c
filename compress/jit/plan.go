package jit

import "github.com/holiman/uint256"

// stepKind identifies which of the plan's three tagged-union variants a
// step carries.
type stepKind int

const (
	stepNum stepKind = iota
	stepBytes
	stepOp
)

// planStep is one element of the language-neutral plan the first pass
// produces and the second pass replays. Exactly one of num/raw/op is
// meaningful, selected by kind.
type planStep struct {
	kind stepKind
	num  *uint256.Int
	raw  []byte
	op   OpCode
}

func numStep(v *uint256.Int) planStep  { return planStep{kind: stepNum, num: v} }
func bytesStep(b []byte) planStep      { return planStep{kind: stepBytes, raw: b} }
func opStep(o OpCode) planStep         { return planStep{kind: stepOp, op: o} }

// plan is the ordered sequence of planning steps produced by the first
// pass.
type plan []planStep

// replay re-emits every step of p against e, in order. Each variant is
// handled once per recorded step; no variant carries state of its own.
func (p plan) replay(e *emitter) {
	for _, step := range p {
		switch step.kind {
		case stepNum:
			e.pushInt(step.num)
		case stepBytes:
			e.pushBytes(step.raw)
		case stepOp:
			e.emitOp(step.op)
		default:
			panic("jit: plan step with unknown kind")
		}
	}
}
