package jit

import "github.com/holiman/uint256"

// neverReuse marks a word in the reuse-cost cache that was never found
// worth materialising a second time.
const neverReuse = -1

var (
	addressValue  = uint256.NewInt(0xe0)
	calldataSize  = uint256.NewInt(32)
	allOnes       = new(uint256.Int).Not(uint256.NewInt(0))
)

// emitter accumulates an ordered opcode stream while maintaining a
// symbolic model of the stack, memory, and value-frequency statistics.
// It is the primitive both compiler passes are built on.
type emitter struct {
	ops []OpCode
	imm [][]byte

	stack *stack
	mem   *memory

	freq        map[uint256.Int]int
	firstSeen   map[uint256.Int]int
	pushCounter int

	// word-reuse cache fields; never populated: the planner keeps its
	// own reuse map (planner.go's reuseInfo) instead.
	reuseBase map[uint256.Int]uint64
	reuseCost map[uint256.Int]int
}

func newEmitter() *emitter {
	return &emitter{
		stack:     newStack(),
		mem:       newMemory(),
		freq:      make(map[uint256.Int]int),
		firstSeen: make(map[uint256.Int]int),
		reuseBase: make(map[uint256.Int]uint64),
		reuseCost: make(map[uint256.Int]int),
	}
}

// appendRaw records an opcode and its immediate without touching the
// symbolic model. emitOp calls it after it has updated the model
// itself; the fixed trailer bypasses the emitter entirely (codegen.go).
func (e *emitter) appendRaw(op OpCode, imm []byte) {
	e.ops = append(e.ops, op)
	e.imm = append(e.imm, imm)
}

// bytecode renders the accumulated opcode stream as raw bytes, each
// opcode followed by its immediate (no 0x prefix).
func (e *emitter) bytecode() []byte {
	out := make([]byte, 0, len(e.ops)*2)
	for i, op := range e.ops {
		out = append(out, byte(op))
		out = append(out, e.imm[i]...)
	}
	return out
}

func (e *emitter) byteLen() int {
	n := 0
	for i := range e.ops {
		n += 1 + len(e.imm[i])
	}
	return n
}

func (e *emitter) touch(v *uint256.Int) {
	key := *v
	e.freq[key]++
	if _, ok := e.firstSeen[key]; !ok {
		e.firstSeen[key] = e.pushCounter
		e.pushCounter++
	}
}

// bumpFreq adjusts the recorded frequency of v; used to account for a
// DUP consuming one of the anticipated future uses of a pre-seeded or
// cached value.
func (e *emitter) bumpFreq(v *uint256.Int, delta int) {
	key := *v
	e.freq[key] += delta
}

// --- emit_op ---

// emitOp appends op and updates the symbolic stack/memory model
// according to real EVM opcode semantics. It panics on an opcode the
// emitter doesn't model or on a stack precondition
// violation: both indicate a planner bug, never bad input, since the
// planner is the only caller.
func (e *emitter) emitOp(op OpCode) {
	switch op {
	case ADDRESS:
		e.stack.push(addressValue.Clone())
	case CALLDATASIZE:
		e.stack.push(calldataSize.Clone())
	case MSIZE:
		e.stack.push(new(uint256.Int).SetUint64(e.mem.highWater))
	case MLOAD:
		off := e.stack.pop()
		e.stack.push(e.mem.load(off.Uint64()))
	case MSTORE:
		off, v := e.stack.pop(), e.stack.pop()
		e.mem.store(off.Uint64(), v)
	case MSTORE8:
		off := e.stack.pop()
		e.stack.pop()
		e.mem.store8(off.Uint64())
	case AND:
		x, y := e.stack.pop(), e.stack.peek()
		y.And(x, y)
	case OR:
		x, y := e.stack.pop(), e.stack.peek()
		y.Or(x, y)
	case XOR:
		x, y := e.stack.pop(), e.stack.peek()
		y.Xor(x, y)
	case NOT:
		x := e.stack.peek()
		x.Not(x)
	case SHL:
		shift, value := e.stack.pop(), e.stack.peek()
		if shift.LtUint64(256) {
			value.Lsh(value, uint(shift.Uint64()))
		} else {
			value.Clear()
		}
	case SHR:
		shift, value := e.stack.pop(), e.stack.peek()
		if shift.LtUint64(256) {
			value.Rsh(value, uint(shift.Uint64()))
		} else {
			value.Clear()
		}
	case SUB:
		x, y := e.stack.pop(), e.stack.peek()
		y.Sub(x, y)
	case SIGNEXTEND:
		back, num := e.stack.pop(), e.stack.peek()
		num.ExtendSign(num, back)
	case SWAP1:
		e.stack.swap1()
	case RETURN:
		e.stack.pop()
		e.stack.pop()
	default:
		if op >= DUP1 && op <= DUP16 {
			e.stack.dup(int(op-DUP1) + 1)
		} else {
			panic("jit: emitOp called with unmodelled opcode")
		}
	}
	e.appendRaw(op, nil)
}

// emitDup emits DUPn for stack distance n and updates frequency
// bookkeeping for the duplicated value: a DUP satisfies one of the
// pushes a later "num v" plan step would otherwise have required, so it
// consumes one of the value's anticipated uses and its recorded
// frequency drops by one.
func (e *emitter) emitDup(n int, v *uint256.Int) {
	e.emitOp(dupOp(n))
	e.bumpFreq(v, -1)
}

// emitLiteralPush appends PUSHk with an explicit big-endian immediate of
// numBytes bytes (numBytes==0 emits PUSH0) and pushes v onto the
// symbolic stack.
func (e *emitter) emitLiteralPush(v *uint256.Int, numBytes int) {
	op := pushOp(numBytes)
	var imm []byte
	if numBytes > 0 {
		full := v.Bytes32()
		imm = append([]byte(nil), full[32-numBytes:]...)
	}
	e.ops = append(e.ops, op)
	e.imm = append(e.imm, imm)
	e.stack.push(v.Clone())
	e.touch(v)
}

// emitConstOp appends a zero-immediate opcode (ADDRESS, CALLDATASIZE,
// MSIZE) that synthesises a known constant, without an extra call
// through emitOp's stack-modelling switch (the value is already known
// at the call site, so pushing the freshly computed uint256 avoids
// recomputing MSIZE after the fact).
func (e *emitter) emitConstOp(op OpCode, v *uint256.Int) {
	e.ops = append(e.ops, op)
	e.imm = append(e.imm, nil)
	e.stack.push(v.Clone())
	e.touch(v)
}

// byteLenOf returns the minimal number of big-endian bytes needed to
// represent v (0 for the zero value, which becomes PUSH0).
func byteLenOf(v *uint256.Int) int {
	return (v.BitLen() + 7) / 8
}
