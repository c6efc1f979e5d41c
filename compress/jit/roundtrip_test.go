package jit

import (
	"bytes"
	"math/big"
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
)

// miniEVM is a deliberately narrow interpreter covering only the
// opcodes Synthesise ever emits (the modelled set plus the fixed
// trailer). It exists purely to give the test suite confidence in
// roundtrip correctness without depending on a full EVM implementation:
// it is not part of the library and is never used outside tests.
type miniEVM struct {
	code   []byte
	pc     int
	stack  []*uint256.Int
	memory map[uint64]byte
	memLen uint64
	target func(addr []byte, calldata []byte) []byte
}

func newMiniEVM(code []byte, target func([]byte, []byte) []byte) *miniEVM {
	return &miniEVM{code: code, memory: make(map[uint64]byte), target: target}
}

func (m *miniEVM) push(v *uint256.Int) { m.stack = append(m.stack, v) }
func (m *miniEVM) pop() *uint256.Int {
	n := len(m.stack)
	v := m.stack[n-1]
	m.stack = m.stack[:n-1]
	return v
}
func (m *miniEVM) peek() *uint256.Int { return m.stack[len(m.stack)-1] }

func (m *miniEVM) mstoreWord(off uint64, v *uint256.Int) {
	b := v.Bytes32()
	for i := 0; i < 32; i++ {
		m.memory[off+uint64(i)] = b[i]
	}
	if end := off + 32; end > m.memLen {
		m.memLen = end
	}
}

func (m *miniEVM) mstore8(off uint64, b byte) {
	m.memory[off] = b
	if end := off + 1; end > m.memLen {
		m.memLen = end
	}
}

func (m *miniEVM) mload(off uint64) *uint256.Int {
	var b [32]byte
	for i := 0; i < 32; i++ {
		b[i] = m.memory[off+uint64(i)]
	}
	return new(uint256.Int).SetBytes(b[:])
}

func (m *miniEVM) memSlice(off, size uint64) []byte {
	out := make([]byte, size)
	for i := uint64(0); i < size; i++ {
		out[i] = m.memory[off+i]
	}
	return out
}

// run executes the whole program with the given 32-byte calldata word
// and returns whatever RETURN produced.
func (m *miniEVM) run(calldata []byte) []byte {
	var returnData []byte
	var callValue = new(uint256.Int)
	for m.pc < len(m.code) {
		op := OpCode(m.code[m.pc])
		switch {
		case op == PUSH0:
			m.push(new(uint256.Int))
			m.pc++
		case op >= PUSH1 && op <= PUSH32:
			n := int(op-PUSH1) + 1
			imm := m.code[m.pc+1 : m.pc+1+n]
			m.push(new(uint256.Int).SetBytes(imm))
			m.pc += 1 + n
		case op >= DUP1 && op <= DUP16:
			n := int(op-DUP1) + 1
			m.push(m.stack[len(m.stack)-n].Clone())
			m.pc++
		case op == SWAP1:
			n := len(m.stack)
			m.stack[n-1], m.stack[n-2] = m.stack[n-2], m.stack[n-1]
			m.pc++
		case op == ADDRESS:
			m.push(uint256.NewInt(0xe0))
			m.pc++
		case op == CALLDATASIZE:
			m.push(uint256.NewInt(32))
			m.pc++
		case op == CALLDATALOAD:
			off := m.pop()
			_ = off // our synthesiser always loads offset 0
			m.push(new(uint256.Int).SetBytes(calldata))
			m.pc++
		case op == CALLVALUE:
			m.push(callValue.Clone())
			m.pc++
		case op == MSIZE:
			m.push(new(uint256.Int).SetUint64(roundUp32(m.memLen)))
			m.pc++
		case op == MLOAD:
			off := m.pop()
			m.push(m.mload(off.Uint64()))
			m.pc++
		case op == MSTORE:
			off, v := m.pop(), m.pop()
			m.mstoreWord(off.Uint64(), v)
			m.pc++
		case op == MSTORE8:
			off, v := m.pop(), m.pop()
			b := v.Bytes32()
			m.mstore8(off.Uint64(), b[31])
			m.pc++
		case op == AND:
			x, y := m.pop(), m.peek()
			y.And(x, y)
			m.pc++
		case op == OR:
			x, y := m.pop(), m.peek()
			y.Or(x, y)
			m.pc++
		case op == XOR:
			x, y := m.pop(), m.peek()
			y.Xor(x, y)
			m.pc++
		case op == NOT:
			x := m.peek()
			x.Not(x)
			m.pc++
		case op == SHL:
			shift, value := m.pop(), m.peek()
			if shift.LtUint64(256) {
				value.Lsh(value, uint(shift.Uint64()))
			} else {
				value.Clear()
			}
			m.pc++
		case op == SHR:
			shift, value := m.pop(), m.peek()
			if shift.LtUint64(256) {
				value.Rsh(value, uint(shift.Uint64()))
			} else {
				value.Clear()
			}
			m.pc++
		case op == SUB:
			x, y := m.pop(), m.peek()
			y.Sub(x, y)
			m.pc++
		case op == SIGNEXTEND:
			back, num := m.pop(), m.peek()
			num.ExtendSign(num, back)
			m.pc++
		case op == GAS:
			m.push(uint256.NewInt(1_000_000_000))
			m.pc++
		case op == CALL:
			gas := m.pop()
			_ = gas
			addr := m.pop()
			value := m.pop()
			_ = value
			argsOffset := m.pop()
			argsSize := m.pop()
			retOffset := m.pop()
			retSize := m.pop()
			_ = retOffset
			_ = retSize
			addrBytes := addr.Bytes32()
			calldataOut := m.memSlice(argsOffset.Uint64(), argsSize.Uint64())
			returnData = m.target(addrBytes[12:], calldataOut)
			m.push(uint256.NewInt(1))
			m.pc++
		case op == RETURNDATASIZE:
			m.push(new(uint256.Int).SetUint64(uint64(len(returnData))))
			m.pc++
		case op == RETURNDATACOPY:
			destOffset, offset, size := m.pop(), m.pop(), m.pop()
			_ = offset
			data := returnData
			if size.Uint64() < uint64(len(data)) {
				data = data[:size.Uint64()]
			}
			for i, b := range data {
				m.mstore8(destOffset.Uint64()+uint64(i), b)
			}
			m.pc++
		case op == RETURN:
			off, size := m.pop(), m.pop()
			return m.memSlice(off.Uint64(), size.Uint64())
		default:
			panic("miniEVM: unsupported opcode in synthesised bytecode: " + op.String())
		}
	}
	return nil
}

// echoTarget mimics an echo contract
// (0x365f5f37365ff3: CALLDATASIZE PUSH0 PUSH0 CALLDATACOPY CALLDATASIZE
// PUSH0 RETURN), which just returns whatever calldata it was given.
func echoTarget(addr []byte, calldata []byte) []byte {
	return calldata
}

func TestSynthesiseRoundtrip(t *testing.T) {
	cases := map[string][]byte{
		"empty":      {},
		"one-byte":   {0xab},
		"selector":   {0xa9, 0x05, 0x9c, 0xbb},
		"all-zero":   make([]byte, 96),
		"all-0xff":   bytes.Repeat([]byte{0xff}, 64),
		"all-nonzero": bytes.Repeat([]byte{0xab}, 600),
		"mixed":      append([]byte{0xa9, 0x05, 0x9c, 0xbb}, append(make([]byte, 28), bytes.Repeat([]byte{0x01, 0x00, 0x00, 0xff}, 20)...)...),
	}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 8; i++ {
		n := 32 + rng.Intn(2000)
		b := make([]byte, n)
		for j := range b {
			if rng.Intn(4) == 0 {
				b[j] = 0
			} else {
				b[j] = byte(rng.Intn(256))
			}
		}
		cases[bigLabel(i)] = b
	}

	target := common20Address()
	rewrittenCalldata := make([]byte, 32)
	copy(rewrittenCalldata[12:], target)

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			code := Synthesise(data)
			evm := newMiniEVM(code, echoTarget)
			got := evm.run(rewrittenCalldata)
			if !bytes.Equal(got, data) {
				t.Fatalf("roundtrip mismatch for %s: got %d bytes, want %d bytes", name, len(got), len(data))
			}
		})
	}
}

func common20Address() []byte {
	addr := make([]byte, 20)
	for i := range addr {
		addr[i] = byte(0x10 + i)
	}
	return addr
}

func bigLabel(i int) string {
	return "random-" + new(big.Int).SetInt64(int64(i)).String()
}
