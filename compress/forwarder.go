package compress

import "github.com/ethereum/go-ethereum/common"

// The FLZ and CD paths, unlike JIT, don't synthesise a bespoke contract
// per call: their calldata carries one of the fixed token formats
// documented in flz.go/cd.go, and the installed bytecode's job is
// always the same shape — decode that stream into memory, then forward
// the reconstructed calldata to the real target exactly as a standard
// node would have received it. So each gets one fixed program, built
// once at init time and addressed (the 20-byte target spliced in) per
// call, the same way codegen.go's JIT trailer is a fixed constant.
//
// Both programs are assembled with asmBuilder rather than hand-counted
// byte offsets: raw jump destinations are tedious and easy to get
// subtly wrong by inspection, and a subtly wrong offset here means a
// forwarder that jumps into the middle of an opcode on-chain. Labels
// let Go's own accounting do that arithmetic.
var (
	flzForwarderTemplate, flzAddressSlotOffset = buildFLZProgram()
	cdForwarderTemplate, cdAddressSlotOffset    = buildCDProgram()
)

// Raw opcode bytes, named the way codegen.go's trailer comment does,
// for programs that never go through the jit package's symbolic model.
const (
	opCalldataSize   = 0x36
	opCalldataLoad   = 0x35
	opCalldataCopy   = 0x37
	opPush0          = 0x5f
	opPush1          = 0x60
	opPush2          = 0x61
	opPush20         = 0x73
	opDup1           = 0x80
	opSwap1          = 0x90
	opSwap2          = 0x91
	opPop            = 0x50
	opAdd            = 0x01
	opSub            = 0x03
	opShl            = 0x1b
	opLt             = 0x10
	opIsZero         = 0x15
	opByte           = 0x1a
	opMload          = 0x51
	opMstore         = 0x52
	opMcopy          = 0x5e
	opJump           = 0x56
	opJumpi          = 0x57
	opJumpdest       = 0x5b
	opGas            = 0x5a
	opCallValue      = 0x34
	opCall           = 0xf1
	opReturnDataSize = 0x3d
	opReturnDataCopy = 0x3e
	opReturn         = 0xf3
)

// asmBuilder assembles a single forwarder program: a flat byte stream
// with named labels and forward-referenceable jumps. It resolves jump
// targets by their recorded byte position rather than by values typed
// in by hand.
type asmBuilder struct {
	code       []byte
	labels     map[string]int
	fixups     []fixup
	addrSlotAt int
}

type fixup struct {
	pos   int
	label string
}

func newAsm() *asmBuilder {
	return &asmBuilder{labels: make(map[string]int)}
}

func (a *asmBuilder) op(b byte) *asmBuilder {
	a.code = append(a.code, b)
	return a
}

func (a *asmBuilder) push0() *asmBuilder { return a.op(opPush0) }

func (a *asmBuilder) push1(n byte) *asmBuilder {
	return a.op(opPush1).op(n)
}

func (a *asmBuilder) pushAddrSlot() *asmBuilder {
	a.op(opPush20)
	a.addrSlotAt = len(a.code)
	a.code = append(a.code, make([]byte, 20)...)
	return a
}

func (a *asmBuilder) label(name string) *asmBuilder {
	a.labels[name] = len(a.code)
	return a
}

func (a *asmBuilder) jumpdest() *asmBuilder { return a.op(opJumpdest) }

func (a *asmBuilder) jumpTo(name string) *asmBuilder {
	a.op(opPush2)
	a.fixups = append(a.fixups, fixup{pos: len(a.code), label: name})
	a.code = append(a.code, 0, 0)
	return a.op(opJump)
}

func (a *asmBuilder) jumpiTo(name string) *asmBuilder {
	a.op(opPush2)
	a.fixups = append(a.fixups, fixup{pos: len(a.code), label: name})
	a.code = append(a.code, 0, 0)
	return a.op(opJumpi)
}

// load pushes the 32-byte value at memory slot off.
func (a *asmBuilder) load(off byte) *asmBuilder {
	return a.push1(off).op(opMload)
}

// store pops the value already on top of the stack and stores it at
// memory slot off.
func (a *asmBuilder) store(off byte) *asmBuilder {
	return a.push1(off).op(opMstore)
}

// byteAtCalldata consumes a calldata pointer from the top of the stack
// and pushes the single byte at that offset.
func (a *asmBuilder) byteAtCalldata() *asmBuilder {
	return a.op(opCalldataLoad).push0().op(opByte)
}

func (a *asmBuilder) bytes() []byte {
	out := append([]byte(nil), a.code...)
	for _, fx := range a.fixups {
		target, ok := a.labels[fx.label]
		if !ok {
			panic("compress: asm: undefined label " + fx.label)
		}
		out[fx.pos] = byte(target >> 8)
		out[fx.pos+1] = byte(target)
	}
	return out
}

// emitLoopCheck emits: if CALLDATASIZE <= inPtr (mem[slotInPtr]), jump
// to doneLabel; otherwise fall through. Consumes nothing, leaves the
// stack as it found it (empty, by convention — see the two program
// builders below).
func emitLoopCheck(a *asmBuilder, doneLabel string) {
	a.op(opCalldataSize)
	a.load(slotInPtr)
	a.op(opLt)     // inPtr < calldatasize
	a.op(opIsZero) // 1 iff inPtr >= calldatasize
	a.jumpiTo(doneLabel)
}

// emitReadCtrl reads the byte at mem[slotInPtr], advances that pointer
// by one, stores the byte read at slotCtrl, and leaves a copy of it on
// top of the stack for the caller to branch on.
func emitReadCtrl(a *asmBuilder) {
	a.load(slotInPtr)
	a.op(opDup1)
	a.byteAtCalldata()
	a.op(opDup1)
	a.store(slotCtrl)
	a.op(opSwap1)
	a.push1(1)
	a.op(opAdd)
	a.store(slotInPtr)
}

const (
	slotInPtr  = 0x00
	slotOutLen = 0x20
	slotCtrl   = 0x40
	slotDist   = 0x60
)

// buildCDProgram assembles the calldata-RLE forwarder:
//
//	L1:     if inPtr>=calldatasize, goto DONE
//	        ctrl = calldata[inPtr]; inPtr++
//	        if ctrl == 0: goto ZERORUN
//	        // literal run, ctrl == length
//	        CALLDATACOPY(OUTBASE+outLen, inPtr, ctrl)
//	        inPtr += ctrl; outLen += ctrl; goto L1
//	ZERORUN: runLen = calldata[inPtr]; inPtr++
//	        outLen += runLen   // memory is already zero, nothing to write
//	        goto L1
//	DONE:   CALL(target, memory[OUTBASE:OUTBASE+outLen]); relay returndata
func buildCDProgram() ([]byte, int) {
	const outBase = 0x60

	a := newAsm()

	a.label("L1").jumpdest()
	emitLoopCheck(a, "DONE")
	emitReadCtrl(a)
	// stack: [ctrl]
	a.op(opIsZero)
	a.jumpiTo("ZERORUN")

	// literal run, ctrl (still in mem[slotCtrl]) is the length.
	a.load(slotCtrl)
	a.load(slotInPtr)
	a.load(slotOutLen)
	a.push1(outBase)
	a.op(opAdd) // destOffset = outBase + outLen
	a.op(opCalldataCopy)

	a.load(slotInPtr)
	a.load(slotCtrl)
	a.op(opAdd)
	a.store(slotInPtr)

	a.load(slotOutLen)
	a.load(slotCtrl)
	a.op(opAdd)
	a.store(slotOutLen)
	a.jumpTo("L1")

	a.label("ZERORUN").jumpdest()
	a.load(slotInPtr)
	a.op(opDup1)
	a.byteAtCalldata()
	a.op(opSwap1)
	a.push1(1)
	a.op(opAdd)
	a.store(slotInPtr)
	a.load(slotOutLen)
	a.op(opAdd)
	a.store(slotOutLen)
	a.jumpTo("L1")

	a.label("DONE").jumpdest()
	emitCallAndRelay(a, outBase)

	return a.bytes(), a.addrSlotAt
}

// buildFLZProgram assembles the restricted-LZ77 forwarder:
//
//	L1:      if inPtr>=calldatasize, goto DONE
//	         ctrl = calldata[inPtr]; inPtr++
//	         if ctrl != 0: goto MATCH
//	         // literal run
//	         litLen = calldata[inPtr]; inPtr++; store litLen at slotCtrl
//	         CALLDATACOPY(OUTBASE+outLen, inPtr, litLen)
//	         inPtr += litLen; outLen += litLen; goto L1
//	MATCH:   distHi = calldata[inPtr]; inPtr++
//	         distLo = calldata[inPtr]; inPtr++
//	         distance = distHi<<8 | distLo
//	         dst = OUTBASE+outLen; src = dst-distance
//	         MCOPY(dst, src, ctrl)        // ctrl == matchLen, distance >= matchLen
//	         outLen += ctrl; goto L1
//	DONE:    CALL(target, memory[OUTBASE:OUTBASE+outLen]); relay returndata
func buildFLZProgram() ([]byte, int) {
	const outBase = 0x80

	a := newAsm()

	a.label("L1").jumpdest()
	emitLoopCheck(a, "DONE")
	emitReadCtrl(a)
	// stack: [ctrl] — JUMPI treats any non-zero value as true.
	a.jumpiTo("MATCH")

	// literal run: read the explicit length byte that follows ctrl==0.
	a.load(slotInPtr)
	a.op(opDup1)
	a.byteAtCalldata()
	a.op(opDup1)
	a.store(slotCtrl)
	a.op(opSwap1)
	a.push1(1)
	a.op(opAdd)
	a.store(slotInPtr)
	a.op(opPop)

	a.load(slotCtrl)
	a.load(slotInPtr)
	a.load(slotOutLen)
	a.push1(outBase)
	a.op(opAdd)
	a.op(opCalldataCopy)

	a.load(slotInPtr)
	a.load(slotCtrl)
	a.op(opAdd)
	a.store(slotInPtr)

	a.load(slotOutLen)
	a.load(slotCtrl)
	a.op(opAdd)
	a.store(slotOutLen)
	a.jumpTo("L1")

	a.label("MATCH").jumpdest()
	// distHi
	a.load(slotInPtr)
	a.op(opDup1)
	a.byteAtCalldata()
	a.op(opSwap1)
	a.push1(1)
	a.op(opAdd)
	// stack: [distHi, inPtr+1]
	a.op(opDup1)
	a.byteAtCalldata()
	// stack: [distHi, inPtr+1, distLo]
	a.op(opSwap1)
	a.push1(1)
	a.op(opAdd)
	// stack: [distHi, distLo, inPtr+2]
	a.store(slotInPtr)
	// stack: [distHi, distLo]
	a.op(opSwap1)
	a.push1(8)
	a.op(opShl)
	a.op(opAdd)
	a.store(slotDist)

	a.load(slotOutLen)
	a.push1(outBase)
	a.op(opAdd) // dstAddr
	a.op(opDup1)
	a.load(slotDist)
	a.op(opSwap1)
	a.op(opSub) // srcAddr = dstAddr - distance
	a.load(slotCtrl)
	a.op(opSwap2)
	a.op(opMcopy)

	a.load(slotOutLen)
	a.load(slotCtrl)
	a.op(opAdd)
	a.store(slotOutLen)
	a.jumpTo("L1")

	a.label("DONE").jumpdest()
	emitCallAndRelay(a, outBase)

	return a.bytes(), a.addrSlotAt
}

// emitCallAndRelay appends the shared epilogue used by both forwarder
// programs: CALL the spliced-in target with memory[outBase:outBase+
// mem[slotOutLen]) as calldata, forwarding value and gas, then relay
// whatever comes back — the same trailer shape codegen.go's JIT trailer
// uses, success flag included but never inspected (RETURN halts first).
func emitCallAndRelay(a *asmBuilder, outBase byte) {
	a.push0()            // retSize
	a.push0()            // retOffset
	a.load(slotOutLen)   // argsSize
	a.push1(outBase)     // argsOffset = outBase (the buffer always starts there)
	a.op(opCallValue)    // value
	a.pushAddrSlot()     // addr
	a.op(opGas)          // gas, on top, popped first
	a.op(opCall)
	a.op(opReturnDataSize)
	a.push0()
	a.push0()
	a.op(opReturnDataCopy)
	a.op(opReturnDataSize)
	a.push0()
	a.op(opReturn)
}

func addressed(template []byte, offset int, addr common.Address) []byte {
	out := append([]byte(nil), template...)
	copy(out[offset:offset+20], addr.Bytes())
	return out
}

// flzForwarder returns the fixed FLZ forwarder bytecode with to spliced
// into its address slot.
func flzForwarder(to common.Address) []byte {
	return addressed(flzForwarderTemplate, flzAddressSlotOffset, to)
}

// cdForwarder returns the fixed CD forwarder bytecode with to spliced
// into its address slot.
func cdForwarder(to common.Address) []byte {
	return addressed(cdForwarderTemplate, cdAddressSlotOffset, to)
}
