package jit

import "github.com/holiman/uint256"

// trailer is the fixed byte sequence appended after every synthesised
// contract: CALLVALUE; PUSH0; CALLDATALOAD; GAS; CALL; RETURNDATASIZE;
// PUSH0; PUSH0; RETURNDATACOPY; RETURNDATASIZE; PUSH0; RETURN.
// It is emitted as raw bytes: by this point
// the symbolic model has already served its purpose and the contract's
// remaining behaviour is fixed regardless of what data it reconstructed.
var trailer = []byte{
	byte(CALLVALUE),
	byte(PUSH0),
	byte(CALLDATALOAD),
	byte(GAS),
	byte(CALL),
	byte(RETURNDATASIZE),
	byte(PUSH0),
	byte(PUSH0),
	byte(RETURNDATACOPY),
	byte(RETURNDATASIZE),
	byte(PUSH0),
	byte(RETURN),
}

// generate runs the second pass: a fresh emitter, pre-seeded with the
// most frequently reused literals, replays plan p and is capped with
// the fixed call-and-return trailer.
func generate(p plan, preSeed []*uint256.Int) []byte {
	e := newEmitter()

	one := uint256.NewInt(1)
	e.pushInt(one)
	for _, v := range preSeed {
		e.pushInt(v)
	}
	e.pushInt(one)

	p.replay(e)

	out := e.bytecode()
	out = append(out, trailer...)
	return out
}
