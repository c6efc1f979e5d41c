package compress

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/tadpole-labs/eth-compress/compress/jit"
)

// jitLowSizeBound and jitHighSizeBound bracket the hex-character
// lengths for which JIT is chosen without measuring FLZ/CD: short
// payloads don't amortise FLZ/CD's fixed forwarder cost, and very long
// ones make the JIT contract's per-byte fixed costs (MSTORE overhead,
// pre-seed segment) fall behind a general-purpose compressor.
const (
	jitLowSizeBound  = 3000
	jitHighSizeBound = 8000
)

// selectAlgorithm picks JIT outright for payload sizes outside the
// range where FLZ/CD are worth measuring, or reports no decision so
// the caller measures both.
func selectAlgorithm(dataHexLen int) Algorithm {
	if dataHexLen < jitLowSizeBound || dataHexLen >= jitHighSizeBound {
		return AlgorithmJIT
	}
	return "" // caller must measure FLZ and CD and pick the shorter.
}

// rewriteResult carries the bytecode/rewritten-calldata pair a chosen
// algorithm produced, before the beneficial-only gate is applied.
type rewriteResult struct {
	algorithm Algorithm
	bytecode  []byte
	calldata  []byte
}

// buildRewrite runs algorithm selection and construction. hint, if
// non-empty, forces the path.
func buildRewrite(to common.Address, data []byte, hint Algorithm) (rewriteResult, error) {
	algo := hint
	if algo == "" {
		algo = selectAlgorithm(len(data) * 2)
	}

	switch algo {
	case AlgorithmJIT:
		return rewriteResult{
			algorithm: AlgorithmJIT,
			bytecode:  jit.Synthesise(data),
			calldata:  leftPad32(to.Bytes()),
		}, nil
	case AlgorithmFLZ:
		compressed, err := flzCompress(data)
		if err != nil {
			return rewriteResult{}, err
		}
		return rewriteResult{algorithm: AlgorithmFLZ, bytecode: flzForwarder(to), calldata: compressed}, nil
	case AlgorithmCD:
		compressed, err := cdCompress(data)
		if err != nil {
			return rewriteResult{}, err
		}
		return rewriteResult{algorithm: AlgorithmCD, bytecode: cdForwarder(to), calldata: compressed}, nil
	default:
		// No hint and no bound picked JIT outright: measure both FLZ and
		// CD and take whichever produces the shorter total payload.
		flzCompressed, err := flzCompress(data)
		if err != nil {
			return rewriteResult{}, err
		}
		cdCompressed, err := cdCompress(data)
		if err != nil {
			return rewriteResult{}, err
		}
		flzForwarderCode := flzForwarder(to)
		cdForwarderCode := cdForwarder(to)
		if len(flzForwarderCode)+len(flzCompressed) <= len(cdForwarderCode)+len(cdCompressed) {
			return rewriteResult{algorithm: AlgorithmFLZ, bytecode: flzForwarderCode, calldata: flzCompressed}, nil
		}
		return rewriteResult{algorithm: AlgorithmCD, bytecode: cdForwarderCode, calldata: cdCompressed}, nil
	}
}

// leftPad32 left-pads b with zero bytes to 32 bytes, matching the
// calldata layout the synthesised JIT bytecode expects for its target
// address word.
func leftPad32(b []byte) []byte {
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}
