// Package compress rewrites eth_call JSON-RPC requests to shrink
// their wire size, choosing between a just-in-time bytecode
// synthesiser (package jit) and two fixed-forwarder compressors
// (FastLZ, calldata-RLE) and installing the result behind a state
// override at a fixed decompressor address.
package compress

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
)

// CompressCall is the public entry point. It never returns an error
// for a malformed or ineligible payload — those are reported by
// returning the input unchanged. An error is only possible if raw
// itself is not a JSON object, if its "method" is not a string or its
// "params" not an array, or if the chosen compressor's black-box
// implementation fails on well-formed input, which would indicate an
// implementation bug.
func CompressCall(raw []byte, hint Algorithm) ([]byte, error) {
	payload, err := ParsePayload(raw)
	if err != nil {
		return nil, err
	}
	rewritten, changed, err := compressPayload(payload, hint)
	if err != nil {
		return nil, err
	}
	if !changed {
		return raw, nil
	}
	return json.Marshal(rewritten)
}

// compressPayload applies the eligibility gates, algorithm selection,
// and beneficial-only gate, returning changed == false whenever the
// input must be passed through unchanged.
func compressPayload(payload Payload, hint Algorithm) (Payload, bool, error) {
	call, overrides, blockTag, ok := eligible(payload)
	if !ok {
		return payload, false, nil
	}

	result, err := buildRewrite(*call.To, call.Data, hint)
	if err != nil {
		return payload, false, err
	}

	if len(result.bytecode)+len(result.calldata) >= len(call.Data) {
		log.Warn("compress: rewrite not beneficial, returning original payload",
			"algorithm", result.algorithm, "originalLen", len(call.Data),
			"rewrittenLen", len(result.bytecode)+len(result.calldata))
		return payload, false, nil
	}

	decompressor := DecompressorAddress
	rewrittenCall := CallObject{
		From: call.From,
		To:   &decompressor,
		Data: hexutil.Bytes(result.calldata),
	}
	if overrides == nil {
		overrides = make(StateOverrides)
	} else {
		merged := make(StateOverrides, len(overrides)+1)
		for k, v := range overrides {
			merged[k] = v
		}
		overrides = merged
	}
	overrides[DecompressorAddress] = AccountOverride{Code: hexutil.Bytes(result.bytecode)}

	out := payload.Clone()
	callJSON, err := json.Marshal(rewrittenCall)
	if err != nil {
		return payload, false, err
	}
	blockTagJSON, err := json.Marshal(blockTag)
	if err != nil {
		return payload, false, err
	}
	overridesJSON, err := json.Marshal(overrides)
	if err != nil {
		return payload, false, err
	}
	out.Params = []json.RawMessage{callJSON, blockTagJSON, overridesJSON}

	log.Debug("compress: rewrote eth_call payload", "algorithm", result.algorithm,
		"originalLen", len(call.Data), "rewrittenLen", len(result.bytecode)+len(result.calldata))
	return out, true, nil
}
