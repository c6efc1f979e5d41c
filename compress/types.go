package compress

import (
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DecompressorAddress is the fixed address at which the synthesised
// contract (or one of the fixed forwarders) is installed via a state
// override for the duration of the call. Its last byte is 0xe0 on
// purpose: that lets the emitted bytecode recover its own address in a
// single ADDRESS opcode (compress/jit/emitter.go).
var DecompressorAddress = common.HexToAddress("0x00000000000000000000000000000000000000e0")

// Multicall3Address is the only pre-existing state-override key a
// payload is allowed to carry and still be eligible.
var Multicall3Address = common.HexToAddress("0xca11bde05977b3631167028862be2a173976ca11")

// CallObject is params[0] of an eth_call request. Fields outside
// {to, data, from} disqualify the call, so unlike
// internal/ethapi.CallArgs this type is decoded via a raw map first
// (see decodeCallObject) rather than a plain json.Unmarshal, so extra
// keys can be detected instead of silently dropped.
type CallObject struct {
	From *common.Address `json:"from,omitempty"`
	To   *common.Address `json:"to,omitempty"`
	Data hexutil.Bytes   `json:"data,omitempty"`
}

var callObjectKeys = map[string]bool{"from": true, "to": true, "data": true}

// decodeCallObject parses raw into a CallObject, reporting whether raw
// contained only the keys {to, data, from}.
func decodeCallObject(raw json.RawMessage) (CallObject, bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return CallObject{}, false, err
	}
	for k := range fields {
		if !callObjectKeys[strings.ToLower(k)] {
			return CallObject{}, false, nil
		}
	}
	var obj CallObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return CallObject{}, false, err
	}
	return obj, true, nil
}

// AccountOverride mirrors the fields of state.OverrideAccount that a
// caller-supplied state override may carry. Unlike the node-side type
// this package never applies an override to real state; it only needs
// to read a caller's existing override map and merge one entry into
// it, so nonce/balance/state-diff fields round-trip as opaque
// json.RawMessage rather than being decoded into uint256/common types.
type AccountOverride struct {
	Code hexutil.Bytes `json:"code,omitempty"`
	raw  json.RawMessage
}

func (a AccountOverride) MarshalJSON() ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if len(a.raw) > 0 {
		if err := json.Unmarshal(a.raw, &fields); err != nil {
			return nil, err
		}
	}
	codeJSON, err := json.Marshal(a.Code)
	if err != nil {
		return nil, err
	}
	fields["code"] = codeJSON
	return json.Marshal(fields)
}

func (a *AccountOverride) UnmarshalJSON(data []byte) error {
	a.raw = append(json.RawMessage(nil), data...)
	var alias struct {
		Code hexutil.Bytes `json:"code,omitempty"`
	}
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	a.Code = alias.Code
	return nil
}

// StateOverrides is params[2]: a mapping from address to the account
// fields to override for the duration of the call. Keys are compared
// case-insensitively, matching how go-ethereum's RPC layer treats hex
// addresses.
type StateOverrides map[common.Address]AccountOverride

// Payload is a parsed eth_call-shaped JSON-RPC request. Method and
// Params are held separately from the JSON-RPC envelope's ID/Version
// fields (Extra) so that rewriting the call object and state overrides
// never disturbs whatever transport metadata the caller attached.
type Payload struct {
	Method string            `json:"method,omitempty"`
	Params []json.RawMessage `json:"params,omitempty"`
	Extra  map[string]json.RawMessage `json:"-"`
}

// ParsePayload decodes a JSON-RPC request object, or a bare call
// object for legacy callers that omit the envelope.
func ParsePayload(data []byte) (Payload, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Payload{}, err
	}
	var p Payload
	p.Extra = make(map[string]json.RawMessage)
	for k, v := range fields {
		switch k {
		case "method":
			if err := json.Unmarshal(v, &p.Method); err != nil {
				return Payload{}, err
			}
		case "params":
			if err := json.Unmarshal(v, &p.Params); err != nil {
				return Payload{}, err
			}
		default:
			p.Extra[k] = v
		}
	}
	if p.Params == nil && len(fields) > 0 {
		// Legacy shape: method sits alongside the call object's own
		// fields instead of behind an envelope's params array. Build
		// params[0] from the leftover fields only (p.Extra already
		// excludes method and params), so the call object never carries
		// a stray "method" key that would fail decodeCallObject's
		// closed-key check.
		callJSON, err := json.Marshal(p.Extra)
		if err != nil {
			return Payload{}, err
		}
		p.Params = []json.RawMessage{callJSON}
		p.Extra = make(map[string]json.RawMessage)
	}
	return p, nil
}

// MarshalJSON re-assembles the envelope, preserving whatever
// transport fields (id, jsonrpc) were present on the input.
func (p Payload) MarshalJSON() ([]byte, error) {
	fields := map[string]json.RawMessage{}
	for k, v := range p.Extra {
		fields[k] = v
	}
	if p.Method != "" {
		b, err := json.Marshal(p.Method)
		if err != nil {
			return nil, err
		}
		fields["method"] = b
	}
	if p.Params != nil {
		b, err := json.Marshal(p.Params)
		if err != nil {
			return nil, err
		}
		fields["params"] = b
	}
	return json.Marshal(fields)
}

// Clone returns a deep-enough copy of p that mutating the copy's
// Params slice and Extra map never touches the original, so callers
// can freely construct a rewritten Payload from Clone() without
// aliasing the input.
func (p Payload) Clone() Payload {
	c := Payload{Method: p.Method}
	c.Params = append([]json.RawMessage(nil), p.Params...)
	c.Extra = make(map[string]json.RawMessage, len(p.Extra))
	for k, v := range p.Extra {
		c.Extra[k] = v
	}
	return c
}

// Algorithm names the compression path a caller may force via a hint.
type Algorithm string

const (
	AlgorithmJIT Algorithm = "jit"
	AlgorithmFLZ Algorithm = "flz"
	AlgorithmCD  Algorithm = "cd"
)
