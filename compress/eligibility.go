package compress

import "encoding/json"

// minEligibleHexLen is the minimum params[0].data hex-character length:
// below this, the rewritten payload can never beat the original, so
// the gate rejects before doing any compression work.
const minEligibleHexLen = 1150

// eligible runs every eligibility gate and, on success, returns the
// decoded call object, state overrides and block tag ready for buildRewrite.
// Any gate failure returns ok == false and the caller must return the
// original payload unchanged.
func eligible(p Payload) (call CallObject, overrides StateOverrides, blockTag string, ok bool) {
	if p.Method != "" && p.Method != "eth_call" {
		return CallObject{}, nil, "", false
	}
	if len(p.Params) == 0 {
		return CallObject{}, nil, "", false
	}

	call, validKeys, err := decodeCallObject(p.Params[0])
	if err != nil || !validKeys {
		return CallObject{}, nil, "", false
	}
	if call.To == nil || len(call.Data) == 0 {
		return CallObject{}, nil, "", false
	}

	blockTag = "latest"
	if len(p.Params) > 1 && len(p.Params[1]) > 0 && string(p.Params[1]) != "null" {
		var tag string
		if err := json.Unmarshal(p.Params[1], &tag); err != nil || tag != "latest" {
			return CallObject{}, nil, "", false
		}
		blockTag = tag
	}

	if len(p.Params) > 2 && len(p.Params[2]) > 0 && string(p.Params[2]) != "null" {
		if err := json.Unmarshal(p.Params[2], &overrides); err != nil {
			return CallObject{}, nil, "", false
		}
		for addr := range overrides {
			if addr != Multicall3Address {
				return CallObject{}, nil, "", false
			}
		}
	}

	if len(call.Data)*2 < minEligibleHexLen {
		return CallObject{}, nil, "", false
	}
	return call, overrides, blockTag, true
}
