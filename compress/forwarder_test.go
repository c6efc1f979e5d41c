package compress

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestForwarderSplicesAddress(t *testing.T) {
	addr := common.HexToAddress("0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef")

	flz := flzForwarder(addr)
	assert.Equal(t, addr.Bytes(), flz[flzAddressSlotOffset:flzAddressSlotOffset+20])
	assert.Equal(t, len(flzForwarderTemplate), len(flz))

	cd := cdForwarder(addr)
	assert.Equal(t, addr.Bytes(), cd[cdAddressSlotOffset:cdAddressSlotOffset+20])

	// Templates must not be mutated by splicing (addressed returns a copy).
	assert.NotEqual(t, addr.Bytes(), flzForwarderTemplate[flzAddressSlotOffset:flzAddressSlotOffset+20])
}
