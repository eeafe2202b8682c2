package address_test

import (
	"testing"

	"github.com/nucleon-labs/neoportal/address"
	"github.com/zeebo/assert"
)

func TestRoundTrip(t *testing.T) {
	// GAS token hash, arbitrary but stable.
	scriptHash := "0xd2a4cff31913016155e38e474a2c06d08be276cf"

	addr, err := address.FromScriptHash(scriptHash)
	assert.NoError(t, err)
	assert.True(t, address.IsValid(addr))

	back, err := address.ToScriptHash(addr)
	assert.NoError(t, err)
	assert.Equal(t, scriptHash, back)
}

func TestInvalidAddress(t *testing.T) {
	_, err := address.ToScriptHash("not-an-address")
	assert.Error(t, err)
	assert.False(t, address.IsValid("not-an-address"))
}

func TestIsScriptHash(t *testing.T) {
	assert.True(t, address.IsScriptHash("0xd2a4cff31913016155e38e474a2c06d08be276cf"))
	assert.False(t, address.IsScriptHash("d2a4cff31913016155e38e474a2c06d08be276cf"))
	assert.False(t, address.IsScriptHash("0xd2a4"))
	assert.False(t, address.IsScriptHash("0xzz a4cff31913016155e38e474a2c06d08be276c"))
}

func TestDecodeScriptHashLength(t *testing.T) {
	raw, err := address.DecodeScriptHash("0xd2a4cff31913016155e38e474a2c06d08be276cf")
	assert.NoError(t, err)
	assert.Equal(t, 20, len(raw))
}
