// Package address converts between Neo N3 addresses and script hashes. An
// address is the base58check encoding of a version byte plus the big-endian
// script hash; the canonical textual script hash is 0x-prefixed little-endian
// hex.
package address

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
)

// AddressVersion is the Neo N3 address version byte.
const AddressVersion byte = 0x35

const scriptHashLen = 20

// ToScriptHash converts an address to its 0x-prefixed script hash.
func ToScriptHash(addr string) (string, error) {
	payload, version, err := base58.CheckDecode(addr)
	if err != nil {
		return "", fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if version != AddressVersion {
		return "", fmt.Errorf("invalid address version 0x%02x", version)
	}
	if len(payload) != scriptHashLen {
		return "", fmt.Errorf("invalid address payload length %d", len(payload))
	}

	reversed := make([]byte, scriptHashLen)
	for i, b := range payload {
		reversed[scriptHashLen-1-i] = b
	}
	return "0x" + hex.EncodeToString(reversed), nil
}

// FromScriptHash converts a 0x-prefixed script hash back to an address.
func FromScriptHash(scriptHash string) (string, error) {
	raw, err := DecodeScriptHash(scriptHash)
	if err != nil {
		return "", err
	}

	bigEndian := make([]byte, scriptHashLen)
	for i, b := range raw {
		bigEndian[scriptHashLen-1-i] = b
	}
	return base58.CheckEncode(bigEndian, AddressVersion), nil
}

// DecodeScriptHash decodes a 0x-prefixed script hash into its little-endian
// 20 raw bytes.
func DecodeScriptHash(scriptHash string) ([]byte, error) {
	if !IsScriptHash(scriptHash) {
		return nil, fmt.Errorf("invalid script hash %q", scriptHash)
	}
	raw, err := hex.DecodeString(scriptHash[2:])
	if err != nil {
		return nil, fmt.Errorf("invalid script hash %q: %w", scriptHash, err)
	}
	return raw, nil
}

// IsValid reports whether addr is a well-formed Neo N3 address.
func IsValid(addr string) bool {
	_, err := ToScriptHash(addr)
	return err == nil
}

// IsScriptHash reports whether s is a 0x-prefixed 20-byte hex script hash.
func IsScriptHash(s string) bool {
	if len(s) != 2+scriptHashLen*2 || s[0] != '0' || s[1] != 'x' {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}
