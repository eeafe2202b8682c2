package invoke

import (
	"github.com/nucleon-labs/neoportal/walleterr"
	"github.com/shopspring/decimal"
)

// RawToAmount converts a raw on-chain integer quantity into its
// human-readable amount for a token with the given decimals. Excess
// precision is truncated toward zero; the conversion never rounds value into
// existence.
func RawToAmount(raw string, decimals int32) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, walleterr.Wrap(walleterr.MalformedInput, "malformed raw amount: "+raw, err)
	}
	if !d.IsInteger() {
		return decimal.Zero, walleterr.New(walleterr.MalformedInput, "raw amount must be an integer: "+raw)
	}
	return d.Shift(-decimals), nil
}

// AmountToRaw converts a human-readable amount into the raw on-chain
// integer. Precision beyond the token's decimals is truncated toward zero.
func AmountToRaw(amount decimal.Decimal, decimals int32) string {
	return amount.Shift(decimals).Truncate(0).String()
}

// AmountStringToRaw is AmountToRaw for textual amounts.
func AmountStringToRaw(amount string, decimals int32) (string, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return "", walleterr.Wrap(walleterr.MalformedInput, "malformed amount: "+amount, err)
	}
	return AmountToRaw(d, decimals), nil
}
