package invoke

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/nucleon-labs/neoportal/address"
	"github.com/nucleon-labs/neoportal/config"
	"github.com/nucleon-labs/neoportal/rpc"
	"github.com/nucleon-labs/neoportal/walleterr"
	"github.com/shopspring/decimal"
)

// ScopeCalledByEntry restricts a signature to calls made directly by the
// transaction's entry script.
const ScopeCalledByEntry = "CalledByEntry"

// Decimals reads a NEP-17 token's decimals.
func (s *Service) Decimals(ctx context.Context, networkID config.NetworkID, tokenHash string) (int32, error) {
	stack, err := s.InvokeRead(ctx, networkID, tokenHash, "decimals", nil, nil)
	if err != nil {
		return 0, err
	}
	n, err := stackInteger(stack, 0)
	if err != nil {
		return 0, err
	}
	return int32(n), nil
}

// Symbol reads a NEP-17 token's symbol. The node answers with a base64
// byte string.
func (s *Service) Symbol(ctx context.Context, networkID config.NetworkID, tokenHash string) (string, error) {
	stack, err := s.InvokeRead(ctx, networkID, tokenHash, "symbol", nil, nil)
	if err != nil {
		return "", err
	}
	if len(stack) == 0 {
		return "", walleterr.New(walleterr.ContractInvocationFailed, "symbol returned an empty stack")
	}
	encoded, ok := stack[0].AsString()
	if !ok {
		return "", walleterr.New(walleterr.ContractInvocationFailed, "symbol returned a non-string item")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", walleterr.Wrap(walleterr.ContractInvocationFailed, "malformed symbol encoding", err)
	}
	return string(raw), nil
}

// Balance reads an account's NEP-17 balance as a human-readable amount.
func (s *Service) Balance(ctx context.Context, networkID config.NetworkID, tokenHash, account string) (decimal.Decimal, error) {
	scriptHash, err := address.ToScriptHash(account)
	if err != nil {
		return decimal.Zero, walleterr.Wrap(walleterr.InvalidParams, "malformed account address", err)
	}

	decimals, err := s.Decimals(ctx, networkID, tokenHash)
	if err != nil {
		return decimal.Zero, err
	}

	stack, err := s.InvokeRead(ctx, networkID, tokenHash, "balanceOf",
		[]rpc.Arg{{Type: rpc.ArgHash160, Value: scriptHash}}, nil)
	if err != nil {
		return decimal.Zero, err
	}
	raw, err := stackIntegerString(stack, 0)
	if err != nil {
		return decimal.Zero, err
	}
	return RawToAmount(raw, decimals)
}

// TransferParams describes a NEP-17 transfer between two addresses.
type TransferParams struct {
	NetworkID config.NetworkID
	TokenHash string
	From      string
	To        string
	Amount    decimal.Decimal
}

// Transfer sends a NEP-17 transfer through the connected wallet: the amount
// is converted to its raw integer at the token's decimals, the from account
// signs with CalledByEntry scope, and the transaction hash is returned.
func (s *Service) Transfer(ctx context.Context, params TransferParams) (string, error) {
	fromHash, err := address.ToScriptHash(params.From)
	if err != nil {
		return "", walleterr.Wrap(walleterr.InvalidParams, "malformed from address", err)
	}
	toHash, err := address.ToScriptHash(params.To)
	if err != nil {
		return "", walleterr.Wrap(walleterr.InvalidParams, "malformed to address", err)
	}

	decimals, err := s.Decimals(ctx, params.NetworkID, params.TokenHash)
	if err != nil {
		return "", err
	}

	result, err := s.Invoke(ctx, Params{
		ScriptHash: params.TokenHash,
		Operation:  "transfer",
		Args: []rpc.Arg{
			{Type: rpc.ArgHash160, Value: fromHash},
			{Type: rpc.ArgHash160, Value: toHash},
			{Type: rpc.ArgInteger, Value: AmountToRaw(params.Amount, decimals)},
			{Type: rpc.ArgAny, Value: nil},
		},
		Signers:   []rpc.Signer{{Account: fromHash, Scopes: ScopeCalledByEntry}},
		NetworkID: params.NetworkID,
		Account:   params.From,
	})
	if err != nil {
		return "", err
	}
	return result.TransactionHash, nil
}

// stackInteger decodes the stack item at index as an int64.
func stackInteger(stack []rpc.StackItem, index int) (int64, error) {
	raw, err := stackIntegerString(stack, index)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, walleterr.Wrap(walleterr.ContractInvocationFailed, "integer result out of range", err)
	}
	return n, nil
}

// stackIntegerString decodes the stack item at index as a decimal integer
// string, tolerating the forms JSON decoding produces.
func stackIntegerString(stack []rpc.StackItem, index int) (string, error) {
	if index >= len(stack) {
		return "", walleterr.New(walleterr.ContractInvocationFailed,
			fmt.Sprintf("result stack has no item %d", index))
	}
	item := stack[index]
	switch value := item.Value.(type) {
	case string:
		return value, nil
	case float64:
		return decimal.NewFromFloat(value).String(), nil
	}
	return "", walleterr.New(walleterr.ContractInvocationFailed,
		"expected an integer stack item, got "+item.Type)
}
