package connector

import (
	"context"
	"encoding/json"

	"github.com/nucleon-labs/neoportal/rpc"
)

// The types below describe the native wallet surfaces this package adapts.
// They are NOT under this module's control: the host (a WASM/JS bridge, a
// desktop IPC bridge, or a test fake) supplies implementations; the
// connectors' only job is translating them into the Connector contract.

// ProviderInfo is the metadata a provider reports about itself.
type ProviderInfo struct {
	Name    string
	Website string
	Version string
}

// NeoLineAccount is the account record the NeoLine surface returns.
type NeoLineAccount struct {
	Address string
	Label   string
}

// NeoLineNetworks is the network record the NeoLine surface returns.
type NeoLineNetworks struct {
	ChainID        int
	DefaultNetwork string
}

// NeoLineInvokeResult is the NeoLine invoke answer; SignedTx is hex when the
// broadcast override is in effect.
type NeoLineInvokeResult struct {
	TxID     string
	SignedTx string
}

// NeoLine provider event names.
const (
	NeoLineEventNetworkChanged = "NEOLine.N3.EVENT.NETWORK_CHANGED"
	NeoLineEventAccountChanged = "NEOLine.N3.EVENT.ACCOUNT_CHANGED"
)

// NeoLineProvider is the surface the NeoLine extension injects into the host.
type NeoLineProvider interface {
	// Ready returns a channel that is closed once the extension has injected
	// its API. It may never close when the extension is absent; callers must
	// bound their wait.
	Ready() <-chan struct{}

	GetProvider(ctx context.Context) (ProviderInfo, error)
	GetNetworks(ctx context.Context) (NeoLineNetworks, error)
	GetAccount(ctx context.Context) (NeoLineAccount, error)
	SwitchWalletNetwork(ctx context.Context, chainID int) error
	Invoke(ctx context.Context, params InvokeParams) (NeoLineInvokeResult, error)
	InvokeMultiple(ctx context.Context, invocations []rpc.Invocation, signers []rpc.Signer) (NeoLineInvokeResult, error)

	// On registers an event handler and returns its disposer.
	On(event string, fn func()) func()
}

// NeoLineError is NeoLine's native error shape: a string type tag plus a
// message or description.
type NeoLineError struct {
	Type        string
	Message     string
	Description string
}

func (e *NeoLineError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Description != "" {
		return e.Description
	}
	return e.Type
}

// NeoLine native error type tags.
const (
	NeoLineNoProvider        = "NO_PROVIDER"
	NeoLineConnectionDenied  = "CONNECTION_DENIED"
	NeoLineConnectionRefused = "CONNECTION_REFUSED"
	NeoLineRPCError          = "RPC_ERROR"
	NeoLineMalformedInput    = "MALFORMED_INPUT"
	NeoLineCanceled          = "CANCELED"
	NeoLineInsufficientFunds = "INSUFFICIENT_FUNDS"
)

// Dapi provider event names.
const (
	DapiEventNetworkChanged = "networkChanged"
	DapiEventAccountChanged = "accountChanged"
)

// DapiProvider is the request/response surface dapi wallets (OneGate)
// expose: one generic method call plus change events.
type DapiProvider interface {
	Request(ctx context.Context, method string, params any) (json.RawMessage, error)

	// On registers an event handler and returns its disposer.
	On(event string, fn func()) func()
}

// DapiError is the dapi wallets' native error shape: a numeric code in a
// JSON-RPC style vocabulary.
type DapiError struct {
	Code    int
	Message string
	Data    any
}

func (e *DapiError) Error() string {
	return e.Message
}

// Dapi native error codes.
const (
	DapiCodeCommunicationFailed = -32300
	DapiCodeInvalidParams       = -32602
	DapiCodeUserRejected        = 4001
	DapiCodeUnsupportedNetwork  = 4100
	DapiCodeNoAccount           = 4200
	DapiCodeInsufficientFunds   = 4201
	DapiCodeRemoteRPC           = 4300
	DapiCodeMalformedInput      = 4301
)
