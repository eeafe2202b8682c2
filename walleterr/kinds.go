package walleterr

// Kind is a closed category of failure used for uniform handling across the
// wallet, RPC and invocation layers. Every error produced by this module
// belongs to exactly one Kind.
type Kind string

const (
	// NotInstalled means the wallet provider is absent from the host
	// environment. User-actionable (install), never retried automatically.
	NotInstalled Kind = "not_installed"
	// NotConnected means no connector is currently active.
	NotConnected Kind = "not_connected"
	// ChainMismatch means the active connector reports a different network
	// than the one the operation targets.
	ChainMismatch Kind = "chain_mismatch"
	// AccountMismatch means the active connector reports a different account
	// than the one the operation targets.
	AccountMismatch Kind = "account_mismatch"
	// AccountNotFound means the connector is connected but reports no account.
	AccountNotFound Kind = "account_not_found"
	// VersionIncompatible means the wallet is below the minimum supported version.
	VersionIncompatible Kind = "version_incompatible"
	// UserRejected means the user declined a wallet prompt. Not a bug.
	UserRejected Kind = "user_rejected"
	// InvalidParams means the wallet or node rejected a caller-built request.
	InvalidParams Kind = "invalid_params"
	// MalformedInput means the wallet could not parse a caller-built request.
	MalformedInput Kind = "malformed_input"
	// InsufficientFunds means an on-chain balance precondition failed.
	InsufficientFunds Kind = "insufficient_funds"
	// CommunicationFailed means the transport to the wallet broke down.
	CommunicationFailed Kind = "communication_failed"
	// NetworkError means the transport to the node broke down.
	NetworkError Kind = "network_error"
	// ContractInvocationFailed carries the chain's exception string verbatim.
	ContractInvocationFailed Kind = "contract_invocation_failed"
	// SwitchChainNotSupported means the connector variant cannot switch
	// networks programmatically.
	SwitchChainNotSupported Kind = "switch_chain_not_supported"
	// ConfirmationTimeout means the confirmation poller exhausted its retry
	// budget before the transaction appeared on-chain.
	ConfirmationTimeout Kind = "confirmation_timeout"
	// Unknown is the catch-all for native errors without a mapping. Always
	// flagged as needing a fix so mapping gaps stay visible.
	Unknown Kind = "unknown"
)

var defaultMessages = map[Kind]string{
	NotInstalled:             "Wallet not installed.",
	NotConnected:             "Wallet not connected.",
	ChainMismatch:            "The current network of the wallet does not match the requesting one, please switch in the wallet.",
	AccountMismatch:          "The current account of the wallet does not match the requesting one, please switch in the wallet.",
	AccountNotFound:          "Wallet does not have an account.",
	VersionIncompatible:      "The version of the wallet is not compatible with this app, please upgrade to the latest version.",
	UserRejected:             "User rejected request.",
	InvalidParams:            "Invalid params.",
	MalformedInput:           "Malformed input.",
	InsufficientFunds:        "Insufficient funds.",
	CommunicationFailed:      "Communication with the wallet failed.",
	NetworkError:             "Network request failed.",
	ContractInvocationFailed: "Contract invocation failed.",
	SwitchChainNotSupported:  "Switching network is not supported, please operate in the wallet.",
	ConfirmationTimeout:      "Timed out waiting for transaction confirmation.",
	Unknown:                  "Unknown wallet error.",
}

// needFixDefaults marks which kinds indicate a programming error rather than
// an expected, user-driven outcome. Kinds absent from this map default to
// true so that unmapped failures surface in telemetry.
var needFixDefaults = map[Kind]bool{
	NotInstalled:             false,
	NotConnected:             false,
	ChainMismatch:            false,
	AccountMismatch:          false,
	AccountNotFound:          false,
	VersionIncompatible:      false,
	UserRejected:             false,
	InsufficientFunds:        false,
	SwitchChainNotSupported:  false,
	ConfirmationTimeout:      false,
	ContractInvocationFailed: false,
	NetworkError:             false,
	CommunicationFailed:      true,
	InvalidParams:            true,
	MalformedInput:           true,
	Unknown:                  true,
}

// DefaultMessage returns the user-facing message for a kind.
func DefaultMessage(kind Kind) string {
	if msg, ok := defaultMessages[kind]; ok {
		return msg
	}
	return defaultMessages[Unknown]
}
