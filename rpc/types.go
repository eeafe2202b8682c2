package rpc

import (
	"encoding/json"
	"strings"
)

// Arg is a typed contract argument. The typed envelope is part of the wire
// contract: values are tagged with a NeoVM parameter type, not raw values.
type Arg struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// Arg type tags.
const (
	ArgHash160   = "Hash160"
	ArgHash256   = "Hash256"
	ArgInteger   = "Integer"
	ArgString    = "String"
	ArgBoolean   = "Boolean"
	ArgByteArray = "ByteArray"
	ArgArray     = "Array"
	ArgAny       = "Any"
)

// Signer is the JSON form of a transaction signer.
type Signer struct {
	Account          string          `json:"account"`
	Scopes           string          `json:"scopes"`
	AllowedContracts []string        `json:"allowedcontracts,omitempty"`
	AllowedGroups    []string        `json:"allowedgroups,omitempty"`
	Rules            json.RawMessage `json:"rules,omitempty"`
}

// Invocation describes one contract call.
type Invocation struct {
	ScriptHash string `json:"scriptHash"`
	Operation  string `json:"operation"`
	Args       []Arg  `json:"args,omitempty"`
}

// StackItem is one item of a NeoVM result stack.
type StackItem struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// AsString returns the item's value when it is a string.
func (s StackItem) AsString() (string, bool) {
	v, ok := s.Value.(string)
	return v, ok
}

// InvokeResult is the result-or-fault envelope shared by invokefunction and
// invokescript. A non-nil Exception means the invocation faulted on-chain.
type InvokeResult struct {
	Script      string      `json:"script"`
	State       string      `json:"state"`
	GasConsumed string      `json:"gasconsumed"`
	Exception   *string     `json:"exception"`
	Stack       []StackItem `json:"stack"`
}

// Notification is one event emitted during transaction execution.
type Notification struct {
	Contract  string    `json:"contract"`
	EventName string    `json:"eventname"`
	State     StackItem `json:"state"`
}

// Execution is one execution record of an application log.
type Execution struct {
	Trigger       string         `json:"trigger"`
	VMState       string         `json:"vmstate"`
	GasConsumed   string         `json:"gasconsumed"`
	Exception     *string        `json:"exception"`
	Stack         []StackItem    `json:"stack"`
	Notifications []Notification `json:"notifications"`
}

// ApplicationLog is the node's record of an included transaction.
type ApplicationLog struct {
	TxID       string      `json:"txid"`
	Executions []Execution `json:"executions"`
}

// VersionInfo is the node's getversion response, trimmed to what the module
// consumes.
type VersionInfo struct {
	UserAgent string `json:"useragent"`
	Protocol  struct {
		Network uint32 `json:"network"`
	} `json:"protocol"`
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint64 `json:"id"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *Fault          `json:"error"`
}

// Fault is a JSON-RPC error object returned by the node.
type Fault struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (f *Fault) Error() string {
	return f.Message
}

// Standard JSON-RPC fault codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeUnknownTransaction is the node's not-found signal for
	// getapplicationlog while a transaction is unconfirmed.
	CodeUnknownTransaction = -100
)

// IsNotFound reports whether the fault is the expected transient "transaction
// unknown" signal the confirmation poller retries on.
func (f *Fault) IsNotFound() bool {
	if f == nil {
		return false
	}
	return f.Code == CodeUnknownTransaction || strings.Contains(f.Message, "Unknown transaction")
}
