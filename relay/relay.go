// Package relay implements the websocket pairing transport behind the Neon
// connector. A dapp pairs with the remote wallet through a relay server; the
// settled session (topic, account, network) is persisted so it survives host
// restarts, and requests are correlated frames over one websocket.
package relay

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nucleon-labs/neoportal/config"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "relay").Logger()
}

// ErrNoSession is returned when a request is made without a settled session.
var ErrNoSession = errors.New("no settled relay session")

// MethodInvokeFunction is the wallet request for signing and broadcasting a
// contract invocation.
const MethodInvokeFunction = "invokeFunction"

// Relay fault codes carried in response frames.
const (
	CodeInvalidParams     = -32602
	CodeUserRejected      = 5000
	CodeInsufficientFunds = 5200
	CodeRemoteRPC         = 5300
)

// FaultError is an error frame sent by the wallet or the relay.
type FaultError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("relay fault %d: %s", e.Code, e.Message)
}

// SessionRecord is the durable outcome of a pairing handshake.
type SessionRecord struct {
	Topic   string           `json:"topic"`
	Account string           `json:"account"`
	Network config.NetworkID `json:"network"`
	Expiry  time.Time        `json:"expiry"`
}

// Expired reports whether the session's expiry has passed. A zero expiry
// never expires.
func (r SessionRecord) Expired() bool {
	return !r.Expiry.IsZero() && time.Now().After(r.Expiry)
}

// SessionStore persists the relay session record. *store.Store implements it.
type SessionStore interface {
	LoadRelaySession(v any) (bool, error)
	SaveRelaySession(v any) error
	DeleteRelaySession() error
}
