// Package connector normalizes heterogeneous wallet providers behind one
// uniform contract. Each variant adapts a different native surface (injected
// extension, dapi provider, websocket relay) and translates that surface's
// error vocabulary into the shared taxonomy inside a single boundary; no
// native error type leaves this package.
package connector

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/nucleon-labs/neoportal/config"
	"github.com/nucleon-labs/neoportal/rpc"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "connector").Logger()
}

// Data is the live account/network snapshot reported by a connector. It is
// produced by querying the wallet and never persisted; an empty Account means
// the wallet reports no account, an empty NetworkID means the wallet is on a
// network this module does not know.
type Data struct {
	Account   string
	NetworkID config.NetworkID
	Version   string
}

// ConnectParams are the options for Connect. A non-empty NetworkID asks the
// connector to end up on that network.
type ConnectParams struct {
	NetworkID config.NetworkID
}

// SwitchChainParams are the options for SwitchChain.
type SwitchChainParams struct {
	NetworkID config.NetworkID
}

// InvokeParams describes a state-changing contract call to sign and
// broadcast through the wallet.
type InvokeParams struct {
	ScriptHash        string
	Operation         string
	Args              []rpc.Arg
	Signers           []rpc.Signer
	BroadcastOverride bool
}

// InvokeMultipleParams batches several invocations into one transaction.
type InvokeMultipleParams struct {
	Invocations       []rpc.Invocation
	Signers           []rpc.Signer
	BroadcastOverride bool
}

// InvokeResult is the wallet's answer to an invoke.
type InvokeResult struct {
	TransactionHash string
	// SignedTransaction is the base64 signed transaction when the wallet
	// returns it (broadcast override flows).
	SignedTransaction string
}

// Connector is the uniform contract over all wallet variants.
type Connector interface {
	// ID identifies the variant.
	ID() config.ConnectorID

	// Init probes for the wallet's provider and wires up its change events.
	// Idempotent; must not fail for "not installed" — absence shows up in
	// IsInstalled. Bounded even when the provider never becomes ready.
	Init(ctx context.Context) error

	// Destroy releases every event subscription taken by Init.
	Destroy(ctx context.Context) error

	IsInstalled(ctx context.Context) (bool, error)

	// GetVersion returns the wallet version, or "" when the wallet does not
	// report one.
	GetVersion(ctx context.Context) (string, error)

	// GetData re-queries the wallet live; it never returns cached data.
	GetData(ctx context.Context) (Data, error)

	// IsAuthorized reports the local persistence flag recording a previously
	// completed connect handshake. Distinct from "installed" and from
	// "currently has an account".
	IsAuthorized(ctx context.Context) (bool, error)

	// Connect triggers the wallet's authorization prompt (or relay pairing)
	// and sets the authorized flag on success. Re-entrant safe.
	Connect(ctx context.Context, params ConnectParams) error

	// Disconnect clears the authorized flag; relay variants also tear down
	// the relay session.
	Disconnect(ctx context.Context) error

	// SwitchChain asks the wallet to switch networks. Variants without
	// programmatic switching fail with SwitchChainNotSupported.
	SwitchChain(ctx context.Context, params SwitchChainParams) error

	Invoke(ctx context.Context, params InvokeParams) (*InvokeResult, error)
	InvokeMultiple(ctx context.Context, params InvokeMultipleParams) (*InvokeResult, error)

	// OnChange subscribes to change notifications carrying a freshly queried
	// Data snapshot. The returned function unsubscribes.
	OnChange(fn func(Data)) (func(), error)
}

// AuthStore persists per-connector authorization flags. *store.Store
// implements it.
type AuthStore interface {
	Authorized(id config.ConnectorID) (bool, error)
	SetAuthorized(id config.ConnectorID, authorized bool) error
}

const changeTopic = "change"

// changeEmitter fans a connector's change notifications out to subscribers.
type changeEmitter struct {
	bus EventBus.Bus
	id  config.ConnectorID
}

func newChangeEmitter(id config.ConnectorID) *changeEmitter {
	return &changeEmitter{bus: EventBus.New(), id: id}
}

func (e *changeEmitter) subscribe(fn func(Data)) (func(), error) {
	if err := e.bus.Subscribe(changeTopic, fn); err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s changes: %w", e.id, err)
	}
	return func() {
		_ = e.bus.Unsubscribe(changeTopic, fn)
	}, nil
}

func (e *changeEmitter) emit(data Data) {
	e.bus.Publish(changeTopic, data)
}

// emitFresh queries the connector live and publishes the snapshot. Used as
// the handler for the native provider's change events.
func emitFresh(c Connector, e *changeEmitter) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	data, err := c.GetData(ctx)
	if err != nil {
		log.Warn().Err(err).Str("connector", string(c.ID())).Msg("failed to refresh wallet state on change event")
		return
	}
	e.emit(data)
}
