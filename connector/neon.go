package connector

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/nucleon-labs/neoportal/config"
	"github.com/nucleon-labs/neoportal/relay"
	"github.com/nucleon-labs/neoportal/rpc"
	"github.com/nucleon-labs/neoportal/walleterr"
)

// RelaySession is the slice of the relay client the Neon connector needs.
// *relay.Client implements it.
type RelaySession interface {
	Active() bool
	Account() string
	Network() config.NetworkID
	Pair(ctx context.Context) error
	Teardown(ctx context.Context) error
	Request(ctx context.Context, method string, params, result any) error
	OnSessionChange(fn func()) func()
}

// Neon adapts the Neon wallet through a websocket relay. There is nothing to
// install on the host side, so IsInstalled is always true; authorization is
// the presence of a settled relay session, which the relay client persists
// across restarts.
type Neon struct {
	session   RelaySession
	emitter   *changeEmitter
	disposers []func()
}

// NewNeon creates the Neon connector over an established relay client.
func NewNeon(session RelaySession) *Neon {
	return &Neon{
		session: session,
		emitter: newChangeEmitter(config.ConnectorNeon),
	}
}

func (c *Neon) ID() config.ConnectorID {
	return config.ConnectorNeon
}

func (c *Neon) Init(ctx context.Context) error {
	emit := func() { emitFresh(c, c.emitter) }
	c.disposers = append(c.disposers, c.session.OnSessionChange(emit))
	return nil
}

func (c *Neon) Destroy(ctx context.Context) error {
	for _, dispose := range c.disposers {
		dispose()
	}
	c.disposers = nil
	return nil
}

func (c *Neon) IsInstalled(ctx context.Context) (bool, error) {
	return true, nil
}

// GetVersion returns "": the relay protocol does not carry a wallet version.
func (c *Neon) GetVersion(ctx context.Context) (string, error) {
	return "", nil
}

func (c *Neon) GetData(ctx context.Context) (Data, error) {
	if !c.session.Active() {
		return Data{}, nil
	}
	return Data{
		Account:   c.session.Account(),
		NetworkID: c.session.Network(),
	}, nil
}

func (c *Neon) IsAuthorized(ctx context.Context) (bool, error) {
	return c.session.Active(), nil
}

func (c *Neon) Connect(ctx context.Context, params ConnectParams) error {
	if c.session.Active() {
		return nil
	}
	if err := c.session.Pair(ctx); err != nil {
		return mapRelayError(err)
	}
	return nil
}

func (c *Neon) Disconnect(ctx context.Context) error {
	if err := c.session.Teardown(ctx); err != nil {
		return mapRelayError(err)
	}
	return nil
}

func (c *Neon) SwitchChain(ctx context.Context, params SwitchChainParams) error {
	return walleterr.New(walleterr.SwitchChainNotSupported, "")
}

func (c *Neon) Invoke(ctx context.Context, params InvokeParams) (*InvokeResult, error) {
	return c.invokeFunction(ctx, []rpc.Invocation{{
		ScriptHash: params.ScriptHash,
		Operation:  params.Operation,
		Args:       params.Args,
	}}, params.Signers, params.BroadcastOverride)
}

func (c *Neon) InvokeMultiple(ctx context.Context, params InvokeMultipleParams) (*InvokeResult, error) {
	return c.invokeFunction(ctx, params.Invocations, params.Signers, params.BroadcastOverride)
}

func (c *Neon) OnChange(fn func(Data)) (func(), error) {
	return c.emitter.subscribe(fn)
}

func (c *Neon) invokeFunction(ctx context.Context, invocations []rpc.Invocation, signers []rpc.Signer, broadcastOverride bool) (*InvokeResult, error) {
	payload := map[string]any{
		"invocations":       invocations,
		"signers":           signers,
		"broadcastOverride": broadcastOverride,
	}
	var raw json.RawMessage
	if err := c.session.Request(ctx, relay.MethodInvokeFunction, payload, &raw); err != nil {
		return nil, mapRelayError(err)
	}

	// The wallet answers with either a bare txid string or an object.
	var txid string
	if err := json.Unmarshal(raw, &txid); err == nil {
		return &InvokeResult{TransactionHash: txid}, nil
	}
	var out struct {
		TxID     string `json:"txid"`
		SignedTx string `json:"signedTx"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, walleterr.Wrap(walleterr.Unknown, "failed to decode relay invoke response", err)
	}
	return &InvokeResult{TransactionHash: out.TxID, SignedTransaction: out.SignedTx}, nil
}

// mapRelayError is the single translation boundary for the relay's error
// vocabulary.
func mapRelayError(err error) error {
	if errors.Is(err, relay.ErrNoSession) {
		return walleterr.Wrap(walleterr.NotConnected, "", err)
	}

	var fe *relay.FaultError
	if !errors.As(err, &fe) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return walleterr.Wrap(walleterr.CommunicationFailed, err.Error(), err)
	}

	switch fe.Code {
	case relay.CodeUserRejected:
		return walleterr.Wrap(walleterr.UserRejected, "", fe)
	case relay.CodeInvalidParams:
		return walleterr.Wrap(walleterr.InvalidParams, "", fe)
	case relay.CodeInsufficientFunds:
		return walleterr.Wrap(walleterr.InsufficientFunds, "", fe)
	case relay.CodeRemoteRPC:
		return walleterr.Wrap(walleterr.NetworkError, fe.Message, fe)
	}
	return walleterr.Wrap(walleterr.Unknown, fe.Message, fe)
}
