package connector

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/nucleon-labs/neoportal/address"
	"github.com/nucleon-labs/neoportal/config"
	"github.com/nucleon-labs/neoportal/walleterr"
)

// DefaultReadyTimeout bounds the wait for an injected provider's ready
// signal. An extension that is not installed never signals, so Init resolves
// "not installed" after this long instead of hanging.
const DefaultReadyTimeout = 3 * time.Second

var neoLineNetworkIDs = map[int]config.NetworkID{
	3: config.NetworkMainnet,
	6: config.NetworkTestnet,
}

var neoLineChainIDs = map[config.NetworkID]int{
	config.NetworkMainnet: 3,
	config.NetworkTestnet: 6,
}

// NeoLine adapts the NeoLine injected-extension surface. The authorized flag
// is session-scoped: it does not survive a host restart, so every fresh
// process starts unauthorized until the user connects again.
type NeoLine struct {
	provider     NeoLineProvider
	emitter      *changeEmitter
	readyTimeout time.Duration

	mu         sync.Mutex
	inited     bool
	installed  bool
	authorized bool
	disposers  []func()
}

// NeoLineOption configures a NeoLine connector.
type NeoLineOption func(*NeoLine)

// WithReadyTimeout overrides the ready-signal wait bound.
func WithReadyTimeout(d time.Duration) NeoLineOption {
	return func(c *NeoLine) { c.readyTimeout = d }
}

// NewNeoLine creates the NeoLine connector. A nil provider means the host
// has no bridge for this wallet at all; the connector then reports not
// installed.
func NewNeoLine(provider NeoLineProvider, opts ...NeoLineOption) *NeoLine {
	c := &NeoLine{
		provider:     provider,
		emitter:      newChangeEmitter(config.ConnectorNeoLine),
		readyTimeout: DefaultReadyTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *NeoLine) ID() config.ConnectorID {
	return config.ConnectorNeoLine
}

func (c *NeoLine) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inited {
		return nil
	}
	c.inited = true

	if c.provider == nil {
		c.installed = false
		return nil
	}

	select {
	case <-c.provider.Ready():
		c.installed = true
	case <-time.After(c.readyTimeout):
		c.installed = false
	case <-ctx.Done():
		return ctx.Err()
	}

	if c.installed {
		emit := func() { emitFresh(c, c.emitter) }
		c.disposers = append(c.disposers,
			c.provider.On(NeoLineEventNetworkChanged, emit),
			c.provider.On(NeoLineEventAccountChanged, emit),
		)
	}
	return nil
}

func (c *NeoLine) Destroy(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, dispose := range c.disposers {
		dispose()
	}
	c.disposers = nil
	return nil
}

func (c *NeoLine) IsInstalled(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.installed, nil
}

// requireProvider rejects provider calls when the host has no bridge, so
// every method past Init answers NotInstalled instead of dereferencing nil.
func (c *NeoLine) requireProvider() error {
	if c.provider == nil {
		return walleterr.New(walleterr.NotInstalled, "")
	}
	return nil
}

func (c *NeoLine) GetVersion(ctx context.Context) (string, error) {
	if err := c.requireProvider(); err != nil {
		return "", err
	}
	info, err := c.provider.GetProvider(ctx)
	if err != nil {
		return "", mapNeoLineError(err)
	}
	return info.Version, nil
}

func (c *NeoLine) GetData(ctx context.Context) (Data, error) {
	if err := c.requireProvider(); err != nil {
		return Data{}, err
	}
	networks, err := c.provider.GetNetworks(ctx)
	if err != nil {
		return Data{}, mapNeoLineError(err)
	}

	data := Data{NetworkID: neoLineNetworkIDs[networks.ChainID]}

	authorized, _ := c.IsAuthorized(ctx)
	if authorized {
		account, err := c.provider.GetAccount(ctx)
		if err != nil {
			return Data{}, mapNeoLineError(err)
		}
		if address.IsValid(account.Address) {
			data.Account = account.Address
		}
	}
	return data, nil
}

func (c *NeoLine) IsAuthorized(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authorized, nil
}

func (c *NeoLine) Connect(ctx context.Context, params ConnectParams) error {
	if err := c.requireProvider(); err != nil {
		return err
	}
	// getAccount triggers the extension's authorization prompt.
	if _, err := c.provider.GetAccount(ctx); err != nil {
		return mapNeoLineError(err)
	}
	c.mu.Lock()
	c.authorized = true
	c.mu.Unlock()
	return nil
}

func (c *NeoLine) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	c.authorized = false
	c.mu.Unlock()
	return nil
}

func (c *NeoLine) SwitchChain(ctx context.Context, params SwitchChainParams) error {
	if err := c.requireProvider(); err != nil {
		return err
	}
	chainID, ok := neoLineChainIDs[params.NetworkID]
	if !ok {
		return walleterr.New(walleterr.InvalidParams, "unsupported network id: "+string(params.NetworkID))
	}
	if err := c.provider.SwitchWalletNetwork(ctx, chainID); err != nil {
		return mapNeoLineError(err)
	}
	return nil
}

func (c *NeoLine) Invoke(ctx context.Context, params InvokeParams) (*InvokeResult, error) {
	if err := c.requireProvider(); err != nil {
		return nil, err
	}
	result, err := c.provider.Invoke(ctx, params)
	if err != nil {
		return nil, mapNeoLineError(err)
	}
	return neoLineInvokeResult(result)
}

func (c *NeoLine) InvokeMultiple(ctx context.Context, params InvokeMultipleParams) (*InvokeResult, error) {
	if err := c.requireProvider(); err != nil {
		return nil, err
	}
	result, err := c.provider.InvokeMultiple(ctx, params.Invocations, params.Signers)
	if err != nil {
		return nil, mapNeoLineError(err)
	}
	return neoLineInvokeResult(result)
}

func (c *NeoLine) OnChange(fn func(Data)) (func(), error) {
	return c.emitter.subscribe(fn)
}

// neoLineInvokeResult converts NeoLine's answer, re-encoding the hex signed
// transaction as base64 to match the uniform contract.
func neoLineInvokeResult(result NeoLineInvokeResult) (*InvokeResult, error) {
	out := &InvokeResult{TransactionHash: result.TxID}
	if result.SignedTx != "" {
		raw, err := hex.DecodeString(result.SignedTx)
		if err != nil {
			return nil, walleterr.Wrap(walleterr.Unknown, "wallet returned malformed signed transaction", err)
		}
		out.SignedTransaction = base64.StdEncoding.EncodeToString(raw)
	}
	return out, nil
}

// mapNeoLineError is the single translation boundary for NeoLine's native
// error vocabulary. Pure; unit-testable with fabricated native errors.
func mapNeoLineError(err error) error {
	var ne *NeoLineError
	if !errors.As(err, &ne) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return walleterr.Wrap(walleterr.Unknown, err.Error(), err)
	}

	switch ne.Type {
	case NeoLineNoProvider:
		return walleterr.Wrap(walleterr.NotInstalled, "", ne)
	case NeoLineConnectionDenied, NeoLineCanceled:
		return walleterr.Wrap(walleterr.UserRejected, "", ne)
	case NeoLineConnectionRefused:
		return walleterr.Wrap(walleterr.CommunicationFailed, "", ne)
	case NeoLineRPCError:
		return walleterr.Wrap(walleterr.NetworkError, ne.Error(), ne)
	case NeoLineMalformedInput:
		return walleterr.Wrap(walleterr.MalformedInput, "", ne)
	case NeoLineInsufficientFunds:
		return walleterr.Wrap(walleterr.InsufficientFunds, "", ne)
	}
	return walleterr.Wrap(walleterr.Unknown, ne.Error(), ne)
}
