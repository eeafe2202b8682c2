package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nucleon-labs/neoportal/address"
	"github.com/nucleon-labs/neoportal/config"
	"github.com/nucleon-labs/neoportal/rpc"
	"github.com/nucleon-labs/neoportal/walleterr"
)

// dapi request method names.
const (
	dapiGetProvider = "getProvider"
	dapiGetNetworks = "getNetworks"
	dapiGetAccount  = "getAccount"
	dapiInvoke      = "invoke"
	dapiInvokeMulti = "invokeMulti"
)

// OneGate adapts the OneGate dapi provider. Unlike NeoLine its authorized
// flag is durable: it lives in the auth store and survives restarts, so a
// previously paired wallet reconnects silently.
type OneGate struct {
	provider  DapiProvider
	store     AuthStore
	emitter   *changeEmitter
	disposers []func()
}

// NewOneGate creates the OneGate connector. A nil provider means the host
// has no OneGate bridge and the connector reports not installed.
func NewOneGate(provider DapiProvider, store AuthStore) *OneGate {
	return &OneGate{
		provider: provider,
		store:    store,
		emitter:  newChangeEmitter(config.ConnectorOneGate),
	}
}

func (c *OneGate) ID() config.ConnectorID {
	return config.ConnectorOneGate
}

func (c *OneGate) Init(ctx context.Context) error {
	if c.provider == nil {
		return nil
	}
	emit := func() { emitFresh(c, c.emitter) }
	c.disposers = append(c.disposers,
		c.provider.On(DapiEventNetworkChanged, emit),
		c.provider.On(DapiEventAccountChanged, emit),
	)
	return nil
}

func (c *OneGate) Destroy(ctx context.Context) error {
	for _, dispose := range c.disposers {
		dispose()
	}
	c.disposers = nil
	return nil
}

func (c *OneGate) IsInstalled(ctx context.Context) (bool, error) {
	return c.provider != nil, nil
}

func (c *OneGate) GetVersion(ctx context.Context) (string, error) {
	var info struct {
		Version string `json:"version"`
	}
	if err := c.request(ctx, dapiGetProvider, nil, &info); err != nil {
		return "", err
	}
	return info.Version, nil
}

func (c *OneGate) GetData(ctx context.Context) (Data, error) {
	var networks struct {
		DefaultNetwork string `json:"defaultNetwork"`
	}
	if err := c.request(ctx, dapiGetNetworks, nil, &networks); err != nil {
		return Data{}, err
	}

	data := Data{NetworkID: dapiNetworkID(networks.DefaultNetwork)}

	authorized, err := c.IsAuthorized(ctx)
	if err != nil {
		return Data{}, err
	}
	if authorized {
		var account struct {
			Address string `json:"address"`
		}
		if err := c.request(ctx, dapiGetAccount, nil, &account); err != nil {
			return Data{}, err
		}
		if address.IsValid(account.Address) {
			data.Account = account.Address
		}
	}
	return data, nil
}

func (c *OneGate) IsAuthorized(ctx context.Context) (bool, error) {
	authorized, err := c.store.Authorized(c.ID())
	if err != nil {
		return false, walleterr.Wrap(walleterr.Unknown, "failed to read authorization flag", err)
	}
	return authorized, nil
}

func (c *OneGate) Connect(ctx context.Context, params ConnectParams) error {
	var account struct {
		Address string `json:"address"`
	}
	if err := c.request(ctx, dapiGetAccount, nil, &account); err != nil {
		return err
	}
	if err := c.store.SetAuthorized(c.ID(), true); err != nil {
		return walleterr.Wrap(walleterr.Unknown, "failed to persist authorization flag", err)
	}
	return nil
}

func (c *OneGate) Disconnect(ctx context.Context) error {
	if err := c.store.SetAuthorized(c.ID(), false); err != nil {
		return walleterr.Wrap(walleterr.Unknown, "failed to clear authorization flag", err)
	}
	return nil
}

func (c *OneGate) SwitchChain(ctx context.Context, params SwitchChainParams) error {
	return walleterr.New(walleterr.SwitchChainNotSupported, "")
}

func (c *OneGate) Invoke(ctx context.Context, params InvokeParams) (*InvokeResult, error) {
	payload := map[string]any{
		"scriptHash":        params.ScriptHash,
		"operation":         params.Operation,
		"args":              argsOrEmpty(params.Args),
		"signers":           params.Signers,
		"broadcastOverride": params.BroadcastOverride,
	}
	return c.invokeRequest(ctx, dapiInvoke, payload)
}

func (c *OneGate) InvokeMultiple(ctx context.Context, params InvokeMultipleParams) (*InvokeResult, error) {
	payload := map[string]any{
		"invokeArgs":        params.Invocations,
		"signers":           params.Signers,
		"broadcastOverride": params.BroadcastOverride,
	}
	return c.invokeRequest(ctx, dapiInvokeMulti, payload)
}

func (c *OneGate) OnChange(fn func(Data)) (func(), error) {
	return c.emitter.subscribe(fn)
}

func (c *OneGate) invokeRequest(ctx context.Context, method string, payload any) (*InvokeResult, error) {
	var out struct {
		TxID     string `json:"txid"`
		SignedTx string `json:"signedTx"`
	}
	if err := c.request(ctx, method, payload, &out); err != nil {
		return nil, err
	}
	return &InvokeResult{
		TransactionHash:   out.TxID,
		SignedTransaction: out.SignedTx,
	}, nil
}

func (c *OneGate) request(ctx context.Context, method string, params, result any) error {
	if c.provider == nil {
		return walleterr.New(walleterr.NotInstalled, "")
	}
	raw, err := c.provider.Request(ctx, method, params)
	if err != nil {
		return mapDapiError(err)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return walleterr.Wrap(walleterr.Unknown, fmt.Sprintf("failed to decode %s response", method), err)
	}
	return nil
}

func argsOrEmpty(args []rpc.Arg) []rpc.Arg {
	if args == nil {
		return []rpc.Arg{}
	}
	return args
}

func dapiNetworkID(name string) config.NetworkID {
	switch name {
	case "MainNet", "N3MainNet":
		return config.NetworkMainnet
	case "TestNet", "N3TestNet":
		return config.NetworkTestnet
	}
	return ""
}

// mapDapiError is the single translation boundary for the dapi error
// vocabulary.
func mapDapiError(err error) error {
	var de *DapiError
	if !errors.As(err, &de) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return walleterr.Wrap(walleterr.Unknown, err.Error(), err)
	}

	switch de.Code {
	case DapiCodeCommunicationFailed:
		return walleterr.Wrap(walleterr.CommunicationFailed, "", de)
	case DapiCodeInvalidParams:
		return walleterr.Wrap(walleterr.InvalidParams, "", de)
	case DapiCodeUserRejected:
		return walleterr.Wrap(walleterr.UserRejected, "", de)
	case DapiCodeUnsupportedNetwork:
		return walleterr.Wrap(walleterr.ChainMismatch, "", de)
	case DapiCodeNoAccount:
		return walleterr.Wrap(walleterr.AccountNotFound, "", de)
	case DapiCodeInsufficientFunds:
		return walleterr.Wrap(walleterr.InsufficientFunds, "", de)
	case DapiCodeRemoteRPC:
		return walleterr.Wrap(walleterr.NetworkError, de.Message, de)
	case DapiCodeMalformedInput:
		return walleterr.Wrap(walleterr.MalformedInput, "", de)
	}
	return walleterr.Wrap(walleterr.Unknown, de.Message, de)
}
