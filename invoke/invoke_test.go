package invoke_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nucleon-labs/neoportal/address"
	"github.com/nucleon-labs/neoportal/config"
	"github.com/nucleon-labs/neoportal/connector"
	"github.com/nucleon-labs/neoportal/invoke"
	"github.com/nucleon-labs/neoportal/registry"
	"github.com/nucleon-labs/neoportal/rpc"
	"github.com/nucleon-labs/neoportal/walleterr"
	"github.com/shopspring/decimal"
	"github.com/zeebo/assert"
)

const gasHash = "0xd2a4cff31913016155e38e474a2c06d08be276cf"

// testAccount is valid by construction so address decoding succeeds.
var testAccount = func() string {
	addr, err := address.FromScriptHash(gasHash)
	if err != nil {
		panic(err)
	}
	return addr
}()

func newService(t *testing.T, handler http.HandlerFunc, guard invoke.Guard) *invoke.Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	nc := config.NetworkConfig{
		Name:    "TestNet",
		RPCURLs: []string{srv.URL},
		FuraURL: srv.URL,
		Magic:   894710606,
	}
	client := rpc.NewClient(config.NetworkTestnet, nc, rpc.WithRetry(0, time.Millisecond))
	return invoke.New(map[config.NetworkID]*rpc.Client{config.NetworkTestnet: client}, guard)
}

func writeInvokeResult(w http.ResponseWriter, state string, exception *string, stack []map[string]any) {
	result := map[string]any{
		"state":       state,
		"gasconsumed": "1234",
		"exception":   exception,
		"stack":       stack,
	}
	raw, _ := json.Marshal(result)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"result":  json.RawMessage(raw),
	})
}

// operationOf pulls the requested operation out of an invokefunction body.
func operationOf(r *http.Request) string {
	var req struct {
		Method string `json:"method"`
		Params []any  `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ""
	}
	if req.Method != "invokefunction" || len(req.Params) < 2 {
		return req.Method
	}
	op, _ := req.Params[1].(string)
	return op
}

func TestInvokeReadReturnsStack(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		writeInvokeResult(w, "HALT", nil, []map[string]any{{"type": "Integer", "value": "8"}})
	}, nil)

	stack, err := svc.InvokeRead(context.Background(), config.NetworkTestnet, gasHash, "decimals", nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(stack))
}

func TestInvokeReadSurfacesExceptionVerbatim(t *testing.T) {
	exception := "ASSERT is executed with false result."
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		writeInvokeResult(w, "FAULT", &exception, nil)
	}, nil)

	_, err := svc.InvokeRead(context.Background(), config.NetworkTestnet, gasHash, "transfer", nil, nil)
	assert.Equal(t, walleterr.ContractInvocationFailed, walleterr.KindOf(err))
	assert.Equal(t, exception, err.Error())
}

func TestInvokeReadUnknownNetwork(t *testing.T) {
	svc := invoke.New(map[config.NetworkID]*rpc.Client{}, nil)
	_, err := svc.InvokeRead(context.Background(), config.NetworkMainnet, gasHash, "symbol", nil, nil)
	assert.Equal(t, walleterr.InvalidParams, walleterr.KindOf(err))
}

func TestInvokeReadMultipleSendsAssembledScript(t *testing.T) {
	var gotScript string
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
			Params []any  `json:"params"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "invokescript", req.Method)
		gotScript, _ = req.Params[0].(string)
		writeInvokeResult(w, "HALT", nil, []map[string]any{
			{"type": "Integer", "value": "8"},
			{"type": "ByteString", "value": "R0FT"},
		})
	}, nil)

	invocations := []rpc.Invocation{
		{ScriptHash: gasHash, Operation: "decimals"},
		{ScriptHash: gasHash, Operation: "symbol"},
	}
	stack, err := svc.InvokeReadMultiple(context.Background(), config.NetworkTestnet, invocations, nil)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(stack))

	expected, err := invoke.BuildScript(invocations)
	assert.NoError(t, err)
	assert.Equal(t, expected, gotScript)
}

// guardedConnector records the invocation it is asked to sign.
type guardedConnector struct {
	stubBase
	lastInvoke connector.InvokeParams
	result     connector.InvokeResult
}

func (g *guardedConnector) Invoke(ctx context.Context, params connector.InvokeParams) (*connector.InvokeResult, error) {
	g.lastInvoke = params
	result := g.result
	return &result, nil
}

func (g *guardedConnector) InvokeMultiple(ctx context.Context, params connector.InvokeMultipleParams) (*connector.InvokeResult, error) {
	result := g.result
	return &result, nil
}

// stubBase fills the connector methods the facade never touches.
type stubBase struct{}

func (stubBase) ID() config.ConnectorID                         { return config.ConnectorNeoLine }
func (stubBase) Init(context.Context) error                     { return nil }
func (stubBase) Destroy(context.Context) error                  { return nil }
func (stubBase) IsInstalled(context.Context) (bool, error)      { return true, nil }
func (stubBase) GetVersion(context.Context) (string, error)     { return "", nil }
func (stubBase) GetData(context.Context) (connector.Data, error) {
	return connector.Data{}, nil
}
func (stubBase) IsAuthorized(context.Context) (bool, error) { return true, nil }
func (stubBase) Connect(context.Context, connector.ConnectParams) error {
	return nil
}
func (stubBase) Disconnect(context.Context) error { return nil }
func (stubBase) SwitchChain(context.Context, connector.SwitchChainParams) error {
	return nil
}
func (stubBase) Invoke(context.Context, connector.InvokeParams) (*connector.InvokeResult, error) {
	return nil, nil
}
func (stubBase) InvokeMultiple(context.Context, connector.InvokeMultipleParams) (*connector.InvokeResult, error) {
	return nil, nil
}
func (stubBase) OnChange(func(connector.Data)) (func(), error) {
	return func() {}, nil
}

type fakeGuard struct {
	ready *registry.Ready
	err   error
	got   registry.ReadyParams
}

func (g *fakeGuard) EnsureReady(ctx context.Context, params registry.ReadyParams) (*registry.Ready, error) {
	g.got = params
	return g.ready, g.err
}

func (g *fakeGuard) Do(id config.ConnectorID, fn func() error) error {
	return fn()
}

func TestInvokePassesGuardAndConnector(t *testing.T) {
	conn := &guardedConnector{result: connector.InvokeResult{TransactionHash: "0xfeed"}}
	guard := &fakeGuard{ready: &registry.Ready{
		Connector:   conn,
		ConnectorID: config.ConnectorNeoLine,
		NetworkID:   config.NetworkTestnet,
		Account:     testAccount,
	}}
	svc := invoke.New(nil, guard)

	result, err := svc.Invoke(context.Background(), invoke.Params{
		ScriptHash: gasHash,
		Operation:  "transfer",
		NetworkID:  config.NetworkTestnet,
		Account:    testAccount,
	})
	assert.NoError(t, err)
	assert.Equal(t, "0xfeed", result.TransactionHash)
	assert.Equal(t, config.NetworkTestnet, guard.got.NetworkID)
	assert.Equal(t, "transfer", conn.lastInvoke.Operation)
}

func TestInvokeRejectedByGuard(t *testing.T) {
	guard := &fakeGuard{err: walleterr.New(walleterr.ChainMismatch, "")}
	svc := invoke.New(nil, guard)

	_, err := svc.Invoke(context.Background(), invoke.Params{NetworkID: config.NetworkMainnet})
	assert.Equal(t, walleterr.ChainMismatch, walleterr.KindOf(err))
}

func TestNep17Reads(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		switch operationOf(r) {
		case "decimals":
			writeInvokeResult(w, "HALT", nil, []map[string]any{{"type": "Integer", "value": "8"}})
		case "symbol":
			writeInvokeResult(w, "HALT", nil, []map[string]any{{"type": "ByteString", "value": "R0FT"}})
		case "balanceOf":
			writeInvokeResult(w, "HALT", nil, []map[string]any{{"type": "Integer", "value": "150000000"}})
		default:
			writeInvokeResult(w, "FAULT", nil, nil)
		}
	}, nil)
	ctx := context.Background()

	decimals, err := svc.Decimals(ctx, config.NetworkTestnet, gasHash)
	assert.NoError(t, err)
	assert.Equal(t, int32(8), decimals)

	symbol, err := svc.Symbol(ctx, config.NetworkTestnet, gasHash)
	assert.NoError(t, err)
	assert.Equal(t, "GAS", symbol)

	balance, err := svc.Balance(ctx, config.NetworkTestnet, gasHash, testAccount)
	assert.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("1.5")))
}

func TestTransferBuildsTypedArgs(t *testing.T) {
	conn := &guardedConnector{result: connector.InvokeResult{TransactionHash: "0xbeef"}}
	guard := &fakeGuard{ready: &registry.Ready{
		Connector:   conn,
		ConnectorID: config.ConnectorNeoLine,
		NetworkID:   config.NetworkTestnet,
		Account:     testAccount,
	}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeInvokeResult(w, "HALT", nil, []map[string]any{{"type": "Integer", "value": "8"}})
	}))
	t.Cleanup(srv.Close)
	nc := config.NetworkConfig{Name: "TestNet", RPCURLs: []string{srv.URL}, FuraURL: srv.URL, Magic: 894710606}
	client := rpc.NewClient(config.NetworkTestnet, nc, rpc.WithRetry(0, time.Millisecond))
	svc := invoke.New(map[config.NetworkID]*rpc.Client{config.NetworkTestnet: client}, guard)

	txHash, err := svc.Transfer(context.Background(), invoke.TransferParams{
		NetworkID: config.NetworkTestnet,
		TokenHash: gasHash,
		From:      testAccount,
		To:        testAccount,
		Amount:    decimal.RequireFromString("1.5"),
	})
	assert.NoError(t, err)
	assert.Equal(t, "0xbeef", txHash)

	args := conn.lastInvoke.Args
	assert.Equal(t, 4, len(args))
	assert.Equal(t, rpc.ArgHash160, args[0].Type)
	assert.Equal(t, rpc.ArgInteger, args[2].Type)
	assert.Equal(t, "150000000", args[2].Value)
	assert.Equal(t, rpc.ArgAny, args[3].Type)
	assert.Nil(t, args[3].Value)

	assert.Equal(t, 1, len(conn.lastInvoke.Signers))
	assert.Equal(t, invoke.ScopeCalledByEntry, conn.lastInvoke.Signers[0].Scopes)
}
