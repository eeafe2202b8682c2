package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nucleon-labs/neoportal/address"
	"github.com/nucleon-labs/neoportal/config"
	"github.com/nucleon-labs/neoportal/confirm"
	"github.com/nucleon-labs/neoportal/connector"
	"github.com/nucleon-labs/neoportal/gateway"
	"github.com/nucleon-labs/neoportal/invoke"
	"github.com/nucleon-labs/neoportal/registry"
	"github.com/nucleon-labs/neoportal/rpc"
	"github.com/nucleon-labs/neoportal/store"
	"github.com/zeebo/assert"
)

const gasHash = "0xd2a4cff31913016155e38e474a2c06d08be276cf"

func newGateway(t *testing.T, node http.HandlerFunc) *httptest.Server {
	t.Helper()

	nodeSrv := httptest.NewServer(node)
	t.Cleanup(nodeSrv.Close)

	nc := config.NetworkConfig{Name: "TestNet", RPCURLs: []string{nodeSrv.URL}, FuraURL: nodeSrv.URL, Magic: 894710606}
	clients := map[config.NetworkID]*rpc.Client{
		config.NetworkTestnet: rpc.NewClient(config.NetworkTestnet, nc, rpc.WithRetry(0, time.Millisecond)),
	}

	s, err := store.OpenInMemory()
	assert.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	reg := registry.New(&config.Config{}, s, []connector.Connector{})
	assert.NoError(t, reg.Start(context.Background()))
	t.Cleanup(func() { _ = reg.Close() })

	poller := confirm.NewPoller(clients, confirm.WithBaseDelay(10*time.Millisecond))
	handlers := gateway.NewHandlers(reg, invoke.New(clients, nil), poller, clients)

	r := chi.NewRouter()
	r.Get("/v1/wallets", handlers.WalletSnapshot)
	r.Route("/v1/networks/{network}", func(r chi.Router) {
		r.Get("/tokens/{token}", handlers.TokenMetadata)
		r.Get("/tokens/{token}/balance", handlers.TokenBalance)
		r.Get("/transactions/{tx}", handlers.TransactionStatus)
		r.Get("/transactions/{tx}/wait", handlers.TransactionWait)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func nodeResult(w http.ResponseWriter, result any) {
	raw, _ := json.Marshal(result)
	_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": 1, "result": json.RawMessage(raw)})
}

func tokenNode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string `json:"method"`
		Params []any  `json:"params"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	operation := ""
	if len(req.Params) > 1 {
		operation, _ = req.Params[1].(string)
	}
	switch operation {
	case "symbol":
		nodeResult(w, map[string]any{"state": "HALT", "gasconsumed": "1", "stack": []map[string]any{{"type": "ByteString", "value": "R0FT"}}})
	case "decimals":
		nodeResult(w, map[string]any{"state": "HALT", "gasconsumed": "1", "stack": []map[string]any{{"type": "Integer", "value": "8"}}})
	case "balanceOf":
		nodeResult(w, map[string]any{"state": "HALT", "gasconsumed": "1", "stack": []map[string]any{{"type": "Integer", "value": "250000000"}}})
	}
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestWalletSnapshotEndpoint(t *testing.T) {
	srv := newGateway(t, tokenNode)

	var out struct {
		Wallets            map[string]any `json:"wallets"`
		EffectiveNetworkID string         `json:"effectiveNetworkId"`
	}
	status := getJSON(t, srv.URL+"/v1/wallets", &out)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(config.NetworkMainnet), out.EffectiveNetworkID)
}

func TestTokenMetadataEndpoint(t *testing.T) {
	srv := newGateway(t, tokenNode)

	var out struct {
		Symbol   string `json:"symbol"`
		Decimals int32  `json:"decimals"`
	}
	status := getJSON(t, srv.URL+"/v1/networks/testnet/tokens/"+gasHash, &out)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "GAS", out.Symbol)
	assert.Equal(t, int32(8), out.Decimals)
}

func TestTokenBalanceEndpoint(t *testing.T) {
	srv := newGateway(t, tokenNode)
	account, err := address.FromScriptHash(gasHash)
	assert.NoError(t, err)

	var out struct {
		Amount string `json:"amount"`
	}
	status := getJSON(t, srv.URL+"/v1/networks/testnet/tokens/"+gasHash+"/balance?account="+account, &out)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2.5", out.Amount)

	var errOut struct {
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	status = getJSON(t, srv.URL+"/v1/networks/testnet/tokens/"+gasHash+"/balance", &errOut)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_params", errOut.Error.Kind)
}

func TestTransactionStatusEndpoint(t *testing.T) {
	pendingSrv := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"error":   map[string]any{"code": rpc.CodeUnknownTransaction, "message": "Unknown transaction"},
		})
	})
	var out struct {
		Status string `json:"status"`
	}
	status := getJSON(t, pendingSrv.URL+"/v1/networks/testnet/transactions/0xfeed", &out)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pending", out.Status)

	confirmedSrv := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		nodeResult(w, map[string]any{
			"txid": "0xfeed",
			"executions": []map[string]any{
				{"trigger": "Application", "vmstate": "HALT", "gasconsumed": "99", "stack": []any{}},
			},
		})
	})
	status = getJSON(t, confirmedSrv.URL+"/v1/networks/testnet/transactions/0xfeed", &out)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "confirmed", out.Status)
}

func TestTransactionWaitEndpoint(t *testing.T) {
	srv := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		nodeResult(w, map[string]any{
			"txid": "0xfeed",
			"executions": []map[string]any{
				{"trigger": "Application", "vmstate": "HALT", "gasconsumed": "99", "stack": []any{}},
			},
		})
	})

	var out struct {
		Status  string `json:"status"`
		Retries int    `json:"retries"`
	}
	status := getJSON(t, srv.URL+"/v1/networks/testnet/transactions/0xfeed/wait?retries=2", &out)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "confirmed", out.Status)
	assert.Equal(t, 0, out.Retries)

	pendingSrv := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"error":   map[string]any{"code": rpc.CodeUnknownTransaction, "message": "Unknown transaction"},
		})
	})
	var errOut struct {
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	status = getJSON(t, pendingSrv.URL+"/v1/networks/testnet/transactions/0xfeed/wait?retries=2", &errOut)
	assert.Equal(t, http.StatusGatewayTimeout, status)
	assert.Equal(t, "confirmation_timeout", errOut.Error.Kind)
}
