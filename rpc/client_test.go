package rpc_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nucleon-labs/neoportal/config"
	"github.com/nucleon-labs/neoportal/rpc"
	"github.com/nucleon-labs/neoportal/walleterr"
	"github.com/zeebo/assert"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, extra ...string) *rpc.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	nc := config.NetworkConfig{
		Name:    "TestNet",
		RPCURLs: append([]string{srv.URL}, extra...),
		FuraURL: srv.URL,
		Magic:   894710606,
	}
	return rpc.NewClient(config.NetworkTestnet, nc, rpc.WithRetry(0, time.Millisecond))
}

func writeResult(w http.ResponseWriter, result any) {
	raw, _ := json.Marshal(result)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"result":  json.RawMessage(raw),
	})
}

func writeFault(w http.ResponseWriter, code int, message string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"error":   map[string]any{"code": code, "message": message},
	})
}

func TestInvokeFunctionDecodesEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "invokefunction", req["method"])

		params := req["params"].([]any)
		assert.Equal(t, 4, len(params))
		assert.Equal(t, "0xd2a4cff31913016155e38e474a2c06d08be276cf", params[0])
		assert.Equal(t, "balanceOf", params[1])

		writeResult(w, map[string]any{
			"state":       "HALT",
			"gasconsumed": "999999",
			"exception":   nil,
			"stack":       []map[string]any{{"type": "Integer", "value": "1000"}},
		})
	})

	result, err := client.InvokeFunction(context.Background(),
		"0xd2a4cff31913016155e38e474a2c06d08be276cf", "balanceOf",
		[]rpc.Arg{{Type: rpc.ArgHash160, Value: "0xabc"}}, nil)
	assert.NoError(t, err)
	assert.Nil(t, result.Exception)
	assert.Equal(t, 1, len(result.Stack))

	v, ok := result.Stack[0].AsString()
	assert.True(t, ok)
	assert.Equal(t, "1000", v)
}

func TestFaultMapsToTaxonomy(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeFault(w, rpc.CodeInvalidParams, "Invalid params")
	})

	_, err := client.InvokeFunction(context.Background(), "0xabc", "symbol", nil, nil)
	assert.Error(t, err)
	assert.Equal(t, walleterr.InvalidParams, walleterr.KindOf(err))

	fault, ok := rpc.FaultOf(err)
	assert.True(t, ok)
	assert.Equal(t, rpc.CodeInvalidParams, fault.Code)
}

func TestUnknownTransactionFault(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeFault(w, rpc.CodeUnknownTransaction, "Unknown transaction")
	})

	_, err := client.GetApplicationLog(context.Background(), "0xdeadbeef")
	assert.Error(t, err)

	fault, ok := rpc.FaultOf(err)
	assert.True(t, ok)
	assert.True(t, fault.IsNotFound())
}

func TestFailoverToSecondEndpoint(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, map[string]any{"useragent": "/Neo:3.7.4/"})
	}))
	t.Cleanup(good.Close)

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(dead.Close)

	nc := config.NetworkConfig{
		Name:    "TestNet",
		RPCURLs: []string{dead.URL, good.URL},
		FuraURL: good.URL,
		Magic:   894710606,
	}
	client := rpc.NewClient(config.NetworkTestnet, nc, rpc.WithRetry(0, time.Millisecond))

	version, err := client.GetVersion(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "/Neo:3.7.4/", version.UserAgent)
}

func TestAllEndpointsDownIsNetworkError(t *testing.T) {
	nc := config.NetworkConfig{
		Name:    "TestNet",
		RPCURLs: []string{"http://127.0.0.1:1"},
		FuraURL: "http://127.0.0.1:1",
		Magic:   894710606,
	}
	client := rpc.NewClient(config.NetworkTestnet, nc, rpc.WithRetry(0, time.Millisecond))

	_, err := client.GetVersion(context.Background())
	assert.Error(t, err)
	assert.Equal(t, walleterr.NetworkError, walleterr.KindOf(err))
}
