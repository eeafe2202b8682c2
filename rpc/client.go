// Package rpc executes JSON-RPC 2.0 calls against a network's node
// endpoints. Transport failures retry on the current endpoint and then fail
// over to the next one; a circuit breaker per endpoint keeps a dead node from
// eating every request's retry budget. Protocol faults are translated into
// taxonomy errors and never retried here.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/nucleon-labs/neoportal/config"
	"github.com/nucleon-labs/neoportal/walleterr"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "rpc").Logger()
}

// Client is a JSON-RPC client for one network.
type Client struct {
	httpClient *http.Client
	network    config.NetworkID
	urls       []string
	breakers   []*gobreaker.CircuitBreaker

	retryAttempts int
	retryDelay    time.Duration

	nextID atomic.Uint64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry sets the per-endpoint retry budget.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.retryAttempts = attempts
		c.retryDelay = delay
	}
}

// NewClient creates a client for the given network. The endpoint list comes
// from the validated network config, primary first.
func NewClient(network config.NetworkID, nc config.NetworkConfig, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return fmt.Errorf("redirect not allowed (count=%d) to %s", len(via), req.URL.String())
			},
		},
		network:       network,
		urls:          nc.RPCURLs,
		retryAttempts: 2,
		retryDelay:    500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breakers = make([]*gobreaker.CircuitBreaker, len(c.urls))
	for i, url := range c.urls {
		c.breakers[i] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    fmt.Sprintf("%s:%s", network, url),
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("endpoint", name).
					Str("from", from.String()).Str("to", to.String()).
					Msg("endpoint breaker state change")
			},
		})
	}

	return c
}

// Call performs one JSON-RPC call, decoding the result into result when it is
// non-nil. Endpoints are tried in order; a protocol fault stops the failover
// loop immediately because every node would answer the same.
func (c *Client) Call(ctx context.Context, method string, params []any, result any) error {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return walleterr.Wrap(walleterr.MalformedInput,
			fmt.Sprintf("failed to marshal request for method %s", method), err)
	}

	var lastErr error
	for i, url := range c.urls {
		raw, err := c.breakers[i].Execute(func() (any, error) {
			return c.post(ctx, url, body)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				log.Debug().Str("endpoint", url).Msg("endpoint breaker open, skipping")
			}
			lastErr = err
			if i < len(c.urls)-1 {
				failoversTotal.WithLabelValues(string(c.network)).Inc()
				log.Warn().Err(err).Str("endpoint", url).Str("method", method).Msg("failover to next endpoint")
			}
			continue
		}

		resp := raw.(*response)
		if resp.Error != nil {
			requestsTotal.WithLabelValues(string(c.network), method, "fault").Inc()
			return mapFault(method, resp.Error)
		}
		if result != nil {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				requestsTotal.WithLabelValues(string(c.network), method, "decode_error").Inc()
				return walleterr.Wrap(walleterr.Unknown,
					fmt.Sprintf("failed to decode %s result", method), err)
			}
		}
		requestsTotal.WithLabelValues(string(c.network), method, "ok").Inc()
		return nil
	}

	requestsTotal.WithLabelValues(string(c.network), method, "network_error").Inc()
	return walleterr.Wrap(walleterr.NetworkError,
		fmt.Sprintf("all endpoints failed for method %s", method), lastErr)
}

// post sends the request to one endpoint with the per-endpoint retry budget.
func (c *Client) post(ctx context.Context, url string, body []byte) (*response, error) {
	var lastErr error
	delay := c.retryDelay

	for attempt := 0; attempt <= c.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		httpResp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		respBody, err := io.ReadAll(httpResp.Body)
		_ = httpResp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if httpResp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, string(respBody))
			continue
		}

		var resp response
		if err := json.Unmarshal(respBody, &resp); err != nil {
			lastErr = fmt.Errorf("failed to decode response: %w", err)
			continue
		}
		return &resp, nil
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.retryAttempts+1, lastErr)
}

// mapFault translates a JSON-RPC fault into a taxonomy error. The fault
// object is preserved in Data so callers (the confirmation poller) can
// inspect the code without string matching.
func mapFault(method string, f *Fault) *walleterr.Error {
	kind := walleterr.Unknown
	switch f.Code {
	case CodeInvalidParams:
		kind = walleterr.InvalidParams
	case CodeParseError, CodeInvalidRequest:
		kind = walleterr.MalformedInput
	}
	msg := fmt.Sprintf("%s: %s", method, f.Message)
	return walleterr.Wrap(kind, msg, f, walleterr.WithData(f))
}

// FaultOf extracts the JSON-RPC fault from a taxonomy error, if the error
// originated from a node fault.
func FaultOf(err error) (*Fault, bool) {
	var e *walleterr.Error
	if !errors.As(err, &e) {
		return nil, false
	}
	f, ok := e.Data.(*Fault)
	return f, ok
}

// InvokeFunction executes a read-only contract call.
func (c *Client) InvokeFunction(ctx context.Context, scriptHash, operation string, args []Arg, signers []Signer) (*InvokeResult, error) {
	if args == nil {
		args = []Arg{}
	}
	if signers == nil {
		signers = []Signer{}
	}
	var result InvokeResult
	if err := c.Call(ctx, "invokefunction", []any{scriptHash, operation, args, signers}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// InvokeScript executes a base64-encoded script read-only.
func (c *Client) InvokeScript(ctx context.Context, base64Script string, signers []Signer) (*InvokeResult, error) {
	if signers == nil {
		signers = []Signer{}
	}
	var result InvokeResult
	if err := c.Call(ctx, "invokescript", []any{base64Script, signers}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetApplicationLog fetches the application log of an included transaction.
// While the transaction is unconfirmed the node answers with the unknown
// transaction fault; see Fault.IsNotFound.
func (c *Client) GetApplicationLog(ctx context.Context, txHash string) (*ApplicationLog, error) {
	var result ApplicationLog
	if err := c.Call(ctx, "getapplicationlog", []any{txHash}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetVersion fetches the node's version info.
func (c *Client) GetVersion(ctx context.Context) (*VersionInfo, error) {
	var result VersionInfo
	if err := c.Call(ctx, "getversion", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Network returns the network this client talks to.
func (c *Client) Network() config.NetworkID {
	return c.network
}
