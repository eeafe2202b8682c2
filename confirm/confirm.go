// Package confirm polls a node until a broadcast transaction shows up in an
// application log. Until it is included the node answers getapplicationlog
// with an "Unknown transaction" fault, which is the one error treated as
// transient; everything else ends the wait.
package confirm

import (
	"context"
	"errors"
	"math"
	"os"
	"time"

	"github.com/nucleon-labs/neoportal/config"
	"github.com/nucleon-labs/neoportal/rpc"
	"github.com/nucleon-labs/neoportal/walleterr"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "confirm").Logger()
}

const (
	defaultBaseDelay     = 5 * time.Second
	defaultBackoffFactor = 1.2
)

// Poller waits for transaction confirmations over per-network RPC clients.
type Poller struct {
	clients       map[config.NetworkID]*rpc.Client
	baseDelay     time.Duration
	backoffFactor float64
}

// Option configures a Poller.
type Option func(*Poller)

// WithBaseDelay overrides the first retry delay. Later delays grow by the
// backoff factor from it.
func WithBaseDelay(d time.Duration) Option {
	return func(p *Poller) { p.baseDelay = d }
}

// NewPoller creates a confirmation poller.
func NewPoller(clients map[config.NetworkID]*rpc.Client, opts ...Option) *Poller {
	p := &Poller{
		clients:       clients,
		baseDelay:     defaultBaseDelay,
		backoffFactor: defaultBackoffFactor,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WaitOpts bounds a single wait. The zero value polls until the context
// ends, matching a dapp that keeps waiting as long as the user does.
type WaitOpts struct {
	// MaxRetries caps how many times the unknown-transaction answer is
	// retried. 0 means unbounded.
	MaxRetries int
}

// Result is a finished wait.
type Result struct {
	TxHash  string
	Log     *rpc.ApplicationLog
	Retries int
}

// Faulted reports whether the transaction was included but its execution
// ended in FAULT.
func (r *Result) Faulted() bool {
	for _, execution := range r.Log.Executions {
		if execution.VMState == "FAULT" {
			return true
		}
	}
	return false
}

// Wait polls getapplicationlog until the transaction is included, the retry
// budget runs out, or ctx ends. An exhausted budget and an expired deadline
// both surface as ConfirmationTimeout; a caller-cancelled context is
// returned as-is.
func (p *Poller) Wait(ctx context.Context, networkID config.NetworkID, txHash string, opts WaitOpts) (*Result, error) {
	client, ok := p.clients[networkID]
	if !ok {
		return nil, walleterr.New(walleterr.InvalidParams, "no rpc client for network: "+string(networkID))
	}

	for retries := 0; ; retries++ {
		appLog, err := client.GetApplicationLog(ctx, txHash)
		if err == nil {
			log.Info().Str("tx", txHash).Int("retries", retries).Msg("transaction confirmed")
			return &Result{TxHash: txHash, Log: appLog, Retries: retries}, nil
		}

		fault, isFault := rpc.FaultOf(err)
		if !isFault || !fault.IsNotFound() {
			return nil, err
		}

		if opts.MaxRetries > 0 && retries >= opts.MaxRetries {
			retriesExhausted.WithLabelValues(string(networkID)).Inc()
			return nil, walleterr.Wrap(walleterr.ConfirmationTimeout, "", err,
				walleterr.WithData(map[string]any{"txHash": txHash, "retries": retries}))
		}

		retryCount.WithLabelValues(string(networkID)).Inc()
		delay := time.Duration(float64(p.baseDelay) * math.Pow(p.backoffFactor, float64(retries)))
		log.Debug().Str("tx", txHash).Int("retry", retries+1).Dur("delay", delay).Msg("transaction not yet known, waiting")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, walleterr.Wrap(walleterr.ConfirmationTimeout, "", ctx.Err(),
					walleterr.WithData(map[string]any{"txHash": txHash, "retries": retries}))
			}
			return nil, ctx.Err()
		}
	}
}
