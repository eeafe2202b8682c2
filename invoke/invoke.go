// Package invoke is the contract invocation facade. Read-only calls go
// straight to a node over JSON-RPC; state-changing calls pass the readiness
// guard first and are then signed by the connected wallet. NEP-17 helpers
// and amount conversion sit on top.
package invoke

import (
	"context"
	"os"
	"time"

	"github.com/nucleon-labs/neoportal/config"
	"github.com/nucleon-labs/neoportal/connector"
	"github.com/nucleon-labs/neoportal/registry"
	"github.com/nucleon-labs/neoportal/rpc"
	"github.com/nucleon-labs/neoportal/walleterr"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "invoke").Logger()
}

// Guard is the slice of the registry the facade needs for state-changing
// calls. *registry.Registry implements it.
type Guard interface {
	EnsureReady(ctx context.Context, params registry.ReadyParams) (*registry.Ready, error)
	Do(id config.ConnectorID, fn func() error) error
}

// Service routes invocations: read-only over per-network RPC clients,
// state-changing through the guarded wallet connector.
type Service struct {
	clients map[config.NetworkID]*rpc.Client
	guard   Guard
}

// New creates the facade. guard may be nil when only read paths are used.
func New(clients map[config.NetworkID]*rpc.Client, guard Guard) *Service {
	return &Service{clients: clients, guard: guard}
}

func (s *Service) client(networkID config.NetworkID) (*rpc.Client, error) {
	c, ok := s.clients[networkID]
	if !ok {
		return nil, walleterr.New(walleterr.InvalidParams, "no rpc client for network: "+string(networkID))
	}
	return c, nil
}

// InvokeRead performs a read-only contract call and returns the result
// stack. An on-chain fault surfaces as ContractInvocationFailed carrying the
// chain's message verbatim.
func (s *Service) InvokeRead(ctx context.Context, networkID config.NetworkID, scriptHash, operation string, args []rpc.Arg, signers []rpc.Signer) ([]rpc.StackItem, error) {
	client, err := s.client(networkID)
	if err != nil {
		return nil, err
	}
	result, err := client.InvokeFunction(ctx, scriptHash, operation, args, signers)
	if err != nil {
		return nil, err
	}
	return decodeEnvelope(result)
}

// InvokeReadMultiple assembles the invocations into one NeoVM script and
// executes it read-only, so several contract reads cost one round trip.
func (s *Service) InvokeReadMultiple(ctx context.Context, networkID config.NetworkID, invocations []rpc.Invocation, signers []rpc.Signer) ([]rpc.StackItem, error) {
	client, err := s.client(networkID)
	if err != nil {
		return nil, err
	}
	script, err := BuildScript(invocations)
	if err != nil {
		return nil, err
	}
	result, err := client.InvokeScript(ctx, script, signers)
	if err != nil {
		return nil, err
	}
	return decodeEnvelope(result)
}

// decodeEnvelope unwraps the node's result-or-fault envelope.
func decodeEnvelope(result *rpc.InvokeResult) ([]rpc.StackItem, error) {
	if result.Exception != nil {
		return nil, walleterr.New(walleterr.ContractInvocationFailed, *result.Exception)
	}
	if result.State != "HALT" {
		return nil, walleterr.New(walleterr.ContractInvocationFailed, "execution ended in state "+result.State)
	}
	return result.Stack, nil
}

// Params describes a state-changing invocation. NetworkID and Account are
// the caller's expectations, enforced by the guard before the wallet is
// asked to sign.
type Params struct {
	ScriptHash string
	Operation  string
	Args       []rpc.Arg
	Signers    []rpc.Signer

	NetworkID         config.NetworkID
	Account           string
	BroadcastOverride bool
}

// MultiParams batches several invocations into one signed transaction.
type MultiParams struct {
	Invocations []rpc.Invocation
	Signers     []rpc.Signer

	NetworkID         config.NetworkID
	Account           string
	BroadcastOverride bool
}

// Invoke runs a guarded state-changing call through the connected wallet.
func (s *Service) Invoke(ctx context.Context, params Params) (*connector.InvokeResult, error) {
	ready, err := s.guard.EnsureReady(ctx, registry.ReadyParams{
		NetworkID: params.NetworkID,
		Account:   params.Account,
	})
	if err != nil {
		return nil, err
	}

	var result *connector.InvokeResult
	err = s.guard.Do(ready.ConnectorID, func() error {
		var ierr error
		result, ierr = ready.Connector.Invoke(ctx, connector.InvokeParams{
			ScriptHash:        params.ScriptHash,
			Operation:         params.Operation,
			Args:              params.Args,
			Signers:           params.Signers,
			BroadcastOverride: params.BroadcastOverride,
		})
		return ierr
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("operation", params.Operation).Str("tx", result.TransactionHash).Msg("invocation signed")
	return result, nil
}

// InvokeMultiple runs a guarded batched call through the connected wallet.
func (s *Service) InvokeMultiple(ctx context.Context, params MultiParams) (*connector.InvokeResult, error) {
	ready, err := s.guard.EnsureReady(ctx, registry.ReadyParams{
		NetworkID: params.NetworkID,
		Account:   params.Account,
	})
	if err != nil {
		return nil, err
	}

	var result *connector.InvokeResult
	err = s.guard.Do(ready.ConnectorID, func() error {
		var ierr error
		result, ierr = ready.Connector.InvokeMultiple(ctx, connector.InvokeMultipleParams{
			Invocations:       params.Invocations,
			Signers:           params.Signers,
			BroadcastOverride: params.BroadcastOverride,
		})
		return ierr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
