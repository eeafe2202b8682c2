package registry

import (
	"context"

	"github.com/nucleon-labs/neoportal/config"
	"github.com/nucleon-labs/neoportal/connector"
	"github.com/nucleon-labs/neoportal/walleterr"
)

// ReadyParams pins the expectations a state-changing call was built under. A
// zero field means "no expectation".
type ReadyParams struct {
	NetworkID config.NetworkID
	Account   string
}

// Ready is a point-in-time grant. It is valid for the single call it was
// requested for; the wallet can change state right after, so callers must
// not cache it.
type Ready struct {
	Connector   connector.Connector
	ConnectorID config.ConnectorID
	NetworkID   config.NetworkID
	Account     string
}

// EnsureReady verifies the connected wallet matches the caller's
// expectations before a state-changing call. It works entirely off the
// registry's observed state: a mismatch is reported without waking the
// wallet. Checks run in a fixed order so callers always see the most
// fundamental problem first: not connected, wrong network, wrong account,
// missing account, incompatible version.
func (r *Registry) EnsureReady(ctx context.Context, params ReadyParams) (*Ready, error) {
	id, ok, err := r.store.LastConnectedConnectorID()
	if err != nil {
		return nil, walleterr.Wrap(walleterr.Unknown, "failed to read last connected connector", err)
	}
	if !ok {
		return nil, walleterr.New(walleterr.NotConnected, "")
	}
	c, found := r.connectors[id]
	if !found {
		return nil, walleterr.New(walleterr.NotConnected, "")
	}
	entry, found := r.Entry(id)
	if !found {
		return nil, walleterr.New(walleterr.NotConnected, "")
	}
	data := entry.Data

	if params.NetworkID != "" && data.NetworkID != params.NetworkID {
		return nil, walleterr.New(walleterr.ChainMismatch, "", walleterr.WithData(map[string]any{
			"expectedNetwork": string(params.NetworkID),
			"actualNetwork":   string(data.NetworkID),
		}))
	}
	if params.Account != "" && data.Account != "" && data.Account != params.Account {
		return nil, walleterr.New(walleterr.AccountMismatch, "", walleterr.WithData(map[string]any{
			"expectedAccount": params.Account,
			"actualAccount":   data.Account,
		}))
	}
	if data.Account == "" {
		return nil, walleterr.New(walleterr.AccountNotFound, "")
	}
	if cc, ok := r.cfg.Connector(id); ok {
		if err := versionGate(entry.Version, cc); err != nil {
			return nil, err
		}
	}

	return &Ready{
		Connector:   c,
		ConnectorID: id,
		NetworkID:   data.NetworkID,
		Account:     data.Account,
	}, nil
}
