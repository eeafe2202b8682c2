// Package registry tracks every wallet connector's live state, owns the
// persisted connection choice and derives the active connector and effective
// network from those two sources. It is constructed explicitly; nothing in
// here is a package-level singleton.
package registry

import (
	"context"
	"os"
	"sync"
	"time"

	goversion "github.com/hashicorp/go-version"
	"github.com/nucleon-labs/neoportal/config"
	"github.com/nucleon-labs/neoportal/connector"
	"github.com/nucleon-labs/neoportal/walleterr"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "registry").Logger()
}

// Store is the slice of the durable store the registry needs. *store.Store
// implements it.
type Store interface {
	LastConnectedConnectorID() (config.ConnectorID, bool, error)
	SetLastConnectedConnectorID(id config.ConnectorID) error
	ClearLastConnectedConnectorID() error
	DefaultNetworkID() (config.NetworkID, bool, error)
	SetDefaultNetworkID(id config.NetworkID) error
}

// Entry is one connector's observed state. Installed is nil until the
// connector has been probed; reads are eventually consistent.
type Entry struct {
	Installed *bool
	Data      connector.Data
	Version   string
}

type Registry struct {
	cfg        *config.Config
	store      Store
	connectors map[config.ConnectorID]connector.Connector

	mu      sync.RWMutex
	entries map[config.ConnectorID]*Entry

	// opMu serializes Connect/Disconnect/Invoke per connector so concurrent
	// callers cannot interleave wallet prompts.
	opMu map[config.ConnectorID]*sync.Mutex

	disposersMu sync.Mutex
	disposers   []func()
}

// New creates a registry over the given connectors. Call Start before use.
func New(cfg *config.Config, st Store, connectors []connector.Connector) *Registry {
	r := &Registry{
		cfg:        cfg,
		store:      st,
		connectors: make(map[config.ConnectorID]connector.Connector, len(connectors)),
		entries:    make(map[config.ConnectorID]*Entry, len(connectors)),
		opMu:       make(map[config.ConnectorID]*sync.Mutex, len(connectors)),
	}
	for _, c := range connectors {
		r.connectors[c.ID()] = c
		r.entries[c.ID()] = &Entry{}
		r.opMu[c.ID()] = &sync.Mutex{}
	}
	return r
}

// Start probes every connector in parallel: init, installation check, change
// subscription, an initial state snapshot, and a silent reconnect when a
// persisted last-connected id is still authorized. Probe failures are logged
// and leave the entry in its zero state; they never fail Start.
func (r *Registry) Start(ctx context.Context) error {
	var wg sync.WaitGroup
	for id, c := range r.connectors {
		wg.Add(1)
		go func(id config.ConnectorID, c connector.Connector) {
			defer wg.Done()
			r.probe(ctx, id, c)
		}(id, c)
	}
	wg.Wait()
	return nil
}

func (r *Registry) probe(ctx context.Context, id config.ConnectorID, c connector.Connector) {
	if err := c.Init(ctx); err != nil {
		log.Warn().Err(err).Str("connector", string(id)).Msg("connector init failed")
		return
	}

	installed, err := c.IsInstalled(ctx)
	if err != nil {
		log.Warn().Err(err).Str("connector", string(id)).Msg("installation check failed")
		return
	}
	r.mu.Lock()
	r.entries[id].Installed = &installed
	r.mu.Unlock()

	dispose, err := c.OnChange(func(data connector.Data) {
		r.setData(id, data)
	})
	if err != nil {
		log.Warn().Err(err).Str("connector", string(id)).Msg("change subscription failed")
	} else {
		r.disposersMu.Lock()
		r.disposers = append(r.disposers, dispose)
		r.disposersMu.Unlock()
	}

	if !installed {
		return
	}

	if version, err := c.GetVersion(ctx); err == nil {
		r.mu.Lock()
		r.entries[id].Version = version
		r.mu.Unlock()
	}

	authorized, err := c.IsAuthorized(ctx)
	if err != nil {
		log.Warn().Err(err).Str("connector", string(id)).Msg("authorization check failed")
		return
	}

	// Only seed with an initial snapshot; connecting stays a user action
	// unless this connector was the one connected last time.
	if data, err := c.GetData(ctx); err == nil {
		r.setData(id, data)
	} else {
		log.Warn().Err(err).Str("connector", string(id)).Msg("initial state query failed")
	}

	lastID, ok, err := r.store.LastConnectedConnectorID()
	if err != nil {
		log.Warn().Err(err).Msg("failed to read last connected connector")
		return
	}
	if !ok || lastID != id || !authorized {
		return
	}

	log.Info().Str("connector", string(id)).Msg("silently reconnecting previous wallet")
	mu := r.opMu[id]
	mu.Lock()
	defer mu.Unlock()
	if err := c.Connect(ctx, connector.ConnectParams{}); err != nil {
		log.Warn().Err(err).Str("connector", string(id)).Msg("silent reconnect failed, disconnecting")
		if derr := c.Disconnect(ctx); derr != nil {
			log.Warn().Err(derr).Str("connector", string(id)).Msg("disconnect fallback failed")
		}
		if cerr := r.store.ClearLastConnectedConnectorID(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to clear last connected connector")
		}
		return
	}
	if data, err := c.GetData(ctx); err == nil {
		r.setData(id, data)
	}
}

// Close unsubscribes every change handler and destroys the connectors.
func (r *Registry) Close() error {
	r.disposersMu.Lock()
	disposers := r.disposers
	r.disposers = nil
	r.disposersMu.Unlock()
	for _, dispose := range disposers {
		dispose()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for id, c := range r.connectors {
		if err := c.Destroy(ctx); err != nil {
			log.Warn().Err(err).Str("connector", string(id)).Msg("connector destroy failed")
		}
	}
	return nil
}

func (r *Registry) setData(id config.ConnectorID, data connector.Data) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return
	}
	entry.Data = data
	if data.Version != "" {
		entry.Version = data.Version
	}
}

// Entry returns a copy of the connector's observed state.
func (r *Registry) Entry(id config.ConnectorID) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Entries returns a copy of every connector's observed state.
func (r *Registry) Entries() map[config.ConnectorID]Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[config.ConnectorID]Entry, len(r.entries))
	for id, entry := range r.entries {
		out[id] = *entry
	}
	return out
}

// ActiveConnectorID derives the currently connected connector: the persisted
// last-connected id, but only while that connector's entry reports an
// account. Computed per call, never cached.
func (r *Registry) ActiveConnectorID() config.ConnectorID {
	id, ok, err := r.store.LastConnectedConnectorID()
	if err != nil {
		log.Warn().Err(err).Msg("failed to read last connected connector")
		return ""
	}
	if !ok {
		return ""
	}
	entry, found := r.Entry(id)
	if !found || entry.Data.Account == "" {
		return ""
	}
	return id
}

// EffectiveNetworkID derives the network every read path should use: the
// active connector's network when supported, else the persisted default,
// else the first supported network.
func (r *Registry) EffectiveNetworkID() config.NetworkID {
	if id := r.ActiveConnectorID(); id != "" {
		entry, _ := r.Entry(id)
		if config.IsSupportedNetwork(entry.Data.NetworkID) {
			return entry.Data.NetworkID
		}
	}
	if id, ok, err := r.store.DefaultNetworkID(); err == nil && ok {
		return id
	}
	return config.SupportedNetworkIDs[0]
}

// ConnectParams selects the wallet and, optionally, the network it should
// end up on.
type ConnectParams struct {
	ConnectorID config.ConnectorID
	NetworkID   config.NetworkID
}

// Connect runs the full connect flow: version gate, wallet authorization,
// best-effort network switch, account check, persistence.
func (r *Registry) Connect(ctx context.Context, params ConnectParams) (connector.Data, error) {
	c, ok := r.connectors[params.ConnectorID]
	if !ok {
		return connector.Data{}, walleterr.New(walleterr.InvalidParams,
			"unsupported connector id: "+string(params.ConnectorID))
	}

	mu := r.opMu[params.ConnectorID]
	mu.Lock()
	defer mu.Unlock()

	if err := r.checkVersion(ctx, c); err != nil {
		return connector.Data{}, err
	}

	if err := c.Connect(ctx, connector.ConnectParams{NetworkID: params.NetworkID}); err != nil {
		return connector.Data{}, err
	}

	data, err := c.GetData(ctx)
	if err != nil {
		return connector.Data{}, err
	}

	if params.NetworkID != "" && data.NetworkID != params.NetworkID {
		err := c.SwitchChain(ctx, connector.SwitchChainParams{NetworkID: params.NetworkID})
		switch {
		case err == nil:
			if data, err = c.GetData(ctx); err != nil {
				return connector.Data{}, err
			}
		case walleterr.IsKind(err, walleterr.SwitchChainNotSupported):
			// The wallet stays where it is; invoke-time guards will reject
			// mismatched calls.
			log.Debug().Str("connector", string(params.ConnectorID)).Msg("wallet cannot switch networks programmatically")
		default:
			return connector.Data{}, err
		}
	}

	if data.Account == "" {
		return connector.Data{}, walleterr.New(walleterr.AccountNotFound, "")
	}

	if err := r.store.SetLastConnectedConnectorID(params.ConnectorID); err != nil {
		return connector.Data{}, walleterr.Wrap(walleterr.Unknown, "failed to persist connection", err)
	}
	r.setData(params.ConnectorID, data)

	log.Info().Str("connector", string(params.ConnectorID)).Str("network", string(data.NetworkID)).Msg("wallet connected")
	return data, nil
}

// Disconnect disconnects the persisted connector, if any, and always clears
// the persisted id.
func (r *Registry) Disconnect(ctx context.Context) error {
	id, ok, err := r.store.LastConnectedConnectorID()
	if err != nil {
		return walleterr.Wrap(walleterr.Unknown, "failed to read last connected connector", err)
	}
	if ok {
		if c, found := r.connectors[id]; found {
			mu := r.opMu[id]
			mu.Lock()
			err := c.Disconnect(ctx)
			mu.Unlock()
			if err != nil {
				return err
			}
			if data, derr := c.GetData(ctx); derr == nil {
				r.setData(id, data)
			}
		}
	}
	if err := r.store.ClearLastConnectedConnectorID(); err != nil {
		return walleterr.Wrap(walleterr.Unknown, "failed to clear persisted connection", err)
	}
	return nil
}

// SwitchNetwork persists the network choice and, when a wallet is connected
// on a different network, asks it to switch. Wallets without programmatic
// switching surface SwitchChainNotSupported to the caller.
func (r *Registry) SwitchNetwork(ctx context.Context, networkID config.NetworkID) error {
	if !config.IsSupportedNetwork(networkID) {
		return walleterr.New(walleterr.InvalidParams, "unsupported network id: "+string(networkID))
	}
	if err := r.store.SetDefaultNetworkID(networkID); err != nil {
		return walleterr.Wrap(walleterr.Unknown, "failed to persist network choice", err)
	}

	id := r.ActiveConnectorID()
	if id == "" {
		return nil
	}
	entry, _ := r.Entry(id)
	if entry.Data.NetworkID == networkID {
		return nil
	}

	c := r.connectors[id]
	mu := r.opMu[id]
	mu.Lock()
	defer mu.Unlock()
	if err := c.SwitchChain(ctx, connector.SwitchChainParams{NetworkID: networkID}); err != nil {
		return err
	}
	if data, err := c.GetData(ctx); err == nil {
		r.setData(id, data)
	}
	return nil
}

// Do runs fn under the connector's operation mutex, keeping wallet prompts
// from interleaving.
func (r *Registry) Do(id config.ConnectorID, fn func() error) error {
	mu, ok := r.opMu[id]
	if !ok {
		return walleterr.New(walleterr.InvalidParams, "unsupported connector id: "+string(id))
	}
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

// checkVersion enforces the per-connector minimum version from config. A
// wallet that does not report a version passes; an unparseable reported
// version fails closed.
func (r *Registry) checkVersion(ctx context.Context, c connector.Connector) error {
	cc, ok := r.cfg.Connector(c.ID())
	if !ok || cc.MinimumVersion == "" {
		return nil
	}
	actual, err := c.GetVersion(ctx)
	if err != nil {
		return err
	}
	if actual == "" {
		return nil
	}
	return versionGate(actual, cc)
}

func versionGate(actual string, cc config.ConnectorConfig) error {
	if cc.MinimumVersion == "" || actual == "" {
		return nil
	}
	minimum, err := goversion.NewVersion(cc.MinimumVersion)
	if err != nil {
		return walleterr.Wrap(walleterr.Unknown, "malformed minimum version in config", err)
	}
	got, err := goversion.NewVersion(actual)
	if err != nil || got.LessThan(minimum) {
		return walleterr.New(walleterr.VersionIncompatible, "",
			walleterr.WithData(map[string]any{
				"minimumVersion": cc.MinimumVersion,
				"actualVersion":  actual,
				"downloadUrl":    cc.DownloadURL,
			}))
	}
	return nil
}
