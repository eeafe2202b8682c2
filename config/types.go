package config

// NetworkID identifies a supported chain network.
type NetworkID string

const (
	NetworkMainnet NetworkID = "mainnet"
	NetworkTestnet NetworkID = "testnet"
)

// SupportedNetworkIDs lists networks in preference order; the first entry is
// the fallback when neither a wallet nor a stored choice selects one.
var SupportedNetworkIDs = []NetworkID{NetworkMainnet, NetworkTestnet}

// ConnectorID identifies a supported wallet variant.
type ConnectorID string

const (
	ConnectorNeoLine ConnectorID = "neo-line"
	ConnectorOneGate ConnectorID = "one-gate"
	ConnectorNeon    ConnectorID = "neon"
)

// SupportedConnectorIDs lists the closed set of wallet variants.
var SupportedConnectorIDs = []ConnectorID{ConnectorNeoLine, ConnectorOneGate, ConnectorNeon}

// NetworkConfig describes one chain network. Every NetworkID used at runtime
// must have an entry; absence is a configuration error, not a runtime fault.
type NetworkConfig struct {
	Name string `toml:"name" json:"name"`
	// RPCURLs lists node JSON-RPC endpoints, primary first.
	RPCURLs []string `toml:"rpc_urls" json:"rpc_urls"`
	// FuraURL is the secondary-index endpoint for the network.
	FuraURL string `toml:"fura_url" json:"fura_url"`
	// Magic is the network magic number used when signing transactions.
	Magic uint32 `toml:"magic" json:"magic"`
}

// ConnectorConfig describes one wallet variant.
type ConnectorConfig struct {
	Name           string `toml:"name" json:"name"`
	DownloadURL    string `toml:"download_url" json:"download_url"`
	MinimumVersion string `toml:"minimum_version" json:"minimum_version"`
}

// RelayConfig configures the websocket relay used by relay-based wallets.
type RelayConfig struct {
	URL string `toml:"url" json:"url"`
	// AppName and AppURL are presented to the remote wallet during pairing.
	AppName string `toml:"app_name" json:"app_name"`
	AppURL  string `toml:"app_url" json:"app_url"`
}

// GatewayConfig configures the optional HTTP gateway daemon.
type GatewayConfig struct {
	Host string `toml:"host" json:"host"`
	Port int    `toml:"port" json:"port"`

	AllowedOrigins []string `toml:"allowed_origins" json:"allowed_origins"`

	RatePerMinute int `toml:"rate_per_minute" json:"rate_per_minute"`
	Burst         int `toml:"burst" json:"burst"`

	EnableMetrics bool `toml:"enable_metrics" json:"enable_metrics"`

	// OpenTelemetry tracing
	ServiceName     string `toml:"service_name" json:"service_name"`
	ServiceVersion  string `toml:"service_version" json:"service_version"`
	Environment     string `toml:"environment" json:"environment"` // PROD, DEV, TEST, LOCAL
	EnableTracing   bool   `toml:"enable_tracing" json:"enable_tracing"`
	UseOTLPTraces   bool   `toml:"use_otlp_traces" json:"use_otlp_traces"`
	OTLPTracesURL   string `toml:"otlp_traces_url" json:"otlp_traces_url"`
	InsecureOTLP    bool   `toml:"insecure_otlp" json:"insecure_otlp"`
	DevelopmentMode bool   `toml:"development_mode" json:"development_mode"`
}

// Config is the root configuration for the module.
type Config struct {
	Networks   map[NetworkID]NetworkConfig   `toml:"networks" json:"networks"`
	Connectors map[ConnectorID]ConnectorConfig `toml:"connectors" json:"connectors"`
	Relay      RelayConfig                   `toml:"relay" json:"relay"`
	Gateway    GatewayConfig                 `toml:"gateway" json:"gateway"`
}

// Network returns the config entry for id. The bool is false when the id has
// no entry, which callers must treat as a configuration error.
func (c *Config) Network(id NetworkID) (NetworkConfig, bool) {
	nc, ok := c.Networks[id]
	return nc, ok
}

// Connector returns the config entry for id.
func (c *Config) Connector(id ConnectorID) (ConnectorConfig, bool) {
	cc, ok := c.Connectors[id]
	return cc, ok
}

// IsSupportedNetwork reports whether id is in the supported set.
func IsSupportedNetwork(id NetworkID) bool {
	for _, n := range SupportedNetworkIDs {
		if n == id {
			return true
		}
	}
	return false
}

// IsSupportedConnector reports whether id is in the supported set.
func IsSupportedConnector(id ConnectorID) bool {
	for _, c := range SupportedConnectorIDs {
		if c == id {
			return true
		}
	}
	return false
}
