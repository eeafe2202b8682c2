// Package config loads and validates the network, connector, relay and
// gateway configuration. Files are TOML (JSON accepted for generated
// configs); missing entries for supported ids fail at load time so the rest
// of the module never has to handle an unconfigured network.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	goversion "github.com/hashicorp/go-version"
	"github.com/pelletier/go-toml/v2"
)

// Loader loads module configuration files.
type Loader struct{}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadFromFile loads and validates a config from a TOML or JSON file.
func (l *Loader) LoadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}

	if strings.HasSuffix(filePath, ".json") {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	} else {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every supported network and connector id has a usable
// entry.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	for _, id := range SupportedNetworkIDs {
		nc, ok := cfg.Networks[id]
		if !ok {
			return fmt.Errorf("missing network config for %q", id)
		}
		if len(nc.RPCURLs) == 0 {
			return fmt.Errorf("network %q has no rpc_urls", id)
		}
	}

	for _, id := range SupportedConnectorIDs {
		cc, ok := cfg.Connectors[id]
		if !ok {
			return fmt.Errorf("missing connector config for %q", id)
		}
		if cc.Name == "" {
			return fmt.Errorf("connector %q has no name", id)
		}
		// An empty minimum_version disables the version gate.
		if cc.MinimumVersion != "" {
			if _, err := goversion.NewVersion(cc.MinimumVersion); err != nil {
				return fmt.Errorf("connector %q has invalid minimum_version %q: %w", id, cc.MinimumVersion, err)
			}
		}
	}

	return nil
}

// Default returns the built-in configuration: the public ngd seed nodes and
// fura indexers per network, and the known wallet variants.
func Default() *Config {
	return &Config{
		Networks: map[NetworkID]NetworkConfig{
			NetworkMainnet: {
				Name:    "MainNet",
				RPCURLs: []string{"https://n3seed2.ngd.network:10332", "https://n3seed1.ngd.network:10332"},
				FuraURL: "https://neofura.ngd.network",
				Magic:   860833102,
			},
			NetworkTestnet: {
				Name:    "TestNet",
				RPCURLs: []string{"https://n3seed2.ngd.network:40332", "https://n3seed1.ngd.network:40332"},
				FuraURL: "https://testmagnet.ngd.network",
				Magic:   894710606,
			},
		},
		Connectors: map[ConnectorID]ConnectorConfig{
			ConnectorNeoLine: {
				Name:           "NeoLine",
				DownloadURL:    "https://chrome.google.com/webstore/detail/neoline/cphhlgmgameodnhkjdmkpanlelnlohao",
				MinimumVersion: "0.0.0",
			},
			ConnectorOneGate: {
				Name:           "OneGate",
				DownloadURL:    "https://onegate.space",
				MinimumVersion: "0.0.0",
			},
			ConnectorNeon: {
				Name:           "Neon",
				DownloadURL:    "https://neonwallet.com",
				MinimumVersion: "0.0.0",
			},
		},
		Relay: RelayConfig{
			URL:     "wss://relay.neoportal.dev",
			AppName: "neoportal",
			AppURL:  "https://neoportal.dev",
		},
		Gateway: GatewayConfig{
			Host:           "localhost",
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:3000"},
			RatePerMinute:  100,
			Burst:          200,
			EnableMetrics:  true,
			ServiceName:    "neoportal",
			ServiceVersion: "dev",
			Environment:    "LOCAL",
		},
	}
}
