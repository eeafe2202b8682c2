package config_test

import (
	"testing"

	"github.com/nucleon-labs/neoportal/config"
)

func TestLoadGoodConfig(t *testing.T) {
	loader := config.NewLoader()
	cfg, err := loader.LoadFromFile("testdata/good_config.toml")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	mainnet, ok := cfg.Network(config.NetworkMainnet)
	if !ok {
		t.Fatal("mainnet entry missing")
	}
	if mainnet.Magic != 860833102 {
		t.Errorf("expected mainnet magic 860833102, got %d", mainnet.Magic)
	}
	if len(mainnet.RPCURLs) != 1 {
		t.Errorf("expected 1 rpc url, got %d", len(mainnet.RPCURLs))
	}

	neoline, ok := cfg.Connector(config.ConnectorNeoLine)
	if !ok {
		t.Fatal("neo-line entry missing")
	}
	if neoline.MinimumVersion != "1.0.0" {
		t.Errorf("expected minimum version 1.0.0, got %s", neoline.MinimumVersion)
	}

	if cfg.Relay.URL != "wss://relay.example.org" {
		t.Errorf("unexpected relay url %s", cfg.Relay.URL)
	}
}

func TestMissingEntriesFailValidation(t *testing.T) {
	loader := config.NewLoader()
	if _, err := loader.LoadFromFile("testdata/missing_network.toml"); err == nil {
		t.Error("expected validation error for incomplete config")
	}
}

func TestNonExistentConfigFile(t *testing.T) {
	loader := config.NewLoader()
	if _, err := loader.LoadFromFile("testdata/nonexistent.toml"); err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestValidateAllowsOptionalFields(t *testing.T) {
	cfg := config.Default()

	// No fura indexer and no version gate are both valid configurations.
	mainnet := cfg.Networks[config.NetworkMainnet]
	mainnet.FuraURL = ""
	cfg.Networks[config.NetworkMainnet] = mainnet

	neoline := cfg.Connectors[config.ConnectorNeoLine]
	neoline.MinimumVersion = ""
	cfg.Connectors[config.ConnectorNeoLine] = neoline

	if err := config.Validate(cfg); err != nil {
		t.Errorf("fura_url and minimum_version should be optional: %v", err)
	}
}

func TestValidateRejectsMalformedMinimumVersion(t *testing.T) {
	cfg := config.Default()
	neoline := cfg.Connectors[config.ConnectorNeoLine]
	neoline.MinimumVersion = "not-a-version"
	cfg.Connectors[config.ConnectorNeoLine] = neoline

	if err := config.Validate(cfg); err == nil {
		t.Error("expected validation error for malformed minimum_version")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := config.Validate(config.Default()); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestSupportedSets(t *testing.T) {
	if !config.IsSupportedNetwork(config.NetworkTestnet) {
		t.Error("testnet should be supported")
	}
	if config.IsSupportedNetwork("devnet") {
		t.Error("devnet should not be supported")
	}
	if !config.IsSupportedConnector(config.ConnectorNeon) {
		t.Error("neon should be supported")
	}
}
