package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nucleon-labs/neoportal/config"
	"github.com/nucleon-labs/neoportal/confirm"
	"github.com/nucleon-labs/neoportal/connector"
	"github.com/nucleon-labs/neoportal/gateway"
	"github.com/nucleon-labs/neoportal/invoke"
	"github.com/nucleon-labs/neoportal/registry"
	"github.com/nucleon-labs/neoportal/relay"
	"github.com/nucleon-labs/neoportal/rpc"
	"github.com/nucleon-labs/neoportal/store"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Logger()
}

func main() {
	configPath := flag.String("config", "", "path to the config file (toml or json); defaults to built-in settings")
	remoteConfig := flag.String("remote-config", "", "go-getter source URL to fetch the config from before loading")
	dataDir := flag.String("data-dir", "./data", "directory for the durable store")
	flag.Parse()

	log.Info().Str("config", *configPath).Str("data_dir", *dataDir).Msg("starting neoportal")

	cfg, err := loadConfig(*configPath, *remoteConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	st, err := store.Open(*dataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	clients := make(map[config.NetworkID]*rpc.Client, len(cfg.Networks))
	for id, nc := range cfg.Networks {
		clients[id] = rpc.NewClient(id, nc)
	}

	relayClient, err := relay.NewClient(cfg.Relay, st)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create relay client")
	}
	defer relayClient.Close()

	// Injected wallet bridges only exist inside a browser-like host; the
	// daemon carries the relay-backed wallet and reports the rest absent.
	connectors := []connector.Connector{
		connector.NewNeoLine(nil),
		connector.NewOneGate(nil, st),
		connector.NewNeon(relayClient),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := registry.New(cfg, st, connectors)
	if err := reg.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start registry")
	}
	defer reg.Close()

	invoker := invoke.New(clients, reg)
	poller := confirm.NewPoller(clients)

	handlers := gateway.NewHandlers(reg, invoker, poller, clients)
	server, err := gateway.NewServer(ctx, cfg.Gateway, handlers)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("gateway error")
			sigCh <- syscall.SIGTERM
		}
	}()

	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}

func loadConfig(path, remote string) (*config.Config, error) {
	loader := config.NewLoader()
	if remote != "" {
		dst := path
		if dst == "" {
			dst = "./neoportal-config.toml"
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		return loader.FetchRemote(ctx, remote, dst)
	}
	if path != "" {
		return loader.LoadFromFile(path)
	}
	return config.Default(), nil
}
