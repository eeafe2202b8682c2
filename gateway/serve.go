// Package gateway exposes the wallet portal over HTTP: connector snapshots,
// token metadata and balances, and transaction status, with the usual
// operational endpoints around them.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/nucleon-labs/neoportal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "gateway").Logger()
}

// Server wraps the HTTP server and provides lifecycle management.
type Server struct {
	cfg          config.GatewayConfig
	httpServer   *http.Server
	mux          *chi.Mux
	otelShutdown func(context.Context) error
}

// NewServer builds the gateway around the given handlers.
func NewServer(ctx context.Context, cfg config.GatewayConfig, handlers *Handlers) (*Server, error) {
	var otelShutdown func(context.Context) error
	if cfg.EnableTracing {
		shutdown, err := newTracingSDK(ctx, cfg)
		if err != nil {
			log.Error().Err(err).Msg("failed to initialize tracing, continuing without it")
		} else {
			otelShutdown = shutdown
		}
	}

	mux := chi.NewMux()

	mux.Use(zerologMiddleware)
	mux.Use(zerologRecoverer)
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Compress(5))
	mux.Use(middleware.Timeout(60 * time.Second))

	if cfg.RatePerMinute > 0 {
		mux.Use(httprate.LimitByIP(cfg.RatePerMinute, 1*time.Minute))
	}
	if cfg.Burst > 0 {
		mux.Use(middleware.Throttle(cfg.Burst))
	}

	if cfg.EnableMetrics {
		mux.Handle("/metrics", promhttp.Handler())
		log.Info().Msg("metrics endpoint enabled: /metrics")
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","service":"neoportal"}`))
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	mux.Route("/v1", func(r chi.Router) {
		r.Get("/wallets", handlers.WalletSnapshot)
		r.Route("/networks/{network}", func(r chi.Router) {
			r.Get("/tokens/{token}", handlers.TokenMetadata)
			r.Get("/tokens/{token}/balance", handlers.TokenBalance)
			r.Get("/transactions/{tx}", handlers.TransactionStatus)
			r.Get("/transactions/{tx}/wait", handlers.TransactionWait)
		})
	})

	corsHandler := newCORSHandler(cfg.AllowedOrigins, mux)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           h2c.NewHandler(corsHandler, &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		cfg:          cfg,
		httpServer:   httpServer,
		mux:          mux,
		otelShutdown: otelShutdown,
	}, nil
}

// Start begins serving requests without TLS.
func (s *Server) Start() error {
	log.Info().
		Str("address", s.httpServer.Addr).
		Bool("metrics", s.cfg.EnableMetrics).
		Msg("gateway starting")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts the server down and flushes pending telemetry.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down gateway")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error shutting down http server")
	}
	if s.otelShutdown != nil {
		if err := s.otelShutdown(ctx); err != nil {
			log.Error().Err(err).Msg("error shutting down tracing")
			return err
		}
	}
	return nil
}

// zerologMiddleware logs HTTP requests using zerolog.
func zerologMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}

// zerologRecoverer recovers from panics and logs with zerolog.
func zerologRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				log.Error().
					Interface("panic", rvr).
					Str("path", r.URL.Path).
					Msg("recovered from panic")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func newCORSHandler(allowedOrigins []string, next http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	// CORS spec forbids wildcard origins with credentials.
	allowCredentials := !(len(allowedOrigins) == 1 && allowedOrigins[0] == "*")

	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{
			"Accept",
			"Accept-Encoding",
			"Content-Type",
		},
		AllowCredentials: allowCredentials,
		MaxAge:           int(2 * time.Hour / time.Second),
	}).Handler(next)
}
