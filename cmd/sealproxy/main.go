// Command sealproxy runs the authenticating reverse proxy: it loads a
// YAML configuration, serves the filter pipeline over HTTP or HTTPS, and
// hot-reloads the configuration on file change.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/sealproxy/sealproxy/internal/dispatcher"
	"github.com/sealproxy/sealproxy/internal/listener"
	"github.com/sealproxy/sealproxy/internal/logging"
	"github.com/sealproxy/sealproxy/internal/state"
	"github.com/sealproxy/sealproxy/internal/telemetry"
	"github.com/sealproxy/sealproxy/internal/tlsconfig"
)

func main() {
	configPath := flag.String("c", "", "path to the YAML configuration file (required)")
	flag.StringVar(configPath, "config", "", "path to the YAML configuration file (required)")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "sealproxy: -c/--config is required")
		os.Exit(1)
	}

	// Best-effort: a missing .env file is not an error.
	_ = godotenv.Load()

	if err := run(*configPath); err != nil {
		log.Error().Err(err).Msg("sealproxy exiting")
		os.Exit(1)
	}
}

func run(configPath string) error {
	if err := state.Init(configPath); err != nil {
		return fmt.Errorf("loading initial configuration: %w", err)
	}
	var logLevel string
	if lg := state.Load().Config.Logging; lg != nil {
		logLevel = lg.Level
	}
	logging.Configure(logLevel)

	if err := state.StartReload(configPath); err != nil {
		return fmt.Errorf("starting config watcher: %w", err)
	}

	tracer, err := telemetry.NewProvider("sealproxy", os.Stdout)
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}
	defer tracer.Shutdown(context.Background())

	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry)

	cfg := state.Load().Config
	if cfg.Metrics != nil && cfg.Metrics.Bind != "" {
		go serveMetrics(cfg.Metrics.Bind, registry)
	}

	d := dispatcher.New(tracer, metrics)

	ln, err := listener.ListenTCP("tcp", cfg.Server.Bind)
	if err != nil {
		return fmt.Errorf("binding %s: %w", cfg.Server.Bind, err)
	}

	srv := &http.Server{Handler: d}
	if cfg.Server.TLS != nil {
		tlsCfg, err := tlsconfig.Build(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		if err != nil {
			return fmt.Errorf("configuring TLS: %w", err)
		}
		srv.TLSConfig = tlsCfg
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("bind", cfg.Server.Bind).Bool("tls", cfg.Server.TLS != nil).Msg("sealproxy listening")
		if cfg.Server.TLS != nil {
			errCh <- srv.ServeTLS(ln, "", "")
		} else {
			errCh <- srv.Serve(ln)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serving: %w", err)
		}
	case <-sig:
		log.Info().Msg("shutting down")
		return srv.Shutdown(context.Background())
	}
	return nil
}

func serveMetrics(bind string, registry *prometheus.Registry) {
	ln, err := listener.ListenTCP("tcp", bind)
	if err != nil {
		log.Error().Err(err).Str("bind", bind).Msg("metrics listener failed to bind")
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler(registry))
	if err := http.Serve(ln, mux); err != nil {
		log.Error().Err(err).Msg("metrics server exited")
	}
}
