// Package main provides the entry point for keymesh-server.
//
// keymesh-server is an in-memory key/value store reachable over TCP,
// speaking a minimal Redis-compatible dialect: strings with optional
// per-key TTL, multi-key batch operations, glob key enumeration and
// administrative flush.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/yndnr/keymesh-go/internal/infra/buildinfo"
	"github.com/yndnr/keymesh-go/internal/infra/confloader"
	"github.com/yndnr/keymesh-go/internal/infra/shutdown"
	"github.com/yndnr/keymesh-go/internal/server/config"
	"github.com/yndnr/keymesh-go/internal/server/respserver"
	"github.com/yndnr/keymesh-go/internal/storage/memory"
	"github.com/yndnr/keymesh-go/internal/telemetry/logger"
	"github.com/yndnr/keymesh-go/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		listenAddr  = flag.String("listen", "", "Listen address (overrides config)")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("keymesh-server %s\n", buildinfo.String())
		return nil
	}

	loaderOpts := []confloader.Option{}
	if *configFile != "" {
		loaderOpts = append(loaderOpts, confloader.WithConfigFile(*configFile))
	}
	if *listenAddr != "" {
		loaderOpts = append(loaderOpts, confloader.WithOverride("server.listen.addr", *listenAddr))
	}
	loader := confloader.NewLoader(loaderOpts...)

	cfg, err := loader.LoadServerConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	slog.SetDefault(log)

	log.Info("starting keymesh-server",
		"version", buildinfo.Version,
		"commit", buildinfo.Commit,
		"config", *configFile)

	metrics := metric.NewRegistry()

	store := memory.New(
		memory.WithEvictionHook(func(n int) {
			metrics.KeysExpired.Add(float64(n))
		}),
	)
	metrics.RegisterKeyspaceSize(store.Len)

	sweeper := memory.NewSweeper(store, memory.SweeperConfig{
		Interval: cfg.Store.SweepInterval,
		Batch:    cfg.Store.SweepBatch,
		Logger:   log,
	})
	sweeper.Start()

	shutdownHandler := shutdown.NewHandler(30 * time.Second)

	srv := respserver.New(
		&respserver.Config{
			Addr:       cfg.Server.Listen.Addr,
			MaxClients: cfg.Server.MaxClients,
			RateLimit:  cfg.Server.RateLimit,
		},
		store,
		log,
		respserver.WithMetrics(metrics),
		respserver.WithShutdownRequestHandler(shutdownHandler.Trigger),
	)

	// Bind before declaring the process healthy; a bind failure exits
	// non-zero.
	if err := srv.Start(context.Background()); err != nil {
		sweeper.Stop()
		return fmt.Errorf("start server: %w", err)
	}

	var metricsSrv *http.Server
	if cfg.Server.Metrics.Enabled {
		metricsSrv = startMetricsServer(cfg.Server.Metrics.Addr, metrics, log)
	}

	if *configFile != "" {
		stopWatcher := watchConfig(loader, log)
		defer stopWatcher()
	}

	// Hooks run in reverse order: server first, then the sweeper.
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("stopping sweeper")
		sweeper.Stop()
		return nil
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		if metricsSrv == nil {
			return nil
		}
		log.Info("shutting down metrics endpoint")
		return metricsSrv.Shutdown(ctx)
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down server")
		return srv.Shutdown(ctx)
	})

	log.Info("server started")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// watchConfig applies the log level from config file reloads. Other
// settings require a restart.
func watchConfig(loader *confloader.Loader, log *slog.Logger) func() {
	watcher, err := confloader.NewWatcher(loader, func(cfg *config.ServerConfig) {
		if cfg.Log.Level != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			log.Info("log level changed", "level", cfg.Log.Level)
		}
	}, confloader.WithWatcherLogger(log))
	if err != nil {
		log.Warn("config watcher unavailable", "error", err)
		return func() {}
	}

	if err := watcher.Start(); err != nil {
		log.Warn("config watch failed", "error", err)
		_ = watcher.Stop()
		return func() {}
	}

	return func() { _ = watcher.Stop() }
}

// startMetricsServer serves /metrics on its own listener.
func startMetricsServer(addr string, metrics *metric.Registry, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Info("metrics endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics endpoint error", "error", err)
		}
	}()

	return srv
}
