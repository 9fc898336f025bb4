package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/pulse/pkg/analytics"
	"github.com/platinummonkey/pulse/pkg/api"
	"github.com/platinummonkey/pulse/pkg/catalog"
	"github.com/platinummonkey/pulse/pkg/config"
	"github.com/platinummonkey/pulse/pkg/observability"
	"github.com/platinummonkey/pulse/pkg/storage/postgres"
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("service", "pulse-api")

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	store, err := postgres.NewStore(cfg.Storage)
	if err != nil {
		logger.WithError(err).Error("failed to connect to storage")
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = observability.WithLogger(ctx, logger)

	if err := store.InitSchema(ctx); err != nil {
		logger.WithError(err).Error("failed to initialize schema")
		os.Exit(1)
	}

	cat := catalog.Default()
	if cfg.Catalog.Path != "" {
		if err := cat.LoadFile(cfg.Catalog.Path); err != nil {
			logger.WithError(err).Error("failed to load metric catalog")
			os.Exit(1)
		}
		if cfg.Catalog.Watch {
			if err := cat.Watch(ctx, cfg.Catalog.Path, logger); err != nil {
				logger.WithError(err).Error("failed to watch metric catalog")
				os.Exit(1)
			}
		}
	}

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName + "-api",
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize OpenTelemetry")
		os.Exit(1)
	}

	// Result reads go through the L1+redis cache; everything else hits
	// postgres directly.
	results := postgres.NewResultCache(store, cfg.Storage, metrics)
	service := analytics.NewService(results, store, store, cat)
	server := api.NewServer(service, store, store, store, metrics, logger)

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := newHealthServer(cfg, store, registry)
	go func() {
		logger.WithField("port", cfg.Server.HealthPort).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("api server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("api server failed")
		}
	}()

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(shutdownCtx context.Context) error {
		cancel()
		return healthServer.Shutdown(shutdownCtx)
	})
	shutdown.RegisterShutdownFunc(func(shutdownCtx context.Context) error {
		return observability.ShutdownOTel(shutdownCtx, otelProviders, logger)
	})
	shutdown.RegisterShutdownFunc(func(shutdownCtx context.Context) error {
		return store.Close()
	})

	logger.Info("pulse-api started")
	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("shutdown finished with errors")
		os.Exit(1)
	}
}

func newHealthServer(cfg *config.Config, store *postgres.Store, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	checker := observability.NewHealthChecker(store.DB(), redisClient(store))
	observability.RegisterHealthRoutes(mux, checker)
	observability.RegisterMetricsEndpoint(mux, registry)
	return &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

func redisClient(store *postgres.Store) *redis.Client {
	if r := store.Redis(); r != nil {
		return r.GetClient()
	}
	return nil
}
