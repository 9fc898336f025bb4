package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/pulse/pkg/config"
	"github.com/platinummonkey/pulse/pkg/ingest"
	"github.com/platinummonkey/pulse/pkg/observability"
	"github.com/platinummonkey/pulse/pkg/provider"
	"github.com/platinummonkey/pulse/pkg/storage"
	"github.com/platinummonkey/pulse/pkg/storage/postgres"
)

var (
	runOnce  = flag.Bool("run-once", false, "Run one ingestion cycle and exit (backfills)")
	daysBack = flag.Int("days-back", 0, "Override the cycle window in days (with --run-once)")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("service", "pulse-ingestor")

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

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName + "-ingestor",
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize OpenTelemetry")
		os.Exit(1)
	}

	providerLog := logrus.New()
	gateway := provider.NewRetryingGateway(
		provider.NewHTTPGateway(cfg.Ingestion.ProviderURL, cfg.Ingestion.ProviderToken, nil),
		provider.BackoffPolicy{
			MaxAttempts: cfg.Ingestion.FetchMaxAttempts,
			BaseDelay:   cfg.Ingestion.FetchBaseDelay,
			MaxDelay:    cfg.Ingestion.FetchMaxDelay,
		},
		providerLog,
	)

	// Interface fields must stay untyped-nil when the backing client is
	// absent; a typed nil would dodge the runner's nil checks.
	var archive storage.PayloadArchive
	if a := store.Archive(); a != nil {
		archive = a
	}
	var locker ingest.CycleLocker
	if r := store.Redis(); r != nil {
		locker = r
	}

	runner := ingest.NewRunner(gateway, store, archive, metrics, cfg.Ingestion.UnitTimeout)
	scheduler := ingest.NewScheduler(store, runner, locker, cfg.Ingestion, metrics, logger)

	if *runOnce {
		window := cfg.Ingestion.DaysBack
		if *daysBack > 0 {
			window = *daysBack
		}
		stats, err := scheduler.RunCycle(ctx, window)
		if err != nil {
			logger.WithError(err).Error("ingestion cycle failed")
			os.Exit(1)
		}
		logger.WithField("units", stats.Units()).Info("cycle complete")
		return
	}

	if err := scheduler.Start(ctx); err != nil {
		logger.WithError(err).Error("failed to start scheduler")
		os.Exit(1)
	}

	triggerLoop := ingest.NewTriggerLoop(store, store, scheduler, cfg.Ingestion.TriggerPollInterval, metrics, logger)
	go triggerLoop.Run(ctx)

	healthServer := newHealthServer(cfg, store, registry)
	go func() {
		logger.WithField("port", cfg.Server.HealthPort).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	shutdown := observability.NewShutdownManager(logger, healthServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(shutdownCtx context.Context) error {
		cancel()
		scheduler.Stop()
		return nil
	})
	shutdown.RegisterShutdownFunc(func(shutdownCtx context.Context) error {
		return observability.ShutdownOTel(shutdownCtx, otelProviders, logger)
	})
	shutdown.RegisterShutdownFunc(func(shutdownCtx context.Context) error {
		return store.Close()
	})

	logger.Info("pulse-ingestor started")
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
