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
	"github.com/platinummonkey/pulse/pkg/catalog"
	"github.com/platinummonkey/pulse/pkg/config"
	"github.com/platinummonkey/pulse/pkg/observability"
	"github.com/platinummonkey/pulse/pkg/storage/postgres"
)

var (
	runOnce = flag.Bool("run-once", false, "Drain the job queue once and exit (backfills)")
	enqueue = flag.Bool("enqueue", false, "Enqueue the periodic job matrix before processing (with --run-once)")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("service", "pulse-worker")

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
	if err := store.SeedCatalog(ctx, cat.All()); err != nil {
		logger.WithError(err).Warn("failed to seed catalog table")
	}

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName + "-worker",
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize OpenTelemetry")
		os.Exit(1)
	}

	aggregator := analytics.NewAggregator(store, store, cat, cfg.Ingestion.DataTypes)
	worker := analytics.NewWorker(store, aggregator, cfg.Worker, metrics, logger)
	enqueuer := analytics.NewEnqueuer(store, store, cfg.Worker.EnqueueSchedule, metrics, logger)

	if *runOnce {
		if *enqueue {
			count, err := enqueuer.EnqueueAll(ctx)
			if err != nil {
				logger.WithError(err).Error("enqueue failed")
				os.Exit(1)
			}
			logger.WithField("enqueued", count).Info("jobs enqueued")
		}
		processed, err := worker.RunOnce(ctx)
		if err != nil {
			logger.WithError(err).Error("queue drain failed")
			os.Exit(1)
		}
		logger.WithField("processed", processed).Info("queue drained")
		return
	}

	if err := enqueuer.Start(ctx); err != nil {
		logger.WithError(err).Error("failed to start enqueuer")
		os.Exit(1)
	}

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx)
	}()

	healthServer := newHealthServer(cfg, store, registry)
	go func() {
		logger.WithField("port", cfg.Server.HealthPort).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	shutdown := observability.NewShutdownManager(logger, healthServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(shutdownCtx context.Context) error {
		enqueuer.Stop()
		cancel()
		select {
		case <-workerDone:
			return nil
		case <-shutdownCtx.Done():
			return shutdownCtx.Err()
		}
	})
	shutdown.RegisterShutdownFunc(func(shutdownCtx context.Context) error {
		return observability.ShutdownOTel(shutdownCtx, otelProviders, logger)
	})
	shutdown.RegisterShutdownFunc(func(shutdownCtx context.Context) error {
		return store.Close()
	})

	logger.WithField("owner", worker.Owner()).Info("pulse-worker started")
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
