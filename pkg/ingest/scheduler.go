package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/pulse/pkg/api"
	"github.com/platinummonkey/pulse/pkg/config"
	"github.com/platinummonkey/pulse/pkg/observability"
	"github.com/platinummonkey/pulse/pkg/provider"
	"github.com/platinummonkey/pulse/pkg/storage"
)

// cycleLockTTL bounds how long a crashed scheduler can hold the cycle
// lock. Generously above any sane cycle duration.
const cycleLockTTL = time.Hour

// CycleLocker serializes full cycles across scheduler replicas. A nil
// locker disables locking (single-instance deployments, tests).
type CycleLocker interface {
	AcquireCycleLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	ReleaseCycleLock(ctx context.Context, name string) error
}

// CycleStats counts unit outcomes for one cycle.
type CycleStats struct {
	Stored   int64
	NoData   int64
	Mismatch int64
	Deferred int64
}

// Units is the total number of units the cycle executed.
func (s CycleStats) Units() int64 {
	return s.Stored + s.NoData + s.Mismatch + s.Deferred
}

type cycleCounters struct {
	stored, noData, mismatch, deferred atomic.Int64
}

func (c *cycleCounters) record(outcome Outcome) {
	switch outcome {
	case OutcomeStored:
		c.stored.Add(1)
	case OutcomeNoData:
		c.noData.Add(1)
	case OutcomeMismatch:
		c.mismatch.Add(1)
	case OutcomeDeferred:
		c.deferred.Add(1)
	}
}

func (c *cycleCounters) stats() CycleStats {
	return CycleStats{
		Stored:   c.stored.Load(),
		NoData:   c.noData.Load(),
		Mismatch: c.mismatch.Load(),
		Deferred: c.deferred.Load(),
	}
}

// Scheduler runs periodic ingestion cycles over all known users.
type Scheduler struct {
	users   storage.UserStore
	runner  *Runner
	locker  CycleLocker
	cfg     config.IngestionConfig
	metrics *observability.Metrics
	logger  *observability.Logger
	cron    *cron.Cron
}

// NewScheduler wires a cycle scheduler. locker may be nil.
func NewScheduler(users storage.UserStore, runner *Runner, locker CycleLocker, cfg config.IngestionConfig, metrics *observability.Metrics, logger *observability.Logger) *Scheduler {
	return &Scheduler{
		users:   users,
		runner:  runner,
		locker:  locker,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
}

// Start schedules periodic cycles per the configured cron expression.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		if _, err := s.RunCycle(ctx, s.cfg.DaysBack); err != nil {
			s.logger.WithError(err).Error("ingestion cycle failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid ingestion schedule %q: %w", s.cfg.Schedule, err)
	}
	s.cron.Start()
	s.logger.WithField("schedule", s.cfg.Schedule).Info("ingestion scheduler started")
	return nil
}

// Stop halts the cron loop and waits for a running cycle trigger to
// return. In-flight units are cancelled through the context.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// RunCycle ingests the trailing daysBack days for every known user.
// Concurrent invocations across replicas are collapsed by the cycle
// lock: losers skip the cycle entirely rather than duplicating fetches.
func (s *Scheduler) RunCycle(ctx context.Context, daysBack int) (CycleStats, error) {
	cycleID := uuid.NewString()[:8]
	ctx = observability.WithCycleID(ctx, cycleID)
	logger := s.logger.WithField("cycle_id", cycleID)
	ctx = observability.WithLogger(ctx, logger)

	if s.locker != nil {
		won, err := s.locker.AcquireCycleLock(ctx, "ingest", cycleLockTTL)
		if err != nil {
			s.countCycle("failed")
			return CycleStats{}, fmt.Errorf("failed to acquire cycle lock: %w", err)
		}
		if !won {
			logger.Info("cycle already running elsewhere, skipping")
			s.countCycle("skipped")
			return CycleStats{}, nil
		}
		defer func() {
			if err := s.locker.ReleaseCycleLock(context.WithoutCancel(ctx), "ingest"); err != nil {
				logger.WithError(err).Warn("failed to release cycle lock")
			}
		}()
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		s.countCycle("failed")
		return CycleStats{}, fmt.Errorf("failed to list users: %w", err)
	}

	start := time.Now()
	logger.WithField("users", len(users)).WithField("days_back", daysBack).Info("ingestion cycle starting")

	stats, err := s.runUsers(ctx, users, daysBack)
	if err != nil {
		s.countCycle("failed")
		return stats, err
	}
	s.countCycle("completed")
	logger.WithFields(map[string]interface{}{
		"units":    stats.Units(),
		"stored":   stats.Stored,
		"no_data":  stats.NoData,
		"mismatch": stats.Mismatch,
		"deferred": stats.Deferred,
		"elapsed":  time.Since(start).String(),
	}).Info("ingestion cycle finished")
	return stats, nil
}

// RunUser ingests the trailing daysBack days for a single user. Used by
// the trigger loop; bypasses the cycle lock since targeted fetches are
// idempotent and cheap.
func (s *Scheduler) RunUser(ctx context.Context, user *api.User, daysBack int) (CycleStats, error) {
	return s.runUsers(ctx, []*api.User{user}, daysBack)
}

func (s *Scheduler) runUsers(ctx context.Context, users []*api.User, daysBack int) (CycleStats, error) {
	if daysBack < 1 {
		daysBack = 1
	}
	dataTypes := s.cfg.DataTypes
	if len(dataTypes) == 0 {
		dataTypes = provider.DataTypes
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	var counters cycleCounters

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, user := range users {
		for offset := 0; offset < daysBack; offset++ {
			for _, dataType := range dataTypes {
				unit := Unit{
					UserID:   user.ID,
					Email:    user.Email,
					Day:      today.AddDate(0, 0, -offset),
					DataType: dataType,
				}
				g.Go(func() error {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					// Unit errors are recorded in the outcome, never
					// propagated: one bad unit must not cancel the rest.
					outcome, _ := s.runner.Run(gctx, unit)
					counters.record(outcome)
					return nil
				})
			}
		}
	}
	err := g.Wait()
	return counters.stats(), err
}

func (s *Scheduler) countCycle(status string) {
	if s.metrics != nil {
		s.metrics.IngestionCyclesTotal.WithLabelValues(status).Inc()
	}
}
