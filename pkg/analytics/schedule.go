package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/pulse/pkg/api"
	"github.com/platinummonkey/pulse/pkg/observability"
	"github.com/platinummonkey/pulse/pkg/storage"
)

// scheduledRollup pairs an analytics type with the window it covers.
type scheduledRollup struct {
	AnalyticsType string
	Range         api.TimeRange
}

// defaultRollups is the periodic job matrix: one summary per time
// range for every user, every enqueue tick.
var defaultRollups = []scheduledRollup{
	{AnalyticsType: "daily_summary", Range: api.RangeDay},
	{AnalyticsType: "weekly_summary", Range: api.RangeWeek},
	{AnalyticsType: "monthly_summary", Range: api.RangeMonth},
	{AnalyticsType: "quarterly_summary", Range: api.RangeQuarter},
}

// Enqueuer creates periodic aggregation jobs. It is the only producer
// besides the API's explicit job endpoint; ingestion never enqueues.
type Enqueuer struct {
	users    storage.UserStore
	queue    storage.JobQueue
	schedule string
	rollups  []scheduledRollup
	metrics  *observability.Metrics
	logger   *observability.Logger
	cron     *cron.Cron
}

// NewEnqueuer wires a periodic job producer with the default rollup
// matrix.
func NewEnqueuer(users storage.UserStore, queue storage.JobQueue, schedule string, metrics *observability.Metrics, logger *observability.Logger) *Enqueuer {
	return &Enqueuer{
		users:    users,
		queue:    queue,
		schedule: schedule,
		rollups:  defaultRollups,
		metrics:  metrics,
		logger:   logger,
	}
}

// Start schedules periodic enqueues per the cron expression.
func (e *Enqueuer) Start(ctx context.Context) error {
	e.cron = cron.New()
	_, err := e.cron.AddFunc(e.schedule, func() {
		if _, err := e.EnqueueAll(ctx); err != nil {
			e.logger.WithError(err).Error("periodic enqueue failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid enqueue schedule %q: %w", e.schedule, err)
	}
	e.cron.Start()
	e.logger.WithField("schedule", e.schedule).Info("job enqueuer started")
	return nil
}

// Stop halts the cron loop.
func (e *Enqueuer) Stop() {
	if e.cron != nil {
		<-e.cron.Stop().Done()
	}
}

// EnqueueAll creates one job per user per rollup for the current
// window. A key whose latest job is still pending or running is
// skipped: enqueuing it again would only grow the queue, the eventual
// computation already covers the window.
func (e *Enqueuer) EnqueueAll(ctx context.Context) (int, error) {
	users, err := e.users.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	enqueued := 0
	for _, user := range users {
		for _, rollup := range e.rollups {
			start, end := rollup.Range.Window(time.Now())
			key := api.ResultKey{
				UserID:        user.ID,
				AnalyticsType: rollup.AnalyticsType,
				Range:         rollup.Range,
				StartDate:     start,
				EndDate:       end,
			}

			latest, err := e.queue.LatestForKey(ctx, key)
			if err != nil {
				return enqueued, fmt.Errorf("failed to check existing jobs: %w", err)
			}
			if latest != nil && (latest.Status == api.JobPending || latest.Status == api.JobRunning) {
				continue
			}

			if _, err := e.queue.Enqueue(ctx, user.ID, rollup.AnalyticsType, rollup.Range, start, end); err != nil {
				return enqueued, fmt.Errorf("failed to enqueue job: %w", err)
			}
			enqueued++
			if e.metrics != nil {
				e.metrics.JobsEnqueuedTotal.WithLabelValues(string(rollup.Range)).Inc()
			}
		}
	}
	e.logger.WithField("enqueued", enqueued).WithField("users", len(users)).Info("periodic jobs enqueued")
	return enqueued, nil
}
