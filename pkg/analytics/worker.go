package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/pulse/pkg/api"
	"github.com/platinummonkey/pulse/pkg/config"
	"github.com/platinummonkey/pulse/pkg/observability"
	"github.com/platinummonkey/pulse/pkg/storage"
)

// Worker runs claim loops against the job queue. Each worker process
// gets a unique owner identity; the claim record on each job names the
// owner so abandoned work can be traced to the replica that died with
// it.
type Worker struct {
	queue      storage.JobQueue
	aggregator *Aggregator
	cfg        config.WorkerConfig
	metrics    *observability.Metrics
	logger     *observability.Logger
	owner      string
	wg         sync.WaitGroup
}

// NewWorker builds a worker with a fresh owner identity.
func NewWorker(queue storage.JobQueue, aggregator *Aggregator, cfg config.WorkerConfig, metrics *observability.Metrics, logger *observability.Logger) *Worker {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	owner := uuid.NewString()
	return &Worker{
		queue:      queue,
		aggregator: aggregator,
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger.WithField("owner", owner),
		owner:      owner,
	}
}

// Owner returns the worker's claim identity.
func (w *Worker) Owner() string { return w.owner }

// Run starts the claim loops and the abandoned-job sweeper, blocking
// until the context is cancelled and all loops have drained.
func (w *Worker) Run(ctx context.Context) {
	w.logger.WithField("workers", w.cfg.Workers).Info("analytics worker starting")

	for i := 0; i < w.cfg.Workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.claimLoop(ctx)
		}()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.sweepLoop(ctx)
	}()

	w.wg.Wait()
	w.logger.Info("analytics worker stopped")
}

// RunOnce drains the queue until it is empty and returns how many jobs
// were processed. Backfills and tests use it instead of Run.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	processed := 0
	for {
		job, err := w.queue.ClaimNext(ctx, w.owner)
		if err != nil {
			return processed, err
		}
		if job == nil {
			return processed, nil
		}
		w.processJob(ctx, job)
		processed++
	}
}

func (w *Worker) claimLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := w.queue.ClaimNext(ctx, w.owner)
		if err != nil {
			w.logger.WithError(err).Error("claim failed")
		} else if job != nil {
			w.processJob(ctx, job)
			continue // drain without sleeping while work exists
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

// processJob runs one claimed job to a terminal state. A panicking
// rollup marks the job failed instead of killing the claim loop.
func (w *Worker) processJob(ctx context.Context, job *api.AnalyticsJob) {
	if w.metrics != nil {
		w.metrics.JobsClaimedTotal.Inc()
	}
	logger := w.logger.
		WithField("job_id", job.ID).
		WithField("user_id", job.UserID).
		WithField("time_range", string(job.Range))

	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	var jobErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				jobErr = observability.MustRecover(r)
			}
		}()
		_, jobErr = w.aggregator.Process(jobCtx, job)
	}()
	elapsed := time.Since(start)

	if jobErr != nil {
		logger.WithError(jobErr).Error("job failed")
		if err := w.queue.Fail(context.WithoutCancel(ctx), job.ID, jobErr); err != nil {
			logger.WithError(err).Error("failed to record job failure")
		}
		w.countJob(job, "failed", elapsed)
		return
	}

	if err := w.queue.Complete(jobCtx, job.ID); err != nil {
		logger.WithError(err).Error("failed to complete job")
		w.countJob(job, "failed", elapsed)
		return
	}
	logger.WithField("elapsed", elapsed.String()).Info("job completed")
	w.countJob(job, "completed", elapsed)
}

// sweepLoop periodically requeues abandoned jobs and refreshes the
// queue depth gauge.
func (w *Worker) sweepLoop(ctx context.Context) {
	interval := w.cfg.RequeueInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	count, err := w.queue.RequeueAbandoned(ctx, w.cfg.LeaseTimeout)
	if err != nil {
		w.logger.WithError(err).Error("abandoned-job sweep failed")
	} else if count > 0 {
		w.logger.WithField("requeued", count).Warn("requeued abandoned jobs")
		if w.metrics != nil {
			w.metrics.JobsRequeuedTotal.Add(float64(count))
		}
	}

	if w.metrics == nil {
		return
	}
	if counter, ok := w.queue.(interface {
		PendingCount(ctx context.Context) (int64, error)
	}); ok {
		if pending, err := counter.PendingCount(ctx); err == nil {
			w.metrics.JobsPending.Set(float64(pending))
		}
	}
}

func (w *Worker) countJob(job *api.AnalyticsJob, status string, elapsed time.Duration) {
	if w.metrics == nil {
		return
	}
	w.metrics.JobsCompletedTotal.WithLabelValues(status).Inc()
	w.metrics.JobDuration.WithLabelValues(string(job.Range)).Observe(elapsed.Seconds())
}
