package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/pulse/pkg/api"
)

const jobColumns = `id, user_id, analytics_type, time_range, start_date, end_date,
	status, error, claimed_by, claimed_at, created_at, updated_at`

func scanJob(row interface{ Scan(...interface{}) error }) (*api.AnalyticsJob, error) {
	var job api.AnalyticsJob
	var timeRange string
	var claimedAt sql.NullTime
	err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.AnalyticsType,
		&timeRange,
		&job.StartDate,
		&job.EndDate,
		&job.Status,
		&job.Error,
		&job.ClaimedBy,
		&claimedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Range = api.TimeRange(timeRange)
	if claimedAt.Valid {
		t := claimedAt.Time
		job.ClaimedAt = &t
	}
	return &job, nil
}

// Enqueue inserts a fresh pending job. Jobs are append-only: retries
// create new rows so the table keeps the full computation history.
func (s *Store) Enqueue(ctx context.Context, userID int64, analyticsType string, timeRange api.TimeRange, start, end time.Time) (*api.AnalyticsJob, error) {
	query := fmt.Sprintf(`
		INSERT INTO analytics_jobs (user_id, analytics_type, time_range, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		RETURNING %s
	`, jobColumns)

	job, err := scanJob(s.db.QueryRowContext(ctx, query,
		userID, analyticsType, string(timeRange), start, end))
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job, nil
}

// ClaimNext atomically moves the oldest pending job to running and
// stamps the claim record. FOR UPDATE SKIP LOCKED guarantees that
// concurrent workers never claim the same row; losers simply see the
// next pending job or none. Returns (nil, nil) when the queue is empty.
func (s *Store) ClaimNext(ctx context.Context, owner string) (*api.AnalyticsJob, error) {
	query := fmt.Sprintf(`
		UPDATE analytics_jobs
		SET status = 'running', claimed_by = $1, claimed_at = NOW(), updated_at = NOW()
		WHERE id = (
			SELECT id FROM analytics_jobs
			WHERE status = 'pending'
			ORDER BY created_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s
	`, jobColumns)

	job, err := scanJob(s.db.QueryRowContext(ctx, query, owner))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return job, nil
}

// Claim attempts to claim one specific pending job. Reports whether
// this caller won it; at most one concurrent caller sees true. The
// worker drains via ClaimNext; this targeted form backs operational
// tooling that reprocesses a known job id.
func (s *Store) Claim(ctx context.Context, jobID int64, owner string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE analytics_jobs
		SET status = 'running', claimed_by = $2, claimed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, jobID, owner)
	if err != nil {
		return false, fmt.Errorf("failed to claim job %d: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}
	return n == 1, nil
}

// Complete marks a running job completed.
func (s *Store) Complete(ctx context.Context, jobID int64) error {
	return s.finish(ctx, jobID, api.JobCompleted, "")
}

// Fail marks a running job failed, recording the cause. Prior results
// for the job's key are untouched: a failed recomputation must never
// destroy the last good value.
func (s *Store) Fail(ctx context.Context, jobID int64, jobErr error) error {
	msg := ""
	if jobErr != nil {
		msg = jobErr.Error()
	}
	return s.finish(ctx, jobID, api.JobFailed, msg)
}

func (s *Store) finish(ctx context.Context, jobID int64, status api.JobStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE analytics_jobs
		SET status = $2, error = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'running'
	`, jobID, string(status), errMsg)
	if err != nil {
		return fmt.Errorf("failed to finish job %d: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read finish result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("job %d is not running", jobID)
	}
	return nil
}

// RequeueAbandoned sweeps running jobs whose lease expired: each is
// marked failed (preserving the audit trail) and a fresh pending copy
// is inserted so the work is retried. Returns how many jobs were
// requeued.
func (s *Store) RequeueAbandoned(ctx context.Context, leaseTimeout time.Duration) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH abandoned AS (
			UPDATE analytics_jobs
			SET status = 'failed',
				error = 'abandoned: claim lease expired',
				updated_at = NOW()
			WHERE status = 'running' AND claimed_at < NOW() - ($1 * INTERVAL '1 second')
			RETURNING user_id, analytics_type, time_range, start_date, end_date
		)
		INSERT INTO analytics_jobs (user_id, analytics_type, time_range, start_date, end_date, status)
		SELECT user_id, analytics_type, time_range, start_date, end_date, 'pending'
		FROM abandoned
		RETURNING id
	`, leaseTimeout.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to requeue abandoned jobs: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return count, fmt.Errorf("failed to scan requeued job: %w", err)
		}
		count++
	}
	return count, rows.Err()
}

// LatestForKey returns the most recent job for a result key, or
// (nil, nil) when the key has never been scheduled. Serving layers use
// it to distinguish "not computed yet" from "last attempt failed".
func (s *Store) LatestForKey(ctx context.Context, key api.ResultKey) (*api.AnalyticsJob, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM analytics_jobs
		WHERE user_id = $1 AND analytics_type = $2 AND time_range = $3
			AND start_date = $4 AND end_date = $5
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, jobColumns)

	job, err := scanJob(s.db.QueryRowContext(ctx, query,
		key.UserID, key.AnalyticsType, string(key.Range), key.StartDate, key.EndDate))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest job: %w", err)
	}
	return job, nil
}

// PendingCount reports the current queue depth, exported as a gauge.
func (s *Store) PendingCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analytics_jobs WHERE status = 'pending'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending jobs: %w", err)
	}
	return count, nil
}
