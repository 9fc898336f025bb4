package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/platinummonkey/pulse/pkg/api"
)

// RawStore is the append-only time-series store of normalized readings.
// Upserts are keyed by the natural key (user, timestamp, data type,
// metric name) so overlapping ingestion windows are safe to replay.
type RawStore interface {
	UpsertReadings(ctx context.Context, readings []api.Reading) error
	ScanReadings(ctx context.Context, userID int64, dataType string, start, end time.Time) ([]api.Reading, error)
}

// UserStore resolves provider accounts to pipeline users.
type UserStore interface {
	EnsureUser(ctx context.Context, email string) (*api.User, error)
	ListUsers(ctx context.Context) ([]*api.User, error)
}

// JobQueue is the durable analytics work queue. ClaimNext is the only
// mutual-exclusion point in the pipeline: it succeeds for at most one
// caller per job.
type JobQueue interface {
	Enqueue(ctx context.Context, userID int64, analyticsType string, timeRange api.TimeRange, start, end time.Time) (*api.AnalyticsJob, error)
	ClaimNext(ctx context.Context, owner string) (*api.AnalyticsJob, error)
	Complete(ctx context.Context, jobID int64) error
	Fail(ctx context.Context, jobID int64, jobErr error) error
	RequeueAbandoned(ctx context.Context, leaseTimeout time.Duration) (int, error)
	LatestForKey(ctx context.Context, key api.ResultKey) (*api.AnalyticsJob, error)
}

// ResultStore holds one row per result key, last writer wins.
type ResultStore interface {
	UpsertResult(ctx context.Context, key api.ResultKey, metrics map[string]float64) error
	GetResult(ctx context.Context, key api.ResultKey) (*api.AnalyticsResult, error)
	ListResults(ctx context.Context, userID int64, analyticsType string, timeRange api.TimeRange) ([]*api.AnalyticsResult, error)
}

// TriggerMailbox is the on-demand fetch request channel. Consume marks a
// trigger handled and reports whether this caller won it.
type TriggerMailbox interface {
	Insert(ctx context.Context, userID int64, daysBack int) (*api.FetchTrigger, error)
	PollUnconsumed(ctx context.Context, limit int) ([]*api.FetchTrigger, error)
	Consume(ctx context.Context, triggerID int64) (bool, error)
}

// PayloadArchive stores original provider payloads for schema-drift
// diagnosis. Implementations may be nil-safe no-ops.
type PayloadArchive interface {
	ArchivePayload(ctx context.Context, userID int64, day time.Time, dataType string, payload json.RawMessage) error
}
