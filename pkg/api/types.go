package api

import (
	"encoding/json"
	"time"
)

// User represents a wearable-provider account known to the pipeline.
// Users are created on first successful ingestion and never deleted.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Reading is a single normalized biometric data point. The natural key
// (UserID, Timestamp, DataType, MetricName) makes re-ingestion idempotent:
// upserting the same key replaces the row instead of duplicating it.
type Reading struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	Timestamp  time.Time       `json:"timestamp"`
	DataType   string          `json:"data_type"`
	MetricName string          `json:"metric_name"`
	Value      float64         `json:"value"`
	RawValue   json.RawMessage `json:"raw_value,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// JobStatus is the lifecycle state of an analytics job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// TimeRange identifies the span an analytics job aggregates over.
type TimeRange string

const (
	RangeDay     TimeRange = "day"
	RangeWeek    TimeRange = "week"
	RangeMonth   TimeRange = "month"
	RangeQuarter TimeRange = "quarter"
)

// Window returns the [start, end) span the range covers as of now:
// the trailing whole UTC days up to and including today.
func (r TimeRange) Window(now time.Time) (time.Time, time.Time) {
	end := now.UTC().Truncate(24 * time.Hour).AddDate(0, 0, 1)
	return end.AddDate(0, 0, -r.Days()), end
}

// Days returns the trailing window length of the range in days.
func (r TimeRange) Days() int {
	switch r {
	case RangeDay:
		return 1
	case RangeWeek:
		return 7
	case RangeMonth:
		return 30
	case RangeQuarter:
		return 90
	default:
		return 7
	}
}

// AnalyticsJob is one unit of aggregation work. Jobs are never deleted;
// the table doubles as an audit log of every computation attempted.
// ClaimedBy and ClaimedAt form the claim record that makes the
// pending->running transition safe across multiple worker processes.
type AnalyticsJob struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	AnalyticsType string     `json:"analytics_type"`
	Range         TimeRange  `json:"time_range"`
	StartDate     time.Time  `json:"start_date"`
	EndDate       time.Time  `json:"end_date"`
	Status        JobStatus  `json:"status"`
	Error         string     `json:"error,omitempty"`
	ClaimedBy     string     `json:"claimed_by,omitempty"`
	ClaimedAt     *time.Time `json:"claimed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ResultKey uniquely identifies an analytics result row. At most one
// result exists per key; re-running a job overwrites the prior value.
type ResultKey struct {
	UserID        int64     `json:"user_id"`
	AnalyticsType string    `json:"analytics_type"`
	Range         TimeRange `json:"time_range"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
}

// AnalyticsResult holds the rollup metrics computed for one key.
// Metrics only ever contains metrics that had raw data in the window;
// "no sensor data" is expressed by absence, never by zero.
type AnalyticsResult struct {
	Key        ResultKey          `json:"key"`
	Metrics    map[string]float64 `json:"metrics"`
	ComputedAt time.Time          `json:"computed_at"`
}

// ValueKind declares how a metric is rolled up over a window.
type ValueKind string

const (
	// KindContinuous metrics (heart rate, HRV, SpO2) roll up as mean.
	KindContinuous ValueKind = "continuous"
	// KindCounter metrics (steps, active minutes) roll up as sum.
	KindCounter ValueKind = "counter"
	// KindPeak metrics (max stress) roll up as max.
	KindPeak ValueKind = "peak"
	// KindHeadline metrics are derived from other rollups via an
	// explicit priority order, never directly from readings.
	KindHeadline ValueKind = "headline"
)

// MetricMetadata describes one catalog entry. The catalog is read-only
// reference data consumed by the aggregator (value kind) and the
// presentation layer (display name, unit, chart kind).
type MetricMetadata struct {
	MetricName  string    `json:"metric_name" yaml:"metric_name"`
	DisplayName string    `json:"display_name" yaml:"display_name"`
	Unit        string    `json:"unit" yaml:"unit"`
	Kind        ValueKind `json:"value_kind" yaml:"value_kind"`
	ChartKind   string    `json:"chart_kind" yaml:"chart_kind"`
}

// FetchTrigger is an on-demand ingestion request inserted by the
// presentation layer. Each trigger is consumed at most once.
type FetchTrigger struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	DaysBack    int       `json:"days_back"`
	RequestedAt time.Time `json:"requested_at"`
	Consumed    bool      `json:"consumed"`
}
