package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/pulse/pkg/api"
	"github.com/platinummonkey/pulse/pkg/catalog"
	"github.com/platinummonkey/pulse/pkg/storage"
)

// Service is the read side of the pipeline: results, their status, raw
// range reads and the metric catalog. Pass a cached ResultStore to get
// the L1/redis read-through behavior.
type Service struct {
	results storage.ResultStore
	queue   storage.JobQueue
	raw     storage.RawStore
	catalog *catalog.Catalog
}

// NewService wires the read service.
func NewService(results storage.ResultStore, queue storage.JobQueue, raw storage.RawStore, cat *catalog.Catalog) *Service {
	if cat == nil {
		cat = catalog.Default()
	}
	return &Service{results: results, queue: queue, raw: raw, catalog: cat}
}

// Result returns the stored result for a key, or nil when none exists.
func (s *Service) Result(ctx context.Context, key api.ResultKey) (*api.AnalyticsResult, error) {
	return s.results.GetResult(ctx, key)
}

// Results lists stored results for a user, optionally filtered.
func (s *Service) Results(ctx context.Context, userID int64, analyticsType string, timeRange api.TimeRange) ([]*api.AnalyticsResult, error) {
	return s.results.ListResults(ctx, userID, analyticsType, timeRange)
}

// Status reports the state of a result key. A stored result always
// wins: even when the latest recomputation failed, the previous good
// value keeps serving, with the failure noted alongside it.
func (s *Service) Status(ctx context.Context, key api.ResultKey) (*api.StatusReport, error) {
	result, err := s.results.GetResult(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load result: %w", err)
	}

	job, err := s.queue.LatestForKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load job status: %w", err)
	}

	if result != nil {
		report := &api.StatusReport{State: api.StateOK, Result: result, ComputedAt: &result.ComputedAt}
		if job != nil && job.Status == api.JobFailed {
			report.Error = job.Error
		}
		return report, nil
	}

	switch {
	case job == nil:
		return &api.StatusReport{State: api.StateNotScheduled}, nil
	case job.Status == api.JobFailed:
		return &api.StatusReport{State: api.StateFailed, Error: job.Error}, nil
	default:
		return &api.StatusReport{State: api.StateComputing}, nil
	}
}

// Readings returns the raw readings for one user and data type in
// [start, end).
func (s *Service) Readings(ctx context.Context, userID int64, dataType string, start, end time.Time) ([]api.Reading, error) {
	return s.raw.ScanReadings(ctx, userID, dataType, start, end)
}

// Catalog returns the full metric metadata catalog.
func (s *Service) Catalog() []api.MetricMetadata {
	return s.catalog.All()
}
