package analytics

import (
	"context"
	"fmt"

	"github.com/platinummonkey/pulse/pkg/api"
	"github.com/platinummonkey/pulse/pkg/catalog"
	"github.com/platinummonkey/pulse/pkg/provider"
	"github.com/platinummonkey/pulse/pkg/storage"
)

// Aggregator computes and stores the rollup for one job.
type Aggregator struct {
	raw       storage.RawStore
	results   storage.ResultStore
	catalog   *catalog.Catalog
	dataTypes []string
}

// NewAggregator wires a rollup computer. dataTypes defaults to the
// built-in provider set when empty.
func NewAggregator(raw storage.RawStore, results storage.ResultStore, cat *catalog.Catalog, dataTypes []string) *Aggregator {
	if len(dataTypes) == 0 {
		dataTypes = provider.DataTypes
	}
	if cat == nil {
		cat = catalog.Default()
	}
	return &Aggregator{raw: raw, results: results, catalog: cat, dataTypes: dataTypes}
}

// KeyForJob is the result key a job computes into.
func KeyForJob(job *api.AnalyticsJob) api.ResultKey {
	return api.ResultKey{
		UserID:        job.UserID,
		AnalyticsType: job.AnalyticsType,
		Range:         job.Range,
		StartDate:     job.StartDate,
		EndDate:       job.EndDate,
	}
}

// Process scans the job's window, rolls it up, and upserts the result.
// An empty window still writes a result row with no metrics, which is
// how "computed, but the user wore no device" is represented.
func (a *Aggregator) Process(ctx context.Context, job *api.AnalyticsJob) (map[string]float64, error) {
	var readings []api.Reading
	for _, dataType := range a.dataTypes {
		batch, err := a.raw.ScanReadings(ctx, job.UserID, dataType, job.StartDate, job.EndDate)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s readings: %w", dataType, err)
		}
		readings = append(readings, batch...)
	}

	metrics := Rollup(readings, a.catalog)
	if err := a.results.UpsertResult(ctx, KeyForJob(job), metrics); err != nil {
		return nil, fmt.Errorf("failed to store result: %w", err)
	}
	return metrics, nil
}
