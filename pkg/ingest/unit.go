package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/pulse/pkg/api"
	"github.com/platinummonkey/pulse/pkg/observability"
	"github.com/platinummonkey/pulse/pkg/provider"
	"github.com/platinummonkey/pulse/pkg/resolve"
	"github.com/platinummonkey/pulse/pkg/storage"
)

// Outcome classifies how a fetch unit ended. Every unit lands in
// exactly one bucket; only deferred units are retried next cycle.
type Outcome string

const (
	// OutcomeStored means the payload resolved and its metrics were
	// upserted into the raw store.
	OutcomeStored Outcome = "stored"
	// OutcomeNoData means the provider had nothing for the unit. Not a
	// failure; most users don't wear the device every day.
	OutcomeNoData Outcome = "no_data"
	// OutcomeMismatch means the payload arrived but matched no known
	// schema. The payload is archived for diagnosis and the unit is NOT
	// retried: the same payload would mismatch again.
	OutcomeMismatch Outcome = "schema_mismatch"
	// OutcomeDeferred means a transient failure exhausted its retry
	// budget. The unit will be covered by the next cycle's trailing
	// window.
	OutcomeDeferred Outcome = "deferred"
)

// Unit is one (user, day, data type) fetch.
type Unit struct {
	UserID   int64
	Email    string
	Day      time.Time
	DataType string
}

// Runner executes fetch units against the gateway and raw store.
type Runner struct {
	gateway     provider.Gateway
	raw         storage.RawStore
	archive     storage.PayloadArchive
	metrics     *observability.Metrics
	unitTimeout time.Duration
}

// NewRunner builds a unit runner. archive may be nil; payloads are then
// only archived nowhere and schema mismatches are diagnosed from logs.
func NewRunner(gateway provider.Gateway, raw storage.RawStore, archive storage.PayloadArchive, metrics *observability.Metrics, unitTimeout time.Duration) *Runner {
	if unitTimeout <= 0 {
		unitTimeout = 2 * time.Minute
	}
	return &Runner{
		gateway:     gateway,
		raw:         raw,
		archive:     archive,
		metrics:     metrics,
		unitTimeout: unitTimeout,
	}
}

// Run executes one unit and reports its outcome. The returned error is
// diagnostic; callers record it but never abort the cycle over it.
func (r *Runner) Run(ctx context.Context, unit Unit) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, r.unitTimeout)
	defer cancel()

	start := time.Now()
	outcome, err := r.run(ctx, unit)
	r.observe(unit.DataType, outcome, time.Since(start))

	logger := observability.FromContext(ctx).
		WithField("user_id", unit.UserID).
		WithField("data_type", unit.DataType).
		WithField("day", unit.Day.Format("2006-01-02")).
		WithField("outcome", string(outcome))
	switch {
	case err != nil:
		logger.WithError(err).Warn("fetch unit finished with error")
	case outcome == OutcomeStored:
		logger.Debug("fetch unit stored")
	default:
		logger.Debug("fetch unit finished")
	}
	return outcome, err
}

func (r *Runner) run(ctx context.Context, unit Unit) (Outcome, error) {
	payload, err := r.gateway.Fetch(ctx, unit.Email, unit.Day, unit.DataType)
	if err != nil {
		if errors.Is(err, provider.ErrNoData) {
			return OutcomeNoData, nil
		}
		return OutcomeDeferred, err
	}

	metrics, err := resolve.Resolve(unit.DataType, payload)
	if err != nil {
		var mismatch *resolve.SchemaMismatchError
		if errors.As(err, &mismatch) {
			if r.archive != nil {
				if archiveErr := r.archive.ArchivePayload(ctx, unit.UserID, unit.Day, unit.DataType, payload); archiveErr != nil {
					observability.FromContext(ctx).WithError(archiveErr).Warn("failed to archive mismatched payload")
				}
			}
			return OutcomeMismatch, err
		}
		return OutcomeDeferred, err
	}

	day := unit.Day.UTC().Truncate(24 * time.Hour)
	readings := make([]api.Reading, 0, len(metrics))
	for _, m := range metrics {
		// Each row carries the day's original payload so schema drift
		// can be diagnosed from the store alone.
		readings = append(readings, api.Reading{
			UserID:     unit.UserID,
			Timestamp:  day,
			DataType:   unit.DataType,
			MetricName: m.Name,
			Value:      m.Value,
			RawValue:   payload,
		})
	}

	if err := r.raw.UpsertReadings(ctx, readings); err != nil {
		return OutcomeDeferred, err
	}
	if r.metrics != nil {
		r.metrics.ReadingsUpsertedTotal.Add(float64(len(readings)))
	}

	if r.archive != nil {
		if err := r.archive.ArchivePayload(ctx, unit.UserID, unit.Day, unit.DataType, payload); err != nil {
			observability.FromContext(ctx).WithError(err).Warn("failed to archive payload")
		}
	}
	return OutcomeStored, nil
}

func (r *Runner) observe(dataType string, outcome Outcome, elapsed time.Duration) {
	if r.metrics == nil {
		return
	}
	r.metrics.FetchUnitsTotal.WithLabelValues(dataType, string(outcome)).Inc()
	r.metrics.FetchDuration.WithLabelValues(dataType).Observe(elapsed.Seconds())
	if outcome == OutcomeMismatch {
		r.metrics.SchemaMismatchesTotal.WithLabelValues(dataType).Inc()
	}
}
