// Package validate runs plausibility checks over stored readings and
// produces a data-quality report: per-metric range rules, validity and
// completeness rates, and operator-facing recommendations.
package validate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/platinummonkey/pulse/pkg/api"
	"github.com/platinummonkey/pulse/pkg/provider"
	"github.com/platinummonkey/pulse/pkg/storage"
)

// Rule bounds the physiologically plausible range of one stored metric.
type Rule struct {
	Min float64
	Max float64
}

// Violation is one reading that failed its rule.
type Violation struct {
	UserID     int64     `json:"user_id"`
	Timestamp  time.Time `json:"timestamp"`
	DataType   string    `json:"data_type"`
	MetricName string    `json:"metric_name"`
	Value      float64   `json:"value"`
	Message    string    `json:"message"`
}

// TypeStats aggregates validation counts for one data type.
type TypeStats struct {
	Total   int      `json:"total_records"`
	Valid   int      `json:"valid_records"`
	Invalid int      `json:"invalid_records"`
	Metrics []string `json:"metrics_found"`
}

// Report is the result of one validation pass.
type Report struct {
	Start           time.Time             `json:"start"`
	End             time.Time             `json:"end"`
	Users           int                   `json:"users"`
	Total           int                   `json:"total_records"`
	Valid           int                   `json:"valid_records"`
	Invalid         int                   `json:"invalid_records"`
	ValidityRate    float64               `json:"validity_rate"`
	Completeness    float64               `json:"data_completeness"`
	ByType          map[string]*TypeStats `json:"data_type_stats"`
	Violations      []Violation           `json:"errors"`
	Recommendations []string              `json:"recommendations"`
	GeneratedAt     time.Time             `json:"generated_at"`
}

// Validator scans the raw store and checks every reading against its
// metric's range rule. Metrics without a rule pass unconditionally:
// the catalog is open-ended and unknown metrics are not suspect.
type Validator struct {
	raw       storage.RawStore
	users     storage.UserStore
	dataTypes []string
	rules     map[string]Rule
}

// NewValidator wires a validator. Empty dataTypes means the built-in
// provider set; nil rules means DefaultRules.
func NewValidator(raw storage.RawStore, users storage.UserStore, dataTypes []string, rules map[string]Rule) *Validator {
	if len(dataTypes) == 0 {
		dataTypes = provider.DataTypes
	}
	if rules == nil {
		rules = DefaultRules
	}
	return &Validator{raw: raw, users: users, dataTypes: dataTypes, rules: rules}
}

// ValidateAll validates every known user's readings in [start, end).
func (v *Validator) ValidateAll(ctx context.Context, start, end time.Time) (*Report, error) {
	users, err := v.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return v.validate(ctx, ids, start, end)
}

// ValidateUser validates a single user's readings in [start, end).
func (v *Validator) ValidateUser(ctx context.Context, userID int64, start, end time.Time) (*Report, error) {
	return v.validate(ctx, []int64{userID}, start, end)
}

func (v *Validator) validate(ctx context.Context, userIDs []int64, start, end time.Time) (*Report, error) {
	report := &Report{
		Start:       start,
		End:         end,
		Users:       len(userIDs),
		ByType:      make(map[string]*TypeStats),
		GeneratedAt: time.Now().UTC(),
	}

	metricsByType := make(map[string]map[string]struct{})
	for _, userID := range userIDs {
		for _, dataType := range v.dataTypes {
			readings, err := v.raw.ScanReadings(ctx, userID, dataType, start, end)
			if err != nil {
				return nil, fmt.Errorf("failed to scan %s readings for user %d: %w", dataType, userID, err)
			}
			for _, reading := range readings {
				v.check(report, metricsByType, reading)
			}
		}
	}

	for dataType, names := range metricsByType {
		stats := report.ByType[dataType]
		for name := range names {
			stats.Metrics = append(stats.Metrics, name)
		}
		sort.Strings(stats.Metrics)
	}

	if report.Total > 0 {
		report.ValidityRate = float64(report.Valid) / float64(report.Total) * 100
	}
	found := 0
	for _, dataType := range v.dataTypes {
		if _, ok := report.ByType[dataType]; ok {
			found++
		}
	}
	if len(v.dataTypes) > 0 {
		report.Completeness = float64(found) / float64(len(v.dataTypes)) * 100
	}
	report.Recommendations = v.recommend(report)
	return report, nil
}

func (v *Validator) check(report *Report, metricsByType map[string]map[string]struct{}, reading api.Reading) {
	stats, ok := report.ByType[reading.DataType]
	if !ok {
		stats = &TypeStats{}
		report.ByType[reading.DataType] = stats
		metricsByType[reading.DataType] = make(map[string]struct{})
	}
	metricsByType[reading.DataType][reading.MetricName] = struct{}{}
	stats.Total++
	report.Total++

	rule, ok := v.rules[reading.MetricName]
	if ok {
		switch {
		case reading.Value < rule.Min:
			v.flag(report, stats, reading, fmt.Sprintf("value %g is below minimum %g", reading.Value, rule.Min))
			return
		case reading.Value > rule.Max:
			v.flag(report, stats, reading, fmt.Sprintf("value %g exceeds maximum %g", reading.Value, rule.Max))
			return
		}
	}
	stats.Valid++
	report.Valid++
}

func (v *Validator) flag(report *Report, stats *TypeStats, reading api.Reading, message string) {
	stats.Invalid++
	report.Invalid++
	report.Violations = append(report.Violations, Violation{
		UserID:     reading.UserID,
		Timestamp:  reading.Timestamp,
		DataType:   reading.DataType,
		MetricName: reading.MetricName,
		Value:      reading.Value,
		Message:    message,
	})
}

// recommend turns the counts into operator-facing guidance.
func (v *Validator) recommend(report *Report) []string {
	var recs []string
	if report.Total > 0 && report.ValidityRate < 95 {
		recs = append(recs, fmt.Sprintf(
			"overall validity rate is %.1f%%, below the recommended 95%%; review error patterns for systematic issues",
			report.ValidityRate))
	}
	if report.Total > 0 && report.Completeness < 100 {
		var missing []string
		for _, dataType := range v.dataTypes {
			if _, ok := report.ByType[dataType]; !ok {
				missing = append(missing, dataType)
			}
		}
		recs = append(recs, fmt.Sprintf(
			"data completeness is %.1f%%; no readings found for: %v", report.Completeness, missing))
	}
	for dataType, stats := range report.ByType {
		if stats.Total == 0 {
			continue
		}
		errorRate := float64(stats.Invalid) / float64(stats.Total) * 100
		if errorRate > 10 {
			recs = append(recs, fmt.Sprintf(
				"%s has an error rate of %.1f%% (%d of %d records invalid)",
				dataType, errorRate, stats.Invalid, stats.Total))
		}
	}
	sort.Strings(recs)
	if len(recs) == 0 {
		recs = append(recs, "no significant data-quality issues detected")
	}
	return recs
}
