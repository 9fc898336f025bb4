package validate

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/pulse/pkg/api"
)

type fakeRawStore struct {
	readings map[string][]api.Reading
}

func (s *fakeRawStore) UpsertReadings(ctx context.Context, readings []api.Reading) error {
	return nil
}

func (s *fakeRawStore) ScanReadings(ctx context.Context, userID int64, dataType string, start, end time.Time) ([]api.Reading, error) {
	return s.readings[dataType], nil
}

type fakeUserStore struct {
	users []*api.User
}

func (s *fakeUserStore) EnsureUser(ctx context.Context, email string) (*api.User, error) {
	return nil, nil
}

func (s *fakeUserStore) ListUsers(ctx context.Context) ([]*api.User, error) {
	return s.users, nil
}

func day(offset int) time.Time {
	return time.Date(2026, 8, 20+offset, 0, 0, 0, 0, time.UTC)
}

func reading(dataType, metric string, value float64) api.Reading {
	return api.Reading{UserID: 1, Timestamp: day(0), DataType: dataType, MetricName: metric, Value: value}
}

func TestValidateFlagsOutOfRangeValues(t *testing.T) {
	raw := &fakeRawStore{readings: map[string][]api.Reading{
		"heart_rate": {
			reading("heart_rate", "resting_heart_rate", 55),
			reading("heart_rate", "resting_heart_rate", 240), // sensor glitch
		},
		"steps": {
			reading("steps", "steps", 9000),
		},
	}}
	v := NewValidator(raw, nil, []string{"heart_rate", "steps"}, nil)

	report, err := v.ValidateUser(context.Background(), 1, day(0), day(1))
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Valid)
	assert.Equal(t, 1, report.Invalid)
	require.Len(t, report.Violations, 1)
	violation := report.Violations[0]
	assert.Equal(t, "resting_heart_rate", violation.MetricName)
	assert.Contains(t, violation.Message, "exceeds maximum")
	assert.InDelta(t, 66.7, report.ValidityRate, 0.1)
	assert.Equal(t, float64(100), report.Completeness)
}

func TestValidateUnknownMetricPasses(t *testing.T) {
	raw := &fakeRawStore{readings: map[string][]api.Reading{
		"steps": {reading("steps", "custom_vo2max", 9999)},
	}}
	v := NewValidator(raw, nil, []string{"steps"}, nil)

	report, err := v.ValidateUser(context.Background(), 1, day(0), day(1))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Valid)
	assert.Zero(t, report.Invalid)
}

func TestValidateReportsMissingDataTypes(t *testing.T) {
	raw := &fakeRawStore{readings: map[string][]api.Reading{
		"steps": {reading("steps", "steps", 100)},
	}}
	v := NewValidator(raw, nil, []string{"steps", "sleep", "hrv"}, nil)

	report, err := v.ValidateUser(context.Background(), 1, day(0), day(1))
	require.NoError(t, err)
	assert.InDelta(t, 33.3, report.Completeness, 0.1)

	found := false
	for _, rec := range report.Recommendations {
		if strings.Contains(rec, "sleep") && strings.Contains(rec, "hrv") {
			found = true
		}
	}
	assert.True(t, found, "missing data types should be called out: %v", report.Recommendations)
}

func TestValidateHighErrorRateRecommendation(t *testing.T) {
	raw := &fakeRawStore{readings: map[string][]api.Reading{
		"stress": {
			reading("stress", "avg_stress", 120),
			reading("stress", "avg_stress", 130),
			reading("stress", "avg_stress", 40),
		},
	}}
	v := NewValidator(raw, nil, []string{"stress"}, nil)

	report, err := v.ValidateUser(context.Background(), 1, day(0), day(1))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Invalid)

	found := false
	for _, rec := range report.Recommendations {
		if strings.Contains(rec, "stress has an error rate") {
			found = true
		}
	}
	assert.True(t, found, "high error rate should be called out: %v", report.Recommendations)
}

func TestValidateAllCoversEveryUser(t *testing.T) {
	raw := &fakeRawStore{readings: map[string][]api.Reading{
		"steps": {reading("steps", "steps", 100)},
	}}
	users := &fakeUserStore{users: []*api.User{
		{ID: 1, Email: "a@example.com"},
		{ID: 2, Email: "b@example.com"},
	}}
	v := NewValidator(raw, users, []string{"steps"}, nil)

	report, err := v.ValidateAll(context.Background(), day(0), day(1))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Users)
	// The fake serves the same reading to both users.
	assert.Equal(t, 2, report.Total)
}

func TestValidateEmptyStore(t *testing.T) {
	v := NewValidator(&fakeRawStore{readings: map[string][]api.Reading{}}, nil, []string{"steps"}, nil)

	report, err := v.ValidateUser(context.Background(), 1, day(0), day(1))
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.Zero(t, report.ValidityRate)
	require.Len(t, report.Recommendations, 1)
	assert.Contains(t, report.Recommendations[0], "no significant")
}
