package resolve

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveStepsSummary(t *testing.T) {
	metrics, err := Resolve("steps", json.RawMessage(`{"totalSteps": 10432, "totalDistance": 8211}`))
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, Metric{Name: "steps", Value: 10432}, metrics[0])
}

func TestResolveStepsIntervalArray(t *testing.T) {
	payload := json.RawMessage(`[
		{"startGMT": "2026-08-20T06:00:00", "steps": 300},
		{"startGMT": "2026-08-20T06:15:00", "steps": 450},
		{"startGMT": "2026-08-20T06:30:00", "steps": null}
	]`)

	metrics, err := Resolve("steps", payload)
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, 750.0, metrics[0].Value)
}

func TestResolveHeartRate(t *testing.T) {
	payload := json.RawMessage(`{
		"restingHeartRate": 52,
		"minHeartRate": 48,
		"maxHeartRate": 161,
		"heartRateValues": [[1755648000000, 60], [1755648060000, 70], [1755648120000, null]]
	}`)

	metrics, err := Resolve("heart_rate", payload)
	require.NoError(t, err)

	got := metricMap(t, metrics)
	assert.Equal(t, 52.0, got["resting_heart_rate"])
	assert.Equal(t, 48.0, got["min_heart_rate"])
	assert.Equal(t, 161.0, got["max_heart_rate"])
	assert.InDelta(t, 65.0, got["avg_heart_rate"], 1e-9, "null samples are skipped in the series average")
}

func TestResolveHeartRateExplicitAverageWins(t *testing.T) {
	payload := json.RawMessage(`{
		"averageHeartRate": 64,
		"heartRateValues": [[1755648000000, 100]]
	}`)

	metrics, err := Resolve("heart_rate", payload)
	require.NoError(t, err)
	assert.Equal(t, 64.0, metricMap(t, metrics)["avg_heart_rate"])
}

func TestResolveStress(t *testing.T) {
	metrics, err := Resolve("stress", json.RawMessage(`{"avgStressLevel": 31, "maxStressLevel": 88}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"avg_stress": 31, "max_stress": 88}, metricMap(t, metrics))
}

func TestResolveSleepNestedDTO(t *testing.T) {
	payload := json.RawMessage(`{
		"dailySleepDTO": {
			"sleepTimeSeconds": 27000,
			"deepSleepSeconds": 5400,
			"remSleepSeconds": 6300
		}
	}`)

	metrics, err := Resolve("sleep", payload)
	require.NoError(t, err)

	got := metricMap(t, metrics)
	assert.InDelta(t, 7.5, got["sleep_duration_hours"], 1e-9)
	assert.InDelta(t, 1.5, got["deep_sleep_hours"], 1e-9)
	assert.InDelta(t, 1.75, got["rem_sleep_hours"], 1e-9)
}

func TestResolveSleepFlat(t *testing.T) {
	metrics, err := Resolve("sleep", json.RawMessage(`{"sleepTimeSeconds": 21600}`))
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.InDelta(t, 6.0, metrics[0].Value, 1e-9)
}

func TestResolveRestingHR(t *testing.T) {
	metrics, err := Resolve("resting_hr", json.RawMessage(`{"value": 49}`))
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, Metric{Name: "resting_heart_rate", Value: 49}, metrics[0])
}

func TestResolveRespiration(t *testing.T) {
	payload := json.RawMessage(`{"avgSleepRespirationValue": 14.2, "avgWakingRespirationValue": 16.8}`)

	metrics, err := Resolve("respiration", payload)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{
		"avg_sleep_respiration":  14.2,
		"avg_waking_respiration": 16.8,
	}, metricMap(t, metrics))
}

func TestResolveIntensityMinutes(t *testing.T) {
	metrics, err := Resolve("intensity_minutes", json.RawMessage(`{"moderateIntensityMinutes": 35, "vigorousIntensityMinutes": 12}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{
		"moderate_intensity_minutes": 35,
		"vigorous_intensity_minutes": 12,
	}, metricMap(t, metrics))
}

func TestResolveBodyBattery(t *testing.T) {
	payload := json.RawMessage(`[{
		"charged": 62,
		"drained": 55,
		"bodyBatteryValuesArray": [[1755648000000, 40], [1755651600000, 60]]
	}]`)

	metrics, err := Resolve("body_battery", payload)
	require.NoError(t, err)

	got := metricMap(t, metrics)
	assert.InDelta(t, 50.0, got["body_battery"], 1e-9)
	assert.Equal(t, 62.0, got["body_battery_charged"])
	assert.Equal(t, 55.0, got["body_battery_drained"])
}

func TestResolveSpO2(t *testing.T) {
	metrics, err := Resolve("spo2", json.RawMessage(`{"averageSpO2": 96, "lowestSpO2": 89}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"avg_spo2": 96, "min_spo2": 89}, metricMap(t, metrics))
}

func TestResolveUnknownFamily(t *testing.T) {
	_, err := Resolve("blood_glucose", json.RawMessage(`{"value": 1}`))
	var sm *SchemaMismatchError
	require.ErrorAs(t, err, &sm)
	assert.Equal(t, "blood_glucose", sm.Family)
}

func TestResolveEmptyAndInvalidPayloads(t *testing.T) {
	for _, payload := range []json.RawMessage{nil, {}, json.RawMessage(`not json`), json.RawMessage(`null`)} {
		_, err := Resolve("steps", payload)
		var sm *SchemaMismatchError
		assert.ErrorAs(t, err, &sm, "payload %q", payload)
	}
}

func TestResolveOmitsAbsentFields(t *testing.T) {
	// A stress payload with only the max present must not invent an
	// average.
	metrics, err := Resolve("stress", json.RawMessage(`{"maxStressLevel": 71}`))
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, "max_stress", metrics[0].Name)
}
