package catalog

import "github.com/platinummonkey/pulse/pkg/api"

// builtinEntries covers every metric the resolver emits plus the
// derived headline metrics the aggregator computes.
var builtinEntries = []api.MetricMetadata{
	// Activity.
	{MetricName: "steps", DisplayName: "Steps", Unit: "steps", Kind: api.KindCounter, ChartKind: "bar"},
	{MetricName: "moderate_intensity_minutes", DisplayName: "Moderate Intensity", Unit: "min", Kind: api.KindCounter, ChartKind: "bar"},
	{MetricName: "vigorous_intensity_minutes", DisplayName: "Vigorous Intensity", Unit: "min", Kind: api.KindCounter, ChartKind: "bar"},

	// Heart rate.
	{MetricName: "resting_heart_rate", DisplayName: "Resting Heart Rate", Unit: "bpm", Kind: api.KindContinuous, ChartKind: "line"},
	{MetricName: "avg_heart_rate", DisplayName: "Average Heart Rate", Unit: "bpm", Kind: api.KindContinuous, ChartKind: "line"},
	{MetricName: "min_heart_rate", DisplayName: "Min Heart Rate", Unit: "bpm", Kind: api.KindContinuous, ChartKind: "line"},
	{MetricName: "max_heart_rate", DisplayName: "Max Heart Rate", Unit: "bpm", Kind: api.KindPeak, ChartKind: "line"},

	// Heart rate variability. Each sub-metric is cataloged separately;
	// hrv_avg only appears for providers still sending the flat shape.
	{MetricName: "hrv_weekly_avg", DisplayName: "HRV Weekly Average", Unit: "ms", Kind: api.KindContinuous, ChartKind: "line"},
	{MetricName: "hrv_last_night_avg", DisplayName: "HRV Last Night", Unit: "ms", Kind: api.KindContinuous, ChartKind: "line"},
	{MetricName: "hrv_5min_high", DisplayName: "HRV 5-Minute High", Unit: "ms", Kind: api.KindPeak, ChartKind: "line"},
	{MetricName: "hrv_5min_low", DisplayName: "HRV 5-Minute Low", Unit: "ms", Kind: api.KindContinuous, ChartKind: "line"},
	{MetricName: "hrv_readings_avg", DisplayName: "HRV Readings Average", Unit: "ms", Kind: api.KindContinuous, ChartKind: "line"},
	{MetricName: "hrv_avg", DisplayName: "HRV (Legacy)", Unit: "ms", Kind: api.KindContinuous, ChartKind: "line"},

	// Stress.
	{MetricName: "avg_stress", DisplayName: "Average Stress", Unit: "score", Kind: api.KindContinuous, ChartKind: "line"},
	{MetricName: "max_stress", DisplayName: "Max Stress", Unit: "score", Kind: api.KindPeak, ChartKind: "line"},

	// Sleep.
	{MetricName: "sleep_duration_hours", DisplayName: "Sleep Duration", Unit: "h", Kind: api.KindContinuous, ChartKind: "bar"},
	{MetricName: "deep_sleep_hours", DisplayName: "Deep Sleep", Unit: "h", Kind: api.KindContinuous, ChartKind: "bar"},
	{MetricName: "rem_sleep_hours", DisplayName: "REM Sleep", Unit: "h", Kind: api.KindContinuous, ChartKind: "bar"},
	{MetricName: "nap_time_hours", DisplayName: "Naps", Unit: "h", Kind: api.KindContinuous, ChartKind: "bar"},

	// Respiration and pulse ox.
	{MetricName: "avg_respiration", DisplayName: "Respiration", Unit: "brpm", Kind: api.KindContinuous, ChartKind: "line"},
	{MetricName: "avg_sleep_respiration", DisplayName: "Sleep Respiration", Unit: "brpm", Kind: api.KindContinuous, ChartKind: "line"},
	{MetricName: "avg_waking_respiration", DisplayName: "Waking Respiration", Unit: "brpm", Kind: api.KindContinuous, ChartKind: "line"},
	{MetricName: "avg_spo2", DisplayName: "Blood Oxygen", Unit: "%", Kind: api.KindContinuous, ChartKind: "line"},
	{MetricName: "min_spo2", DisplayName: "Min Blood Oxygen", Unit: "%", Kind: api.KindContinuous, ChartKind: "line"},

	// Body battery.
	{MetricName: "body_battery", DisplayName: "Body Battery", Unit: "score", Kind: api.KindContinuous, ChartKind: "line"},
	{MetricName: "body_battery_charged", DisplayName: "Body Battery Charged", Unit: "score", Kind: api.KindCounter, ChartKind: "bar"},
	{MetricName: "body_battery_drained", DisplayName: "Body Battery Drained", Unit: "score", Kind: api.KindCounter, ChartKind: "bar"},

	// Derived headline metrics, computed by the aggregator from other
	// rollups rather than from readings.
	{MetricName: "recovery_score", DisplayName: "Recovery Score", Unit: "score", Kind: api.KindHeadline, ChartKind: "gauge"},
	{MetricName: "training_load", DisplayName: "Training Load", Unit: "score", Kind: api.KindHeadline, ChartKind: "gauge"},
	{MetricName: "fitness_trend", DisplayName: "Fitness Trend", Unit: "score", Kind: api.KindHeadline, ChartKind: "line"},
	{MetricName: "headline_hrv", DisplayName: "HRV", Unit: "ms", Kind: api.KindHeadline, ChartKind: "line"},
}
