package resolve

import "encoding/json"

// HRV metric names. Each summary field the provider reports becomes its
// own stored metric; nothing is averaged across semantically different
// fields at ingestion time.
const (
	MetricHRVWeeklyAvg    = "hrv_weekly_avg"
	MetricHRVLastNightAvg = "hrv_last_night_avg"
	MetricHRV5MinHigh     = "hrv_5min_high"
	MetricHRV5MinLow      = "hrv_5min_low"
	MetricHRVReadingsAvg  = "hrv_readings_avg"

	// MetricHRVLegacy covers the old flat payload shape that carried a
	// single pre-averaged number.
	MetricHRVLegacy = "hrv_avg"
)

// resolveHRV handles the three payload shapes the provider has shipped
// over time:
//
//   - a summary object (possibly nested under "hrvSummary") with
//     weeklyAvg / lastNightAvg / lastNight5MinHigh / lastNight5MinLow
//   - a list of individual readings, either top-level or under
//     "hrvReadings", each carrying a value
//   - the legacy flat form with a single avgHRV / value number
//
// A daily payload routinely carries both a summary and readings; all
// recognized fields are emitted side by side.
func resolveHRV(payload json.RawMessage) ([]Metric, error) {
	if arr, ok := decodeArray(payload); ok {
		if avg, ok := readingsAverage(arr); ok {
			return []Metric{{Name: MetricHRVReadingsAvg, Value: avg}}, nil
		}
		return nil, mismatch("hrv", payload)
	}

	obj, ok := decodeObject(payload)
	if !ok {
		return nil, mismatch("hrv", payload)
	}

	summary := obj
	if nested, ok := obj["hrvSummary"].(map[string]interface{}); ok {
		summary = nested
	}

	var metrics []Metric
	if v, ok := numField(summary, "weeklyAvg", "weeklyAverage"); ok {
		metrics = append(metrics, Metric{Name: MetricHRVWeeklyAvg, Value: v})
	}
	if v, ok := numField(summary, "lastNightAvg", "lastNightAverage"); ok {
		metrics = append(metrics, Metric{Name: MetricHRVLastNightAvg, Value: v})
	}
	if v, ok := numField(summary, "lastNight5MinHigh"); ok {
		metrics = append(metrics, Metric{Name: MetricHRV5MinHigh, Value: v})
	}
	if v, ok := numField(summary, "lastNight5MinLow"); ok {
		metrics = append(metrics, Metric{Name: MetricHRV5MinLow, Value: v})
	}

	if readings, ok := obj["hrvReadings"].([]interface{}); ok {
		if avg, ok := readingsAverage(readings); ok {
			metrics = append(metrics, Metric{Name: MetricHRVReadingsAvg, Value: avg})
		}
	}

	// Legacy flat shape only counts when no structured field matched:
	// modern summaries also carry stray numbers we must not misread.
	if len(metrics) == 0 {
		if v, ok := numField(obj, "avgHRV", "value"); ok {
			metrics = append(metrics, Metric{Name: MetricHRVLegacy, Value: v})
		}
	}

	if len(metrics) == 0 {
		return nil, mismatch("hrv", payload)
	}
	return metrics, nil
}

// readingsAverage averages the value field of individual HRV reading
// objects. Entries without a recognizable value are skipped.
func readingsAverage(arr []interface{}) (float64, bool) {
	sum, count := 0.0, 0
	for _, entry := range arr {
		obj, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		if v, ok := numField(obj, "hrvValue", "value"); ok {
			sum += v
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}
