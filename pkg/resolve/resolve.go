package resolve

import (
	"encoding/json"
	"fmt"
)

// Metric is one normalized (name, value) pair extracted from a raw
// provider payload.
type Metric struct {
	Name  string
	Value float64
}

// SchemaMismatchError reports a payload whose shape the resolver does
// not recognize for the declared family. The raw payload travels with
// the error so it can be logged for diagnosis; ingestion of other
// metrics continues.
type SchemaMismatchError struct {
	Family  string
	Payload json.RawMessage
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("resolve: unrecognized %s payload shape", e.Family)
}

// mismatch builds a SchemaMismatchError for family/payload.
func mismatch(family string, payload json.RawMessage) error {
	return &SchemaMismatchError{Family: family, Payload: payload}
}

// Resolve maps a raw provider payload for one metric family to zero or
// more normalized metrics. It is pure: no I/O, no clock, no state.
//
// Polymorphic families emit each present field as its own metric rather
// than collapsing semantically distinct fields into one number; a
// consumer that needs a single value applies an explicit priority order
// at the point of use (see HeadlineHRV). Unknown or absent fields are
// omitted, never synthesized.
func Resolve(family string, payload json.RawMessage) ([]Metric, error) {
	if len(payload) == 0 {
		return nil, mismatch(family, payload)
	}

	switch family {
	case "steps":
		return resolveSteps(payload)
	case "heart_rate":
		return resolveHeartRate(payload)
	case "hrv":
		return resolveHRV(payload)
	case "stress":
		return resolveStress(payload)
	case "sleep":
		return resolveSleep(payload)
	case "resting_hr":
		return resolveRestingHR(payload)
	case "respiration":
		return resolveRespiration(payload)
	case "intensity_minutes":
		return resolveIntensityMinutes(payload)
	case "body_battery":
		return resolveBodyBattery(payload)
	case "spo2":
		return resolveSpO2(payload)
	default:
		return nil, mismatch(family, payload)
	}
}

// decodeObject unmarshals payload into a generic map. Returns false for
// non-object payloads (arrays, scalars, invalid JSON).
func decodeObject(payload json.RawMessage) (map[string]interface{}, bool) {
	var obj map[string]interface{}
	if err := json.Unmarshal(payload, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// decodeArray unmarshals payload into a generic slice.
func decodeArray(payload json.RawMessage) ([]interface{}, bool) {
	var arr []interface{}
	if err := json.Unmarshal(payload, &arr); err != nil {
		return nil, false
	}
	return arr, true
}

// numField returns the first present numeric value among keys.
// JSON nulls and non-numeric values count as absent.
func numField(obj map[string]interface{}, keys ...string) (float64, bool) {
	for _, key := range keys {
		if v, ok := obj[key]; ok {
			if f, ok := asNumber(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}

func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func resolveSteps(payload json.RawMessage) ([]Metric, error) {
	if obj, ok := decodeObject(payload); ok {
		if v, ok := numField(obj, "totalSteps", "steps", "count"); ok {
			return []Metric{{Name: "steps", Value: v}}, nil
		}
		return nil, mismatch("steps", payload)
	}

	// Interval form: an array of slices each carrying a step count.
	arr, ok := decodeArray(payload)
	if !ok {
		return nil, mismatch("steps", payload)
	}
	total := 0.0
	found := false
	for _, entry := range arr {
		obj, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		if v, ok := numField(obj, "steps", "totalSteps"); ok {
			total += v
			found = true
		}
	}
	if !found {
		return nil, mismatch("steps", payload)
	}
	return []Metric{{Name: "steps", Value: total}}, nil
}

func resolveHeartRate(payload json.RawMessage) ([]Metric, error) {
	obj, ok := decodeObject(payload)
	if !ok {
		return nil, mismatch("heart_rate", payload)
	}

	var metrics []Metric
	if v, ok := numField(obj, "restingHeartRate"); ok {
		metrics = append(metrics, Metric{Name: "resting_heart_rate", Value: v})
	}
	if v, ok := numField(obj, "minHeartRate"); ok {
		metrics = append(metrics, Metric{Name: "min_heart_rate", Value: v})
	}
	if v, ok := numField(obj, "maxHeartRate"); ok {
		metrics = append(metrics, Metric{Name: "max_heart_rate", Value: v})
	}

	if v, ok := numField(obj, "averageHeartRate", "avgHeartRate"); ok {
		metrics = append(metrics, Metric{Name: "avg_heart_rate", Value: v})
	} else if avg, ok := seriesAverage(obj, "heartRateValues", "heartRateValuesArray"); ok {
		metrics = append(metrics, Metric{Name: "avg_heart_rate", Value: avg})
	}

	if len(metrics) == 0 {
		return nil, mismatch("heart_rate", payload)
	}
	return metrics, nil
}

// seriesAverage averages the value column of a [[timestamp, value], ...]
// series under any of the given keys. Null readings are skipped.
func seriesAverage(obj map[string]interface{}, keys ...string) (float64, bool) {
	for _, key := range keys {
		raw, ok := obj[key].([]interface{})
		if !ok {
			continue
		}
		sum, count := 0.0, 0
		for _, entry := range raw {
			pair, ok := entry.([]interface{})
			if !ok || len(pair) < 2 {
				continue
			}
			if v, ok := asNumber(pair[len(pair)-1]); ok {
				sum += v
				count++
			}
		}
		if count > 0 {
			return sum / float64(count), true
		}
	}
	return 0, false
}

func resolveStress(payload json.RawMessage) ([]Metric, error) {
	obj, ok := decodeObject(payload)
	if !ok {
		return nil, mismatch("stress", payload)
	}

	var metrics []Metric
	if v, ok := numField(obj, "avgStressLevel", "averageStressLevel"); ok {
		metrics = append(metrics, Metric{Name: "avg_stress", Value: v})
	}
	if v, ok := numField(obj, "maxStressLevel"); ok {
		metrics = append(metrics, Metric{Name: "max_stress", Value: v})
	}
	if len(metrics) == 0 {
		return nil, mismatch("stress", payload)
	}
	return metrics, nil
}

// sleep duration fields arrive either on a nested summary object
// (dailySleepDTO) or flat at the top level depending on firmware.
func resolveSleep(payload json.RawMessage) ([]Metric, error) {
	obj, ok := decodeObject(payload)
	if !ok {
		return nil, mismatch("sleep", payload)
	}

	source := obj
	if nested, ok := obj["dailySleepDTO"].(map[string]interface{}); ok {
		source = nested
	}

	var metrics []Metric
	if v, ok := numField(source, "sleepTimeSeconds", "totalSleepTimeSeconds"); ok {
		metrics = append(metrics, Metric{Name: "sleep_duration_hours", Value: v / 3600})
	}
	if v, ok := numField(source, "deepSleepSeconds"); ok {
		metrics = append(metrics, Metric{Name: "deep_sleep_hours", Value: v / 3600})
	}
	if v, ok := numField(source, "remSleepSeconds"); ok {
		metrics = append(metrics, Metric{Name: "rem_sleep_hours", Value: v / 3600})
	}
	if v, ok := numField(source, "napTimeSeconds"); ok {
		metrics = append(metrics, Metric{Name: "nap_time_hours", Value: v / 3600})
	}
	if len(metrics) == 0 {
		return nil, mismatch("sleep", payload)
	}
	return metrics, nil
}

func resolveRestingHR(payload json.RawMessage) ([]Metric, error) {
	obj, ok := decodeObject(payload)
	if !ok {
		return nil, mismatch("resting_hr", payload)
	}
	if v, ok := numField(obj, "restingHeartRate", "value"); ok {
		return []Metric{{Name: "resting_heart_rate", Value: v}}, nil
	}
	return nil, mismatch("resting_hr", payload)
}

func resolveRespiration(payload json.RawMessage) ([]Metric, error) {
	obj, ok := decodeObject(payload)
	if !ok {
		return nil, mismatch("respiration", payload)
	}

	var metrics []Metric
	if v, ok := numField(obj, "avgSleepRespirationValue"); ok {
		metrics = append(metrics, Metric{Name: "avg_sleep_respiration", Value: v})
	}
	if v, ok := numField(obj, "avgWakingRespirationValue"); ok {
		metrics = append(metrics, Metric{Name: "avg_waking_respiration", Value: v})
	}
	if v, ok := numField(obj, "avgRespirationValue"); ok {
		metrics = append(metrics, Metric{Name: "avg_respiration", Value: v})
	}
	if len(metrics) == 0 {
		return nil, mismatch("respiration", payload)
	}
	return metrics, nil
}

func resolveIntensityMinutes(payload json.RawMessage) ([]Metric, error) {
	obj, ok := decodeObject(payload)
	if !ok {
		return nil, mismatch("intensity_minutes", payload)
	}

	var metrics []Metric
	if v, ok := numField(obj, "moderateIntensityMinutes", "moderateValue"); ok {
		metrics = append(metrics, Metric{Name: "moderate_intensity_minutes", Value: v})
	}
	if v, ok := numField(obj, "vigorousIntensityMinutes", "vigorousValue"); ok {
		metrics = append(metrics, Metric{Name: "vigorous_intensity_minutes", Value: v})
	}
	if len(metrics) == 0 {
		return nil, mismatch("intensity_minutes", payload)
	}
	return metrics, nil
}

func resolveBodyBattery(payload json.RawMessage) ([]Metric, error) {
	// Either a single summary object or a list of per-day entries.
	objects := []map[string]interface{}{}
	if obj, ok := decodeObject(payload); ok {
		objects = append(objects, obj)
	} else if arr, ok := decodeArray(payload); ok {
		for _, entry := range arr {
			if obj, ok := entry.(map[string]interface{}); ok {
				objects = append(objects, obj)
			}
		}
	}
	if len(objects) == 0 {
		return nil, mismatch("body_battery", payload)
	}

	var metrics []Metric
	levelSum, levelCount := 0.0, 0
	charged, drained := 0.0, 0.0
	chargedSeen, drainedSeen := false, false
	for _, obj := range objects {
		if avg, ok := seriesAverage(obj, "bodyBatteryValuesArray"); ok {
			levelSum += avg
			levelCount++
		}
		if v, ok := numField(obj, "charged"); ok {
			charged += v
			chargedSeen = true
		}
		if v, ok := numField(obj, "drained"); ok {
			drained += v
			drainedSeen = true
		}
	}
	if levelCount > 0 {
		metrics = append(metrics, Metric{Name: "body_battery", Value: levelSum / float64(levelCount)})
	}
	if chargedSeen {
		metrics = append(metrics, Metric{Name: "body_battery_charged", Value: charged})
	}
	if drainedSeen {
		metrics = append(metrics, Metric{Name: "body_battery_drained", Value: drained})
	}
	if len(metrics) == 0 {
		return nil, mismatch("body_battery", payload)
	}
	return metrics, nil
}

func resolveSpO2(payload json.RawMessage) ([]Metric, error) {
	obj, ok := decodeObject(payload)
	if !ok {
		return nil, mismatch("spo2", payload)
	}

	var metrics []Metric
	if v, ok := numField(obj, "averageSpO2", "avgSpo2", "averageSpO2Value"); ok {
		metrics = append(metrics, Metric{Name: "avg_spo2", Value: v})
	}
	if v, ok := numField(obj, "lowestSpO2", "lowestSpo2Value"); ok {
		metrics = append(metrics, Metric{Name: "min_spo2", Value: v})
	}
	if len(metrics) == 0 {
		return nil, mismatch("spo2", payload)
	}
	return metrics, nil
}
