package analytics

import (
	"sort"
	"strings"

	"github.com/platinummonkey/pulse/pkg/api"
	"github.com/platinummonkey/pulse/pkg/catalog"
	"github.com/platinummonkey/pulse/pkg/resolve"
)

// Rollup aggregates a window of readings into named result metrics.
// Each raw metric rolls up per its catalog value kind:
//
//	continuous -> mean
//	counter    -> sum plus mean
//	peak       -> max
//
// Derived headline metrics (headline_hrv, recovery_score,
// training_load, fitness_trend) are computed from the rollups, never
// directly from readings. A metric with no readings in the window is
// absent from the output; zero always means a measured zero.
func Rollup(readings []api.Reading, cat *catalog.Catalog) map[string]float64 {
	byMetric := make(map[string][]float64)
	for _, r := range readings {
		byMetric[r.MetricName] = append(byMetric[r.MetricName], r.Value)
	}

	out := make(map[string]float64)
	means := make(map[string]float64, len(byMetric))
	for name, values := range byMetric {
		sum, max := 0.0, values[0]
		for _, v := range values {
			sum += v
			if v > max {
				max = v
			}
		}
		mean := sum / float64(len(values))
		means[name] = mean

		switch cat.Kind(name) {
		case api.KindCounter:
			out[statName("total", name)] = sum
			out[statName("avg", name)] = mean
		case api.KindPeak:
			out[statName("max", name)] = max
		case api.KindHeadline:
			// Headline metrics are derived below, never stored raw.
		default:
			out[statName("avg", name)] = mean
		}
	}

	if hrv, ok := resolve.HeadlineHRV(means); ok {
		out["headline_hrv"] = hrv
	}
	if score, ok := recoveryScore(means); ok {
		out["recovery_score"] = score
	}
	if load, ok := trainingLoad(byMetric); ok {
		out["training_load"] = load
	}
	if trend, ok := fitnessTrend(readings); ok {
		out["fitness_trend"] = trend
	}
	return out
}

// statName prefixes a metric with its rollup statistic without
// stuttering: avg_stress stays avg_stress instead of avg_avg_stress.
func statName(stat, metric string) string {
	if strings.HasPrefix(metric, stat+"_") {
		return metric
	}
	return stat + "_" + metric
}

// recoveryScore blends whichever recovery signals the window has into
// a 0-100 score: HRV, sleep duration against an 8h target, inverted
// stress, and body battery. Every component is optional; with none
// present the score is omitted.
func recoveryScore(means map[string]float64) (float64, bool) {
	var components []float64

	if hrv, ok := resolve.HeadlineHRV(means); ok {
		components = append(components, clamp(hrv, 0, 100))
	}
	if hours, ok := means["sleep_duration_hours"]; ok {
		components = append(components, clamp(hours/8*100, 0, 100))
	}
	if stress, ok := means["avg_stress"]; ok {
		components = append(components, 100-clamp(stress, 0, 100))
	}
	if battery, ok := means["body_battery"]; ok {
		components = append(components, clamp(battery, 0, 100))
	}
	if len(components) == 0 {
		return 0, false
	}

	sum := 0.0
	for _, c := range components {
		sum += c
	}
	return sum / float64(len(components)), true
}

// trainingLoad is the intensity-minute load over the window, with
// vigorous minutes counting double.
func trainingLoad(byMetric map[string][]float64) (float64, bool) {
	moderate, hasModerate := byMetric["moderate_intensity_minutes"]
	vigorous, hasVigorous := byMetric["vigorous_intensity_minutes"]
	if !hasModerate && !hasVigorous {
		return 0, false
	}
	load := 0.0
	for _, v := range moderate {
		load += v
	}
	for _, v := range vigorous {
		load += 2 * v
	}
	return load, true
}

// fitnessTrend compares resting heart rate across the halves of the
// window. A dropping RHR reads as improving fitness, so the trend is
// positive when the later half is lower. Needs at least one reading in
// each half.
func fitnessTrend(readings []api.Reading) (float64, bool) {
	var samples []api.Reading
	for _, r := range readings {
		if r.MetricName == "resting_heart_rate" {
			samples = append(samples, r)
		}
	}
	if len(samples) < 2 {
		return 0, false
	}
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
	rhr := make([]float64, len(samples))
	for i, r := range samples {
		rhr[i] = r.Value
	}

	mid := len(rhr) / 2
	earlier, later := mean(rhr[:mid]), mean(rhr[mid:])
	return earlier - later, true
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
