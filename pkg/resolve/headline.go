package resolve

// hrvHeadlinePriority orders HRV sub-metrics by how well they represent
// "the user's HRV for the day". Last night's average is the clinically
// preferred number; the weekly average and the mean of raw readings are
// progressively weaker stand-ins, and the legacy pre-averaged value is
// the fallback for old rows.
var hrvHeadlinePriority = []string{
	MetricHRVLastNightAvg,
	MetricHRVWeeklyAvg,
	MetricHRVReadingsAvg,
	MetricHRVLegacy,
}

// HeadlineHRV selects the single representative HRV value from a set of
// stored metrics. Returns false when no HRV metric is present; callers
// must omit the headline rather than substitute a default.
func HeadlineHRV(metrics map[string]float64) (float64, bool) {
	for _, name := range hrvHeadlinePriority {
		if v, ok := metrics[name]; ok {
			return v, true
		}
	}
	return 0, false
}
