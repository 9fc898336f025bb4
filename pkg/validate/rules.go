package validate

// DefaultRules bounds every resolver-emitted metric that has a sensible
// physiological range. Bounds flag sensor glitches and unit confusion,
// not unusual-but-real readings, so they are deliberately generous.
var DefaultRules = map[string]Rule{
	"steps":                      {Min: 0, Max: 100000},
	"moderate_intensity_minutes": {Min: 0, Max: 1440},
	"vigorous_intensity_minutes": {Min: 0, Max: 1440},

	"resting_heart_rate": {Min: 30, Max: 120},
	"avg_heart_rate":     {Min: 30, Max: 200},
	"min_heart_rate":     {Min: 25, Max: 150},
	"max_heart_rate":     {Min: 60, Max: 230},

	"hrv_weekly_avg":     {Min: 5, Max: 250},
	"hrv_last_night_avg": {Min: 5, Max: 250},
	"hrv_5min_high":      {Min: 5, Max: 300},
	"hrv_5min_low":       {Min: 1, Max: 250},
	"hrv_readings_avg":   {Min: 5, Max: 250},
	"hrv_avg":            {Min: 5, Max: 250},

	"avg_stress": {Min: 0, Max: 100},
	"max_stress": {Min: 0, Max: 100},

	"sleep_duration_hours": {Min: 0, Max: 12},
	"deep_sleep_hours":     {Min: 0, Max: 12},
	"rem_sleep_hours":      {Min: 0, Max: 12},
	"nap_time_hours":       {Min: 0, Max: 12},

	"avg_respiration":        {Min: 4, Max: 40},
	"avg_sleep_respiration":  {Min: 4, Max: 40},
	"avg_waking_respiration": {Min: 4, Max: 40},

	"avg_spo2": {Min: 70, Max: 100},
	"min_spo2": {Min: 50, Max: 100},

	"body_battery":         {Min: 0, Max: 100},
	"body_battery_charged": {Min: 0, Max: 200},
	"body_battery_drained": {Min: 0, Max: 200},
}
