package api

import "time"

// ResultState tells a caller why a number is or isn't there.
type ResultState string

const (
	// StateOK means a computed result exists.
	StateOK ResultState = "ok"
	// StateNotScheduled means no job has ever been created for the key.
	StateNotScheduled ResultState = "not_scheduled"
	// StateComputing means a job for the key is pending or running.
	StateComputing ResultState = "computing"
	// StateFailed means the latest computation failed and no earlier
	// result exists to fall back on.
	StateFailed ResultState = "failed"
)

// StatusReport is the serving layer's answer for one result key.
type StatusReport struct {
	State      ResultState      `json:"state"`
	Result     *AnalyticsResult `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
	ComputedAt *time.Time       `json:"computed_at,omitempty"`
}
