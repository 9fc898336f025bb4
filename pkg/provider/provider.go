package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNoData is returned by a Gateway when the provider has no payload
// for the requested (user, day, data type). It is an expected outcome,
// not a failure: the scheduler records it and moves on.
var ErrNoData = errors.New("provider: no data available")

// TransientError marks a failure worth retrying within the current
// ingestion cycle (network errors, timeouts, provider rate limits).
// Anything not wrapped in TransientError is treated as permanent for
// the cycle.
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("provider: transient failure: %v", e.Cause)
}

func (e *TransientError) Unwrap() error { return e.Cause }

// Transient wraps err as retryable. Returns nil for a nil err.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Cause: err}
}

// IsTransient reports whether err is retryable within a cycle.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// DataTypes is the default set of provider data types the pipeline
// ingests. The set is open-ended: deployments may override it via
// configuration without code changes.
var DataTypes = []string{
	"steps",
	"heart_rate",
	"hrv",
	"stress",
	"sleep",
	"resting_hr",
	"respiration",
	"intensity_minutes",
	"body_battery",
	"spo2",
}

// Gateway is the external wearable-data provider, consumed as an opaque
// fetch function. Implementations own authentication, transport and
// provider-side rate limiting; the pipeline only sees raw per-metric
// payloads, ErrNoData, or a TransientError.
type Gateway interface {
	Fetch(ctx context.Context, email string, day time.Time, dataType string) (json.RawMessage, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, email string, day time.Time, dataType string) (json.RawMessage, error)

func (f GatewayFunc) Fetch(ctx context.Context, email string, day time.Time, dataType string) (json.RawMessage, error) {
	return f(ctx, email, day, dataType)
}
