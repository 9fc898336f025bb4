package provider

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
)

// BackoffPolicy controls in-cycle retries of transient gateway failures.
// A unit that exhausts MaxAttempts is deferred to the next scheduled
// cycle rather than failed permanently.
type BackoffPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultBackoff mirrors the provider's observed rate-limit behavior:
// a few widely spaced attempts beat many rapid ones.
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    60 * time.Second,
	}
}

// Delay returns the backoff delay before the given attempt (1-based).
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return p.BaseDelay
	}
	d := p.BaseDelay << (attempt - 1)
	if d > p.MaxDelay || d <= 0 {
		return p.MaxDelay
	}
	return d
}

// RetryingGateway wraps a Gateway with bounded retry on transient
// failures. ErrNoData and permanent errors pass through immediately.
type RetryingGateway struct {
	inner  Gateway
	policy BackoffPolicy
	log    *logrus.Entry
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryingGateway wraps inner with the given policy.
func NewRetryingGateway(inner Gateway, policy BackoffPolicy, log *logrus.Logger) *RetryingGateway {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &RetryingGateway{
		inner:  inner,
		policy: policy,
		log:    log.WithField("component", "provider"),
		sleep:  sleepCtx,
	}
}

// Fetch retries transient failures up to the policy's attempt budget.
func (g *RetryingGateway) Fetch(ctx context.Context, email string, day time.Time, dataType string) (json.RawMessage, error) {
	var lastErr error
	for attempt := 1; attempt <= g.policy.MaxAttempts; attempt++ {
		payload, err := g.inner.Fetch(ctx, email, day, dataType)
		if err == nil {
			return payload, nil
		}
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err

		if attempt == g.policy.MaxAttempts {
			break
		}
		delay := g.policy.Delay(attempt)
		g.log.WithFields(logrus.Fields{
			"data_type": dataType,
			"day":       day.Format("2006-01-02"),
			"attempt":   attempt,
			"delay":     delay.String(),
		}).WithError(err).Warn("transient provider failure, backing off")

		if err := g.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	g.log.WithFields(logrus.Fields{
		"data_type": dataType,
		"day":       day.Format("2006-01-02"),
		"attempts":  g.policy.MaxAttempts,
	}).WithError(lastErr).Warn("provider retries exhausted, deferring to next cycle")
	return nil, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
