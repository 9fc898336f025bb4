package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestRetryingGatewayRetriesTransient(t *testing.T) {
	calls := 0
	inner := GatewayFunc(func(ctx context.Context, email string, day time.Time, dataType string) (json.RawMessage, error) {
		calls++
		if calls < 3 {
			return nil, Transient(errors.New("connection reset"))
		}
		return json.RawMessage(`{"totalSteps": 1200}`), nil
	})

	g := NewRetryingGateway(inner, BackoffPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, quietLogger())
	g.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	payload, err := g.Fetch(context.Background(), "a@b.c", time.Now(), "steps")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if payload == nil {
		t.Error("Expected payload after retries")
	}
	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}

func TestRetryingGatewayExhaustsAttempts(t *testing.T) {
	calls := 0
	inner := GatewayFunc(func(ctx context.Context, email string, day time.Time, dataType string) (json.RawMessage, error) {
		calls++
		return nil, Transient(errors.New("timeout"))
	})

	g := NewRetryingGateway(inner, BackoffPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, quietLogger())
	g.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	_, err := g.Fetch(context.Background(), "a@b.c", time.Now(), "hrv")
	if err == nil {
		t.Fatal("Expected error after exhausting attempts")
	}
	if !IsTransient(err) {
		t.Errorf("Expected transient error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 attempts, got %d", calls)
	}
}

func TestRetryingGatewayNoDataPassesThrough(t *testing.T) {
	calls := 0
	inner := GatewayFunc(func(ctx context.Context, email string, day time.Time, dataType string) (json.RawMessage, error) {
		calls++
		return nil, ErrNoData
	})

	g := NewRetryingGateway(inner, DefaultBackoff(), quietLogger())

	_, err := g.Fetch(context.Background(), "a@b.c", time.Now(), "sleep")
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("Expected ErrNoData, got %v", err)
	}
	if calls != 1 {
		t.Errorf("ErrNoData must not be retried, got %d calls", calls)
	}
}

func TestBackoffDelayGrowth(t *testing.T) {
	p := BackoffPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 5 * time.Second}

	if d := p.Delay(1); d != time.Second {
		t.Errorf("attempt 1 delay = %v, want 1s", d)
	}
	if d := p.Delay(2); d != 2*time.Second {
		t.Errorf("attempt 2 delay = %v, want 2s", d)
	}
	if d := p.Delay(4); d != 5*time.Second {
		t.Errorf("attempt 4 delay = %v, want capped at 5s", d)
	}
}

func TestIsTransient(t *testing.T) {
	if IsTransient(errors.New("plain")) {
		t.Error("plain error must not be transient")
	}
	if !IsTransient(Transient(errors.New("wrapped"))) {
		t.Error("wrapped error must be transient")
	}
	if Transient(nil) != nil {
		t.Error("Transient(nil) must be nil")
	}
}
