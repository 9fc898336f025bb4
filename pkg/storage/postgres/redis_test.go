package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/platinummonkey/pulse/pkg/api"
	"github.com/platinummonkey/pulse/pkg/storage"
)

func newTestRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := storage.DefaultConfig()
	cfg.RedisURL = "redis://" + mr.Addr()

	client, err := NewRedisClient(cfg)
	if err != nil {
		t.Fatalf("NewRedisClient failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestRedisResultRoundTrip(t *testing.T) {
	client, _ := newTestRedis(t)
	ctx := context.Background()

	key := testResultKey()
	result := &api.AnalyticsResult{
		Key:        key,
		Metrics:    map[string]float64{"avg_steps": 9500, "avg_hrv": 48.5},
		ComputedAt: time.Now().UTC().Truncate(time.Second),
	}

	if err := client.SetResult(ctx, result); err != nil {
		t.Fatalf("SetResult failed: %v", err)
	}

	got, err := client.GetResult(ctx, key)
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected cached result")
	}
	if got.Metrics["avg_steps"] != 9500 {
		t.Errorf("avg_steps = %v", got.Metrics["avg_steps"])
	}
}

func TestRedisResultMiss(t *testing.T) {
	client, _ := newTestRedis(t)

	got, err := client.GetResult(context.Background(), testResultKey())
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected cache miss, got %+v", got)
	}
}

func TestRedisInvalidateResult(t *testing.T) {
	client, _ := newTestRedis(t)
	ctx := context.Background()

	key := testResultKey()
	result := &api.AnalyticsResult{Key: key, Metrics: map[string]float64{"avg_steps": 1}}
	if err := client.SetResult(ctx, result); err != nil {
		t.Fatalf("SetResult failed: %v", err)
	}
	if err := client.InvalidateResult(ctx, key); err != nil {
		t.Fatalf("InvalidateResult failed: %v", err)
	}

	got, err := client.GetResult(ctx, key)
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if got != nil {
		t.Error("result should be gone after invalidation")
	}
}

func TestRedisCorruptEntryDropped(t *testing.T) {
	client, mr := newTestRedis(t)
	ctx := context.Background()

	key := testResultKey()
	mr.Set(resultCacheKey(key), "not json")

	if _, err := client.GetResult(ctx, key); err == nil {
		t.Error("corrupt entry should surface an error")
	}
	if mr.Exists(resultCacheKey(key)) {
		t.Error("corrupt entry should be deleted")
	}
}

func TestAcquireCycleLock(t *testing.T) {
	client, _ := newTestRedis(t)
	ctx := context.Background()

	won, err := client.AcquireCycleLock(ctx, "ingest", time.Minute)
	if err != nil {
		t.Fatalf("AcquireCycleLock failed: %v", err)
	}
	if !won {
		t.Fatal("first acquire should win")
	}

	won, err = client.AcquireCycleLock(ctx, "ingest", time.Minute)
	if err != nil {
		t.Fatalf("AcquireCycleLock failed: %v", err)
	}
	if won {
		t.Error("second acquire must lose while the lock is held")
	}

	if err := client.ReleaseCycleLock(ctx, "ingest"); err != nil {
		t.Fatalf("ReleaseCycleLock failed: %v", err)
	}

	won, err = client.AcquireCycleLock(ctx, "ingest", time.Minute)
	if err != nil {
		t.Fatalf("AcquireCycleLock failed: %v", err)
	}
	if !won {
		t.Error("acquire after release should win")
	}
}
