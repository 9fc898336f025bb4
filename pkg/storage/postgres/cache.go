package postgres

import (
	"context"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/pulse/pkg/api"
	"github.com/platinummonkey/pulse/pkg/observability"
	"github.com/platinummonkey/pulse/pkg/storage"
)

// ResultCache is an in-process read-through layer in front of a
// ResultStore. It absorbs the dashboard's repeated reads of the same
// result keys between recomputations; Redis (inside the store) remains
// the shared cache across processes, this LRU is the per-process L1.
type ResultCache struct {
	inner   storage.ResultStore
	l1      *expirable.LRU[string, *api.AnalyticsResult]
	metrics *observability.Metrics
}

// NewResultCache wraps inner with an expiring LRU of the given size.
// metrics may be nil.
func NewResultCache(inner storage.ResultStore, cfg storage.Config, metrics *observability.Metrics) *ResultCache {
	size := cfg.L1CacheSize
	if size <= 0 {
		size = 1024
	}
	return &ResultCache{
		inner:   inner,
		l1:      expirable.NewLRU[string, *api.AnalyticsResult](size, nil, cfg.CacheTTL["result"]),
		metrics: metrics,
	}
}

// UpsertResult writes through and drops the stale L1 entry.
func (c *ResultCache) UpsertResult(ctx context.Context, key api.ResultKey, metrics map[string]float64) error {
	if err := c.inner.UpsertResult(ctx, key, metrics); err != nil {
		return err
	}
	c.l1.Remove(resultCacheKey(key))
	return nil
}

// GetResult serves from L1 when possible. A (nil, nil) miss from the
// inner store is not cached: "not computed yet" should flip to the
// real result the moment the worker lands it.
func (c *ResultCache) GetResult(ctx context.Context, key api.ResultKey) (*api.AnalyticsResult, error) {
	ck := resultCacheKey(key)
	if result, ok := c.l1.Get(ck); ok {
		c.hit()
		return result, nil
	}
	c.miss()

	result, err := c.inner.GetResult(ctx, key)
	if err != nil {
		return nil, err
	}
	if result != nil {
		c.l1.Add(ck, result)
	}
	return result, nil
}

// ListResults always hits the store; list shapes vary too much to be
// worth caching per key.
func (c *ResultCache) ListResults(ctx context.Context, userID int64, analyticsType string, timeRange api.TimeRange) ([]*api.AnalyticsResult, error) {
	return c.inner.ListResults(ctx, userID, analyticsType, timeRange)
}

// Purge empties the L1 cache
func (c *ResultCache) Purge() {
	c.l1.Purge()
}

func (c *ResultCache) hit() {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues("l1", "result").Inc()
	}
}

func (c *ResultCache) miss() {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues("l1", "result").Inc()
	}
}
