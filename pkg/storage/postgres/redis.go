package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/pulse/pkg/api"
	"github.com/platinummonkey/pulse/pkg/storage"
)

// RedisClient handles caching operations
type RedisClient struct {
	client *redis.Client
	config storage.Config
}

// NewRedisClient creates a new Redis client
func NewRedisClient(config storage.Config) (*RedisClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if config.RedisPassword != "" {
		opts.Password = config.RedisPassword
	}
	if config.RedisDB >= 0 {
		opts.DB = config.RedisDB
	}
	if config.RedisMaxRetries > 0 {
		opts.MaxRetries = config.RedisMaxRetries
	}
	if config.RedisPoolSize > 0 {
		opts.PoolSize = config.RedisPoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{
		client: client,
		config: config,
	}, nil
}

func resultCacheKey(key api.ResultKey) string {
	return fmt.Sprintf("result:%d:%s:%s:%s:%s",
		key.UserID, key.AnalyticsType, key.Range,
		key.StartDate.Format("2006-01-02"), key.EndDate.Format("2006-01-02"))
}

// GetResult retrieves an analytics result from cache. (nil, nil) on miss.
func (c *RedisClient) GetResult(ctx context.Context, key api.ResultKey) (*api.AnalyticsResult, error) {
	data, err := c.client.Get(ctx, resultCacheKey(key)).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var result api.AnalyticsResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		// Corrupt entries are dropped, the next read repopulates.
		c.client.Del(ctx, resultCacheKey(key))
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

// SetResult stores an analytics result in cache
func (c *RedisClient) SetResult(ctx context.Context, result *api.AnalyticsResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	return c.client.Set(ctx, resultCacheKey(result.Key), data, c.config.CacheTTL["result"]).Err()
}

// InvalidateResult removes a result from cache
func (c *RedisClient) InvalidateResult(ctx context.Context, key api.ResultKey) error {
	return c.client.Del(ctx, resultCacheKey(key)).Err()
}

// InvalidateUserResults removes all cached results for a user
func (c *RedisClient) InvalidateUserResults(ctx context.Context, userID int64) error {
	pattern := fmt.Sprintf("result:%d:*", userID)
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan failed for pattern %s: %w", pattern, err)
	}
	return nil
}

// AcquireCycleLock takes a short-lived distributed lock so overlapping
// ingestion cycles (two daemon replicas, or a slow cycle meeting the
// next cron tick) don't fetch the same data twice. Reports whether the
// lock was won.
func (c *RedisClient) AcquireCycleLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, "lock:cycle:"+name, time.Now().Unix(), ttl).Result()
}

// ReleaseCycleLock drops a cycle lock before its TTL expires
func (c *RedisClient) ReleaseCycleLock(ctx context.Context, name string) error {
	return c.client.Del(ctx, "lock:cycle:"+name).Err()
}

// Ping checks Redis connectivity
func (c *RedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetClient returns the underlying Redis client for health checks
func (c *RedisClient) GetClient() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	return c.client.Close()
}

// GetPoolStats returns connection pool statistics
func (c *RedisClient) GetPoolStats() *redis.PoolStats {
	return c.client.PoolStats()
}
