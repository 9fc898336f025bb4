package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/platinummonkey/pulse/pkg/storage"
)

// Store implements the storage interfaces using PostgreSQL + S3 + Redis
type Store struct {
	db          *sql.DB
	s3Client    *S3Client
	redisClient *RedisClient
	config      storage.Config
}

// NewStore creates a new PostgreSQL-backed store
func NewStore(config storage.Config) (*Store, error) {
	db, err := sql.Open("postgres", config.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(config.PostgresMaxConns)
	db.SetMaxIdleConns(config.PostgresMinConns)
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), config.PostgresTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	var s3Client *S3Client
	if config.S3Endpoint != "" {
		s3Client, err = NewS3Client(config)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create s3 client: %w", err)
		}
	}

	var redisClient *RedisClient
	if config.CacheEnabled && config.RedisURL != "" {
		redisClient, err = NewRedisClient(config)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}
	}

	return &Store{
		db:          db,
		s3Client:    s3Client,
		redisClient: redisClient,
		config:      config,
	}, nil
}

// NewStoreWithDB wraps an existing database handle. Used by tests that
// inject a mock connection.
func NewStoreWithDB(db *sql.DB, config storage.Config) *Store {
	return &Store{db: db, config: config}
}

// DB exposes the underlying handle for health checks
func (s *Store) DB() *sql.DB {
	return s.db
}

// Redis exposes the cache client, nil when caching is disabled
func (s *Store) Redis() *RedisClient {
	return s.redisClient
}

// Archive exposes the payload archive, nil when S3 is not configured
func (s *Store) Archive() *S3Client {
	return s.s3Client
}

// HealthCheck pings the backing services
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres unhealthy: %w", err)
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(ctx); err != nil {
			return fmt.Errorf("redis unhealthy: %w", err)
		}
	}
	return nil
}

// Close closes all backing connections
func (s *Store) Close() error {
	var errs []error
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("postgres close error: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("store close errors: %v", errs)
	}
	return nil
}
