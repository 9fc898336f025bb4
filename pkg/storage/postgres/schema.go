package postgres

import (
	"context"
	"fmt"

	"github.com/platinummonkey/pulse/pkg/api"
	"github.com/platinummonkey/pulse/pkg/observability"
)

// schemaStatements create the pipeline tables. Statements are idempotent
// so daemons can race on startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	// The composite primary key includes the partition column so the
	// table qualifies as a hypertable: TimescaleDB rejects any unique
	// index that omits it.
	`CREATE TABLE IF NOT EXISTS readings (
		id BIGSERIAL,
		user_id BIGINT NOT NULL REFERENCES users(id),
		timestamp TIMESTAMPTZ NOT NULL,
		data_type TEXT NOT NULL,
		metric_name TEXT NOT NULL,
		value DOUBLE PRECISION NOT NULL,
		raw_value JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (id, timestamp),
		UNIQUE (user_id, timestamp, data_type, metric_name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_readings_user_type_ts
		ON readings (user_id, data_type, timestamp)`,

	`CREATE TABLE IF NOT EXISTS analytics_jobs (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		analytics_type TEXT NOT NULL,
		time_range TEXT NOT NULL,
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		error TEXT NOT NULL DEFAULT '',
		claimed_by TEXT NOT NULL DEFAULT '',
		claimed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status_created
		ON analytics_jobs (status, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_key
		ON analytics_jobs (user_id, analytics_type, time_range, start_date, end_date)`,

	`CREATE TABLE IF NOT EXISTS analytics_results (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		analytics_type TEXT NOT NULL,
		time_range TEXT NOT NULL,
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		metrics JSONB NOT NULL DEFAULT '{}',
		computed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, analytics_type, time_range, start_date, end_date)
	)`,

	`CREATE TABLE IF NOT EXISTS metric_metadata (
		metric_name TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		value_kind TEXT NOT NULL,
		chart_kind TEXT NOT NULL DEFAULT 'line'
	)`,

	`CREATE TABLE IF NOT EXISTS fetch_triggers (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		days_back INT NOT NULL DEFAULT 1,
		requested_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		consumed BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_triggers_unconsumed
		ON fetch_triggers (requested_at) WHERE NOT consumed`,
}

// InitSchema creates all pipeline tables and indexes.
func (s *Store) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema init failed: %w", err)
		}
	}

	// TimescaleDB is optional; on plain postgres the call fails and the
	// readings table stays a regular table.
	if _, err := s.db.ExecContext(ctx,
		`SELECT create_hypertable('readings', 'timestamp', if_not_exists => TRUE, migrate_data => TRUE)`); err != nil {
		observability.FromContext(ctx).WithError(err).Debug("readings hypertable not created, staying a plain table")
	}

	return nil
}

// SeedCatalog upserts catalog entries into metric_metadata. Existing
// rows are updated so deployments pick up display-name changes.
func (s *Store) SeedCatalog(ctx context.Context, entries []api.MetricMetadata) error {
	const query = `
		INSERT INTO metric_metadata (metric_name, display_name, unit, value_kind, chart_kind)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (metric_name) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			unit = EXCLUDED.unit,
			value_kind = EXCLUDED.value_kind,
			chart_kind = EXCLUDED.chart_kind
	`
	for _, e := range entries {
		if _, err := s.db.ExecContext(ctx, query,
			e.MetricName, e.DisplayName, e.Unit, string(e.Kind), e.ChartKind); err != nil {
			return fmt.Errorf("failed to seed catalog entry %s: %w", e.MetricName, err)
		}
	}
	return nil
}

// ListCatalog returns all catalog entries ordered by metric name.
func (s *Store) ListCatalog(ctx context.Context) ([]api.MetricMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT metric_name, display_name, unit, value_kind, chart_kind
		FROM metric_metadata
		ORDER BY metric_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	defer rows.Close()

	var entries []api.MetricMetadata
	for rows.Next() {
		var e api.MetricMetadata
		var kind string
		if err := rows.Scan(&e.MetricName, &e.DisplayName, &e.Unit, &kind, &e.ChartKind); err != nil {
			return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
		}
		e.Kind = api.ValueKind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
