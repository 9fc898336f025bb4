package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/platinummonkey/pulse/pkg/api"
)

// UpsertResult writes the metrics for a result key, replacing any prior
// row. Exactly one row exists per key; the computed_at stamp moves
// forward on every successful recomputation.
func (s *Store) UpsertResult(ctx context.Context, key api.ResultKey, metrics map[string]float64) error {
	data, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analytics_results (user_id, analytics_type, time_range, start_date, end_date, metrics, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id, analytics_type, time_range, start_date, end_date) DO UPDATE SET
			metrics = EXCLUDED.metrics,
			computed_at = NOW()
	`, key.UserID, key.AnalyticsType, string(key.Range), key.StartDate, key.EndDate, data)
	if err != nil {
		return fmt.Errorf("failed to upsert result: %w", err)
	}

	if s.redisClient != nil {
		s.redisClient.InvalidateResult(ctx, key)
	}
	return nil
}

// GetResult returns the stored result for a key, or (nil, nil) when no
// computation has succeeded yet.
func (s *Store) GetResult(ctx context.Context, key api.ResultKey) (*api.AnalyticsResult, error) {
	if s.redisClient != nil {
		if result, err := s.redisClient.GetResult(ctx, key); err == nil && result != nil {
			return result, nil
		}
	}

	var data []byte
	result := &api.AnalyticsResult{Key: key}
	err := s.db.QueryRowContext(ctx, `
		SELECT metrics, computed_at
		FROM analytics_results
		WHERE user_id = $1 AND analytics_type = $2 AND time_range = $3
			AND start_date = $4 AND end_date = $5
	`, key.UserID, key.AnalyticsType, string(key.Range), key.StartDate, key.EndDate).
		Scan(&data, &result.ComputedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	if err := json.Unmarshal(data, &result.Metrics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}

	if s.redisClient != nil {
		s.redisClient.SetResult(ctx, result)
	}
	return result, nil
}

// ListResults returns all stored results for a user, optionally
// filtered by analytics type and time range, newest window first.
func (s *Store) ListResults(ctx context.Context, userID int64, analyticsType string, timeRange api.TimeRange) ([]*api.AnalyticsResult, error) {
	query := `
		SELECT user_id, analytics_type, time_range, start_date, end_date, metrics, computed_at
		FROM analytics_results
		WHERE user_id = $1
	`
	args := []interface{}{userID}
	if analyticsType != "" {
		args = append(args, analyticsType)
		query += fmt.Sprintf(" AND analytics_type = $%d", len(args))
	}
	if timeRange != "" {
		args = append(args, string(timeRange))
		query += fmt.Sprintf(" AND time_range = $%d", len(args))
	}
	query += " ORDER BY end_date DESC, analytics_type, time_range"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var results []*api.AnalyticsResult
	for rows.Next() {
		var r api.AnalyticsResult
		var tr string
		var data []byte
		if err := rows.Scan(&r.Key.UserID, &r.Key.AnalyticsType, &tr,
			&r.Key.StartDate, &r.Key.EndDate, &data, &r.ComputedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Key.Range = api.TimeRange(tr)
		if err := json.Unmarshal(data, &r.Metrics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}
