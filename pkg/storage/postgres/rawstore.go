package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/pulse/pkg/api"
)

// upsertBatchSize bounds the VALUES list of a single upsert statement.
// 100 rows x 6 params stays well under the postgres parameter limit.
const upsertBatchSize = 100

// UpsertReadings writes readings idempotently: a row that already
// exists under the natural key (user, timestamp, data type, metric
// name) gets its value replaced, never duplicated. Safe to call with
// overlapping ingestion windows.
func (s *Store) UpsertReadings(ctx context.Context, readings []api.Reading) error {
	for start := 0; start < len(readings); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(readings) {
			end = len(readings)
		}
		if err := s.upsertBatch(ctx, readings[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsertBatch(ctx context.Context, readings []api.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO readings (user_id, timestamp, data_type, metric_name, value, raw_value) VALUES `)

	args := make([]interface{}, 0, len(readings)*6)
	for i, r := range readings {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 6
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6)

		var raw interface{}
		if len(r.RawValue) > 0 {
			raw = []byte(r.RawValue)
		}
		args = append(args, r.UserID, r.Timestamp, r.DataType, r.MetricName, r.Value, raw)
	}

	sb.WriteString(` ON CONFLICT (user_id, timestamp, data_type, metric_name) DO UPDATE SET
		value = EXCLUDED.value,
		raw_value = EXCLUDED.raw_value`)

	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to upsert readings: %w", err)
	}
	return nil
}

// ScanReadings returns the readings for one user and data type inside
// [start, end), ordered by timestamp.
func (s *Store) ScanReadings(ctx context.Context, userID int64, dataType string, start, end time.Time) ([]api.Reading, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, timestamp, data_type, metric_name, value, raw_value, created_at
		FROM readings
		WHERE user_id = $1 AND data_type = $2 AND timestamp >= $3 AND timestamp < $4
		ORDER BY timestamp
	`, userID, dataType, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to scan readings: %w", err)
	}
	defer rows.Close()

	var readings []api.Reading
	for rows.Next() {
		var r api.Reading
		var raw sql.NullString
		if err := rows.Scan(&r.ID, &r.UserID, &r.Timestamp, &r.DataType, &r.MetricName, &r.Value, &raw, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		if raw.Valid {
			r.RawValue = []byte(raw.String)
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}
