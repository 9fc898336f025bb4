package postgres

import (
	"context"
	"fmt"

	"github.com/platinummonkey/pulse/pkg/api"
)

// Insert files an on-demand fetch request for a user.
func (s *Store) Insert(ctx context.Context, userID int64, daysBack int) (*api.FetchTrigger, error) {
	if daysBack < 1 {
		daysBack = 1
	}

	var trigger api.FetchTrigger
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO fetch_triggers (user_id, days_back)
		VALUES ($1, $2)
		RETURNING id, user_id, days_back, requested_at, consumed
	`, userID, daysBack).Scan(
		&trigger.ID,
		&trigger.UserID,
		&trigger.DaysBack,
		&trigger.RequestedAt,
		&trigger.Consumed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert trigger: %w", err)
	}
	return &trigger, nil
}

// PollUnconsumed returns up to limit outstanding triggers, oldest
// first. Polling does not consume; the scheduler calls Consume per
// trigger once it commits to acting on it.
func (s *Store) PollUnconsumed(ctx context.Context, limit int) ([]*api.FetchTrigger, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, days_back, requested_at, consumed
		FROM fetch_triggers
		WHERE NOT consumed
		ORDER BY requested_at, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to poll triggers: %w", err)
	}
	defer rows.Close()

	var triggers []*api.FetchTrigger
	for rows.Next() {
		var t api.FetchTrigger
		if err := rows.Scan(&t.ID, &t.UserID, &t.DaysBack, &t.RequestedAt, &t.Consumed); err != nil {
			return nil, fmt.Errorf("failed to scan trigger: %w", err)
		}
		triggers = append(triggers, &t)
	}
	return triggers, rows.Err()
}

// Consume marks a trigger handled. The conditional update makes
// consumption exactly-once: of any number of concurrent consumers, one
// sees true and the rest false.
func (s *Store) Consume(ctx context.Context, triggerID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE fetch_triggers
		SET consumed = TRUE
		WHERE id = $1 AND NOT consumed
	`, triggerID)
	if err != nil {
		return false, fmt.Errorf("failed to consume trigger %d: %w", triggerID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read consume result: %w", err)
	}
	return n == 1, nil
}
