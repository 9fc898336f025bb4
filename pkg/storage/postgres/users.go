package postgres

import (
	"context"
	"fmt"

	"github.com/platinummonkey/pulse/pkg/api"
)

// EnsureUser returns the user for email, creating it on first sight.
// The no-op DO UPDATE makes RETURNING yield the row on both paths.
func (s *Store) EnsureUser(ctx context.Context, email string) (*api.User, error) {
	const query = `
		INSERT INTO users (email)
		VALUES ($1)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, email, created_at
	`

	var user api.User
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user: %w", err)
	}
	return &user, nil
}

// ListUsers returns all known users ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]*api.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, created_at
		FROM users
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*api.User
	for rows.Next() {
		var user api.User
		if err := rows.Scan(&user.ID, &user.Email, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &user)
	}
	return users, rows.Err()
}
