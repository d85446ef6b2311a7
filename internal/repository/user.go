package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/klbk90/creative-optimizer-sub001/internal/model"
)

// ErrUserNotFound is returned when no user matches.
var ErrUserNotFound = errors.New("user not found")

// GetUserByEmail retrieves a user by their email address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.pool.QueryRow(ctx, `SELECT id, email, created_at FROM users WHERE email = $1`,
		normalizeEmail(email),
	).Scan(&user.ID, &user.Email, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

// EnsureUser returns the user with user.Email, creating it from user when
// absent. Concurrent callers converge on the same row.
func (r *Repository) EnsureUser(ctx context.Context, user *model.User) (*model.User, error) {
	var out model.User
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, email, created_at
	`, user.ID, normalizeEmail(user.Email), user.CreatedAt).Scan(&out.ID, &out.Email, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user: %w", err)
	}
	return &out, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
