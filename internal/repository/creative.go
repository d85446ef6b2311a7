package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/klbk90/creative-optimizer-sub001/internal/model"
)

// ErrCreativeNotFound is returned when a creative does not exist for the owner.
var ErrCreativeNotFound = errors.New("creative not found")

const creativeColumns = `id, user_id, name, creative_type, media_url, hook, angle, status, created_at, updated_at`

// CreativeFilter defines filters for listing creatives.
type CreativeFilter struct {
	UserID       string
	CreativeType model.CreativeType
	Status       string
}

// CreateCreative inserts a new creative.
func (r *Repository) CreateCreative(ctx context.Context, c *model.Creative) error {
	query := `
		INSERT INTO creatives (id, user_id, name, creative_type, media_url, hook, angle, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		c.ID,
		c.UserID,
		c.Name,
		c.CreativeType,
		c.MediaURL,
		c.Hook,
		c.Angle,
		c.Status,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create creative: %w", err)
	}
	return nil
}

// GetCreative retrieves a creative owned by userID.
func (r *Repository) GetCreative(ctx context.Context, id, userID string) (*model.Creative, error) {
	query := `SELECT ` + creativeColumns + ` FROM creatives WHERE id = $1 AND user_id = $2`

	c, err := scanCreative(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCreativeNotFound
		}
		return nil, fmt.Errorf("failed to get creative: %w", err)
	}
	return c, nil
}

// ListCreatives retrieves a paginated list of creatives.
func (r *Repository) ListCreatives(ctx context.Context, filter CreativeFilter, cursor string, limit int) ([]*model.Creative, string, error) {
	var w whereBuilder
	w.add("user_id = $%d", filter.UserID)
	if err := w.cursor("", cursor); err != nil {
		return nil, "", err
	}
	if filter.CreativeType != "" {
		w.add("creative_type = $%d", filter.CreativeType)
	}
	if filter.Status != "" {
		w.add("status = $%d", filter.Status)
	}

	query := `SELECT ` + creativeColumns + ` FROM creatives` + w.sql() +
		` ORDER BY created_at DESC, id DESC` + w.limit(limit)

	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list creatives: %w", err)
	}
	defer rows.Close()

	var creatives []*model.Creative
	for rows.Next() {
		c, err := scanCreative(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan creative: %w", err)
		}
		creatives = append(creatives, c)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("error iterating creatives: %w", err)
	}

	creatives, next := page(creatives, limit, func(c *model.Creative) PaginationCursor {
		return PaginationCursor{ID: c.ID, CreatedAt: c.CreatedAt}
	})
	return creatives, next, nil
}

// ArchiveCreative marks a creative archived. Archiving is idempotent.
func (r *Repository) ArchiveCreative(ctx context.Context, id, userID string, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE creatives SET status = $3, updated_at = $4
		WHERE id = $1 AND user_id = $2
	`, id, userID, model.CreativeStatusArchived, at)
	if err != nil {
		return fmt.Errorf("failed to archive creative: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrCreativeNotFound
	}
	return nil
}

func scanCreative(row scanner) (*model.Creative, error) {
	var c model.Creative
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Name,
		&c.CreativeType,
		&c.MediaURL,
		&c.Hook,
		&c.Angle,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
