package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/klbk90/creative-optimizer-sub001/internal/model"
)

// Common errors for influencer repository operations.
var (
	ErrInfluencerNotFound = errors.New("influencer not found")
	ErrInfluencerExists   = errors.New("influencer already exists")
)

const influencerColumns = `id, user_id, handle, platform, email, followers, engagement_rate_bp, funnel_status, created_at, updated_at`

// InfluencerFilter defines filters for listing influencers.
type InfluencerFilter struct {
	UserID       string
	Platform     string
	FunnelStatus string
}

// CreateInfluencer inserts a new influencer. Handles are unique per owner
// and platform.
func (r *Repository) CreateInfluencer(ctx context.Context, inf *model.Influencer) error {
	query := `
		INSERT INTO influencers (id, user_id, handle, platform, email, followers, engagement_rate_bp, funnel_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		inf.ID,
		inf.UserID,
		inf.Handle,
		inf.Platform,
		inf.Email,
		inf.Followers,
		inf.EngagementRateBP,
		inf.FunnelStatus,
		inf.CreatedAt,
		inf.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrInfluencerExists
		}
		return fmt.Errorf("failed to create influencer: %w", err)
	}
	return nil
}

// ListInfluencers retrieves a paginated list of influencers.
func (r *Repository) ListInfluencers(ctx context.Context, filter InfluencerFilter, cursor string, limit int) ([]*model.Influencer, string, error) {
	var w whereBuilder
	w.add("user_id = $%d", filter.UserID)
	if err := w.cursor("", cursor); err != nil {
		return nil, "", err
	}
	if filter.Platform != "" {
		w.add("platform = $%d", filter.Platform)
	}
	if filter.FunnelStatus != "" {
		w.add("funnel_status = $%d", filter.FunnelStatus)
	}

	query := `SELECT ` + influencerColumns + ` FROM influencers` + w.sql() +
		` ORDER BY created_at DESC, id DESC` + w.limit(limit)

	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list influencers: %w", err)
	}
	defer rows.Close()

	var influencers []*model.Influencer
	for rows.Next() {
		inf, err := scanInfluencer(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan influencer: %w", err)
		}
		influencers = append(influencers, inf)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("error iterating influencers: %w", err)
	}

	influencers, next := page(influencers, limit, func(i *model.Influencer) PaginationCursor {
		return PaginationCursor{ID: i.ID, CreatedAt: i.CreatedAt}
	})
	return influencers, next, nil
}

// UpdateInfluencerStatus moves an influencer to a new funnel status.
func (r *Repository) UpdateInfluencerStatus(ctx context.Context, id, userID, status string, at time.Time) (*model.Influencer, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE influencers SET funnel_status = $3, updated_at = $4
		WHERE id = $1 AND user_id = $2
		RETURNING `+influencerColumns,
		id, userID, status, at,
	)

	inf, err := scanInfluencer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInfluencerNotFound
		}
		return nil, fmt.Errorf("failed to update influencer status: %w", err)
	}
	return inf, nil
}

func scanInfluencer(row scanner) (*model.Influencer, error) {
	var inf model.Influencer
	err := row.Scan(
		&inf.ID,
		&inf.UserID,
		&inf.Handle,
		&inf.Platform,
		&inf.Email,
		&inf.Followers,
		&inf.EngagementRateBP,
		&inf.FunnelStatus,
		&inf.CreatedAt,
		&inf.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inf, nil
}
