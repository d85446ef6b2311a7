package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/klbk90/creative-optimizer-sub001/internal/model"
)

// Common errors for landing page repository operations.
var (
	ErrLandingNotFound = errors.New("landing page not found")
	ErrSlugExists      = errors.New("slug already exists")
)

const landingPageColumns = `
	id, user_id, name, template, slug, config, utm_source, utm_medium, utm_campaign,
	redirect_url, redirect_delay, status, is_published, published_at, views, clicks, conversions,
	last_view_at, custom_domain, domain_verified, created_at, updated_at`

// LandingFilter defines filters for listing landing pages.
type LandingFilter struct {
	UserID string
	Status model.LandingStatus
}

// CreateLandingPage inserts a new landing page.
func (r *Repository) CreateLandingPage(ctx context.Context, p *model.LandingPage) error {
	query := `
		INSERT INTO landing_pages (
			id, user_id, name, template, slug, config, utm_source, utm_medium, utm_campaign,
			redirect_url, redirect_delay, status, is_published, published_at,
			custom_domain, domain_verified, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.UserID,
		p.Name,
		p.Template,
		p.Slug,
		configOrEmpty(p.Config),
		p.UTMSource,
		p.UTMMedium,
		p.UTMCampaign,
		p.RedirectURL,
		p.RedirectDelay,
		p.Status,
		p.IsPublished,
		p.PublishedAt,
		p.CustomDomain,
		p.DomainVerified,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlugExists
		}
		return fmt.Errorf("failed to create landing page: %w", err)
	}
	return nil
}

// GetLandingPage retrieves a landing page owned by userID.
func (r *Repository) GetLandingPage(ctx context.Context, id, userID string) (*model.LandingPage, error) {
	query := `SELECT ` + landingPageColumns + ` FROM landing_pages WHERE id = $1 AND user_id = $2`
	return r.getLandingPage(ctx, query, id, userID)
}

// GetLandingPageBySlugOrID resolves a public landing page reference.
// Slugs take precedence over IDs.
func (r *Repository) GetLandingPageBySlugOrID(ctx context.Context, ref string) (*model.LandingPage, error) {
	query := `SELECT ` + landingPageColumns + ` FROM landing_pages
		WHERE slug = $1 OR id = $1
		ORDER BY (slug = $1) DESC
		LIMIT 1`
	return r.getLandingPage(ctx, query, ref)
}

func (r *Repository) getLandingPage(ctx context.Context, query string, args ...any) (*model.LandingPage, error) {
	p, err := scanLandingPage(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLandingNotFound
		}
		return nil, fmt.Errorf("failed to get landing page: %w", err)
	}
	return p, nil
}

// UpdateLandingPage persists the mutable fields of a landing page.
func (r *Repository) UpdateLandingPage(ctx context.Context, p *model.LandingPage) error {
	query := `
		UPDATE landing_pages
		SET name = $3, template = $4, config = $5, utm_source = $6, utm_medium = $7, utm_campaign = $8,
			redirect_url = $9, redirect_delay = $10, status = $11, is_published = $12, published_at = $13,
			custom_domain = $14, domain_verified = $15, updated_at = $16
		WHERE id = $1 AND user_id = $2
	`

	result, err := r.pool.Exec(ctx, query,
		p.ID,
		p.UserID,
		p.Name,
		p.Template,
		configOrEmpty(p.Config),
		p.UTMSource,
		p.UTMMedium,
		p.UTMCampaign,
		p.RedirectURL,
		p.RedirectDelay,
		p.Status,
		p.IsPublished,
		p.PublishedAt,
		p.CustomDomain,
		p.DomainVerified,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update landing page: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrLandingNotFound
	}
	return nil
}

// DeleteLandingPage removes a landing page. Traffic sources it minted keep
// their history with landing_page_id cleared.
func (r *Repository) DeleteLandingPage(ctx context.Context, id, userID string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM landing_pages WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete landing page: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrLandingNotFound
	}
	return nil
}

// ListLandingPages retrieves a paginated list of landing pages.
func (r *Repository) ListLandingPages(ctx context.Context, filter LandingFilter, cursor string, limit int) ([]*model.LandingPage, string, error) {
	var w whereBuilder
	w.add("user_id = $%d", filter.UserID)
	if err := w.cursor("", cursor); err != nil {
		return nil, "", err
	}
	if filter.Status != "" {
		w.add("status = $%d", filter.Status)
	}

	query := `SELECT ` + landingPageColumns + ` FROM landing_pages` + w.sql() +
		` ORDER BY created_at DESC, id DESC` + w.limit(limit)

	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list landing pages: %w", err)
	}
	defer rows.Close()

	var pages []*model.LandingPage
	for rows.Next() {
		p, err := scanLandingPage(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan landing page: %w", err)
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("error iterating landing pages: %w", err)
	}

	pages, next := page(pages, limit, func(p *model.LandingPage) PaginationCursor {
		return PaginationCursor{ID: p.ID, CreatedAt: p.CreatedAt}
	})
	return pages, next, nil
}

// RecordLandingView creates the traffic source minted for one render and
// bumps the page's view counter in a single transaction. Nothing is written
// unless the page is still active.
func (r *Repository) RecordLandingView(ctx context.Context, pageID string, src *model.TrafficSource, at time.Time) (*model.LandingPage, error) {
	var out *model.LandingPage

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE landing_pages
			SET views = views + 1, last_view_at = $2
			WHERE id = $1 AND status = $3
			RETURNING `+landingPageColumns,
			pageID, at, model.LandingStatusActive,
		)

		var err error
		out, err = scanLandingPage(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrLandingNotFound
			}
			return fmt.Errorf("failed to update landing views: %w", err)
		}

		return insertTrafficSource(ctx, tx, src)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func configOrEmpty(cfg map[string]any) map[string]any {
	if cfg == nil {
		return map[string]any{}
	}
	return cfg
}

func scanLandingPage(row scanner) (*model.LandingPage, error) {
	var p model.LandingPage
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Name,
		&p.Template,
		&p.Slug,
		&p.Config,
		&p.UTMSource,
		&p.UTMMedium,
		&p.UTMCampaign,
		&p.RedirectURL,
		&p.RedirectDelay,
		&p.Status,
		&p.IsPublished,
		&p.PublishedAt,
		&p.Views,
		&p.Clicks,
		&p.Conversions,
		&p.LastViewAt,
		&p.CustomDomain,
		&p.DomainVerified,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
