package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/klbk90/creative-optimizer-sub001/internal/model"
)

// Common errors for traffic source repository operations.
var (
	ErrSourceNotFound = errors.New("traffic source not found")
	ErrUTMIDExists    = errors.New("utm_id already exists")
)

const trafficSourceColumns = `
	ts.id, ts.user_id, ts.utm_source, ts.utm_medium, ts.utm_campaign, ts.utm_content, ts.utm_term,
	ts.utm_id, ts.target_url, ts.link_type, ts.clicks, ts.conversions, ts.revenue,
	ts.first_click, ts.last_click, ts.device_type, ts.browser, ts.os, ts.country, ts.city,
	ts.influencer_handle, ts.influencer_email, ts.influencer_followers, ts.engagement_rate_bp,
	ts.funnel_status, ts.creative_id, ts.landing_page_id, ts.created_at, ts.updated_at`

// SourceFilter defines filters for listing traffic sources.
type SourceFilter struct {
	UserID        string
	UTMSource     string
	UTMCampaign   string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// SourceRef identifies a traffic source for a conversion. Exactly one of
// ID or UTMID is set. UserID scopes the lookup to its owner; it is always
// set with ID and empty for public utm_id lookups.
type SourceRef struct {
	ID     string
	UserID string
	UTMID  string
}

// CreateTrafficSource inserts a new traffic source.
func (r *Repository) CreateTrafficSource(ctx context.Context, src *model.TrafficSource) error {
	return insertTrafficSource(ctx, r.pool, src)
}

func insertTrafficSource(ctx context.Context, db queryer, src *model.TrafficSource) error {
	query := `
		INSERT INTO traffic_sources (
			id, user_id, utm_source, utm_medium, utm_campaign, utm_content, utm_term, utm_id,
			target_url, link_type, clicks, conversions, revenue,
			device_type, browser, os, country, city,
			influencer_handle, influencer_email, influencer_followers, engagement_rate_bp, funnel_status,
			creative_id, landing_page_id, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26, $27)
	`

	infl := src.Influencer
	if infl == nil {
		infl = &model.InfluencerAttribution{}
	}

	_, err := db.Exec(ctx, query,
		src.ID,
		src.UserID,
		src.UTMSource,
		src.UTMMedium,
		src.UTMCampaign,
		src.UTMContent,
		src.UTMTerm,
		src.UTMID,
		src.TargetURL,
		src.LinkType,
		src.Clicks,
		src.Conversions,
		src.Revenue,
		src.DeviceType,
		src.Browser,
		src.OS,
		src.Country,
		src.City,
		infl.Handle,
		infl.Email,
		infl.Followers,
		infl.EngagementRateBP,
		infl.FunnelStatus,
		src.CreativeID,
		src.LandingPageID,
		src.CreatedAt,
		src.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUTMIDExists
		}
		if isForeignKeyViolation(err) {
			return ErrInvalidReference
		}
		return fmt.Errorf("failed to create traffic source: %w", err)
	}
	return nil
}

// GetTrafficSourceByUTMID retrieves a traffic source by its utm_id.
// An empty userID skips the owner check.
func (r *Repository) GetTrafficSourceByUTMID(ctx context.Context, utmID, userID string) (*model.TrafficSource, error) {
	query := `SELECT ` + trafficSourceColumns + ` FROM traffic_sources ts WHERE ts.utm_id = $1 AND ($2 = '' OR ts.user_id = $2)`

	src, err := scanTrafficSource(r.pool.QueryRow(ctx, query, utmID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSourceNotFound
		}
		return nil, fmt.Errorf("failed to get traffic source: %w", err)
	}
	return src, nil
}

// RecordClick increments the click counter of the source identified by
// utmID inside a transaction holding a row lock. The enrichment is applied
// only if the source has never been clicked; later clicks keep the values
// captured on the first one. If the source was minted by a landing page,
// the page's click counter is incremented as well.
func (r *Repository) RecordClick(ctx context.Context, utmID string, at time.Time, enrich *model.ClickEnrichment) (*model.TrafficSource, error) {
	var out *model.TrafficSource

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		src, err := lockTrafficSource(ctx, tx, "ts.utm_id = $1", utmID)
		if err != nil {
			return err
		}

		var row pgx.Row
		if !src.HasFirstClick() && enrich != nil {
			row = tx.QueryRow(ctx, `
				UPDATE traffic_sources ts
				SET clicks = clicks + 1, last_click = $2, first_click = $2,
					device_type = $3, browser = $4, os = $5, country = $6, city = $7,
					updated_at = $2
				WHERE ts.id = $1
				RETURNING `+trafficSourceColumns,
				src.ID, at, enrich.DeviceType, enrich.Browser, enrich.OS, enrich.Country, enrich.City,
			)
		} else {
			row = tx.QueryRow(ctx, `
				UPDATE traffic_sources ts
				SET clicks = clicks + 1, last_click = $2, first_click = COALESCE(first_click, $2),
					updated_at = $2
				WHERE ts.id = $1
				RETURNING `+trafficSourceColumns,
				src.ID, at,
			)
		}

		out, err = scanTrafficSource(row)
		if err != nil {
			return fmt.Errorf("failed to update clicks: %w", err)
		}

		if out.LandingPageID != nil {
			if _, err := tx.Exec(ctx, `UPDATE landing_pages SET clicks = clicks + 1 WHERE id = $1`, *out.LandingPageID); err != nil {
				return fmt.Errorf("failed to update landing clicks: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RecordConversion inserts conv and updates the parent source's conversion
// and revenue counters in one transaction. TrafficSourceID, UTMID and
// TimeToConversion on conv are filled from the locked source row.
func (r *Repository) RecordConversion(ctx context.Context, ref SourceRef, conv *model.Conversion) (*model.TrafficSource, error) {
	var out *model.TrafficSource

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var (
			src *model.TrafficSource
			err error
		)
		switch {
		case ref.UTMID != "" && ref.UserID != "":
			src, err = lockTrafficSource(ctx, tx, "ts.utm_id = $1 AND ts.user_id = $2", ref.UTMID, ref.UserID)
		case ref.UTMID != "":
			src, err = lockTrafficSource(ctx, tx, "ts.utm_id = $1", ref.UTMID)
		default:
			src, err = lockTrafficSource(ctx, tx, "ts.id = $1 AND ts.user_id = $2", ref.ID, ref.UserID)
		}
		if err != nil {
			return err
		}

		conv.TrafficSourceID = src.ID
		conv.UTMID = src.UTMID
		conv.TimeToConversion = model.TimeToConversionSeconds(src.FirstClick, conv.CreatedAt)

		if err := insertConversion(ctx, tx, conv); err != nil {
			return err
		}

		row := tx.QueryRow(ctx, `
			UPDATE traffic_sources ts
			SET conversions = conversions + 1, revenue = revenue + $2, updated_at = $3
			WHERE ts.id = $1
			RETURNING `+trafficSourceColumns,
			src.ID, conv.Amount, conv.CreatedAt,
		)
		out, err = scanTrafficSource(row)
		if err != nil {
			return fmt.Errorf("failed to update conversions: %w", err)
		}

		if out.LandingPageID != nil {
			if _, err := tx.Exec(ctx, `UPDATE landing_pages SET conversions = conversions + 1 WHERE id = $1`, *out.LandingPageID); err != nil {
				return fmt.Errorf("failed to update landing conversions: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// lockTrafficSource selects a single source FOR UPDATE.
func lockTrafficSource(ctx context.Context, tx pgx.Tx, where string, args ...any) (*model.TrafficSource, error) {
	query := `SELECT ` + trafficSourceColumns + ` FROM traffic_sources ts WHERE ` + where + ` FOR UPDATE`

	src, err := scanTrafficSource(tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSourceNotFound
		}
		return nil, fmt.Errorf("failed to lock traffic source: %w", err)
	}
	return src, nil
}

// ListTrafficSources retrieves a paginated list of traffic sources.
func (r *Repository) ListTrafficSources(ctx context.Context, filter SourceFilter, cursor string, limit int) ([]*model.TrafficSource, string, error) {
	var w whereBuilder
	w.add("ts.user_id = $%d", filter.UserID)
	if err := w.cursor("ts.", cursor); err != nil {
		return nil, "", err
	}
	if filter.UTMSource != "" {
		w.add("ts.utm_source = $%d", filter.UTMSource)
	}
	if filter.UTMCampaign != "" {
		w.add("ts.utm_campaign = $%d", filter.UTMCampaign)
	}
	if filter.CreatedAfter != nil {
		w.add("ts.created_at >= $%d", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		w.add("ts.created_at <= $%d", *filter.CreatedBefore)
	}

	query := `SELECT ` + trafficSourceColumns + ` FROM traffic_sources ts` + w.sql() +
		` ORDER BY ts.created_at DESC, ts.id DESC` + w.limit(limit)

	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list traffic sources: %w", err)
	}
	defer rows.Close()

	var sources []*model.TrafficSource
	for rows.Next() {
		src, err := scanTrafficSource(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan traffic source: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("error iterating traffic sources: %w", err)
	}

	sources, next := page(sources, limit, func(s *model.TrafficSource) PaginationCursor {
		return PaginationCursor{ID: s.ID, CreatedAt: s.CreatedAt}
	})
	return sources, next, nil
}

func scanTrafficSource(row scanner) (*model.TrafficSource, error) {
	var (
		src  model.TrafficSource
		infl model.InfluencerAttribution
	)

	err := row.Scan(
		&src.ID,
		&src.UserID,
		&src.UTMSource,
		&src.UTMMedium,
		&src.UTMCampaign,
		&src.UTMContent,
		&src.UTMTerm,
		&src.UTMID,
		&src.TargetURL,
		&src.LinkType,
		&src.Clicks,
		&src.Conversions,
		&src.Revenue,
		&src.FirstClick,
		&src.LastClick,
		&src.DeviceType,
		&src.Browser,
		&src.OS,
		&src.Country,
		&src.City,
		&infl.Handle,
		&infl.Email,
		&infl.Followers,
		&infl.EngagementRateBP,
		&infl.FunnelStatus,
		&src.CreativeID,
		&src.LandingPageID,
		&src.CreatedAt,
		&src.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if infl != (model.InfluencerAttribution{}) {
		src.Influencer = &infl
	}
	return &src, nil
}
