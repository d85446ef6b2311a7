package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/klbk90/creative-optimizer-sub001/internal/model"
)

const conversionColumns = `
	c.id, c.traffic_source_id, c.utm_id, c.conversion_type, c.customer_id, c.amount, c.currency,
	c.product_id, c.product_name, c.time_to_conversion, c.metadata, c.created_at`

// ConversionFilter defines filters for listing conversions. Conversions are
// scoped to the owner of their traffic source.
type ConversionFilter struct {
	UserID          string
	TrafficSourceID string
	UTMID           string
	UTMSource       string
	UTMCampaign     string
	ConversionType  string
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
}

func insertConversion(ctx context.Context, db queryer, conv *model.Conversion) error {
	query := `
		INSERT INTO conversions (
			id, traffic_source_id, utm_id, conversion_type, customer_id, amount, currency,
			product_id, product_name, time_to_conversion, metadata, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	metadata := conv.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	_, err := db.Exec(ctx, query,
		conv.ID,
		conv.TrafficSourceID,
		conv.UTMID,
		conv.ConversionType,
		conv.CustomerID,
		conv.Amount,
		conv.Currency,
		conv.ProductID,
		conv.ProductName,
		conv.TimeToConversion,
		metadata,
		conv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create conversion: %w", err)
	}
	return nil
}

// ListConversions retrieves a paginated list of conversions.
func (r *Repository) ListConversions(ctx context.Context, filter ConversionFilter, cursor string, limit int) ([]*model.Conversion, string, error) {
	var w whereBuilder
	w.add("ts.user_id = $%d", filter.UserID)
	if err := w.cursor("c.", cursor); err != nil {
		return nil, "", err
	}
	if filter.TrafficSourceID != "" {
		w.add("c.traffic_source_id = $%d", filter.TrafficSourceID)
	}
	if filter.UTMID != "" {
		w.add("c.utm_id = $%d", filter.UTMID)
	}
	if filter.UTMSource != "" {
		w.add("ts.utm_source = $%d", filter.UTMSource)
	}
	if filter.UTMCampaign != "" {
		w.add("ts.utm_campaign = $%d", filter.UTMCampaign)
	}
	if filter.ConversionType != "" {
		w.add("c.conversion_type = $%d", filter.ConversionType)
	}
	if filter.CreatedAfter != nil {
		w.add("c.created_at >= $%d", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		w.add("c.created_at <= $%d", *filter.CreatedBefore)
	}

	query := `SELECT ` + conversionColumns + `
		FROM conversions c
		JOIN traffic_sources ts ON ts.id = c.traffic_source_id` + w.sql() +
		` ORDER BY c.created_at DESC, c.id DESC` + w.limit(limit)

	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list conversions: %w", err)
	}
	defer rows.Close()

	var conversions []*model.Conversion
	for rows.Next() {
		conv, err := scanConversion(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan conversion: %w", err)
		}
		conversions = append(conversions, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("error iterating conversions: %w", err)
	}

	conversions, next := page(conversions, limit, func(c *model.Conversion) PaginationCursor {
		return PaginationCursor{ID: c.ID, CreatedAt: c.CreatedAt}
	})
	return conversions, next, nil
}

// GetConversionSummary aggregates the conversions of one traffic source.
func (r *Repository) GetConversionSummary(ctx context.Context, trafficSourceID string) (*model.ConversionSummary, error) {
	summary := &model.ConversionSummary{ByType: map[string]int64{}}

	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(amount), 0), ROUND(AVG(time_to_conversion))::BIGINT
		FROM conversions
		WHERE traffic_source_id = $1
	`, trafficSourceID).Scan(&summary.Count, &summary.Revenue, &summary.AvgTimeToConversion)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize conversions: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT conversion_type, COUNT(*)
		FROM conversions
		WHERE traffic_source_id = $1
		GROUP BY conversion_type
	`, trafficSourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to group conversions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			convType string
			count    int64
		)
		if err := rows.Scan(&convType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan conversion group: %w", err)
		}
		summary.ByType[convType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversion groups: %w", err)
	}

	return summary, nil
}

func scanConversion(row scanner) (*model.Conversion, error) {
	var conv model.Conversion
	err := row.Scan(
		&conv.ID,
		&conv.TrafficSourceID,
		&conv.UTMID,
		&conv.ConversionType,
		&conv.CustomerID,
		&conv.Amount,
		&conv.Currency,
		&conv.ProductID,
		&conv.ProductName,
		&conv.TimeToConversion,
		&conv.Metadata,
		&conv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}
