package dto

import (
	"github.com/klbk90/creative-optimizer-sub001/internal/model"
)

// GenerateLinkRequest is the body of POST /utm/generate.
type GenerateLinkRequest struct {
	Source     string             `json:"source"`
	Medium     string             `json:"medium"`
	Campaign   string             `json:"campaign,omitempty"`
	Content    string             `json:"content,omitempty"`
	Term       string             `json:"term,omitempty"`
	BaseURL    string             `json:"base_url,omitempty"`
	LinkType   string             `json:"link_type"`
	CreativeID string             `json:"creative_id,omitempty"`
	Influencer *InfluencerRequest `json:"influencer,omitempty"`
}

// InfluencerRequest attaches influencer details to a generated link.
// EngagementRate is a percentage, stored in basis points.
type InfluencerRequest struct {
	Handle         string  `json:"handle"`
	Email          string  `json:"email,omitempty"`
	Followers      int64   `json:"followers,omitempty"`
	EngagementRate float64 `json:"engagement_rate,omitempty"`
	FunnelStatus   string  `json:"funnel_status,omitempty"`
}

// ToModel converts the request to the stored attribution block.
func (r *InfluencerRequest) ToModel() *model.InfluencerAttribution {
	if r == nil {
		return nil
	}
	return &model.InfluencerAttribution{
		Handle:           r.Handle,
		Email:            r.Email,
		Followers:        r.Followers,
		EngagementRateBP: model.PercentToBasisPoints(r.EngagementRate),
		FunnelStatus:     r.FunnelStatus,
	}
}

// GenerateLinkResponse is returned by POST /utm/generate.
type GenerateLinkResponse struct {
	Success         bool   `json:"success"`
	UTMLink         string `json:"utm_link"`
	UTMID           string `json:"utm_id"`
	LinkType        string `json:"link_type"`
	TrafficSourceID string `json:"traffic_source_id"`
}

// TrackClickRequest is the body of POST /utm/track/click.
type TrackClickRequest struct {
	UTMID       string `json:"utm_id"`
	LandingPage string `json:"landing_page,omitempty"`
	Referrer    string `json:"referrer,omitempty"`
}

// TrackClickResponse is returned by POST /utm/track/click.
type TrackClickResponse struct {
	Success    bool   `json:"success"`
	TrackingID string `json:"tracking_id"`
	Message    string `json:"message"`
}

// ConversionRequest is the body of both conversion endpoints. Amount is in
// minor currency units.
type ConversionRequest struct {
	TrafficSourceID string         `json:"traffic_source_id,omitempty"`
	UTMID           string         `json:"utm_id,omitempty"`
	ConversionType  string         `json:"conversion_type"`
	Amount          int64          `json:"amount"`
	Currency        string         `json:"currency,omitempty"`
	ProductID       string         `json:"product_id,omitempty"`
	ProductName     string         `json:"product_name,omitempty"`
	CustomerID      string         `json:"customer_id,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// SourceResponse is a traffic source with derived metrics.
type SourceResponse struct {
	*model.TrafficSource
	ConversionRate    float64 `json:"conversion_rate"`
	AverageOrderValue int64   `json:"average_order_value"`
}

// ToSourceResponse adds derived metrics to a traffic source.
func ToSourceResponse(src *model.TrafficSource) SourceResponse {
	return SourceResponse{
		TrafficSource:     src,
		ConversionRate:    src.ConversionRate(),
		AverageOrderValue: src.AverageOrderValue(),
	}
}

// ToSourceResponses converts a page of sources.
func ToSourceResponses(sources []*model.TrafficSource) []SourceResponse {
	out := make([]SourceResponse, len(sources))
	for i, s := range sources {
		out[i] = ToSourceResponse(s)
	}
	return out
}

// SourceDetailResponse is returned by GET /utm/sources/{utm_id}.
type SourceDetailResponse struct {
	Source            SourceResponse           `json:"source"`
	Summary           *model.ConversionSummary `json:"summary"`
	RecentConversions []*model.Conversion      `json:"recent_conversions"`
}
