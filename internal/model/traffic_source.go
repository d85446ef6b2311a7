package model

import "time"

// LinkType controls how a generated tracking link is shaped.
type LinkType string

const (
	// LinkTypeLanding routes the visitor through our redirect endpoint; UTM
	// parameters are resolved server-side at click time.
	LinkTypeLanding LinkType = "landing"
	// LinkTypeDirect points straight at the destination with UTM parameters
	// (or a bot start parameter) appended.
	LinkTypeDirect LinkType = "direct"
)

// IsValid checks if the link type is one of the recognized values.
func (t LinkType) IsValid() bool {
	return t == LinkTypeLanding || t == LinkTypeDirect
}

// Device classes captured on first click.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

// TrafficSource is one generated tracking link and its accumulated stats.
type TrafficSource struct {
	ID     string `json:"id"`
	UserID string `json:"user_id,omitempty"`

	UTMSource   string `json:"utm_source"`
	UTMMedium   string `json:"utm_medium"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
	UTMContent  string `json:"utm_content,omitempty"`
	UTMTerm     string `json:"utm_term,omitempty"`
	UTMID       string `json:"utm_id"`

	TargetURL string   `json:"target_url,omitempty"`
	LinkType  LinkType `json:"link_type"`

	// Counters. Revenue is kept in minor currency units.
	Clicks      int64 `json:"clicks"`
	Conversions int64 `json:"conversions"`
	Revenue     int64 `json:"revenue"`

	FirstClick *time.Time `json:"first_click,omitempty"`
	LastClick  *time.Time `json:"last_click,omitempty"`

	// First-click enrichment
	DeviceType string `json:"device_type,omitempty"`
	Browser    string `json:"browser,omitempty"`
	OS         string `json:"os,omitempty"`
	Country    string `json:"country,omitempty"`
	City       string `json:"city,omitempty"`

	Influencer *InfluencerAttribution `json:"influencer,omitempty"`

	CreativeID    *string `json:"creative_id,omitempty"`
	LandingPageID *string `json:"landing_page_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InfluencerAttribution holds the free-form influencer fields carried by a
// source that represents an influencer campaign.
type InfluencerAttribution struct {
	Handle           string `json:"handle,omitempty"`
	Email            string `json:"email,omitempty"`
	Followers        int64  `json:"followers,omitempty"`
	EngagementRateBP int    `json:"engagement_rate_bp,omitempty"`
	FunnelStatus     string `json:"funnel_status,omitempty"`
}

// HasFirstClick reports whether a tracked click has already been recorded.
func (s *TrafficSource) HasFirstClick() bool {
	return s.FirstClick != nil
}

// ConversionRate returns conversions per click in [0, +inf).
// Conversions may be attributed without clicks, so the ratio can exceed 1.
func (s *TrafficSource) ConversionRate() float64 {
	if s.Clicks == 0 {
		return 0
	}
	return float64(s.Conversions) / float64(s.Clicks)
}

// AverageOrderValue returns revenue per conversion in minor units.
func (s *TrafficSource) AverageOrderValue() int64 {
	if s.Conversions == 0 {
		return 0
	}
	return s.Revenue / s.Conversions
}

// ClickEnrichment is the classification captured on the first click only.
type ClickEnrichment struct {
	DeviceType string
	Browser    string
	OS         string
	Country    string
	City       string
}
