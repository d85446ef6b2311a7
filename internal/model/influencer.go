package model

import (
	"math"
	"slices"
	"time"
)

// Funnel statuses for influencer outreach.
const (
	FunnelProspect    = "prospect"
	FunnelContacted   = "contacted"
	FunnelNegotiating = "negotiating"
	FunnelActive      = "active"
	FunnelChurned     = "churned"
)

// ValidFunnelStatuses lists the accepted funnel statuses.
var ValidFunnelStatuses = []string{
	FunnelProspect,
	FunnelContacted,
	FunnelNegotiating,
	FunnelActive,
	FunnelChurned,
}

// IsValidFunnelStatus checks a funnel status value.
func IsValidFunnelStatus(s string) bool {
	return slices.Contains(ValidFunnelStatuses, s)
}

// Influencer is a creator that campaigns can be attributed to.
type Influencer struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Handle           string    `json:"handle"`
	Platform         string    `json:"platform"`
	Email            string    `json:"email,omitempty"`
	Followers        int64     `json:"followers"`
	EngagementRateBP int       `json:"engagement_rate_bp"`
	FunnelStatus     string    `json:"funnel_status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PercentToBasisPoints converts a percentage (3.45) into basis points (345).
func PercentToBasisPoints(percent float64) int {
	return int(math.Round(percent * 100))
}

// BasisPointsToPercent converts basis points back to a percentage.
func BasisPointsToPercent(bp int) float64 {
	return float64(bp) / 100
}
