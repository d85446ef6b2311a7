package dto

import "github.com/klbk90/creative-optimizer-sub001/internal/model"

// CreateCreativeRequest is the body of POST /creatives.
type CreateCreativeRequest struct {
	Name         string `json:"name"`
	CreativeType string `json:"creative_type"`
	MediaURL     string `json:"media_url,omitempty"`
	Hook         string `json:"hook,omitempty"`
	Angle        string `json:"angle,omitempty"`
}

// CreateInfluencerRequest is the body of POST /influencers.
type CreateInfluencerRequest struct {
	Handle         string  `json:"handle"`
	Platform       string  `json:"platform"`
	Email          string  `json:"email,omitempty"`
	Followers      int64   `json:"followers,omitempty"`
	EngagementRate float64 `json:"engagement_rate,omitempty"`
	FunnelStatus   string  `json:"funnel_status,omitempty"`
}

// UpdateFunnelStatusRequest is the body of PATCH /influencers/{id}/status.
type UpdateFunnelStatusRequest struct {
	FunnelStatus string `json:"funnel_status"`
}

// InfluencerResponse exposes the engagement rate as a percentage next to
// its stored basis points.
type InfluencerResponse struct {
	*model.Influencer
	EngagementRate float64 `json:"engagement_rate"`
}

// ToInfluencerResponse converts an influencer for output.
func ToInfluencerResponse(inf *model.Influencer) InfluencerResponse {
	return InfluencerResponse{
		Influencer:     inf,
		EngagementRate: model.BasisPointsToPercent(inf.EngagementRateBP),
	}
}

// ToInfluencerResponses converts a page of influencers.
func ToInfluencerResponses(infs []*model.Influencer) []InfluencerResponse {
	out := make([]InfluencerResponse, len(infs))
	for i, inf := range infs {
		out[i] = ToInfluencerResponse(inf)
	}
	return out
}
