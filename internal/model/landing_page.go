package model

import (
	"slices"
	"time"
)

// LandingTemplate identifies one of the built-in landing page templates.
type LandingTemplate string

const (
	TemplateProductShowcase LandingTemplate = "product_showcase"
	TemplateLeadCapture     LandingTemplate = "lead_capture"
	TemplateAppDownload     LandingTemplate = "app_download"
	TemplateInfluencerBio   LandingTemplate = "influencer_bio"
	TemplateCountdownOffer  LandingTemplate = "countdown_offer"
)

// ValidTemplates contains all renderable templates.
var ValidTemplates = []LandingTemplate{
	TemplateProductShowcase,
	TemplateLeadCapture,
	TemplateAppDownload,
	TemplateInfluencerBio,
	TemplateCountdownOffer,
}

// IsValid checks if the template is one of the built-in set.
func (t LandingTemplate) IsValid() bool {
	return slices.Contains(ValidTemplates, t)
}

// LandingStatus represents the publication status of a landing page.
type LandingStatus string

const (
	LandingStatusDraft    LandingStatus = "draft"
	LandingStatusActive   LandingStatus = "active"
	LandingStatusPaused   LandingStatus = "paused"
	LandingStatusArchived LandingStatus = "archived"
)

// IsValid checks if the status is known.
func (s LandingStatus) IsValid() bool {
	switch s {
	case LandingStatusDraft, LandingStatusActive, LandingStatusPaused, LandingStatusArchived:
		return true
	}
	return false
}

// LandingPage is a templated page bound to a UTM campaign.
type LandingPage struct {
	ID       string          `json:"id"`
	UserID   string          `json:"user_id"`
	Name     string          `json:"name"`
	Template LandingTemplate `json:"template"`
	Slug     string          `json:"slug"`
	Config   map[string]any  `json:"config"`

	UTMSource   string `json:"utm_source"`
	UTMMedium   string `json:"utm_medium"`
	UTMCampaign string `json:"utm_campaign,omitempty"`

	// RedirectURL may contain the {utm_id} placeholder.
	RedirectURL   string `json:"redirect_url,omitempty"`
	RedirectDelay int    `json:"redirect_delay"`

	Status      LandingStatus `json:"status"`
	IsPublished bool          `json:"is_published"`
	PublishedAt *time.Time    `json:"published_at,omitempty"`

	Views       int64      `json:"views"`
	Clicks      int64      `json:"clicks"`
	Conversions int64      `json:"conversions"`
	LastViewAt  *time.Time `json:"last_view_at,omitempty"`

	CustomDomain   string `json:"custom_domain,omitempty"`
	DomainVerified bool   `json:"domain_verified"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive returns true if the page may be rendered publicly.
func (p *LandingPage) IsActive() bool {
	return p.Status == LandingStatusActive
}

// ApplyStatus moves the page to a new status. Activating publishes the page
// the first time; later transitions keep the original published_at.
func (p *LandingPage) ApplyStatus(status LandingStatus, now time.Time) {
	p.Status = status
	if status == LandingStatusActive {
		p.IsPublished = true
		if p.PublishedAt == nil {
			t := now
			p.PublishedAt = &t
		}
	}
	p.UpdatedAt = now
}

// ConfigString returns a string value from the page config, or fallback.
func (p *LandingPage) ConfigString(key, fallback string) string {
	if v, ok := p.Config[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
