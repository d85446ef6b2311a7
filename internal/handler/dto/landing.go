package dto

// CreateLandingRequest is the body of POST /landings/create.
type CreateLandingRequest struct {
	Name          string         `json:"name"`
	Template      string         `json:"template"`
	Config        map[string]any `json:"config,omitempty"`
	UTMSource     string         `json:"utm_source"`
	UTMMedium     string         `json:"utm_medium"`
	UTMCampaign   string         `json:"utm_campaign,omitempty"`
	RedirectURL   string         `json:"redirect_url,omitempty"`
	RedirectDelay int            `json:"redirect_delay,omitempty"`
}

// UpdateLandingRequest is the body of PUT /landings/{id}. Absent fields
// are left unchanged; a present config replaces the stored one.
type UpdateLandingRequest struct {
	Name          *string        `json:"name,omitempty"`
	Template      *string        `json:"template,omitempty"`
	Config        map[string]any `json:"config,omitempty"`
	UTMSource     *string        `json:"utm_source,omitempty"`
	UTMMedium     *string        `json:"utm_medium,omitempty"`
	UTMCampaign   *string        `json:"utm_campaign,omitempty"`
	RedirectURL   *string        `json:"redirect_url,omitempty"`
	RedirectDelay *int           `json:"redirect_delay,omitempty"`
}

// DeployLandingRequest is the body of POST /landings/deploy.
type DeployLandingRequest struct {
	LandingPageID string `json:"landing_page_id"`
	CustomDomain  string `json:"custom_domain"`
}

// SetStatusRequest is the body of status transitions.
type SetStatusRequest struct {
	Status string `json:"status"`
}
