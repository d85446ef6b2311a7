package model

import "time"

// CreativeType is the media format of an ad creative.
type CreativeType string

const (
	CreativeVideo    CreativeType = "video"
	CreativeImage    CreativeType = "image"
	CreativeCarousel CreativeType = "carousel"
	CreativeText     CreativeType = "text"
)

// IsValid checks if the creative type is known.
func (t CreativeType) IsValid() bool {
	switch t {
	case CreativeVideo, CreativeImage, CreativeCarousel, CreativeText:
		return true
	}
	return false
}

// Creative status values.
const (
	CreativeStatusActive   = "active"
	CreativeStatusArchived = "archived"
)

// Creative is ad creative metadata that traffic sources can reference.
type Creative struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	Name         string       `json:"name"`
	CreativeType CreativeType `json:"creative_type"`
	MediaURL     string       `json:"media_url,omitempty"`
	Hook         string       `json:"hook,omitempty"`
	Angle        string       `json:"angle,omitempty"`
	Status       string       `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
