package model

import "time"

// EventType names attribution events published to the event stream.
type EventType string

const (
	EventTypeClick      EventType = "click"
	EventTypeConversion EventType = "conversion"
	EventTypePageView   EventType = "page_view"
)

// AttributionEvent is the payload published for downstream consumers.
type AttributionEvent struct {
	EventType       EventType      `json:"event_type"`
	EventID         string         `json:"event_id"`
	UTMID           string         `json:"utm_id"`
	TrafficSourceID string         `json:"traffic_source_id"`
	OccurredAt      time.Time      `json:"occurred_at"`
	Data            map[string]any `json:"data,omitempty"`
}
