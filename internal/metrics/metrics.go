// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures attribution metric events.
type Recorder interface {
	// Link generation and tracking
	IncLinkGenerated(linkType string)
	IncClickTracked(result string)        // "first", "repeat", "not_found"
	IncConversionRecorded(channel string) // "api" or "webhook"
	AddRevenue(currency string, minorUnits int64)
	IncLandingView(template string)

	// Event stream
	IncEventPublished(eventType, status string) // status: "success" or "dropped"

	// HTTP
	ObserveHTTPRequest(method, route string, status int, duration time.Duration)
}

// Click results.
const (
	ClickFirst    = "first"
	ClickRepeat   = "repeat"
	ClickNotFound = "not_found"
)

// Conversion channels.
const (
	ChannelAPI     = "api"
	ChannelWebhook = "webhook"
)
