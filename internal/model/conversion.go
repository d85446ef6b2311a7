package model

import (
	"strings"
	"time"
)

// DefaultCurrency is used when a conversion is reported without a currency.
const DefaultCurrency = "USD"

// Common conversion types. Callers may send others; these are not enforced.
const (
	ConversionTypePurchase     = "purchase"
	ConversionTypeSignup       = "signup"
	ConversionTypeSubscription = "subscription"
)

// Conversion is one attributed purchase or goal event. Immutable once stored.
type Conversion struct {
	ID              string `json:"id"`
	TrafficSourceID string `json:"traffic_source_id"`
	UTMID           string `json:"utm_id"`

	ConversionType string `json:"conversion_type"`
	CustomerID     string `json:"customer_id,omitempty"`

	// Amount in minor currency units.
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`

	ProductID   string `json:"product_id,omitempty"`
	ProductName string `json:"product_name,omitempty"`

	// TimeToConversion is nil when the source never received a tracked click.
	TimeToConversion *int64 `json:"time_to_conversion,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NormalizeCurrency upper-cases a currency code and applies the default.
func NormalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency
	}
	return code
}

// TimeToConversionSeconds computes seconds from first click to conversion.
// Returns nil when there was no first click.
func TimeToConversionSeconds(firstClick *time.Time, convertedAt time.Time) *int64 {
	if firstClick == nil {
		return nil
	}
	secs := int64(convertedAt.Sub(*firstClick).Seconds())
	return &secs
}

// ConversionSummary aggregates conversions for a single traffic source.
type ConversionSummary struct {
	Count               int64            `json:"count"`
	Revenue             int64            `json:"revenue"`
	ByType              map[string]int64 `json:"by_type,omitempty"`
	AvgTimeToConversion *int64           `json:"avg_time_to_conversion,omitempty"`
}
