// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/klbk90/creative-optimizer-sub001/internal/model"
	"github.com/klbk90/creative-optimizer-sub001/internal/tracing"
)

// Errors shared by all services.
var (
	ErrInvalidCursor = errors.New("invalid pagination cursor")
	ErrInvalidURL    = errors.New("invalid URL")
	ErrURLTooLong    = errors.New("URL too long")
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	maxURLLength     = 2048

	// maxUTMIDAttempts bounds regeneration when a minted utm_id collides.
	maxUTMIDAttempts = 3
)

// Page is one page of a cursor-paginated listing.
type Page[T any] struct {
	Items      []T
	NextCursor string
	HasMore    bool
}

func newPage[T any](items []T, next string) *Page[T] {
	return &Page[T]{Items: items, NextCursor: next, HasMore: next != ""}
}

// EventSink receives attribution events for background delivery.
type EventSink interface {
	Dispatch(event model.AttributionEvent)
}

type noopSink struct{}

func (noopSink) Dispatch(model.AttributionEvent) {}

// RequestMeta carries the visitor context of a public request.
type RequestMeta struct {
	IP        string
	UserAgent string
	Referrer  string
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxPageLimit {
		return defaultPageLimit
	}
	return limit
}

func newID() string {
	return ulid.Make().String()
}

// utcNow truncates to microseconds so values round-trip through Postgres.
func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// validateURL accepts absolute http(s) URLs with a host.
func validateURL(raw string) error {
	if len(raw) > maxURLLength {
		return ErrURLTooLong
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidURL
	}
	if parsed.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracing.Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
