// Package events publishes attribution events (clicks, conversions, landing
// views) to an external stream for downstream consumers.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/klbk90/creative-optimizer-sub001/internal/metrics"
	"github.com/klbk90/creative-optimizer-sub001/internal/model"
)

const (
	// DefaultPublishTimeout bounds a single background publish.
	DefaultPublishTimeout = 2 * time.Second
	// DefaultMaxInFlight bounds concurrent background publishes.
	DefaultMaxInFlight = 256
)

// Publisher delivers one event synchronously.
type Publisher interface {
	Publish(ctx context.Context, event model.AttributionEvent) error
	Close() error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, model.AttributionEvent) error { return nil }
func (Noop) Close() error                                          { return nil }

// Dispatcher publishes events in the background. Failures are logged and
// counted; they never reach the caller. At most maxInFlight publishes run
// at once and events beyond that are dropped.
type Dispatcher struct {
	publisher Publisher
	timeout   time.Duration
	sem       chan struct{}
	logger    *slog.Logger
	metrics   metrics.Recorder
	wg        sync.WaitGroup
}

// NewDispatcher wraps publisher. A nil publisher drops everything.
// Non-positive timeout and maxInFlight fall back to the defaults.
func NewDispatcher(publisher Publisher, timeout time.Duration, maxInFlight int, logger *slog.Logger, recorder metrics.Recorder) *Dispatcher {
	if publisher == nil {
		publisher = Noop{}
	}
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Dispatcher{
		publisher: publisher,
		timeout:   timeout,
		sem:       make(chan struct{}, maxInFlight),
		logger:    logger.With("component", "events"),
		metrics:   recorder,
	}
}

// Dispatch publishes event without blocking the caller. When the
// in-flight limit is reached the event is dropped.
func (d *Dispatcher) Dispatch(event model.AttributionEvent) {
	select {
	case d.sem <- struct{}{}:
	default:
		d.logger.Warn("event dropped, too many publishes in flight",
			"event_type", event.EventType,
			"utm_id", event.UTMID,
			"max_in_flight", cap(d.sem),
		)
		d.metrics.IncEventPublished(string(event.EventType), "dropped")
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() { <-d.sem }()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.publisher.Publish(ctx, event); err != nil {
			d.logger.Warn("failed to publish event",
				"event_type", event.EventType,
				"utm_id", event.UTMID,
				"error", err,
			)
			d.metrics.IncEventPublished(string(event.EventType), "dropped")
			return
		}
		d.metrics.IncEventPublished(string(event.EventType), "success")
	}()
}

// Close waits for in-flight publishes, then closes the publisher.
func (d *Dispatcher) Close() error {
	d.wg.Wait()
	return d.publisher.Close()
}
