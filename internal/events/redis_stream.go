package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/klbk90/creative-optimizer-sub001/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultStreamKey is the Redis stream that receives attribution events.
	DefaultStreamKey = "stream:attribution_events"
	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000
)

// StreamPublisher appends events to a capped Redis stream. Used when no
// Kafka cluster is available.
type StreamPublisher struct {
	client *redis.Client
	stream string
}

// NewStreamPublisher creates a publisher for stream (DefaultStreamKey when empty).
func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	if stream == "" {
		stream = DefaultStreamKey
	}
	return &StreamPublisher{client: client, stream: stream}
}

// Publish adds the event to the stream.
func (p *StreamPublisher) Publish(ctx context.Context, event model.AttributionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]any{
			"type":    string(event.EventType),
			"payload": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}
	return nil
}

// Close is a no-op; the Redis client is owned by the cache.
func (p *StreamPublisher) Close() error { return nil }
