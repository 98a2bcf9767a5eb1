// Package publisher streams price change events to Redis for downstream
// consumers.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/use-agent/pricescout/models"
)

// Event field names in each stream entry.
const (
	FieldType    = "type"
	FieldPayload = "payload"
)

// RedisPublisher appends events to one Redis stream with XADD. It implements
// tracker.Notifier.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisPublisher creates a publisher. maxLen caps the stream
// approximately; 0 leaves it unbounded.
func NewRedisPublisher(addr string, db int, stream string, maxLen int64) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	return &RedisPublisher{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

// Ping checks that Redis is reachable.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Notify publishes change as a price.changed entry.
func (p *RedisPublisher) Notify(ctx context.Context, change models.PriceChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("publisher: marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			FieldType:    "price.changed",
			FieldPayload: string(payload),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("publisher: xadd %s: %w", p.stream, err)
	}
	return nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
