package billing

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers successfully processed webhook event IDs so redelivered
// events can be acknowledged without side effects. Dedup is an optimization:
// the profile upsert is the real idempotency guarantee, so a deduper failure
// is logged and processing continues.
type Deduper interface {
	// Seen reports whether the event ID was already processed. It must not
	// record the ID: a delivery that later fails has to stay retryable.
	Seen(ctx context.Context, eventID string) (bool, error)
	// Mark records the event ID as processed. Called only after the
	// delivery ran to completion.
	Mark(ctx context.Context, eventID string) error
}

const dedupKeyPrefix = "billing:webhook:event:"

// RedisDeduper implements Deduper with a TTL matching the sender's
// redelivery window.
type RedisDeduper struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisDeduper creates a Redis-backed event deduper. A non-positive TTL
// defaults to 24 hours, which covers Stripe's automatic retry schedule.
func NewRedisDeduper(client redis.UniversalClient, ttl time.Duration) *RedisDeduper {
	if client == nil {
		panic("billing: redis client is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, dedupKeyPrefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisDeduper) Mark(ctx context.Context, eventID string) error {
	return d.client.Set(ctx, dedupKeyPrefix+eventID, 1, d.ttl).Err()
}

// NoopDeduper never reports duplicates. Used in tests and single-delivery
// development setups.
type NoopDeduper struct{}

func (NoopDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	return false, nil
}

func (NoopDeduper) Mark(ctx context.Context, eventID string) error {
	return nil
}
