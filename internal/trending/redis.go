package trending

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces trending keys so the counter can share a Redis
// instance with other consumers.
const keyPrefix = "trending:"

// retentionSlack keeps sorted-set members slightly past the longest
// expected window so a late Count still sees them.
const retentionSlack = time.Hour

// RedisCounter is a Counter backed by a Redis sorted set per item. Each
// engagement is a uniquely named member scored by its unix timestamp, so
// Count is a range prune plus a cardinality read.
type RedisCounter struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisCounter creates a counter on the given client. retention bounds
// how long members are kept; it should be at least the largest window the
// ranking pipeline queries.
func NewRedisCounter(client *redis.Client, retention time.Duration) *RedisCounter {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &RedisCounter{
		client:    client,
		retention: retention,
	}
}

// Record adds a member scored at now and refreshes the key TTL.
func (c *RedisCounter) Record(ctx context.Context, itemID string, now time.Time) error {
	key := keyPrefix + itemID
	pipe := c.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.Unix()),
		Member: uuid.NewString(),
	})
	pipe.Expire(ctx, key, c.retention+retentionSlack)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record engagement for %s: %w", itemID, err)
	}
	return nil
}

// Count prunes members older than the window and returns the remaining
// cardinality.
func (c *RedisCounter) Count(ctx context.Context, itemID string, window time.Duration) (int, error) {
	key := keyPrefix + itemID
	cutoff := time.Now().Add(-window).Unix()

	pipe := c.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	card := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("count engagements for %s: %w", itemID, err)
	}
	return int(card.Val()), nil
}
