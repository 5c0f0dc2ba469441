package subscription

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"stats-service/internal/consts"
)

// RedisDeduper records processed update events in Redis so all instances
// skip replayed notifications.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(userID, eventID string) string {
	return consts.SeenKeyPrefix + userID + ":" + eventID
}

// Seen records the event and reports whether it was already processed.
func (r *RedisDeduper) Seen(ctx context.Context, userID, eventID string) (bool, error) {
	added, err := r.client.SetNX(ctx, r.key(userID, eventID), 1, r.ttl).Result()
	if err != nil {
		return false, err
	}
	return !added, nil
}

// Forget drops a recorded event so a failed refresh can be retried.
func (r *RedisDeduper) Forget(ctx context.Context, userID, eventID string) error {
	return r.client.Del(ctx, r.key(userID, eventID)).Err()
}
