package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"stats-service/domain"
	"stats-service/internal/consts"
)

type backend interface {
	FetchTasks(ctx context.Context, userID string) ([]domain.Task, error)
}

// Cache wraps a Storage instance with Redis-backed caching for task reads.
type Cache struct {
	*Storage
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis client
// and TTL. A zero TTL disables read-through population; pushed refreshes are
// stored without expiry.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	c := &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
	if s, ok := base.(*Storage); ok {
		c.Storage = s
	}
	return c
}

func (c *Cache) FetchTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	if tasks, ok := c.loadFromCache(ctx, userID); ok {
		return tasks, nil
	}

	tasks, err := c.base.FetchTasks(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, userID, tasks)
	return tasks, nil
}

// RefreshTasks reloads the user's snapshot from the backing storage and
// replaces the cached entry. Update consumers call it when a task event
// lands so the next statistics flow sees fresh counts.
func (c *Cache) RefreshTasks(ctx context.Context, userID string) error {
	tasks, err := c.base.FetchTasks(ctx, userID)
	if err != nil {
		return err
	}
	if c.redis == nil {
		return nil
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, tasksCacheKey(userID), data, c.ttl).Err()
}

// Evict drops the user's cached snapshot.
func (c *Cache) Evict(ctx context.Context, userID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, tasksCacheKey(userID)).Result()
}

func (c *Cache) loadFromCache(ctx context.Context, userID string) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, tasksCacheKey(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, tasksCacheKey(userID)).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, tasksCacheKey(userID)).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) store(ctx context.Context, userID string, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, tasksCacheKey(userID), data, c.ttl).Err()
}

func tasksCacheKey(userID string) string {
	return consts.TasksKeyPrefix + userID
}
