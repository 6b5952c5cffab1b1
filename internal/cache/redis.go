// Package cache provides an optional Redis cache for the hot no-watermark
// fetch path.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chatrelay/api/internal/store"
	"github.com/redis/go-redis/v9"
)

// RecentCache keeps the "latest messages" page per channel. Entries are
// written with a short TTL and dropped on every insert to the channel, so
// polling clients with no watermark stop hitting Postgres between posts.
type RecentCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// DefaultTTL bounds staleness when an invalidation is lost.
const DefaultTTL = 30 * time.Second

// NewRecentCache connects to Redis via URL. A non-positive ttl falls back
// to DefaultTTL.
func NewRecentCache(redisURL string, ttl time.Duration) (*RecentCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRecentCacheWithClient(client, ttl), nil
}

// NewRecentCacheWithClient wraps an existing Redis client.
func NewRecentCacheWithClient(client *redis.Client, ttl time.Duration) *RecentCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RecentCache{
		client: client,
		prefix: "recent:",
		ttl:    ttl,
	}
}

func (c *RecentCache) key(channel string) string {
	return c.prefix + channel
}

// GetLatest returns the cached page for a channel, or ok=false on a miss or
// any Redis error. The cache never fails a fetch.
func (c *RecentCache) GetLatest(ctx context.Context, channel string) ([]store.Message, bool) {
	raw, err := c.client.Get(ctx, c.key(channel)).Result()
	if err != nil {
		return nil, false
	}

	var messages []store.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, false
	}
	return messages, true
}

// SetLatest stores the page for a channel with the cache TTL.
func (c *RecentCache) SetLatest(ctx context.Context, channel string, messages []store.Message) error {
	raw, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal cached messages: %w", err)
	}
	if err := c.client.Set(ctx, c.key(channel), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached messages: %w", err)
	}
	return nil
}

// Invalidate drops the cached page for a channel.
func (c *RecentCache) Invalidate(ctx context.Context, channel string) error {
	if err := c.client.Del(ctx, c.key(channel)).Err(); err != nil {
		return fmt.Errorf("invalidate cached messages: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RecentCache) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable.
func (c *RecentCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
