package resilience

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/insights/internal/upstream"
)

const (
	DefaultCacheTTL    = 10 * time.Minute
	defaultCachePrefix = "insights:report:"
)

// Cache stores successful report responses by cache key.
type Cache interface {
	Get(ctx context.Context, key string) (*upstream.ReportResponse, bool, error)
	Set(ctx context.Context, key string, resp *upstream.ReportResponse) error
}

// RedisCache is a Cache backed by Redis string keys with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache returns a cache writing entries that expire after ttl.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl, prefix: defaultCachePrefix}
}

// Get returns the cached response, or false on a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (*upstream.ReportResponse, bool, error) {
	raw, err := c.client.Get(ctx, c.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var resp upstream.ReportResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false, fmt.Errorf("cache decode: %w", err)
	}
	return &resp, true, nil
}

// Set stores resp under key.
func (c *RedisCache) Set(ctx context.Context, key string, resp *upstream.ReportResponse) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, c.redisKey(key), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Keys can embed whole request bodies, so they are hashed.
func (c *RedisCache) redisKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return c.prefix + hex.EncodeToString(sum[:])
}
