package archive

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// PathCache remembers recently persisted artifact paths so LookupCached can
// skip a filesystem stat on hot reports. Every operation is best-effort: a
// cache outage degrades to disk lookups, never to an error.
type PathCache interface {
	Put(ctx context.Context, path string)
	Has(ctx context.Context, path string) bool
	Forget(ctx context.Context, path string)
}

const pathCachePrefix = "reportvault:artifact:"

// RedisPathCache is the production PathCache.
type RedisPathCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisPathCache wraps a connected client. TTL bounds staleness after
// out-of-band file removal.
func NewRedisPathCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisPathCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPathCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisPathCache) Put(ctx context.Context, path string) {
	if err := c.client.Set(ctx, pathCachePrefix+path, "1", c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "path cache put failed", "path", path, "error", err)
	}
}

func (c *RedisPathCache) Has(ctx context.Context, path string) bool {
	n, err := c.client.Exists(ctx, pathCachePrefix+path).Result()
	if err != nil {
		c.logger.WarnContext(ctx, "path cache lookup failed", "path", path, "error", err)
		return false
	}
	return n > 0
}

func (c *RedisPathCache) Forget(ctx context.Context, path string) {
	if err := c.client.Del(ctx, pathCachePrefix+path).Err(); err != nil {
		c.logger.WarnContext(ctx, "path cache delete failed", "path", path, "error", err)
	}
}
