// Package cache is the read-through cache in front of the link store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go-shortlink/internal/redirect/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "link:"

// LinkCache stores resolved links by short code.
// Failures never surface: Get degrades to a miss and writes are best effort.
type LinkCache interface {
	// Get returns nil on a miss or when the cache is unreachable.
	Get(ctx context.Context, code string) *domain.ResolvedLink
	Set(ctx context.Context, code string, link *domain.ResolvedLink, ttl time.Duration)
	Invalidate(ctx context.Context, codes ...string)
}

var (
	_ LinkCache = (*RedisLinkCache)(nil)
	_ LinkCache = (*noopLinkCache)(nil)
)

// RedisLinkCache keeps links as JSON values under link:<code>.
type RedisLinkCache struct {
	rdb    redis.UniversalClient
	logger *zap.Logger
}

// NewLinkCache returns a Redis cache, or a no-op cache if rdb is nil.
func NewLinkCache(rdb redis.UniversalClient, logger *zap.Logger) LinkCache {
	if rdb == nil {
		return &noopLinkCache{}
	}
	return &RedisLinkCache{rdb: rdb, logger: logger}
}

func cacheKey(code string) string {
	return keyPrefix + code
}

func (c *RedisLinkCache) Get(ctx context.Context, code string) *domain.ResolvedLink {
	data, err := c.rdb.Get(ctx, cacheKey(code)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("link cache read failed", zap.String("short_code", code), zap.Error(err))
		}
		return nil
	}

	var link domain.ResolvedLink
	if err := json.Unmarshal(data, &link); err != nil {
		c.logger.Warn("link cache entry undecodable", zap.String("short_code", code), zap.Error(err))
		return nil
	}
	return &link
}

func (c *RedisLinkCache) Set(ctx context.Context, code string, link *domain.ResolvedLink, ttl time.Duration) {
	data, err := json.Marshal(link)
	if err != nil {
		c.logger.Warn("link cache encode failed", zap.String("short_code", code), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(code), data, ttl).Err(); err != nil {
		c.logger.Warn("link cache write failed", zap.String("short_code", code), zap.Error(err))
	}
}

func (c *RedisLinkCache) Invalidate(ctx context.Context, codes ...string) {
	if len(codes) == 0 {
		return
	}
	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = cacheKey(code)
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("link cache invalidation failed", zap.Strings("short_codes", codes), zap.Error(err))
	}
}

type noopLinkCache struct{}

func (noopLinkCache) Get(context.Context, string) *domain.ResolvedLink { return nil }

func (noopLinkCache) Set(context.Context, string, *domain.ResolvedLink, time.Duration) {}

func (noopLinkCache) Invalidate(context.Context, ...string) {}
