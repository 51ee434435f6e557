package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter bounds how often a keyed operation may run inside a time
// window. Implementations must be safe under concurrent calls for the
// same key.
type RateLimiter interface {
	// CheckAndIncrement counts one attempt for key and reports whether it
	// is still within limit for the window. The retryAfter hint is only
	// meaningful when allowed is false.
	CheckAndIncrement(ctx context.Context, key string, window time.Duration, limit int) (allowed bool, retryAfter time.Duration, err error)
}

// RedisRateLimiter implements a fixed-window counter on Redis. INCR plus
// a first-write EXPIRE keeps the check atomic without read-modify-write.
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisRateLimiter constructs a limiter with the given key prefix.
func NewRedisRateLimiter(client *redis.Client, prefix string) *RedisRateLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisRateLimiter{client: client, prefix: prefix}
}

// CheckAndIncrement implements RateLimiter.
func (l *RedisRateLimiter) CheckAndIncrement(ctx context.Context, key string, window time.Duration, limit int) (bool, time.Duration, error) {
	if l == nil || l.client == nil {
		return false, 0, errors.New("rate limiter not initialised")
	}
	if key == "" {
		return false, 0, errors.New("rate limit key required")
	}
	if limit <= 0 || window <= 0 {
		return false, 0, fmt.Errorf("rate limit misconfigured: limit=%d window=%s", limit, window)
	}

	redisKey := l.prefix + ":" + key
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	// NX so only the first increment of a window arms the expiry.
	pipe.ExpireNX(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}

	count := incr.Val()
	if count <= int64(limit) {
		return true, 0, nil
	}

	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return false, ttl, nil
}

var _ RateLimiter = (*RedisRateLimiter)(nil)
