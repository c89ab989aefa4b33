package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRateLimitPrefix = "certhub:ratelimit:"

// RedisRateLimiter counts requests per key in fixed windows shared by every
// server instance. The first request of a window sets the key's expiry.
type RedisRateLimiter struct {
	client redis.Cmdable
	prefix string
	limit  int
	window time.Duration
}

// NewRedisRateLimiter allows limit requests per window per key
func NewRedisRateLimiter(client redis.Cmdable, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, prefix: defaultRateLimitPrefix, limit: limit, window: window}
}

// Take consumes one request for key
func (l *RedisRateLimiter) Take(ctx context.Context, key string) (int, bool, error) {
	k := l.prefix + key
	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, false, fmt.Errorf("failed to count request: %w", err)
	}
	if n == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return 0, false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}
	remaining := max(l.limit-int(n), 0)
	return remaining, n <= int64(l.limit), nil
}

// Limit returns the requests allowed per window
func (l *RedisRateLimiter) Limit() int {
	return l.limit
}
