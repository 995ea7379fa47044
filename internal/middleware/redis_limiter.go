package middleware

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vidtube/backend/internal/logging"
)

// WindowCounter is the subset of the go-redis client the shared limiter needs.
type WindowCounter interface {
	Incr(ctx context.Context, key string) *goredis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *goredis.BoolCmd
}

// RedisRateLimiter is a fixed-window counter shared by every replica. When Redis fails, or its
// circuit breaker is open, requests are allowed so the limiter never takes login down with it.
type RedisRateLimiter struct {
	counter WindowCounter
	limit   int64
	window  time.Duration
	prefix  string
}

// NewRedisRateLimiter allows up to requests events per window for each key.
func NewRedisRateLimiter(counter WindowCounter, requests int, window time.Duration) *RedisRateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window < time.Second {
		window = time.Second
	}
	return &RedisRateLimiter{
		counter: counter,
		limit:   int64(requests),
		window:  window,
		prefix:  "vidtube:ratelimit:",
	}
}

// Allow increments the key's window counter and reports whether it is within the limit.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	if key == "" {
		key = "unknown"
	}
	redisKey := l.prefix + key

	count, err := l.counter.Incr(ctx, redisKey).Result()
	if err != nil {
		logging.FromContext(ctx).Warn("rate limiter unavailable, allowing request", "error", err)
		return true
	}
	if count == 1 {
		if err := l.counter.Expire(ctx, redisKey, l.window).Err(); err != nil {
			logging.FromContext(ctx).Warn("set rate limit window", "error", err)
		}
	}
	return count <= l.limit
}
