package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces rate limit keys so the Redis database can be shared
// with other tools.
const keyPrefix = "listrelay:lastpost:"

// RedisLimiter implements Limiter using a shared Redis instance, so the
// window holds across concurrent and successive invocations.
type RedisLimiter struct {
	client *redis.Client
	window time.Duration
}

// NewRedis creates a RedisLimiter against the given address and database.
func NewRedis(addr string, db int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   db,
		}),
		window: window,
	}
}

// Allow records the sender's post with SET NX and a TTL of one window. The
// key insertion succeeding means no post happened within the window.
func (l *RedisLimiter) Allow(ctx context.Context, sender string) (bool, error) {
	ok, err := l.client.SetNX(ctx, keyPrefix+sender, time.Now().Unix(), l.window).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit: %w", err)
	}
	return ok, nil
}

// Close closes the Redis client.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
