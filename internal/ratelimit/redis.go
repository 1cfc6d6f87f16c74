package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// windowTTL keeps a window key past its second so a late INCR still expires.
const windowTTL = 2 * time.Second

// RedisLimiter shares per-second counters between instances through INCR on a key
// per window.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter wraps client. Keys are namespaced by prefix when set.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: strings.TrimSpace(prefix)}
}

// Allow counts key in the second of now.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error) {
	if l == nil || l.client == nil || limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	sec, reset := window(now)
	windowKey := l.key(key, sec)

	var incr *redis.IntCmd
	_, errPipe := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, windowKey)
		pipe.Expire(ctx, windowKey, windowTTL)
		return nil
	})
	if errPipe != nil {
		return Result{}, fmt.Errorf("rate limit redis: %w", errPipe)
	}
	return decide(incr.Val(), limit, reset), nil
}

func (l *RedisLimiter) key(key string, sec int64) string {
	if l.prefix == "" {
		return fmt.Sprintf("%s:%d", key, sec)
	}
	return fmt.Sprintf("%s:%s:%d", l.prefix, key, sec)
}
