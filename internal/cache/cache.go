// Package cache provides the key/value store used to memoize leaderboard reads.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Cache is a best-effort key/value store with expiry.
type Cache interface {
	// Get returns the value and true on a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// NoCache always misses and accepts writes as no-ops.
type NoCache struct{}

// Get always reports a miss.
func (NoCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

// Set discards the value.
func (NoCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Delete does nothing.
func (NoCache) Delete(context.Context, ...string) error { return nil }

// DeletePrefix does nothing.
func (NoCache) DeletePrefix(context.Context, string) error { return nil }

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

const pingTimeout = 2 * time.Second

// MemoryURL selects the in-process MemoryCache. It suits a single instance only.
const MemoryURL = "memory://"

// IsMemoryURL reports whether url selects the in-process cache.
func IsMemoryURL(url string) bool {
	return strings.EqualFold(strings.TrimSpace(url), MemoryURL)
}

// New selects a MemoryCache for MemoryURL, a Redis cache when url is set and
// reachable, otherwise NoCache. The returned client is nil unless Redis is used.
func New(ctx context.Context, url string, newClient RedisClientFactory) (Cache, *redis.Client) {
	url = strings.TrimSpace(url)
	if url == "" {
		log.Info("cache: no url configured, leaderboard caching disabled")
		return NoCache{}, nil
	}
	if IsMemoryURL(url) {
		log.Info("cache: using in-process memory cache")
		return NewMemoryCache(nil), nil
	}
	if newClient == nil {
		newClient = redis.NewClient
	}
	client, errConnect := Connect(ctx, url, newClient)
	if errConnect != nil {
		log.WithError(errConnect).Warn("cache: redis unavailable, leaderboard caching disabled")
		return NoCache{}, nil
	}
	log.Info("cache: using redis")
	return NewRedisCache(client), client
}

// Connect parses url, creates a client, and verifies it with a ping.
func Connect(ctx context.Context, url string, newClient RedisClientFactory) (*redis.Client, error) {
	opts, errParse := redis.ParseURL(url)
	if errParse != nil {
		return nil, fmt.Errorf("cache: parse url: %w", errParse)
	}
	if newClient == nil {
		newClient = redis.NewClient
	}
	client := newClient(opts)
	if ctx == nil {
		ctx = context.Background()
	}
	ctxPing, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping: %w", errPing)
	}
	return client, nil
}
