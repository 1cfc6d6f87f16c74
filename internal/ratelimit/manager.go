package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SettingsProvider returns the settings to apply to the next check.
type SettingsProvider func() SettingsConfig

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

// Manager enforces the configured budget. Redis counts are shared between
// instances; the in-process limiter covers Redis being unset or down.
type Manager struct {
	settings  SettingsProvider
	nowFn     func() time.Time
	local     Limiter
	dial      RedisClientFactory
	redisDown breaker

	mu     sync.Mutex
	shared *RedisLimiter
	dialed SettingsConfig
}

// NewManager builds a Manager. Nil arguments take the defaults.
func NewManager(provider SettingsProvider, nowFn func() time.Time, newRedisClient RedisClientFactory) *Manager {
	if provider == nil {
		provider = StaticSettings(DefaultSettings())
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if newRedisClient == nil {
		newRedisClient = redis.NewClient
	}
	return &Manager{
		settings: provider,
		nowFn:    nowFn,
		local:    NewMemoryLimiter(),
		dial:     newRedisClient,
	}
}

// Limit returns the current per-second budget; 0 is unlimited.
func (m *Manager) Limit() int {
	if m == nil {
		return 0
	}
	return m.settings().Limit
}

// Allow counts one request for key.
func (m *Manager) Allow(ctx context.Context, key string) (Result, error) {
	if m == nil {
		return Result{Allowed: true}, nil
	}
	cfg := m.settings()
	if cfg.Limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := m.nowFn()

	limiter := m.local
	if cfg.RedisEnabled && !m.redisDown.open(now) {
		shared, errDial := m.sharedLimiter(ctx, cfg)
		if errDial == nil {
			result, errAllow := shared.Allow(ctx, key, cfg.Limit, now)
			if errAllow == nil {
				result.Limit = cfg.Limit
				return result, nil
			}
			errDial = errAllow
		}
		m.redisDown.trip(errDial, now)
	}
	result, err := limiter.Allow(ctx, key, cfg.Limit, now)
	result.Limit = cfg.Limit
	return result, err
}

// Close releases the Redis client, if one was dialed.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shared == nil {
		return nil
	}
	err := m.shared.client.Close()
	m.shared = nil
	return err
}

// sharedLimiter returns the Redis limiter for cfg, redialing when the URL or
// prefix changed since the last dial.
func (m *Manager) sharedLimiter(ctx context.Context, cfg SettingsConfig) (*RedisLimiter, error) {
	if cfg.RedisURL == "" {
		return nil, errors.New("rate limit redis: missing url")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shared != nil {
		if m.dialed.RedisURL == cfg.RedisURL && m.dialed.RedisPrefix == cfg.RedisPrefix {
			return m.shared, nil
		}
		_ = m.shared.client.Close()
		m.shared = nil
	}

	opts, errParse := redis.ParseURL(cfg.RedisURL)
	if errParse != nil {
		return nil, errParse
	}
	client := m.dial(opts)
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.shared = NewRedisLimiter(client, cfg.RedisPrefix)
	m.dialed = cfg
	return m.shared, nil
}
