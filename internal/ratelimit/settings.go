package ratelimit

import (
	"strings"
	"sync/atomic"

	internalsettings "github.com/guess2/dailytrivia/internal/settings"
)

// SettingsConfig captures the limiter settings derived from process config.
type SettingsConfig struct {
	Limit        int
	RedisEnabled bool
	RedisURL     string
	RedisPrefix  string
}

// NewSettings normalizes limit, redisURL and prefix into a SettingsConfig. Redis is
// used only when a URL is present.
func NewSettings(limit int, redisURL, prefix string) SettingsConfig {
	cfg := SettingsConfig{
		Limit:       limit,
		RedisURL:    strings.TrimSpace(redisURL),
		RedisPrefix: strings.TrimSpace(prefix),
	}
	if cfg.Limit < 0 {
		cfg.Limit = 0
	}
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = internalsettings.DefaultRateLimitRedisPrefix
	}
	cfg.RedisEnabled = cfg.RedisURL != ""
	return cfg
}

// DefaultSettings returns memory-only settings with the default limit.
func DefaultSettings() SettingsConfig {
	return NewSettings(internalsettings.DefaultRateLimit, "", "")
}

// StaticSettings returns a provider that always yields cfg.
func StaticSettings(cfg SettingsConfig) SettingsProvider {
	return func() SettingsConfig { return cfg }
}

// DynamicSettings holds a settings snapshot that can be replaced while the
// Manager is serving.
type DynamicSettings struct {
	current atomic.Pointer[SettingsConfig]
}

// NewDynamicSettings returns DynamicSettings starting at cfg.
func NewDynamicSettings(cfg SettingsConfig) *DynamicSettings {
	d := &DynamicSettings{}
	d.Store(cfg)
	return d
}

// Store replaces the snapshot.
func (d *DynamicSettings) Store(cfg SettingsConfig) {
	d.current.Store(&cfg)
}

// Provider returns a SettingsProvider reading the latest snapshot.
func (d *DynamicSettings) Provider() SettingsProvider {
	return func() SettingsConfig { return *d.current.Load() }
}
