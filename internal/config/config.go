package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/guess2/dailytrivia/internal/settings"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath          = "CONFIG_PATH"
	EnvPort                = "PORT"
	EnvDatabaseURL         = "DATABASE_URL"
	EnvJWTSecret           = "JWT_SECRET"
	EnvJWTExpiry           = "JWT_EXPIRY"
	EnvStripeSecretKey     = "STRIPE_SECRET_KEY"
	EnvStripeWebhookSecret = "STRIPE_WEBHOOK_SECRET"
	EnvRedisURL            = "REDIS_URL"
	EnvFrontendURL         = "FRONTEND_URL"
	EnvAPIBaseURL          = "API_BASE_URL"
	EnvRateLimit           = "RATE_LIMIT"
	EnvLogLevel            = "LOG_LEVEL"
	EnvLogFormat           = "LOG_FORMAT"
)

var (
	// ErrMissingDatabaseDSN indicates no database DSN is configured.
	ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database.dsn` or DATABASE_URL)")
	// ErrMissingJWTSecret indicates no token signing secret is configured.
	ErrMissingJWTSecret = errors.New("missing jwt secret (set `jwt.secret` or JWT_SECRET)")
	// ErrMissingStripeSecretKey indicates the payment processor key is absent.
	ErrMissingStripeSecretKey = errors.New("missing stripe secret key (set `stripe.secret-key` or STRIPE_SECRET_KEY)")
	// ErrMissingStripeWebhookSecret indicates the webhook signing secret is absent.
	ErrMissingStripeWebhookSecret = errors.New("missing stripe webhook secret (set `stripe.webhook-secret` or STRIPE_WEBHOOK_SECRET)")
)

// Config holds resolved application configuration values.
type Config struct {
	Path string `yaml:"-"`

	Server      ServerConfig    `yaml:"server"`
	Database    DatabaseConfig  `yaml:"database"`
	JWT         JWTConfig       `yaml:"jwt"`
	Stripe      StripeConfig    `yaml:"stripe"`
	Cache       CacheConfig     `yaml:"cache"`
	RateLimit   RateLimitConfig `yaml:"rate-limit"`
	Logging     LoggingConfig   `yaml:"logging"`
	FrontendURL string          `yaml:"frontend-url"`
	APIBaseURL  string          `yaml:"api-base-url"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig holds the store connection string.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// StripeConfig holds payment processor credentials and the advertised plans.
type StripeConfig struct {
	Disabled      bool         `yaml:"disabled"`
	SecretKey     string       `yaml:"secret-key"`
	WebhookSecret string       `yaml:"webhook-secret"`
	Plans         []PlanConfig `yaml:"plans"`
}

// PlanConfig describes one purchasable premium plan.
type PlanConfig struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	PriceID  string   `yaml:"price-id" json:"priceId"`
	Amount   float64  `yaml:"amount" json:"amount"`
	Interval string   `yaml:"interval" json:"interval"`
	Features []string `yaml:"features" json:"features"`
}

// CacheConfig holds the optional leaderboard cache location.
type CacheConfig struct {
	URL string `yaml:"url"`
}

// RateLimitConfig holds per-second budgets for sensitive endpoints.
type RateLimitConfig struct {
	PerSecond *int   `yaml:"per-second"`
	Prefix    string `yaml:"redis-prefix"`
}

// LoggingConfig controls logrus output.
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	File         string `yaml:"file"`
	MaxSizeMB    int    `yaml:"max-size-mb"`
	MaxBackups   int    `yaml:"max-backups"`
	MaxAgeDays   int    `yaml:"max-age-days"`
	DisableColor bool   `yaml:"disable-color"`
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// LoadDotEnv loads a .env file from the working directory when present.
// Variables already set in the process environment win.
func LoadDotEnv() error {
	if _, errStat := os.Stat(".env"); errStat != nil {
		return nil
	}
	if errLoad := godotenv.Load(".env"); errLoad != nil {
		return fmt.Errorf("load .env: %w", errLoad)
	}
	return nil
}

// Load reads the YAML file at path (optional), applies environment overrides and
// defaults, and validates required values.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if errValidate := cfg.Validate(); errValidate != nil {
		return Config{}, errValidate
	}
	return cfg, nil
}

// Read resolves configuration without validating required values.
func Read(path string) (Config, error) {
	configPath := ResolveConfigPath(path)
	cfg := Config{Path: configPath}

	data, errRead := os.ReadFile(configPath)
	switch {
	case errRead == nil:
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
		cfg.Path = configPath
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read config file: %w", errRead)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if raw := strings.TrimSpace(os.Getenv(EnvPort)); raw != "" {
		if port, errParse := strconv.Atoi(raw); errParse == nil {
			cfg.Server.Port = port
		}
	}
	if dsn := strings.TrimSpace(os.Getenv(EnvDatabaseURL)); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		cfg.JWT.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			cfg.JWT.Expiry = expiry
		}
	}
	if key := strings.TrimSpace(os.Getenv(EnvStripeSecretKey)); key != "" {
		cfg.Stripe.SecretKey = key
	}
	if secret := strings.TrimSpace(os.Getenv(EnvStripeWebhookSecret)); secret != "" {
		cfg.Stripe.WebhookSecret = secret
	}
	if url := strings.TrimSpace(os.Getenv(EnvRedisURL)); url != "" {
		cfg.Cache.URL = url
	}
	if url := strings.TrimSpace(os.Getenv(EnvFrontendURL)); url != "" {
		cfg.FrontendURL = url
	}
	if url := strings.TrimSpace(os.Getenv(EnvAPIBaseURL)); url != "" {
		cfg.APIBaseURL = url
	}
	if raw := strings.TrimSpace(os.Getenv(EnvRateLimit)); raw != "" {
		if limit, errParse := strconv.Atoi(raw); errParse == nil && limit >= 0 {
			cfg.RateLimit.PerSecond = &limit
		}
	}
	if level := strings.TrimSpace(os.Getenv(EnvLogLevel)); level != "" {
		cfg.Logging.Level = level
	}
	if format := strings.TrimSpace(os.Getenv(EnvLogFormat)); format != "" {
		cfg.Logging.Format = format
	}
}

func applyDefaults(cfg *Config) {
	cfg.Database.DSN = strings.TrimSpace(cfg.Database.DSN)
	cfg.JWT.Secret = strings.TrimSpace(cfg.JWT.Secret)
	cfg.Stripe.SecretKey = strings.TrimSpace(cfg.Stripe.SecretKey)
	cfg.Stripe.WebhookSecret = strings.TrimSpace(cfg.Stripe.WebhookSecret)
	cfg.Cache.URL = strings.TrimSpace(cfg.Cache.URL)

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		cfg.Server.Port = settings.DefaultPort
	}
	if cfg.JWT.Expiry <= 0 {
		cfg.JWT.Expiry = settings.DefaultJWTExpiry
	}
	cfg.FrontendURL = strings.TrimRight(strings.TrimSpace(cfg.FrontendURL), "/")
	if cfg.FrontendURL == "" {
		cfg.FrontendURL = settings.DefaultFrontendURL
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	if cfg.RateLimit.PerSecond == nil {
		limit := settings.DefaultRateLimit
		cfg.RateLimit.PerSecond = &limit
	}
	if strings.TrimSpace(cfg.RateLimit.Prefix) == "" {
		cfg.RateLimit.Prefix = settings.DefaultRateLimitRedisPrefix
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = settings.DefaultLogLevel
	}
	if strings.TrimSpace(cfg.Logging.Format) == "" {
		cfg.Logging.Format = settings.DefaultLogFormat
	}
	if len(cfg.Stripe.Plans) == 0 {
		cfg.Stripe.Plans = defaultPlans()
	}
}

// Validate reports every missing required value at once.
func (c Config) Validate() error {
	var errs []error
	if c.Database.DSN == "" {
		errs = append(errs, ErrMissingDatabaseDSN)
	}
	if c.JWT.Secret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if !c.Stripe.Disabled {
		if c.Stripe.SecretKey == "" {
			errs = append(errs, ErrMissingStripeSecretKey)
		}
		if c.Stripe.WebhookSecret == "" {
			errs = append(errs, ErrMissingStripeWebhookSecret)
		}
	}
	return errors.Join(errs...)
}

// RateLimitPerSecond returns the configured budget, 0 meaning unlimited.
func (c Config) RateLimitPerSecond() int {
	if c.RateLimit.PerSecond == nil || *c.RateLimit.PerSecond < 0 {
		return 0
	}
	return *c.RateLimit.PerSecond
}

// PlanByPriceID returns the configured plan that sells priceID.
func (c Config) PlanByPriceID(priceID string) (PlanConfig, bool) {
	priceID = strings.TrimSpace(priceID)
	for _, plan := range c.Stripe.Plans {
		if plan.PriceID == priceID {
			return plan, true
		}
	}
	return PlanConfig{}, false
}

func defaultPlans() []PlanConfig {
	return []PlanConfig{
		{
			ID:       settings.PlanMonthly,
			Name:     "Premium Monthly",
			PriceID:  "price_monthly_premium",
			Amount:   9.99,
			Interval: "month",
			Features: []string{"Unlimited daily challenges", "Premium challenges", "Ad-free experience"},
		},
		{
			ID:       settings.PlanYearly,
			Name:     "Premium Yearly",
			PriceID:  "price_yearly_premium",
			Amount:   99.99,
			Interval: "year",
			Features: []string{"Everything in monthly", "Two months free", "Early access to new categories"},
		},
	}
}
