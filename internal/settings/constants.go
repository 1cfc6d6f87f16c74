package settings

import "time"

// Defaults shared by config loading and the runtime components.
const (
	// SiteName is the product name used in token issuers and log fields.
	SiteName = "Guess2"
	// DefaultPort is the fallback HTTP listen port.
	DefaultPort = 3001
	// DefaultFrontendURL is used to build checkout redirect targets.
	DefaultFrontendURL = "http://localhost:5175"
	// DefaultJWTExpiry is used when the config omits or invalidates JWT expiry.
	DefaultJWTExpiry = 30 * 24 * time.Hour
	// DefaultRateLimit is the fallback per-second request budget (0 means unlimited).
	DefaultRateLimit = 10
	// DefaultRateLimitRedisPrefix is the fallback Redis key prefix for rate limits.
	DefaultRateLimitRedisPrefix = "trivia:rl"
	// DefaultLogLevel is the fallback logrus level.
	DefaultLogLevel = "info"
	// DefaultLogFormat is the fallback log formatter.
	DefaultLogFormat = "text"
)

// Plan identifiers advertised to the frontend when no plans are configured.
const (
	PlanMonthly = "monthly"
	PlanYearly  = "yearly"
)
