// Package app wires configuration, storage and services into the HTTP server and
// the maintenance commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guess2/dailytrivia/internal/cache"
	"github.com/guess2/dailytrivia/internal/config"
	"github.com/guess2/dailytrivia/internal/db"
	"github.com/guess2/dailytrivia/internal/http/api/admin"
	"github.com/guess2/dailytrivia/internal/http/api/front"
	"github.com/guess2/dailytrivia/internal/http/middleware"
	"github.com/guess2/dailytrivia/internal/http/respond"
	"github.com/guess2/dailytrivia/internal/leaderboard"
	"github.com/guess2/dailytrivia/internal/metrics"
	"github.com/guess2/dailytrivia/internal/payment"
	"github.com/guess2/dailytrivia/internal/play"
	"github.com/guess2/dailytrivia/internal/ratelimit"
	"github.com/guess2/dailytrivia/internal/seed"
	"github.com/guess2/dailytrivia/internal/subscription"
	"github.com/guess2/dailytrivia/internal/watcher"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// Services are the long-lived components behind the routes.
type Services struct {
	DB            *gorm.DB
	Cache         cache.Cache
	Redis         *redis.Client
	Leaderboard   *leaderboard.Service
	Processor     payment.Processor
	Subscriptions *subscription.Service
	Attempts      *play.Manager
	RateLimiter   *ratelimit.Manager
	RateLimits    *ratelimit.DynamicSettings
	Now           func() time.Time
}

// NewServices builds every service on top of conn. The cache is in-process for
// cache.MemoryURL and falls back to a no-op when Redis is not configured or unreachable.
func NewServices(ctx context.Context, cfg config.Config, conn *gorm.DB) *Services {
	store, client := cache.New(ctx, cfg.Cache.URL, nil)

	var processor payment.Processor = payment.Disabled{}
	if !cfg.Stripe.Disabled {
		processor = payment.NewStripeProcessor(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, nil)
	} else {
		log.Warn("payments disabled: checkout and webhooks will be rejected")
	}
	priceIDs := make([]string, 0, len(cfg.Stripe.Plans))
	for _, plan := range cfg.Stripe.Plans {
		if plan.PriceID != "" {
			priceIDs = append(priceIDs, plan.PriceID)
		}
	}

	limits := ratelimit.NewDynamicSettings(rateLimitSettings(cfg))
	return &Services{
		DB:          conn,
		Cache:       store,
		Redis:       client,
		Leaderboard: leaderboard.NewService(leaderboard.NewGormSource(conn), store, nil),
		Processor:   processor,
		Subscriptions: subscription.NewService(conn, processor, subscription.Options{
			FrontendURL:     cfg.FrontendURL,
			AllowedPriceIDs: priceIDs,
		}),
		Attempts:    play.NewManager(conn, play.ManagerOptions{}),
		RateLimiter: ratelimit.NewManager(limits.Provider(), nil, nil),
		RateLimits:  limits,
		Now:         time.Now,
	}
}

// ApplyConfig applies the settings that can change without a restart: the rate
// limit budget and the log level.
func (s *Services) ApplyConfig(cfg config.Config) {
	s.RateLimits.Store(rateLimitSettings(cfg))
	if level, errLevel := log.ParseLevel(cfg.Logging.Level); errLevel == nil {
		log.SetLevel(level)
	}
	log.WithFields(log.Fields{
		"rate_limit": cfg.RateLimitPerSecond(),
		"log_level":  log.GetLevel().String(),
	}).Info("runtime settings applied")
}

// rateLimitSettings shares the cache Redis with the limiter. The memory cache keeps
// the limiter on its in-process buckets.
func rateLimitSettings(cfg config.Config) ratelimit.SettingsConfig {
	redisURL := cfg.Cache.URL
	if cache.IsMemoryURL(redisURL) {
		redisURL = ""
	}
	return ratelimit.NewSettings(cfg.RateLimitPerSecond(), redisURL, cfg.RateLimit.Prefix)
}

// Close releases the cache client and rate limiter connections.
func (s *Services) Close() {
	if s == nil {
		return
	}
	if errClose := s.RateLimiter.Close(); errClose != nil {
		log.WithError(errClose).Warn("close rate limiter failed")
	}
	if s.Redis != nil {
		if errClose := s.Redis.Close(); errClose != nil {
			log.WithError(errClose).Warn("close redis failed")
		}
	}
}

// NewEngine builds the gin engine with the shared middleware and every route.
func NewEngine(cfg config.Config, svc *Services) *gin.Engine {
	engine := gin.New()
	engine.Use(
		respond.Recovery(),
		middleware.RequestLogger(),
		metrics.Middleware(),
		middleware.CORS(cfg.FrontendURL),
		respond.Errors(),
	)
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	front.RegisterFrontRoutes(engine, front.Deps{
		DB:            svc.DB,
		Config:        cfg,
		Leaderboard:   svc.Leaderboard,
		Subscriptions: svc.Subscriptions,
		Processor:     svc.Processor,
		Attempts:      svc.Attempts,
		RateLimiter:   svc.RateLimiter,
		Now:           svc.Now,
	})
	admin.RegisterAdminRoutes(engine, admin.Deps{
		DB:          svc.DB,
		Config:      cfg,
		Leaderboard: svc.Leaderboard,
		Now:         svc.Now,
	})
	engine.NoRoute(respond.NoRoute)
	return engine
}

// RunServer opens and migrates the database, starts the attempt janitor and the
// config watcher, and serves HTTP until ctx is canceled.
func RunServer(ctx context.Context, cfg config.Config) error {
	conn, errOpen := openDatabase(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	defer closeDatabase(conn)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if ok, errAdmin := seed.HasAdmin(ctx, conn); errAdmin != nil {
		return errAdmin
	} else if !ok {
		log.Warn("no admin user exists; run `trivia seed --admin-email ... --admin-password ...` to create one")
	}

	svc := NewServices(ctx, cfg, conn)
	defer svc.Close()
	svc.Attempts.Start(ctx)
	configWatcher := watcher.New(cfg.Path, 0, svc.ApplyConfig)
	configWatcher.Start(ctx)
	defer configWatcher.Stop()

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.Server.Port)),
		Handler:           NewEngine(cfg, svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s (config=%s)", server.Addr, cfg.Path)
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
		}
		close(errCh)
	}()

	select {
	case errServe := <-errCh:
		return fmt.Errorf("app: serve: %w", errServe)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := server.Shutdown(ctxShutdown); errShutdown != nil {
		return fmt.Errorf("app: shutdown: %w", errShutdown)
	}
	return nil
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.Config) error {
	conn, errOpen := openDatabase(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	defer closeDatabase(conn)
	if errMigrate := db.Migrate(conn.WithContext(ctx)); errMigrate != nil {
		return errMigrate
	}
	log.Info("migrations applied")
	return nil
}

// SeedOptions optionally creates or promotes an admin during seeding.
type SeedOptions struct {
	AdminEmail    string
	AdminUsername string
	AdminPassword string
}

// Seed migrates, then inserts the bundled achievements and sample challenges.
// Existing rows are left alone, so running it twice is safe.
func Seed(ctx context.Context, cfg config.Config, opts SeedOptions) (seed.Summary, error) {
	conn, errOpen := openDatabase(cfg.Database.DSN)
	if errOpen != nil {
		return seed.Summary{}, errOpen
	}
	defer closeDatabase(conn)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return seed.Summary{}, errMigrate
	}

	data, errLoad := seed.Load()
	if errLoad != nil {
		return seed.Summary{}, errLoad
	}
	summary, errRun := seed.Run(ctx, conn, data)
	if errRun != nil {
		return summary, errRun
	}
	if opts.AdminEmail != "" {
		user, errAdmin := seed.EnsureAdmin(ctx, conn, opts.AdminEmail, opts.AdminUsername, opts.AdminPassword)
		if errAdmin != nil {
			return summary, errAdmin
		}
		log.WithFields(log.Fields{"user_id": user.ID, "email": user.Email}).Info("admin ready")
	}
	return summary, nil
}

func openDatabase(dsn string) (*gorm.DB, error) {
	if info, errParse := parseDSN(dsn); errParse == nil {
		log.WithFields(info.fields()).Info("opening database")
	}
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		return nil, fmt.Errorf("app: open %s: %w", DescribeDSN(dsn), errOpen)
	}
	return conn, nil
}

func closeDatabase(conn *gorm.DB) {
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		return
	}
	if errClose := sqlDB.Close(); errClose != nil {
		log.WithError(errClose).Warn("close database failed")
	}
}
