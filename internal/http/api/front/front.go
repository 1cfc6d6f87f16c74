// Package front registers the player-facing API routes.
package front

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guess2/dailytrivia/internal/config"
	handlers "github.com/guess2/dailytrivia/internal/http/api/front/handlers"
	"github.com/guess2/dailytrivia/internal/http/middleware"
	"github.com/guess2/dailytrivia/internal/leaderboard"
	"github.com/guess2/dailytrivia/internal/payment"
	"github.com/guess2/dailytrivia/internal/play"
	"github.com/guess2/dailytrivia/internal/ratelimit"
	"github.com/guess2/dailytrivia/internal/subscription"
	"gorm.io/gorm"
)

// Deps are the services behind the player routes.
type Deps struct {
	DB            *gorm.DB
	Config        config.Config
	Leaderboard   *leaderboard.Service
	Subscriptions *subscription.Service
	Processor     payment.Processor
	Attempts      *play.Manager
	RateLimiter   *ratelimit.Manager
	Now           func() time.Time
}

// RegisterFrontRoutes registers health, auth, leaderboard, challenge, attempt and
// payment routes.
func RegisterFrontRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil {
		return
	}
	secret := deps.Config.JWT.Secret
	authed := middleware.Authenticate(deps.DB, secret)

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", healthHandler.Healthz)

	api := r.Group("/api")

	configHandler := handlers.NewConfigHandler(deps.Config)
	api.GET("/config", configHandler.Get)

	authHandler := handlers.NewAuthHandler(deps.DB, secret, deps.Config.JWT.Expiry)
	authGroup := api.Group("/auth")
	authGroup.Use(ratelimit.Middleware(deps.RateLimiter, "auth", nil))
	authGroup.POST("/signup", authHandler.Signup)
	authGroup.POST("/login", authHandler.Login)

	meHandler := handlers.NewMeHandler(deps.DB)
	me := api.Group("/me")
	me.Use(authed)
	me.GET("", meHandler.Get)
	me.PUT("", meHandler.Update)
	me.GET("/achievements", meHandler.Achievements)
	me.GET("/history", meHandler.History)

	leaderboardHandler := handlers.NewLeaderboardHandler(deps.Leaderboard)
	boards := api.Group("/leaderboard")
	boards.GET("/global", leaderboardHandler.Global)
	boards.GET("/weekly", leaderboardHandler.Weekly)
	boards.GET("/user/:userId/rank", leaderboardHandler.UserRank)
	boards.POST("/refresh", authed, middleware.RequireAdmin(), leaderboardHandler.Refresh)

	challengeHandler := handlers.NewChallengeHandler(deps.DB, deps.Now)
	attemptHandler := handlers.NewAttemptHandler(deps.Attempts)
	api.GET("/challenges/daily", middleware.OptionalAuth(deps.DB, secret), challengeHandler.Daily)
	api.GET("/challenges/:id", authed, challengeHandler.Get)
	api.POST("/challenges/:id/attempts", authed, attemptHandler.Start)

	attempts := api.Group("/attempts")
	attempts.Use(authed)
	attempts.GET("/:attemptId", attemptHandler.Get)
	attempts.POST("/:attemptId/answers", attemptHandler.Answer)
	attempts.DELETE("/:attemptId", attemptHandler.Abandon)

	paymentHandler := handlers.NewPaymentHandler(deps.Subscriptions, deps.Processor)
	payments := api.Group("/payments")
	payments.POST("/webhook", paymentHandler.Webhook)
	payments.POST("/create-checkout-session", authed,
		ratelimit.Middleware(deps.RateLimiter, "checkout", middleware.CurrentUserID),
		paymentHandler.CreateCheckoutSession)
	payments.GET("/subscription/:userId", authed, paymentHandler.Subscription)
	payments.POST("/cancel-subscription", authed, paymentHandler.Cancel)
}
