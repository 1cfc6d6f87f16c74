// Package admin registers the admin console routes.
package admin

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guess2/dailytrivia/internal/config"
	handlers "github.com/guess2/dailytrivia/internal/http/api/admin/handlers"
	"github.com/guess2/dailytrivia/internal/http/middleware"
	"github.com/guess2/dailytrivia/internal/leaderboard"
	"gorm.io/gorm"
)

// Deps are the services behind the admin routes.
type Deps struct {
	DB          *gorm.DB
	Config      config.Config
	Leaderboard *leaderboard.Service
	Now         func() time.Time
}

// RegisterAdminRoutes registers challenge authoring, dashboard and user management
// routes. Every route requires a token whose user is an admin in the database.
func RegisterAdminRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil {
		return
	}

	authed := r.Group("/api/admin")
	authed.Use(middleware.Authenticate(deps.DB, deps.Config.JWT.Secret))
	authed.Use(middleware.RequireAdmin())

	challengeHandler := handlers.NewChallengeHandler(deps.DB)
	authed.GET("/challenges", challengeHandler.List)
	authed.GET("/challenges/:id", challengeHandler.Get)
	authed.POST("/challenges", challengeHandler.Create)
	authed.PUT("/challenges/:id", challengeHandler.Update)
	authed.DELETE("/challenges/:id", challengeHandler.Delete)

	statsHandler := handlers.NewStatsHandler(deps.DB, deps.Now)
	authed.GET("/stats", statsHandler.Stats)
	authed.GET("/activity", statsHandler.Activity)

	userHandler := handlers.NewUserHandler(deps.DB, deps.Leaderboard)
	authed.GET("/users", userHandler.List)
	authed.PUT("/users/:id", userHandler.Update)
}
