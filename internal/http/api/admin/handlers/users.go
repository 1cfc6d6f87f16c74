package handlers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	dbutil "github.com/guess2/dailytrivia/internal/db"
	"github.com/guess2/dailytrivia/internal/http/middleware"
	"github.com/guess2/dailytrivia/internal/http/respond"
	"github.com/guess2/dailytrivia/internal/leaderboard"
	"github.com/guess2/dailytrivia/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// UserHandler manages player accounts from the admin console.
type UserHandler struct {
	db    *gorm.DB
	board *leaderboard.Service
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(db *gorm.DB, board *leaderboard.Service) *UserHandler {
	return &UserHandler{db: db, board: board}
}

// userListQuery defines filters for the user list view.
type userListQuery struct {
	Page  int    `form:"page,default=1"`   // Page number.
	Limit int    `form:"limit,default=20"` // Page size.
	Q     string `form:"q"`                // Id, username or email search.
}

// adminUser is a user row as shown in the console.
type adminUser struct {
	ID                 uint64     `json:"id"`
	Email              string     `json:"email"`
	Username           string     `json:"username"`
	TotalPoints        int        `json:"total_points"`
	GamesPlayed        int        `json:"games_played"`
	CurrentStreak      int        `json:"current_streak"`
	IsPremium          bool       `json:"is_premium"`
	IsAdmin            bool       `json:"is_admin"`
	SubscriptionStatus *string    `json:"subscription_status"`
	LastPlayedOn       *string    `json:"last_played_on"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty"`
}

func adminUserOf(user models.User) adminUser {
	out := adminUser{
		ID:                 user.ID,
		Email:              user.Email,
		Username:           user.Username,
		TotalPoints:        user.TotalPoints,
		GamesPlayed:        user.GamesPlayed,
		CurrentStreak:      user.CurrentStreak,
		IsPremium:          user.IsPremium,
		IsAdmin:            user.IsAdmin,
		SubscriptionStatus: user.SubscriptionStatus,
		LastPlayedOn:       user.LastPlayedOn,
		CreatedAt:          user.CreatedAt,
	}
	if !user.UpdatedAt.IsZero() {
		updated := user.UpdatedAt
		out.UpdatedAt = &updated
	}
	return out
}

// List returns users with paging and an optional search.
func (h *UserHandler) List(c *gin.Context) {
	var q userListQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		respond.Fail(c, respond.BadRequest("Invalid query"))
		return
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 100 {
		q.Limit = 20
	}

	base := h.db.WithContext(c.Request.Context()).Model(&models.User{})
	if searchQ := strings.TrimSpace(q.Q); searchQ != "" {
		cond, args := dbutil.ContainsFold(h.db, searchQ, "username", "email")
		if id, errParse := strconv.ParseUint(searchQ, 10, 64); errParse == nil {
			cond += " OR id = ?"
			args = append(args, id)
		}
		base = base.Where(cond, args...)
	}

	var total int64
	if errCount := base.Count(&total).Error; errCount != nil {
		respond.Fail(c, respond.Internal(errCount))
		return
	}
	var rows []models.User
	if errFind := base.Order("created_at DESC, id DESC").
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&rows).Error; errFind != nil {
		respond.Fail(c, respond.Internal(errFind))
		return
	}
	out := make([]adminUser, 0, len(rows))
	for _, row := range rows {
		out = append(out, adminUserOf(row))
	}
	respond.OK(c, gin.H{
		"users": out,
		"total": total,
		"page":  q.Page,
		"limit": q.Limit,
	})
}

// updateUserRequest defines the request body for user updates.
type updateUserRequest struct {
	IsAdmin     *bool `json:"is_admin"`
	IsPremium   *bool `json:"is_premium"`
	TotalPoints *int  `json:"total_points"`
}

// Update changes a user's flags or point total. Point edits drop the cached boards.
func (h *UserHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		respond.Fail(c, respond.NotFound("User not found"))
		return
	}
	var body updateUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.Fail(c, respond.BadRequest("Invalid request body"))
		return
	}

	updates := map[string]any{}
	if body.IsAdmin != nil {
		updates["is_admin"] = *body.IsAdmin
	}
	if body.IsPremium != nil {
		updates["is_premium"] = *body.IsPremium
	}
	if body.TotalPoints != nil {
		if *body.TotalPoints < 0 {
			respond.Fail(c, respond.BadRequest("Total points must not be negative"))
			return
		}
		updates["total_points"] = *body.TotalPoints
	}
	if len(updates) == 0 {
		respond.Fail(c, respond.BadRequest("No changes provided"))
		return
	}

	ctx := c.Request.Context()
	var user models.User
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.First(&user, id).Error; errFind != nil {
			return errFind
		}
		if total, ok := updates["total_points"].(int); ok && user.GamesPlayed > 0 {
			updates["average_score"] = leaderboard.AverageScore(total, user.GamesPlayed)
		}
		if errUpdate := tx.Model(&models.User{}).Where("id = ?", id).Updates(updates).Error; errUpdate != nil {
			return errUpdate
		}
		return tx.First(&user, id).Error
	})
	if errTx != nil {
		if errors.Is(errTx, gorm.ErrRecordNotFound) {
			respond.Fail(c, respond.NotFound("User not found"))
			return
		}
		respond.Fail(c, respond.Internal(errTx))
		return
	}

	if body.TotalPoints != nil && h.board != nil {
		if errInvalidate := h.board.Invalidate(ctx); errInvalidate != nil {
			log.WithError(errInvalidate).WithField("user_id", id).Warn("admin: leaderboard invalidate failed")
		}
	}
	log.WithFields(log.Fields{"user_id": id, "actor": middleware.CurrentUserID(c), "fields": len(updates)}).Info("admin: user updated")
	respond.Message(c, adminUserOf(user), "User updated successfully")
}
