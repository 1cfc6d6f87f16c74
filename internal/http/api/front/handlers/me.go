package handlers

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guess2/dailytrivia/internal/http/middleware"
	"github.com/guess2/dailytrivia/internal/http/respond"
	"github.com/guess2/dailytrivia/internal/models"
	"gorm.io/gorm"
)

const historyLimit = 20

// MeHandler serves the signed-in player's own account.
type MeHandler struct {
	db *gorm.DB
}

// NewMeHandler constructs a MeHandler.
func NewMeHandler(db *gorm.DB) *MeHandler {
	return &MeHandler{db: db}
}

type updateMeRequest struct {
	Username  *string `json:"username"`
	AvatarURL *string `json:"avatar_url"`
}

type achievementView struct {
	ID             uint64    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	BadgeURL       string    `json:"badge_url"`
	PointsRequired int       `json:"points_required"`
	EarnedAt       time.Time `json:"earned_at"`
}

type historyRow struct {
	ID             uint64    `json:"id"`
	ChallengeID    uint64    `json:"challenge_id"`
	ChallengeTitle string    `json:"challenge_title"`
	Score          int       `json:"score"`
	CorrectAnswers int       `json:"correct_answers"`
	TotalQuestions int       `json:"total_questions"`
	CompletionTime int       `json:"completion_time"`
	CompletedAt    time.Time `json:"completed_at"`
}

// Get returns the player's profile.
func (h *MeHandler) Get(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	respond.OK(c, ProfileOf(user))
}

// Update changes the player's username or avatar.
func (h *MeHandler) Update(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	var body updateMeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.Fail(c, respond.BadRequest("Invalid request body"))
		return
	}

	ctx := c.Request.Context()
	updates := map[string]any{}
	if body.Username != nil {
		username := strings.TrimSpace(*body.Username)
		if n := len(username); n < minUsernameLength || n > maxUsernameLength {
			respond.Fail(c, respond.BadRequest("Username must be between 3 and 32 characters"))
			return
		}
		var taken int64
		if errCount := h.db.WithContext(ctx).Model(&models.User{}).
			Where("username = ? AND id <> ?", username, user.ID).Count(&taken).Error; errCount != nil {
			respond.Fail(c, respond.Internal(errCount))
			return
		}
		if taken > 0 {
			respond.Fail(c, respond.Conflict("Username already in use"))
			return
		}
		updates["username"] = username
	}
	if body.AvatarURL != nil {
		updates["avatar_url"] = strings.TrimSpace(*body.AvatarURL)
	}
	if len(updates) == 0 {
		respond.OK(c, ProfileOf(user))
		return
	}
	updates["updated_at"] = time.Now().UTC()
	if errUpdate := h.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; errUpdate != nil {
		respond.Fail(c, respond.Internal(errUpdate))
		return
	}
	if errReload := h.db.WithContext(ctx).First(&user, user.ID).Error; errReload != nil {
		respond.Fail(c, respond.Internal(errReload))
		return
	}
	respond.OK(c, ProfileOf(user))
}

// Achievements lists the badges the player has earned, newest first.
func (h *MeHandler) Achievements(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	var rows []models.UserAchievement
	if errFind := h.db.WithContext(c.Request.Context()).Preload("Achievement").
		Where("user_id = ?", userID).Order("earned_at DESC, id DESC").Find(&rows).Error; errFind != nil {
		respond.Fail(c, respond.Internal(errFind))
		return
	}
	out := make([]achievementView, 0, len(rows))
	for _, row := range rows {
		if row.Achievement == nil {
			continue
		}
		out = append(out, achievementView{
			ID:             row.Achievement.ID,
			Name:           row.Achievement.Name,
			Description:    row.Achievement.Description,
			BadgeURL:       row.Achievement.BadgeURL,
			PointsRequired: row.Achievement.PointsRequired,
			EarnedAt:       row.EarnedAt,
		})
	}
	respond.OK(c, out)
}

// History lists the player's most recent completed attempts.
func (h *MeHandler) History(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	rows := make([]historyRow, 0, historyLimit)
	if errFind := h.db.WithContext(c.Request.Context()).
		Table("user_challenges AS uc").
		Select("uc.id, uc.challenge_id, COALESCE(ch.title, '') AS challenge_title, uc.score, uc.correct_answers, uc.total_questions, uc.completion_time, uc.completed_at").
		Joins("LEFT JOIN challenges ch ON ch.id = uc.challenge_id").
		Where("uc.user_id = ?", userID).
		Order("uc.completed_at DESC, uc.id DESC").
		Limit(historyLimit).
		Scan(&rows).Error; errFind != nil {
		respond.Fail(c, respond.Internal(errFind))
		return
	}
	respond.OK(c, rows)
}
