package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guess2/dailytrivia/internal/http/respond"
	"github.com/guess2/dailytrivia/internal/models"
	"gorm.io/gorm"
)

const (
	activeWindow  = 30 * 24 * time.Hour
	activityLimit = 50
)

// StatsHandler serves the console dashboard.
type StatsHandler struct {
	db    *gorm.DB
	nowFn func() time.Time
}

// NewStatsHandler constructs a StatsHandler; nowFn defaults to time.Now.
func NewStatsHandler(db *gorm.DB, nowFn func() time.Time) *StatsHandler {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &StatsHandler{db: db, nowFn: nowFn}
}

type statsResponse struct {
	TotalUsers      int64 `json:"totalUsers"`
	ActiveUsers     int64 `json:"activeUsers"`
	PremiumUsers    int64 `json:"premiumUsers"`
	TotalChallenges int64 `json:"totalChallenges"`
	TotalGames      int64 `json:"totalGames"`
}

// Stats returns aggregate counts. Active users are distinct players of the last 30 days.
func (h *StatsHandler) Stats(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context())
	var out statsResponse
	if errCount := q.Model(&models.User{}).Count(&out.TotalUsers).Error; errCount != nil {
		respond.Fail(c, respond.Internal(errCount))
		return
	}
	since := h.nowFn().UTC().Add(-activeWindow)
	if errCount := q.Model(&models.UserChallenge{}).Where("completed_at >= ?", since).
		Distinct("user_id").Count(&out.ActiveUsers).Error; errCount != nil {
		respond.Fail(c, respond.Internal(errCount))
		return
	}
	if errCount := q.Model(&models.User{}).Where("is_premium = ?", true).Count(&out.PremiumUsers).Error; errCount != nil {
		respond.Fail(c, respond.Internal(errCount))
		return
	}
	if errCount := q.Model(&models.Challenge{}).Count(&out.TotalChallenges).Error; errCount != nil {
		respond.Fail(c, respond.Internal(errCount))
		return
	}
	if errCount := q.Model(&models.UserChallenge{}).Count(&out.TotalGames).Error; errCount != nil {
		respond.Fail(c, respond.Internal(errCount))
		return
	}
	respond.OK(c, out)
}

// activityRow defines the query result row for the activity feed.
type activityRow struct {
	ID             uint64    `gorm:"column:id"`
	Score          int       `gorm:"column:score"`
	CorrectAnswers int       `gorm:"column:correct_answers"`
	TotalQuestions int       `gorm:"column:total_questions"`
	CompletedAt    time.Time `gorm:"column:completed_at"`
	UserID         uint64    `gorm:"column:user_id"`
	Username       *string   `gorm:"column:username"`
	ChallengeID    uint64    `gorm:"column:challenge_id"`
	Title          *string   `gorm:"column:title"`
}

type activityUser struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
}

type activityChallenge struct {
	ID    uint64 `json:"id"`
	Title string `json:"title"`
}

type activityEntry struct {
	ID             uint64            `json:"id"`
	Score          int               `json:"score"`
	CorrectAnswers int               `json:"correct_answers"`
	TotalQuestions int               `json:"total_questions"`
	CompletedAt    time.Time         `json:"completed_at"`
	User           activityUser      `json:"users"`
	Challenge      activityChallenge `json:"challenges"`
}

// Activity returns the 50 most recent plays with user and challenge summaries.
// Plays of deleted challenges keep an empty title.
func (h *StatsHandler) Activity(c *gin.Context) {
	var rows []activityRow
	if errFind := h.db.WithContext(c.Request.Context()).
		Table("user_challenges AS uc").
		Select("uc.id, uc.score, uc.correct_answers, uc.total_questions, uc.completed_at, uc.user_id, u.username, uc.challenge_id, ch.title").
		Joins("LEFT JOIN users u ON u.id = uc.user_id").
		Joins("LEFT JOIN challenges ch ON ch.id = uc.challenge_id").
		Order("uc.completed_at DESC, uc.id DESC").
		Limit(activityLimit).
		Scan(&rows).Error; errFind != nil {
		respond.Fail(c, respond.Internal(errFind))
		return
	}
	out := make([]activityEntry, 0, len(rows))
	for _, row := range rows {
		entry := activityEntry{
			ID:             row.ID,
			Score:          row.Score,
			CorrectAnswers: row.CorrectAnswers,
			TotalQuestions: row.TotalQuestions,
			CompletedAt:    row.CompletedAt,
			User:           activityUser{ID: row.UserID},
			Challenge:      activityChallenge{ID: row.ChallengeID},
		}
		if row.Username != nil {
			entry.User.Username = *row.Username
		}
		if row.Title != nil {
			entry.Challenge.Title = *row.Title
		}
		out = append(out, entry)
	}
	respond.OK(c, out)
}
