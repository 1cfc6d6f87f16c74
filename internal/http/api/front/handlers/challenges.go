package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guess2/dailytrivia/internal/http/middleware"
	"github.com/guess2/dailytrivia/internal/http/respond"
	"github.com/guess2/dailytrivia/internal/models"
	"github.com/guess2/dailytrivia/internal/play"
	"gorm.io/gorm"
)

// MsgPremiumRequired is returned when a free player opens a premium challenge.
const MsgPremiumRequired = "Premium subscription required"

// ChallengeHandler serves challenges to players.
type ChallengeHandler struct {
	db    *gorm.DB
	nowFn func() time.Time
}

// NewChallengeHandler constructs a ChallengeHandler.
func NewChallengeHandler(db *gorm.DB, nowFn func() time.Time) *ChallengeHandler {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &ChallengeHandler{db: db, nowFn: nowFn}
}

type dailyView struct {
	ChallengeSummary
	QuestionCount int  `json:"question_count"`
	Locked        bool `json:"locked"`
	Played        bool `json:"played"`
}

type challengeView struct {
	ChallengeSummary
	Questions []play.QuestionView `json:"questions"`
}

// Daily returns today's challenge summary. Guests are served a sample challenge.
func (h *ChallengeHandler) Daily(c *gin.Context) {
	ctx := c.Request.Context()
	today := h.nowFn().UTC().Format(models.ActiveDateLayout)

	var viewer *models.User
	if user, ok := middleware.CurrentUser(c); ok {
		viewer = &user
	}
	challenge, errDaily := play.DailyChallenge(ctx, h.db, today, viewer)
	if errors.Is(errDaily, play.ErrChallengeNotFound) {
		respond.Fail(c, respond.NotFound("No challenge available"))
		return
	}
	if errDaily != nil {
		respond.Fail(c, respond.Internal(errDaily))
		return
	}

	var questions int64
	if errCount := h.db.WithContext(ctx).Model(&models.Question{}).Where("challenge_id = ?", challenge.ID).Count(&questions).Error; errCount != nil {
		respond.Fail(c, respond.Internal(errCount))
		return
	}
	view := dailyView{ChallengeSummary: SummaryOf(challenge), QuestionCount: int(questions)}
	if viewer != nil {
		view.Locked = !play.CanPlay(*viewer, challenge)
		var plays int64
		if errPlayed := h.db.WithContext(ctx).Model(&models.UserChallenge{}).
			Where("user_id = ? AND challenge_id = ?", viewer.ID, challenge.ID).Count(&plays).Error; errPlayed != nil {
			respond.Fail(c, respond.Internal(errPlayed))
			return
		}
		view.Played = plays > 0
	} else {
		view.Locked = challenge.IsPremium
	}
	respond.OK(c, view)
}

// Get returns a playable challenge with its questions and answer choices.
// Correctness flags are never included.
func (h *ChallengeHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		respond.Fail(c, respond.NotFound("Challenge not found"))
		return
	}
	challenge, errLoad := play.LoadChallenge(c.Request.Context(), h.db, id)
	if errors.Is(errLoad, play.ErrChallengeNotFound) {
		respond.Fail(c, respond.NotFound("Challenge not found"))
		return
	}
	if errLoad != nil {
		respond.Fail(c, respond.Internal(errLoad))
		return
	}
	user, _ := middleware.CurrentUser(c)
	if !play.CanPlay(user, challenge) {
		respond.Fail(c, respond.Forbidden(MsgPremiumRequired))
		return
	}
	view := challengeView{ChallengeSummary: SummaryOf(challenge), Questions: make([]play.QuestionView, 0, len(challenge.Questions))}
	for _, q := range challenge.Questions {
		view.Questions = append(view.Questions, play.PublicQuestion(q))
	}
	respond.OK(c, view)
}
