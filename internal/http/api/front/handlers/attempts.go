package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/guess2/dailytrivia/internal/http/middleware"
	"github.com/guess2/dailytrivia/internal/http/respond"
	"github.com/guess2/dailytrivia/internal/play"
)

// AttemptHandler runs timed attempts for the signed-in player.
type AttemptHandler struct {
	manager *play.Manager
}

// NewAttemptHandler constructs an AttemptHandler.
func NewAttemptHandler(manager *play.Manager) *AttemptHandler {
	return &AttemptHandler{manager: manager}
}

type answerRequest struct {
	QuestionID uint64 `json:"question_id"`
	AnswerID   uint64 `json:"answer_id"`
}

type attemptResponse struct {
	Attempt  play.View      `json:"attempt"`
	Feedback *play.Feedback `json:"feedback,omitempty"`
	Progress *play.Progress `json:"progress,omitempty"`
}

// Start begins an attempt at challenge :id.
func (h *AttemptHandler) Start(c *gin.Context) {
	challengeID, ok := parseID(c, "id")
	if !ok {
		respond.Fail(c, respond.NotFound("Challenge not found"))
		return
	}
	user, _ := middleware.CurrentUser(c)
	view, err := h.manager.Begin(c.Request.Context(), user, challengeID)
	if err != nil {
		respond.Fail(c, attemptError(err))
		return
	}
	respond.Created(c, attemptResponse{Attempt: view})
}

// Get returns the current state of an attempt.
func (h *AttemptHandler) Get(c *gin.Context) {
	view, progress, err := h.manager.Get(middleware.CurrentUserID(c), c.Param("attemptId"))
	if err != nil {
		respond.Fail(c, attemptError(err))
		return
	}
	respond.OK(c, attemptResponse{Attempt: view, Progress: progress})
}

// Answer submits the answer to the current question.
func (h *AttemptHandler) Answer(c *gin.Context) {
	var body answerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || body.QuestionID == 0 || body.AnswerID == 0 {
		respond.Fail(c, respond.BadRequest("Question ID and Answer ID are required"))
		return
	}
	feedback, view, progress, err := h.manager.Submit(c.Request.Context(), middleware.CurrentUserID(c), c.Param("attemptId"), body.QuestionID, body.AnswerID)
	// A late answer completes the attempt; the player still gets the final view.
	if err != nil && !errors.Is(err, play.ErrTimeUp) {
		respond.Fail(c, attemptError(err))
		return
	}
	respond.OK(c, attemptResponse{Attempt: view, Feedback: &feedback, Progress: progress})
}

// Abandon drops an attempt without recording it.
func (h *AttemptHandler) Abandon(c *gin.Context) {
	if err := h.manager.Abandon(middleware.CurrentUserID(c), c.Param("attemptId")); err != nil {
		respond.Fail(c, attemptError(err))
		return
	}
	respond.Message(c, nil, "Attempt abandoned")
}

func attemptError(err error) error {
	switch {
	case errors.Is(err, play.ErrChallengeNotFound):
		return respond.NotFound("Challenge not found")
	case errors.Is(err, play.ErrSessionNotFound):
		return respond.NotFound("Attempt not found")
	case errors.Is(err, play.ErrPremiumRequired):
		return respond.Forbidden(MsgPremiumRequired)
	case errors.Is(err, play.ErrNoQuestions):
		return respond.BadRequest("Challenge has no questions")
	case errors.Is(err, play.ErrNotInProgress):
		return respond.Conflict("Attempt is not in progress")
	case errors.Is(err, play.ErrWrongQuestion):
		return respond.BadRequest("Question is not the current question")
	case errors.Is(err, play.ErrUnknownAnswer):
		return respond.BadRequest("Answer does not belong to the question")
	default:
		return respond.Internal(err)
	}
}
