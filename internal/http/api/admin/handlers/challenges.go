package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/guess2/dailytrivia/internal/catalog"
	"github.com/guess2/dailytrivia/internal/http/respond"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ChallengeHandler authors challenges with their questions and answers.
type ChallengeHandler struct {
	db *gorm.DB
}

// NewChallengeHandler constructs a ChallengeHandler.
func NewChallengeHandler(db *gorm.DB) *ChallengeHandler {
	return &ChallengeHandler{db: db}
}

// challengeListQuery defines filters for the challenge list view.
type challengeListQuery struct {
	Difficulty string `form:"difficulty"`
	Tag        string `form:"tag"`
	Active     string `form:"active"`
}

// List returns every challenge, newest first, with questions and answer keys.
func (h *ChallengeHandler) List(c *gin.Context) {
	var q challengeListQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		respond.Fail(c, respond.BadRequest("Invalid query"))
		return
	}
	filter := catalog.ListFilter{
		Difficulty: strings.ToLower(strings.TrimSpace(q.Difficulty)),
		Tag:        q.Tag,
	}
	if raw := strings.TrimSpace(q.Active); raw != "" {
		active, errParse := strconv.ParseBool(raw)
		if errParse != nil {
			respond.Fail(c, respond.BadRequest("active must be true or false"))
			return
		}
		filter.Active = &active
	}
	rows, err := catalog.List(c.Request.Context(), h.db, filter)
	if err != nil {
		respond.Fail(c, respond.Internal(err))
		return
	}
	respond.OK(c, rows)
}

// Get returns one challenge including correct answers.
func (h *ChallengeHandler) Get(c *gin.Context) {
	id, ok := challengeID(c)
	if !ok {
		return
	}
	challenge, err := catalog.Load(c.Request.Context(), h.db, id)
	if err != nil {
		respond.Fail(c, catalogError(err))
		return
	}
	respond.OK(c, challenge)
}

// Create stores a challenge with its questions in one transaction.
func (h *ChallengeHandler) Create(c *gin.Context) {
	var body catalog.ChallengeDraft
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.Fail(c, respond.BadRequest("Invalid request body"))
		return
	}
	challenge, err := catalog.Create(c.Request.Context(), h.db, body)
	if err != nil {
		respond.Fail(c, catalogError(err))
		return
	}
	log.WithFields(log.Fields{"challenge_id": challenge.ID, "questions": len(challenge.Questions)}).Info("admin: challenge created")
	respond.CreatedMessage(c, challenge, "Challenge created successfully")
}

// Update patches a challenge. A questions array replaces every question.
func (h *ChallengeHandler) Update(c *gin.Context) {
	id, ok := challengeID(c)
	if !ok {
		return
	}
	var body catalog.Patch
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.Fail(c, respond.BadRequest("Invalid request body"))
		return
	}
	challenge, err := catalog.Update(c.Request.Context(), h.db, id, body)
	if err != nil {
		respond.Fail(c, catalogError(err))
		return
	}
	log.WithField("challenge_id", id).Info("admin: challenge updated")
	respond.Message(c, challenge, "Challenge updated successfully")
}

// Delete removes a challenge with its questions and answers.
func (h *ChallengeHandler) Delete(c *gin.Context) {
	id, ok := challengeID(c)
	if !ok {
		return
	}
	if err := catalog.Delete(c.Request.Context(), h.db, id); err != nil {
		respond.Fail(c, catalogError(err))
		return
	}
	log.WithField("challenge_id", id).Info("admin: challenge deleted")
	respond.Message(c, nil, "Challenge deleted successfully")
}

func challengeID(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil || id == 0 {
		respond.Fail(c, respond.NotFound("Challenge not found"))
		return 0, false
	}
	return id, true
}

func catalogError(err error) error {
	var invalid *catalog.ValidationError
	switch {
	case errors.As(err, &invalid):
		return respond.BadRequest(invalid.Error())
	case errors.Is(err, catalog.ErrInvalid):
		return respond.BadRequest("Invalid challenge")
	case errors.Is(err, catalog.ErrNotFound):
		return respond.NotFound("Challenge not found")
	default:
		return respond.Internal(err)
	}
}
