package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/guess2/dailytrivia/internal/http/respond"
	"github.com/guess2/dailytrivia/internal/leaderboard"
)

// LeaderboardHandler serves the ranked boards.
type LeaderboardHandler struct {
	service *leaderboard.Service
}

// NewLeaderboardHandler constructs a LeaderboardHandler.
func NewLeaderboardHandler(service *leaderboard.Service) *LeaderboardHandler {
	return &LeaderboardHandler{service: service}
}

// Global returns the all-time top players.
func (h *LeaderboardHandler) Global(c *gin.Context) {
	entries, cached, err := h.service.Global(c.Request.Context())
	if err != nil {
		respond.Fail(c, respond.Internal(err))
		return
	}
	respond.Cached(c, entries, cached)
}

// Weekly returns the top players of the trailing seven days.
func (h *LeaderboardHandler) Weekly(c *gin.Context) {
	entries, cached, err := h.service.Weekly(c.Request.Context())
	if err != nil {
		respond.Fail(c, respond.Internal(err))
		return
	}
	respond.Cached(c, entries, cached)
}

// UserRank returns one player's global standing.
func (h *LeaderboardHandler) UserRank(c *gin.Context) {
	userID, ok := parseID(c, "userId")
	if !ok {
		respond.Fail(c, respond.NotFound("User not found"))
		return
	}
	rank, cached, err := h.service.UserRank(c.Request.Context(), userID)
	if errors.Is(err, leaderboard.ErrUserNotFound) {
		respond.Fail(c, respond.NotFound("User not found"))
		return
	}
	if err != nil {
		respond.Fail(c, respond.Internal(err))
		return
	}
	respond.Cached(c, rank, cached)
}

// Refresh drops every cached board.
func (h *LeaderboardHandler) Refresh(c *gin.Context) {
	if err := h.service.Invalidate(c.Request.Context()); err != nil {
		respond.Fail(c, respond.Internal(err))
		return
	}
	respond.Message(c, nil, "Leaderboard cache refreshed")
}
