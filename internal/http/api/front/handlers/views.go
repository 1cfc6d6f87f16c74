package handlers

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guess2/dailytrivia/internal/models"
)

// Profile is the account view returned to its owner.
type Profile struct {
	ID            uint64    `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	AvatarURL     string    `json:"avatar_url"`
	TotalPoints   int       `json:"total_points"`
	GamesPlayed   int       `json:"games_played"`
	AverageScore  int       `json:"average_score"`
	CurrentStreak int       `json:"current_streak"`
	BestStreak    int       `json:"best_streak"`
	LastPlayedOn  *string   `json:"last_played_on"`
	IsPremium     bool      `json:"is_premium"`
	IsAdmin       bool      `json:"is_admin"`
	CreatedAt     time.Time `json:"created_at"`
}

// ProfileOf builds the owner view of user.
func ProfileOf(user models.User) Profile {
	return Profile{
		ID:            user.ID,
		Email:         user.Email,
		Username:      user.Username,
		AvatarURL:     user.AvatarURL,
		TotalPoints:   user.TotalPoints,
		GamesPlayed:   user.GamesPlayed,
		AverageScore:  user.AverageScore,
		CurrentStreak: user.CurrentStreak,
		BestStreak:    user.BestStreak,
		LastPlayedOn:  user.LastPlayedOn,
		IsPremium:     user.IsPremium,
		IsAdmin:       user.IsAdmin,
		CreatedAt:     user.CreatedAt,
	}
}

// ChallengeSummary is a challenge without its questions.
type ChallengeSummary struct {
	ID          uint64   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Difficulty  string   `json:"difficulty"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	TimeLimit   int      `json:"time_limit"`
	IsPremium   bool     `json:"is_premium"`
	ActiveDate  string   `json:"active_date"`
}

// SummaryOf builds the question-free view of challenge.
func SummaryOf(challenge models.Challenge) ChallengeSummary {
	return ChallengeSummary{
		ID:          challenge.ID,
		Title:       challenge.Title,
		Description: challenge.Description,
		Difficulty:  challenge.Difficulty,
		Category:    challenge.Category,
		Tags:        decodeTags(challenge.Tags),
		TimeLimit:   challenge.TimeLimit,
		IsPremium:   challenge.IsPremium,
		ActiveDate:  challenge.ActiveDate,
	}
}

func decodeTags(raw []byte) []string {
	tags := []string{}
	if len(raw) == 0 {
		return tags
	}
	if errUnmarshal := json.Unmarshal(raw, &tags); errUnmarshal != nil {
		return []string{}
	}
	return tags
}

func parseID(c *gin.Context, name string) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if errParse != nil || id == 0 {
		return 0, false
	}
	return id, true
}
