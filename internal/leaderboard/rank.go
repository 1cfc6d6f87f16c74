package leaderboard

import (
	"math"
	"sort"
	"time"
)

// MaxEntries bounds both leaderboards.
const MaxEntries = 100

// WeeklyWindow is the trailing window aggregated by the weekly board.
const WeeklyWindow = 7 * 24 * time.Hour

// UserTotals is the running total stored on a user row.
type UserTotals struct {
	ID          uint64
	Username    string
	TotalPoints int
	GamesPlayed int
}

// Play is one completed attempt as seen by the weekly aggregation.
type Play struct {
	UserID      uint64
	Username    string
	Score       int
	CompletedAt time.Time
}

// GlobalEntry is one row of the all-time board.
type GlobalEntry struct {
	UserID       uint64 `json:"user_id"`
	Username     string `json:"username"`
	TotalPoints  int    `json:"total_points"`
	GamesPlayed  int    `json:"games_played"`
	AverageScore int    `json:"average_score"`
	Rank         int    `json:"rank"`
}

// WeeklyEntry is one row of the trailing-window board.
type WeeklyEntry struct {
	UserID       uint64 `json:"user_id"`
	Username     string `json:"username"`
	TotalScore   int    `json:"total_score"`
	GamesPlayed  int    `json:"games_played"`
	AverageScore int    `json:"average_score"`
	Rank         int    `json:"rank"`
}

// UserRank is a single user's standing on the all-time board.
type UserRank struct {
	UserID       uint64 `json:"user_id"`
	Username     string `json:"username"`
	TotalPoints  int    `json:"total_points"`
	GamesPlayed  int    `json:"games_played"`
	AverageScore int    `json:"average_score"`
	GlobalRank   int64  `json:"global_rank"`
}

// AverageScore returns round(total/games), or 0 when no games were played.
func AverageScore(total, games int) int {
	if games <= 0 {
		return 0
	}
	return int(math.Round(float64(total) / float64(games)))
}

// RankGlobal sorts rows by total points descending, keeping input order for ties,
// and assigns 1-based ranks to at most limit entries.
func RankGlobal(rows []UserTotals, limit int) []GlobalEntry {
	sorted := make([]UserTotals, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TotalPoints > sorted[j].TotalPoints
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]GlobalEntry, 0, len(sorted))
	for i, row := range sorted {
		out = append(out, GlobalEntry{
			UserID:       row.ID,
			Username:     row.Username,
			TotalPoints:  row.TotalPoints,
			GamesPlayed:  row.GamesPlayed,
			AverageScore: AverageScore(row.TotalPoints, row.GamesPlayed),
			Rank:         i + 1,
		})
	}
	return out
}

// AggregateWeekly groups plays completed at or after since by user, summing scores.
// Users are ordered by total score descending; ties keep the order in which each
// user's first play appears in plays.
func AggregateWeekly(plays []Play, since time.Time, limit int) []WeeklyEntry {
	index := make(map[uint64]int)
	grouped := make([]WeeklyEntry, 0)
	for _, play := range plays {
		if play.CompletedAt.Before(since) {
			continue
		}
		pos, ok := index[play.UserID]
		if !ok {
			pos = len(grouped)
			index[play.UserID] = pos
			grouped = append(grouped, WeeklyEntry{UserID: play.UserID, Username: play.Username})
		}
		grouped[pos].TotalScore += play.Score
		grouped[pos].GamesPlayed++
	}

	sort.SliceStable(grouped, func(i, j int) bool {
		return grouped[i].TotalScore > grouped[j].TotalScore
	})
	if limit > 0 && len(grouped) > limit {
		grouped = grouped[:limit]
	}
	for i := range grouped {
		grouped[i].AverageScore = AverageScore(grouped[i].TotalScore, grouped[i].GamesPlayed)
		grouped[i].Rank = i + 1
	}
	return grouped
}
