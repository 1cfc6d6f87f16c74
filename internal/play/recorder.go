package play

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/guess2/dailytrivia/internal/db"
	"github.com/guess2/dailytrivia/internal/leaderboard"
	"github.com/guess2/dailytrivia/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrPlayerNotFound is returned when the recorded player no longer exists.
var ErrPlayerNotFound = errors.New("play: player not found")

// Progress is the player's aggregate state after a recorded attempt.
type Progress struct {
	PlayID          uint64               `json:"play_id"`
	TotalPoints     int                  `json:"total_points"`
	GamesPlayed     int                  `json:"games_played"`
	AverageScore    int                  `json:"average_score"`
	CurrentStreak   int                  `json:"current_streak"`
	BestStreak      int                  `json:"best_streak"`
	NewAchievements []models.Achievement `json:"new_achievements"`
}

// Recorder persists completed attempts.
type Recorder interface {
	Record(ctx context.Context, userID uint64, result Result) (Progress, error)
}

// GormRecorder stores attempts and player stats in one transaction.
type GormRecorder struct {
	db    *gorm.DB
	nowFn func() time.Time
}

// NewGormRecorder constructs a GormRecorder.
func NewGormRecorder(conn *gorm.DB, nowFn func() time.Time) *GormRecorder {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &GormRecorder{db: conn, nowFn: nowFn}
}

// Record inserts the play record with its answers, then updates the player's totals,
// streak and achievements.
func (r *GormRecorder) Record(ctx context.Context, userID uint64, result Result) (Progress, error) {
	completedAt := result.CompletedAt.UTC()
	if result.CompletedAt.IsZero() {
		completedAt = r.nowFn().UTC()
	}

	answers := make([]models.UserAnswer, 0, len(result.Outcomes))
	for _, outcome := range result.Outcomes {
		answerID := outcome.AnswerID
		answers = append(answers, models.UserAnswer{
			QuestionID: outcome.QuestionID,
			AnswerID:   &answerID,
			IsCorrect:  outcome.IsCorrect,
			TimeSpent:  outcome.Seconds,
		})
	}
	play := models.UserChallenge{
		UserID:           userID,
		ChallengeID:      result.ChallengeID,
		Score:            result.Score,
		CompletionTime:   result.CompletionTime,
		CorrectAnswers:   result.CorrectAnswers,
		TotalQuestions:   result.TotalQuestions,
		StreakMultiplier: 1,
		CompletedAt:      completedAt,
		Answers:          answers,
	}

	var progress Progress
	errTx := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		query := tx
		if !db.IsSQLite(tx) {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if errFind := query.First(&user, userID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrPlayerNotFound
			}
			return fmt.Errorf("load player: %w", errFind)
		}

		if errCreate := tx.Create(&play).Error; errCreate != nil {
			return fmt.Errorf("insert play: %w", errCreate)
		}

		today := completedAt.Format(models.ActiveDateLayout)
		user.TotalPoints += result.Score
		user.GamesPlayed++
		user.AverageScore = leaderboard.AverageScore(user.TotalPoints, user.GamesPlayed)
		user.CurrentStreak = NextStreak(user.LastPlayedOn, today, user.CurrentStreak)
		if user.CurrentStreak > user.BestStreak {
			user.BestStreak = user.CurrentStreak
		}
		if errUpdate := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"total_points":   user.TotalPoints,
			"games_played":   user.GamesPlayed,
			"average_score":  user.AverageScore,
			"current_streak": user.CurrentStreak,
			"best_streak":    user.BestStreak,
			"last_played_on": today,
		}).Error; errUpdate != nil {
			return fmt.Errorf("update stats: %w", errUpdate)
		}

		earned, errGrant := grantAchievements(tx, user.ID, user.TotalPoints, completedAt)
		if errGrant != nil {
			return errGrant
		}
		progress = Progress{
			PlayID:          play.ID,
			TotalPoints:     user.TotalPoints,
			GamesPlayed:     user.GamesPlayed,
			AverageScore:    user.AverageScore,
			CurrentStreak:   user.CurrentStreak,
			BestStreak:      user.BestStreak,
			NewAchievements: earned,
		}
		return nil
	})
	if errTx != nil {
		if errors.Is(errTx, ErrPlayerNotFound) {
			return Progress{}, errTx
		}
		return Progress{}, fmt.Errorf("play: record: %w", errTx)
	}
	return progress, nil
}

// NextStreak returns the streak after playing on today, given the last play day.
// Playing twice on one day keeps the streak, playing on the following day extends
// it, and any gap restarts it at 1.
func NextStreak(lastPlayedOn *string, today string, current int) int {
	if lastPlayedOn == nil || *lastPlayedOn == "" {
		return 1
	}
	last, errLast := time.Parse(models.ActiveDateLayout, *lastPlayedOn)
	day, errDay := time.Parse(models.ActiveDateLayout, today)
	if errLast != nil || errDay != nil {
		return 1
	}
	switch {
	case last.Equal(day):
		if current < 1 {
			return 1
		}
		return current
	case last.AddDate(0, 0, 1).Equal(day):
		return current + 1
	default:
		return 1
	}
}

func grantAchievements(tx *gorm.DB, userID uint64, totalPoints int, now time.Time) ([]models.Achievement, error) {
	var eligible []models.Achievement
	if err := tx.Where("points_required <= ?", totalPoints).Order("points_required ASC, id ASC").Find(&eligible).Error; err != nil {
		return nil, fmt.Errorf("load achievements: %w", err)
	}
	if len(eligible) == 0 {
		return []models.Achievement{}, nil
	}
	var owned []uint64
	if err := tx.Model(&models.UserAchievement{}).Where("user_id = ?", userID).Pluck("achievement_id", &owned).Error; err != nil {
		return nil, fmt.Errorf("load earned achievements: %w", err)
	}
	have := make(map[uint64]struct{}, len(owned))
	for _, id := range owned {
		have[id] = struct{}{}
	}

	earned := make([]models.Achievement, 0)
	for _, achievement := range eligible {
		if _, ok := have[achievement.ID]; ok {
			continue
		}
		row := models.UserAchievement{UserID: userID, AchievementID: achievement.ID, EarnedAt: now}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return nil, fmt.Errorf("grant achievement: %w", err)
		}
		earned = append(earned, achievement)
	}
	return earned, nil
}
