package play

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/guess2/dailytrivia/internal/models"
	"gorm.io/gorm"
)

// SampleTitlePrefix marks the challenges offered to guests.
const SampleTitlePrefix = "Sample"

// DailyChallenge picks the challenge to show for today. Signed-in players get
// today's active challenge, else the latest past non-premium one, else the next
// upcoming one. Guests get a random sample challenge before the same fallbacks.
func DailyChallenge(ctx context.Context, conn *gorm.DB, today string, user *models.User) (models.Challenge, error) {
	q := conn.WithContext(ctx)
	if user == nil {
		if challenge, ok, err := randomSample(q); err != nil || ok {
			return challenge, err
		}
	} else {
		var todays models.Challenge
		err := q.Where("is_active = ? AND active_date = ?", true, today).Order("id ASC").Take(&todays).Error
		if err == nil {
			return todays, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Challenge{}, fmt.Errorf("play: daily challenge: %w", err)
		}
	}

	var latest models.Challenge
	err := q.Where("is_active = ? AND is_premium = ? AND active_date <= ?", true, false, today).
		Order("active_date DESC, id DESC").Take(&latest).Error
	if err == nil {
		return latest, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Challenge{}, fmt.Errorf("play: daily challenge: %w", err)
	}

	var upcoming models.Challenge
	err = q.Where("is_active = ? AND active_date > ?", true, today).
		Order("active_date ASC, id ASC").Take(&upcoming).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Challenge{}, ErrChallengeNotFound
	}
	if err != nil {
		return models.Challenge{}, fmt.Errorf("play: daily challenge: %w", err)
	}
	return upcoming, nil
}

func randomSample(q *gorm.DB) (models.Challenge, bool, error) {
	var samples []models.Challenge
	if err := q.Where("is_active = ? AND is_premium = ? AND title LIKE ?", true, false, SampleTitlePrefix+"%").
		Order("id ASC").Find(&samples).Error; err != nil {
		return models.Challenge{}, false, fmt.Errorf("play: sample challenge: %w", err)
	}
	if len(samples) == 0 {
		return models.Challenge{}, false, nil
	}
	return samples[rand.IntN(len(samples))], true, nil
}
