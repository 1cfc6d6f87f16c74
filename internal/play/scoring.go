// Package play runs timed challenge attempts and records their results.
package play

import "time"

const (
	// SpeedBonusWindow is the answer time under which a correct answer earns SpeedBonus.
	SpeedBonusWindow = 30 * time.Second
	// SpeedBonus is the extra points for a fast correct answer.
	SpeedBonus = 5
)

// ScoreAnswer returns the points earned for one answer.
func ScoreAnswer(correct bool, points int, timeSpent time.Duration) int {
	if !correct {
		return 0
	}
	if timeSpent < SpeedBonusWindow {
		return points + SpeedBonus
	}
	return points
}

// wholeSeconds floors d to seconds, never below zero.
func wholeSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}
