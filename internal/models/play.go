package models

import "time"

// UserChallenge is one completed attempt at a challenge. Rows are never updated.
type UserChallenge struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	UserID           uint64    `gorm:"not null;index" json:"user_id"`               // Player.
	ChallengeID      uint64    `gorm:"not null;index" json:"challenge_id"`          // Challenge played.
	Score            int       `gorm:"not null;default:0" json:"score"`             // Points earned.
	CompletionTime   int       `gorm:"not null;default:0" json:"completion_time"`   // Seconds used.
	CorrectAnswers   int       `gorm:"not null;default:0" json:"correct_answers"`   // Correct answer count.
	TotalQuestions   int       `gorm:"not null;default:0" json:"total_questions"`   // Questions in the challenge.
	StreakMultiplier float64   `gorm:"not null;default:1" json:"streak_multiplier"` // Reserved score multiplier.
	CompletedAt      time.Time `gorm:"not null;index" json:"completed_at"`          // Completion timestamp.

	Answers []UserAnswer `gorm:"foreignKey:UserChallengeID" json:"answers,omitempty"` // Per-question outcomes.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
}

// UserAnswer records the outcome of one question within an attempt.
type UserAnswer struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	UserChallengeID uint64  `gorm:"not null;index" json:"user_challenge_id"`  // Owning attempt.
	QuestionID      uint64  `gorm:"not null;index" json:"question_id"`        // Question answered.
	AnswerID        *uint64 `json:"answer_id"`                                // Selected answer.
	IsCorrect       bool    `gorm:"not null;default:false" json:"is_correct"` // Whether the selection was correct.
	TimeSpent       int     `gorm:"not null;default:0" json:"time_spent"`     // Seconds spent on the question.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
}
