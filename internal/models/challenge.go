package models

import (
	"time"

	"gorm.io/datatypes"
)

// Difficulty values accepted for challenges.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// QuestionTypeMultipleChoice is the default question type.
const QuestionTypeMultipleChoice = "multiple_choice"

// ActiveDateLayout is the calendar layout used for challenge dates.
const ActiveDateLayout = "2006-01-02"

// Challenge is a dated set of questions with a time limit.
type Challenge struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	Title       string         `gorm:"type:varchar(255);not null" json:"title"`            // Display title.
	Description string         `gorm:"type:text" json:"description"`                       // Short blurb.
	Difficulty  string         `gorm:"type:varchar(16);not null" json:"difficulty"`        // easy, medium or hard.
	Category    string         `gorm:"type:varchar(64)" json:"category"`                   // Topic label.
	Tags        datatypes.JSON `gorm:"not null;default:'[]'" json:"tags"`                  // Free-form tag list.
	TimeLimit   int            `gorm:"not null;default:300" json:"time_limit"`             // Seconds allowed per attempt.
	IsPremium   bool           `gorm:"not null;default:false" json:"is_premium"`           // Premium-only challenge.
	ActiveDate  string         `gorm:"type:varchar(10);not null;index" json:"active_date"` // Day it is the daily challenge.
	IsActive    bool           `gorm:"not null;default:true" json:"is_active"`             // Whether it can be played.

	Questions []Question `gorm:"foreignKey:ChallengeID" json:"questions,omitempty"` // Ordered questions.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// Question belongs to exactly one challenge.
type Question struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	ChallengeID  uint64 `gorm:"not null;uniqueIndex:idx_questions_challenge_order" json:"challenge_id"`   // Owning challenge.
	QuestionText string `gorm:"type:text;not null" json:"question_text"`                                  // Prompt shown to the player.
	QuestionType string `gorm:"type:varchar(32);not null;default:'multiple_choice'" json:"question_type"` // Presentation type.
	OrderIndex   int    `gorm:"not null;uniqueIndex:idx_questions_challenge_order" json:"order_index"`    // Presentation order.
	PointsValue  int    `gorm:"not null;default:10" json:"points_value"`                                  // Base points when correct.
	Explanation  string `gorm:"type:text" json:"explanation"`                                             // Shown after answering.

	Answers []Answer `gorm:"foreignKey:QuestionID" json:"answers,omitempty"` // Answer choices.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
}

// Answer is one choice for a question.
type Answer struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	QuestionID uint64 `gorm:"not null;index" json:"question_id"`        // Owning question.
	AnswerText string `gorm:"type:text;not null" json:"answer_text"`    // Choice text.
	IsCorrect  bool   `gorm:"not null;default:false" json:"is_correct"` // Correct choice flag.
	OrderIndex int    `gorm:"not null;default:0" json:"order_index"`    // Presentation order.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
}
