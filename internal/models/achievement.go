package models

import "time"

// Achievement is a badge granted once a player's total points reach a threshold.
type Achievement struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	Name           string `gorm:"type:varchar(128);not null;uniqueIndex" json:"name"` // Unique badge name.
	Description    string `gorm:"type:text" json:"description"`                       // Badge description.
	BadgeURL       string `gorm:"type:text" json:"badge_url"`                         // Badge image.
	PointsRequired int    `gorm:"not null;default:0" json:"points_required"`          // Total points threshold.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
}

// UserAchievement links a player to an earned achievement.
type UserAchievement struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	UserID        uint64       `gorm:"not null;uniqueIndex:idx_user_achievements_pair" json:"user_id"`        // Player.
	AchievementID uint64       `gorm:"not null;uniqueIndex:idx_user_achievements_pair" json:"achievement_id"` // Achievement earned.
	Achievement   *Achievement `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`                 // Loaded achievement.
	EarnedAt      time.Time    `gorm:"not null" json:"earned_at"`                                             // Grant timestamp.
}
