package models

import "time"

// User represents a player account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	Email        string `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`   // Login email address.
	Username     string `gorm:"type:varchar(64);not null;uniqueIndex" json:"username"` // Unique display name.
	PasswordHash string `gorm:"type:text;not null" json:"-"`                           // Bcrypt password hash.
	AvatarURL    string `gorm:"type:text" json:"avatar_url"`                           // Optional avatar image.

	TotalPoints   int     `gorm:"not null;default:0;index" json:"total_points"` // Lifetime score.
	GamesPlayed   int     `gorm:"not null;default:0" json:"games_played"`       // Completed attempts.
	AverageScore  int     `gorm:"not null;default:0" json:"average_score"`      // Rounded points per game.
	CurrentStreak int     `gorm:"not null;default:0" json:"current_streak"`     // Consecutive play days.
	BestStreak    int     `gorm:"not null;default:0" json:"best_streak"`        // Longest streak reached.
	LastPlayedOn  *string `gorm:"type:varchar(10)" json:"last_played_on"`       // Calendar day of the last completed attempt.

	IsPremium bool `gorm:"not null;default:false" json:"is_premium"` // Premium entitlement.
	IsAdmin   bool `gorm:"not null;default:false" json:"is_admin"`   // Admin console access.

	StripeCustomerID     *string `gorm:"type:varchar(255)" json:"stripe_customer_id"`           // Processor customer reference.
	StripeSubscriptionID *string `gorm:"type:varchar(255);index" json:"stripe_subscription_id"` // Processor subscription reference.
	SubscriptionStatus   *string `gorm:"type:varchar(32)" json:"subscription_status"`           // Last known processor status.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}
