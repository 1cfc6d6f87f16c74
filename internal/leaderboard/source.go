package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/guess2/dailytrivia/internal/models"
	"gorm.io/gorm"
)

// ErrUserNotFound is returned when a rank is requested for an unknown user.
var ErrUserNotFound = errors.New("leaderboard: user not found")

// Source reads the raw standings from the store.
type Source interface {
	// TopUsers returns users ordered by total_points DESC, created_at ASC, id ASC.
	TopUsers(ctx context.Context, limit int) ([]UserTotals, error)
	// PlaysSince returns plays completed at or after since ordered by completed_at, id.
	PlaysSince(ctx context.Context, since time.Time) ([]Play, error)
	// User returns one user's totals or ErrUserNotFound.
	User(ctx context.Context, id uint64) (UserTotals, error)
	// CountAbove counts users with strictly more total points.
	CountAbove(ctx context.Context, points int) (int64, error)
}

// GormSource implements Source over the relational store.
type GormSource struct {
	db *gorm.DB
}

// NewGormSource constructs a GormSource.
func NewGormSource(db *gorm.DB) *GormSource {
	return &GormSource{db: db}
}

// TopUsers implements Source.
func (s *GormSource) TopUsers(ctx context.Context, limit int) ([]UserTotals, error) {
	var rows []models.User
	q := s.db.WithContext(ctx).
		Select("id", "username", "total_points", "games_played", "created_at").
		Order("total_points DESC, created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if errFind := q.Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("leaderboard: top users: %w", errFind)
	}
	out := make([]UserTotals, 0, len(rows))
	for _, row := range rows {
		out = append(out, totalsFromUser(row))
	}
	return out, nil
}

// PlaysSince implements Source.
func (s *GormSource) PlaysSince(ctx context.Context, since time.Time) ([]Play, error) {
	var records []models.UserChallenge
	if errFind := s.db.WithContext(ctx).
		Select("id", "user_id", "score", "completed_at").
		Where("completed_at >= ?", since.UTC()).
		Order("completed_at ASC, id ASC").
		Find(&records).Error; errFind != nil {
		return nil, fmt.Errorf("leaderboard: plays since: %w", errFind)
	}
	if len(records) == 0 {
		return []Play{}, nil
	}

	userIDs := make([]uint64, 0, len(records))
	seen := make(map[uint64]struct{}, len(records))
	for _, record := range records {
		if _, ok := seen[record.UserID]; ok {
			continue
		}
		seen[record.UserID] = struct{}{}
		userIDs = append(userIDs, record.UserID)
	}
	var users []models.User
	if errUsers := s.db.WithContext(ctx).Select("id", "username").Where("id IN ?", userIDs).Find(&users).Error; errUsers != nil {
		return nil, fmt.Errorf("leaderboard: load usernames: %w", errUsers)
	}
	names := make(map[uint64]string, len(users))
	for _, user := range users {
		names[user.ID] = user.Username
	}

	out := make([]Play, 0, len(records))
	for _, record := range records {
		out = append(out, Play{
			UserID:      record.UserID,
			Username:    names[record.UserID],
			Score:       record.Score,
			CompletedAt: record.CompletedAt,
		})
	}
	return out, nil
}

// User implements Source.
func (s *GormSource) User(ctx context.Context, id uint64) (UserTotals, error) {
	var user models.User
	if errFind := s.db.WithContext(ctx).Select("id", "username", "total_points", "games_played").First(&user, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return UserTotals{}, ErrUserNotFound
		}
		return UserTotals{}, fmt.Errorf("leaderboard: load user: %w", errFind)
	}
	return totalsFromUser(user), nil
}

// CountAbove implements Source.
func (s *GormSource) CountAbove(ctx context.Context, points int) (int64, error) {
	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.User{}).Where("total_points > ?", points).Count(&count).Error; errCount != nil {
		return 0, fmt.Errorf("leaderboard: count above: %w", errCount)
	}
	return count, nil
}

func totalsFromUser(user models.User) UserTotals {
	return UserTotals{
		ID:          user.ID,
		Username:    user.Username,
		TotalPoints: user.TotalPoints,
		GamesPlayed: user.GamesPlayed,
	}
}
