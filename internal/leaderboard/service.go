// Package leaderboard computes ranked standings with read-through caching.
package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/guess2/dailytrivia/internal/cache"
	"github.com/guess2/dailytrivia/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// Cache keys and lifetimes.
const (
	KeyPrefix = "leaderboard:"
	KeyGlobal = KeyPrefix + "global"
	KeyWeekly = KeyPrefix + "weekly"

	ListTTL = 300 * time.Second
	RankTTL = 60 * time.Second
)

// UserRankKey returns the cache key for a user's rank.
func UserRankKey(userID uint64) string {
	return fmt.Sprintf("%suser:%d:rank", KeyPrefix, userID)
}

// Service answers leaderboard reads.
type Service struct {
	source Source
	cache  cache.Cache
	nowFn  func() time.Time
}

// NewService constructs a Service; a nil cache behaves as NoCache.
func NewService(source Source, c cache.Cache, nowFn func() time.Time) *Service {
	if c == nil {
		c = cache.NoCache{}
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Service{source: source, cache: c, nowFn: nowFn}
}

// Global returns the top users by lifetime points. cached reports a cache hit.
func (s *Service) Global(ctx context.Context) (entries []GlobalEntry, cached bool, err error) {
	return readThrough(ctx, s.cache, "global", KeyGlobal, ListTTL, func() ([]GlobalEntry, error) {
		rows, errTop := s.source.TopUsers(ctx, MaxEntries)
		if errTop != nil {
			return nil, errTop
		}
		return RankGlobal(rows, MaxEntries), nil
	})
}

// Weekly returns the top users by points earned in the trailing seven days.
func (s *Service) Weekly(ctx context.Context) (entries []WeeklyEntry, cached bool, err error) {
	return readThrough(ctx, s.cache, "weekly", KeyWeekly, ListTTL, func() ([]WeeklyEntry, error) {
		since := s.nowFn().UTC().Add(-WeeklyWindow)
		plays, errPlays := s.source.PlaysSince(ctx, since)
		if errPlays != nil {
			return nil, errPlays
		}
		return AggregateWeekly(plays, since, MaxEntries), nil
	})
}

// UserRank returns a user's global standing or ErrUserNotFound.
func (s *Service) UserRank(ctx context.Context, userID uint64) (rank UserRank, cached bool, err error) {
	return readThrough(ctx, s.cache, "user", UserRankKey(userID), RankTTL, func() (UserRank, error) {
		user, errUser := s.source.User(ctx, userID)
		if errUser != nil {
			return UserRank{}, errUser
		}
		above, errCount := s.source.CountAbove(ctx, user.TotalPoints)
		if errCount != nil {
			return UserRank{}, errCount
		}
		return UserRank{
			UserID:       user.ID,
			Username:     user.Username,
			TotalPoints:  user.TotalPoints,
			GamesPlayed:  user.GamesPlayed,
			AverageScore: AverageScore(user.TotalPoints, user.GamesPlayed),
			GlobalRank:   above + 1,
		}, nil
	})
}

// Invalidate drops every cached leaderboard entry.
func (s *Service) Invalidate(ctx context.Context) error {
	if errDelete := s.cache.DeletePrefix(ctx, KeyPrefix); errDelete != nil {
		return fmt.Errorf("leaderboard: invalidate: %w", errDelete)
	}
	log.Info("leaderboard: cache invalidated")
	return nil
}

// readThrough serves key from c when possible, otherwise computes and stores it.
// Cache failures are logged and never fail the read.
func readThrough[T any](ctx context.Context, c cache.Cache, board, key string, ttl time.Duration, compute func() (T, error)) (T, bool, error) {
	raw, hit, errGet := c.Get(ctx, key)
	switch {
	case errGet != nil:
		metrics.LeaderboardCacheTotal.WithLabelValues(board, "error").Inc()
		log.WithError(errGet).WithField("key", key).Warn("leaderboard: cache read failed")
	case hit:
		var cachedValue T
		errUnmarshal := json.Unmarshal(raw, &cachedValue)
		if errUnmarshal == nil {
			metrics.LeaderboardCacheTotal.WithLabelValues(board, "hit").Inc()
			return cachedValue, true, nil
		}
		log.WithError(errUnmarshal).WithField("key", key).Warn("leaderboard: discarding unreadable cache entry")
	}
	metrics.LeaderboardCacheTotal.WithLabelValues(board, "miss").Inc()

	value, errCompute := compute()
	if errCompute != nil {
		var zero T
		return zero, false, errCompute
	}
	payload, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		log.WithError(errMarshal).WithField("key", key).Warn("leaderboard: encode cache entry failed")
		return value, false, nil
	}
	if errSet := c.Set(ctx, key, payload, ttl); errSet != nil {
		log.WithError(errSet).WithField("key", key).Warn("leaderboard: cache write failed")
	}
	return value, false, nil
}
