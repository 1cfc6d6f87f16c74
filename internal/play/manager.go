package play

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/guess2/dailytrivia/internal/metrics"
	"github.com/guess2/dailytrivia/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultRetention       = 10 * time.Minute
	defaultJanitorInterval = time.Minute
	recordTimeout          = 10 * time.Second
)

var (
	// ErrChallengeNotFound is returned for unknown or inactive challenges.
	ErrChallengeNotFound = errors.New("play: challenge not found")
	// ErrPremiumRequired is returned when a free player opens a premium challenge.
	ErrPremiumRequired = errors.New("play: premium challenge")
	// ErrSessionNotFound is returned for unknown attempts or attempts owned by someone else.
	ErrSessionNotFound = errors.New("play: attempt not found")
)

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Recorder        Recorder
	Now             func() time.Time
	Retention       time.Duration
	JanitorInterval time.Duration
}

type entry struct {
	session  *Session
	timer    *time.Timer
	progress *Progress
}

// Manager owns live attempts. Each attempt has a timer that completes it at the
// deadline; completed attempts stay readable until the janitor evicts them.
type Manager struct {
	db        *gorm.DB
	recorder  Recorder
	nowFn     func() time.Time
	retention time.Duration
	interval  time.Duration

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewManager constructs a Manager. A nil recorder stores attempts through GORM.
func NewManager(conn *gorm.DB, opts ManagerOptions) *Manager {
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = NewGormRecorder(conn, nowFn)
	}
	retention := opts.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	interval := opts.JanitorInterval
	if interval <= 0 {
		interval = defaultJanitorInterval
	}
	return &Manager{
		db:        conn,
		recorder:  recorder,
		nowFn:     nowFn,
		retention: retention,
		interval:  interval,
		sessions:  make(map[string]*entry),
	}
}

// LoadChallenge reads a playable challenge with its ordered questions and answers.
func LoadChallenge(ctx context.Context, conn *gorm.DB, challengeID uint64) (models.Challenge, error) {
	var challenge models.Challenge
	errFind := conn.WithContext(ctx).
		Preload("Questions", func(tx *gorm.DB) *gorm.DB { return tx.Order("order_index ASC, id ASC") }).
		Preload("Questions.Answers", func(tx *gorm.DB) *gorm.DB { return tx.Order("order_index ASC, id ASC") }).
		Where("id = ? AND is_active = ?", challengeID, true).
		First(&challenge).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.Challenge{}, ErrChallengeNotFound
		}
		return models.Challenge{}, fmt.Errorf("play: load challenge: %w", errFind)
	}
	return challenge, nil
}

// CanPlay reports whether user may open challenge.
func CanPlay(user models.User, challenge models.Challenge) bool {
	return !challenge.IsPremium || user.IsPremium || user.IsAdmin
}

// Begin starts a new attempt for user.
func (m *Manager) Begin(ctx context.Context, user models.User, challengeID uint64) (View, error) {
	challenge, errLoad := LoadChallenge(ctx, m.db, challengeID)
	if errLoad != nil {
		return View{}, errLoad
	}
	if !CanPlay(user, challenge) {
		return View{}, ErrPremiumRequired
	}

	session := newSession(uuid.NewString(), user.ID, challenge, m.nowFn)
	if errBegin := session.begin(); errBegin != nil {
		return View{}, errBegin
	}

	e := &entry{session: session}
	m.mu.Lock()
	m.sessions[session.ID()] = e
	e.timer = time.AfterFunc(session.TimeLimit(), func() { m.expire(session.ID()) })
	m.mu.Unlock()

	metrics.ActiveAttempts.Inc()
	log.WithFields(log.Fields{"attempt": session.ID(), "user_id": user.ID, "challenge_id": challenge.ID}).Debug("play: attempt started")
	return session.View(), nil
}

// Get returns the attempt if it belongs to userID.
func (m *Manager) Get(userID uint64, attemptID string) (View, *Progress, error) {
	e, errLookup := m.lookup(userID, attemptID)
	if errLookup != nil {
		return View{}, nil, errLookup
	}
	m.mu.Lock()
	progress := e.progress
	m.mu.Unlock()
	return e.session.View(), progress, nil
}

// Submit answers the current question of an attempt. When the answer completes the
// attempt, the result is recorded before returning.
func (m *Manager) Submit(ctx context.Context, userID uint64, attemptID string, questionID, answerID uint64) (Feedback, View, *Progress, error) {
	e, errLookup := m.lookup(userID, attemptID)
	if errLookup != nil {
		return Feedback{}, View{}, nil, errLookup
	}
	feedback, errSubmit := e.session.Submit(questionID, answerID)
	switch {
	case errors.Is(errSubmit, ErrTimeUp):
		progress := m.finish(context.WithoutCancel(ctx), e, ReasonTimeout)
		return feedback, e.session.View(), progress, errSubmit
	case errSubmit != nil:
		return Feedback{}, View{}, nil, errSubmit
	}
	var progress *Progress
	if feedback.Completed {
		progress = m.finish(context.WithoutCancel(ctx), e, ReasonFinished)
	}
	return feedback, e.session.View(), progress, nil
}

// Abandon drops an attempt without recording anything.
func (m *Manager) Abandon(userID uint64, attemptID string) error {
	e, errLookup := m.lookup(userID, attemptID)
	if errLookup != nil {
		return errLookup
	}
	m.mu.Lock()
	delete(m.sessions, attemptID)
	if e.timer != nil {
		e.timer.Stop()
	}
	m.mu.Unlock()
	if e.session.State() == StateInProgress {
		metrics.ActiveAttempts.Dec()
		metrics.AttemptsCompletedTotal.WithLabelValues("abandoned").Inc()
	}
	log.WithFields(log.Fields{"attempt": attemptID, "user_id": userID}).Debug("play: attempt abandoned")
	return nil
}

// Start runs the janitor loop in the background.
func (m *Manager) Start(ctx context.Context) {
	if m == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go m.run(ctx)
	log.Infof("play janitor started (interval=%s, retention=%s)", m.interval, m.retention)
}

func (m *Manager) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.stopTimers()
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				log.Debugf("play janitor: evicted %d attempts", n)
			}
		}
	}
}

// Sweep evicts attempts completed longer than the retention window ago.
func (m *Manager) Sweep() int {
	cutoff := m.nowFn().Add(-m.retention)
	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for id, e := range m.sessions {
		if e.session.completedBefore(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of tracked attempts.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) stopTimers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.sessions {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
}

func (m *Manager) lookup(userID uint64, attemptID string) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[attemptID]
	if !ok || e.session.UserID() != userID {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// expire completes an attempt whose deadline passed.
func (m *Manager) expire(attemptID string) {
	m.mu.Lock()
	e, ok := m.sessions[attemptID]
	m.mu.Unlock()
	if !ok || !e.session.Expire() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	m.finish(ctx, e, ReasonTimeout)
}

// finish records a session that has just completed. Persist failures are logged and
// the locally computed result stays available to the player.
func (m *Manager) finish(ctx context.Context, e *entry, reason Reason) *Progress {
	m.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
	}
	m.mu.Unlock()
	metrics.ActiveAttempts.Dec()
	metrics.AttemptsCompletedTotal.WithLabelValues(string(reason)).Inc()

	result, ok := e.session.Result()
	if !ok {
		return nil
	}
	fields := log.Fields{"attempt": e.session.ID(), "user_id": e.session.UserID(), "challenge_id": result.ChallengeID, "score": result.Score}
	progress, errRecord := m.recorder.Record(ctx, e.session.UserID(), result)
	if errRecord != nil {
		log.WithError(errRecord).WithFields(fields).Error("play: record attempt failed")
		return nil
	}
	m.mu.Lock()
	e.progress = &progress
	m.mu.Unlock()
	log.WithFields(fields).Info("play: attempt completed")
	return &progress
}
