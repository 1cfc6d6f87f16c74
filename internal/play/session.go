package play

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/guess2/dailytrivia/internal/models"
)

var (
	// ErrNoQuestions is returned when a challenge has nothing to play.
	ErrNoQuestions = errors.New("play: challenge has no questions")
	// ErrNotInProgress is returned when acting on a session that is not in progress.
	ErrNotInProgress = errors.New("play: attempt is not in progress")
	// ErrWrongQuestion is returned when the answer targets a question other than the current one.
	ErrWrongQuestion = errors.New("play: answer does not target the current question")
	// ErrUnknownAnswer is returned when the answer does not belong to the question.
	ErrUnknownAnswer = errors.New("play: answer does not belong to the question")
	// ErrTimeUp is returned when a submission arrives after the deadline. The session
	// is completed by that submission.
	ErrTimeUp = errors.New("play: time is up")
)

// State is the lifecycle position of a session.
type State string

const (
	StateLoading    State = "loading"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
)

// Reason records why a session completed.
type Reason string

const (
	ReasonFinished Reason = "finished"
	ReasonTimeout  Reason = "timeout"
)

// Outcome is the log entry for one answered question.
type Outcome struct {
	QuestionID uint64        `json:"question_id"`
	AnswerID   uint64        `json:"answer_id"`
	IsCorrect  bool          `json:"is_correct"`
	TimeSpent  time.Duration `json:"-"`
	Seconds    int           `json:"time_spent"`
	Points     int           `json:"points"`
}

// Result summarizes a completed session.
type Result struct {
	ChallengeID    uint64    `json:"challenge_id"`
	Score          int       `json:"score"`
	CorrectAnswers int       `json:"correct_answers"`
	TotalQuestions int       `json:"total_questions"`
	CompletionTime int       `json:"completion_time"`
	Reason         Reason    `json:"reason"`
	Outcomes       []Outcome `json:"outcomes"`
	CompletedAt    time.Time `json:"completed_at"`
}

// Feedback is returned for each submitted answer.
type Feedback struct {
	IsCorrect       bool   `json:"is_correct"`
	PointsAwarded   int    `json:"points_awarded"`
	CorrectAnswerID uint64 `json:"correct_answer_id"`
	Explanation     string `json:"explanation,omitempty"`
	Completed       bool   `json:"completed"`
}

// AnswerView is an answer choice without its correctness flag.
type AnswerView struct {
	ID         uint64 `json:"id"`
	AnswerText string `json:"answer_text"`
	OrderIndex int    `json:"order_index"`
}

// QuestionView is a question as shown to a player.
type QuestionView struct {
	ID           uint64       `json:"id"`
	QuestionText string       `json:"question_text"`
	QuestionType string       `json:"question_type"`
	OrderIndex   int          `json:"order_index"`
	PointsValue  int          `json:"points_value"`
	Answers      []AnswerView `json:"answers"`
}

// View is the client-facing snapshot of a session.
type View struct {
	ID             string        `json:"id"`
	ChallengeID    uint64        `json:"challenge_id"`
	State          State         `json:"state"`
	QuestionIndex  int           `json:"question_index"`
	TotalQuestions int           `json:"total_questions"`
	TimeRemaining  int           `json:"time_remaining"`
	Score          int           `json:"score"`
	Question       *QuestionView `json:"question,omitempty"`
	Result         *Result       `json:"result,omitempty"`
}

// PublicQuestion strips correctness data from q.
func PublicQuestion(q models.Question) QuestionView {
	view := QuestionView{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		QuestionType: q.QuestionType,
		OrderIndex:   q.OrderIndex,
		PointsValue:  q.PointsValue,
		Answers:      make([]AnswerView, 0, len(q.Answers)),
	}
	for _, a := range q.Answers {
		view.Answers = append(view.Answers, AnswerView{ID: a.ID, AnswerText: a.AnswerText, OrderIndex: a.OrderIndex})
	}
	return view
}

// SortQuestions orders questions and their answers by order_index, then id.
func SortQuestions(questions []models.Question) {
	sort.SliceStable(questions, func(i, j int) bool {
		if questions[i].OrderIndex != questions[j].OrderIndex {
			return questions[i].OrderIndex < questions[j].OrderIndex
		}
		return questions[i].ID < questions[j].ID
	})
	for i := range questions {
		answers := questions[i].Answers
		sort.SliceStable(answers, func(a, b int) bool {
			if answers[a].OrderIndex != answers[b].OrderIndex {
				return answers[a].OrderIndex < answers[b].OrderIndex
			}
			return answers[a].ID < answers[b].ID
		})
	}
}

// Session is one timed attempt at a challenge. Remaining time is derived from the
// start instant, so readings from time.Now keep their monotonic component.
type Session struct {
	mu sync.Mutex

	id        string
	userID    uint64
	challenge models.Challenge
	limit     time.Duration
	nowFn     func() time.Time

	state       State
	index       int
	score       int
	log         []Outcome
	startedAt   time.Time
	presentedAt time.Time
	endedAt     time.Time
	reason      Reason
}

func newSession(id string, userID uint64, challenge models.Challenge, nowFn func() time.Time) *Session {
	if nowFn == nil {
		nowFn = time.Now
	}
	SortQuestions(challenge.Questions)
	return &Session{
		id:        id,
		userID:    userID,
		challenge: challenge,
		limit:     time.Duration(challenge.TimeLimit) * time.Second,
		nowFn:     nowFn,
		state:     StateLoading,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// UserID returns the owning player.
func (s *Session) UserID() uint64 { return s.userID }

// Challenge returns the challenge being played.
func (s *Session) Challenge() models.Challenge { return s.challenge }

// TimeLimit returns the attempt duration.
func (s *Session) TimeLimit() time.Duration { return s.limit }

// begin moves a loading session into progress at the first question.
func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLoading {
		return ErrNotInProgress
	}
	if len(s.challenge.Questions) == 0 {
		return ErrNoQuestions
	}
	now := s.nowFn()
	s.state = StateInProgress
	s.startedAt = now
	s.presentedAt = now
	s.log = make([]Outcome, 0, len(s.challenge.Questions))
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Remaining returns the time left, frozen once the session completes.
func (s *Session) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingLocked(s.nowFn())
}

func (s *Session) remainingLocked(now time.Time) time.Duration {
	switch s.state {
	case StateLoading:
		return s.limit
	case StateCompleted:
		now = s.endedAt
	}
	left := s.limit - now.Sub(s.startedAt)
	if left < 0 {
		return 0
	}
	return left
}

// Submit evaluates answerID for the current question and advances. Answering the
// last question completes the session. A submission after the deadline completes
// the session with what was already answered.
func (s *Session) Submit(questionID, answerID uint64) (Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return Feedback{}, ErrNotInProgress
	}
	now := s.nowFn()
	if s.remainingLocked(now) <= 0 {
		s.completeLocked(ReasonTimeout, now)
		return Feedback{Completed: true}, ErrTimeUp
	}

	question := s.challenge.Questions[s.index]
	if question.ID != questionID {
		return Feedback{}, ErrWrongQuestion
	}
	var (
		selected  *models.Answer
		correctID uint64
	)
	for i := range question.Answers {
		if question.Answers[i].ID == answerID {
			selected = &question.Answers[i]
		}
		if question.Answers[i].IsCorrect && correctID == 0 {
			correctID = question.Answers[i].ID
		}
	}
	if selected == nil {
		return Feedback{}, ErrUnknownAnswer
	}

	spent := now.Sub(s.presentedAt)
	points := ScoreAnswer(selected.IsCorrect, question.PointsValue, spent)
	s.score += points
	s.log = append(s.log, Outcome{
		QuestionID: question.ID,
		AnswerID:   selected.ID,
		IsCorrect:  selected.IsCorrect,
		TimeSpent:  spent,
		Seconds:    wholeSeconds(spent),
		Points:     points,
	})
	s.index++
	s.presentedAt = now

	feedback := Feedback{
		IsCorrect:       selected.IsCorrect,
		PointsAwarded:   points,
		CorrectAnswerID: correctID,
		Explanation:     question.Explanation,
	}
	if s.index >= len(s.challenge.Questions) {
		s.completeLocked(ReasonFinished, now)
		feedback.Completed = true
	}
	return feedback, nil
}

// Expire forces completion if the session is still in progress. It reports whether
// this call performed the transition.
func (s *Session) Expire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return false
	}
	s.completeLocked(ReasonTimeout, s.nowFn())
	return true
}

func (s *Session) completeLocked(reason Reason, now time.Time) {
	if reason == ReasonTimeout {
		if deadline := s.startedAt.Add(s.limit); now.After(deadline) {
			now = deadline
		}
	}
	s.state = StateCompleted
	s.endedAt = now
	s.reason = reason
}

// Result returns the summary of a completed session.
func (s *Session) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCompleted {
		return Result{}, false
	}
	return s.resultLocked(), true
}

func (s *Session) resultLocked() Result {
	correct := 0
	for _, entry := range s.log {
		if entry.IsCorrect {
			correct++
		}
	}
	limitSeconds := wholeSeconds(s.limit)
	remaining := s.remainingLocked(s.endedAt)
	completion := limitSeconds - ceilSeconds(remaining)
	if completion < 0 {
		completion = 0
	}
	outcomes := make([]Outcome, len(s.log))
	copy(outcomes, s.log)
	return Result{
		ChallengeID:    s.challenge.ID,
		Score:          s.score,
		CorrectAnswers: correct,
		TotalQuestions: len(s.challenge.Questions),
		CompletionTime: completion,
		Reason:         s.reason,
		Outcomes:       outcomes,
		CompletedAt:    s.endedAt,
	}
}

// View returns the client snapshot.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := View{
		ID:             s.id,
		ChallengeID:    s.challenge.ID,
		State:          s.state,
		QuestionIndex:  s.index,
		TotalQuestions: len(s.challenge.Questions),
		TimeRemaining:  ceilSeconds(s.remainingLocked(s.nowFn())),
		Score:          s.score,
	}
	switch s.state {
	case StateInProgress:
		q := PublicQuestion(s.challenge.Questions[s.index])
		view.Question = &q
	case StateCompleted:
		result := s.resultLocked()
		view.Result = &result
	}
	return view
}

func (s *Session) completedBefore(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateCompleted && s.endedAt.Before(cutoff)
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
