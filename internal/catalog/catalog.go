// Package catalog validates and writes challenges with their questions and answers.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/guess2/dailytrivia/internal/db"
	"github.com/guess2/dailytrivia/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultTimeLimit   = 300
	defaultPointsValue = 10
	maxTimeLimit       = 3600
)

var (
	// ErrInvalid wraps every ValidationError.
	ErrInvalid = errors.New("catalog: invalid challenge")
	// ErrNotFound is returned for unknown challenge ids.
	ErrNotFound = errors.New("catalog: challenge not found")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

func (e *ValidationError) Unwrap() error { return ErrInvalid }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// AnswerDraft is an answer choice as authored.
type AnswerDraft struct {
	AnswerText string `json:"answer_text" yaml:"answer_text"`
	IsCorrect  bool   `json:"is_correct" yaml:"is_correct"`
	OrderIndex int    `json:"order_index" yaml:"order_index"`
}

// QuestionDraft is a question as authored. Zero order indexes default to position.
type QuestionDraft struct {
	QuestionText string        `json:"question_text" yaml:"question_text"`
	QuestionType string        `json:"question_type" yaml:"question_type"`
	OrderIndex   int           `json:"order_index" yaml:"order_index"`
	PointsValue  int           `json:"points_value" yaml:"points_value"`
	Explanation  string        `json:"explanation" yaml:"explanation"`
	Answers      []AnswerDraft `json:"answers" yaml:"answers"`
}

// ChallengeDraft is a full challenge as authored.
type ChallengeDraft struct {
	Title       string          `json:"title" yaml:"title"`
	Description string          `json:"description" yaml:"description"`
	Difficulty  string          `json:"difficulty" yaml:"difficulty"`
	Category    string          `json:"category" yaml:"category"`
	Tags        []string        `json:"tags" yaml:"tags"`
	TimeLimit   int             `json:"time_limit" yaml:"time_limit"`
	IsPremium   bool            `json:"is_premium" yaml:"is_premium"`
	IsActive    *bool           `json:"is_active" yaml:"is_active"`
	ActiveDate  string          `json:"active_date" yaml:"active_date"`
	Questions   []QuestionDraft `json:"questions" yaml:"questions"`
}

// ValidDifficulty reports whether d is an accepted difficulty.
func ValidDifficulty(d string) bool {
	switch d {
	case models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard:
		return true
	default:
		return false
	}
}

// ValidDate reports whether s is a YYYY-MM-DD date.
func ValidDate(s string) bool {
	_, err := time.Parse(models.ActiveDateLayout, s)
	return err == nil
}

// Normalize trims the draft and fills defaults in place.
func (d *ChallengeDraft) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Difficulty = strings.ToLower(strings.TrimSpace(d.Difficulty))
	d.Category = strings.TrimSpace(d.Category)
	d.ActiveDate = strings.TrimSpace(d.ActiveDate)
	if d.TimeLimit == 0 {
		d.TimeLimit = defaultTimeLimit
	}
	d.Tags = NormalizeTags(d.Tags)
	NormalizeQuestions(d.Questions)
}

// NormalizeQuestions trims question drafts and fills defaults in place.
func NormalizeQuestions(questions []QuestionDraft) {
	for i := range questions {
		q := &questions[i]
		q.QuestionText = strings.TrimSpace(q.QuestionText)
		q.Explanation = strings.TrimSpace(q.Explanation)
		q.QuestionType = strings.TrimSpace(q.QuestionType)
		if q.QuestionType == "" {
			q.QuestionType = models.QuestionTypeMultipleChoice
		}
		if q.OrderIndex == 0 {
			q.OrderIndex = i + 1
		}
		if q.PointsValue == 0 {
			q.PointsValue = defaultPointsValue
		}
		for j := range q.Answers {
			a := &q.Answers[j]
			a.AnswerText = strings.TrimSpace(a.AnswerText)
			if a.OrderIndex == 0 {
				a.OrderIndex = j + 1
			}
		}
	}
}

// NormalizeTags trims, lowercases and de-duplicates tags, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// Validate checks a normalized draft.
func (d *ChallengeDraft) Validate() error {
	if d.Title == "" {
		return invalid("title", "is required")
	}
	if !ValidDifficulty(d.Difficulty) {
		return invalid("difficulty", "must be easy, medium or hard")
	}
	if d.TimeLimit <= 0 || d.TimeLimit > maxTimeLimit {
		return invalid("time_limit", "must be between 1 and %d seconds", maxTimeLimit)
	}
	if !ValidDate(d.ActiveDate) {
		return invalid("active_date", "must be YYYY-MM-DD")
	}
	return ValidateQuestions(d.Questions)
}

// ValidateQuestions enforces unique order indexes and exactly one correct answer per
// question.
func ValidateQuestions(questions []QuestionDraft) error {
	orders := make(map[int]struct{}, len(questions))
	for i, q := range questions {
		field := fmt.Sprintf("questions[%d]", i)
		if q.QuestionText == "" {
			return invalid(field+".question_text", "is required")
		}
		if q.PointsValue < 0 {
			return invalid(field+".points_value", "must not be negative")
		}
		if _, dup := orders[q.OrderIndex]; dup {
			return invalid(field+".order_index", "duplicates order_index %d", q.OrderIndex)
		}
		orders[q.OrderIndex] = struct{}{}
		if len(q.Answers) < 2 {
			return invalid(field+".answers", "needs at least two answers")
		}
		correct := 0
		for j, a := range q.Answers {
			if a.AnswerText == "" {
				return invalid(fmt.Sprintf("%s.answers[%d].answer_text", field, j), "is required")
			}
			if a.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return invalid(field+".answers", "must have exactly one correct answer, got %d", correct)
		}
	}
	return nil
}

func tagsJSON(tags []string) datatypes.JSON {
	if len(tags) == 0 {
		return datatypes.JSON([]byte("[]"))
	}
	raw, _ := json.Marshal(tags)
	return datatypes.JSON(raw)
}

func buildQuestions(drafts []QuestionDraft) []models.Question {
	out := make([]models.Question, 0, len(drafts))
	for _, qd := range drafts {
		q := models.Question{
			QuestionText: qd.QuestionText,
			QuestionType: qd.QuestionType,
			OrderIndex:   qd.OrderIndex,
			PointsValue:  qd.PointsValue,
			Explanation:  qd.Explanation,
			Answers:      make([]models.Answer, 0, len(qd.Answers)),
		}
		for _, ad := range qd.Answers {
			q.Answers = append(q.Answers, models.Answer{
				AnswerText: ad.AnswerText,
				IsCorrect:  ad.IsCorrect,
				OrderIndex: ad.OrderIndex,
			})
		}
		out = append(out, q)
	}
	return out
}

// Create normalizes, validates and inserts d with its questions in one transaction.
func Create(ctx context.Context, conn *gorm.DB, d ChallengeDraft) (models.Challenge, error) {
	d.Normalize()
	if err := d.Validate(); err != nil {
		return models.Challenge{}, err
	}
	active := true
	if d.IsActive != nil {
		active = *d.IsActive
	}
	challenge := models.Challenge{
		Title:       d.Title,
		Description: d.Description,
		Difficulty:  d.Difficulty,
		Category:    d.Category,
		Tags:        tagsJSON(d.Tags),
		TimeLimit:   d.TimeLimit,
		IsPremium:   d.IsPremium,
		ActiveDate:  d.ActiveDate,
		IsActive:    active,
		Questions:   buildQuestions(d.Questions),
	}
	errTx := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&challenge).Error; err != nil {
			return fmt.Errorf("insert challenge: %w", err)
		}
		// GORM substitutes the column default for a false bool on insert.
		if !active {
			if err := tx.Model(&challenge).Update("is_active", false).Error; err != nil {
				return fmt.Errorf("deactivate challenge: %w", err)
			}
		}
		return nil
	})
	if errTx != nil {
		return models.Challenge{}, fmt.Errorf("catalog: create: %w", errTx)
	}
	return Load(ctx, conn, challenge.ID)
}

// Patch carries optional challenge field updates. A non-nil Questions replaces
// every question of the challenge.
type Patch struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Difficulty  *string          `json:"difficulty"`
	Category    *string          `json:"category"`
	Tags        *[]string        `json:"tags"`
	TimeLimit   *int             `json:"time_limit"`
	IsPremium   *bool            `json:"is_premium"`
	IsActive    *bool            `json:"is_active"`
	ActiveDate  *string          `json:"active_date"`
	Questions   *[]QuestionDraft `json:"questions"`
}

func (p Patch) updates() (map[string]any, error) {
	updates := map[string]any{}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return nil, invalid("title", "is required")
		}
		updates["title"] = title
	}
	if p.Description != nil {
		updates["description"] = strings.TrimSpace(*p.Description)
	}
	if p.Difficulty != nil {
		difficulty := strings.ToLower(strings.TrimSpace(*p.Difficulty))
		if !ValidDifficulty(difficulty) {
			return nil, invalid("difficulty", "must be easy, medium or hard")
		}
		updates["difficulty"] = difficulty
	}
	if p.Category != nil {
		updates["category"] = strings.TrimSpace(*p.Category)
	}
	if p.Tags != nil {
		updates["tags"] = tagsJSON(NormalizeTags(*p.Tags))
	}
	if p.TimeLimit != nil {
		if *p.TimeLimit <= 0 || *p.TimeLimit > maxTimeLimit {
			return nil, invalid("time_limit", "must be between 1 and %d seconds", maxTimeLimit)
		}
		updates["time_limit"] = *p.TimeLimit
	}
	if p.IsPremium != nil {
		updates["is_premium"] = *p.IsPremium
	}
	if p.IsActive != nil {
		updates["is_active"] = *p.IsActive
	}
	if p.ActiveDate != nil {
		date := strings.TrimSpace(*p.ActiveDate)
		if !ValidDate(date) {
			return nil, invalid("active_date", "must be YYYY-MM-DD")
		}
		updates["active_date"] = date
	}
	return updates, nil
}

// Update applies p to challenge id. Field updates and question replacement commit
// together.
func Update(ctx context.Context, conn *gorm.DB, id uint64, p Patch) (models.Challenge, error) {
	updates, errPatch := p.updates()
	if errPatch != nil {
		return models.Challenge{}, errPatch
	}
	var questions []QuestionDraft
	if p.Questions != nil {
		questions = *p.Questions
		NormalizeQuestions(questions)
		if err := ValidateQuestions(questions); err != nil {
			return models.Challenge{}, err
		}
	}

	errTx := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Challenge
		if err := tx.Select("id").First(&existing, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load challenge: %w", err)
		}
		updates["updated_at"] = time.Now().UTC()
		if err := tx.Model(&models.Challenge{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("update challenge: %w", err)
		}
		if p.Questions == nil {
			return nil
		}
		if err := deleteQuestions(tx, id); err != nil {
			return err
		}
		rows := buildQuestions(questions)
		for i := range rows {
			rows[i].ChallengeID = id
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("insert questions: %w", err)
			}
		}
		return nil
	})
	if errTx != nil {
		if errors.Is(errTx, ErrNotFound) {
			return models.Challenge{}, ErrNotFound
		}
		return models.Challenge{}, fmt.Errorf("catalog: update: %w", errTx)
	}
	return Load(ctx, conn, id)
}

// Delete removes a challenge after its answers and questions. Play history is kept.
func Delete(ctx context.Context, conn *gorm.DB, id uint64) error {
	errTx := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteQuestions(tx, id); err != nil {
			return err
		}
		res := tx.Delete(&models.Challenge{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete challenge: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if errors.Is(errTx, ErrNotFound) {
		return ErrNotFound
	}
	if errTx != nil {
		return fmt.Errorf("catalog: delete: %w", errTx)
	}
	return nil
}

func deleteQuestions(tx *gorm.DB, challengeID uint64) error {
	questionIDs := tx.Model(&models.Question{}).Select("id").Where("challenge_id = ?", challengeID)
	if err := tx.Where("question_id IN (?)", questionIDs).Delete(&models.Answer{}).Error; err != nil {
		return fmt.Errorf("delete answers: %w", err)
	}
	if err := tx.Where("challenge_id = ?", challengeID).Delete(&models.Question{}).Error; err != nil {
		return fmt.Errorf("delete questions: %w", err)
	}
	return nil
}

// Load reads a challenge with ordered questions and answers, correctness included.
func Load(ctx context.Context, conn *gorm.DB, id uint64) (models.Challenge, error) {
	var challenge models.Challenge
	err := conn.WithContext(ctx).
		Preload("Questions", func(tx *gorm.DB) *gorm.DB { return tx.Order("order_index ASC, id ASC") }).
		Preload("Questions.Answers", func(tx *gorm.DB) *gorm.DB { return tx.Order("order_index ASC, id ASC") }).
		First(&challenge, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Challenge{}, ErrNotFound
	}
	if err != nil {
		return models.Challenge{}, fmt.Errorf("catalog: load: %w", err)
	}
	return challenge, nil
}

// ListFilter narrows List results.
type ListFilter struct {
	Difficulty string
	Tag        string
	Active     *bool
}

// List returns challenges newest active_date first, each with its questions.
func List(ctx context.Context, conn *gorm.DB, filter ListFilter) ([]models.Challenge, error) {
	q := conn.WithContext(ctx).Model(&models.Challenge{})
	if filter.Difficulty != "" {
		q = q.Where("difficulty = ?", filter.Difficulty)
	}
	if filter.Active != nil {
		q = q.Where("is_active = ?", *filter.Active)
	}
	if tag := strings.ToLower(strings.TrimSpace(filter.Tag)); tag != "" {
		cond, arg := db.JSONArrayHas(conn, "tags", tag)
		q = q.Where(cond, arg)
	}
	var rows []models.Challenge
	if err := q.Preload("Questions", func(tx *gorm.DB) *gorm.DB { return tx.Order("order_index ASC, id ASC") }).
		Order("active_date DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	return rows, nil
}
