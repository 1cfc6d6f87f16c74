package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/guess2/dailytrivia/internal/db"
	"github.com/guess2/dailytrivia/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	return conn
}

func sampleDraft() ChallengeDraft {
	return ChallengeDraft{
		Title:      "  Capitals  ",
		Difficulty: "Easy",
		Tags:       []string{"Geo", " geo ", "", "capitals"},
		ActiveDate: "2026-03-14",
		Questions: []QuestionDraft{
			{QuestionText: "Capital of France?", Answers: []AnswerDraft{{AnswerText: "Paris", IsCorrect: true}, {AnswerText: "Lyon"}}},
			{QuestionText: "Capital of Japan?", Answers: []AnswerDraft{{AnswerText: "Osaka"}, {AnswerText: "Tokyo", IsCorrect: true}}},
		},
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Science ", "science", "", "Space"})
	require.Equal(t, []string{"science", "space"}, got)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(*ChallengeDraft)
		field string
	}{
		{name: "missing title", edit: func(d *ChallengeDraft) { d.Title = " " }, field: "title"},
		{name: "bad difficulty", edit: func(d *ChallengeDraft) { d.Difficulty = "extreme" }, field: "difficulty"},
		{name: "bad date", edit: func(d *ChallengeDraft) { d.ActiveDate = "14/03/2026" }, field: "active_date"},
		{name: "negative limit", edit: func(d *ChallengeDraft) { d.TimeLimit = -5 }, field: "time_limit"},
		{name: "two correct", edit: func(d *ChallengeDraft) { d.Questions[0].Answers[1].IsCorrect = true }, field: "questions[0].answers"},
		{name: "none correct", edit: func(d *ChallengeDraft) { d.Questions[1].Answers[1].IsCorrect = false }, field: "questions[1].answers"},
		{name: "duplicate order", edit: func(d *ChallengeDraft) { d.Questions[0].OrderIndex = 2 }, field: "questions[1].order_index"},
		{name: "single answer", edit: func(d *ChallengeDraft) { d.Questions[0].Answers = d.Questions[0].Answers[:1] }, field: "questions[0].answers"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := sampleDraft()
			tc.edit(&d)
			d.Normalize()
			err := d.Validate()
			require.ErrorIs(t, err, ErrInvalid)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			require.Equal(t, tc.field, verr.Field)
		})
	}

	d := sampleDraft()
	d.Normalize()
	require.NoError(t, d.Validate())
	require.Equal(t, "Capitals", d.Title)
	require.Equal(t, "easy", d.Difficulty)
	require.Equal(t, 300, d.TimeLimit)
	require.Equal(t, []string{"geo", "capitals"}, d.Tags)
	require.Equal(t, 2, d.Questions[1].OrderIndex)
	require.Equal(t, 10, d.Questions[1].PointsValue)
}

func TestCreateInactive(t *testing.T) {
	conn := openTestDB(t)
	inactive := false
	d := sampleDraft()
	d.IsActive = &inactive

	created, err := Create(context.Background(), conn, d)
	require.NoError(t, err)
	require.False(t, created.IsActive)
	require.Len(t, created.Questions, 2)
	require.Equal(t, "Capital of France?", created.Questions[0].QuestionText)
	require.Len(t, created.Questions[1].Answers, 2)
	require.True(t, created.Questions[1].Answers[1].IsCorrect)
	require.JSONEq(t, `["geo","capitals"]`, string(created.Tags))
}

func TestUpdateReplacesQuestions(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	created, err := Create(ctx, conn, sampleDraft())
	require.NoError(t, err)

	title := "World Capitals"
	questions := []QuestionDraft{
		{QuestionText: "Capital of Peru?", Answers: []AnswerDraft{{AnswerText: "Lima", IsCorrect: true}, {AnswerText: "Cusco"}}},
	}
	updated, err := Update(ctx, conn, created.ID, Patch{Title: &title, Questions: &questions})
	require.NoError(t, err)
	require.Equal(t, "World Capitals", updated.Title)
	require.Len(t, updated.Questions, 1)
	require.Equal(t, "Capital of Peru?", updated.Questions[0].QuestionText)

	var answers int64
	require.NoError(t, conn.Model(&models.Answer{}).Count(&answers).Error)
	require.Equal(t, int64(2), answers)

	// Field-only patches keep questions.
	premium := true
	updated, err = Update(ctx, conn, created.ID, Patch{IsPremium: &premium})
	require.NoError(t, err)
	require.True(t, updated.IsPremium)
	require.Len(t, updated.Questions, 1)

	bad := "someday"
	_, err = Update(ctx, conn, created.ID, Patch{ActiveDate: &bad})
	require.ErrorIs(t, err, ErrInvalid)
	_, err = Update(ctx, conn, 9999, Patch{Title: &title})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteCascadesAndKeepsPlays(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	created, err := Create(ctx, conn, sampleDraft())
	require.NoError(t, err)
	other, err := Create(ctx, conn, ChallengeDraft{
		Title: "Other", Difficulty: "hard", ActiveDate: "2026-03-15",
		Questions: []QuestionDraft{{QuestionText: "2+2?", Answers: []AnswerDraft{{AnswerText: "4", IsCorrect: true}, {AnswerText: "5"}}}},
	})
	require.NoError(t, err)

	user := models.User{Email: "p@example.com", Username: "p", PasswordHash: "x"}
	require.NoError(t, conn.Create(&user).Error)
	require.NoError(t, conn.Create(&models.UserChallenge{UserID: user.ID, ChallengeID: created.ID, Score: 20, CompletedAt: user.CreatedAt}).Error)

	require.NoError(t, Delete(ctx, conn, created.ID))
	require.ErrorIs(t, Delete(ctx, conn, created.ID), ErrNotFound)

	var questions, answers, plays int64
	require.NoError(t, conn.Model(&models.Question{}).Count(&questions).Error)
	require.NoError(t, conn.Model(&models.Answer{}).Count(&answers).Error)
	require.NoError(t, conn.Model(&models.UserChallenge{}).Count(&plays).Error)
	require.Equal(t, int64(1), questions)
	require.Equal(t, int64(2), answers)
	require.Equal(t, int64(1), plays)

	_, err = Load(ctx, conn, other.ID)
	require.NoError(t, err)
	_, err = Load(ctx, conn, created.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListFilters(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	first, err := Create(ctx, conn, sampleDraft())
	require.NoError(t, err)
	second := sampleDraft()
	second.Title = "Later"
	second.Difficulty = "hard"
	second.Tags = []string{"history"}
	second.ActiveDate = "2026-04-01"
	later, err := Create(ctx, conn, second)
	require.NoError(t, err)

	all, err := List(ctx, conn, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, later.ID, all[0].ID)
	require.Len(t, all[0].Questions, 2)

	byTag, err := List(ctx, conn, ListFilter{Tag: "Geo"})
	require.NoError(t, err)
	require.Len(t, byTag, 1)
	require.Equal(t, first.ID, byTag[0].ID)

	hard, err := List(ctx, conn, ListFilter{Difficulty: "hard"})
	require.NoError(t, err)
	require.Len(t, hard, 1)
	require.Equal(t, later.ID, hard[0].ID)
}
