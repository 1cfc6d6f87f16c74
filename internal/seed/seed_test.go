package seed

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/guess2/dailytrivia/internal/db"
	"github.com/guess2/dailytrivia/internal/models"
	"github.com/guess2/dailytrivia/internal/security"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "seed.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func TestLoad_BundledSamples(t *testing.T) {
	data, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(data.Challenges) != 5 {
		t.Fatalf("expected 5 sample challenges, got %d", len(data.Challenges))
	}
	if len(data.Achievements) != 4 {
		t.Fatalf("expected 4 achievements, got %d", len(data.Achievements))
	}
	for _, draft := range data.Challenges {
		if !strings.HasPrefix(draft.Title, "Sample") {
			t.Fatalf("expected sample title, got %q", draft.Title)
		}
		draft.Normalize()
		if errValidate := draft.Validate(); errValidate != nil {
			t.Fatalf("sample %q invalid: %v", draft.Title, errValidate)
		}
		if len(draft.Questions) != 5 {
			t.Fatalf("expected 5 questions in %q, got %d", draft.Title, len(draft.Questions))
		}
	}
}

func TestRun_Idempotent(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	data, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	first, err := Run(ctx, conn, data)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.ChallengesCreated != 5 || first.ChallengesSkipped != 0 {
		t.Fatalf("unexpected first summary: %+v", first)
	}
	second, err := Run(ctx, conn, data)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.ChallengesCreated != 0 || second.ChallengesSkipped != 5 {
		t.Fatalf("unexpected second summary: %+v", second)
	}

	var challenges, questions, answers, achievements int64
	conn.Model(&models.Challenge{}).Count(&challenges)
	conn.Model(&models.Question{}).Count(&questions)
	conn.Model(&models.Answer{}).Count(&answers)
	conn.Model(&models.Achievement{}).Count(&achievements)
	if challenges != 5 || questions != 25 || answers != 100 || achievements != 4 {
		t.Fatalf("unexpected counts: challenges=%d questions=%d answers=%d achievements=%d", challenges, questions, answers, achievements)
	}

	var capitals models.Challenge
	if errFind := conn.Preload("Questions.Answers").Where("title = ?", "Sample: World Capitals Sprint").First(&capitals).Error; errFind != nil {
		t.Fatalf("find capitals: %v", errFind)
	}
	if capitals.ActiveDate != "2099-01-01" || capitals.TimeLimit != 300 || capitals.IsPremium || !capitals.IsActive {
		t.Fatalf("unexpected capitals challenge: %+v", capitals)
	}
	for _, q := range capitals.Questions {
		if q.PointsValue != 10 {
			t.Fatalf("expected 10 points, got %d", q.PointsValue)
		}
	}
}

func TestEnsureAdmin(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	admin, err := EnsureAdmin(ctx, conn, "Admin@Example.com", "", "password123")
	if err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	if !admin.IsAdmin || admin.Username != "admin" || admin.Email != "admin@example.com" {
		t.Fatalf("unexpected admin: %+v", admin)
	}
	if !security.CheckPassword(admin.PasswordHash, "password123") {
		t.Fatalf("expected password to be hashed")
	}
	ok, err := HasAdmin(ctx, conn)
	if err != nil || !ok {
		t.Fatalf("expected admin to exist, got %v %v", ok, err)
	}

	player := models.User{Email: "player@example.com", Username: "player", PasswordHash: "x"}
	if errCreate := conn.Create(&player).Error; errCreate != nil {
		t.Fatalf("create player: %v", errCreate)
	}
	promoted, err := EnsureAdmin(ctx, conn, "player@example.com", "ignored", "")
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if promoted.ID != player.ID || !promoted.IsAdmin || promoted.PasswordHash != "x" {
		t.Fatalf("unexpected promoted user: %+v", promoted)
	}
}
