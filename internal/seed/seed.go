// Package seed loads the bundled sample challenges and achievements.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/guess2/dailytrivia/internal/catalog"
	"github.com/guess2/dailytrivia/internal/models"
	"github.com/guess2/dailytrivia/internal/security"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed seed.yaml
var bundled []byte

// AchievementSeed is one achievement tier.
type AchievementSeed struct {
	Name           string `yaml:"name"`
	Description    string `yaml:"description"`
	BadgeURL       string `yaml:"badge_url"`
	PointsRequired int    `yaml:"points_required"`
}

// Data is the parsed seed file.
type Data struct {
	Achievements []AchievementSeed        `yaml:"achievements"`
	Challenges   []catalog.ChallengeDraft `yaml:"challenges"`
}

// Summary counts what a Run wrote.
type Summary struct {
	ChallengesCreated int
	ChallengesSkipped int
	Achievements      int
}

// Load parses the bundled seed file.
func Load() (Data, error) {
	return Parse(bundled)
}

// Parse decodes seed YAML.
func Parse(raw []byte) (Data, error) {
	var data Data
	if errUnmarshal := yaml.Unmarshal(raw, &data); errUnmarshal != nil {
		return Data{}, fmt.Errorf("seed: parse: %w", errUnmarshal)
	}
	return data, nil
}

// Run writes data to conn. Challenges are matched by title and achievements by
// name, so repeated runs do not duplicate rows.
func Run(ctx context.Context, conn *gorm.DB, data Data) (Summary, error) {
	var summary Summary
	for _, a := range data.Achievements {
		row := models.Achievement{
			Name:           strings.TrimSpace(a.Name),
			Description:    a.Description,
			BadgeURL:       a.BadgeURL,
			PointsRequired: a.PointsRequired,
		}
		errUpsert := conn.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"description", "badge_url", "points_required"}),
		}).Create(&row).Error
		if errUpsert != nil {
			return summary, fmt.Errorf("seed: achievement %q: %w", a.Name, errUpsert)
		}
		summary.Achievements++
	}

	for _, draft := range data.Challenges {
		title := strings.TrimSpace(draft.Title)
		var count int64
		if errCount := conn.WithContext(ctx).Model(&models.Challenge{}).Where("title = ?", title).Count(&count).Error; errCount != nil {
			return summary, fmt.Errorf("seed: lookup %q: %w", title, errCount)
		}
		if count > 0 {
			summary.ChallengesSkipped++
			continue
		}
		created, errCreate := catalog.Create(ctx, conn, draft)
		if errCreate != nil {
			return summary, fmt.Errorf("seed: challenge %q: %w", title, errCreate)
		}
		summary.ChallengesCreated++
		log.WithFields(log.Fields{"challenge_id": created.ID, "questions": len(created.Questions)}).Infof("seed: inserted %s", created.Title)
	}
	return summary, nil
}

// EnsureAdmin grants admin rights to the account with email, creating it when
// missing. Existing passwords are left untouched.
func EnsureAdmin(ctx context.Context, conn *gorm.DB, email, username, password string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return models.User{}, fmt.Errorf("seed: admin email is required")
	}
	var user models.User
	errFind := conn.WithContext(ctx).Where("email = ?", email).First(&user).Error
	switch {
	case errFind == nil:
		if errUpdate := conn.WithContext(ctx).Model(&user).Update("is_admin", true).Error; errUpdate != nil {
			return models.User{}, fmt.Errorf("seed: promote admin: %w", errUpdate)
		}
		user.IsAdmin = true
		return user, nil
	case !errors.Is(errFind, gorm.ErrRecordNotFound):
		return models.User{}, fmt.Errorf("seed: find admin: %w", errFind)
	}

	username = strings.TrimSpace(username)
	if username == "" {
		username, _, _ = strings.Cut(email, "@")
	}
	hashed, errHash := security.HashPassword(password)
	if errHash != nil {
		return models.User{}, fmt.Errorf("seed: hash password: %w", errHash)
	}
	user = models.User{Email: email, Username: username, PasswordHash: hashed, IsAdmin: true}
	if errCreate := conn.WithContext(ctx).Create(&user).Error; errCreate != nil {
		return models.User{}, fmt.Errorf("seed: create admin: %w", errCreate)
	}
	return user, nil
}

// HasAdmin reports whether at least one admin account exists.
func HasAdmin(ctx context.Context, conn *gorm.DB) (bool, error) {
	var count int64
	if errCount := conn.WithContext(ctx).Model(&models.User{}).Where("is_admin = ?", true).Count(&count).Error; errCount != nil {
		return false, fmt.Errorf("seed: count admins: %w", errCount)
	}
	return count > 0, nil
}
