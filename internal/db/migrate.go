package db

import (
	"fmt"

	"github.com/guess2/dailytrivia/internal/models"
	"gorm.io/gorm"
)

// Models lists every table managed by Migrate, parents before children.
func Models() []any {
	return []any{
		&models.User{},
		&models.Challenge{},
		&models.Question{},
		&models.Answer{},
		&models.UserChallenge{},
		&models.UserAnswer{},
		&models.Subscription{},
		&models.WebhookEvent{},
		&models.Achievement{},
		&models.UserAchievement{},
	}
}

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite:
		return migrateSQLite(conn)
	case DialectPostgres, "":
		return migratePostgres(conn)
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}
}

// migratePostgres applies PostgreSQL-specific schema updates and indexes.
func migratePostgres(conn *gorm.DB) error {
	if errAutoMigrate := conn.AutoMigrate(Models()...); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errIndex := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_users_points_rank
		ON users (total_points DESC, created_at ASC, id ASC)
	`).Error; errIndex != nil {
		return fmt.Errorf("db: create users rank index: %w", errIndex)
	}
	if errIndex := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_challenges_tags
		ON challenges USING GIN (tags)
	`).Error; errIndex != nil {
		return fmt.Errorf("db: create challenge tags index: %w", errIndex)
	}
	return createSharedIndexes(conn)
}

// migrateSQLite applies SQLite schema updates and indexes.
func migrateSQLite(conn *gorm.DB) error {
	if errAutoMigrate := conn.AutoMigrate(Models()...); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errIndex := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_users_points_rank
		ON users (total_points DESC, created_at, id)
	`).Error; errIndex != nil {
		return fmt.Errorf("db: create users rank index: %w", errIndex)
	}
	return createSharedIndexes(conn)
}

func createSharedIndexes(conn *gorm.DB) error {
	if errIndex := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_user_challenges_user_completed
		ON user_challenges (user_id, completed_at)
	`).Error; errIndex != nil {
		return fmt.Errorf("db: create play history index: %w", errIndex)
	}
	if errIndex := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_challenges_active_lookup
		ON challenges (is_active, active_date)
	`).Error; errIndex != nil {
		return fmt.Errorf("db: create active challenge index: %w", errIndex)
	}
	return nil
}
