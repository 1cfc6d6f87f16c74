package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// Open connects to postgres, or to SQLite when the DSN is a file path.
func Open(dsn string) (*gorm.DB, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, fmt.Errorf("db: empty dsn")
	}

	var dialector gorm.Dialector
	sqliteMode := IsSQLiteDSN(trimmed)
	if sqliteMode {
		dialector = sqlite.Open(buildSQLiteDSN(trimmed))
	} else {
		if _, errParse := pgx.ParseConfig(trimmed); errParse != nil {
			return nil, fmt.Errorf("db: parse postgres dsn: %w", errParse)
		}
		dialector = postgres.Open(trimmed)
	}

	conn, errOpen := gorm.Open(dialector, &gorm.Config{
		Logger: newLogger(),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if errOpen != nil {
		return nil, fmt.Errorf("db: open: %w", errOpen)
	}

	sqlDB, errDB := conn.DB()
	if errDB != nil {
		return nil, fmt.Errorf("db: handle: %w", errDB)
	}
	if sqliteMode {
		// SQLite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return conn, nil
}

// IsSQLiteDSN reports whether the DSN addresses a SQLite database file.
func IsSQLiteDSN(dsn string) bool {
	trimmed := strings.TrimSpace(dsn)
	return strings.HasPrefix(trimmed, "file:") || strings.HasSuffix(trimmed, ".db") || strings.HasSuffix(trimmed, ".sqlite")
}

func buildSQLiteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

func newLogger() logger.Interface {
	return logger.New(log.StandardLogger(), logger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
