package app

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/guess2/dailytrivia/internal/config"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ConfigureLogging applies level, formatter and output from cfg. When a log file is
// set, output goes to both stdout and a size-rotated file.
func ConfigureLogging(cfg config.LoggingConfig) (io.Closer, error) {
	level, errLevel := log.ParseLevel(strings.TrimSpace(cfg.Level))
	if errLevel != nil {
		return nil, fmt.Errorf("app: log level: %w", errLevel)
	}
	log.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true, DisableColors: cfg.DisableColor})
	default:
		return nil, fmt.Errorf("app: unknown log format %q", cfg.Format)
	}

	file := strings.TrimSpace(cfg.File)
	if file == "" {
		log.SetOutput(os.Stdout)
		return nopCloser{}, nil
	}
	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    positiveOr(cfg.MaxSizeMB, 100),
		MaxBackups: positiveOr(cfg.MaxBackups, 5),
		MaxAge:     positiveOr(cfg.MaxAgeDays, 30),
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	return rotator, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
