package app

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// dsnInfo is the loggable part of a database DSN. Passwords are never kept.
type dsnInfo struct {
	Type        string
	Host        string
	Port        int
	User        string
	Name        string
	SSLMode     string
	Path        string
	PasswordSet bool
}

func parseDSN(dsn string) (dsnInfo, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return dsnInfo{}, fmt.Errorf("empty dsn")
	}

	lowered := strings.ToLower(trimmed)
	if strings.HasPrefix(lowered, "file:") {
		pathPart := trimmed[len("file:"):]
		pathPart, _, _ = strings.Cut(pathPart, "?")
		return dsnInfo{Type: "sqlite", Path: strings.TrimSpace(pathPart)}, nil
	}

	u, errParse := url.Parse(trimmed)
	if errParse != nil {
		return dsnInfo{}, fmt.Errorf("parse dsn: %w", errParse)
	}
	switch strings.ToLower(strings.TrimSpace(u.Scheme)) {
	case "postgres", "postgresql":
		port := 5432
		if rawPort := strings.TrimSpace(u.Port()); rawPort != "" {
			parsedPort, errPort := strconv.Atoi(rawPort)
			if errPort != nil {
				return dsnInfo{}, fmt.Errorf("parse port: %w", errPort)
			}
			port = parsedPort
		}
		info := dsnInfo{
			Type:    "postgres",
			Host:    strings.TrimSpace(u.Hostname()),
			Port:    port,
			Name:    strings.TrimSpace(strings.TrimPrefix(u.Path, "/")),
			SSLMode: strings.TrimSpace(u.Query().Get("sslmode")),
		}
		if info.SSLMode == "" {
			info.SSLMode = "disable"
		}
		if u.User != nil {
			info.User = strings.TrimSpace(u.User.Username())
			_, info.PasswordSet = u.User.Password()
		}
		return info, nil
	default:
		return dsnInfo{}, fmt.Errorf("unsupported dsn scheme")
	}
}

// DescribeDSN returns a redacted one-line summary of dsn suitable for logs.
func DescribeDSN(dsn string) string {
	info, err := parseDSN(dsn)
	if err != nil {
		return "unrecognized dsn"
	}
	if info.Type == "sqlite" {
		return "sqlite " + info.Path
	}
	user := info.User
	if info.PasswordSet {
		user += ":***"
	}
	if user != "" {
		user += "@"
	}
	return fmt.Sprintf("postgres %s%s:%d/%s (sslmode=%s)", user, info.Host, info.Port, info.Name, info.SSLMode)
}

func (i dsnInfo) fields() log.Fields {
	if i.Type == "sqlite" {
		return log.Fields{"db": i.Type, "path": i.Path}
	}
	return log.Fields{"db": i.Type, "host": i.Host, "port": i.Port, "name": i.Name}
}
