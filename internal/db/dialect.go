package db

import (
	"encoding/json"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// likeEscaper escapes LIKE wildcards so user input only matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// DialectName is the name of conn's dialector, or "" when unset.
func DialectName(conn *gorm.DB) string {
	if conn == nil || conn.Dialector == nil {
		return ""
	}
	return conn.Dialector.Name()
}

// IsSQLite reports whether conn talks to SQLite.
func IsSQLite(conn *gorm.DB) bool {
	return DialectName(conn) == DialectSQLite
}

// ContainsFold builds a condition matching rows where any of columns contains term,
// ignoring case. It returns the SQL fragment and one bind value per column.
func ContainsFold(conn *gorm.DB, term string, columns ...string) (string, []any) {
	pattern := "%" + likeEscaper.Replace(term) + "%"
	sqlite := IsSQLite(conn)
	if sqlite {
		pattern = strings.ToLower(pattern)
	}
	parts := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns))
	for _, column := range columns {
		if sqlite {
			parts = append(parts, "LOWER("+column+`) LIKE ? ESCAPE '\'`)
		} else {
			parts = append(parts, column+` ILIKE ? ESCAPE '\'`)
		}
		args = append(args, pattern)
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

// JSONArrayHas builds a condition matching rows whose JSON string array column
// holds value.
func JSONArrayHas(conn *gorm.DB, column, value string) (string, any) {
	if IsSQLite(conn) {
		return "EXISTS (SELECT 1 FROM json_each(" + column + ") WHERE value = ?)", value
	}
	raw, _ := json.Marshal([]string{value})
	return column + " @> ?", datatypes.JSON(raw)
}
