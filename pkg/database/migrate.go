package database

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var schema string

// Migrate creates the timetable tables when they do not exist yet. The schema is shared by the
// Postgres and SQLite drivers.
func Migrate(db *sqlx.DB) error {
	for i, stmt := range statements(schema) {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

func statements(script string) []string {
	parts := strings.Split(script, ";")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if stmt := strings.TrimSpace(part); stmt != "" {
			result = append(result, stmt)
		}
	}
	return result
}
