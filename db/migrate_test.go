package db

import (
	"strings"
	"testing"
)

// The Go models bind []string fields directly as pgx parameters, which only
// works against array columns. Guard the schema against drifting back to
// scalar TEXT for any of them.
func TestMigrationListColumnsAreArrays(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/0001_init.up.sql")
	if err != nil {
		t.Fatalf("reading embedded migration: %v", err)
	}
	schema := string(data)

	columns := []string{
		"current_topics TEXT[]",
		"learning_goals TEXT[]",
		"tags        TEXT[]",
		"topics     TEXT[]",
	}
	for _, col := range columns {
		if !strings.Contains(schema, col) {
			t.Errorf("migration missing array column declaration %q", col)
		}
	}
}
