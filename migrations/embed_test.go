package migrations

import (
	"strings"
	"testing"
)

func TestEmbeddedFS_ContainsMigrationFiles(t *testing.T) {
	entries, err := FS.ReadDir(".")
	if err != nil {
		t.Fatalf("failed to read embedded FS: %v", err)
	}

	found := false
	for _, entry := range entries {
		if entry.Name() == "001_initial_schema.sql" {
			found = true
			break
		}
	}

	if !found {
		t.Error("001_initial_schema.sql not found in embedded FS")
	}
}

func TestEmbeddedFS_MigrationFileReadable(t *testing.T) {
	content, err := FS.ReadFile("001_initial_schema.sql")
	if err != nil {
		t.Fatalf("failed to read migration file: %v", err)
	}

	schema := string(content)
	if len(schema) == 0 {
		t.Fatal("migration file is empty")
	}

	if !strings.Contains(schema, "-- +goose Up") {
		t.Error("migration missing '-- +goose Up' directive")
	}
	if !strings.Contains(schema, "-- +goose Down") {
		t.Error("migration missing '-- +goose Down' directive")
	}

	for _, table := range []string{
		"sync_queue_items",
		"push_subscriptions",
		"deadlines",
		"schedule_entries",
		"context_entries",
		"habit_checkins",
		"goal_checkins",
	} {
		if !strings.Contains(schema, "CREATE TABLE "+table) {
			t.Errorf("migration missing %s table creation", table)
		}
	}
}
