package db

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestApplyPendingMigrations(t *testing.T) {
	source := fstest.MapFS{
		"001_create.sql": {Data: []byte("CREATE TABLE things (name TEXT);")},
		"002_index.sql":  {Data: []byte("CREATE INDEX idx_things_name ON things(name);")},
		"notes.txt":      {Data: []byte("ignored")},
	}

	database := openTestDB(t)
	manager := NewMigrationManagerFromFS(database, source)

	if err := manager.ApplyPendingMigrations(); err != nil {
		t.Fatal(err)
	}

	if _, err := database.Exec("INSERT INTO things (name) VALUES ('a')"); err != nil {
		t.Fatalf("migrated table unusable: %v", err)
	}

	applied, err := manager.GetAppliedMigrations()
	if err != nil {
		t.Fatal(err)
	}
	if len(applied) != 2 {
		t.Errorf("applied = %d migrations, want 2", len(applied))
	}

	// A second run has nothing to do and must not fail.
	if err := manager.ApplyPendingMigrations(); err != nil {
		t.Fatal(err)
	}
	pending, err := manager.GetPendingMigrations()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d migrations after full apply", len(pending))
	}
}

func TestEmbeddedMigrationsApply(t *testing.T) {
	database := openTestDB(t)

	if err := InitializeDatabase(database); err != nil {
		t.Fatal(err)
	}

	if _, err := database.Exec(
		"INSERT INTO projects (canonical_name, preferred_name) VALUES ('pkg-a', 'Pkg.A')"); err != nil {
		t.Fatalf("projects table missing after migration: %v", err)
	}
}

func TestFailedMigrationRollsBack(t *testing.T) {
	source := fstest.MapFS{
		"001_create.sql": {Data: []byte("CREATE TABLE things (name TEXT);")},
		"002_broken.sql": {Data: []byte("NOT VALID SQL;")},
	}

	database := openTestDB(t)
	manager := NewMigrationManagerFromFS(database, source)

	if err := manager.ApplyPendingMigrations(); err == nil {
		t.Fatal("broken migration did not fail")
	}

	applied, err := manager.GetAppliedMigrations()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := applied[2]; ok {
		t.Error("failed migration recorded as applied")
	}
	if _, ok := applied[1]; !ok {
		t.Error("successful migration not recorded")
	}
}
