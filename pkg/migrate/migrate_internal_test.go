package migrate

import (
	"context"
	"io/fs"
	"path/filepath"
	"testing"
	"time"
)

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	files, err := fs.Glob(embeddedMigrations, "migrations/*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	if len(files) < 5 {
		t.Fatalf("expected core migrations to be embedded, got %v", files)
	}
	if err := ValidateDir(embeddedDir); err != nil {
		t.Fatalf("embedded migrations dir invalid: %v", err)
	}
}

func TestUseSourcePicksEmbeddedForDefaultDir(t *testing.T) {
	if got := useSource(DefaultDir); got != embeddedDir {
		t.Fatalf("expected embedded dir, got %q", got)
	}
	if got := useSource("/tmp/custom"); got != "/tmp/custom" {
		t.Fatalf("expected custom dir passthrough, got %q", got)
	}
}

func TestMigratorRejectsBadInput(t *testing.T) {
	if _, err := NewMigrator(nil, DefaultDir); err == nil {
		t.Fatalf("expected nil db to be rejected")
	}
	m := &Migrator{dir: embeddedDir}
	if err := m.Run(context.Background(), "fix"); err == nil {
		t.Fatalf("expected unknown goose command to be rejected")
	}
	if err := m.To(context.Background(), "latest"); err == nil {
		t.Fatalf("expected non-numeric version to be rejected")
	}
}

func TestCreateSQLMigrationStaysAfterNewestVersion(t *testing.T) {
	dir := t.TempDir()
	ahead := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	first, err := createSQLMigration(dir, "add notes", ahead)
	if err != nil {
		t.Fatalf("first migration: %v", err)
	}
	if filepath.Base(first) != "20300101000000_add_notes.sql" {
		t.Fatalf("unexpected first file %s", first)
	}

	second, err := createSQLMigration(dir, "--Index  Notes--", ahead.Add(-time.Hour))
	if err != nil {
		t.Fatalf("second migration: %v", err)
	}
	if filepath.Base(second) != "20300101000001_index_notes.sql" {
		t.Fatalf("expected the clock-behind migration to sort last, got %s", second)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("generated migrations should validate: %v", err)
	}

	if _, err := createSQLMigration(dir, "!!!", ahead); err == nil {
		t.Fatal("expected a name without letters or digits to be rejected")
	}
}
