package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/chora/internal/notify"
	"github.com/roach88/chora/internal/testutil"
)

func TestOpen_CreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities.db")
	s, err := Open(path, testRegistry(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities.db")
	reg := testRegistry(t)

	s1, err := Open(path, reg)
	if err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	s1.Close()

	s2, err := Open(path, reg)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	s2.Close()
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities.db")
	reg := testRegistry(t)
	clock := testutil.NewClock(time.Time{}, 0)
	ctx := context.Background()

	s1, err := Open(path, reg, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := s1.Create(ctx, testFeature("feature-auth", "Auth")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	s1.Close()

	s2, err := Open(path, reg)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s2.Close()

	got, ok, err := s2.Read(ctx, "feature-auth")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !ok {
		t.Fatal("entity not found after reopen")
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/entities.db", testRegistry(t))
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s, _ := openTestStore(t)

	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Errorf("journal_mode: %v", err)
	}
	if err := s.verifyPragma("synchronous", "1"); err != nil {
		t.Errorf("synchronous: %v", err)
	}
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Errorf("foreign_keys: %v", err)
	}
}

func TestOpen_SchemaVersion(t *testing.T) {
	s, _ := openTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("query user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestOpen_TablesExist(t *testing.T) {
	s, _ := openTestStore(t)

	for _, table := range []string{"entities", "entities_fts", "entity_changes"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE name = ?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestClose_NilSafe(t *testing.T) {
	var s Store
	if err := s.Close(); err != nil {
		t.Errorf("Close() on zero store error = %v", err)
	}
}

func TestAccessors(t *testing.T) {
	n := notify.New()
	s, _ := openTestStore(t, WithNotifier(n))

	if s.DB() == nil {
		t.Error("DB() returned nil")
	}
	if s.Registry() == nil {
		t.Error("Registry() returned nil")
	}
	if s.Notifier() != n {
		t.Error("Notifier() did not return the attached notifier")
	}
}
