package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/chora/internal/notify"
	"github.com/roach88/chora/internal/schema"
	"github.com/roach88/chora/internal/validate"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema (entities + fts + change log)
const currentSchemaVersion = 1

// Store provides durable, validated storage for entities.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db        *sql.DB
	reg       *schema.Registry
	validator *validate.Validator
	notifier  *notify.Notifier
	now       func() time.Time
	relaxed   bool
	onNotify  func(op string, errs []notify.DeliveryError)
}

// Option configures a Store at Open time.
type Option func(*Store)

// WithNotifier attaches a change notifier. Without one, writes commit
// silently.
func WithNotifier(n *notify.Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithClock overrides the timestamp source. Tests use a deterministic
// clock; production uses UTC wall time.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRelaxedVersioning makes Update ignore the caller-supplied version
// and overwrite whatever is stored (last write wins). The strict default
// rejects a mismatched version with VERSION_CONFLICT; relaxed mode is the
// opt-in compatibility behavior for callers that coordinate externally.
func WithRelaxedVersioning() Option {
	return func(s *Store) { s.relaxed = true }
}

// WithListenerErrorHandler overrides how listener failures surfaced by the
// notifier are reported. The default logs each failure; handlers must not
// assume the triggering write can still be aborted; it has committed.
func WithListenerErrorHandler(h func(op string, errs []notify.DeliveryError)) Option {
	return func(s *Store) { s.onNotify = h }
}

// Open creates or opens the entity database at path, governed by the given
// registry. Applies required pragmas, generates the entities table DDL
// from the registry, and runs migrations. Idempotent.
func Open(path string, reg *schema.Registry, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent callers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db, reg); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:        db,
		reg:       reg,
		validator: validate.New(reg),
		now:       func() time.Time { return time.Now().UTC() },
	}
	s.onNotify = func(op string, errs []notify.DeliveryError) {
		for _, de := range errs {
			slog.Warn("change listener failed",
				"op", op,
				"listener", de.ListenerID,
				"error", de.Err,
			)
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for read-only collaborators (the
// enhanced search layer). Prefer Store methods for writes.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Registry returns the schema registry governing this store.
func (s *Store) Registry() *schema.Registry {
	return s.reg
}

// Notifier returns the attached change notifier, or nil.
func (s *Store) Notifier() *notify.Notifier {
	return s.notifier
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// The entities table comes first: the static schema's triggers and
// indexes reference it.
func applySchema(db *sql.DB, reg *schema.Registry) error {
	if _, err := db.Exec(entitiesTableSQL(reg)); err != nil {
		return fmt.Errorf("failed to create entities table: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	// No incremental migrations yet; version 1 is the initial schema.

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// emit delivers a committed change event and routes listener failures to
// the configured handler. Never called before the transaction commits.
func (s *Store) emit(op string, ev notify.Event) {
	if s.notifier == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now()
	}
	if errs := s.notifier.Emit(ev); len(errs) > 0 && s.onNotify != nil {
		s.onNotify(op, errs)
	}
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
