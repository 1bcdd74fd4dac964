package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/example/khal/internal/db"
	"github.com/example/khal/internal/models"
	"github.com/example/khal/internal/ports/secondary"
)

// requiredTables are checked by Validate.
var requiredTables = []string{
	"meta_kv", "domains", "affairs", "interests", "tasks", "task_dependencies",
	"crafts", "craft_heaps", "craft_models", "craft_frameworks", "craft_barbell_strategies", "craft_heuristics",
	"craft_model_heap_links", "craft_framework_model_links", "craft_barbell_framework_links", "craft_heuristic_barbell_links",
	"laws", "law_crafts", "narrative_meta", "narrative_blocks", "change_log",
}

// Store implements secondary.Store over a SQLite file. It holds no
// connection between calls.
type Store struct {
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for store diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the time source. Tests use it for stable timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store for the database at path.
func NewStore(path string, opts ...Option) *Store {
	s := &Store{
		path:   path,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend implements secondary.Store.
func (s *Store) Backend() models.Backend { return models.BackendSQLite }

// Path implements secondary.Store.
func (s *Store) Path() string { return s.path }

// Load reads every entity inside one transaction.
func (s *Store) Load(ctx context.Context) (*secondary.LoadResult, error) {
	var result secondary.LoadResult
	err := s.View(ctx, func(stx secondary.StoreTx) error {
		t := stx.(*tx)
		var err error

		if result.State.Domains, err = t.domains.List(ctx); err != nil {
			return err
		}
		if result.State.Affairs, err = t.affairs.List(ctx); err != nil {
			return err
		}
		if result.State.Interests, err = t.interests.List(ctx); err != nil {
			return err
		}
		if result.State.Tasks, err = t.tasks.List(ctx); err != nil {
			return err
		}
		if result.State.Crafts, err = t.crafts.List(ctx); err != nil {
			return err
		}
		if result.State.Laws, err = t.laws.List(ctx); err != nil {
			return err
		}
		if result.State.Narrative, err = t.narrative.Get(ctx); err != nil {
			return err
		}
		result.Meta, err = t.meta.All(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// View runs fn inside a transaction that is always rolled back.
func (s *Store) View(ctx context.Context, fn func(secondary.StoreTx) error) error {
	conn, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	sqlTx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return &models.IOError{Op: "begin read on", Path: s.path, Err: err}
	}
	defer sqlTx.Rollback()

	return fn(newTx(sqlTx, s.now))
}

// Update runs fn inside a transaction. The transaction commits, with the
// last-write timestamp refreshed, only when fn succeeds.
func (s *Store) Update(ctx context.Context, fn func(secondary.StoreTx) error) error {
	conn, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	sqlTx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return &models.IOError{Op: "begin write on", Path: s.path, Err: err}
	}
	defer sqlTx.Rollback()

	t := newTx(sqlTx, s.now)
	if err := fn(t); err != nil {
		return err
	}

	if err := t.meta.Set(ctx, secondary.MetaLastWrite, s.now().UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return &models.IOError{Op: "commit", Path: s.path, Err: err}
	}

	s.logger.Debug("sqlite transaction committed", "path", s.path)
	return nil
}

// Validate reports missing tables and pending migrations without changing
// the file.
func (s *Store) Validate(ctx context.Context) ([]string, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return []string{"Database file not found"}, nil
	}

	conn, err := db.OpenReadOnly(ctx, s.path)
	if err != nil {
		return nil, &models.IOError{Op: "open", Path: s.path, Err: err}
	}
	defer conn.Close()

	present := map[string]bool{}
	rows, err := conn.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		present[name] = true
	}
	rows.Close()

	var issues []string
	for _, table := range requiredTables {
		if !present[table] {
			issues = append(issues, "Missing required table: "+table)
		}
	}

	if present["meta_kv"] {
		var version sql.NullString
		err := conn.QueryRowContext(ctx, "SELECT value FROM meta_kv WHERE key = ?", secondary.MetaSchemaVersion).Scan(&version)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to read schema version: %w", err)
		}
		if latest := db.LatestSchemaVersion(); version.String != latest {
			issues = append(issues, fmt.Sprintf("Schema version %q is behind %q", version.String, latest))
		}
	}

	return issues, nil
}

// Normalize applies pending migrations and reports their names.
func (s *Store) Normalize(ctx context.Context) ([]string, error) {
	conn, applied, err := db.OpenWithMigrations(ctx, s.path)
	if err != nil {
		return nil, &models.IOError{Op: "migrate", Path: s.path, Err: err}
	}
	defer conn.Close()

	var added []string
	for _, name := range applied {
		added = append(added, "Applied migration "+name)
	}
	if len(applied) > 0 {
		s.logger.Info("sqlite schema migrated", "path", s.path, "applied", applied)
	}
	return added, nil
}

func (s *Store) open(ctx context.Context) (*sql.DB, error) {
	conn, err := db.Open(ctx, s.path)
	if err != nil {
		return nil, &models.IOError{Op: "open", Path: s.path, Err: err}
	}
	return conn, nil
}

// Ensure Store implements the interface
var _ secondary.Store = (*Store)(nil)
