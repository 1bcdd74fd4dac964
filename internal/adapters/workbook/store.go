package workbook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/example/khal/internal/models"
	"github.com/example/khal/internal/ports/secondary"
)

// SourceOfTruth is the marker reported for workbook-backed state.
const SourceOfTruth = "workbook"

// Store implements secondary.Store on an .xlsx file. Every call opens the
// file, decodes it and closes it; writes replace the whole file atomically.
type Store struct {
	path   string
	fs     secondary.FileSystem
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a workbook store for path. Files are replaced through fsys.
func NewStore(path string, fsys secondary.FileSystem, opts ...Option) *Store {
	s := &Store{
		path:   path,
		fs:     fsys,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend implements secondary.Store.
func (s *Store) Backend() models.Backend { return models.BackendWorkbook }

// Path implements secondary.Store.
func (s *Store) Path() string { return s.path }

// Load decodes every sheet. Rows that received new ids are persisted so
// their identity survives the next load; nothing else is written.
func (s *Store) Load(ctx context.Context) (*secondary.LoadResult, error) {
	b, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer b.file.Close()

	if b.assigned {
		b.meta.lastLoaded = formatTime(s.now())
		if err := s.save(ctx, b); err != nil {
			return nil, err
		}
		s.logger.Info("workbook row ids assigned", "path", s.path)
	}

	return &secondary.LoadResult{
		State: b.state(),
		Meta: map[string]string{
			secondary.MetaSchemaVersion: b.meta.version,
			secondary.MetaSourceOfTruth: SourceOfTruth,
			secondary.MetaLastWrite:     b.meta.lastWrite,
			secondary.MetaLastLoaded:    b.meta.lastLoaded,
			metaSchemaHash:              b.meta.schemaHash,
		},
		Skipped: append([]models.SkippedRow(nil), b.skipped...),
	}, nil
}

// View runs fn against the decoded workbook without writing it back.
func (s *Store) View(ctx context.Context, fn func(secondary.StoreTx) error) error {
	b, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer b.file.Close()

	return fn(&tx{b: b})
}

// Update runs fn and, when it succeeds, rewrites the whole workbook with a
// fresh write timestamp. A failing fn leaves the file untouched.
func (s *Store) Update(ctx context.Context, fn func(secondary.StoreTx) error) error {
	b, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer b.file.Close()

	if err := fn(&tx{b: b}); err != nil {
		return err
	}

	b.meta.lastWrite = formatTime(s.now())
	if err := s.save(ctx, b); err != nil {
		return err
	}
	s.logger.Debug("workbook rewritten", "path", s.path)
	return nil
}

// Validate lists missing required sheets and unsupported versions without
// parsing any rows.
func (s *Store) Validate(ctx context.Context) ([]string, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return []string{"Workbook file not found"}, nil
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, &models.IOError{Op: "open", Path: s.path, Err: err}
	}
	defer f.Close()

	_, issues := resolveSheets(f.GetSheetList())
	m, err := readMeta(f)
	if err != nil {
		issues = append(issues, err.Error())
	} else if _, err := layoutFor(m.version); err != nil {
		issues = append(issues, err.Error())
	}
	return issues, nil
}

// Normalize creates the workbook when absent and adds any missing required
// or hidden sheets. It reports one line per sheet added.
func (s *Store) Normalize(ctx context.Context) ([]string, error) {
	f, created, err := s.openOrCreate()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := readMeta(f)
	if err != nil {
		return nil, &models.IOError{Op: "read metadata of", Path: s.path, Err: err}
	}
	if created {
		m.version = CurrentVersion
	}
	l, err := layoutFor(m.version)
	if err != nil {
		return nil, &models.StructureError{Path: s.path, Issues: []string{err.Error()}}
	}

	var added []string
	if created {
		added = append(added, "Created workbook")
	}

	resolved, _ := resolveSheets(f.GetSheetList())
	for _, req := range requiredSheets {
		if _, ok := resolved[req.name]; ok {
			continue
		}
		if err := addEntitySheet(f, req.name, l); err != nil {
			return nil, &models.IOError{Op: "add sheet to", Path: s.path, Err: err}
		}
		added = append(added, "Added sheet: "+req.name)
	}
	if created {
		// NewFile starts with a placeholder sheet
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, &models.IOError{Op: "prepare", Path: s.path, Err: err}
		}
	}

	comp, err := readCompanion(f)
	if err != nil {
		return nil, &models.IOError{Op: "read", Path: s.path, Err: err}
	}
	for _, sheet := range hiddenSheets {
		if idx, err := f.GetSheetIndex(sheet); err == nil && idx >= 0 {
			continue
		}
		added = append(added, "Added sheet: "+sheet)
	}
	if len(added) == 0 {
		return nil, nil
	}

	if err := writeCompanion(f, comp); err != nil {
		return nil, &models.IOError{Op: "write", Path: s.path, Err: err}
	}
	if err := writeMeta(f, m); err != nil {
		return nil, &models.IOError{Op: "write", Path: s.path, Err: err}
	}
	if resolved, _ := resolveSheets(f.GetSheetList()); resolved[SheetWarRoom] != "" {
		if idx, err := f.GetSheetIndex(resolved[SheetWarRoom]); err == nil && idx >= 0 {
			f.SetActiveSheet(idx)
		}
	}
	if err := s.write(ctx, f); err != nil {
		return nil, err
	}

	s.logger.Info("workbook normalized", "path", s.path, "added", added)
	return added, nil
}

func (s *Store) openOrCreate() (*excelize.File, bool, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return excelize.NewFile(), true, nil
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, false, &models.IOError{Op: "open", Path: s.path, Err: err}
	}
	return f, false, nil
}

// addEntitySheet creates a required sheet with the banner and header rows
// of l.
func addEntitySheet(f *excelize.File, name string, l layout) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}

	var h header
	switch name {
	case SheetAffairs:
		h = affairHeader
	case SheetInterests:
		h = interestHeader
	default:
		return nil
	}
	if l.banner {
		if err := setRow(f, name, 1, []any{name}); err != nil {
			return err
		}
	}
	return setRow(f, name, l.headerRow, h.titles())
}

// open reads and decodes the workbook, rejecting files that lack a
// required sheet before any row is parsed.
func (s *Store) open(ctx context.Context) (*book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, &models.IOError{Op: "open", Path: s.path, Err: err}
	}

	sheets, missing := resolveSheets(f.GetSheetList())
	if len(missing) > 0 {
		f.Close()
		return nil, &models.StructureError{Path: s.path, Issues: missing}
	}

	b, err := openBook(f, sheets, s.now)
	if err != nil {
		f.Close()
		return nil, &models.IOError{Op: "decode", Path: s.path, Err: err}
	}
	return b, nil
}

func (s *Store) save(ctx context.Context, b *book) error {
	if err := b.flush(); err != nil {
		return &models.IOError{Op: "encode", Path: s.path, Err: err}
	}
	return s.write(ctx, b.file)
}

func (s *Store) write(ctx context.Context, f *excelize.File) error {
	err := s.fs.WriteFileAtomic(ctx, s.path, func(w io.Writer) error {
		return f.Write(w)
	})
	if err != nil {
		return &models.IOError{Op: "write", Path: s.path, Err: fmt.Errorf("replace workbook: %w", err)}
	}
	return nil
}

// Ensure Store implements the interface
var _ secondary.Store = (*Store)(nil)
