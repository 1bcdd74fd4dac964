package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/khal/internal/core/scoring"
	"github.com/example/khal/internal/ctxutil"
	"github.com/example/khal/internal/models"
	"github.com/example/khal/internal/ports/primary"
	"github.com/example/khal/internal/ports/secondary"
	"github.com/example/khal/internal/telemetry"
)

// StoreOpener builds a store for another backend file, used by Import.
type StoreOpener func(path string) (secondary.Store, error)

// SyncServiceImpl implements the SyncService interface on top of a single
// configured store.
type SyncServiceImpl struct {
	store   secondary.Store
	fs      secondary.FileSystem
	opener  StoreOpener
	metrics *telemetry.Metrics
	logger  *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewSyncService creates a new SyncService with injected dependencies.
func NewSyncService(
	store secondary.Store,
	fs secondary.FileSystem,
	opener StoreOpener,
	metrics *telemetry.Metrics,
	logger *slog.Logger,
) *SyncServiceImpl {
	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncServiceImpl{
		store:   store,
		fs:      fs,
		opener:  opener,
		metrics: metrics,
		logger:  logger.With("backend", string(store.Backend()), "path", store.Path()),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// LoadState reads every entity, orders each collection newest first and
// derives the dashboard. The reported modification time is read after the
// load so that writes made by the load itself never look external.
func (s *SyncServiceImpl) LoadState(ctx context.Context) (*models.Snapshot, error) {
	start := time.Now()
	backend := string(s.store.Backend())

	result, err := s.store.Load(ctx)
	if err != nil {
		s.metrics.Observe(backend, "load", telemetry.ResultError, start)
		return nil, err
	}

	modTime, _, err := s.fs.ModTime(ctx, s.store.Path())
	if err != nil {
		s.metrics.Observe(backend, "load", telemetry.ResultError, start)
		return nil, &models.IOError{Op: "stat", Path: s.store.Path(), Err: err}
	}

	state := result.State
	for i := range state.Affairs {
		state.Affairs[i].FragilityScore = scoring.FragilityScore(state.Affairs[i].Stakes, state.Affairs[i].Risk)
	}
	sortState(&state)

	for _, row := range result.Skipped {
		s.metrics.SkippedRows.WithLabelValues(row.Sheet).Inc()
		s.logger.Warn("skipped malformed row", "sheet", row.Sheet, "row", row.Row, "reason", row.Reason)
	}
	s.metrics.Observe(backend, "load", telemetry.ResultOK, start)

	return &models.Snapshot{
		State:     state,
		Dashboard: dashboard(state),
		Sync: models.SyncInfo{
			Backend:       s.store.Backend(),
			Path:          s.store.Path(),
			ModifiedAt:    modTime,
			LoadedAt:      s.now().UTC(),
			Stale:         false,
			SourceOfTruth: result.Meta[secondary.MetaSourceOfTruth],
			SchemaVersion: result.Meta[secondary.MetaSchemaVersion],
			SkippedRows:   result.Skipped,
		},
	}, nil
}

func dashboard(state models.State) models.Dashboard {
	return models.Dashboard{
		DoNow:              scoring.RankDoNow(state.Affairs, state.Interests, state.Tasks),
		OptionalityIndex:   scoring.OptionalityIndex(state.Interests),
		RobustnessProgress: scoring.RobustnessProgress(state.Affairs),
	}
}

// sortState applies the same ordering to both backends: row entities by
// creation time, newest first, and named entities by name.
func sortState(state *models.State) {
	newestFirst := func(a, b time.Time, idA, idB string) bool {
		if !a.Equal(b) {
			return a.After(b)
		}
		return idA < idB
	}
	byName := func(a, b, idA, idB string) bool {
		if a != b {
			return strings.ToLower(a) < strings.ToLower(b)
		}
		return idA < idB
	}

	sort.SliceStable(state.Domains, func(i, j int) bool {
		return byName(state.Domains[i].Name, state.Domains[j].Name, state.Domains[i].ID, state.Domains[j].ID)
	})
	sort.SliceStable(state.Affairs, func(i, j int) bool {
		return newestFirst(state.Affairs[i].CreatedAt, state.Affairs[j].CreatedAt, state.Affairs[i].ID, state.Affairs[j].ID)
	})
	sort.SliceStable(state.Interests, func(i, j int) bool {
		return newestFirst(state.Interests[i].CreatedAt, state.Interests[j].CreatedAt, state.Interests[i].ID, state.Interests[j].ID)
	})
	sort.SliceStable(state.Tasks, func(i, j int) bool {
		return newestFirst(state.Tasks[i].CreatedAt, state.Tasks[j].CreatedAt, state.Tasks[i].ID, state.Tasks[j].ID)
	})
	sort.SliceStable(state.Crafts, func(i, j int) bool {
		return byName(state.Crafts[i].Name, state.Crafts[j].Name, state.Crafts[i].ID, state.Crafts[j].ID)
	})
	sort.SliceStable(state.Laws, func(i, j int) bool {
		return byName(state.Laws[i].Name, state.Laws[j].Name, state.Laws[i].ID, state.Laws[j].ID)
	})

	if state.Domains == nil {
		state.Domains = []models.Domain{}
	}
	if state.Affairs == nil {
		state.Affairs = []models.Affair{}
	}
	if state.Interests == nil {
		state.Interests = []models.Interest{}
	}
	if state.Tasks == nil {
		state.Tasks = []models.Task{}
	}
	if state.Crafts == nil {
		state.Crafts = []models.Craft{}
	}
	if state.Laws == nil {
		state.Laws = []models.Law{}
	}
}

// HasConflict reports whether the backend file changed after lastSeen.
// It is true only when lastSeen is given, the file exists and its
// modification time is strictly later.
func (s *SyncServiceImpl) HasConflict(ctx context.Context, lastSeen *time.Time) (bool, error) {
	if lastSeen == nil {
		return false, nil
	}
	modTime, exists, err := s.fs.ModTime(ctx, s.store.Path())
	if err != nil {
		return false, &models.IOError{Op: "stat", Path: s.store.Path(), Err: err}
	}
	if !exists {
		return false, nil
	}
	return modTime.After(*lastSeen), nil
}

// SyncStatus describes the backend file without loading it.
func (s *SyncServiceImpl) SyncStatus(ctx context.Context, lastSeen *time.Time) (*models.SyncInfo, error) {
	modTime, _, err := s.fs.ModTime(ctx, s.store.Path())
	if err != nil {
		return nil, &models.IOError{Op: "stat", Path: s.store.Path(), Err: err}
	}
	stale, err := s.HasConflict(ctx, lastSeen)
	if err != nil {
		return nil, err
	}
	return &models.SyncInfo{
		Backend:    s.store.Backend(),
		Path:       s.store.Path(),
		ModifiedAt: modTime,
		LoadedAt:   s.now().UTC(),
		Stale:      stale,
	}, nil
}

// RefreshIfStale reloads when the backend changed after lastSeen.
func (s *SyncServiceImpl) RefreshIfStale(ctx context.Context, lastSeen *time.Time) (*models.Snapshot, bool, error) {
	stale, err := s.HasConflict(ctx, lastSeen)
	if err != nil {
		return nil, false, err
	}
	if !stale && lastSeen != nil {
		return nil, false, nil
	}
	snap, err := s.LoadState(ctx)
	if err != nil {
		return nil, false, err
	}
	return snap, true, nil
}

// Validate returns a *models.StructureError when the backend reports issues.
func (s *SyncServiceImpl) Validate(ctx context.Context) error {
	issues, err := s.store.Validate(ctx)
	if err != nil {
		return err
	}
	if len(issues) > 0 {
		return &models.StructureError{Path: s.store.Path(), Issues: issues}
	}
	return nil
}

// Normalize adds missing structure to the backend.
func (s *SyncServiceImpl) Normalize(ctx context.Context) ([]string, error) {
	added, err := s.store.Normalize(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize backend: %w", err)
	}
	return added, nil
}

// GetCraft retrieves a craft with all five levels.
func (s *SyncServiceImpl) GetCraft(ctx context.Context, id string) (*models.Craft, error) {
	var out *models.Craft
	err := s.store.View(ctx, func(tx secondary.StoreTx) error {
		var err error
		out, err = tx.GetCraft(ctx, id)
		return err
	})
	return out, err
}

// ListCrafts lists crafts ordered by name.
func (s *SyncServiceImpl) ListCrafts(ctx context.Context) ([]models.Craft, error) {
	var out []models.Craft
	err := s.store.View(ctx, func(tx secondary.StoreTx) error {
		var err error
		out, err = tx.ListCrafts(ctx)
		return err
	})
	return out, err
}

// ListChanges returns the most recent write history.
func (s *SyncServiceImpl) ListChanges(ctx context.Context, limit int) ([]models.ChangeEntry, error) {
	var out []models.ChangeEntry
	err := s.store.View(ctx, func(tx secondary.StoreTx) error {
		var err error
		out, err = tx.ListChanges(ctx, limit)
		return err
	})
	return out, err
}

// write runs the conflict check and then fn inside one store update. It
// returns the file modification time observed after the commit.
func (s *SyncServiceImpl) write(ctx context.Context, op string, lastSeen *time.Time, fn func(tx secondary.StoreTx) error) (time.Time, error) {
	start := time.Now()
	backend := string(s.store.Backend())

	fail := func(err error) (time.Time, error) {
		result := telemetry.ResultError
		switch {
		case errors.Is(err, models.ErrConflict):
			result = telemetry.ResultConflict
			s.metrics.Conflicts.Inc()
		case errors.Is(err, models.ErrDependenciesIncomplete):
			result = telemetry.ResultRejected
			s.metrics.DependencyRejections.Inc()
		case errors.Is(err, models.ErrValidation):
			result = telemetry.ResultRejected
		}
		s.metrics.Observe(backend, op, result, start)
		s.logger.Warn("write rejected", "op", op, "result", result, "error", err,
			"operation_id", ctxutil.OperationIDFromContext(ctx))
		return time.Time{}, err
	}

	conflict, err := s.HasConflict(ctx, lastSeen)
	if err != nil {
		return fail(err)
	}
	if conflict {
		return fail(fmt.Errorf("%s: %w", s.store.Path(), models.ErrConflict))
	}

	if err := s.store.Update(ctx, fn); err != nil {
		return fail(err)
	}

	modTime, _, err := s.fs.ModTime(ctx, s.store.Path())
	if err != nil {
		return fail(&models.IOError{Op: "stat", Path: s.store.Path(), Err: err})
	}

	s.metrics.Observe(backend, op, telemetry.ResultOK, start)
	s.logger.Info("write committed", "op", op, "operation_id", ctxutil.OperationIDFromContext(ctx))
	return modTime, nil
}

// logChange appends a history entry for entityType/entityID.
func (s *SyncServiceImpl) logChange(ctx context.Context, tx secondary.StoreTx, entityType, entityID, action string) error {
	return tx.LogChange(ctx, models.ChangeEntry{
		ID:         s.newID(),
		Actor:      ctxutil.ActorFromContext(ctx),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		CreatedAt:  s.now().UTC(),
	})
}

// ensureDomain creates domainID when no such domain exists yet.
func (s *SyncServiceImpl) ensureDomain(ctx context.Context, tx secondary.StoreTx, domainID string) error {
	_, err := tx.GetDomain(ctx, domainID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return err
	}
	d := models.AutoDomain(domainID, s.now().UTC())
	if err := tx.UpsertDomain(ctx, &d); err != nil {
		return fmt.Errorf("failed to create domain %s: %w", domainID, err)
	}
	return nil
}

// resolveID returns id, or a new one when id is empty.
func (s *SyncServiceImpl) resolveID(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return s.newID()
}

// lookup maps a getter result to (found, error), treating ErrNotFound as
// absent.
func lookup(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, models.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func action(found bool) string {
	if found {
		return models.ActionUpdate
	}
	return models.ActionCreate
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

// Ensure SyncServiceImpl implements the interface
var _ primary.SyncService = (*SyncServiceImpl)(nil)

func isValidation(err error) bool {
	return errors.Is(err, models.ErrValidation)
}
