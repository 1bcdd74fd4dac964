// Package secondary defines the secondary ports (driven adapters) for the application.
package secondary

import (
	"context"

	"github.com/example/khal/internal/models"
)

// Metadata keys shared by both backends.
const (
	MetaSchemaVersion = "schema_version"
	MetaSourceOfTruth = "source_of_truth"
	MetaLastWrite     = "last_write_timestamp"
	MetaLastLoaded    = "last_loaded_timestamp"
)

// LoadResult is the raw state a backend returns from a full load.
type LoadResult struct {
	State   models.State
	Meta    map[string]string
	Skipped []models.SkippedRow
}

// Store is the storage capability implemented by every backend. Each call
// opens the backing file and closes it before returning.
type Store interface {
	// Backend names the implementation.
	Backend() models.Backend

	// Path returns the backing file location.
	Path() string

	// Load reads every entity. It never repairs missing structure.
	Load(ctx context.Context) (*LoadResult, error)

	// View runs fn against a read-only transaction.
	View(ctx context.Context, fn func(tx StoreTx) error) error

	// Update runs fn against a write transaction. Nothing is persisted
	// unless fn returns nil; on success the last-write timestamp is
	// refreshed and the file is committed as a whole.
	Update(ctx context.Context, fn func(tx StoreTx) error) error

	// Validate returns the structural issues of the backing file.
	Validate(ctx context.Context) ([]string, error)

	// Normalize adds any missing structure and reports what it added.
	Normalize(ctx context.Context) ([]string, error)
}

// StoreTx exposes typed reads and upserts inside one Store call.
// Getters return an error wrapping models.ErrNotFound for absent ids.
type StoreTx interface {
	GetDomain(ctx context.Context, id string) (*models.Domain, error)
	UpsertDomain(ctx context.Context, d *models.Domain) error

	GetAffair(ctx context.Context, id string) (*models.Affair, error)
	UpsertAffair(ctx context.Context, a *models.Affair) error

	GetInterest(ctx context.Context, id string) (*models.Interest, error)
	UpsertInterest(ctx context.Context, in *models.Interest) error

	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context) ([]models.Task, error)
	// UpsertTask writes the task and replaces its dependency set.
	UpsertTask(ctx context.Context, t *models.Task) error

	GetCraft(ctx context.Context, id string) (*models.Craft, error)
	ListCrafts(ctx context.Context) ([]models.Craft, error)
	// UpsertCraft writes the craft's scalar fields only.
	UpsertCraft(ctx context.Context, c *models.Craft) error

	GetCraftEntity(ctx context.Context, level models.CraftLevel, id string) (*models.CraftEntity, error)
	// ListCraftEntityIDs returns the ids at level inside craftID.
	ListCraftEntityIDs(ctx context.Context, craftID string, level models.CraftLevel) ([]string, error)
	// UpsertCraftEntity writes scalar fields only; links go through ReplaceLinks.
	UpsertCraftEntity(ctx context.Context, e *models.CraftEntity) error
	// ReplaceLinks deletes every link of sourceID then writes targetIDs
	// in order.
	ReplaceLinks(ctx context.Context, level models.CraftLevel, sourceID string, targetIDs []string) error

	GetLaw(ctx context.Context, id string) (*models.Law, error)
	// UpsertLaw writes the law and replaces its craft associations.
	UpsertLaw(ctx context.Context, l *models.Law) error

	// LogChange appends one entry to the change history.
	LogChange(ctx context.Context, entry models.ChangeEntry) error
	// ListChanges returns the most recent history entries, newest first.
	ListChanges(ctx context.Context, limit int) ([]models.ChangeEntry, error)

	// ReplaceNarrative overwrites the stored narrative. Backends whose
	// narrative is derived from free text reject it.
	ReplaceNarrative(ctx context.Context, n models.Narrative) error
}
