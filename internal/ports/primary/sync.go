// Package primary defines the primary ports (driving adapters) for the application.
package primary

import (
	"context"
	"time"

	"github.com/example/khal/internal/models"
)

// SyncService defines the primary port for loading and writing KHAL state.
//
// Every write accepts a partial payload: a nil field keeps the stored value,
// or the default when the entity is created. When LastSeenModifiedAt is set
// the write first checks the backend for a newer external change and fails
// with models.ErrConflict instead of overwriting it.
type SyncService interface {
	// LoadState reads every entity and derives the dashboard.
	LoadState(ctx context.Context) (*models.Snapshot, error)

	// HasConflict reports whether the backend changed after lastSeen.
	// A nil lastSeen never conflicts.
	HasConflict(ctx context.Context, lastSeen *time.Time) (bool, error)

	// SyncStatus describes the backend file without loading its content.
	SyncStatus(ctx context.Context, lastSeen *time.Time) (*models.SyncInfo, error)

	// RefreshIfStale reloads state when the backend changed after lastSeen.
	// The boolean reports whether a reload happened.
	RefreshIfStale(ctx context.Context, lastSeen *time.Time) (*models.Snapshot, bool, error)

	// Validate returns a *models.StructureError when the backend lacks
	// required structure.
	Validate(ctx context.Context) error

	// Normalize adds missing structure and reports what was added.
	Normalize(ctx context.Context) ([]string, error)

	WriteAffair(ctx context.Context, req WriteAffairRequest) (*WriteResult[models.Affair], error)
	WriteInterest(ctx context.Context, req WriteInterestRequest) (*WriteResult[models.Interest], error)
	WriteTask(ctx context.Context, req WriteTaskRequest) (*WriteResult[models.Task], error)
	WriteCraft(ctx context.Context, req WriteCraftRequest) (*WriteResult[models.Craft], error)
	// WriteCraftEntity upserts one entity of a craft level and replaces its
	// reference list. An omitted list clears the references.
	WriteCraftEntity(ctx context.Context, req WriteCraftEntityRequest) (*WriteResult[models.CraftEntity], error)
	// ReplaceCraftLinks replaces only the reference list of an existing
	// non-leaf entity.
	ReplaceCraftLinks(ctx context.Context, req ReplaceCraftLinksRequest) (*WriteResult[models.CraftEntity], error)
	WriteLaw(ctx context.Context, req WriteLawRequest) (*WriteResult[models.Law], error)

	// GetCraft retrieves a craft with all five levels.
	GetCraft(ctx context.Context, id string) (*models.Craft, error)

	// ListCrafts lists crafts ordered by name.
	ListCrafts(ctx context.Context) ([]models.Craft, error)

	// ListChanges returns the most recent write history, newest first.
	ListChanges(ctx context.Context, limit int) ([]models.ChangeEntry, error)

	// Import copies every entity of another backend file into this one.
	Import(ctx context.Context, req ImportRequest) (*ImportResult, error)
}

// WriteResult is the resolved entity after a write plus the backend
// modification time observed right after it.
type WriteResult[T any] struct {
	Entity     T
	ModifiedAt time.Time
}

// WriteAffairRequest contains parameters for creating or updating an affair.
type WriteAffairRequest struct {
	ID                 string
	DomainID           *string        `validate:"omitempty,min=1,max=100"`
	Title              *string        `validate:"required_without=ID,omitempty,min=1,max=200"`
	Description        *string        `validate:"omitempty,max=4000"`
	Timeline           *string        `validate:"omitempty,max=200"`
	Stakes             *float64       `validate:"omitempty,gte=0,lte=10"`
	Risk               *float64       `validate:"omitempty,gte=0,lte=10"`
	Status             *models.Status `validate:"omitempty,status"`
	CompletionPct      *float64       `validate:"omitempty,gte=0,lte=100"`
	LastSeenModifiedAt *time.Time
}

// WriteInterestRequest contains parameters for creating or updating an interest.
type WriteInterestRequest struct {
	ID                 string
	DomainID           *string        `validate:"omitempty,min=1,max=100"`
	Title              *string        `validate:"required_without=ID,omitempty,min=1,max=200"`
	Description        *string        `validate:"omitempty,max=4000"`
	Stakes             *float64       `validate:"omitempty,gte=0,lte=10"`
	Risk               *float64       `validate:"omitempty,gte=0,lte=10"`
	Convexity          *float64       `validate:"omitempty,gte=0,lte=10"`
	Asymmetry          *string        `validate:"omitempty,max=1000"`
	Upside             *string        `validate:"omitempty,max=1000"`
	Downside           *string        `validate:"omitempty,max=1000"`
	Status             *models.Status `validate:"omitempty,status"`
	Notes              *string        `validate:"omitempty,max=4000"`
	LastSeenModifiedAt *time.Time
}

// WriteTaskRequest contains parameters for creating or updating a task.
// A nil DependencyIDs keeps the stored dependencies; an empty slice clears
// them.
type WriteTaskRequest struct {
	ID                 string
	SourceType         *models.SourceType `validate:"required_without=ID,omitempty,source_type"`
	SourceID           *string            `validate:"required_without=ID,omitempty,min=1"`
	ParentTaskID       *string
	DependencyIDs      *[]string       `validate:"omitempty,dive,required"`
	Title              *string         `validate:"required_without=ID,omitempty,min=1,max=200"`
	Notes              *string         `validate:"omitempty,max=4000"`
	Horizon            *models.Horizon `validate:"omitempty,horizon"`
	DueDate            *string         `validate:"omitempty,max=40"`
	Status             *models.Status  `validate:"omitempty,status"`
	EffortEstimate     *float64        `validate:"omitempty,gte=0"`
	LastSeenModifiedAt *time.Time
}

// WriteCraftRequest contains parameters for creating or updating a craft.
type WriteCraftRequest struct {
	ID                 string
	Name               *string `validate:"required_without=ID,omitempty,min=1,max=200"`
	Description        *string `validate:"omitempty,max=4000"`
	LastSeenModifiedAt *time.Time
}

// WriteCraftEntityRequest contains parameters for upserting one entity of a
// craft level.
type WriteCraftEntityRequest struct {
	CraftID string            `validate:"required"`
	Level   models.CraftLevel `validate:"required,craft_level"`
	// ID is generated when empty. An unknown ID creates the entity with it.
	ID          string
	Title       *string `validate:"omitempty,max=200"`
	Type        *string `validate:"omitempty,max=40"`
	URL         *string `validate:"omitempty,max=2048"`
	Notes       *string `validate:"omitempty,max=4000"`
	Description *string `validate:"omitempty,max=4000"`
	Hedge       *string `validate:"omitempty,max=1000"`
	Edge        *string `validate:"omitempty,max=1000"`
	Content     *string `validate:"omitempty,max=4000"`
	// RefIDs lists the referenced child ids in order. Nil clears them.
	RefIDs             []string `validate:"dive,required"`
	LastSeenModifiedAt *time.Time
}

// ReplaceCraftLinksRequest names the entity whose references are replaced.
type ReplaceCraftLinksRequest struct {
	Level              models.CraftLevel `validate:"required,craft_level"`
	SourceID           string            `validate:"required"`
	TargetIDs          []string          `validate:"dive,required"`
	LastSeenModifiedAt *time.Time
}

// WriteLawRequest contains parameters for creating or updating a law.
// A nil CraftIDs keeps the stored associations.
type WriteLawRequest struct {
	ID                 string
	Name               *string   `validate:"required_without=ID,omitempty,min=1,max=200"`
	Description        *string   `validate:"omitempty,max=4000"`
	VolatilitySource   *string   `validate:"omitempty,max=1000"`
	CraftIDs           *[]string `validate:"omitempty,dive,required"`
	LastSeenModifiedAt *time.Time
}

// ImportRequest names the backend file to copy from.
type ImportRequest struct {
	SourcePath string `validate:"required"`
}

// ImportResult counts the entities copied by an import.
type ImportResult struct {
	Domains   int
	Affairs   int
	Interests int
	Tasks     int
	Crafts    int
	Laws      int
	Skipped   []models.SkippedRow
}
