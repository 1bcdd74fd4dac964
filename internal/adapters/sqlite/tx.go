package sqlite

import (
	"context"
	"time"

	"github.com/example/khal/internal/models"
	"github.com/example/khal/internal/ports/secondary"
)

// tx implements secondary.StoreTx by delegating to per-entity repositories
// that share one *sql.Tx.
type tx struct {
	now       func() time.Time
	domains   *DomainRepository
	affairs   *AffairRepository
	interests *InterestRepository
	tasks     *TaskRepository
	crafts    *CraftRepository
	laws      *LawRepository
	narrative *NarrativeRepository
	meta      *MetaRepository
	changes   *ChangeLogRepository
}

func newTx(q querier, now func() time.Time) *tx {
	return &tx{
		now:       now,
		domains:   NewDomainRepository(q),
		affairs:   NewAffairRepository(q),
		interests: NewInterestRepository(q),
		tasks:     NewTaskRepository(q),
		crafts:    NewCraftRepository(q),
		laws:      NewLawRepository(q),
		narrative: NewNarrativeRepository(q),
		meta:      NewMetaRepository(q),
		changes:   NewChangeLogRepository(q),
	}
}

func (t *tx) GetDomain(ctx context.Context, id string) (*models.Domain, error) {
	return t.domains.GetByID(ctx, id)
}

func (t *tx) UpsertDomain(ctx context.Context, d *models.Domain) error {
	return t.domains.Upsert(ctx, d, t.now())
}

func (t *tx) GetAffair(ctx context.Context, id string) (*models.Affair, error) {
	return t.affairs.GetByID(ctx, id)
}

func (t *tx) UpsertAffair(ctx context.Context, a *models.Affair) error {
	return t.affairs.Upsert(ctx, a, t.now())
}

func (t *tx) GetInterest(ctx context.Context, id string) (*models.Interest, error) {
	return t.interests.GetByID(ctx, id)
}

func (t *tx) UpsertInterest(ctx context.Context, in *models.Interest) error {
	return t.interests.Upsert(ctx, in, t.now())
}

func (t *tx) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return t.tasks.GetByID(ctx, id)
}

func (t *tx) ListTasks(ctx context.Context) ([]models.Task, error) {
	return t.tasks.List(ctx)
}

func (t *tx) UpsertTask(ctx context.Context, task *models.Task) error {
	return t.tasks.Upsert(ctx, task, t.now())
}

func (t *tx) GetCraft(ctx context.Context, id string) (*models.Craft, error) {
	return t.crafts.GetByID(ctx, id)
}

func (t *tx) ListCrafts(ctx context.Context) ([]models.Craft, error) {
	return t.crafts.List(ctx)
}

func (t *tx) UpsertCraft(ctx context.Context, c *models.Craft) error {
	return t.crafts.Upsert(ctx, c, t.now())
}

func (t *tx) GetCraftEntity(ctx context.Context, level models.CraftLevel, id string) (*models.CraftEntity, error) {
	return t.crafts.GetEntity(ctx, level, id)
}

func (t *tx) ListCraftEntityIDs(ctx context.Context, craftID string, level models.CraftLevel) ([]string, error) {
	return t.crafts.ListEntityIDs(ctx, craftID, level)
}

func (t *tx) UpsertCraftEntity(ctx context.Context, e *models.CraftEntity) error {
	return t.crafts.UpsertEntity(ctx, e, t.now())
}

func (t *tx) ReplaceLinks(ctx context.Context, level models.CraftLevel, sourceID string, targetIDs []string) error {
	return t.crafts.ReplaceLinks(ctx, level, sourceID, targetIDs)
}

func (t *tx) GetLaw(ctx context.Context, id string) (*models.Law, error) {
	return t.laws.GetByID(ctx, id)
}

func (t *tx) UpsertLaw(ctx context.Context, l *models.Law) error {
	return t.laws.Upsert(ctx, l, t.now())
}

func (t *tx) LogChange(ctx context.Context, entry models.ChangeEntry) error {
	return t.changes.Append(ctx, entry)
}

func (t *tx) ListChanges(ctx context.Context, limit int) ([]models.ChangeEntry, error) {
	return t.changes.ListRecent(ctx, limit)
}

func (t *tx) ReplaceNarrative(ctx context.Context, n models.Narrative) error {
	return t.narrative.Replace(ctx, n)
}

var _ secondary.StoreTx = (*tx)(nil)
