package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/example/khal/internal/core/craft"
	"github.com/example/khal/internal/models"
	"github.com/example/khal/internal/ports/secondary"
	"github.com/example/khal/internal/telemetry"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// memData is the full content of a mock store.
type memData struct {
	domains   map[string]models.Domain
	affairs   map[string]models.Affair
	interests map[string]models.Interest
	tasks     map[string]models.Task
	crafts    map[string]models.Craft
	entities  map[string]models.CraftEntity
	links     map[string][]string
	laws      map[string]models.Law
	changes   []models.ChangeEntry
	narrative models.Narrative
}

func newMemData() *memData {
	return &memData{
		domains:   map[string]models.Domain{},
		affairs:   map[string]models.Affair{},
		interests: map[string]models.Interest{},
		tasks:     map[string]models.Task{},
		crafts:    map[string]models.Craft{},
		entities:  map[string]models.CraftEntity{},
		links:     map[string][]string{},
		laws:      map[string]models.Law{},
	}
}

func cloneMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (d *memData) clone() *memData {
	out := &memData{
		domains:   cloneMap(d.domains),
		affairs:   cloneMap(d.affairs),
		interests: cloneMap(d.interests),
		tasks:     map[string]models.Task{},
		crafts:    cloneMap(d.crafts),
		entities:  cloneMap(d.entities),
		links:     map[string][]string{},
		laws:      cloneMap(d.laws),
		changes:   append([]models.ChangeEntry(nil), d.changes...),
		narrative: d.narrative,
	}
	for k, t := range d.tasks {
		out.tasks[k] = t.Clone()
	}
	for k, ids := range d.links {
		out.links[k] = append([]string(nil), ids...)
	}
	return out
}

func entityKey(level models.CraftLevel, id string) string {
	return string(level) + "/" + id
}

// mockStore implements secondary.Store in memory. Update works on a copy
// and only swaps it in when fn succeeds, then advances the file clock.
type mockStore struct {
	data        *memData
	fs          *mockFileSystem
	path        string
	backend     models.Backend
	meta        map[string]string
	skipped     []models.SkippedRow
	issues      []string
	updates     int
	readOnlyNar bool
	now         func() time.Time
}

func newMockStore(fs *mockFileSystem) *mockStore {
	return &mockStore{
		data:    newMemData(),
		fs:      fs,
		path:    "/data/KHAL.sqlite",
		backend: models.BackendSQLite,
		meta:    map[string]string{secondary.MetaSourceOfTruth: "sqlite", secondary.MetaSchemaVersion: "4"},
		now:     func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func (m *mockStore) Backend() models.Backend { return m.backend }

func (m *mockStore) Path() string { return m.path }

func (m *mockStore) Load(ctx context.Context) (*secondary.LoadResult, error) {
	tx := &mockTx{data: m.data, store: m}
	state := models.State{Narrative: m.data.narrative}
	for _, d := range m.data.domains {
		state.Domains = append(state.Domains, d)
	}
	for _, a := range m.data.affairs {
		state.Affairs = append(state.Affairs, a)
	}
	for _, in := range m.data.interests {
		state.Interests = append(state.Interests, in)
	}
	for _, t := range m.data.tasks {
		state.Tasks = append(state.Tasks, t.Clone())
	}
	crafts, _ := tx.ListCrafts(ctx)
	state.Crafts = crafts
	for _, l := range m.data.laws {
		state.Laws = append(state.Laws, l)
	}
	return &secondary.LoadResult{State: state, Meta: m.meta, Skipped: m.skipped}, nil
}

func (m *mockStore) View(ctx context.Context, fn func(secondary.StoreTx) error) error {
	return fn(&mockTx{data: m.data.clone(), store: m})
}

func (m *mockStore) Update(ctx context.Context, fn func(secondary.StoreTx) error) error {
	work := m.data.clone()
	if err := fn(&mockTx{data: work, store: m}); err != nil {
		return err
	}
	m.data = work
	m.updates++
	if m.fs != nil {
		m.fs.touch()
	}
	return nil
}

func (m *mockStore) Validate(ctx context.Context) ([]string, error) {
	return m.issues, nil
}

func (m *mockStore) Normalize(ctx context.Context) ([]string, error) {
	added := m.issues
	m.issues = nil
	return added, nil
}

// mockTx implements secondary.StoreTx over memData.
type mockTx struct {
	data  *memData
	store *mockStore
}

func (t *mockTx) stamp(created *time.Time, updated *time.Time) {
	now := t.store.now()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

func (t *mockTx) GetDomain(ctx context.Context, id string) (*models.Domain, error) {
	d, ok := t.data.domains[id]
	if !ok {
		return nil, models.NotFound("domain", id)
	}
	return &d, nil
}

func (t *mockTx) UpsertDomain(ctx context.Context, d *models.Domain) error {
	v := *d
	t.stamp(&v.CreatedAt, &v.UpdatedAt)
	t.data.domains[v.ID] = v
	return nil
}

func (t *mockTx) GetAffair(ctx context.Context, id string) (*models.Affair, error) {
	a, ok := t.data.affairs[id]
	if !ok {
		return nil, models.NotFound("affair", id)
	}
	return &a, nil
}

func (t *mockTx) UpsertAffair(ctx context.Context, a *models.Affair) error {
	v := *a
	t.stamp(&v.CreatedAt, &v.UpdatedAt)
	t.data.affairs[v.ID] = v
	return nil
}

func (t *mockTx) GetInterest(ctx context.Context, id string) (*models.Interest, error) {
	in, ok := t.data.interests[id]
	if !ok {
		return nil, models.NotFound("interest", id)
	}
	return &in, nil
}

func (t *mockTx) UpsertInterest(ctx context.Context, in *models.Interest) error {
	v := *in
	t.stamp(&v.CreatedAt, &v.UpdatedAt)
	t.data.interests[v.ID] = v
	return nil
}

func (t *mockTx) GetTask(ctx context.Context, id string) (*models.Task, error) {
	task, ok := t.data.tasks[id]
	if !ok {
		return nil, models.NotFound("task", id)
	}
	out := task.Clone()
	return &out, nil
}

func (t *mockTx) ListTasks(ctx context.Context) ([]models.Task, error) {
	var out []models.Task
	for _, task := range t.data.tasks {
		out = append(out, task.Clone())
	}
	return out, nil
}

func (t *mockTx) UpsertTask(ctx context.Context, task *models.Task) error {
	v := task.Clone()
	t.stamp(&v.CreatedAt, &v.UpdatedAt)
	t.data.tasks[v.ID] = v
	return nil
}

func (t *mockTx) GetCraft(ctx context.Context, id string) (*models.Craft, error) {
	base, ok := t.data.crafts[id]
	if !ok {
		return nil, models.NotFound("craft", id)
	}
	var (
		entities []models.CraftEntity
		links    []models.CraftLink
	)
	for _, e := range t.data.entities {
		if e.CraftID != id {
			continue
		}
		entities = append(entities, e)
		links = append(links, craft.Links(e.Level, e.ID, t.data.links[entityKey(e.Level, e.ID)])...)
	}
	out := craft.Assemble(base, entities, links)
	return &out, nil
}

func (t *mockTx) ListCrafts(ctx context.Context) ([]models.Craft, error) {
	var out []models.Craft
	for id := range t.data.crafts {
		c, err := t.GetCraft(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *mockTx) UpsertCraft(ctx context.Context, c *models.Craft) error {
	v := models.Craft{ID: c.ID, Name: c.Name, Description: c.Description, CreatedAt: c.CreatedAt}
	t.stamp(&v.CreatedAt, &v.UpdatedAt)
	t.data.crafts[v.ID] = v
	return nil
}

func (t *mockTx) GetCraftEntity(ctx context.Context, level models.CraftLevel, id string) (*models.CraftEntity, error) {
	e, ok := t.data.entities[entityKey(level, id)]
	if !ok {
		return nil, models.NotFound(string(level), id)
	}
	e.RefIDs = append([]string{}, t.data.links[entityKey(level, id)]...)
	return &e, nil
}

func (t *mockTx) ListCraftEntityIDs(ctx context.Context, craftID string, level models.CraftLevel) ([]string, error) {
	var out []string
	for _, e := range t.data.entities {
		if e.CraftID == craftID && e.Level == level {
			out = append(out, e.ID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (t *mockTx) UpsertCraftEntity(ctx context.Context, e *models.CraftEntity) error {
	key := entityKey(e.Level, e.ID)
	v := *e
	v.RefIDs = nil
	if existing, ok := t.data.entities[key]; ok {
		v.SortOrder = existing.SortOrder
		v.CreatedAt = existing.CreatedAt
	} else {
		v.SortOrder = len(t.data.entities)
	}
	t.stamp(&v.CreatedAt, &v.UpdatedAt)
	t.data.entities[key] = v
	return nil
}

func (t *mockTx) ReplaceLinks(ctx context.Context, level models.CraftLevel, sourceID string, targetIDs []string) error {
	key := entityKey(level, sourceID)
	delete(t.data.links, key)
	if len(targetIDs) > 0 {
		t.data.links[key] = append([]string(nil), targetIDs...)
	}
	return nil
}

func (t *mockTx) GetLaw(ctx context.Context, id string) (*models.Law, error) {
	l, ok := t.data.laws[id]
	if !ok {
		return nil, models.NotFound("law", id)
	}
	l.CraftIDs = append([]string{}, l.CraftIDs...)
	return &l, nil
}

func (t *mockTx) UpsertLaw(ctx context.Context, l *models.Law) error {
	v := *l
	v.CraftIDs = append([]string{}, l.CraftIDs...)
	t.stamp(&v.CreatedAt, &v.UpdatedAt)
	t.data.laws[v.ID] = v
	return nil
}

func (t *mockTx) LogChange(ctx context.Context, entry models.ChangeEntry) error {
	t.data.changes = append(t.data.changes, entry)
	return nil
}

func (t *mockTx) ListChanges(ctx context.Context, limit int) ([]models.ChangeEntry, error) {
	var out []models.ChangeEntry
	for i := len(t.data.changes) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, t.data.changes[i])
	}
	return out, nil
}

func (t *mockTx) ReplaceNarrative(ctx context.Context, n models.Narrative) error {
	if t.store.readOnlyNar {
		return models.NewValidationError("narrative is read-only")
	}
	t.data.narrative = n
	return nil
}

// mockFileSystem implements secondary.FileSystem with a settable clock.
type mockFileSystem struct {
	modTime time.Time
	exists  bool
	statErr error
}

func newMockFileSystem() *mockFileSystem {
	return &mockFileSystem{
		modTime: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		exists:  true,
	}
}

// touch simulates a write to the backing file.
func (m *mockFileSystem) touch() {
	m.modTime = m.modTime.Add(time.Second)
	m.exists = true
}

func (m *mockFileSystem) ModTime(ctx context.Context, path string) (time.Time, bool, error) {
	if m.statErr != nil {
		return time.Time{}, false, m.statErr
	}
	if !m.exists {
		return time.Time{}, false, nil
	}
	return m.modTime, true, nil
}

func (m *mockFileSystem) WriteFileAtomic(ctx context.Context, path string, write func(w io.Writer) error) error {
	return write(io.Discard)
}

func (m *mockFileSystem) EnsureDir(ctx context.Context, path string) error {
	return nil
}

var (
	_ secondary.Store      = (*mockStore)(nil)
	_ secondary.StoreTx    = (*mockTx)(nil)
	_ secondary.FileSystem = (*mockFileSystem)(nil)
)

// ============================================================================
// Test Helper
// ============================================================================

func newTestSyncService() (*SyncServiceImpl, *mockStore, *mockFileSystem, *telemetry.Metrics) {
	fsys := newMockFileSystem()
	store := newMockStore(fsys)
	metrics := telemetry.NewMetrics()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewSyncService(store, fsys, nil, metrics, logger)

	ids := 0
	service.newID = func() string {
		ids++
		return fmt.Sprintf("id-%d", ids)
	}
	return service, store, fsys, metrics
}

func ptr[T any](v T) *T { return &v }
