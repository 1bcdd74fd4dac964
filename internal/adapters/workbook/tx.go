package workbook

import (
	"context"
	"fmt"
	"sort"

	"github.com/example/khal/internal/core/craft"
	"github.com/example/khal/internal/models"
	"github.com/example/khal/internal/ports/secondary"
)

// tx implements secondary.StoreTx over an opened book.
type tx struct {
	b *book
}

func (t *tx) GetDomain(ctx context.Context, id string) (*models.Domain, error) {
	d, ok := t.b.domain(id)
	if !ok {
		return nil, models.NotFound("domain", id)
	}
	out := *d
	return &out, nil
}

func (t *tx) UpsertDomain(ctx context.Context, d *models.Domain) error {
	now := t.b.now().UTC()
	out := *d
	if existing, ok := t.b.domain(d.ID); ok {
		out.CreatedAt = existing.CreatedAt
		out.UpdatedAt = now
		*existing = out
		return nil
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	out.UpdatedAt = now
	t.b.comp.domains = append(t.b.comp.domains, out)
	return nil
}

func (t *tx) findAffair(id string) *affairRow {
	for _, a := range t.b.affairs {
		if a.affair.ID == id {
			return a
		}
	}
	return nil
}

func (t *tx) GetAffair(ctx context.Context, id string) (*models.Affair, error) {
	a := t.findAffair(id)
	if a == nil {
		return nil, models.NotFound("affair", id)
	}
	out := a.affair
	return &out, nil
}

func (t *tx) UpsertAffair(ctx context.Context, a *models.Affair) error {
	out := *a
	out.CreatedAt, out.UpdatedAt = t.b.touch(out.ID, "affair", out.CreatedAt)
	values := t.b.layout.encodeAffair(out, t.b.domainName(out.DomainID))

	if existing := t.findAffair(out.ID); existing != nil {
		if err := t.b.writeRow(SheetAffairs, existing.row, values); err != nil {
			return err
		}
		existing.affair = out
		return nil
	}

	row, err := t.b.nextEntityRow(SheetAffairs)
	if err != nil {
		return err
	}
	if err := t.b.writeRow(SheetAffairs, row, values); err != nil {
		return err
	}
	t.b.meta.ids[entityKey(SheetAffairs, row)] = out.ID
	t.b.affairs = append(t.b.affairs, &affairRow{row: row, affair: out})
	return nil
}

func (t *tx) findInterest(id string) *interestRow {
	for _, in := range t.b.interests {
		if in.interest.ID == id {
			return in
		}
	}
	return nil
}

func (t *tx) GetInterest(ctx context.Context, id string) (*models.Interest, error) {
	in := t.findInterest(id)
	if in == nil {
		return nil, models.NotFound("interest", id)
	}
	out := in.interest
	return &out, nil
}

func (t *tx) UpsertInterest(ctx context.Context, in *models.Interest) error {
	out := *in
	out.CreatedAt, out.UpdatedAt = t.b.touch(out.ID, "interest", out.CreatedAt)
	values := t.b.layout.encodeInterest(out, t.b.domainName(out.DomainID))

	if existing := t.findInterest(out.ID); existing != nil {
		if err := t.b.writeRow(SheetInterests, existing.row, values); err != nil {
			return err
		}
		existing.interest = out
		return nil
	}

	row, err := t.b.nextEntityRow(SheetInterests)
	if err != nil {
		return err
	}
	if err := t.b.writeRow(SheetInterests, row, values); err != nil {
		return err
	}
	t.b.meta.ids[entityKey(SheetInterests, row)] = out.ID
	t.b.interests = append(t.b.interests, &interestRow{row: row, interest: out})
	return nil
}

// taskSheet is the sheet a task of source type st lives on.
func taskSheet(st models.SourceType) string {
	if st == models.SourceAffair {
		return SheetAffairs
	}
	return SheetInterests
}

func (t *tx) findTask(id string) (int, *taskRow) {
	for i, tr := range t.b.tasks {
		if tr.task.ID == id {
			return i, tr
		}
	}
	return -1, nil
}

func (t *tx) GetTask(ctx context.Context, id string) (*models.Task, error) {
	_, tr := t.findTask(id)
	if tr == nil {
		return nil, models.NotFound("task", id)
	}
	out := tr.task.Clone()
	return &out, nil
}

func (t *tx) ListTasks(ctx context.Context) ([]models.Task, error) {
	out := make([]models.Task, 0, len(t.b.tasks))
	for _, tr := range t.b.tasks {
		out = append(out, tr.task.Clone())
	}
	return out, nil
}

// UpsertTask overwrites the task row in place. A task whose source type
// moves it to the other sheet is cleared from its old row and appended to
// the task region of the new one.
func (t *tx) UpsertTask(ctx context.Context, task *models.Task) error {
	out := task.Clone()
	if out.DependencyIDs == nil {
		out.DependencyIDs = []string{}
	}
	out.CreatedAt, out.UpdatedAt = t.b.touch(out.ID, "task", out.CreatedAt)
	values := t.b.layout.encodeTask(out)
	sheet := taskSheet(out.SourceType)

	if i, existing := t.findTask(out.ID); existing != nil {
		if existing.sheet == sheet {
			if err := t.b.writeRow(sheet, existing.row, values); err != nil {
				return err
			}
			existing.task = out
			return nil
		}
		if err := t.b.clearRow(existing.sheet, existing.row, taskHeader); err != nil {
			return err
		}
		delete(t.b.meta.ids, taskKey(existing.sheet, existing.row))
		t.b.tasks = append(t.b.tasks[:i], t.b.tasks[i+1:]...)
	}

	row, err := t.b.nextTaskRow(sheet)
	if err != nil {
		return err
	}
	if err := t.b.writeRow(sheet, row, values); err != nil {
		return err
	}
	t.b.meta.ids[taskKey(sheet, row)] = out.ID
	t.b.tasks = append(t.b.tasks, &taskRow{sheet: sheet, row: row, task: out})
	return nil
}

func (b *book) craft(id string) (*models.Craft, bool) {
	for i := range b.comp.crafts {
		if b.comp.crafts[i].ID == id {
			return &b.comp.crafts[i], true
		}
	}
	return nil, false
}

// crafts assembles every craft ordered by name then id.
func (b *book) crafts() []models.Craft {
	out := make([]models.Craft, 0, len(b.comp.crafts))
	for _, c := range b.comp.crafts {
		out = append(out, craft.Assemble(c, b.comp.entities, b.comp.links))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (t *tx) GetCraft(ctx context.Context, id string) (*models.Craft, error) {
	base, ok := t.b.craft(id)
	if !ok {
		return nil, models.NotFound("craft", id)
	}
	out := craft.Assemble(*base, t.b.comp.entities, t.b.comp.links)
	return &out, nil
}

func (t *tx) ListCrafts(ctx context.Context) ([]models.Craft, error) {
	return t.b.crafts(), nil
}

func (t *tx) UpsertCraft(ctx context.Context, c *models.Craft) error {
	now := t.b.now().UTC()
	base := models.Craft{ID: c.ID, Name: c.Name, Description: c.Description, CreatedAt: c.CreatedAt, UpdatedAt: now}
	if existing, ok := t.b.craft(c.ID); ok {
		base.CreatedAt = existing.CreatedAt
		*existing = base
		return nil
	}
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	t.b.comp.crafts = append(t.b.comp.crafts, base)
	return nil
}

func (t *tx) entity(level models.CraftLevel, id string) (*models.CraftEntity, bool) {
	for i := range t.b.comp.entities {
		e := &t.b.comp.entities[i]
		if e.Level == level && e.ID == id {
			return e, true
		}
	}
	return nil, false
}

func (t *tx) refIDs(level models.CraftLevel, sourceID string) []string {
	var links []models.CraftLink
	for _, l := range t.b.comp.links {
		if l.Level == level && l.SourceID == sourceID {
			links = append(links, l)
		}
	}
	sort.SliceStable(links, func(i, j int) bool { return links[i].SortOrder < links[j].SortOrder })

	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.TargetID)
	}
	return out
}

func (t *tx) GetCraftEntity(ctx context.Context, level models.CraftLevel, id string) (*models.CraftEntity, error) {
	if _, err := models.ParseCraftLevel(string(level)); err != nil {
		return nil, err
	}
	e, ok := t.entity(level, id)
	if !ok {
		return nil, models.NotFound(string(level), id)
	}
	out := *e
	out.RefIDs = t.refIDs(level, id)
	return &out, nil
}

func (t *tx) ListCraftEntityIDs(ctx context.Context, craftID string, level models.CraftLevel) ([]string, error) {
	var matched []models.CraftEntity
	for _, e := range t.b.comp.entities {
		if e.CraftID == craftID && e.Level == level {
			matched = append(matched, e)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].SortOrder != matched[j].SortOrder {
			return matched[i].SortOrder < matched[j].SortOrder
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	ids := make([]string, 0, len(matched))
	for _, e := range matched {
		ids = append(ids, e.ID)
	}
	return ids, nil
}

// UpsertCraftEntity updates scalar fields in place, keeping sort order and
// creation time. New entities sort after every sibling at their level.
func (t *tx) UpsertCraftEntity(ctx context.Context, e *models.CraftEntity) error {
	if _, err := models.ParseCraftLevel(string(e.Level)); err != nil {
		return err
	}
	now := t.b.now().UTC()
	out := *e
	out.RefIDs = nil
	out.UpdatedAt = now

	if existing, ok := t.entity(e.Level, e.ID); ok {
		out.SortOrder = existing.SortOrder
		out.CreatedAt = existing.CreatedAt
		*existing = out
		return nil
	}

	out.SortOrder = 0
	for _, sibling := range t.b.comp.entities {
		if sibling.CraftID == out.CraftID && sibling.Level == out.Level && sibling.SortOrder >= out.SortOrder {
			out.SortOrder = sibling.SortOrder + 1
		}
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	t.b.comp.entities = append(t.b.comp.entities, out)
	return nil
}

func (t *tx) ReplaceLinks(ctx context.Context, level models.CraftLevel, sourceID string, targetIDs []string) error {
	if _, ok := level.Child(); !ok {
		return fmt.Errorf("%s cannot reference other entities", level)
	}

	kept := t.b.comp.links[:0]
	for _, l := range t.b.comp.links {
		if l.Level == level && l.SourceID == sourceID {
			continue
		}
		kept = append(kept, l)
	}
	t.b.comp.links = append(kept, craft.Links(level, sourceID, targetIDs)...)
	return nil
}

func (t *tx) law(id string) (*models.Law, bool) {
	for i := range t.b.comp.laws {
		if t.b.comp.laws[i].ID == id {
			return &t.b.comp.laws[i], true
		}
	}
	return nil, false
}

func (t *tx) GetLaw(ctx context.Context, id string) (*models.Law, error) {
	l, ok := t.law(id)
	if !ok {
		return nil, models.NotFound("law", id)
	}
	out := *l
	out.CraftIDs = append([]string{}, l.CraftIDs...)
	return &out, nil
}

func (t *tx) UpsertLaw(ctx context.Context, l *models.Law) error {
	now := t.b.now().UTC()
	out := *l
	out.CraftIDs = append([]string{}, l.CraftIDs...)
	out.UpdatedAt = now

	if existing, ok := t.law(l.ID); ok {
		out.CreatedAt = existing.CreatedAt
		*existing = out
		return nil
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	t.b.comp.laws = append(t.b.comp.laws, out)
	return nil
}

func (t *tx) LogChange(ctx context.Context, entry models.ChangeEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = t.b.now().UTC()
	}
	t.b.comp.changes = append(t.b.comp.changes, entry)
	return nil
}

// ListChanges returns the newest entries first. Entries sharing a
// timestamp keep reverse insertion order.
func (t *tx) ListChanges(ctx context.Context, limit int) ([]models.ChangeEntry, error) {
	out := make([]models.ChangeEntry, 0, len(t.b.comp.changes))
	for i := len(t.b.comp.changes) - 1; i >= 0; i-- {
		out = append(out, t.b.comp.changes[i])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ReplaceNarrative is rejected: the narrative is derived from the free text
// of the War Room sheet, which only a person edits.
func (t *tx) ReplaceNarrative(ctx context.Context, n models.Narrative) error {
	return models.NewValidationError(fmt.Sprintf("the %s narrative is read-only in a workbook", SheetWarRoom))
}

// Ensure tx implements the interface
var _ secondary.StoreTx = (*tx)(nil)
