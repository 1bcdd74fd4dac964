package workbook

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/example/khal/internal/core/narrative"
	"github.com/example/khal/internal/models"
)

// region tracks the occupied rows of one entity sheet and where its task
// region starts.
type region struct {
	// marker is the row of the task marker, 0 when the sheet has none.
	marker   int
	occupied map[int]bool
}

func (r *region) shift(from, n int) {
	moved := map[int]bool{}
	for row := range r.occupied {
		if row >= from {
			delete(r.occupied, row)
			moved[row+n] = true
		}
	}
	for row := range moved {
		r.occupied[row] = true
	}
	if r.marker >= from {
		r.marker += n
	}
}

func (r *region) last() int {
	highest := 0
	for row := range r.occupied {
		if row > highest {
			highest = row
		}
	}
	return highest
}

type affairRow struct {
	row    int
	affair models.Affair
}

type interestRow struct {
	row      int
	interest models.Interest
}

type taskRow struct {
	sheet string
	row   int
	task  models.Task
}

// book is an opened workbook decoded into typed rows. Row mutations are
// applied to the underlying file immediately; companion and metadata
// sheets are rewritten by flush.
type book struct {
	file   *excelize.File
	layout layout
	sheets map[string]string
	meta   meta

	regions   map[string]*region
	affairs   []*affairRow
	interests []*interestRow
	tasks     []*taskRow
	comp      companion
	narrative models.Narrative
	skipped   []models.SkippedRow

	// assigned is set when rows received ids that are not yet persisted.
	assigned bool
	now      func() time.Time
}

// openBook decodes f. The caller has already checked the required sheets.
func openBook(f *excelize.File, sheets map[string]string, now func() time.Time) (*book, error) {
	m, err := readMeta(f)
	if err != nil {
		return nil, err
	}
	l, err := layoutFor(m.version)
	if err != nil {
		return nil, err
	}
	comp, err := readCompanion(f)
	if err != nil {
		return nil, err
	}

	b := &book{
		file:   f,
		layout: l,
		sheets: sheets,
		meta:   m,
		comp:   comp,
		now:    now,
		regions: map[string]*region{
			SheetAffairs:   {occupied: map[int]bool{}},
			SheetInterests: {occupied: map[int]bool{}},
		},
	}

	if err := b.parseWarRoom(); err != nil {
		return nil, err
	}
	if err := b.parseSheet(SheetAffairs, models.SourceAffair); err != nil {
		return nil, err
	}
	if err := b.parseSheet(SheetInterests, models.SourceInterest); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *book) parseWarRoom() error {
	rows, err := b.file.GetRows(b.sheets[SheetWarRoom])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", SheetWarRoom, err)
	}
	blocks := narrative.Parse(narrative.Lines(rows))
	if blocks == nil {
		blocks = []models.NarrativeBlock{}
	}
	b.narrative = models.Narrative{Meta: map[string]string{}, Blocks: blocks}
	return nil
}

// parseSheet decodes the entity rows above the task marker and the task rows
// below it. Blank rows are ignored; malformed rows are recorded as skipped.
func (b *book) parseSheet(logical string, fallback models.SourceType) error {
	rows, err := b.file.GetRows(b.sheets[logical], excelize.Options{RawCellValue: true})
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", logical, err)
	}

	reg := b.regions[logical]
	for i, raw := range rows {
		rowNum := i + 1
		c := cells(raw)
		if rowNum <= b.layout.headerRow || c.blank() {
			continue
		}
		reg.occupied[rowNum] = true

		if reg.marker == 0 && c.isTaskMarker() {
			reg.marker = rowNum
			continue
		}
		if reg.marker > 0 && rowNum == reg.marker+1 {
			continue
		}

		if reg.marker > 0 {
			t, err := b.layout.decodeTask(c, fallback)
			if err != nil {
				b.skip(logical, rowNum, err)
				continue
			}
			t.ID = b.rowID(taskKey(logical, rowNum))
			b.applyRecord(t.ID, &t.CreatedAt, &t.UpdatedAt)
			b.tasks = append(b.tasks, &taskRow{sheet: logical, row: rowNum, task: t})
			continue
		}

		switch logical {
		case SheetAffairs:
			d, err := b.layout.decodeAffair(c)
			if err != nil {
				b.skip(logical, rowNum, err)
				continue
			}
			a := d.affair
			a.ID = b.rowID(entityKey(logical, rowNum))
			a.DomainID = b.resolveDomain(d.domain)
			b.applyRecord(a.ID, &a.CreatedAt, &a.UpdatedAt)
			b.affairs = append(b.affairs, &affairRow{row: rowNum, affair: a})
		case SheetInterests:
			d, err := b.layout.decodeInterest(c)
			if err != nil {
				b.skip(logical, rowNum, err)
				continue
			}
			in := d.interest
			in.ID = b.rowID(entityKey(logical, rowNum))
			in.DomainID = b.resolveDomain(d.domain)
			b.applyRecord(in.ID, &in.CreatedAt, &in.UpdatedAt)
			b.interests = append(b.interests, &interestRow{row: rowNum, interest: in})
		}
	}
	return nil
}

func (b *book) skip(sheet string, row int, err error) {
	b.skipped = append(b.skipped, models.SkippedRow{Sheet: sheet, Row: row, Reason: err.Error()})
}

// rowID returns the id mapped to key, assigning a new one when absent.
func (b *book) rowID(key string) string {
	if id, ok := b.meta.ids[key]; ok && id != "" {
		return id
	}
	id := uuid.NewString()
	b.meta.ids[key] = id
	b.assigned = true
	return id
}

func (b *book) applyRecord(id string, created, updated *time.Time) {
	if r, ok := b.comp.records[id]; ok {
		*created, *updated = r.createdAt, r.updatedAt
		return
	}
	now := b.now().UTC()
	*created, *updated = now, now
}

// resolveDomain maps the text of a domain cell to a domain id, matching
// existing domain names first and registering unknown names.
func (b *book) resolveDomain(name string) string {
	if strings.TrimSpace(name) == "" {
		return models.DefaultDomainID
	}
	for _, d := range b.comp.domains {
		if strings.EqualFold(strings.TrimSpace(d.Name), strings.TrimSpace(name)) {
			return d.ID
		}
	}
	id := models.DomainIDFromName(name)
	if _, ok := b.domain(id); !ok {
		d := models.AutoDomain(id, b.now().UTC())
		d.Name = strings.TrimSpace(name)
		b.comp.domains = append(b.comp.domains, d)
	}
	return id
}

func (b *book) domain(id string) (*models.Domain, bool) {
	for i := range b.comp.domains {
		if b.comp.domains[i].ID == id {
			return &b.comp.domains[i], true
		}
	}
	return nil, false
}

// domainName is the text written into domain cells.
func (b *book) domainName(id string) string {
	if d, ok := b.domain(id); ok && d.Name != "" {
		return d.Name
	}
	return id
}

// nextEntityRow returns the first free row above the task marker, inserting
// a row at the marker when the entity region is full.
func (b *book) nextEntityRow(logical string) (int, error) {
	reg := b.regions[logical]
	for r := b.layout.headerRow + 1; reg.marker == 0 || r < reg.marker; r++ {
		if !reg.occupied[r] {
			return r, nil
		}
	}

	at := reg.marker
	if err := b.file.InsertRows(b.sheets[logical], at, 1); err != nil {
		return 0, fmt.Errorf("failed to insert row in %s: %w", logical, err)
	}
	reg.shift(at, 1)
	b.meta.ids.shift(logical, at, 1)
	for _, t := range b.tasks {
		if t.sheet == logical && t.row >= at {
			t.row++
		}
	}
	for i := range b.skipped {
		if b.skipped[i].Sheet == logical && b.skipped[i].Row >= at {
			b.skipped[i].Row++
		}
	}
	return at, nil
}

// nextTaskRow returns the first free row of the task region of logical,
// creating the marker and header rows when the sheet has none.
func (b *book) nextTaskRow(logical string) (int, error) {
	reg := b.regions[logical]
	if reg.marker == 0 {
		last := reg.last()
		if last < b.layout.headerRow {
			last = b.layout.headerRow
		}
		reg.marker = last + 2
		if err := setRow(b.file, b.sheets[logical], reg.marker, []any{taskMarker}); err != nil {
			return 0, err
		}
		if err := setRow(b.file, b.sheets[logical], reg.marker+1, taskHeader.titles()); err != nil {
			return 0, err
		}
		reg.occupied[reg.marker] = true
		reg.occupied[reg.marker+1] = true
	}

	r := reg.marker + 2
	for reg.occupied[r] {
		r++
	}
	return r, nil
}

func (b *book) writeRow(logical string, row int, values []any) error {
	if err := setRow(b.file, b.sheets[logical], row, values); err != nil {
		return err
	}
	b.regions[logical].occupied[row] = true
	return nil
}

func (b *book) clearRow(logical string, row int, h header) error {
	if err := setRow(b.file, b.sheets[logical], row, emptyRow(h)); err != nil {
		return err
	}
	delete(b.regions[logical].occupied, row)
	return nil
}

func (b *book) touch(id, kind string, created time.Time) (time.Time, time.Time) {
	now := b.now().UTC()
	if r, ok := b.comp.records[id]; ok && !r.createdAt.IsZero() {
		created = r.createdAt
	}
	if created.IsZero() {
		created = now
	}
	b.comp.records[id] = record{kind: kind, createdAt: created, updatedAt: now}
	return created, now
}

// state returns copies of every decoded entity.
func (b *book) state() models.State {
	s := models.State{
		Domains:   append([]models.Domain{}, b.comp.domains...),
		Affairs:   make([]models.Affair, 0, len(b.affairs)),
		Interests: make([]models.Interest, 0, len(b.interests)),
		Tasks:     make([]models.Task, 0, len(b.tasks)),
		Crafts:    b.crafts(),
		Laws:      make([]models.Law, 0, len(b.comp.laws)),
		Narrative: b.narrative,
	}
	for _, a := range b.affairs {
		s.Affairs = append(s.Affairs, a.affair)
	}
	for _, in := range b.interests {
		s.Interests = append(s.Interests, in.interest)
	}
	for _, t := range b.tasks {
		s.Tasks = append(s.Tasks, t.task.Clone())
	}
	for _, l := range b.comp.laws {
		l.CraftIDs = append([]string{}, l.CraftIDs...)
		s.Laws = append(s.Laws, l)
	}
	sort.Slice(s.Laws, func(i, j int) bool {
		if s.Laws[i].Name != s.Laws[j].Name {
			return s.Laws[i].Name < s.Laws[j].Name
		}
		return s.Laws[i].ID < s.Laws[j].ID
	})
	return s
}

// flush writes the companion and metadata sheets into the file.
func (b *book) flush() error {
	if err := writeCompanion(b.file, b.comp); err != nil {
		return err
	}
	if err := writeMeta(b.file, b.meta); err != nil {
		return err
	}
	if idx, err := b.file.GetSheetIndex(b.sheets[SheetWarRoom]); err == nil && idx >= 0 {
		b.file.SetActiveSheet(idx)
	}
	return nil
}
