package workbook

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/example/khal/internal/models"
)

// Hidden sheets holding what the visible sheets cannot express. Each is
// rewritten in full on every commit.
const (
	domainsSheet   = "_khal_domains"
	recordsSheet   = "_khal_records"
	craftsSheet    = "_khal_crafts"
	entitiesSheet  = "_khal_craft_entities"
	linksSheet     = "_khal_craft_links"
	lawsSheet      = "_khal_laws"
	lawCraftsSheet = "_khal_law_crafts"
	changesSheet   = "_khal_changes"
)

var companionHeaders = map[string][]any{
	domainsSheet:   {"id", "name", "description", "created_at", "updated_at"},
	recordsSheet:   {"id", "kind", "created_at", "updated_at"},
	craftsSheet:    {"id", "name", "description", "created_at", "updated_at"},
	entitiesSheet:  {"id", "craft_id", "level", "title", "type", "url", "notes", "description", "hedge", "edge", "content", "sort_order", "created_at", "updated_at"},
	linksSheet:     {"level", "source_id", "target_id", "sort_order"},
	lawsSheet:      {"id", "name", "description", "volatility_source", "created_at", "updated_at"},
	lawCraftsSheet: {"law_id", "craft_id", "sort_order"},
	changesSheet:   {"id", "actor", "entity_type", "entity_id", "action", "created_at"},
}

// hiddenSheets lists every sheet the engine owns, metadata first.
var hiddenSheets = []string{
	metaSheet, domainsSheet, recordsSheet, craftsSheet, entitiesSheet,
	linksSheet, lawsSheet, lawCraftsSheet, changesSheet,
}

// record holds the timestamps of a row-based entity.
type record struct {
	kind      string
	createdAt time.Time
	updatedAt time.Time
}

// companion is the decoded content of the hidden sheets.
type companion struct {
	domains  []models.Domain
	records  map[string]record
	crafts   []models.Craft
	entities []models.CraftEntity
	links    []models.CraftLink
	laws     []models.Law
	changes  []models.ChangeEntry
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func parseInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// dataRows returns the rows of sheet below its header, padded to width.
// A missing sheet yields no rows.
func dataRows(f *excelize.File, sheet string, width int) ([]cells, error) {
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheet, err)
	}

	var out []cells
	for i, r := range rows {
		if i == 0 || cells(r).blank() {
			continue
		}
		padded := make(cells, width)
		copy(padded, r)
		out = append(out, padded)
	}
	return out, nil
}

func readCompanion(f *excelize.File) (companion, error) {
	c := companion{records: map[string]record{}}

	read := func(sheet string, fn func(r cells)) error {
		rows, err := dataRows(f, sheet, len(companionHeaders[sheet]))
		if err != nil {
			return err
		}
		for _, r := range rows {
			fn(r)
		}
		return nil
	}

	lawCrafts := map[string][]models.CraftLink{}
	steps := []struct {
		sheet string
		fn    func(r cells)
	}{
		{domainsSheet, func(r cells) {
			c.domains = append(c.domains, models.Domain{
				ID: r[0], Name: r[1], Description: r[2], CreatedAt: parseTime(r[3]), UpdatedAt: parseTime(r[4]),
			})
		}},
		{recordsSheet, func(r cells) {
			c.records[r[0]] = record{kind: r[1], createdAt: parseTime(r[2]), updatedAt: parseTime(r[3])}
		}},
		{craftsSheet, func(r cells) {
			c.crafts = append(c.crafts, models.Craft{
				ID: r[0], Name: r[1], Description: r[2], CreatedAt: parseTime(r[3]), UpdatedAt: parseTime(r[4]),
			})
		}},
		{entitiesSheet, func(r cells) {
			c.entities = append(c.entities, models.CraftEntity{
				ID: r[0], CraftID: r[1], Level: models.CraftLevel(r[2]), Title: r[3], Type: r[4], URL: r[5],
				Notes: r[6], Description: r[7], Hedge: r[8], Edge: r[9], Content: r[10],
				SortOrder: parseInt(r[11]), CreatedAt: parseTime(r[12]), UpdatedAt: parseTime(r[13]),
			})
		}},
		{linksSheet, func(r cells) {
			c.links = append(c.links, models.CraftLink{
				Level: models.CraftLevel(r[0]), SourceID: r[1], TargetID: r[2], SortOrder: parseInt(r[3]),
			})
		}},
		{lawsSheet, func(r cells) {
			c.laws = append(c.laws, models.Law{
				ID: r[0], Name: r[1], Description: r[2], VolatilitySource: r[3],
				CreatedAt: parseTime(r[4]), UpdatedAt: parseTime(r[5]),
			})
		}},
		{lawCraftsSheet, func(r cells) {
			lawCrafts[r[0]] = append(lawCrafts[r[0]], models.CraftLink{SourceID: r[0], TargetID: r[1], SortOrder: parseInt(r[2])})
		}},
		{changesSheet, func(r cells) {
			c.changes = append(c.changes, models.ChangeEntry{
				ID: r[0], Actor: r[1], EntityType: r[2], EntityID: r[3], Action: r[4], CreatedAt: parseTime(r[5]),
			})
		}},
	}
	for _, step := range steps {
		if err := read(step.sheet, step.fn); err != nil {
			return c, err
		}
	}

	for i := range c.laws {
		links := lawCrafts[c.laws[i].ID]
		sort.SliceStable(links, func(a, b int) bool { return links[a].SortOrder < links[b].SortOrder })
		ids := make([]string, 0, len(links))
		for _, l := range links {
			ids = append(ids, l.TargetID)
		}
		c.laws[i].CraftIDs = ids
	}

	return c, nil
}

func writeCompanion(f *excelize.File, c companion) error {
	sheets := map[string][][]any{}
	add := func(sheet string, values ...any) {
		sheets[sheet] = append(sheets[sheet], values)
	}

	for _, d := range c.domains {
		add(domainsSheet, d.ID, d.Name, d.Description, formatTime(d.CreatedAt), formatTime(d.UpdatedAt))
	}

	ids := make([]string, 0, len(c.records))
	for id := range c.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		r := c.records[id]
		add(recordsSheet, id, r.kind, formatTime(r.createdAt), formatTime(r.updatedAt))
	}

	for _, cr := range c.crafts {
		add(craftsSheet, cr.ID, cr.Name, cr.Description, formatTime(cr.CreatedAt), formatTime(cr.UpdatedAt))
	}
	for _, e := range c.entities {
		add(entitiesSheet, e.ID, e.CraftID, string(e.Level), e.Title, e.Type, e.URL, e.Notes, e.Description,
			e.Hedge, e.Edge, e.Content, e.SortOrder, formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	}
	for _, l := range c.links {
		add(linksSheet, string(l.Level), l.SourceID, l.TargetID, l.SortOrder)
	}
	for _, law := range c.laws {
		add(lawsSheet, law.ID, law.Name, law.Description, law.VolatilitySource, formatTime(law.CreatedAt), formatTime(law.UpdatedAt))
		for i, craftID := range law.CraftIDs {
			add(lawCraftsSheet, law.ID, craftID, i)
		}
	}
	for _, ch := range c.changes {
		add(changesSheet, ch.ID, ch.Actor, ch.EntityType, ch.EntityID, ch.Action, formatTime(ch.CreatedAt))
	}

	for _, sheet := range hiddenSheets {
		if sheet == metaSheet {
			continue
		}
		rows := append([][]any{companionHeaders[sheet]}, sheets[sheet]...)
		if err := replaceSheet(f, sheet, rows); err != nil {
			return err
		}
	}
	return nil
}

// replaceSheet drops sheet if present and recreates it hidden with rows.
func replaceSheet(f *excelize.File, sheet string, rows [][]any) error {
	if idx, err := f.GetSheetIndex(sheet); err == nil && idx >= 0 {
		if err := f.DeleteSheet(sheet); err != nil {
			return fmt.Errorf("failed to clear %s: %w", sheet, err)
		}
	}
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create %s: %w", sheet, err)
	}
	for i, r := range rows {
		if err := setRow(f, sheet, i+1, r); err != nil {
			return err
		}
	}
	if err := f.SetSheetVisible(sheet, false); err != nil {
		return fmt.Errorf("failed to hide %s: %w", sheet, err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}
