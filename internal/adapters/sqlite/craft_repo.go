package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/khal/internal/core/craft"
	"github.com/example/khal/internal/models"
)

// levelSpec maps a craft level onto its entity table and, for non-leaf
// levels, the link table holding its ordered references.
type levelSpec struct {
	table     string
	columns   []string
	linkTable string
	sourceCol string
	targetCol string
}

var levelSpecs = map[models.CraftLevel]levelSpec{
	models.LevelHeap: {
		table:   "craft_heaps",
		columns: []string{"type", "url", "notes"},
	},
	models.LevelModel: {
		table:     "craft_models",
		columns:   []string{"description"},
		linkTable: "craft_model_heap_links",
		sourceCol: "model_id",
		targetCol: "heap_id",
	},
	models.LevelFramework: {
		table:     "craft_frameworks",
		columns:   []string{"description"},
		linkTable: "craft_framework_model_links",
		sourceCol: "framework_id",
		targetCol: "model_id",
	},
	models.LevelBarbell: {
		table:     "craft_barbell_strategies",
		columns:   []string{"hedge", "edge"},
		linkTable: "craft_barbell_framework_links",
		sourceCol: "barbell_id",
		targetCol: "framework_id",
	},
	models.LevelHeuristic: {
		table:     "craft_heuristics",
		columns:   []string{"content"},
		linkTable: "craft_heuristic_barbell_links",
		sourceCol: "heuristic_id",
		targetCol: "barbell_id",
	},
}

func specFor(level models.CraftLevel) (levelSpec, error) {
	spec, ok := levelSpecs[level]
	if !ok {
		return levelSpec{}, fmt.Errorf("unknown craft level %q", level)
	}
	return spec, nil
}

// field returns the entity field backing a level-specific column.
func field(e *models.CraftEntity, column string) *string {
	switch column {
	case "type":
		return &e.Type
	case "url":
		return &e.URL
	case "notes":
		return &e.Notes
	case "description":
		return &e.Description
	case "hedge":
		return &e.Hedge
	case "edge":
		return &e.Edge
	case "content":
		return &e.Content
	}
	panic("unmapped craft column " + column)
}

// CraftRepository persists crafts, their five entity levels and the link
// tables between levels.
type CraftRepository struct {
	db querier
}

// NewCraftRepository creates a new SQLite craft repository.
func NewCraftRepository(db querier) *CraftRepository {
	return &CraftRepository{db: db}
}

func scanCraft(s scanner) (*models.Craft, error) {
	var (
		c    models.Craft
		desc sql.NullString
	)
	if err := s.Scan(&c.ID, &c.Name, &desc, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Description = desc.String
	return &c, nil
}

// GetByID reads a craft with every level and reference list resolved.
func (r *CraftRepository) GetByID(ctx context.Context, id string) (*models.Craft, error) {
	base, err := scanCraft(r.db.QueryRowContext(ctx,
		"SELECT id, name, description, created_at, updated_at FROM crafts WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound("craft", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get craft: %w", err)
	}

	entities, err := r.entities(ctx, id)
	if err != nil {
		return nil, err
	}
	links, err := r.links(ctx, id)
	if err != nil {
		return nil, err
	}

	assembled := craft.Assemble(*base, entities, links)
	return &assembled, nil
}

// List returns every craft ordered by name.
func (r *CraftRepository) List(ctx context.Context) ([]models.Craft, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id FROM crafts ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list crafts: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan craft id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	out := make([]models.Craft, 0, len(ids))
	for _, id := range ids {
		c, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

// Upsert writes a craft's scalar fields.
func (r *CraftRepository) Upsert(ctx context.Context, c *models.Craft, now time.Time) error {
	created, updated := stamp(c.CreatedAt, now, now)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO crafts (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, description = excluded.description, updated_at = excluded.updated_at`,
		c.ID, c.Name, nullString(c.Description), created, updated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert craft: %w", err)
	}
	return nil
}

// GetEntity reads one entity at level, including its reference list.
func (r *CraftRepository) GetEntity(ctx context.Context, level models.CraftLevel, id string) (*models.CraftEntity, error) {
	spec, err := specFor(level)
	if err != nil {
		return nil, err
	}

	e, err := r.scanEntity(r.db.QueryRowContext(ctx, r.entityQuery(spec)+" WHERE id = ?", id), level, spec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound(string(level), id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", level, err)
	}

	if spec.linkTable != "" {
		refs, err := r.refIDs(ctx, spec, id)
		if err != nil {
			return nil, err
		}
		e.RefIDs = refs
	}
	return e, nil
}

// ListEntityIDs returns the ids at level that belong to craftID.
func (r *CraftRepository) ListEntityIDs(ctx context.Context, craftID string, level models.CraftLevel) ([]string, error) {
	spec, err := specFor(level)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, "SELECT id FROM "+spec.table+" WHERE craft_id = ? ORDER BY sort_order, created_at", craftID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", level, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s id: %w", level, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpsertEntity writes an entity's scalar fields. New entities are placed
// after the existing ones of their level; updates keep their position and
// owning craft.
func (r *CraftRepository) UpsertEntity(ctx context.Context, e *models.CraftEntity, now time.Time) error {
	spec, err := specFor(e.Level)
	if err != nil {
		return err
	}

	cols := append([]string{"id", "craft_id", "title"}, spec.columns...)
	cols = append(cols, "sort_order", "created_at", "updated_at")

	created, updated := stamp(e.CreatedAt, now, now)
	args := []any{e.ID, e.CraftID, e.Title}
	for _, c := range spec.columns {
		v := *field(e, c)
		if c == "type" {
			args = append(args, v)
			continue
		}
		args = append(args, nullString(v))
	}
	args = append(args, e.CraftID, created, updated)

	sets := []string{"title = excluded.title"}
	for _, c := range spec.columns {
		sets = append(sets, c+" = excluded."+c)
	}
	sets = append(sets, "updated_at = excluded.updated_at")

	placeholders := strings.Repeat("?, ", len(cols)-3)
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (%[2]s)
		VALUES (%[3]s(SELECT COALESCE(MAX(sort_order) + 1, 0) FROM %[1]s WHERE craft_id = ?), ?, ?)
		ON CONFLICT(id) DO UPDATE SET %[4]s`,
		spec.table, strings.Join(cols, ", "), placeholders, strings.Join(sets, ", "),
	)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert %s: %w", e.Level, err)
	}
	return nil
}

// ReplaceLinks deletes every link of sourceID at level and inserts targetIDs
// in the given order. An empty list leaves the source with no links.
func (r *CraftRepository) ReplaceLinks(ctx context.Context, level models.CraftLevel, sourceID string, targetIDs []string) error {
	spec, err := specFor(level)
	if err != nil {
		return err
	}
	if spec.linkTable == "" {
		if len(targetIDs) > 0 {
			return fmt.Errorf("%s cannot reference other entities", level)
		}
		return nil
	}

	if _, err := r.db.ExecContext(ctx, "DELETE FROM "+spec.linkTable+" WHERE "+spec.sourceCol+" = ?", sourceID); err != nil {
		return fmt.Errorf("failed to clear %s links: %w", level, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s, %s, sort_order) VALUES (?, ?, ?)", spec.linkTable, spec.sourceCol, spec.targetCol)
	for _, link := range craft.Links(level, sourceID, targetIDs) {
		if _, err := r.db.ExecContext(ctx, insert, link.SourceID, link.TargetID, link.SortOrder); err != nil {
			return fmt.Errorf("failed to insert %s link: %w", level, err)
		}
	}
	return nil
}

func (r *CraftRepository) entityQuery(spec levelSpec) string {
	cols := append([]string{"id", "craft_id", "title"}, spec.columns...)
	cols = append(cols, "sort_order", "created_at", "updated_at")
	return "SELECT " + strings.Join(cols, ", ") + " FROM " + spec.table
}

func (r *CraftRepository) scanEntity(s scanner, level models.CraftLevel, spec levelSpec) (*models.CraftEntity, error) {
	e := models.CraftEntity{Level: level, RefIDs: []string{}}
	extras := make([]sql.NullString, len(spec.columns))

	dest := []any{&e.ID, &e.CraftID, &e.Title}
	for i := range extras {
		dest = append(dest, &extras[i])
	}
	dest = append(dest, &e.SortOrder, &e.CreatedAt, &e.UpdatedAt)

	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	for i, c := range spec.columns {
		*field(&e, c) = extras[i].String
	}
	return &e, nil
}

// entities loads every entity of every level for one craft.
func (r *CraftRepository) entities(ctx context.Context, craftID string) ([]models.CraftEntity, error) {
	var out []models.CraftEntity
	for _, level := range models.CraftLevels {
		spec := levelSpecs[level]
		rows, err := r.db.QueryContext(ctx, r.entityQuery(spec)+" WHERE craft_id = ? ORDER BY sort_order, created_at", craftID)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", level, err)
		}
		for rows.Next() {
			e, err := r.scanEntity(rows, level, spec)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan %s: %w", level, err)
			}
			out = append(out, *e)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// links loads the link rows whose source belongs to craftID.
func (r *CraftRepository) links(ctx context.Context, craftID string) ([]models.CraftLink, error) {
	var out []models.CraftLink
	for _, level := range models.CraftLevels {
		spec := levelSpecs[level]
		if spec.linkTable == "" {
			continue
		}
		query := fmt.Sprintf(
			"SELECT l.%[1]s, l.%[2]s, l.sort_order FROM %[3]s l JOIN %[4]s p ON p.id = l.%[1]s WHERE p.craft_id = ? ORDER BY l.%[1]s, l.sort_order",
			spec.sourceCol, spec.targetCol, spec.linkTable, spec.table,
		)
		rows, err := r.db.QueryContext(ctx, query, craftID)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s links: %w", level, err)
		}
		for rows.Next() {
			link := models.CraftLink{Level: level}
			if err := rows.Scan(&link.SourceID, &link.TargetID, &link.SortOrder); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan %s link: %w", level, err)
			}
			out = append(out, link)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *CraftRepository) refIDs(ctx context.Context, spec levelSpec, sourceID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+spec.targetCol+" FROM "+spec.linkTable+" WHERE "+spec.sourceCol+" = ? ORDER BY sort_order", sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load links: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
