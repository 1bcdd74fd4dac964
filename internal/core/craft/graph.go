// Package craft contains the pure rules of the five-level craft graph:
// reference validation and reassembly of stored rows into a Craft.
package craft

import (
	"fmt"
	"sort"

	"github.com/example/khal/internal/models"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to a *models.ValidationError if not
// allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return models.NewValidationError(r.Reason)
}

// RefContext provides context for reference list guards.
type RefContext struct {
	Level  models.CraftLevel
	RefIDs []string
	// ChildIDs holds the ids present at the child level of the same craft.
	ChildIDs map[string]bool
}

// CanSetRefs evaluates whether an entity may reference RefIDs.
// Rules:
// - Heaps reference nothing
// - Every reference must exist at the child level of the same craft
// - A reference may appear only once
func CanSetRefs(ctx RefContext) GuardResult {
	child, ok := ctx.Level.Child()
	if !ok {
		if len(ctx.RefIDs) > 0 {
			return GuardResult{
				Allowed: false,
				Reason:  fmt.Sprintf("%s cannot reference other entities", ctx.Level),
			}
		}
		return GuardResult{Allowed: true}
	}

	seen := make(map[string]bool, len(ctx.RefIDs))
	for _, id := range ctx.RefIDs {
		if seen[id] {
			return GuardResult{
				Allowed: false,
				Reason:  fmt.Sprintf("%s %s referenced more than once", child, id),
			}
		}
		seen[id] = true
		if !ctx.ChildIDs[id] {
			return GuardResult{
				Allowed: false,
				Reason:  fmt.Sprintf("%s %s not found in craft", child, id),
			}
		}
	}

	return GuardResult{Allowed: true}
}

// Assemble rebuilds a craft from its scalar record, its entities and the
// link rows whose source belongs to it. Entities are ordered by sort order
// then creation time; reference lists follow link sort order.
func Assemble(base models.Craft, entities []models.CraftEntity, links []models.CraftLink) models.Craft {
	out := models.Craft{
		ID:                base.ID,
		Name:              base.Name,
		Description:       base.Description,
		CreatedAt:         base.CreatedAt,
		UpdatedAt:         base.UpdatedAt,
		Heaps:             []models.Heap{},
		Models:            []models.CraftModel{},
		Frameworks:        []models.Framework{},
		BarbellStrategies: []models.BarbellStrategy{},
		Heuristics:        []models.Heuristic{},
	}

	refs := groupLinks(links)

	ordered := append([]models.CraftEntity(nil), entities...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].SortOrder != ordered[j].SortOrder {
			return ordered[i].SortOrder < ordered[j].SortOrder
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	for _, e := range ordered {
		if e.CraftID != base.ID {
			continue
		}
		ids := refs[linkKey{e.Level, e.ID}]
		if ids == nil {
			ids = []string{}
		}
		switch e.Level {
		case models.LevelHeap:
			out.Heaps = append(out.Heaps, models.Heap{
				ID: e.ID, CraftID: e.CraftID, Title: e.Title, Type: e.Type, URL: e.URL, Notes: e.Notes,
			})
		case models.LevelModel:
			out.Models = append(out.Models, models.CraftModel{
				ID: e.ID, CraftID: e.CraftID, Title: e.Title, Description: e.Description, HeapIDs: ids,
			})
		case models.LevelFramework:
			out.Frameworks = append(out.Frameworks, models.Framework{
				ID: e.ID, CraftID: e.CraftID, Title: e.Title, Description: e.Description, ModelIDs: ids,
			})
		case models.LevelBarbell:
			out.BarbellStrategies = append(out.BarbellStrategies, models.BarbellStrategy{
				ID: e.ID, CraftID: e.CraftID, Title: e.Title, Hedge: e.Hedge, Edge: e.Edge, FrameworkIDs: ids,
			})
		case models.LevelHeuristic:
			out.Heuristics = append(out.Heuristics, models.Heuristic{
				ID: e.ID, CraftID: e.CraftID, Title: e.Title, Content: e.Content, BarbellStrategyIDs: ids,
			})
		}
	}

	return out
}

// Links expands an ordered reference list into link rows.
func Links(level models.CraftLevel, sourceID string, targetIDs []string) []models.CraftLink {
	out := make([]models.CraftLink, 0, len(targetIDs))
	for i, id := range targetIDs {
		out = append(out, models.CraftLink{Level: level, SourceID: sourceID, TargetID: id, SortOrder: i})
	}
	return out
}

type linkKey struct {
	level  models.CraftLevel
	source string
}

func groupLinks(links []models.CraftLink) map[linkKey][]string {
	sorted := append([]models.CraftLink(nil), links...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SortOrder < sorted[j].SortOrder
	})

	out := make(map[linkKey][]string)
	for _, l := range sorted {
		k := linkKey{l.Level, l.SourceID}
		out[k] = append(out[k], l.TargetID)
	}
	return out
}

// Flatten is the inverse of Assemble: it splits a craft into level-agnostic
// entities and their ordered link rows.
func Flatten(c models.Craft) ([]models.CraftEntity, []models.CraftLink) {
	var (
		entities []models.CraftEntity
		links    []models.CraftLink
	)
	add := func(e models.CraftEntity, refs []string) {
		e.CraftID = c.ID
		e.SortOrder = len(entities)
		e.RefIDs = append([]string{}, refs...)
		entities = append(entities, e)
		links = append(links, Links(e.Level, e.ID, refs)...)
	}

	for _, h := range c.Heaps {
		add(models.CraftEntity{ID: h.ID, Level: models.LevelHeap, Title: h.Title, Type: h.Type, URL: h.URL, Notes: h.Notes}, nil)
	}
	for _, m := range c.Models {
		add(models.CraftEntity{ID: m.ID, Level: models.LevelModel, Title: m.Title, Description: m.Description}, m.HeapIDs)
	}
	for _, f := range c.Frameworks {
		add(models.CraftEntity{ID: f.ID, Level: models.LevelFramework, Title: f.Title, Description: f.Description}, f.ModelIDs)
	}
	for _, b := range c.BarbellStrategies {
		add(models.CraftEntity{ID: b.ID, Level: models.LevelBarbell, Title: b.Title, Hedge: b.Hedge, Edge: b.Edge}, b.FrameworkIDs)
	}
	for _, h := range c.Heuristics {
		add(models.CraftEntity{ID: h.ID, Level: models.LevelHeuristic, Title: h.Title, Content: h.Content}, h.BarbellStrategyIDs)
	}
	return entities, links
}
