package craft

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/khal/internal/models"
)

func TestCanSetRefs(t *testing.T) {
	children := map[string]bool{"h1": true, "h2": true}

	tests := []struct {
		name        string
		ctx         RefContext
		wantAllowed bool
		wantReason  string
	}{
		{
			name:        "model with known heaps",
			ctx:         RefContext{Level: models.LevelModel, RefIDs: []string{"h2", "h1"}, ChildIDs: children},
			wantAllowed: true,
		},
		{
			name:        "empty list clears",
			ctx:         RefContext{Level: models.LevelFramework},
			wantAllowed: true,
		},
		{
			name:        "unknown heap",
			ctx:         RefContext{Level: models.LevelModel, RefIDs: []string{"h9"}, ChildIDs: children},
			wantAllowed: false,
			wantReason:  "heaps h9 not found in craft",
		},
		{
			name:        "duplicate heap",
			ctx:         RefContext{Level: models.LevelModel, RefIDs: []string{"h1", "h1"}, ChildIDs: children},
			wantAllowed: false,
			wantReason:  "heaps h1 referenced more than once",
		},
		{
			name:        "heap with refs",
			ctx:         RefContext{Level: models.LevelHeap, RefIDs: []string{"x"}},
			wantAllowed: false,
			wantReason:  "heaps cannot reference other entities",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanSetRefs(tt.ctx)
			if result.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", result.Allowed, tt.wantAllowed)
			}
			if !tt.wantAllowed && result.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", result.Reason, tt.wantReason)
			}
			if err := result.Error(); tt.wantAllowed != (err == nil) || (err != nil && !errors.Is(err, models.ErrValidation)) {
				t.Errorf("Error() = %v, want validation error only when rejected", err)
			}
		})
	}
}

func TestAssemble(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	base := models.Craft{ID: "c1", Name: "Investing"}
	entities := []models.CraftEntity{
		{ID: "m1", CraftID: "c1", Level: models.LevelModel, Title: "Kelly", SortOrder: 0, CreatedAt: t0},
		{ID: "h2", CraftID: "c1", Level: models.LevelHeap, Title: "Paper", Type: "file", SortOrder: 1, CreatedAt: t0},
		{ID: "h1", CraftID: "c1", Level: models.LevelHeap, Title: "Blog", Type: "link", SortOrder: 0, CreatedAt: t0},
		{ID: "x1", CraftID: "other", Level: models.LevelHeap, Title: "Elsewhere"},
		{ID: "b1", CraftID: "c1", Level: models.LevelBarbell, Title: "90/10", Hedge: "cash", Edge: "options"},
	}
	links := []models.CraftLink{
		{Level: models.LevelModel, SourceID: "m1", TargetID: "h1", SortOrder: 1},
		{Level: models.LevelModel, SourceID: "m1", TargetID: "h2", SortOrder: 0},
	}

	got := Assemble(base, entities, links)

	require.Len(t, got.Heaps, 2)
	assert.Equal(t, "h1", got.Heaps[0].ID)
	assert.Equal(t, "h2", got.Heaps[1].ID)
	require.Len(t, got.Models, 1)
	assert.Equal(t, []string{"h2", "h1"}, got.Models[0].HeapIDs)
	require.Len(t, got.BarbellStrategies, 1)
	assert.Equal(t, []string{}, got.BarbellStrategies[0].FrameworkIDs)
	assert.Empty(t, got.Frameworks)
	assert.NotNil(t, got.Heuristics)
}

func TestLinks(t *testing.T) {
	got := Links(models.LevelHeuristic, "u1", []string{"b2", "b1"})
	assert.Equal(t, []models.CraftLink{
		{Level: models.LevelHeuristic, SourceID: "u1", TargetID: "b2", SortOrder: 0},
		{Level: models.LevelHeuristic, SourceID: "u1", TargetID: "b1", SortOrder: 1},
	}, got)
}

func TestFlattenRoundTrips(t *testing.T) {
	c := models.Craft{
		ID:         "c1",
		Name:       "Investing",
		Heaps:      []models.Heap{{ID: "h1", CraftID: "c1", Title: "Paper", Type: "file"}, {ID: "h2", CraftID: "c1", Title: "Blog", Type: "link"}},
		Models:     []models.CraftModel{{ID: "m1", CraftID: "c1", Title: "Convexity", HeapIDs: []string{"h2", "h1"}}},
		Frameworks: []models.Framework{{ID: "f1", CraftID: "c1", Title: "Barbell", ModelIDs: []string{"m1"}}},
		BarbellStrategies: []models.BarbellStrategy{
			{ID: "b1", CraftID: "c1", Title: "Cash and options", Hedge: "cash", Edge: "calls", FrameworkIDs: []string{"f1"}},
		},
		Heuristics: []models.Heuristic{{ID: "r1", CraftID: "c1", Title: "Never sell vol", Content: "ever", BarbellStrategyIDs: []string{"b1"}}},
	}

	entities, links := Flatten(c)
	require.Len(t, entities, 6)
	assert.Equal(t, []models.CraftLink{
		{Level: models.LevelModel, SourceID: "m1", TargetID: "h2", SortOrder: 0},
		{Level: models.LevelModel, SourceID: "m1", TargetID: "h1", SortOrder: 1},
		{Level: models.LevelFramework, SourceID: "f1", TargetID: "m1", SortOrder: 0},
		{Level: models.LevelBarbell, SourceID: "b1", TargetID: "f1", SortOrder: 0},
		{Level: models.LevelHeuristic, SourceID: "r1", TargetID: "b1", SortOrder: 0},
	}, links)
	assert.Equal(t, models.LevelModel, entities[2].Level)
	assert.Equal(t, []string{"h2", "h1"}, entities[2].RefIDs)

	got := Assemble(models.Craft{ID: "c1", Name: "Investing"}, entities, links)
	assert.Equal(t, c.Heaps, got.Heaps)
	assert.Equal(t, c.Models, got.Models)
	assert.Equal(t, c.Frameworks, got.Frameworks)
	assert.Equal(t, c.BarbellStrategies, got.BarbellStrategies)
	assert.Equal(t, c.Heuristics, got.Heuristics)
}
