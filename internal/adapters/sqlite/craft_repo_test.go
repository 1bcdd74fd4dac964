package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/khal/internal/adapters/sqlite"
	"github.com/example/khal/internal/models"
)

func upsertEntity(t *testing.T, repo *sqlite.CraftRepository, e models.CraftEntity) {
	t.Helper()
	if err := repo.UpsertEntity(context.Background(), &e, testNow); err != nil {
		t.Fatalf("failed to upsert %s %s: %v", e.Level, e.ID, err)
	}
}

func TestCraftRepository_ReplaceLinksIsTotal(t *testing.T) {
	testDB := setupTestDB(t)
	ctx := context.Background()
	craftID := seedCraft(t, testDB, "", "")
	repo := sqlite.NewCraftRepository(testDB)

	for _, id := range []string{"A", "B", "C"} {
		upsertEntity(t, repo, models.CraftEntity{ID: id, CraftID: craftID, Level: models.LevelHeap, Title: "Heap " + id, Type: "link"})
	}
	upsertEntity(t, repo, models.CraftEntity{ID: "M", CraftID: craftID, Level: models.LevelModel, Title: "Model"})

	require.NoError(t, repo.ReplaceLinks(ctx, models.LevelModel, "M", []string{"A", "B"}))
	require.NoError(t, repo.ReplaceLinks(ctx, models.LevelModel, "M", []string{"C"}))

	model, err := repo.GetEntity(ctx, models.LevelModel, "M")
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, model.RefIDs)

	craft, err := repo.GetByID(ctx, craftID)
	require.NoError(t, err)
	require.Len(t, craft.Models, 1)
	assert.Equal(t, []string{"C"}, craft.Models[0].HeapIDs)

	require.NoError(t, repo.ReplaceLinks(ctx, models.LevelModel, "M", nil))
	model, err = repo.GetEntity(ctx, models.LevelModel, "M")
	require.NoError(t, err)
	assert.Empty(t, model.RefIDs)
}

func TestCraftRepository_ReplaceLinksPreservesOrder(t *testing.T) {
	testDB := setupTestDB(t)
	ctx := context.Background()
	craftID := seedCraft(t, testDB, "", "")
	repo := sqlite.NewCraftRepository(testDB)

	for _, id := range []string{"F1", "F2", "F3"} {
		upsertEntity(t, repo, models.CraftEntity{ID: id, CraftID: craftID, Level: models.LevelFramework, Title: id})
	}
	upsertEntity(t, repo, models.CraftEntity{ID: "BB", CraftID: craftID, Level: models.LevelBarbell, Title: "Barbell", Hedge: "cash", Edge: "options"})
	require.NoError(t, repo.ReplaceLinks(ctx, models.LevelBarbell, "BB", []string{"F3", "F1", "F2"}))

	craft, err := repo.GetByID(ctx, craftID)
	require.NoError(t, err)
	require.Len(t, craft.BarbellStrategies, 1)
	assert.Equal(t, []string{"F3", "F1", "F2"}, craft.BarbellStrategies[0].FrameworkIDs)
	assert.Equal(t, "cash", craft.BarbellStrategies[0].Hedge)
	assert.Equal(t, []string{"F1", "F2", "F3"}, []string{craft.Frameworks[0].ID, craft.Frameworks[1].ID, craft.Frameworks[2].ID})
}

func TestCraftRepository_UpsertEntityUpdatesInPlace(t *testing.T) {
	testDB := setupTestDB(t)
	ctx := context.Background()
	craftID := seedCraft(t, testDB, "", "")
	repo := sqlite.NewCraftRepository(testDB)

	upsertEntity(t, repo, models.CraftEntity{ID: "H1", CraftID: craftID, Level: models.LevelHeap, Title: "First", Type: "link"})
	upsertEntity(t, repo, models.CraftEntity{ID: "H2", CraftID: craftID, Level: models.LevelHeap, Title: "Second", Type: "file"})
	upsertEntity(t, repo, models.CraftEntity{ID: "H1", CraftID: craftID, Level: models.LevelHeap, Title: "First renamed", Type: "file", URL: "https://example.com"})

	h1, err := repo.GetEntity(ctx, models.LevelHeap, "H1")
	require.NoError(t, err)
	assert.Equal(t, "First renamed", h1.Title)
	assert.Equal(t, "https://example.com", h1.URL)
	assert.Equal(t, 0, h1.SortOrder)

	h2, err := repo.GetEntity(ctx, models.LevelHeap, "H2")
	require.NoError(t, err)
	assert.Equal(t, 1, h2.SortOrder)

	ids, err := repo.ListEntityIDs(ctx, craftID, models.LevelHeap)
	require.NoError(t, err)
	assert.Equal(t, []string{"H1", "H2"}, ids)
}

func TestCraftRepository_HeapCannotLink(t *testing.T) {
	testDB := setupTestDB(t)
	repo := sqlite.NewCraftRepository(testDB)

	err := repo.ReplaceLinks(context.Background(), models.LevelHeap, "H", []string{"X"})
	assert.Error(t, err)
}

func TestCraftRepository_GetMissing(t *testing.T) {
	testDB := setupTestDB(t)
	repo := sqlite.NewCraftRepository(testDB)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))

	_, err = repo.GetEntity(context.Background(), models.LevelHeuristic, "missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestCraftRepository_ListOrderedByName(t *testing.T) {
	testDB := setupTestDB(t)
	seedCraft(t, testDB, "c2", "Zeta")
	seedCraft(t, testDB, "c1", "Alpha")
	repo := sqlite.NewCraftRepository(testDB)

	crafts, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, crafts, 2)
	assert.Equal(t, "Alpha", crafts[0].Name)
	assert.NotNil(t, crafts[0].Heaps)
}
