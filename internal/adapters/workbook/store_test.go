package workbook_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/example/khal/internal/adapters/filesystem"
	"github.com/example/khal/internal/adapters/workbook"
	"github.com/example/khal/internal/models"
	"github.com/example/khal/internal/ports/secondary"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type sheet struct {
	name string
	rows [][]any
}

// writeFixture saves a workbook with the given sheets in order.
func writeFixture(t *testing.T, sheets ...sheet) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", s.name))
		} else {
			_, err := f.NewSheet(s.name)
			require.NoError(t, err)
		}
		for r, values := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			row := values
			require.NoError(t, f.SetSheetRow(s.name, cell, &row))
		}
	}

	path := filepath.Join(t.TempDir(), "KHAL.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func legacyFixture(t *testing.T) string {
	return writeFixture(t,
		sheet{"War Room", [][]any{
			{"title: Spring"},
			{"## Health"},
			{"- sleep more"},
		}},
		sheet{"Affairs", [][]any{
			{"Domain", "Affair", "Timeline", "Stakes", "Risk", "Fragility", "Status", "Completion", "Description"},
			{"Health", "Roof repair", "Q3", 8, 7, "", "In Progress", 40, "fix the roof"},
			{"Health", "Broken row", "", "abc", 2},
			{},
			{"TASK TRACKING"},
			{"Source", "Task", "Effort", "Due", "Status", "Owner", "Horizon", "Source Type", "Depends On", "Parent", "Notes"},
			{"", "Call roofer", 2, "2026-04-01", "not started", "Self", "month", "AFFAIR"},
		}},
		sheet{" intrests ", [][]any{
			{"Domain", "Interest", "Stakes", "Risk", "Asymmetry", "Upside", "Downside", "Convexity", "Status", "Notes", "Description"},
			{"Wealth", "Options", 5, 2, "high", "10x", "premium", 9, "", "", ""},
		}},
	)
}

func newStore(path string) *workbook.Store {
	return workbook.NewStore(path, filesystem.NewAdapter(), workbook.WithClock(func() time.Time { return testNow }))
}

func TestStore_LoadDecodesRows(t *testing.T) {
	store := newStore(legacyFixture(t))

	result, err := store.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, result.State.Affairs, 1)
	affair := result.State.Affairs[0]
	assert.Equal(t, "Roof repair", affair.Title)
	assert.Equal(t, "health", affair.DomainID)
	assert.Equal(t, 8.0, affair.Stakes)
	assert.Equal(t, 40.0, affair.CompletionPct)
	assert.Equal(t, models.StatusInProgress, affair.Status)

	require.Len(t, result.State.Interests, 1)
	assert.Equal(t, "wealth", result.State.Interests[0].DomainID)
	assert.Equal(t, 9.0, result.State.Interests[0].Convexity)

	require.Len(t, result.State.Tasks, 1)
	task := result.State.Tasks[0]
	assert.Equal(t, "Call roofer", task.Title)
	assert.Equal(t, models.HorizonMonth, task.Horizon)
	assert.Equal(t, models.SourceAffair, task.SourceType)
	require.NotNil(t, task.EffortEstimate)
	assert.Equal(t, 2.0, *task.EffortEstimate)

	assert.Equal(t, []models.SkippedRow{{Sheet: "Affairs", Row: 3, Reason: `stakes: invalid number "abc"`}}, result.Skipped)

	require.Len(t, result.State.Narrative.Blocks, 2)
	assert.Equal(t, "Health", result.State.Narrative.Blocks[1].Heading)
	assert.Equal(t, []string{"sleep more"}, result.State.Narrative.Blocks[1].Bullets)

	assert.Equal(t, workbook.LegacyVersion, result.Meta[secondary.MetaSchemaVersion])
	assert.Equal(t, workbook.SourceOfTruth, result.Meta[secondary.MetaSourceOfTruth])
}

func TestStore_LoadKeepsRowIdentity(t *testing.T) {
	store := newStore(legacyFixture(t))
	ctx := context.Background()

	first, err := store.Load(ctx)
	require.NoError(t, err)
	second, err := store.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.State.Affairs[0].ID, second.State.Affairs[0].ID)
	assert.Equal(t, first.State.Interests[0].ID, second.State.Interests[0].ID)
	assert.Equal(t, first.State.Tasks[0].ID, second.State.Tasks[0].ID)
	assert.NotEmpty(t, second.Meta[secondary.MetaLastLoaded])
}

func TestStore_LoadWithoutNewRowsDoesNotWrite(t *testing.T) {
	path := legacyFixture(t)
	store := newStore(path)
	ctx := context.Background()

	_, err := store.Load(ctx)
	require.NoError(t, err)

	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, past, past))

	_, err = store.Load(ctx)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(past))
}

func TestStore_MissingRequiredSheets(t *testing.T) {
	path := writeFixture(t, sheet{"affairs", nil})
	store := newStore(path)

	_, err := store.Load(context.Background())
	var structure *models.StructureError
	require.True(t, errors.As(err, &structure))
	assert.Equal(t, []string{
		"Missing required sheet: War Room",
		"Missing required sheet: Interests (or Intrests)",
	}, structure.Issues)

	issues, err := store.Validate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, structure.Issues, issues)

	err = store.Update(context.Background(), func(tx secondary.StoreTx) error { return nil })
	assert.True(t, errors.Is(err, models.ErrStructure))
}

func TestStore_UpdateOverwritesInPlaceAndAppends(t *testing.T) {
	store := newStore(legacyFixture(t))
	ctx := context.Background()

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	roof := loaded.State.Affairs[0]

	err = store.Update(ctx, func(tx secondary.StoreTx) error {
		roof.Title = "Roof replacement"
		if err := tx.UpsertAffair(ctx, &roof); err != nil {
			return err
		}
		return tx.UpsertAffair(ctx, &models.Affair{
			ID: "new-affair", DomainID: "health", Title: "Gutters", Stakes: 3, Risk: 4, Status: models.StatusNotStarted,
		})
	})
	require.NoError(t, err)

	result, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, result.State.Affairs, 2)

	byID := map[string]models.Affair{}
	for _, a := range result.State.Affairs {
		byID[a.ID] = a
	}
	assert.Equal(t, "Roof replacement", byID[roof.ID].Title)
	assert.Equal(t, "Gutters", byID["new-affair"].Title)
	assert.Equal(t, "health", byID["new-affair"].DomainID)
	assert.Equal(t, loaded.State.Tasks[0].ID, result.State.Tasks[0].ID)
	assert.NotEmpty(t, result.Meta[secondary.MetaLastWrite])
}

func TestStore_AppendShiftsTaskRegion(t *testing.T) {
	path := writeFixture(t,
		sheet{"War Room", nil},
		sheet{"Affairs", [][]any{
			{"Domain", "Affair"},
			{"Health", "First"},
			{"TASK TRACKING"},
			{"Source", "Task"},
			{"", "Existing task"},
		}},
		sheet{"Interests", nil},
	)
	store := newStore(path)
	ctx := context.Background()

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	taskID := loaded.State.Tasks[0].ID

	require.NoError(t, store.Update(ctx, func(tx secondary.StoreTx) error {
		return tx.UpsertAffair(ctx, &models.Affair{ID: "second", DomainID: "health", Title: "Second"})
	}))

	result, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, result.State.Affairs, 2)
	require.Len(t, result.State.Tasks, 1)
	assert.Equal(t, taskID, result.State.Tasks[0].ID)
	assert.Equal(t, "Existing task", result.State.Tasks[0].Title)
	assert.Empty(t, result.Skipped)
}

func TestStore_TaskMovesWithSourceType(t *testing.T) {
	store := newStore(legacyFixture(t))
	ctx := context.Background()

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	task := loaded.State.Tasks[0]

	require.NoError(t, store.Update(ctx, func(tx secondary.StoreTx) error {
		task.SourceType = models.SourcePlan
		task.DependencyIDs = []string{"dep-1", "dep-2"}
		return tx.UpsertTask(ctx, &task)
	}))

	result, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, result.State.Tasks, 1)
	moved := result.State.Tasks[0]
	assert.Equal(t, task.ID, moved.ID)
	assert.Equal(t, models.SourcePlan, moved.SourceType)
	assert.Equal(t, []string{"dep-1", "dep-2"}, moved.DependencyIDs)
}

func TestStore_UpdateErrorLeavesFileUntouched(t *testing.T) {
	path := legacyFixture(t)
	store := newStore(path)
	ctx := context.Background()
	_, err := store.Load(ctx)
	require.NoError(t, err)

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = store.Update(ctx, func(tx secondary.StoreTx) error {
		if err := tx.UpsertAffair(ctx, &models.Affair{ID: "x", DomainID: "general", Title: "Lost"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestStore_NormalizeCreatesWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "KHAL.xlsx")
	store := newStore(path)
	ctx := context.Background()

	issues, err := store.Validate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Workbook file not found"}, issues)

	added, err := store.Normalize(ctx)
	require.NoError(t, err)
	assert.Contains(t, added, "Added sheet: Affairs")
	assert.Contains(t, added, "Added sheet: _khal_meta")

	issues, err = store.Validate(ctx)
	require.NoError(t, err)
	assert.Empty(t, issues)

	added, err = store.Normalize(ctx)
	require.NoError(t, err)
	assert.Empty(t, added)

	require.NoError(t, store.Update(ctx, func(tx secondary.StoreTx) error {
		return tx.UpsertInterest(ctx, &models.Interest{ID: "i-1", DomainID: "general", Title: "Options", Stakes: 5, Risk: 2, Convexity: 9})
	}))
	result, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, workbook.CurrentVersion, result.Meta[secondary.MetaSchemaVersion])
	require.Len(t, result.State.Interests, 1)
	assert.Equal(t, "i-1", result.State.Interests[0].ID)
}

func TestStore_NormalizeAddsMissingSheet(t *testing.T) {
	path := writeFixture(t, sheet{"War Room", nil}, sheet{"Affairs", nil})
	store := newStore(path)

	added, err := store.Normalize(context.Background())
	require.NoError(t, err)
	assert.Contains(t, added, "Added sheet: Interests")

	_, err = store.Load(context.Background())
	require.NoError(t, err)
}

func TestStore_CraftLinksAreReplaced(t *testing.T) {
	store := newStore(legacyFixture(t))
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, func(tx secondary.StoreTx) error {
		if err := tx.UpsertCraft(ctx, &models.Craft{ID: "c1", Name: "Investing"}); err != nil {
			return err
		}
		for _, id := range []string{"A", "B", "C"} {
			if err := tx.UpsertCraftEntity(ctx, &models.CraftEntity{ID: id, CraftID: "c1", Level: models.LevelHeap, Title: id}); err != nil {
				return err
			}
		}
		if err := tx.UpsertCraftEntity(ctx, &models.CraftEntity{ID: "M", CraftID: "c1", Level: models.LevelModel, Title: "Model"}); err != nil {
			return err
		}
		return tx.ReplaceLinks(ctx, models.LevelModel, "M", []string{"A", "B"})
	}))
	require.NoError(t, store.Update(ctx, func(tx secondary.StoreTx) error {
		return tx.ReplaceLinks(ctx, models.LevelModel, "M", []string{"C"})
	}))

	result, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, result.State.Crafts, 1)
	c := result.State.Crafts[0]
	require.Len(t, c.Models, 1)
	assert.Equal(t, []string{"C"}, c.Models[0].HeapIDs)
	assert.Equal(t, []string{"A", "B", "C"}, []string{c.Heaps[0].ID, c.Heaps[1].ID, c.Heaps[2].ID})
}

func TestStore_LawsAndChanges(t *testing.T) {
	store := newStore(legacyFixture(t))
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, func(tx secondary.StoreTx) error {
		if err := tx.UpsertLaw(ctx, &models.Law{ID: "l1", Name: "Health", CraftIDs: []string{"c2", "c1"}}); err != nil {
			return err
		}
		if err := tx.LogChange(ctx, models.ChangeEntry{ID: "ch1", EntityType: "law", EntityID: "l1", Action: models.ActionCreate, CreatedAt: testNow}); err != nil {
			return err
		}
		return tx.LogChange(ctx, models.ChangeEntry{ID: "ch2", EntityType: "law", EntityID: "l1", Action: models.ActionUpdate, CreatedAt: testNow.Add(time.Minute)})
	}))

	result, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, result.State.Laws, 1)
	assert.Equal(t, []string{"c2", "c1"}, result.State.Laws[0].CraftIDs)

	require.NoError(t, store.View(ctx, func(tx secondary.StoreTx) error {
		changes, err := tx.ListChanges(ctx, 1)
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.Equal(t, "ch2", changes[0].ID)
		return nil
	}))
}

func TestStore_NarrativeIsReadOnly(t *testing.T) {
	store := newStore(legacyFixture(t))

	err := store.Update(context.Background(), func(tx secondary.StoreTx) error {
		return tx.ReplaceNarrative(context.Background(), models.Narrative{})
	})
	assert.True(t, errors.Is(err, models.ErrValidation))
}
