package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/khal/internal/adapters/sqlite"
	"github.com/example/khal/internal/db"
	"github.com/example/khal/internal/models"
	"github.com/example/khal/internal/ports/secondary"
)

func newFileStore(t *testing.T) *sqlite.Store {
	t.Helper()
	return sqlite.NewStore(filepath.Join(t.TempDir(), "KHAL.sqlite"), sqlite.WithClock(func() time.Time { return testNow }))
}

func TestStore_UpdateCommitsAndLoads(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	err := store.Update(ctx, func(tx secondary.StoreTx) error {
		if err := tx.UpsertDomain(ctx, &models.Domain{ID: "general", Name: "general"}); err != nil {
			return err
		}
		return tx.UpsertAffair(ctx, &models.Affair{ID: "a-1", DomainID: "general", Title: "Roof", Stakes: 8, Risk: 7, Status: models.StatusNotStarted})
	})
	require.NoError(t, err)

	result, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, result.State.Affairs, 1)
	assert.Equal(t, "Roof", result.State.Affairs[0].Title)
	assert.Equal(t, db.SourceOfTruth, result.Meta[secondary.MetaSourceOfTruth])
	assert.Equal(t, db.LatestSchemaVersion(), result.Meta[secondary.MetaSchemaVersion])
	assert.NotEmpty(t, result.Meta[secondary.MetaLastWrite])
}

func TestStore_UpdateRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)
	boom := errors.New("boom")

	err := store.Update(ctx, func(tx secondary.StoreTx) error {
		if err := tx.UpsertDomain(ctx, &models.Domain{ID: "general", Name: "general"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	result, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, result.State.Domains)
	assert.Empty(t, result.Meta[secondary.MetaLastWrite])
}

func TestStore_ValidateAndNormalize(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	issues, err := store.Validate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Database file not found"}, issues)

	added, err := store.Normalize(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, added)

	issues, err = store.Validate(ctx)
	require.NoError(t, err)
	assert.Empty(t, issues)

	added, err = store.Normalize(ctx)
	require.NoError(t, err)
	assert.Empty(t, added)
}

func TestStore_NarrativeAndChanges(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	narrative := models.Narrative{
		Meta: map[string]string{"title": "War Room"},
		Blocks: []models.NarrativeBlock{
			{Heading: "Health", KV: map[string]string{"domain": "health"}, Bullets: []string{"sleep"}},
		},
	}
	err := store.Update(ctx, func(tx secondary.StoreTx) error {
		if err := tx.ReplaceNarrative(ctx, narrative); err != nil {
			return err
		}
		return tx.LogChange(ctx, models.ChangeEntry{ID: "c-1", Actor: "tester", EntityType: "narrative", EntityID: "war-room", Action: models.ActionUpdate, CreatedAt: testNow})
	})
	require.NoError(t, err)

	result, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, narrative.Blocks, result.State.Narrative.Blocks)
	assert.Equal(t, "War Room", result.State.Narrative.Meta["title"])

	var changes []models.ChangeEntry
	require.NoError(t, store.View(ctx, func(tx secondary.StoreTx) error {
		var err error
		changes, err = tx.ListChanges(ctx, 10)
		return err
	}))
	require.Len(t, changes, 1)
	assert.Equal(t, "tester", changes[0].Actor)
}
