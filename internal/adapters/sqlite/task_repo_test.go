package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/khal/internal/adapters/sqlite"
	"github.com/example/khal/internal/models"
)

func newTask(id string, deps ...string) *models.Task {
	return &models.Task{
		ID:            id,
		SourceType:    models.SourceAffair,
		SourceID:      "a-1",
		Title:         "Task " + id,
		Horizon:       models.HorizonWeek,
		Status:        models.StatusNotStarted,
		DependencyIDs: deps,
	}
}

func TestTaskRepository_DependenciesReplaced(t *testing.T) {
	testDB := setupTestDB(t)
	ctx := context.Background()
	repo := sqlite.NewTaskRepository(testDB)

	require.NoError(t, repo.Upsert(ctx, newTask("A"), testNow))
	require.NoError(t, repo.Upsert(ctx, newTask("B"), testNow))
	require.NoError(t, repo.Upsert(ctx, newTask("C", "B", "A"), testNow))

	got, err := repo.GetByID(ctx, "C")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, got.DependencyIDs)

	require.NoError(t, repo.Upsert(ctx, newTask("C", "A"), testNow))
	got, err = repo.GetByID(ctx, "C")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, got.DependencyIDs)
}

func TestTaskRepository_ListAttachesDependencies(t *testing.T) {
	testDB := setupTestDB(t)
	ctx := context.Background()
	repo := sqlite.NewTaskRepository(testDB)

	effort := 2.5
	a := newTask("A")
	a.EffortEstimate = &effort
	require.NoError(t, repo.Upsert(ctx, a, testNow))
	require.NoError(t, repo.Upsert(ctx, newTask("B", "A", "missing"), testNow))

	tasks, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	byID := map[string]models.Task{}
	for _, task := range tasks {
		byID[task.ID] = task
	}
	assert.Equal(t, []string{"A", "missing"}, byID["B"].DependencyIDs)
	assert.Equal(t, []string{}, byID["A"].DependencyIDs)
	require.NotNil(t, byID["A"].EffortEstimate)
	assert.Equal(t, 2.5, *byID["A"].EffortEstimate)
}

func TestTaskRepository_ParentTask(t *testing.T) {
	testDB := setupTestDB(t)
	ctx := context.Background()
	repo := sqlite.NewTaskRepository(testDB)

	require.NoError(t, repo.Upsert(ctx, newTask("P"), testNow))
	child := newTask("K")
	child.ParentTaskID = "P"
	child.Horizon = models.HorizonYear
	require.NoError(t, repo.Upsert(ctx, child, testNow))

	got, err := repo.GetByID(ctx, "K")
	require.NoError(t, err)
	assert.Equal(t, "P", got.ParentTaskID)
	assert.Equal(t, models.HorizonYear, got.Horizon)
}
