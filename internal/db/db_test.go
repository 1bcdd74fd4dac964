package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreOrdered(t *testing.T) {
	migrations, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version)
	}
	assert.Equal(t, "0001_init", migrations[0].Name)
	assert.Equal(t, migrations[len(migrations)-1].Name, LatestSchemaVersion())
}

func TestOpenAppliesMigrationsOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "KHAL.sqlite")

	conn, err := Open(ctx, path)
	require.NoError(t, err)

	var value string
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT value FROM meta_kv WHERE key = 'schema_version'").Scan(&value))
	assert.Equal(t, LatestSchemaVersion(), value)
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT value FROM meta_kv WHERE key = 'source_of_truth'").Scan(&value))
	assert.Equal(t, SourceOfTruth, value)

	applied, err := RunMigrations(ctx, conn)
	require.NoError(t, err)
	assert.Empty(t, applied, "second run must be a no-op")
	require.NoError(t, conn.Close())

	before, err := os.Stat(path)
	require.NoError(t, err)

	conn, err = Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime(), "reopening an up-to-date database must not write")
}

func TestOpenReadOnlyMissingFile(t *testing.T) {
	_, err := OpenReadOnly(context.Background(), filepath.Join(t.TempDir(), "absent.sqlite"))
	assert.Error(t, err)
}

func TestGetSchemaSQLContainsCoreTables(t *testing.T) {
	schema := GetSchemaSQL()
	for _, table := range []string{"affairs", "interests", "tasks", "task_dependencies", "craft_model_heap_links", "laws", "meta_kv"} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
}
