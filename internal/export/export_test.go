package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/khal/internal/adapters/filesystem"
	"github.com/example/khal/internal/db"
)

func seedDatabase(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "KHAL.sqlite")

	conn, err := db.Open(ctx, path)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.ExecContext(ctx, `INSERT INTO domains (id, name, created_at, updated_at) VALUES ('health', 'Health, body', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')`)
	require.NoError(t, err)
	return path
}

func TestReadTables(t *testing.T) {
	path := seedDatabase(t)

	tables, err := ReadTables(context.Background(), path)
	require.NoError(t, err)

	var domains *Table
	for i := range tables {
		if tables[i].Name == "domains" {
			domains = &tables[i]
		}
	}
	require.NotNil(t, domains)
	require.Len(t, domains.Rows, 1)
	assert.Contains(t, domains.Columns, "name")
	assert.Contains(t, domains.Rows[0], "Health, body")
}

func TestReadTables_MissingFile(t *testing.T) {
	_, err := ReadTables(context.Background(), filepath.Join(t.TempDir(), "missing.sqlite"))
	require.Error(t, err)
}

func TestWriteCSVAndJSON(t *testing.T) {
	ctx := context.Background()
	tables, err := ReadTables(ctx, seedDatabase(t))
	require.NoError(t, err)

	fsys := filesystem.NewAdapter()
	out := t.TempDir()

	written, err := WriteCSV(ctx, fsys, tables, filepath.Join(out, "csv"))
	require.NoError(t, err)
	assert.Len(t, written, len(tables))

	data, err := os.ReadFile(filepath.Join(out, "csv", "domains.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Health, body"`)

	jsonPath := filepath.Join(out, "khal-export.json")
	require.NoError(t, WriteJSON(ctx, fsys, tables, jsonPath))

	raw, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var payload map[string][]map[string]any
	require.NoError(t, json.Unmarshal(raw, &payload))
	require.Len(t, payload["domains"], 1)
	assert.Equal(t, "health", payload["domains"][0]["id"])
}
