package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/khal/internal/models"
)

func TestLoadConfig_DefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, DefaultStorePath), cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.Metrics.File)
}

func TestSaveAndLoadConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Store.Path = "plans/KHAL.xlsx"
	cfg.Log.Format = "json"
	cfg.Metrics.File = "metrics/khal.prom"
	cfg.Actor = "desk"

	require.NoError(t, SaveConfig(dir, cfg))
	_, err := os.Stat(filepath.Join(dir, ".khal", "config.yaml"))
	require.NoError(t, err)

	loaded, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "plans/KHAL.xlsx"), loaded.Store.Path)
	assert.Equal(t, "json", loaded.Log.Format)
	assert.Equal(t, filepath.Join(dir, "metrics/khal.prom"), loaded.Metrics.File)
	assert.Equal(t, "desk", loaded.Actor)

	loc, err := loaded.Locator()
	require.NoError(t, err)
	assert.Equal(t, models.BackendWorkbook, loc.Backend)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveConfig(dir, Default()))

	t.Setenv("KHAL_STORE_PATH", "/srv/khal/KHAL.sqlite")
	t.Setenv("KHAL_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "/srv/khal/KHAL.sqlite", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".khal"), 0755))
	require.NoError(t, os.WriteFile(Path(dir), []byte("store:\n  path: x.db\n  backend: postgres\n"), 0644))

	_, err := LoadConfig(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestNewLocator(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		backend     string
		wantPath    string
		wantBackend models.Backend
		wantErr     bool
	}{
		{name: "default", wantPath: DefaultStorePath, wantBackend: models.BackendSQLite},
		{name: "xlsx inferred", path: "KHAL.xlsx", wantPath: "KHAL.xlsx", wantBackend: models.BackendWorkbook},
		{name: "uppercase extension", path: "KHAL.XLSX", wantPath: "KHAL.XLSX", wantBackend: models.BackendWorkbook},
		{name: "sqlite inferred", path: "KHAL.db", wantPath: "KHAL.db", wantBackend: models.BackendSQLite},
		{name: "explicit backend wins", path: "state.bin", backend: "workbook", wantPath: "state.bin", wantBackend: models.BackendWorkbook},
		{name: "unknown backend", path: "x", backend: "postgres", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := NewLocator(tt.path, tt.backend)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, loc.Path)
			assert.Equal(t, tt.wantBackend, loc.Backend)
		})
	}
}
