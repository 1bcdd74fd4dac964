// Package config loads the KHAL user configuration and resolves the backend
// locator every engine call is bound to.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/example/khal/internal/models"
)

// Config file location and environment prefix.
const (
	DirName   = ".khal"
	FileName  = "config.yaml"
	EnvPrefix = "KHAL"
)

// DefaultStorePath is used when neither flag, environment nor config file
// names a backend file.
const DefaultStorePath = "data/KHAL.sqlite"

// Config represents the KHAL configuration stored in .khal/config.yaml.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Actor   string        `yaml:"actor,omitempty" mapstructure:"actor"`
}

// StoreConfig names the backend file.
type StoreConfig struct {
	Backend string `yaml:"backend,omitempty" mapstructure:"backend" validate:"omitempty,oneof=sqlite workbook"`
	Path    string `yaml:"path" mapstructure:"path" validate:"required"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `yaml:"format" mapstructure:"format" validate:"omitempty,oneof=text json"`
	File       string `yaml:"file,omitempty" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty" mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups,omitempty" mapstructure:"max_backups" validate:"gte=0"`
}

// MetricsConfig names the prometheus textfile written after each command.
type MetricsConfig struct {
	File string `yaml:"file,omitempty" mapstructure:"file"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Store: StoreConfig{Path: DefaultStorePath},
		Log:   LogConfig{Level: "info", Format: "text", MaxSizeMB: 10, MaxBackups: 3},
	}
}

var configValidate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field values against their allowed sets.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Path returns the config file location inside dir.
func Path(dir string) string {
	return filepath.Join(dir, DirName, FileName)
}

// LoadConfig reads .khal/config.yaml from dir and applies KHAL_* environment
// overrides (KHAL_STORE_PATH, KHAL_LOG_LEVEL, ...). A missing file yields
// the defaults. Relative file paths are resolved against dir.
func LoadConfig(dir string) (*Config, error) {
	def := Default()
	v := viper.New()
	v.SetDefault("store.backend", def.Store.Backend)
	v.SetDefault("store.path", def.Store.Path)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("log.max_size_mb", def.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", def.Log.MaxBackups)
	v.SetDefault("metrics.file", def.Metrics.File)
	v.SetDefault("actor", def.Actor)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := Path(dir)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Store.Path = resolve(dir, cfg.Store.Path)
	cfg.Log.File = resolve(dir, cfg.Log.File)
	cfg.Metrics.File = resolve(dir, cfg.Metrics.File)
	return &cfg, nil
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// SaveConfig writes cfg to .khal/config.yaml inside dir.
func SaveConfig(dir string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	khalDir := filepath.Join(dir, DirName)
	if err := os.MkdirAll(khalDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s dir: %w", DirName, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(Path(dir), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Locator identifies the backend file an engine call operates on.
type Locator struct {
	Backend models.Backend
	Path    string
}

// NewLocator builds a locator. An empty path selects DefaultStorePath and
// an empty backend is inferred from the file extension.
func NewLocator(path, backend string) (Locator, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultStorePath
	}

	switch models.Backend(strings.ToLower(strings.TrimSpace(backend))) {
	case "":
		return Locator{Backend: InferBackend(path), Path: path}, nil
	case models.BackendSQLite:
		return Locator{Backend: models.BackendSQLite, Path: path}, nil
	case models.BackendWorkbook, "xlsx":
		return Locator{Backend: models.BackendWorkbook, Path: path}, nil
	}
	return Locator{}, fmt.Errorf("unknown backend %q (expected sqlite or workbook)", backend)
}

// InferBackend maps .xlsx and .xlsm files to the workbook backend and
// everything else to SQLite.
func InferBackend(path string) models.Backend {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return models.BackendWorkbook
	}
	return models.BackendSQLite
}

// Locator resolves the configured store.
func (c *Config) Locator() (Locator, error) {
	return NewLocator(c.Store.Path, c.Store.Backend)
}
