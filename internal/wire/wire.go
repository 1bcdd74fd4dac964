// Package wire provides dependency injection for the KHAL application.
// It builds the services for one backend locator and keeps a lazily
// initialized singleton for the CLI.
package wire

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	cliadapter "github.com/example/khal/internal/adapters/cli"
	"github.com/example/khal/internal/adapters/filesystem"
	"github.com/example/khal/internal/adapters/sqlite"
	"github.com/example/khal/internal/adapters/workbook"
	"github.com/example/khal/internal/app"
	"github.com/example/khal/internal/config"
	"github.com/example/khal/internal/logging"
	"github.com/example/khal/internal/models"
	"github.com/example/khal/internal/ports/primary"
	"github.com/example/khal/internal/ports/secondary"
	"github.com/example/khal/internal/telemetry"
)

// Options selects the configuration directory and optional overrides.
type Options struct {
	// Dir holds .khal/config.yaml. Empty means the working directory.
	Dir string
	// StorePath and Backend override the configured locator when set.
	StorePath string
	Backend   string
	Stderr    io.Writer
}

// App holds every dependency built for one locator.
type App struct {
	Config  *config.Config
	Locator config.Locator
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
	FS      *filesystem.Adapter
	Store   secondary.Store
	Sync    *app.SyncServiceImpl

	logCloser io.Closer
}

// New loads the configuration and builds the services.
func New(opts Options) (*App, error) {
	dir := opts.Dir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = cwd
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	cfg, err := config.LoadConfig(dir)
	if err != nil {
		return nil, err
	}
	if opts.StorePath != "" {
		cfg.Store.Path = opts.StorePath
		cfg.Store.Backend = ""
	}
	if opts.Backend != "" {
		cfg.Store.Backend = opts.Backend
	}
	loc, err := cfg.Locator()
	if err != nil {
		return nil, err
	}

	logger, closer, err := logging.New(cfg.Log, stderr)
	if err != nil {
		return nil, err
	}

	fsys := filesystem.NewAdapter()
	metrics := telemetry.NewMetrics()
	store := OpenStore(loc, fsys, logger)

	return &App{
		Config:    cfg,
		Locator:   loc,
		Logger:    logger,
		Metrics:   metrics,
		FS:        fsys,
		Store:     store,
		Sync:      app.NewSyncService(store, fsys, storeOpener(fsys, logger), metrics, logger),
		logCloser: closer,
	}, nil
}

// OpenStore returns the Store implementation for loc.
func OpenStore(loc config.Locator, fsys secondary.FileSystem, logger *slog.Logger) secondary.Store {
	if loc.Backend == models.BackendWorkbook {
		return workbook.NewStore(loc.Path, fsys, workbook.WithLogger(logger))
	}
	return sqlite.NewStore(loc.Path, sqlite.WithLogger(logger))
}

func storeOpener(fsys secondary.FileSystem, logger *slog.Logger) app.StoreOpener {
	return func(path string) (secondary.Store, error) {
		loc, err := config.NewLocator(path, "")
		if err != nil {
			return nil, err
		}
		return OpenStore(loc, fsys, logger), nil
	}
}

// Adapter returns a SyncAdapter writing to out.
func (a *App) Adapter(out io.Writer) *cliadapter.SyncAdapter {
	return cliadapter.NewSyncAdapter(a.Sync, out)
}

// Close writes the metrics textfile when configured and closes the log
// file.
func (a *App) Close(ctx context.Context) error {
	var firstErr error
	if a.Config.Metrics.File != "" {
		if err := a.FS.EnsureDir(ctx, a.Config.Metrics.File); err != nil {
			firstErr = err
		} else if err := a.Metrics.WriteTextfile(a.Config.Metrics.File); err != nil {
			firstErr = err
		}
	}
	if a.logCloser != nil {
		if err := a.logCloser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var (
	options Options
	current *App
	initErr error
	once    sync.Once
)

// Configure sets the options used by the singleton. It must be called
// before the first service accessor.
func Configure(opts Options) {
	options = opts
}

// Current returns the singleton App, building it on first use.
func Current() (*App, error) {
	once.Do(func() {
		current, initErr = New(options)
	})
	return current, initErr
}

// SyncService returns the singleton SyncService instance.
func SyncService() (primary.SyncService, error) {
	a, err := Current()
	if err != nil {
		return nil, err
	}
	return a.Sync, nil
}

// SyncAdapter returns a new SyncAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func SyncAdapter() (*cliadapter.SyncAdapter, error) {
	return SyncAdapterWithOutput(os.Stdout)
}

// SyncAdapterWithOutput returns a new SyncAdapter writing to the given output.
func SyncAdapterWithOutput(out io.Writer) (*cliadapter.SyncAdapter, error) {
	a, err := Current()
	if err != nil {
		return nil, err
	}
	return a.Adapter(out), nil
}

// Shutdown closes the singleton if it was built.
func Shutdown(ctx context.Context) error {
	if current == nil {
		return nil
	}
	return current.Close(ctx)
}
