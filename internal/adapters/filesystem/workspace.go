// Package filesystem contains filesystem-based adapter implementations.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/example/khal/internal/ports/secondary"
)

// Adapter implements secondary.FileSystem on the local disk.
type Adapter struct{}

// NewAdapter creates a new filesystem adapter.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// ModTime returns the modification time of path in UTC.
func (a *Adapter) ModTime(ctx context.Context, path string) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return info.ModTime().UTC(), true, nil
}

// WriteFileAtomic writes into a temp file in the target directory, syncs it
// and renames it over path. The temp file is removed on any failure, so
// readers see either the previous file or the complete new one.
func (a *Adapter) WriteFileAtomic(ctx context.Context, path string, write func(w io.Writer) error) error {
	if err := a.EnsureDir(ctx, path); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tempFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tempPath)
		}
	}()

	if err := write(tempFile); err != nil {
		tempFile.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}

	success = true
	return nil
}

// EnsureDir creates the parent directory of path.
func (a *Adapter) EnsureDir(ctx context.Context, path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// Ensure Adapter implements the interface
var _ secondary.FileSystem = (*Adapter)(nil)
