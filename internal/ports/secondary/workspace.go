package secondary

import (
	"context"
	"io"
	"time"
)

// FileSystem defines the secondary port for the backing-file operations the
// engine needs outside of a Store.
type FileSystem interface {
	// ModTime returns the modification time of path. exists is false when
	// the file is absent.
	ModTime(ctx context.Context, path string) (modTime time.Time, exists bool, err error)

	// WriteFileAtomic streams write into a temporary file next to path and
	// renames it over path once write succeeds.
	WriteFileAtomic(ctx context.Context, path string, write func(w io.Writer) error) error

	// EnsureDir creates the parent directory of path.
	EnsureDir(ctx context.Context, path string) error
}
