package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Typed errors below unwrap to these where relevant.
var (
	ErrConflict               = errors.New("backend changed externally: refresh required")
	ErrDependenciesIncomplete = errors.New("task dependencies are not completed")
	ErrNotFound               = errors.New("not found")
	ErrValidation             = errors.New("validation failed")
	ErrStructure              = errors.New("backend structure invalid")
)

// ValidationError reports a malformed payload. It is raised before any I/O.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Issues, "; "))
}

// Unwrap allows errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError from issues.
func NewValidationError(issues ...string) *ValidationError {
	return &ValidationError{Issues: issues}
}

// StructureError reports backend files that lack required structure.
// Only an explicit normalize repairs it.
type StructureError struct {
	Path   string
	Issues []string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, strings.Join(e.Issues, "; "))
}

// Unwrap allows errors.Is(err, ErrStructure).
func (e *StructureError) Unwrap() error { return ErrStructure }

// DependencyError reports a task that cannot reach DONE yet.
type DependencyError struct {
	TaskID  string
	Pending []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("task %s: %s (pending: %s)", e.TaskID, ErrDependenciesIncomplete, strings.Join(e.Pending, ", "))
}

// Unwrap allows errors.Is(err, ErrDependenciesIncomplete).
func (e *DependencyError) Unwrap() error { return ErrDependenciesIncomplete }

// IOError is a fatal storage failure. It is never retried.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// NotFound wraps ErrNotFound with the entity kind and id.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}
