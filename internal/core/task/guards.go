// Package task contains the pure business logic for task writes.
// Guards are pure functions that evaluate preconditions without side effects.
package task

import (
	"fmt"
	"slices"
	"strings"

	"github.com/example/khal/internal/models"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to a *models.ValidationError if not
// allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return models.NewValidationError(r.Reason)
}

// CompleteTaskContext provides context for the DONE transition guard.
type CompleteTaskContext struct {
	TaskID        string
	DependencyIDs []string
	// Statuses holds the current status of every known task, keyed by id.
	Statuses map[string]models.Status
}

// WriteTaskContext provides context for structural task write guards.
type WriteTaskContext struct {
	TaskID        string
	ParentTaskID  string
	ParentExists  bool
	DependencyIDs []string
}

// PendingDependencies returns the dependency ids that are not DONE, in
// input order. Ids that resolve to no task count as pending.
func PendingDependencies(ctx CompleteTaskContext) []string {
	var pending []string
	for _, id := range ctx.DependencyIDs {
		if status, ok := ctx.Statuses[id]; !ok || status != models.StatusDone {
			pending = append(pending, id)
		}
	}
	return pending
}

// CanTransitionToDone reports whether task may be set to DONE given every
// task known to the store.
func CanTransitionToDone(t models.Task, tasksByID map[string]models.Task) bool {
	statuses := make(map[string]models.Status, len(tasksByID))
	for id, other := range tasksByID {
		statuses[id] = other.Status
	}
	return CanCompleteTask(CompleteTaskContext{
		TaskID:        t.ID,
		DependencyIDs: t.DependencyIDs,
		Statuses:      statuses,
	}).Allowed
}

// CanCompleteTask evaluates whether a task can move to DONE.
// Rules:
// - Every dependency must exist and be DONE
func CanCompleteTask(ctx CompleteTaskContext) GuardResult {
	pending := PendingDependencies(ctx)
	if len(pending) > 0 {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("task %s has incomplete dependencies: %s", ctx.TaskID, strings.Join(pending, ", ")),
		}
	}

	return GuardResult{Allowed: true}
}

// CanWriteTask evaluates structural rules for a task write.
// Rules:
// - A task cannot depend on itself
// - Dependencies must not repeat
// - A parent, when given, must exist and must not be the task itself
func CanWriteTask(ctx WriteTaskContext) GuardResult {
	if slices.Contains(ctx.DependencyIDs, ctx.TaskID) {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("task %s cannot depend on itself", ctx.TaskID),
		}
	}

	seen := make(map[string]bool, len(ctx.DependencyIDs))
	for _, id := range ctx.DependencyIDs {
		if seen[id] {
			return GuardResult{
				Allowed: false,
				Reason:  fmt.Sprintf("dependency %s listed more than once", id),
			}
		}
		seen[id] = true
	}

	if ctx.ParentTaskID != "" {
		if ctx.ParentTaskID == ctx.TaskID {
			return GuardResult{
				Allowed: false,
				Reason:  fmt.Sprintf("task %s cannot be its own parent", ctx.TaskID),
			}
		}
		if !ctx.ParentExists {
			return GuardResult{
				Allowed: false,
				Reason:  fmt.Sprintf("parent task %s not found", ctx.ParentTaskID),
			}
		}
	}

	return GuardResult{Allowed: true}
}
