package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/khal/internal/models"
)

// TaskRepository persists tasks and their dependency sets.
type TaskRepository struct {
	db querier
}

// NewTaskRepository creates a new SQLite task repository.
func NewTaskRepository(db querier) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskSelectCols = "id, source_type, source_id, parent_task_id, title, notes, horizon, due_date, status, effort_estimate, created_at, updated_at"

// scanTask scans a task row. Dependencies are loaded separately.
func scanTask(s scanner) (*models.Task, error) {
	var (
		t                     models.Task
		sourceType, horizon   string
		status                string
		parent, notes, dueDat sql.NullString
		effort                sql.NullFloat64
	)
	err := s.Scan(
		&t.ID, &sourceType, &t.SourceID, &parent, &t.Title, &notes,
		&horizon, &dueDat, &status, &effort,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.SourceType = models.SourceType(sourceType)
	t.Horizon = models.Horizon(horizon)
	t.Status = models.Status(status)
	t.ParentTaskID = parent.String
	t.Notes = notes.String
	t.DueDate = dueDat.String
	t.EffortEstimate = floatPtr(effort)
	t.DependencyIDs = []string{}
	return &t, nil
}

// GetByID retrieves a task with its dependencies.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx, "SELECT "+taskSelectCols+" FROM tasks WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound("task", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	deps, err := r.dependencies(ctx, "WHERE task_id = ?", id)
	if err != nil {
		return nil, err
	}
	if ids, ok := deps[id]; ok {
		t.DependencyIDs = ids
	}
	return t, nil
}

// List returns every task, newest first, with dependencies attached.
func (r *TaskRepository) List(ctx context.Context) ([]models.Task, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+taskSelectCols+" FROM tasks ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	var out []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	deps, err := r.dependencies(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range out {
		if ids, ok := deps[out[i].ID]; ok {
			out[i].DependencyIDs = ids
		}
	}
	return out, nil
}

// Upsert writes the task row and replaces its dependency set.
func (r *TaskRepository) Upsert(ctx context.Context, t *models.Task, now time.Time) error {
	created, updated := stamp(t.CreatedAt, now, now)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (id, source_type, source_id, parent_task_id, title, notes, horizon, due_date, status, effort_estimate, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_type = excluded.source_type,
			source_id = excluded.source_id,
			parent_task_id = excluded.parent_task_id,
			title = excluded.title,
			notes = excluded.notes,
			horizon = excluded.horizon,
			due_date = excluded.due_date,
			status = excluded.status,
			effort_estimate = excluded.effort_estimate,
			updated_at = excluded.updated_at`,
		t.ID, string(t.SourceType), t.SourceID, nullString(t.ParentTaskID), t.Title, nullString(t.Notes),
		string(t.Horizon), nullString(t.DueDate), string(t.Status), nullFloat(t.EffortEstimate),
		created, updated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert task: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, "DELETE FROM task_dependencies WHERE task_id = ?", t.ID); err != nil {
		return fmt.Errorf("failed to clear task dependencies: %w", err)
	}
	for i, depID := range t.DependencyIDs {
		_, err := r.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO task_dependencies (task_id, dependency_task_id, sort_order) VALUES (?, ?, ?)",
			t.ID, depID, i,
		)
		if err != nil {
			return fmt.Errorf("failed to add task dependency: %w", err)
		}
	}
	return nil
}

// dependencies loads dependency ids grouped by task, in sort order.
func (r *TaskRepository) dependencies(ctx context.Context, where string, args ...any) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT task_id, dependency_task_id FROM task_dependencies "+where+" ORDER BY task_id, sort_order", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load task dependencies: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var taskID, depID string
		if err := rows.Scan(&taskID, &depID); err != nil {
			return nil, fmt.Errorf("failed to scan task dependency: %w", err)
		}
		out[taskID] = append(out[taskID], depID)
	}
	return out, rows.Err()
}
