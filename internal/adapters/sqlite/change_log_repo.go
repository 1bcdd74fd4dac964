package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/khal/internal/models"
)

// ChangeLogRepository appends to and reads the write history.
type ChangeLogRepository struct {
	db querier
}

// NewChangeLogRepository creates a new SQLite change log repository.
func NewChangeLogRepository(db querier) *ChangeLogRepository {
	return &ChangeLogRepository{db: db}
}

// Append persists a new history entry.
func (r *ChangeLogRepository) Append(ctx context.Context, entry models.ChangeEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO change_log (id, actor, entity_type, entity_id, action, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, nullString(entry.Actor), entry.EntityType, entry.EntityID, entry.Action, entry.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append change log: %w", err)
	}
	return nil
}

// ListRecent returns at most limit entries, newest first. A limit of zero
// or less returns everything.
func (r *ChangeLogRepository) ListRecent(ctx context.Context, limit int) ([]models.ChangeEntry, error) {
	query := "SELECT id, actor, entity_type, entity_id, action, created_at FROM change_log ORDER BY created_at DESC, id"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list change log: %w", err)
	}
	defer rows.Close()

	var out []models.ChangeEntry
	for rows.Next() {
		var (
			e     models.ChangeEntry
			actor sql.NullString
		)
		if err := rows.Scan(&e.ID, &actor, &e.EntityType, &e.EntityID, &e.Action, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan change log: %w", err)
		}
		e.Actor = actor.String
		out = append(out, e)
	}
	return out, rows.Err()
}
