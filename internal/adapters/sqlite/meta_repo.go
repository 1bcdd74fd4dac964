package sqlite

import (
	"context"
	"fmt"
)

// MetaRepository reads and writes the meta_kv table.
type MetaRepository struct {
	db querier
}

// NewMetaRepository creates a new SQLite metadata repository.
func NewMetaRepository(db querier) *MetaRepository {
	return &MetaRepository{db: db}
}

// All returns every metadata pair.
func (r *MetaRepository) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT key, value FROM meta_kv")
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Set upserts one metadata pair.
func (r *MetaRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO meta_kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write metadata %s: %w", key, err)
	}
	return nil
}
