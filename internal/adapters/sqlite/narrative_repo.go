package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/example/khal/internal/models"
)

// NarrativeRepository stores the war room narrative as ordered blocks.
type NarrativeRepository struct {
	db querier
}

// NewNarrativeRepository creates a new SQLite narrative repository.
func NewNarrativeRepository(db querier) *NarrativeRepository {
	return &NarrativeRepository{db: db}
}

// Get reads the narrative meta and blocks.
func (r *NarrativeRepository) Get(ctx context.Context) (models.Narrative, error) {
	out := models.Narrative{Meta: map[string]string{}, Blocks: []models.NarrativeBlock{}}

	rows, err := r.db.QueryContext(ctx, "SELECT key, value FROM narrative_meta ORDER BY key")
	if err != nil {
		return out, fmt.Errorf("failed to load narrative meta: %w", err)
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return out, fmt.Errorf("failed to scan narrative meta: %w", err)
		}
		out.Meta[k] = v
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return out, err
	}

	rows, err = r.db.QueryContext(ctx, "SELECT heading, kv_json, bullets_json FROM narrative_blocks ORDER BY sort_order")
	if err != nil {
		return out, fmt.Errorf("failed to load narrative blocks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			heading         sql.NullString
			kvJSON, bullets string
		)
		if err := rows.Scan(&heading, &kvJSON, &bullets); err != nil {
			return out, fmt.Errorf("failed to scan narrative block: %w", err)
		}
		block := models.NarrativeBlock{Heading: heading.String, KV: map[string]string{}, Bullets: []string{}}
		if err := json.Unmarshal([]byte(kvJSON), &block.KV); err != nil {
			return out, fmt.Errorf("failed to decode narrative kv: %w", err)
		}
		if err := json.Unmarshal([]byte(bullets), &block.Bullets); err != nil {
			return out, fmt.Errorf("failed to decode narrative bullets: %w", err)
		}
		out.Blocks = append(out.Blocks, block)
	}
	return out, rows.Err()
}

// Replace overwrites the stored narrative.
func (r *NarrativeRepository) Replace(ctx context.Context, n models.Narrative) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM narrative_meta"); err != nil {
		return fmt.Errorf("failed to clear narrative meta: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM narrative_blocks"); err != nil {
		return fmt.Errorf("failed to clear narrative blocks: %w", err)
	}

	for k, v := range n.Meta {
		if _, err := r.db.ExecContext(ctx, "INSERT INTO narrative_meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("failed to write narrative meta: %w", err)
		}
	}
	for i, b := range n.Blocks {
		kv := b.KV
		if kv == nil {
			kv = map[string]string{}
		}
		bullets := b.Bullets
		if bullets == nil {
			bullets = []string{}
		}
		kvJSON, err := json.Marshal(kv)
		if err != nil {
			return fmt.Errorf("failed to encode narrative kv: %w", err)
		}
		bulletsJSON, err := json.Marshal(bullets)
		if err != nil {
			return fmt.Errorf("failed to encode narrative bullets: %w", err)
		}
		if _, err := r.db.ExecContext(ctx,
			"INSERT INTO narrative_blocks (sort_order, heading, kv_json, bullets_json) VALUES (?, ?, ?, ?)",
			i, nullString(b.Heading), string(kvJSON), string(bulletsJSON),
		); err != nil {
			return fmt.Errorf("failed to write narrative block: %w", err)
		}
	}
	return nil
}
