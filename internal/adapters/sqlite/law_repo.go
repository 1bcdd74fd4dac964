package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/khal/internal/models"
)

// LawRepository persists laws and their craft associations.
type LawRepository struct {
	db querier
}

// NewLawRepository creates a new SQLite law repository.
func NewLawRepository(db querier) *LawRepository {
	return &LawRepository{db: db}
}

const lawSelectCols = "id, name, description, volatility_source, created_at, updated_at"

func scanLaw(s scanner) (*models.Law, error) {
	var (
		l                models.Law
		desc, volatility sql.NullString
	)
	if err := s.Scan(&l.ID, &l.Name, &desc, &volatility, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.Description = desc.String
	l.VolatilitySource = volatility.String
	l.CraftIDs = []string{}
	return &l, nil
}

// GetByID retrieves a law with its craft ids.
func (r *LawRepository) GetByID(ctx context.Context, id string) (*models.Law, error) {
	l, err := scanLaw(r.db.QueryRowContext(ctx, "SELECT "+lawSelectCols+" FROM laws WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound("law", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get law: %w", err)
	}

	crafts, err := r.craftIDs(ctx, "WHERE law_id = ?", id)
	if err != nil {
		return nil, err
	}
	if ids, ok := crafts[id]; ok {
		l.CraftIDs = ids
	}
	return l, nil
}

// List returns every law ordered by name.
func (r *LawRepository) List(ctx context.Context) ([]models.Law, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+lawSelectCols+" FROM laws ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list laws: %w", err)
	}
	var out []models.Law
	for rows.Next() {
		l, err := scanLaw(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan law: %w", err)
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	crafts, err := r.craftIDs(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range out {
		if ids, ok := crafts[out[i].ID]; ok {
			out[i].CraftIDs = ids
		}
	}
	return out, nil
}

// Upsert writes the law and replaces its craft associations.
func (r *LawRepository) Upsert(ctx context.Context, l *models.Law, now time.Time) error {
	created, updated := stamp(l.CreatedAt, now, now)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO laws (id, name, description, volatility_source, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			volatility_source = excluded.volatility_source,
			updated_at = excluded.updated_at`,
		l.ID, l.Name, nullString(l.Description), nullString(l.VolatilitySource), created, updated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert law: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, "DELETE FROM law_crafts WHERE law_id = ?", l.ID); err != nil {
		return fmt.Errorf("failed to clear law crafts: %w", err)
	}
	for i, craftID := range l.CraftIDs {
		if _, err := r.db.ExecContext(ctx,
			"INSERT INTO law_crafts (law_id, craft_id, sort_order) VALUES (?, ?, ?)", l.ID, craftID, i,
		); err != nil {
			return fmt.Errorf("failed to link law to craft: %w", err)
		}
	}
	return nil
}

func (r *LawRepository) craftIDs(ctx context.Context, where string, args ...any) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT law_id, craft_id FROM law_crafts "+where+" ORDER BY law_id, sort_order", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load law crafts: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var lawID, craftID string
		if err := rows.Scan(&lawID, &craftID); err != nil {
			return nil, fmt.Errorf("failed to scan law craft: %w", err)
		}
		out[lawID] = append(out[lawID], craftID)
	}
	return out, rows.Err()
}
