package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/khal/internal/models"
)

// AffairRepository persists affairs.
type AffairRepository struct {
	db querier
}

// NewAffairRepository creates a new SQLite affair repository.
func NewAffairRepository(db querier) *AffairRepository {
	return &AffairRepository{db: db}
}

const affairSelectCols = "id, domain_id, title, description, timeline, stakes, risk, fragility_score, status, completion_pct, created_at, updated_at"

// scanAffair scans an affair row.
func scanAffair(s scanner) (*models.Affair, error) {
	var (
		a              models.Affair
		desc, timeline sql.NullString
		status         string
	)
	err := s.Scan(
		&a.ID, &a.DomainID, &a.Title, &desc, &timeline,
		&a.Stakes, &a.Risk, &a.FragilityScore, &status, &a.CompletionPct,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Description = desc.String
	a.Timeline = timeline.String
	a.Status = models.Status(status)
	return &a, nil
}

// GetByID retrieves an affair by its ID.
func (r *AffairRepository) GetByID(ctx context.Context, id string) (*models.Affair, error) {
	a, err := scanAffair(r.db.QueryRowContext(ctx, "SELECT "+affairSelectCols+" FROM affairs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound("affair", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get affair: %w", err)
	}
	return a, nil
}

// List returns every affair, newest first.
func (r *AffairRepository) List(ctx context.Context) ([]models.Affair, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+affairSelectCols+" FROM affairs ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list affairs: %w", err)
	}
	defer rows.Close()

	var out []models.Affair
	for rows.Next() {
		a, err := scanAffair(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan affair: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Upsert inserts a new affair or updates every mutable column of an
// existing one.
func (r *AffairRepository) Upsert(ctx context.Context, a *models.Affair, now time.Time) error {
	created, updated := stamp(a.CreatedAt, now, now)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO affairs (id, domain_id, title, description, timeline, stakes, risk, fragility_score, status, completion_pct, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			domain_id = excluded.domain_id,
			title = excluded.title,
			description = excluded.description,
			timeline = excluded.timeline,
			stakes = excluded.stakes,
			risk = excluded.risk,
			fragility_score = excluded.fragility_score,
			status = excluded.status,
			completion_pct = excluded.completion_pct,
			updated_at = excluded.updated_at`,
		a.ID, a.DomainID, a.Title, nullString(a.Description), nullString(a.Timeline),
		a.Stakes, a.Risk, a.FragilityScore, string(a.Status), a.CompletionPct,
		created, updated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert affair: %w", err)
	}
	return nil
}
