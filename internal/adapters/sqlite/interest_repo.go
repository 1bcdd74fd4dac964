package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/khal/internal/models"
)

// InterestRepository persists interests.
type InterestRepository struct {
	db querier
}

// NewInterestRepository creates a new SQLite interest repository.
func NewInterestRepository(db querier) *InterestRepository {
	return &InterestRepository{db: db}
}

const interestSelectCols = "id, domain_id, title, description, stakes, risk, convexity, asymmetry, upside, downside, status, notes, created_at, updated_at"

func scanInterest(s scanner) (*models.Interest, error) {
	var (
		in                                    models.Interest
		desc, asymmetry, upside, downside, nt sql.NullString
		status                                string
	)
	err := s.Scan(
		&in.ID, &in.DomainID, &in.Title, &desc,
		&in.Stakes, &in.Risk, &in.Convexity,
		&asymmetry, &upside, &downside, &status, &nt,
		&in.CreatedAt, &in.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	in.Description = desc.String
	in.Asymmetry = asymmetry.String
	in.Upside = upside.String
	in.Downside = downside.String
	in.Notes = nt.String
	in.Status = models.Status(status)
	return &in, nil
}

// GetByID retrieves an interest by its ID.
func (r *InterestRepository) GetByID(ctx context.Context, id string) (*models.Interest, error) {
	in, err := scanInterest(r.db.QueryRowContext(ctx, "SELECT "+interestSelectCols+" FROM interests WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound("interest", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get interest: %w", err)
	}
	return in, nil
}

// List returns every interest, newest first.
func (r *InterestRepository) List(ctx context.Context) ([]models.Interest, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+interestSelectCols+" FROM interests ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list interests: %w", err)
	}
	defer rows.Close()

	var out []models.Interest
	for rows.Next() {
		in, err := scanInterest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interest: %w", err)
		}
		out = append(out, *in)
	}
	return out, rows.Err()
}

// Upsert inserts or updates an interest.
func (r *InterestRepository) Upsert(ctx context.Context, in *models.Interest, now time.Time) error {
	created, updated := stamp(in.CreatedAt, now, now)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO interests (id, domain_id, title, description, stakes, risk, convexity, asymmetry, upside, downside, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			domain_id = excluded.domain_id,
			title = excluded.title,
			description = excluded.description,
			stakes = excluded.stakes,
			risk = excluded.risk,
			convexity = excluded.convexity,
			asymmetry = excluded.asymmetry,
			upside = excluded.upside,
			downside = excluded.downside,
			status = excluded.status,
			notes = excluded.notes,
			updated_at = excluded.updated_at`,
		in.ID, in.DomainID, in.Title, nullString(in.Description),
		in.Stakes, in.Risk, in.Convexity,
		nullString(in.Asymmetry), nullString(in.Upside), nullString(in.Downside),
		string(in.Status), nullString(in.Notes),
		created, updated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert interest: %w", err)
	}
	return nil
}
