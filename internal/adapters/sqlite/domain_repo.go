package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/khal/internal/models"
)

// DomainRepository persists domains.
type DomainRepository struct {
	db querier
}

// NewDomainRepository creates a new SQLite domain repository.
func NewDomainRepository(db querier) *DomainRepository {
	return &DomainRepository{db: db}
}

const domainSelectCols = "id, name, description, created_at, updated_at"

func scanDomain(s scanner) (*models.Domain, error) {
	var (
		d    models.Domain
		desc sql.NullString
	)
	if err := s.Scan(&d.ID, &d.Name, &desc, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Description = desc.String
	return &d, nil
}

// GetByID retrieves a domain by its ID.
func (r *DomainRepository) GetByID(ctx context.Context, id string) (*models.Domain, error) {
	d, err := scanDomain(r.db.QueryRowContext(ctx, "SELECT "+domainSelectCols+" FROM domains WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound("domain", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get domain: %w", err)
	}
	return d, nil
}

// List returns every domain ordered by name.
func (r *DomainRepository) List(ctx context.Context) ([]models.Domain, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+domainSelectCols+" FROM domains ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	defer rows.Close()

	var out []models.Domain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Upsert inserts or updates a domain.
func (r *DomainRepository) Upsert(ctx context.Context, d *models.Domain, now time.Time) error {
	created, updated := stamp(d.CreatedAt, now, now)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO domains (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, description = excluded.description, updated_at = excluded.updated_at`,
		d.ID, d.Name, nullString(d.Description), created, updated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert domain: %w", err)
	}
	return nil
}
