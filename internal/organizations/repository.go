package organizations

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/covidjournal/backend/internal/models"
	"github.com/covidjournal/backend/pkg/apperror"
)

// Repository handles organization persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an organizations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create registers an organization.
func (r *Repository) Create(ctx context.Context, org *models.Organization) error {
	const q = `INSERT INTO organizations (name) VALUES ($1)
		RETURNING id, confirmed, disabled, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, org.Name).
		Scan(&org.ID, &org.Confirmed, &org.Disabled, &org.CreatedAt, &org.UpdatedAt)
	return apperror.FromStore(err, "organization")
}

// Get returns an enabled organization by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	const q = `SELECT id, name, confirmed, disabled, created_at, updated_at
		FROM organizations WHERE id = $1 AND disabled = FALSE`
	var org models.Organization
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&org.ID, &org.Name, &org.Confirmed, &org.Disabled, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, apperror.FromStore(err, "organization")
	}
	return &org, nil
}

// Rename changes an enabled organization's name. The disabled re-check rides
// in the same statement, mirroring the place lifecycle guard.
func (r *Repository) Rename(ctx context.Context, id uuid.UUID, name string) error {
	const q = `UPDATE organizations SET name = $2, updated_at = NOW()
		WHERE id = $1 AND disabled = FALSE`
	tag, err := r.pool.Exec(ctx, q, id, name)
	if err != nil {
		return apperror.FromStore(err, "organization")
	}
	return apperror.CheckAffected(tag.RowsAffected(), "organization")
}
