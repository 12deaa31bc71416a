package infections

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/covidjournal/backend/internal/models"
	"github.com/covidjournal/backend/pkg/apperror"
)

// Repository handles infection record persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an infections repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create stores an infection record. Ownership of the referenced places must
// already be validated.
func (r *Repository) Create(ctx context.Context, inf *models.Infection) error {
	const q = `INSERT INTO infections (organization_id, places_ids, start_timestamp, end_timestamp)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, inf.OrganizationID, inf.PlacesIDs,
		inf.StartTimestamp, inf.EndTimestamp).
		Scan(&inf.ID, &inf.CreatedAt, &inf.UpdatedAt)
	return apperror.FromStore(err, "infection")
}

// ListForOrganization returns the organization's infection records, newest first.
func (r *Repository) ListForOrganization(ctx context.Context, organizationID uuid.UUID) ([]models.Infection, error) {
	const q = `SELECT id, organization_id, places_ids, start_timestamp, end_timestamp, created_at, updated_at
		FROM infections WHERE organization_id = $1
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, organizationID)
	if err != nil {
		return nil, apperror.FromStore(err, "infection")
	}
	defer rows.Close()

	var list []models.Infection
	for rows.Next() {
		var inf models.Infection
		if err := rows.Scan(&inf.ID, &inf.OrganizationID, &inf.PlacesIDs,
			&inf.StartTimestamp, &inf.EndTimestamp, &inf.CreatedAt, &inf.UpdatedAt); err != nil {
			return nil, apperror.FromStore(err, "infection")
		}
		list = append(list, inf)
	}
	return list, apperror.FromStore(rows.Err(), "infection")
}
