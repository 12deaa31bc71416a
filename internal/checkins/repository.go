package checkins

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/covidjournal/backend/internal/models"
	"github.com/covidjournal/backend/pkg/apperror"
)

// CheckInWithPlace is one visit-history row with the venue's public name.
type CheckInWithPlace struct {
	CheckIn   models.CheckIn `json:"checkin"`
	PlaceName string         `json:"place_name"`
}

// Repository handles check-in persistence. Check-ins are append-only; the
// only mutation is the infection flag.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a check-in repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a check-in. The interval is computed by the caller from the
// requested duration and the place's maximum.
func (r *Repository) Create(ctx context.Context, ci *models.CheckIn) error {
	const q = `INSERT INTO checkins (place_id, session_id, user_id, start_timestamp, end_timestamp, duration, number)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, ci.PlaceID, ci.SessionID, ci.UserID,
		ci.StartTimestamp, ci.EndTimestamp, ci.Duration, ci.Number).
		Scan(&ci.ID, &ci.CreatedAt, &ci.UpdatedAt)
	return apperror.FromStore(err, "checkin")
}

// ListBySession returns a session's visit history, newest first, with the
// venue name attached.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]CheckInWithPlace, error) {
	const q = `SELECT c.id, c.place_id, c.session_id, c.user_id,
			c.start_timestamp, c.end_timestamp, c.duration, c.number,
			c.confirmed, c.potential_infection, c.created_at, c.updated_at,
			p.name
		FROM checkins c
		INNER JOIN places p ON p.id = c.place_id
		WHERE c.session_id = $1
		ORDER BY c.start_timestamp DESC`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, apperror.FromStore(err, "checkin")
	}
	defer rows.Close()

	var list []CheckInWithPlace
	for rows.Next() {
		var row CheckInWithPlace
		c := &row.CheckIn
		if err := rows.Scan(&c.ID, &c.PlaceID, &c.SessionID, &c.UserID,
			&c.StartTimestamp, &c.EndTimestamp, &c.Duration, &c.Number,
			&c.Confirmed, &c.PotentialInfection, &c.CreatedAt, &c.UpdatedAt,
			&row.PlaceName); err != nil {
			return nil, apperror.FromStore(err, "checkin")
		}
		list = append(list, row)
	}
	return list, apperror.FromStore(rows.Err(), "checkin")
}

// MarkPotentialInfections flags every check-in at the given places whose
// interval overlaps the infection window. Returns the number of flagged rows.
func (r *Repository) MarkPotentialInfections(ctx context.Context, placeIDs []uuid.UUID, start, end time.Time) (int64, error) {
	const q = `UPDATE checkins SET potential_infection = TRUE, updated_at = NOW()
		WHERE place_id = ANY($1)
			AND start_timestamp < $3
			AND end_timestamp > $2`
	tag, err := r.pool.Exec(ctx, q, placeIDs, start, end)
	if err != nil {
		return 0, apperror.FromStore(err, "checkin")
	}
	return tag.RowsAffected(), nil
}
