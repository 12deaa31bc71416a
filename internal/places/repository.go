package places

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/covidjournal/backend/internal/models"
	"github.com/covidjournal/backend/pkg/apperror"
)

// placeColumns is the scan order shared by every place read.
const placeColumns = `p.id, p.organization_id, p.name, p.description, p.address,
	ST_Y(p.location::geometry), ST_X(p.location::geometry),
	p.average_duration, p.maximum_duration, p.maximum_gauge,
	p.current_gauge, p.current_gauge_level, p.current_gauge_percent,
	p.disabled, p.created_at, p.updated_at`

// GaugeSnapshot is one place's gauge state as persisted by a refresh.
type GaugeSnapshot struct {
	PlaceID uuid.UUID         `json:"place_id"`
	Gauge   int64             `json:"current_gauge"`
	Level   models.GaugeLevel `json:"current_gauge_level"`
	Percent *int64            `json:"current_gauge_percent,omitempty"`
}

// Repository handles place persistence, the occupancy aggregation and the
// geospatial search.
type Repository struct {
	pool   *pgxpool.Pool
	policy LevelPolicy
}

// NewRepository creates a place repository.
func NewRepository(pool *pgxpool.Pool, policy LevelPolicy) *Repository {
	return &Repository{pool: pool, policy: policy}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlace(row rowScanner) (*models.Place, error) {
	var (
		p        models.Place
		lat, lon *float64
		level    string
	)
	err := row.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Description, &p.Address,
		&lat, &lon,
		&p.AverageDuration, &p.MaximumDuration, &p.MaximumGauge,
		&p.CurrentGauge, &level, &p.CurrentGaugePercent,
		&p.Disabled, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.CurrentGaugeLevel = models.GaugeLevel(level)
	if lat != nil && lon != nil {
		p.Location = &models.Coordinates{Latitude: *lat, Longitude: *lon}
	}
	return &p, nil
}

// locationParams splits an optional coordinate into nullable lon/lat params.
func locationParams(loc *models.Coordinates) (lon, lat *float64) {
	if loc == nil {
		return nil, nil
	}
	return &loc.Longitude, &loc.Latitude
}

// Get returns an enabled place by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Place, error) {
	q := `SELECT ` + placeColumns + ` FROM places p WHERE p.id = $1 AND p.disabled = FALSE`
	p, err := scanPlace(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, apperror.FromStore(err, "place")
	}
	return p, nil
}

// GetAny returns a place by ID regardless of its disabled flag. Reserved for
// owner and operational lookups; normal read paths go through Get.
func (r *Repository) GetAny(ctx context.Context, id uuid.UUID) (*models.Place, error) {
	q := `SELECT ` + placeColumns + ` FROM places p WHERE p.id = $1`
	p, err := scanPlace(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, apperror.FromStore(err, "place")
	}
	return p, nil
}

// GetWithOrganization returns an enabled place together with its owner's
// public fields.
func (r *Repository) GetWithOrganization(ctx context.Context, id uuid.UUID) (*models.PlaceWithOrganization, error) {
	q := `SELECT ` + placeColumns + `, o.id, o.name
		FROM places p
		INNER JOIN organizations o ON o.id = p.organization_id
		WHERE p.id = $1 AND p.disabled = FALSE`
	row := r.pool.QueryRow(ctx, q, id)

	var (
		p        models.Place
		lat, lon *float64
		level    string
		org      models.OrganizationSummary
	)
	err := row.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Description, &p.Address,
		&lat, &lon,
		&p.AverageDuration, &p.MaximumDuration, &p.MaximumGauge,
		&p.CurrentGauge, &level, &p.CurrentGaugePercent,
		&p.Disabled, &p.CreatedAt, &p.UpdatedAt,
		&org.ID, &org.Name)
	if err != nil {
		return nil, apperror.FromStore(err, "place")
	}
	p.CurrentGaugeLevel = models.GaugeLevel(level)
	if lat != nil && lon != nil {
		p.Location = &models.Coordinates{Latitude: *lat, Longitude: *lon}
	}
	return &models.PlaceWithOrganization{Place: p, Organization: org}, nil
}

// ListForOrganization returns the organization's enabled places, newest first.
func (r *Repository) ListForOrganization(ctx context.Context, organizationID uuid.UUID) ([]models.Place, error) {
	q := `SELECT ` + placeColumns + ` FROM places p
		WHERE p.organization_id = $1 AND p.disabled = FALSE
		ORDER BY p.created_at DESC`
	rows, err := r.pool.Query(ctx, q, organizationID)
	if err != nil {
		return nil, apperror.FromStore(err, "place")
	}
	defer rows.Close()

	var list []models.Place
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, apperror.FromStore(err, "place")
		}
		list = append(list, *p)
	}
	return list, apperror.FromStore(rows.Err(), "place")
}

// Search returns enabled places within radiusMeters of center, nearest first,
// each with its owning organization and the geodesic distance in meters.
// Ties are broken on place id so pages stay deterministic. One extra row is
// fetched to detect a further page without a count query.
func (r *Repository) Search(ctx context.Context, center models.Coordinates, radiusMeters int64, page models.PageQuery) ([]models.PlaceSearchResult, models.Pagination, error) {
	if radiusMeters <= 0 {
		return nil, models.Pagination{}, apperror.Invalidf("radius must be positive, got %d", radiusMeters)
	}
	if page.Page <= 0 || page.PageSize <= 0 {
		return nil, models.Pagination{}, apperror.Invalidf("page and page size must be positive, got %d/%d", page.Page, page.PageSize)
	}

	q := `WITH c AS (
			SELECT ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography AS center
		)
		SELECT ` + placeColumns + `, o.id, o.name,
			ST_Distance(p.location, c.center, FALSE) AS meter_distance
		FROM places p
		JOIN c ON TRUE
		INNER JOIN organizations o ON o.id = p.organization_id
		WHERE p.disabled = FALSE
			AND p.location IS NOT NULL
			AND ST_DWithin(p.location, c.center, $3, FALSE)
		ORDER BY meter_distance ASC, p.id ASC
		LIMIT $4 OFFSET $5`

	rows, err := r.pool.Query(ctx, q,
		center.Longitude, center.Latitude, radiusMeters,
		page.PageSize+1, page.Offset())
	if err != nil {
		return nil, models.Pagination{}, apperror.FromStore(err, "place")
	}
	defer rows.Close()

	var results []models.PlaceSearchResult
	for rows.Next() {
		var (
			p        models.Place
			lat, lon *float64
			level    string
			res      models.PlaceSearchResult
		)
		err := rows.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Description, &p.Address,
			&lat, &lon,
			&p.AverageDuration, &p.MaximumDuration, &p.MaximumGauge,
			&p.CurrentGauge, &level, &p.CurrentGaugePercent,
			&p.Disabled, &p.CreatedAt, &p.UpdatedAt,
			&res.Organization.ID, &res.Organization.Name, &res.MeterDistance)
		if err != nil {
			return nil, models.Pagination{}, apperror.FromStore(err, "place")
		}
		p.CurrentGaugeLevel = models.GaugeLevel(level)
		if lat != nil && lon != nil {
			p.Location = &models.Coordinates{Latitude: *lat, Longitude: *lon}
		}
		res.Place = p
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, models.Pagination{}, apperror.FromStore(err, "place")
	}

	results, pagination := models.Paginate(results, page)
	return results, pagination, nil
}

// Insert creates a place for the organization and returns its id.
func (r *Repository) Insert(ctx context.Context, organizationID uuid.UUID, fields models.PlaceFields) (uuid.UUID, error) {
	const q = `INSERT INTO places (organization_id, name, description, address, location,
			average_duration, maximum_duration, maximum_gauge)
		VALUES ($1, $2, $3, $4,
			CASE WHEN $5::float8 IS NULL OR $6::float8 IS NULL THEN NULL
				ELSE ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography END,
			$7, $8, $9)
		RETURNING id`
	lon, lat := locationParams(fields.Location)
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, q, organizationID, fields.Name, fields.Description, fields.Address,
		lon, lat, fields.AverageDuration, fields.MaximumDuration, fields.MaximumGauge).Scan(&id)
	if err != nil {
		return uuid.Nil, apperror.FromStore(err, "place")
	}
	return id, nil
}

// Update replaces the caller-supplied fields of an enabled place the
// organization owns. Ownership and the disabled flag are re-checked in the
// same statement so concurrent writers cannot race past each other.
func (r *Repository) Update(ctx context.Context, id, organizationID uuid.UUID, fields models.PlaceFields) error {
	const q = `UPDATE places SET name = $3, description = $4, address = $5,
			location = CASE WHEN $6::float8 IS NULL OR $7::float8 IS NULL THEN NULL
				ELSE ST_SetSRID(ST_MakePoint($6, $7), 4326)::geography END,
			average_duration = $8, maximum_duration = $9, maximum_gauge = $10,
			updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND disabled = FALSE`
	lon, lat := locationParams(fields.Location)
	tag, err := r.pool.Exec(ctx, q, id, organizationID, fields.Name, fields.Description, fields.Address,
		lon, lat, fields.AverageDuration, fields.MaximumDuration, fields.MaximumGauge)
	if err != nil {
		return apperror.FromStore(err, "place")
	}
	return apperror.CheckAffected(tag.RowsAffected(), "place")
}

// SetDisabled soft-disables (or re-enables) a place the organization owns.
// Disabling is terminal in normal flows; the ownership guard matches Update.
func (r *Repository) SetDisabled(ctx context.Context, id, organizationID uuid.UUID, disabled bool) error {
	const q = `UPDATE places SET disabled = $3, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND disabled = FALSE`
	tag, err := r.pool.Exec(ctx, q, id, organizationID, disabled)
	if err != nil {
		return apperror.FromStore(err, "place")
	}
	return apperror.CheckAffected(tag.RowsAffected(), "place")
}

// ValidateOwned succeeds only when every distinct id belongs to the
// organization. The failure is a plain not-found: which id failed is withheld
// so one tenant cannot probe another's place ids.
func (r *Repository) ValidateOwned(ctx context.Context, organizationID uuid.UUID, placeIDs []uuid.UUID) error {
	distinct := make([]uuid.UUID, 0, len(placeIDs))
	seen := make(map[uuid.UUID]struct{}, len(placeIDs))
	for _, id := range placeIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}
	if len(distinct) == 0 {
		return apperror.Invalidf("no place ids supplied")
	}

	const q = `SELECT COUNT(*) FROM places WHERE organization_id = $1 AND id = ANY($2)`
	var count int
	if err := r.pool.QueryRow(ctx, q, organizationID, distinct).Scan(&count); err != nil {
		return apperror.FromStore(err, "place")
	}
	if count != len(distinct) {
		return apperror.NotFoundf("place")
	}
	return nil
}

// Occupancy computes the number of visitors present at the place at the given
// instant: the sum of head counts over check-ins whose [start, end) interval
// contains it. A place with no active check-ins has occupancy zero.
func (r *Repository) Occupancy(ctx context.Context, placeID uuid.UUID, at time.Time) (int64, error) {
	const q = `SELECT COALESCE(SUM(number), 0) FROM checkins
		WHERE place_id = $1 AND start_timestamp <= $2 AND end_timestamp > $2`
	var total int64
	if err := r.pool.QueryRow(ctx, q, placeID, at).Scan(&total); err != nil {
		return 0, apperror.FromStore(err, "checkin")
	}
	return total, nil
}

// RefreshAllGauges recomputes the occupancy of every place as of now in one
// correlated aggregate and persists gauge, level and percent in the same
// statement. The LEFT JOIN keeps places without active check-ins in the
// update so their gauges drop back to zero. Being a single statement, readers
// never observe a half-applied refresh and concurrent refreshes serialize on
// row locks; repeating a refresh with unchanged data is a no-op.
func (r *Repository) RefreshAllGauges(ctx context.Context, now time.Time) ([]GaugeSnapshot, error) {
	const q = `UPDATE places p
		SET current_gauge = src.active,
			current_gauge_percent = CASE
				WHEN p.maximum_gauge IS NULL OR p.maximum_gauge <= 0 THEN NULL
				ELSE LEAST(100, ROUND(100.0 * src.active / p.maximum_gauge))
			END,
			current_gauge_level = (CASE
				WHEN src.active = 0 THEN 'empty'
				WHEN p.maximum_gauge IS NULL OR p.maximum_gauge <= 0 THEN 'unknown'
				WHEN LEAST(100, ROUND(100.0 * src.active / p.maximum_gauge)) <= $2 THEN 'low'
				WHEN LEAST(100, ROUND(100.0 * src.active / p.maximum_gauge)) <= $3 THEN 'medium'
				WHEN LEAST(100, ROUND(100.0 * src.active / p.maximum_gauge)) <= $4 THEN 'high'
				ELSE 'full'
			END)::gauge_level,
			updated_at = $1
		FROM (
			SELECT pl.id AS place_id, COALESCE(SUM(c.number), 0) AS active
			FROM places pl
			LEFT JOIN checkins c
				ON c.place_id = pl.id
				AND c.start_timestamp <= $1 AND c.end_timestamp > $1
			GROUP BY pl.id
		) AS src
		WHERE src.place_id = p.id
		RETURNING p.id, p.current_gauge, p.current_gauge_level, p.current_gauge_percent`

	rows, err := r.pool.Query(ctx, q, now, r.policy.LowMax, r.policy.MediumMax, r.policy.HighMax)
	if err != nil {
		return nil, apperror.FromStore(err, "place")
	}
	defer rows.Close()

	var snapshots []GaugeSnapshot
	for rows.Next() {
		var (
			s     GaugeSnapshot
			level string
		)
		if err := rows.Scan(&s.PlaceID, &s.Gauge, &level, &s.Percent); err != nil {
			return nil, apperror.FromStore(err, "place")
		}
		s.Level = models.GaugeLevel(level)
		snapshots = append(snapshots, s)
	}
	return snapshots, apperror.FromStore(rows.Err(), "place")
}
