package places

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/covidjournal/backend/internal/middleware"
	"github.com/covidjournal/backend/internal/models"
	"github.com/covidjournal/backend/pkg/apperror"
	"github.com/covidjournal/backend/pkg/response"
)

// placeStore is the persistence surface the handler needs; satisfied by *Repository.
type placeStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Place, error)
	GetAny(ctx context.Context, id uuid.UUID) (*models.Place, error)
	GetWithOrganization(ctx context.Context, id uuid.UUID) (*models.PlaceWithOrganization, error)
	ListForOrganization(ctx context.Context, organizationID uuid.UUID) ([]models.Place, error)
	Search(ctx context.Context, center models.Coordinates, radiusMeters int64, page models.PageQuery) ([]models.PlaceSearchResult, models.Pagination, error)
	Insert(ctx context.Context, organizationID uuid.UUID, fields models.PlaceFields) (uuid.UUID, error)
	Update(ctx context.Context, id, organizationID uuid.UUID, fields models.PlaceFields) error
	SetDisabled(ctx context.Context, id, organizationID uuid.UUID, disabled bool) error
	Occupancy(ctx context.Context, placeID uuid.UUID, at time.Time) (int64, error)
	RefreshAllGauges(ctx context.Context, now time.Time) ([]GaugeSnapshot, error)
}

// PlaceRequest is the body for POST /places and PATCH /places/:id. An update
// replaces all fields; omitted optionals are cleared.
type PlaceRequest struct {
	Name            string   `json:"name" binding:"required"`
	Description     *string  `json:"description"`
	Address         *string  `json:"address"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	AverageDuration int64    `json:"average_duration" binding:"required,min=1"`
	MaximumDuration int64    `json:"maximum_duration" binding:"required,min=1"`
	MaximumGauge    *int64   `json:"maximum_gauge"`
}

func (r PlaceRequest) fields() (models.PlaceFields, error) {
	f := models.PlaceFields{
		Name:            r.Name,
		Description:     r.Description,
		Address:         r.Address,
		AverageDuration: r.AverageDuration,
		MaximumDuration: r.MaximumDuration,
		MaximumGauge:    r.MaximumGauge,
	}
	if (r.Latitude == nil) != (r.Longitude == nil) {
		return f, apperror.Invalidf("latitude and longitude must be supplied together")
	}
	if r.Latitude != nil {
		if err := validateCoordinates(*r.Latitude, *r.Longitude); err != nil {
			return f, err
		}
		f.Location = &models.Coordinates{Latitude: *r.Latitude, Longitude: *r.Longitude}
	}
	return f, nil
}

func validateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return apperror.Invalidf("malformed coordinate %f,%f", lat, lon)
	}
	return nil
}

// Handler handles place HTTP endpoints.
type Handler struct {
	store  placeStore
	policy LevelPolicy
	logger *zap.Logger
}

// NewHandler creates a place handler.
func NewHandler(store placeStore, policy LevelPolicy, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, policy: policy, logger: logger}
}

// GetByID handles GET /places/:id (public). Disabled places are invisible here.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid place id")
		return
	}
	pwo, err := h.store.GetWithOrganization(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, pwo)
}

// List handles GET /places: the authenticated organization's places, newest first.
func (h *Handler) List(c *gin.Context) {
	orgID := middleware.OrganizationID(c)
	list, err := h.store.ListForOrganization(c.Request.Context(), orgID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Search handles GET /places/search?latitude=&longitude=&radius=&page=&page_size=.
func (h *Handler) Search(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("latitude"), 64)
	if err != nil {
		response.BadRequest(c, "invalid latitude")
		return
	}
	lon, err := strconv.ParseFloat(c.Query("longitude"), 64)
	if err != nil {
		response.BadRequest(c, "invalid longitude")
		return
	}
	if err := validateCoordinates(lat, lon); err != nil {
		response.Error(c, err)
		return
	}
	radius, err := strconv.ParseInt(c.Query("radius"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid radius")
		return
	}
	page := models.PageQuery{Page: 1, PageSize: 20}
	if v := c.Query("page"); v != "" {
		if page.Page, err = strconv.Atoi(v); err != nil {
			response.BadRequest(c, "invalid page")
			return
		}
	}
	if v := c.Query("page_size"); v != "" {
		if page.PageSize, err = strconv.Atoi(v); err != nil {
			response.BadRequest(c, "invalid page_size")
			return
		}
	}

	results, pagination, err := h.store.Search(c.Request.Context(),
		models.Coordinates{Latitude: lat, Longitude: lon}, radius, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"places": results, "pagination": pagination})
}

// Create handles POST /places.
func (h *Handler) Create(c *gin.Context) {
	var req PlaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	fields, err := req.fields()
	if err != nil {
		response.Error(c, err)
		return
	}
	orgID := middleware.OrganizationID(c)
	id, err := h.store.Insert(c.Request.Context(), orgID, fields)
	if err != nil {
		h.logger.Error("create place failed", zap.Error(err))
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"id": id})
}

// Update handles PATCH /places/:id. Ownership and disabled-state are enforced
// by the store in the same statement as the write.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid place id")
		return
	}
	var req PlaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	fields, err := req.fields()
	if err != nil {
		response.Error(c, err)
		return
	}
	orgID := middleware.OrganizationID(c)
	if err := h.store.Update(c.Request.Context(), id, orgID, fields); err != nil {
		if errorIsInvariant(err) {
			h.logger.Error("place update invariant violation", zap.Error(err), zap.String("place_id", id.String()))
		}
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Disable handles DELETE /places/:id (soft-disable).
func (h *Handler) Disable(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid place id")
		return
	}
	orgID := middleware.OrganizationID(c)
	if err := h.store.SetDisabled(c.Request.Context(), id, orgID, true); err != nil {
		if errorIsInvariant(err) {
			h.logger.Error("place disable invariant violation", zap.Error(err), zap.String("place_id", id.String()))
		}
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Occupancy handles GET /places/:id/occupancy?at=RFC3339. Owners can audit a
// disabled place here; other organizations get a plain not-found.
func (h *Handler) Occupancy(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid place id")
		return
	}
	at := time.Now().UTC()
	if v := c.Query("at"); v != "" {
		if at, err = time.Parse(time.RFC3339, v); err != nil {
			response.BadRequest(c, "invalid at timestamp")
			return
		}
	}
	orgID := middleware.OrganizationID(c)
	place, err := h.store.GetAny(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if place.OrganizationID != orgID {
		response.Error(c, apperror.NotFoundf("place"))
		return
	}
	occupancy, err := h.store.Occupancy(c.Request.Context(), id, at)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{
		"place_id":  id,
		"at":        at,
		"occupancy": occupancy,
		"level":     h.policy.Level(occupancy, place.MaximumGauge),
		"percent":   GaugePercent(occupancy, place.MaximumGauge),
	})
}

// RefreshGauges handles POST /gauges/refresh: an on-demand full recompute.
func (h *Handler) RefreshGauges(c *gin.Context) {
	now := time.Now().UTC()
	snapshots, err := h.store.RefreshAllGauges(c.Request.Context(), now)
	if err != nil {
		h.logger.Error("gauge refresh failed", zap.Error(err))
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"rows_updated": len(snapshots), "refreshed_at": now})
}

func errorIsInvariant(err error) bool {
	return errors.Is(err, apperror.ErrInvariant)
}
