package infections

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/covidjournal/backend/internal/middleware"
	"github.com/covidjournal/backend/internal/models"
	"github.com/covidjournal/backend/pkg/queue"
	"github.com/covidjournal/backend/pkg/response"
)

type infectionStore interface {
	Create(ctx context.Context, inf *models.Infection) error
	ListForOrganization(ctx context.Context, organizationID uuid.UUID) ([]models.Infection, error)
}

// ownershipValidator gates which places an infection record may reference;
// satisfied by the places repository.
type ownershipValidator interface {
	ValidateOwned(ctx context.Context, organizationID uuid.UUID, placeIDs []uuid.UUID) error
}

type jobEnqueuer interface {
	EnqueueInfectionMarking(ctx context.Context, payload queue.InfectionMarkingPayload) error
}

// CreateRequest is the body for POST /infections.
type CreateRequest struct {
	PlacesIDs      []string `json:"places_ids" binding:"required,min=1,dive,uuid"`
	StartTimestamp string   `json:"start_timestamp" binding:"required"`
	EndTimestamp   string   `json:"end_timestamp" binding:"required"`
}

// Handler handles infection HTTP endpoints.
type Handler struct {
	store     infectionStore
	ownership ownershipValidator
	jobs      jobEnqueuer
	logger    *zap.Logger
}

// NewHandler creates an infections handler.
func NewHandler(store infectionStore, ownership ownershipValidator, jobs jobEnqueuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, ownership: ownership, jobs: jobs, logger: logger}
}

// Create handles POST /infections. Every referenced place must belong to the
// caller; the marking of overlapping check-ins runs in the background worker.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTimestamp)
	if err != nil {
		response.BadRequest(c, "invalid start_timestamp")
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTimestamp)
	if err != nil {
		response.BadRequest(c, "invalid end_timestamp")
		return
	}
	if !end.After(start) {
		response.BadRequest(c, "end_timestamp must be after start_timestamp")
		return
	}

	placeIDs := make([]uuid.UUID, 0, len(req.PlacesIDs))
	for _, s := range req.PlacesIDs {
		id, _ := uuid.Parse(s)
		placeIDs = append(placeIDs, id)
	}

	orgID := middleware.OrganizationID(c)
	if err := h.ownership.ValidateOwned(c.Request.Context(), orgID, placeIDs); err != nil {
		response.Error(c, err)
		return
	}

	inf := &models.Infection{
		OrganizationID: orgID,
		PlacesIDs:      placeIDs,
		StartTimestamp: start,
		EndTimestamp:   end,
	}
	if err := h.store.Create(c.Request.Context(), inf); err != nil {
		h.logger.Error("create infection failed", zap.Error(err), zap.String("organization_id", orgID.String()))
		response.Error(c, err)
		return
	}

	payload := queue.InfectionMarkingPayload{
		InfectionID:    inf.ID,
		PlacesIDs:      inf.PlacesIDs,
		StartTimestamp: inf.StartTimestamp,
		EndTimestamp:   inf.EndTimestamp,
	}
	if err := h.jobs.EnqueueInfectionMarking(c.Request.Context(), payload); err != nil {
		// The record is stored; marking can be replayed, so the request still succeeds.
		h.logger.Error("enqueue infection marking failed", zap.Error(err), zap.String("infection_id", inf.ID.String()))
	}

	response.Created(c, inf)
}

// List handles GET /infections.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.ListForOrganization(c.Request.Context(), middleware.OrganizationID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}
