package checkins

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/covidjournal/backend/internal/models"
	"github.com/covidjournal/backend/pkg/response"
)

type checkinStore interface {
	Create(ctx context.Context, ci *models.CheckIn) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]CheckInWithPlace, error)
}

type placeGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Place, error)
}

// CreateRequest is the body for POST /checkins. Duration is the requested
// visit length in minutes; the place's maximum caps it. Number is the head
// count the check-in represents.
type CreateRequest struct {
	PlaceID   string  `json:"place_id" binding:"required,uuid"`
	SessionID string  `json:"session_id" binding:"required,uuid"`
	UserID    *string `json:"user_id"`
	Duration  int64   `json:"duration" binding:"required,min=1"`
	Number    *int64  `json:"number"`
}

// Handler handles check-in HTTP endpoints.
type Handler struct {
	store  checkinStore
	places placeGetter
	logger *zap.Logger
}

// NewHandler creates a check-in handler.
func NewHandler(store checkinStore, places placeGetter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, places: places, logger: logger}
}

// Create handles POST /checkins (public; the visitor device supplies its
// session id). A disabled place rejects check-ins with a plain not-found.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	placeID, _ := uuid.Parse(req.PlaceID)
	sessionID, _ := uuid.Parse(req.SessionID)

	number := int64(1)
	if req.Number != nil {
		number = *req.Number
	}
	if number < 1 {
		response.BadRequest(c, "number must be at least 1")
		return
	}

	place, err := h.places.Get(c.Request.Context(), placeID)
	if err != nil {
		response.Error(c, err)
		return
	}

	start := time.Now().UTC()
	ci := &models.CheckIn{
		PlaceID:        place.ID,
		SessionID:      sessionID,
		StartTimestamp: start,
		EndTimestamp:   models.VisitEnd(start, req.Duration, place.MaximumDuration),
		Duration:       req.Duration,
		Number:         number,
	}
	if req.UserID != nil {
		userID, err := uuid.Parse(*req.UserID)
		if err != nil {
			response.BadRequest(c, "invalid user_id")
			return
		}
		ci.UserID = &userID
	}

	if err := h.store.Create(c.Request.Context(), ci); err != nil {
		h.logger.Error("create checkin failed", zap.Error(err), zap.String("place_id", place.ID.String()))
		response.Error(c, err)
		return
	}
	response.Created(c, ci)
}

// ListBySession handles GET /checkins?session_id= (public visit history).
func (h *Handler) ListBySession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Query("session_id"))
	if err != nil {
		response.BadRequest(c, "invalid session_id")
		return
	}
	list, err := h.store.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}
