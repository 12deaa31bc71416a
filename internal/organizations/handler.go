package organizations

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/covidjournal/backend/internal/auth"
	"github.com/covidjournal/backend/internal/middleware"
	"github.com/covidjournal/backend/internal/models"
	"github.com/covidjournal/backend/pkg/response"
)

type organizationStore interface {
	Create(ctx context.Context, org *models.Organization) error
	Get(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	Rename(ctx context.Context, id uuid.UUID, name string) error
}

// RegisterRequest is the body for POST /organizations.
type RegisterRequest struct {
	Name string `json:"name" binding:"required"`
}

// RenameRequest is the body for PATCH /organizations.
type RenameRequest struct {
	Name string `json:"name" binding:"required"`
}

// Handler handles organization HTTP endpoints.
type Handler struct {
	store  organizationStore
	jwt    *auth.JWTService
	logger *zap.Logger
}

// NewHandler creates an organizations handler.
func NewHandler(store organizationStore, jwt *auth.JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, jwt: jwt, logger: logger}
}

// Register handles POST /organizations: creates the organization and returns
// its bearer token. The token is the caller identity for all owner endpoints.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	org := &models.Organization{Name: req.Name}
	if err := h.store.Create(c.Request.Context(), org); err != nil {
		h.logger.Error("create organization failed", zap.Error(err))
		response.Error(c, err)
		return
	}
	token, err := h.jwt.Generate(org.ID, org.Name)
	if err != nil {
		h.logger.Error("generate token failed", zap.Error(err), zap.String("organization_id", org.ID.String()))
		response.Internal(c, "failed to issue token")
		return
	}
	response.Created(c, gin.H{"organization": org, "token": token})
}

// Get handles GET /organizations: the authenticated organization's profile.
func (h *Handler) Get(c *gin.Context) {
	org, err := h.store.Get(c.Request.Context(), middleware.OrganizationID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, org)
}

// Rename handles PATCH /organizations.
func (h *Handler) Rename(c *gin.Context) {
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.store.Rename(c.Request.Context(), middleware.OrganizationID(c), req.Name); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
