package handler

import (
	"techo_backend/internal/housing/service"
	"techo_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidUnitID    = "invalid housing unit ID"
	msgInvalidProjectID = "invalid project ID"
)

// Handler handles HTTP requests for projects and housing units.
type Handler struct {
	svc *service.Service
}

// New creates a new housing handler.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// ListProjects lists projects with delivery progress.
// GET /api/v1/projects
func (h *Handler) ListProjects(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	result, err := h.svc.ListProjects(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListUnits lists the units of a project.
// GET /api/v1/projects/:id/units
func (h *Handler) ListUnits(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	projectID, ok := httpkit.ParseUUIDParam(c, "id", msgInvalidProjectID)
	if !ok {
		return
	}
	result, err := h.svc.ListUnits(c.Request.Context(), identity.UserID(), projectID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetUnit returns a single housing unit.
// GET /api/v1/housing-units/:id
func (h *Handler) GetUnit(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	unitID, ok := httpkit.ParseUUIDParam(c, "id", msgInvalidUnitID)
	if !ok {
		return
	}
	result, err := h.svc.GetUnit(c.Request.Context(), identity.UserID(), unitID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Deliver marks a unit as delivered.
// POST /api/v1/housing-units/:id/deliver
func (h *Handler) Deliver(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	unitID, ok := httpkit.ParseUUIDParam(c, "id", msgInvalidUnitID)
	if !ok {
		return
	}
	result, err := h.svc.Deliver(c.Request.Context(), unitID, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
