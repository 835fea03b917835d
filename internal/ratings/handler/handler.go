package handler

import (
	"net/http"
	"strconv"

	"techo_backend/internal/ratings/service"
	"techo_backend/internal/ratings/transport"
	"techo_backend/platform/httpkit"
	"techo_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest      = "invalid request"
	msgValidationFailed    = "validation failed"
	msgInvalidRatingID     = "invalid rating ID"
	msgInvalidIncidenceID  = "invalid incidence ID"
	msgInvalidTechnicianID = "invalid technician ID"
)

// Handler handles HTTP requests for ratings.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new ratings handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Create rates the technician of an incidence.
// POST /api/v1/incidences/:id/rating
func (h *Handler) Create(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	incidenceID, ok := httpkit.ParseUUIDParam(c, "id", msgInvalidIncidenceID)
	if !ok {
		return
	}
	var req transport.CreateRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Fields(err))
		return
	}
	result, err := h.svc.Create(c.Request.Context(), incidenceID, identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// GetByIncidence returns the rating of an incidence.
// GET /api/v1/incidences/:id/rating
func (h *Handler) GetByIncidence(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	incidenceID, ok := httpkit.ParseUUIDParam(c, "id", msgInvalidIncidenceID)
	if !ok {
		return
	}
	result, err := h.svc.GetByIncidence(c.Request.Context(), incidenceID, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Get returns a rating.
// GET /api/v1/ratings/:id
func (h *Handler) Get(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	ratingID, ok := httpkit.ParseUUIDParam(c, "id", msgInvalidRatingID)
	if !ok {
		return
	}
	result, err := h.svc.Get(c.Request.Context(), ratingID, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Update replaces a rating.
// PUT /api/v1/ratings/:id
func (h *Handler) Update(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	ratingID, ok := httpkit.ParseUUIDParam(c, "id", msgInvalidRatingID)
	if !ok {
		return
	}
	var req transport.UpdateRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Fields(err))
		return
	}
	result, err := h.svc.Update(c.Request.Context(), ratingID, identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Delete removes a rating.
// DELETE /api/v1/ratings/:id
func (h *Handler) Delete(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	ratingID, ok := httpkit.ParseUUIDParam(c, "id", msgInvalidRatingID)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), ratingID, identity.UserID()); httpkit.HandleError(c, err) {
		return
	}
	httpkit.NoContent(c)
}

// Ranking returns the technician ranking.
// GET /api/v1/ratings/ranking?limit=
func (h *Handler) Ranking(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "limit must be an integer", nil)
			return
		}
		limit = n
	}
	result, err := h.svc.Ranking(c.Request.Context(), identity.UserID(), limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Stats returns a technician's rating statistics.
// GET /api/v1/technicians/:id/rating-stats
func (h *Handler) Stats(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	technicianID, ok := httpkit.ParseUUIDParam(c, "id", msgInvalidTechnicianID)
	if !ok {
		return
	}
	result, err := h.svc.StatsFor(c.Request.Context(), technicianID, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
