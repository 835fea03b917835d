package handler

import (
	"net/http"

	"techo_backend/internal/evidence"
	"techo_backend/internal/posventa/service"
	"techo_backend/internal/posventa/transport"
	"techo_backend/platform/httpkit"
	"techo_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidFormID    = "invalid form ID"
	msgInvalidPlanID    = "invalid plan ID"

	fieldFile = "file"
)

// Handler handles HTTP requests for posventa forms and plans.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new posventa handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Create opens a posventa form.
// POST /api/v1/posventa/forms
func (h *Handler) Create(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	var req transport.CreateFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Fields(err))
		return
	}
	result, err := h.svc.Create(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// List returns posventa forms.
// GET /api/v1/posventa/forms
func (h *Handler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	var req transport.ListFormsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Fields(err))
		return
	}
	result, err := h.svc.List(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Get returns a posventa form with its plans.
// GET /api/v1/posventa/forms/:id
func (h *Handler) Get(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	formID, ok := httpkit.ParseUUIDParam(c, "id", msgInvalidFormID)
	if !ok {
		return
	}
	result, err := h.svc.Get(c.Request.Context(), formID, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Submit sends a draft form for review.
// POST /api/v1/posventa/forms/:id/submit
func (h *Handler) Submit(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	formID, ok := httpkit.ParseUUIDParam(c, "id", msgInvalidFormID)
	if !ok {
		return
	}
	result, err := h.svc.Submit(c.Request.Context(), formID, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Review records the review of a submitted form.
// POST /api/v1/posventa/forms/:id/review
func (h *Handler) Review(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	formID, ok := httpkit.ParseUUIDParam(c, "id", msgInvalidFormID)
	if !ok {
		return
	}
	var req transport.ReviewFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Fields(err))
		return
	}
	result, err := h.svc.Review(c.Request.Context(), formID, identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// AttachPlan uploads a plan document (multipart field "file").
// POST /api/v1/posventa/forms/:id/plans
func (h *Handler) AttachPlan(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	formID, ok := httpkit.ParseUUIDParam(c, "id", msgInvalidFormID)
	if !ok {
		return
	}

	fh, err := c.FormFile(fieldFile)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "file is required", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "unable to read uploaded file", nil)
		return
	}
	defer func() { _ = f.Close() }()

	result, err := h.svc.AttachPlan(c.Request.Context(), formID, identity.UserID(), evidence.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Reader:      f,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// GetPlan returns a signed URL for a plan, converting drawings to PDF.
// GET /api/v1/posventa/plans/:planId
func (h *Handler) GetPlan(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	planID, ok := httpkit.ParseUUIDParam(c, "planId", msgInvalidPlanID)
	if !ok {
		return
	}
	result, err := h.svc.GetPlan(c.Request.Context(), planID, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
