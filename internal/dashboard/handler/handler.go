package handler

import (
	"net/http"

	"techo_backend/internal/dashboard/service"
	"techo_backend/internal/dashboard/transport"
	"techo_backend/platform/httpkit"
	"techo_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler handles dashboard HTTP requests.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new dashboard handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Summary returns the dashboard snapshot.
// GET /api/v1/dashboard/summary
func (h *Handler) Summary(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	req, ok := h.bind(c)
	if !ok {
		return
	}
	result, err := h.svc.Summary(c.Request.Context(), identity.UserID(), req.TopN)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Export downloads the dashboard snapshot as a workbook.
// GET /api/v1/dashboard/export.xlsx
func (h *Handler) Export(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	req, ok := h.bind(c)
	if !ok {
		return
	}
	data, err := h.svc.ExportXLSX(c.Request.Context(), identity.UserID(), req.TopN)
	if httpkit.HandleError(c, err) {
		return
	}
	c.Header("Content-Disposition", "attachment; filename=dashboard.xlsx")
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (h *Handler) bind(c *gin.Context) (transport.SummaryRequest, bool) {
	var req transport.SummaryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return req, false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", validator.Fields(err))
		return req, false
	}
	return req, true
}
