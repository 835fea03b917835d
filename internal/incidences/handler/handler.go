package handler

import (
	"io"
	"mime/multipart"
	"net/http"

	"techo_backend/internal/evidence"
	"techo_backend/internal/incidences/service"
	"techo_backend/internal/incidences/transport"
	"techo_backend/platform/httpkit"
	"techo_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest      = "invalid request"
	msgValidationFailed    = "validation failed"
	msgInvalidIncidenceID  = "invalid incidence ID"
	msgInvalidTechnicianID = "invalid technician ID"

	maxMultipartMemory = 32 << 20
	fieldBody          = "body"
	fieldFiles         = "files"
)

// Handler handles HTTP requests for incidences.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new incidences handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Report creates an incidence.
// POST /api/v1/incidences
func (h *Handler) Report(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	var req transport.ReportIncidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Fields(err))
		return
	}
	result, err := h.svc.Report(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// List returns a filtered page of incidences.
// GET /api/v1/incidences
func (h *Handler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	var req transport.ListIncidencesRequest
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

// Get returns one incidence.
// GET /api/v1/incidences/:id
func (h *Handler) Get(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := httpkit.ParseUUIDParam(c, "id", msgInvalidIncidenceID)
	if !ok {
		return
	}
	result, err := h.svc.Get(c.Request.Context(), identity.UserID(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// History returns the audit trail of an incidence.
// GET /api/v1/incidences/:id/history
func (h *Handler) History(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := httpkit.ParseUUIDParam(c, "id", msgInvalidIncidenceID)
	if !ok {
		return
	}
	result, err := h.svc.History(c.Request.Context(), identity.UserID(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Claim lets the calling technician take an open incidence.
// POST /api/v1/incidences/:id/claim
func (h *Handler) Claim(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := httpkit.ParseUUIDParam(c, "id", msgInvalidIncidenceID)
	if !ok {
		return
	}
	result, err := h.svc.Claim(c.Request.Context(), id, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Assign routes an incidence to a technician.
// POST /api/v1/incidences/:id/assign
func (h *Handler) Assign(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := httpkit.ParseUUIDParam(c, "id", msgInvalidIncidenceID)
	if !ok {
		return
	}
	var req transport.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Fields(err))
		return
	}
	result, err := h.svc.Assign(c.Request.Context(), id, identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// UpdateStatus applies a status transition.
// PATCH /api/v1/incidences/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := httpkit.ParseUUIDParam(c, "id", msgInvalidIncidenceID)
	if !ok {
		return
	}
	var req transport.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Fields(err))
		return
	}
	result, err := h.svc.UpdateStatus(c.Request.Context(), id, identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// AddComment stores a comment with optional media (multipart: body, files).
// POST /api/v1/incidences/:id/comments
func (h *Handler) AddComment(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := httpkit.ParseUUIDParam(c, "id", msgInvalidIncidenceID)
	if !ok {
		return
	}

	body, files, closeFiles, ok := h.readComment(c)
	if !ok {
		return
	}
	defer closeFiles()

	result, err := h.svc.AddComment(c.Request.Context(), id, identity.UserID(), body, files)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// ListComments returns the comments of an incidence.
// GET /api/v1/incidences/:id/comments
func (h *Handler) ListComments(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := httpkit.ParseUUIDParam(c, "id", msgInvalidIncidenceID)
	if !ok {
		return
	}
	result, err := h.svc.ListComments(c.Request.Context(), identity.UserID(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// AttachMedia uploads evidence owned by the incidence itself.
// POST /api/v1/incidences/:id/media
func (h *Handler) AttachMedia(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := httpkit.ParseUUIDParam(c, "id", msgInvalidIncidenceID)
	if !ok {
		return
	}

	_, files, closeFiles, ok := parseUpload(c)
	if !ok {
		return
	}
	defer closeFiles()

	result, err := h.svc.AttachMedia(c.Request.Context(), id, identity.UserID(), files)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// ListMedia returns the evidence of an incidence with signed URLs.
// GET /api/v1/incidences/:id/media
func (h *Handler) ListMedia(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := httpkit.ParseUUIDParam(c, "id", msgInvalidIncidenceID)
	if !ok {
		return
	}
	result, err := h.svc.ListMedia(c.Request.Context(), identity.UserID(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListAvailableTechnicians returns technicians, least loaded first.
// GET /api/v1/technicians/available
func (h *Handler) ListAvailableTechnicians(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	result, err := h.svc.ListAvailableTechnicians(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// SuggestedVisits returns idle incidences a technician should visit.
// GET /api/v1/technicians/:id/suggested-visits?date=YYYY-MM-DD
func (h *Handler) SuggestedVisits(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	technicianID, ok := httpkit.ParseUUIDParam(c, "id", msgInvalidTechnicianID)
	if !ok {
		return
	}
	result, err := h.svc.SuggestedVisits(c.Request.Context(), identity.UserID(), technicianID, c.Query("date"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// parseUpload reads the multipart body field and every part named files.
// The returned func closes the opened parts.
// readComment accepts a JSON body for text-only comments and multipart
// otherwise.
func (h *Handler) readComment(c *gin.Context) (string, []evidence.File, func(), bool) {
	if c.ContentType() != gin.MIMEJSON {
		return parseUpload(c)
	}
	var req transport.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return "", nil, nil, false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Fields(err))
		return "", nil, nil, false
	}
	return req.Body, nil, func() {}, true
}

func parseUpload(c *gin.Context) (string, []evidence.File, func(), bool) {
	if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "unable to parse multipart form", nil)
		return "", nil, nil, false
	}

	form := c.Request.MultipartForm
	body := form.Value[fieldBody]
	text := ""
	if len(body) > 0 {
		text = body[0]
	}

	var (
		files   []evidence.File
		closers []io.Closer
	)
	closeAll := func() {
		for _, cl := range closers {
			_ = cl.Close()
		}
	}
	for _, fh := range form.File[fieldFiles] {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			httpkit.Error(c, http.StatusBadRequest, "unable to read uploaded file", fh.Filename)
			return "", nil, nil, false
		}
		closers = append(closers, f)
		files = append(files, toEvidenceFile(fh, f))
	}
	return text, files, closeAll, true
}

func toEvidenceFile(fh *multipart.FileHeader, f multipart.File) evidence.File {
	return evidence.File{
		Name:        fh.Filename,
		ContentType: evidence.NormalizeContentType(fh.Filename, fh.Header.Get("Content-Type")),
		Size:        fh.Size,
		Reader:      f,
	}
}
