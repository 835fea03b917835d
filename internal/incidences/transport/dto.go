package transport

import (
	"time"

	"github.com/google/uuid"
)

// ReportIncidenceRequest is the payload for reporting an incidence.
type ReportIncidenceRequest struct {
	HousingUnitID uuid.UUID `json:"housingUnitId" validate:"required"`
	Category      string    `json:"category" validate:"required,notblank,max=100"`
	Description   string    `json:"description" validate:"required,notblank,max=4000"`
	ContactPhone  *string   `json:"contactPhone,omitempty" validate:"omitempty,max=32"`
	Priority      string    `json:"priority,omitempty" validate:"omitempty,oneof=baja media alta"`
}

// AddCommentRequest is the JSON form of a comment without attachments.
type AddCommentRequest struct {
	Body string `json:"body" validate:"required,notblank,max=4000"`
}

// ListIncidencesRequest filters the incidence list.
type ListIncidencesRequest struct {
	Status        string `form:"status" validate:"omitempty,oneof=abierta asignada en_proceso resuelta cerrada"`
	TechnicianID  string `form:"technicianId" validate:"omitempty,uuid"`
	HousingUnitID string `form:"housingUnitId" validate:"omitempty,uuid"`
	ReporterID    string `form:"reporterId" validate:"omitempty,uuid"`
	Page          int    `form:"page" validate:"omitempty,min=1"`
	PageSize      int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// AssignRequest routes an incidence to a technician.
type AssignRequest struct {
	TechnicianID uuid.UUID `json:"technicianId" validate:"required"`
}

// UpdateStatusRequest requests a status transition.
type UpdateStatusRequest struct {
	Status string  `json:"status" validate:"required"`
	Note   *string `json:"note,omitempty" validate:"omitempty,max=2000"`
}

// IncidenceResponse is an incidence as returned by the API.
type IncidenceResponse struct {
	ID            uuid.UUID  `json:"id"`
	ReporterID    uuid.UUID  `json:"reporterId"`
	TechnicianID  *uuid.UUID `json:"technicianId"`
	HousingUnitID uuid.UUID  `json:"housingUnitId"`
	Category      string     `json:"category"`
	Description   string     `json:"description"`
	ContactPhone  *string    `json:"contactPhone,omitempty"`
	Priority      string     `json:"priority"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	ResolvedAt    *time.Time `json:"resolvedAt,omitempty"`
	ClosedAt      *time.Time `json:"closedAt,omitempty"`
}

// IncidenceListResponse is a page of incidences.
type IncidenceListResponse struct {
	Items      []IncidenceResponse `json:"items"`
	Total      int                 `json:"total"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"pageSize"`
	TotalPages int                 `json:"totalPages"`
}

// HistoryEntryResponse is one audit trail row.
type HistoryEntryResponse struct {
	FromStatus   *string    `json:"fromStatus"`
	ToStatus     string     `json:"toStatus"`
	ActorID      uuid.UUID  `json:"actorId"`
	TechnicianID *uuid.UUID `json:"technicianId,omitempty"`
	Note         *string    `json:"note,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// HistoryResponse is the audit trail of an incidence.
type HistoryResponse struct {
	Items []HistoryEntryResponse `json:"items"`
}

// MediaResponse is stored evidence with fresh signed URLs.
type MediaResponse struct {
	ID           uuid.UUID  `json:"id"`
	OwnerKind    string     `json:"ownerKind"`
	OwnerID      uuid.UUID  `json:"ownerId"`
	FileName     string     `json:"fileName"`
	ContentType  string     `json:"contentType"`
	SizeBytes    int64      `json:"sizeBytes"`
	DownloadURL  string     `json:"downloadUrl,omitempty"`
	ThumbnailURL *string    `json:"thumbnailUrl,omitempty"`
	CapturedAt   *time.Time `json:"capturedAt,omitempty"`
	UploadedBy   uuid.UUID  `json:"uploadedBy"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// MediaListResponse lists the evidence of an incidence.
type MediaListResponse struct {
	Items []MediaResponse `json:"items"`
}

// FailedMedia names an upload that was not stored.
type FailedMedia struct {
	Index    int    `json:"index"`
	FileName string `json:"fileName"`
	Reason   string `json:"reason"`
}

// CommentResponse is a comment with its media.
type CommentResponse struct {
	ID          uuid.UUID       `json:"id"`
	IncidenceID uuid.UUID       `json:"incidenceId"`
	AuthorID    uuid.UUID       `json:"authorId"`
	Body        string          `json:"body"`
	Media       []MediaResponse `json:"media"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// CommentListResponse lists the comments of an incidence.
type CommentListResponse struct {
	Items []CommentResponse `json:"items"`
}

// AddCommentResponse reports the stored comment and the outcome of each upload.
type AddCommentResponse struct {
	Comment        CommentResponse `json:"comment"`
	Failed         []FailedMedia   `json:"failed"`
	AllMediaFailed bool            `json:"allMediaFailed"`
}

// AttachMediaResponse reports the outcome of attaching evidence to an incidence.
type AttachMediaResponse struct {
	Media  []MediaResponse `json:"media"`
	Failed []FailedMedia   `json:"failed"`
}

// TechnicianResponse is a technician with their current workload.
type TechnicianResponse struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	ActiveIncidences int       `json:"activeIncidences"`
}

// TechnicianListResponse lists technicians, least loaded first.
type TechnicianListResponse struct {
	Items []TechnicianResponse `json:"items"`
}

// SuggestedVisitResponse is an incidence the technician should visit.
type SuggestedVisitResponse struct {
	Incidence      IncidenceResponse `json:"incidence"`
	Address        string            `json:"address"`
	ProjectID      uuid.UUID         `json:"projectId"`
	IdleSinceHours int               `json:"idleSinceHours"`
}

// SuggestedVisitListResponse lists suggested visits for one day.
type SuggestedVisitListResponse struct {
	TechnicianID uuid.UUID                `json:"technicianId"`
	Date         time.Time                `json:"date"`
	Cutoff       time.Time                `json:"cutoff"`
	Items        []SuggestedVisitResponse `json:"items"`
}
