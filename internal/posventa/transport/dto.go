package transport

import (
	"time"

	"github.com/google/uuid"
)

// CreateFormRequest opens a posventa form for a delivered unit.
type CreateFormRequest struct {
	HousingUnitID uuid.UUID `json:"housingUnitId" validate:"required"`
	Observations  *string   `json:"observations,omitempty" validate:"omitempty,max=8000"`
}

// ListFormsRequest filters posventa forms.
type ListFormsRequest struct {
	HousingUnitID string `form:"housingUnitId" validate:"omitempty,uuid"`
	Status        string `form:"status" validate:"omitempty,oneof=borrador enviada revisada"`
	Page          int    `form:"page" validate:"omitempty,min=1"`
	PageSize      int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// ReviewFormRequest records the outcome of a review.
type ReviewFormRequest struct {
	Comment *string `json:"comment,omitempty" validate:"omitempty,max=8000"`
	Verdict string  `json:"verdict,omitempty" validate:"omitempty,oneof=aprobada con_observaciones rechazada"`
}

// PlanResponse describes a plan document.
type PlanResponse struct {
	ID           uuid.UUID `json:"id"`
	FormID       uuid.UUID `json:"formId"`
	FileName     string    `json:"fileName"`
	ContentType  string    `json:"contentType"`
	SourceFormat string    `json:"sourceFormat"`
	SizeBytes    int64     `json:"sizeBytes"`
	UploadedBy   uuid.UUID `json:"uploadedBy"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PlanDownloadResponse carries a signed URL to view a plan. Drawings are
// served as their PDF rendition.
type PlanDownloadResponse struct {
	Plan        PlanResponse `json:"plan"`
	URL         string       `json:"url"`
	ContentType string       `json:"contentType"`
	Converted   bool         `json:"converted"`
	ExpiresAt   time.Time    `json:"expiresAt"`
}

// FormResponse is a posventa form with its plans.
type FormResponse struct {
	ID            uuid.UUID      `json:"id"`
	HousingUnitID uuid.UUID      `json:"housingUnitId"`
	SubmittedBy   uuid.UUID      `json:"submittedBy"`
	Status        string         `json:"status"`
	Observations  *string        `json:"observations,omitempty"`
	ReviewComment *string        `json:"reviewComment,omitempty"`
	Verdict       *string        `json:"verdict,omitempty"`
	ReviewedBy    *uuid.UUID     `json:"reviewedBy,omitempty"`
	Plans         []PlanResponse `json:"plans"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	SubmittedAt   *time.Time     `json:"submittedAt,omitempty"`
	ReviewedAt    *time.Time     `json:"reviewedAt,omitempty"`
}

// FormListResponse is a page of forms.
type FormListResponse struct {
	Items      []FormResponse `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}
