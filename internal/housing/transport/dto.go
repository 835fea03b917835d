package transport

import (
	"time"

	"github.com/google/uuid"
)

// ProjectResponse is a project with delivery progress.
type ProjectResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Commune        *string   `json:"commune,omitempty"`
	Region         *string   `json:"region,omitempty"`
	UnitCount      int       `json:"unitCount"`
	DeliveredCount int       `json:"deliveredCount"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ProjectListResponse lists projects.
type ProjectListResponse struct {
	Items []ProjectResponse `json:"items"`
}

// UnitResponse is a housing unit.
type UnitResponse struct {
	ID             uuid.UUID  `json:"id"`
	ProjectID      uuid.UUID  `json:"projectId"`
	Address        string     `json:"address"`
	BeneficiaryID  *uuid.UUID `json:"beneficiaryId,omitempty"`
	DeliveryStatus string     `json:"deliveryStatus"`
	DeliveredAt    *time.Time `json:"deliveredAt,omitempty"`
	DeliveredBy    *uuid.UUID `json:"deliveredBy,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// UnitListResponse lists the units of a project.
type UnitListResponse struct {
	Items []UnitResponse `json:"items"`
}
