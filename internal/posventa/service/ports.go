package service

import (
	"context"

	"techo_backend/internal/evidence"

	"github.com/google/uuid"
)

// HousingUnit is what posventa needs to know about a unit.
type HousingUnit struct {
	ID            uuid.UUID
	BeneficiaryID *uuid.UUID
	Delivered     bool
}

// HousingReader resolves housing units owned by another module.
type HousingReader interface {
	HousingUnit(ctx context.Context, unitID uuid.UUID) (HousingUnit, error)
}

// PlanConverter renders drawings as PDF, reusing earlier conversions.
type PlanConverter interface {
	Convert(ctx context.Context, src evidence.Reference) (evidence.Reference, error)
}

// ConversionQueue schedules a background conversion so the first viewer
// does not wait for it.
type ConversionQueue interface {
	EnqueuePlanConversion(ctx context.Context, planID uuid.UUID) error
}
