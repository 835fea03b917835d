package service

import (
	"context"

	"github.com/google/uuid"
)

// HousingUnit is what the incidences module needs to know about a unit.
type HousingUnit struct {
	ID            uuid.UUID
	ProjectID     uuid.UUID
	BeneficiaryID *uuid.UUID
	Address       string
}

// HousingReader resolves housing units owned by another module.
type HousingReader interface {
	HousingUnit(ctx context.Context, unitID uuid.UUID) (HousingUnit, error)
}
