package adapters

import (
	"context"

	housingrepo "techo_backend/internal/housing/repository"
	incsvc "techo_backend/internal/incidences/service"
	posventasvc "techo_backend/internal/posventa/service"

	"github.com/google/uuid"
)

// UnitLookup is the narrow interface for reading a housing unit without
// authorization checks.
type UnitLookup interface {
	Lookup(ctx context.Context, unitID uuid.UUID) (housingrepo.Unit, error)
}

// IncidenceHousing implements incidences/service.HousingReader.
type IncidenceHousing struct {
	units UnitLookup
}

func NewIncidenceHousing(units UnitLookup) *IncidenceHousing {
	return &IncidenceHousing{units: units}
}

func (a *IncidenceHousing) HousingUnit(ctx context.Context, unitID uuid.UUID) (incsvc.HousingUnit, error) {
	u, err := a.units.Lookup(ctx, unitID)
	if err != nil {
		return incsvc.HousingUnit{}, err
	}
	return incsvc.HousingUnit{
		ID:            u.ID,
		ProjectID:     u.ProjectID,
		BeneficiaryID: u.BeneficiaryID,
		Address:       u.Address,
	}, nil
}

// PosventaHousing implements posventa/service.HousingReader.
type PosventaHousing struct {
	units UnitLookup
}

func NewPosventaHousing(units UnitLookup) *PosventaHousing {
	return &PosventaHousing{units: units}
}

func (a *PosventaHousing) HousingUnit(ctx context.Context, unitID uuid.UUID) (posventasvc.HousingUnit, error) {
	u, err := a.units.Lookup(ctx, unitID)
	if err != nil {
		return posventasvc.HousingUnit{}, err
	}
	return posventasvc.HousingUnit{
		ID:            u.ID,
		BeneficiaryID: u.BeneficiaryID,
		Delivered:     u.IsDelivered(),
	}, nil
}
