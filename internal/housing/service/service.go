package service

import (
	"context"
	"time"

	"techo_backend/internal/authz"
	"techo_backend/internal/events"
	"techo_backend/internal/housing/repository"
	"techo_backend/internal/housing/transport"
	"techo_backend/platform/apperr"
	"techo_backend/platform/logger"

	"github.com/google/uuid"
)

// Service provides business logic for projects and housing units.
type Service struct {
	repo repository.Repository
	auth authz.Authorizer
	bus  events.Bus
	log  *logger.Logger
	now  func() time.Time
}

// New creates a new housing service.
func New(repo repository.Repository, auth authz.Authorizer, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, auth: auth, bus: bus, log: log, now: time.Now}
}

// GetUnit returns a unit. Beneficiaries only see their own unit.
func (s *Service) GetUnit(ctx context.Context, actorID, unitID uuid.UUID) (transport.UnitResponse, error) {
	role, err := s.auth.RoleOf(ctx, actorID)
	if err != nil {
		return transport.UnitResponse{}, err
	}
	unit, err := s.repo.GetUnit(ctx, unitID)
	if err != nil {
		return transport.UnitResponse{}, err
	}
	if !role.IsStaff() && (unit.BeneficiaryID == nil || *unit.BeneficiaryID != actorID) {
		return transport.UnitResponse{}, apperr.Forbidden("housing unit belongs to another beneficiary")
	}
	return toUnitResponse(unit), nil
}

// ListUnits returns the units of a project.
func (s *Service) ListUnits(ctx context.Context, actorID, projectID uuid.UUID) (transport.UnitListResponse, error) {
	if _, err := authz.Require(ctx, s.auth, actorID, authz.Role.IsStaff, "list housing units"); err != nil {
		return transport.UnitListResponse{}, err
	}
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return transport.UnitListResponse{}, err
	}
	units, err := s.repo.ListUnits(ctx, projectID)
	if err != nil {
		return transport.UnitListResponse{}, err
	}
	items := make([]transport.UnitResponse, 0, len(units))
	for _, u := range units {
		items = append(items, toUnitResponse(u))
	}
	return transport.UnitListResponse{Items: items}, nil
}

// ListProjects returns every project with its delivery progress.
func (s *Service) ListProjects(ctx context.Context, actorID uuid.UUID) (transport.ProjectListResponse, error) {
	if _, err := authz.Require(ctx, s.auth, actorID, authz.Role.IsStaff, "list projects"); err != nil {
		return transport.ProjectListResponse{}, err
	}
	projects, err := s.repo.ListProjects(ctx)
	if err != nil {
		return transport.ProjectListResponse{}, err
	}
	items := make([]transport.ProjectResponse, 0, len(projects))
	for _, p := range projects {
		items = append(items, transport.ProjectResponse{
			ID:             p.ID,
			Name:           p.Name,
			Commune:        p.Commune,
			Region:         p.Region,
			UnitCount:      p.UnitCount,
			DeliveredCount: p.DeliveredCount,
			CreatedAt:      p.CreatedAt,
		})
	}
	return transport.ProjectListResponse{Items: items}, nil
}

// Deliver hands a unit over to its beneficiary. A unit is delivered once.
func (s *Service) Deliver(ctx context.Context, unitID, actorID uuid.UUID) (transport.UnitResponse, error) {
	if _, err := authz.Require(ctx, s.auth, actorID, authz.Role.CanDeliverHousing, "deliver housing units"); err != nil {
		return transport.UnitResponse{}, err
	}

	unit, ok, err := s.repo.MarkDelivered(ctx, unitID, actorID, s.now().UTC())
	if err != nil {
		return transport.UnitResponse{}, err
	}
	if !ok {
		if _, err := s.repo.GetUnit(ctx, unitID); err != nil {
			return transport.UnitResponse{}, err
		}
		return transport.UnitResponse{}, apperr.Conflict("housing unit already delivered")
	}

	s.log.StateTransition("housing_unit", unit.ID.String(), repository.DeliveryPending, repository.DeliveryDelivered, actorID.String())
	s.bus.Publish(ctx, events.HousingUnitDelivered{
		BaseEvent:     events.NewBaseEvent(),
		HousingUnitID: unit.ID,
		ProjectID:     unit.ProjectID,
		ActorID:       actorID,
	})
	return toUnitResponse(unit), nil
}

// Lookup returns a unit without authorization checks, for other modules.
func (s *Service) Lookup(ctx context.Context, unitID uuid.UUID) (repository.Unit, error) {
	return s.repo.GetUnit(ctx, unitID)
}

// DeliveryStats counts delivered and total units.
func (s *Service) DeliveryStats(ctx context.Context) (repository.DeliveryStats, error) {
	return s.repo.DeliveryStats(ctx)
}

func toUnitResponse(u repository.Unit) transport.UnitResponse {
	return transport.UnitResponse{
		ID:             u.ID,
		ProjectID:      u.ProjectID,
		Address:        u.Address,
		BeneficiaryID:  u.BeneficiaryID,
		DeliveryStatus: u.DeliveryStatus,
		DeliveredAt:    u.DeliveredAt,
		DeliveredBy:    u.DeliveredBy,
		CreatedAt:      u.CreatedAt,
	}
}
