package service

import (
	"context"
	"strings"
	"time"

	"techo_backend/internal/authz"
	"techo_backend/internal/events"
	"techo_backend/internal/evidence"
	"techo_backend/internal/incidences/domain"
	"techo_backend/internal/incidences/repository"
	"techo_backend/internal/incidences/transport"
	"techo_backend/platform/apperr"
	"techo_backend/platform/logger"
	"techo_backend/platform/phone"
	"techo_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	noteClaimed = "claimed"
)

// Service provides the incidence lifecycle: reporting, claim and assignment,
// status transitions, comments with evidence and technician routing.
type Service struct {
	repo        repository.Repository
	users       authz.Directory
	housing     HousingReader
	store       evidence.Store
	bus         events.Bus
	policy      domain.Policy
	visitWindow time.Duration
	log         *logger.Logger
	now         func() time.Time
}

// New creates a new incidences service.
func New(
	repo repository.Repository,
	users authz.Directory,
	housing HousingReader,
	store evidence.Store,
	bus events.Bus,
	policy domain.Policy,
	visitWindow time.Duration,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:        repo,
		users:       users,
		housing:     housing,
		store:       store,
		bus:         bus,
		policy:      policy,
		visitWindow: visitWindow,
		log:         log,
		now:         time.Now,
	}
}

// Report creates an incidence in abierta. Beneficiaries report against
// their own unit; supervisors and admins report on behalf of the unit's
// beneficiary.
func (s *Service) Report(ctx context.Context, actorID uuid.UUID, req transport.ReportIncidenceRequest) (transport.IncidenceResponse, error) {
	role, err := s.users.RoleOf(ctx, actorID)
	if err != nil {
		return transport.IncidenceResponse{}, err
	}
	if !role.IsBeneficiary() && !role.CanAssign() {
		return transport.IncidenceResponse{}, apperr.Forbidden("role cannot report incidences")
	}

	priority, ok := domain.ParsePriority(req.Priority)
	if !ok {
		return transport.IncidenceResponse{}, apperr.Validation("unknown priority")
	}
	category := strings.TrimSpace(req.Category)
	description := sanitize.Text(req.Description)
	if category == "" || description == "" {
		return transport.IncidenceResponse{}, apperr.Validation("category and description are required")
	}

	var contactPhone *string
	if req.ContactPhone != nil && strings.TrimSpace(*req.ContactPhone) != "" {
		normalized, err := phone.Normalize(*req.ContactPhone)
		if err != nil {
			return transport.IncidenceResponse{}, apperr.Validation("invalid contact phone")
		}
		contactPhone = &normalized
	}

	unit, err := s.housing.HousingUnit(ctx, req.HousingUnitID)
	if err != nil {
		return transport.IncidenceResponse{}, err
	}

	reporterID := actorID
	if role.IsBeneficiary() {
		if unit.BeneficiaryID == nil || *unit.BeneficiaryID != actorID {
			return transport.IncidenceResponse{}, apperr.Forbidden("housing unit belongs to another beneficiary")
		}
	} else if unit.BeneficiaryID != nil {
		reporterID = *unit.BeneficiaryID
	}

	inc, err := s.repo.Create(ctx, repository.CreateParams{
		ReporterID:    reporterID,
		HousingUnitID: unit.ID,
		Category:      category,
		Description:   description,
		ContactPhone:  contactPhone,
		Priority:      priority,
		At:            s.now().UTC(),
	})
	if err != nil {
		return transport.IncidenceResponse{}, err
	}

	s.log.WithContext(ctx).Info("incidence reported",
		"incidenceId", inc.ID,
		"housingUnitId", inc.HousingUnitID,
		"actorId", actorID,
	)
	s.bus.Publish(ctx, events.IncidenceReported{
		BaseEvent:     events.NewBaseEvent(),
		IncidenceID:   inc.ID,
		ReporterID:    inc.ReporterID,
		HousingUnitID: inc.HousingUnitID,
		Category:      inc.Category,
	})
	return toIncidenceResponse(inc), nil
}

// Get returns an incidence visible to the actor.
func (s *Service) Get(ctx context.Context, actorID, id uuid.UUID) (transport.IncidenceResponse, error) {
	inc, _, err := s.loadVisible(ctx, actorID, id)
	if err != nil {
		return transport.IncidenceResponse{}, err
	}
	return toIncidenceResponse(inc), nil
}

// List returns a page of incidences. Beneficiaries only see their own reports.
func (s *Service) List(ctx context.Context, actorID uuid.UUID, req transport.ListIncidencesRequest) (transport.IncidenceListResponse, error) {
	role, err := s.users.RoleOf(ctx, actorID)
	if err != nil {
		return transport.IncidenceListResponse{}, err
	}

	params, err := toListParams(req)
	if err != nil {
		return transport.IncidenceListResponse{}, err
	}
	if !role.IsStaff() {
		params.ReporterID = &actorID
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	params.Limit = pageSize
	params.Offset = (page - 1) * pageSize

	items, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.IncidenceListResponse{}, err
	}

	resp := make([]transport.IncidenceResponse, 0, len(items))
	for _, inc := range items {
		resp = append(resp, toIncidenceResponse(inc))
	}
	totalPages := (total + pageSize - 1) / pageSize
	return transport.IncidenceListResponse{
		Items:      resp,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// History returns the audit trail of an incidence, oldest first.
func (s *Service) History(ctx context.Context, actorID, id uuid.UUID) (transport.HistoryResponse, error) {
	if _, _, err := s.loadVisible(ctx, actorID, id); err != nil {
		return transport.HistoryResponse{}, err
	}
	entries, err := s.repo.History(ctx, id)
	if err != nil {
		return transport.HistoryResponse{}, err
	}
	items := make([]transport.HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		var from *string
		if e.FromStatus != nil {
			v := string(*e.FromStatus)
			from = &v
		}
		items = append(items, transport.HistoryEntryResponse{
			FromStatus:   from,
			ToStatus:     string(e.ToStatus),
			ActorID:      e.ActorID,
			TechnicianID: e.TechnicianID,
			Note:         e.Note,
			CreatedAt:    e.CreatedAt,
		})
	}
	return transport.HistoryResponse{Items: items}, nil
}

// Claim lets a technician take an open, unassigned incidence. The write is a
// single conditional update so concurrent claims have exactly one winner.
func (s *Service) Claim(ctx context.Context, id, technicianID uuid.UUID) (transport.IncidenceResponse, error) {
	if _, err := authz.Require(ctx, s.users, technicianID, authz.Role.IsTechnician, "claim incidences"); err != nil {
		return transport.IncidenceResponse{}, err
	}

	note := noteClaimed
	inc, ok, err := s.repo.CompareAndSwapStatus(ctx, repository.SwapParams{
		ID:           id,
		Expected:     domain.StatusOpen,
		Next:         domain.StatusAssigned,
		TechnicianID: &technicianID,
		ActorID:      technicianID,
		Note:         &note,
		At:           s.now().UTC(),
	})
	if err != nil {
		return transport.IncidenceResponse{}, err
	}
	if !ok {
		if _, err := s.repo.GetByID(ctx, id); err != nil {
			return transport.IncidenceResponse{}, err
		}
		return transport.IncidenceResponse{}, apperr.Conflict("incidence is no longer open")
	}

	s.log.StateTransition("incidence", id.String(), string(domain.StatusOpen), string(domain.StatusAssigned), technicianID.String())
	s.publishAssigned(ctx, inc, technicianID, true)
	s.publishStatusChanged(ctx, inc, domain.StatusOpen, technicianID)
	return toIncidenceResponse(inc), nil
}

// Assign routes an incidence to a technician. Open incidences move to
// asignada; in-flight ones keep their status and only change technician.
func (s *Service) Assign(ctx context.Context, id, actorID uuid.UUID, req transport.AssignRequest) (transport.IncidenceResponse, error) {
	if _, err := authz.Require(ctx, s.users, actorID, authz.Role.CanAssign, "assign incidences"); err != nil {
		return transport.IncidenceResponse{}, err
	}

	tech, err := s.users.GetUser(ctx, req.TechnicianID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return transport.IncidenceResponse{}, apperr.Validation("technician not found")
		}
		return transport.IncidenceResponse{}, err
	}
	if !tech.IsActive || !tech.Role.IsTechnician() {
		return transport.IncidenceResponse{}, apperr.Validation("assignee must be an active technician")
	}

	inc, previous, err := s.repo.Assign(ctx, repository.AssignParams{
		ID:           id,
		TechnicianID: tech.ID,
		ActorID:      actorID,
		At:           s.now().UTC(),
		Check: func(current repository.Incidence) error {
			if current.Status.IsTerminal() {
				return apperr.InvalidTransition(string(current.Status), string(domain.StatusAssigned))
			}
			return nil
		},
	})
	if err != nil {
		return transport.IncidenceResponse{}, err
	}

	if previous != inc.Status {
		s.log.StateTransition("incidence", id.String(), string(previous), string(inc.Status), actorID.String())
		s.publishStatusChanged(ctx, inc, previous, actorID)
	}
	s.publishAssigned(ctx, inc, actorID, false)
	return toIncidenceResponse(inc), nil
}

// UpdateStatus applies a status transition. Both the edge and the actor are
// checked against the row locked inside the writing transaction.
func (s *Service) UpdateStatus(ctx context.Context, id, actorID uuid.UUID, req transport.UpdateStatusRequest) (transport.IncidenceResponse, error) {
	to, ok := domain.ParseStatus(req.Status)
	if !ok {
		return transport.IncidenceResponse{}, apperr.Validation("unknown status")
	}
	role, err := s.users.RoleOf(ctx, actorID)
	if err != nil {
		return transport.IncidenceResponse{}, err
	}

	note := trimmedNote(req.Note)
	inc, from, err := s.repo.Transition(ctx, repository.TransitionParams{
		ID:      id,
		To:      to,
		ActorID: actorID,
		Note:    note,
		At:      s.now().UTC(),
		Check: func(current repository.Incidence) error {
			if err := s.policy.ValidateTransition(current.Status, to); err != nil {
				return err
			}
			return domain.AuthorizeTransition(current.Status, current.Participants(), actorID, role)
		},
	})
	if err != nil {
		return transport.IncidenceResponse{}, err
	}

	s.log.StateTransition("incidence", id.String(), string(from), string(to), actorID.String())
	s.publishStatusChanged(ctx, inc, from, actorID)
	if to == domain.StatusResolved && inc.TechnicianID != nil {
		s.bus.Publish(ctx, events.IncidenceResolved{
			BaseEvent:    events.NewBaseEvent(),
			IncidenceID:  inc.ID,
			ReporterID:   inc.ReporterID,
			TechnicianID: *inc.TechnicianID,
		})
	}
	return toIncidenceResponse(inc), nil
}

// Lookup returns an incidence without authorization checks, for other modules.
func (s *Service) Lookup(ctx context.Context, id uuid.UUID) (repository.Incidence, error) {
	return s.repo.GetByID(ctx, id)
}

// StatusCounts returns the number of incidences per status.
func (s *Service) StatusCounts(ctx context.Context) (map[domain.Status]int, error) {
	return s.repo.StatusCounts(ctx)
}

// TechnicianWorkloads returns active technicians, least loaded first.
func (s *Service) TechnicianWorkloads(ctx context.Context) ([]repository.TechnicianWorkload, error) {
	return s.repo.TechnicianWorkloads(ctx)
}

func (s *Service) loadVisible(ctx context.Context, actorID, id uuid.UUID) (repository.Incidence, authz.Role, error) {
	role, err := s.users.RoleOf(ctx, actorID)
	if err != nil {
		return repository.Incidence{}, "", err
	}
	inc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return repository.Incidence{}, "", err
	}
	if !domain.CanView(inc.Participants(), actorID, role) {
		return repository.Incidence{}, "", apperr.Forbidden("incidence belongs to another beneficiary")
	}
	return inc, role, nil
}

func (s *Service) publishAssigned(ctx context.Context, inc repository.Incidence, actorID uuid.UUID, claimed bool) {
	if inc.TechnicianID == nil {
		return
	}
	s.bus.Publish(ctx, events.IncidenceAssigned{
		BaseEvent:    events.NewBaseEvent(),
		IncidenceID:  inc.ID,
		TechnicianID: *inc.TechnicianID,
		ActorID:      actorID,
		Claimed:      claimed,
	})
}

func (s *Service) publishStatusChanged(ctx context.Context, inc repository.Incidence, from domain.Status, actorID uuid.UUID) {
	s.bus.Publish(ctx, events.IncidenceStatusChanged{
		BaseEvent:   events.NewBaseEvent(),
		IncidenceID: inc.ID,
		From:        string(from),
		To:          string(inc.Status),
		ActorID:     actorID,
	})
}

func toListParams(req transport.ListIncidencesRequest) (repository.ListParams, error) {
	var params repository.ListParams
	if req.Status != "" {
		st, ok := domain.ParseStatus(req.Status)
		if !ok {
			return params, apperr.Validation("unknown status")
		}
		params.Status = &st
	}
	var err error
	if params.TechnicianID, err = optionalUUID(req.TechnicianID, "technicianId"); err != nil {
		return params, err
	}
	if params.HousingUnitID, err = optionalUUID(req.HousingUnitID, "housingUnitId"); err != nil {
		return params, err
	}
	if params.ReporterID, err = optionalUUID(req.ReporterID, "reporterId"); err != nil {
		return params, err
	}
	return params, nil
}

func optionalUUID(raw, field string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Validation("invalid " + field)
	}
	return &id, nil
}

func trimmedNote(note *string) *string {
	return sanitize.Optional(note)
}

func toIncidenceResponse(inc repository.Incidence) transport.IncidenceResponse {
	return transport.IncidenceResponse{
		ID:            inc.ID,
		ReporterID:    inc.ReporterID,
		TechnicianID:  inc.TechnicianID,
		HousingUnitID: inc.HousingUnitID,
		Category:      inc.Category,
		Description:   inc.Description,
		ContactPhone:  inc.ContactPhone,
		Priority:      string(inc.Priority),
		Status:        string(inc.Status),
		CreatedAt:     inc.CreatedAt,
		UpdatedAt:     inc.UpdatedAt,
		ResolvedAt:    inc.ResolvedAt,
		ClosedAt:      inc.ClosedAt,
	}
}
