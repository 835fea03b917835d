package service

import (
	"context"
	"time"

	"techo_backend/internal/authz"
	"techo_backend/internal/events"
	"techo_backend/internal/evidence"
	"techo_backend/internal/posventa/domain"
	"techo_backend/internal/posventa/repository"
	"techo_backend/internal/posventa/transport"
	"techo_backend/platform/apperr"
	"techo_backend/platform/logger"
	"techo_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service provides the posventa review workflow and plan documents.
type Service struct {
	repo      repository.Repository
	auth      authz.Authorizer
	housing   HousingReader
	store     evidence.Store
	converter PlanConverter
	queue     ConversionQueue
	bus       events.Bus
	log       *logger.Logger
	now       func() time.Time
}

// New creates a new posventa service. queue may be nil, in which case
// drawings are converted on first access only.
func New(
	repo repository.Repository,
	auth authz.Authorizer,
	housing HousingReader,
	store evidence.Store,
	converter PlanConverter,
	queue ConversionQueue,
	bus events.Bus,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:      repo,
		auth:      auth,
		housing:   housing,
		store:     store,
		converter: converter,
		queue:     queue,
		bus:       bus,
		log:       log,
		now:       time.Now,
	}
}

// Create opens a form in borrador for a delivered unit.
func (s *Service) Create(ctx context.Context, actorID uuid.UUID, req transport.CreateFormRequest) (transport.FormResponse, error) {
	role, err := s.auth.RoleOf(ctx, actorID)
	if err != nil {
		return transport.FormResponse{}, err
	}
	unit, err := s.housing.HousingUnit(ctx, req.HousingUnitID)
	if err != nil {
		return transport.FormResponse{}, err
	}
	if !role.CanReviewPosventa() && !isBeneficiaryOf(unit, actorID) {
		return transport.FormResponse{}, apperr.Forbidden("cannot open a posventa form for this unit")
	}
	if !unit.Delivered {
		return transport.FormResponse{}, apperr.Validation("housing unit has not been delivered")
	}

	form, err := s.repo.CreateForm(ctx, repository.CreateFormParams{
		HousingUnitID: unit.ID,
		SubmittedBy:   actorID,
		Observations:  trimmed(req.Observations),
		At:            s.now().UTC(),
	})
	if err != nil {
		return transport.FormResponse{}, err
	}
	s.log.WithContext(ctx).Info("posventa form created", "formId", form.ID, "housingUnitId", form.HousingUnitID)
	return toFormResponse(form, nil), nil
}

// Get returns a form with its plans.
func (s *Service) Get(ctx context.Context, formID, actorID uuid.UUID) (transport.FormResponse, error) {
	form, _, err := s.loadForm(ctx, formID, actorID)
	if err != nil {
		return transport.FormResponse{}, err
	}
	plans, err := s.repo.ListPlans(ctx, form.ID)
	if err != nil {
		return transport.FormResponse{}, err
	}
	return toFormResponse(form, plans), nil
}

// List returns a page of forms. Beneficiaries only see forms of their own units.
func (s *Service) List(ctx context.Context, actorID uuid.UUID, req transport.ListFormsRequest) (transport.FormListResponse, error) {
	role, err := s.auth.RoleOf(ctx, actorID)
	if err != nil {
		return transport.FormListResponse{}, err
	}

	var params repository.ListFormsParams
	if req.HousingUnitID != "" {
		id, err := uuid.Parse(req.HousingUnitID)
		if err != nil {
			return transport.FormListResponse{}, apperr.Validation("invalid housingUnitId")
		}
		params.HousingUnitID = &id
	}
	if req.Status != "" {
		st, ok := domain.ParseFormStatus(req.Status)
		if !ok {
			return transport.FormListResponse{}, apperr.Validation("unknown status")
		}
		params.Status = &st
	}
	if !role.IsStaff() {
		params.VisibleTo = &actorID
	}

	page, pageSize := req.Page, req.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	params.Limit = pageSize
	params.Offset = (page - 1) * pageSize

	forms, total, err := s.repo.ListForms(ctx, params)
	if err != nil {
		return transport.FormListResponse{}, err
	}
	items := make([]transport.FormResponse, 0, len(forms))
	for _, f := range forms {
		items = append(items, toFormResponse(f, nil))
	}
	return transport.FormListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

// Submit moves a form from borrador to enviada.
func (s *Service) Submit(ctx context.Context, formID, actorID uuid.UUID) (transport.FormResponse, error) {
	form, role, err := s.loadForm(ctx, formID, actorID)
	if err != nil {
		return transport.FormResponse{}, err
	}
	if !role.CanReviewPosventa() && !role.IsBeneficiary() {
		return transport.FormResponse{}, apperr.Forbidden("role cannot submit posventa forms")
	}
	if err := domain.ValidateSubmit(form.Status); err != nil {
		return transport.FormResponse{}, err
	}

	updated, ok, err := s.repo.Submit(ctx, formID, s.now().UTC())
	if err != nil {
		return transport.FormResponse{}, err
	}
	if !ok {
		return transport.FormResponse{}, s.rejectedTransition(ctx, formID, domain.ValidateSubmit)
	}

	s.log.StateTransition("posventa_form", formID.String(), string(domain.FormDraft), string(domain.FormSubmitted), actorID.String())
	return s.withPlans(ctx, updated)
}

// Review moves a form from enviada to revisada and records comment and verdict.
func (s *Service) Review(ctx context.Context, formID, actorID uuid.UUID, req transport.ReviewFormRequest) (transport.FormResponse, error) {
	if _, err := authz.Require(ctx, s.auth, actorID, authz.Role.CanReviewPosventa, "review posventa forms"); err != nil {
		return transport.FormResponse{}, err
	}
	verdict, err := domain.ParseVerdict(req.Verdict)
	if err != nil {
		return transport.FormResponse{}, err
	}

	updated, ok, err := s.repo.Review(ctx, repository.ReviewParams{
		ID:         formID,
		ReviewerID: actorID,
		Comment:    trimmed(req.Comment),
		Verdict:    verdict,
		At:         s.now().UTC(),
	})
	if err != nil {
		return transport.FormResponse{}, err
	}
	if !ok {
		return transport.FormResponse{}, s.rejectedTransition(ctx, formID, domain.ValidateReview)
	}

	s.log.StateTransition("posventa_form", formID.String(), string(domain.FormSubmitted), string(domain.FormReviewed), actorID.String())
	verdictName := ""
	if updated.Verdict != nil {
		verdictName = string(*updated.Verdict)
	}
	s.bus.Publish(ctx, events.PosventaFormReviewed{
		BaseEvent:   events.NewBaseEvent(),
		FormID:      updated.ID,
		SubmittedBy: updated.SubmittedBy,
		Verdict:     verdictName,
	})
	return s.withPlans(ctx, updated)
}

// rejectedTransition explains why a conditional update matched no row.
func (s *Service) rejectedTransition(ctx context.Context, formID uuid.UUID, validate func(domain.FormStatus) error) error {
	current, err := s.repo.GetForm(ctx, formID)
	if err != nil {
		return err
	}
	if err := validate(current.Status); err != nil {
		return err
	}
	return apperr.Conflict("posventa form changed concurrently, reload and retry")
}

func (s *Service) withPlans(ctx context.Context, form repository.Form) (transport.FormResponse, error) {
	plans, err := s.repo.ListPlans(ctx, form.ID)
	if err != nil {
		return transport.FormResponse{}, err
	}
	return toFormResponse(form, plans), nil
}

// loadForm returns the form when the actor may see it: staff, the submitter
// or the beneficiary of the unit.
func (s *Service) loadForm(ctx context.Context, formID, actorID uuid.UUID) (repository.Form, authz.Role, error) {
	role, err := s.auth.RoleOf(ctx, actorID)
	if err != nil {
		return repository.Form{}, "", err
	}
	form, err := s.repo.GetForm(ctx, formID)
	if err != nil {
		return repository.Form{}, "", err
	}
	if role.IsStaff() || form.SubmittedBy == actorID {
		return form, role, nil
	}
	unit, err := s.housing.HousingUnit(ctx, form.HousingUnitID)
	if err != nil {
		return repository.Form{}, "", err
	}
	if !isBeneficiaryOf(unit, actorID) {
		return repository.Form{}, "", apperr.Forbidden("posventa form belongs to another beneficiary")
	}
	return form, role, nil
}

func isBeneficiaryOf(unit HousingUnit, actorID uuid.UUID) bool {
	return unit.BeneficiaryID != nil && *unit.BeneficiaryID == actorID
}

func trimmed(v *string) *string {
	return sanitize.Optional(v)
}

func toFormResponse(f repository.Form, plans []repository.Plan) transport.FormResponse {
	var verdict *string
	if f.Verdict != nil {
		v := string(*f.Verdict)
		verdict = &v
	}
	items := make([]transport.PlanResponse, 0, len(plans))
	for _, p := range plans {
		items = append(items, toPlanResponse(p))
	}
	return transport.FormResponse{
		ID:            f.ID,
		HousingUnitID: f.HousingUnitID,
		SubmittedBy:   f.SubmittedBy,
		Status:        string(f.Status),
		Observations:  f.Observations,
		ReviewComment: f.ReviewComment,
		Verdict:       verdict,
		ReviewedBy:    f.ReviewedBy,
		Plans:         items,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
		SubmittedAt:   f.SubmittedAt,
		ReviewedAt:    f.ReviewedAt,
	}
}

func toPlanResponse(p repository.Plan) transport.PlanResponse {
	return transport.PlanResponse{
		ID:           p.ID,
		FormID:       p.FormID,
		FileName:     p.FileName,
		ContentType:  p.ContentType,
		SourceFormat: string(p.SourceFormat),
		SizeBytes:    p.SizeBytes,
		UploadedBy:   p.UploadedBy,
		CreatedAt:    p.CreatedAt,
	}
}
