package service

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"techo_backend/internal/authz"
	"techo_backend/internal/authz/authztest"
	"techo_backend/internal/conversion"
	"techo_backend/internal/events"
	"techo_backend/internal/events/eventstest"
	"techo_backend/internal/evidence"
	"techo_backend/internal/evidence/evidencetest"
	"techo_backend/internal/posventa/domain"
	"techo_backend/internal/posventa/repository"
	"techo_backend/internal/posventa/transport"
	"techo_backend/platform/apperr"
	"techo_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	mu    sync.Mutex
	forms map[uuid.UUID]repository.Form
	plans map[uuid.UUID]repository.Plan
	units map[uuid.UUID]HousingUnit
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		forms: map[uuid.UUID]repository.Form{},
		plans: map[uuid.UUID]repository.Plan{},
		units: map[uuid.UUID]HousingUnit{},
	}
}

func (f *fakeRepo) addUnit(beneficiary uuid.UUID, delivered bool) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.units[id] = HousingUnit{ID: id, BeneficiaryID: &beneficiary, Delivered: delivered}
	return id
}

func (f *fakeRepo) HousingUnit(_ context.Context, id uuid.UUID) (HousingUnit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.units[id]
	if !ok {
		return HousingUnit{}, apperr.NotFound("housing unit not found")
	}
	return u, nil
}

func (f *fakeRepo) CreateForm(_ context.Context, p repository.CreateFormParams) (repository.Form, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	form := repository.Form{
		ID:            uuid.New(),
		HousingUnitID: p.HousingUnitID,
		SubmittedBy:   p.SubmittedBy,
		Status:        domain.FormDraft,
		Observations:  p.Observations,
		CreatedAt:     p.At,
		UpdatedAt:     p.At,
	}
	f.forms[form.ID] = form
	return form, nil
}

func (f *fakeRepo) GetForm(_ context.Context, id uuid.UUID) (repository.Form, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	form, ok := f.forms[id]
	if !ok {
		return repository.Form{}, apperr.NotFound("posventa form not found")
	}
	return form, nil
}

func (f *fakeRepo) ListForms(_ context.Context, p repository.ListFormsParams) ([]repository.Form, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []repository.Form{}
	for _, form := range f.forms {
		if p.Status != nil && form.Status != *p.Status {
			continue
		}
		if p.HousingUnitID != nil && form.HousingUnitID != *p.HousingUnitID {
			continue
		}
		if p.VisibleTo != nil {
			unit := f.units[form.HousingUnitID]
			owns := unit.BeneficiaryID != nil && *unit.BeneficiaryID == *p.VisibleTo
			if form.SubmittedBy != *p.VisibleTo && !owns {
				continue
			}
		}
		out = append(out, form)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, len(out), nil
}

func (f *fakeRepo) Submit(_ context.Context, id uuid.UUID, at time.Time) (repository.Form, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	form, ok := f.forms[id]
	if !ok || form.Status != domain.FormDraft {
		return repository.Form{}, false, nil
	}
	form.Status = domain.FormSubmitted
	form.SubmittedAt = &at
	form.UpdatedAt = at
	f.forms[id] = form
	return form, true, nil
}

func (f *fakeRepo) Review(_ context.Context, p repository.ReviewParams) (repository.Form, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	form, ok := f.forms[p.ID]
	if !ok || form.Status != domain.FormSubmitted {
		return repository.Form{}, false, nil
	}
	form.Status = domain.FormReviewed
	form.ReviewComment = p.Comment
	form.Verdict = p.Verdict
	form.ReviewedBy = &p.ReviewerID
	form.ReviewedAt = &p.At
	form.UpdatedAt = p.At
	f.forms[p.ID] = form
	return form, true, nil
}

func (f *fakeRepo) CreatePlan(_ context.Context, p repository.CreatePlanParams) (repository.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	plan := repository.Plan{
		ID:           uuid.New(),
		FormID:       p.FormID,
		FileName:     p.FileName,
		Bucket:       p.Bucket,
		FileKey:      p.FileKey,
		ContentType:  p.ContentType,
		SourceFormat: p.SourceFormat,
		SizeBytes:    p.SizeBytes,
		UploadedBy:   p.UploadedBy,
		CreatedAt:    time.Now().UTC(),
	}
	f.plans[plan.ID] = plan
	return plan, nil
}

func (f *fakeRepo) GetPlan(_ context.Context, id uuid.UUID) (repository.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	plan, ok := f.plans[id]
	if !ok {
		return repository.Plan{}, apperr.NotFound("posventa plan not found")
	}
	return plan, nil
}

func (f *fakeRepo) ListPlans(_ context.Context, formID uuid.UUID) ([]repository.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []repository.Plan{}
	for _, p := range f.plans {
		if p.FormID == formID {
			out = append(out, p)
		}
	}
	return out, nil
}

type countingConverter struct {
	calls atomic.Int32
}

func (c *countingConverter) Convert(_ context.Context, fileName, _ string, content []byte) ([]byte, error) {
	c.calls.Add(1)
	return append([]byte("%PDF "+fileName+" "), content...), nil
}

type recordingQueue struct {
	mu      sync.Mutex
	planIDs []uuid.UUID
	err     error
}

func (q *recordingQueue) EnqueuePlanConversion(_ context.Context, planID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.planIDs = append(q.planIDs, planID)
	return q.err
}

type fixture struct {
	svc         *Service
	repo        *fakeRepo
	store       *evidencetest.Store
	upstream    *countingConverter
	queue       *recordingQueue
	bus         *eventstest.Recorder
	beneficiary uuid.UUID
	stranger    uuid.UUID
	technician  uuid.UUID
	supervisor  uuid.UUID
	admin       uuid.UUID
	unit        uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newFakeRepo()
	dir := authztest.NewDirectory()
	store := evidencetest.New("plans", evidence.PlanPolicy(1<<20))
	upstream := &countingConverter{}
	conv := conversion.NewConverter(upstream, store, conversion.NewMemoryCache(), nil, conversion.Options{Version: "v1", TTL: time.Hour}, logger.Discard())
	queue := &recordingQueue{}
	bus := &eventstest.Recorder{}

	f := &fixture{
		repo:        repo,
		store:       store,
		upstream:    upstream,
		queue:       queue,
		bus:         bus,
		beneficiary: dir.Add("berta", authz.RoleBeneficiary),
		stranger:    dir.Add("bruno", authz.RoleBeneficiary),
		technician:  dir.Add("tomas", authz.RoleTechnician),
		supervisor:  dir.Add("sofia", authz.RoleSupervisor),
		admin:       dir.Add("ana", authz.RoleAdmin),
	}
	f.unit = repo.addUnit(f.beneficiary, true)
	f.svc = New(repo, dir, repo, store, conv, queue, bus, logger.Discard())
	return f
}

func (f *fixture) openForm(t *testing.T) transport.FormResponse {
	t.Helper()
	form, err := f.svc.Create(context.Background(), f.beneficiary, transport.CreateFormRequest{HousingUnitID: f.unit})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return form
}

func drawing(name, content string) evidence.File {
	return evidence.File{
		Name:        name,
		ContentType: "application/octet-stream",
		Size:        int64(len(content)),
		Reader:      bytes.NewReader([]byte(content)),
	}
}

func TestReviewRequiresSubmittedForm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.openForm(t)

	_, err := f.svc.Review(ctx, form.ID, f.technician, transport.ReviewFormRequest{Verdict: "aprobada"})
	if !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("expected invalid transition reviewing a draft, got %v", err)
	}
	if got, _ := f.repo.GetForm(ctx, form.ID); got.Status != domain.FormDraft || got.ReviewedBy != nil {
		t.Fatalf("draft changed after rejected review: %+v", got)
	}

	if _, err := f.svc.Submit(ctx, form.ID, f.beneficiary); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	comment := "  todo en orden  "
	reviewed, err := f.svc.Review(ctx, form.ID, f.technician, transport.ReviewFormRequest{Comment: &comment, Verdict: "aprobada"})
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if reviewed.Status != string(domain.FormReviewed) || reviewed.Verdict == nil || *reviewed.Verdict != "aprobada" {
		t.Fatalf("unexpected reviewed form %+v", reviewed)
	}
	if reviewed.ReviewComment == nil || *reviewed.ReviewComment != "todo en orden" {
		t.Fatalf("expected trimmed comment, got %v", reviewed.ReviewComment)
	}
	if n := len(f.bus.Named(events.PosventaFormReviewed{}.EventName())); n != 1 {
		t.Fatalf("expected one review event, got %d", n)
	}

	if _, err := f.svc.Review(ctx, form.ID, f.technician, transport.ReviewFormRequest{}); !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("expected invalid transition on second review, got %v", err)
	}
	if _, err := f.svc.Submit(ctx, form.ID, f.beneficiary); !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("expected invalid transition resubmitting, got %v", err)
	}
}

func TestReviewPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.openForm(t)
	if _, err := f.svc.Submit(ctx, form.ID, f.beneficiary); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	for _, actor := range []uuid.UUID{f.beneficiary, f.supervisor} {
		if _, err := f.svc.Review(ctx, form.ID, actor, transport.ReviewFormRequest{}); !apperr.Is(err, apperr.KindForbidden) {
			t.Fatalf("expected forbidden, got %v", err)
		}
	}
	if _, err := f.svc.Review(ctx, form.ID, f.admin, transport.ReviewFormRequest{Verdict: "quizas"}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation for unknown verdict, got %v", err)
	}
	if _, err := f.svc.Review(ctx, uuid.New(), f.admin, transport.ReviewFormRequest{}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateRequiresDeliveredUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pending := f.repo.addUnit(f.beneficiary, false)

	if _, err := f.svc.Create(ctx, f.beneficiary, transport.CreateFormRequest{HousingUnitID: pending}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation for undelivered unit, got %v", err)
	}
	if _, err := f.svc.Create(ctx, f.stranger, transport.CreateFormRequest{HousingUnitID: f.unit}); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden for another beneficiary, got %v", err)
	}
	if _, err := f.svc.Create(ctx, f.technician, transport.CreateFormRequest{HousingUnitID: f.unit}); err != nil {
		t.Fatalf("technician Create: %v", err)
	}
}

func TestListScopesBeneficiaries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.openForm(t)
	otherUnit := f.repo.addUnit(f.stranger, true)
	if _, err := f.svc.Create(ctx, f.stranger, transport.CreateFormRequest{HousingUnitID: otherUnit}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	mine, err := f.svc.List(ctx, f.beneficiary, transport.ListFormsRequest{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if mine.Total != 1 || mine.Items[0].HousingUnitID != f.unit {
		t.Fatalf("beneficiary should only see their form, got %+v", mine)
	}
	all, err := f.svc.List(ctx, f.supervisor, transport.ListFormsRequest{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if all.Total != 2 {
		t.Fatalf("expected supervisor to see 2 forms, got %d", all.Total)
	}
	if _, err := f.svc.Get(ctx, mine.Items[0].ID, f.stranger); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden for another beneficiary, got %v", err)
	}
}

func TestDrawingIsConvertedOnceAndCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.openForm(t)

	plan, err := f.svc.AttachPlan(ctx, form.ID, f.beneficiary, drawing("planta.dxf", "dxf-bytes"))
	if err != nil {
		t.Fatalf("AttachPlan: %v", err)
	}
	if plan.SourceFormat != string(domain.SourceDXF) || plan.ContentType != "image/vnd.dxf" {
		t.Fatalf("unexpected plan %+v", plan)
	}
	if len(f.queue.planIDs) != 1 || f.queue.planIDs[0] != plan.ID {
		t.Fatalf("expected drawing to be queued, got %v", f.queue.planIDs)
	}

	first, err := f.svc.GetPlan(ctx, plan.ID, f.beneficiary)
	if err != nil {
		t.Fatalf("first GetPlan: %v", err)
	}
	if !first.Converted || first.ContentType != "application/pdf" || first.URL == "" {
		t.Fatalf("expected converted pdf, got %+v", first)
	}
	second, err := f.svc.GetPlan(ctx, plan.ID, f.technician)
	if err != nil {
		t.Fatalf("second GetPlan: %v", err)
	}
	if second.URL != first.URL {
		t.Fatalf("expected cached rendition, got %q vs %q", second.URL, first.URL)
	}
	if n := f.upstream.calls.Load(); n != 1 {
		t.Fatalf("expected one upstream conversion, got %d", n)
	}
	if _, err := f.svc.GetPlan(ctx, plan.ID, f.stranger); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden for another beneficiary, got %v", err)
	}
}

func TestDWGPlanIsServedWithoutConversion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.openForm(t)

	plan, err := f.svc.AttachPlan(ctx, form.ID, f.beneficiary, drawing("planta.dwg", "dwg-bytes"))
	if err != nil {
		t.Fatalf("AttachPlan: %v", err)
	}
	if plan.SourceFormat != string(domain.SourceDWG) || plan.ContentType != "image/vnd.dwg" {
		t.Fatalf("unexpected plan %+v", plan)
	}
	if len(f.queue.planIDs) != 0 {
		t.Fatalf("dwg should not be queued, got %v", f.queue.planIDs)
	}
	if err := f.svc.PrewarmPlan(ctx, plan.ID); err != nil {
		t.Fatalf("PrewarmPlan: %v", err)
	}

	got, err := f.svc.GetPlan(ctx, plan.ID, f.beneficiary)
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if got.Converted || got.ContentType != "image/vnd.dwg" || got.URL == "" {
		t.Fatalf("expected the original drawing, got %+v", got)
	}
	if n := f.upstream.calls.Load(); n != 0 {
		t.Fatalf("expected no conversion for dwg, got %d", n)
	}
}

func TestPrewarmThenViewSkipsConversion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.openForm(t)
	plan, err := f.svc.AttachPlan(ctx, form.ID, f.beneficiary, drawing("corte.dxf", "dxf-bytes"))
	if err != nil {
		t.Fatalf("AttachPlan: %v", err)
	}

	if err := f.svc.PrewarmPlan(ctx, plan.ID); err != nil {
		t.Fatalf("PrewarmPlan: %v", err)
	}
	if _, err := f.svc.GetPlan(ctx, plan.ID, f.admin); err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if n := f.upstream.calls.Load(); n != 1 {
		t.Fatalf("expected prewarm to be reused, got %d conversions", n)
	}
}

func TestPDFPlanIsServedAsIs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.openForm(t)
	plan, err := f.svc.AttachPlan(ctx, form.ID, f.beneficiary, evidence.File{
		Name: "memoria.pdf", ContentType: "application/pdf", Size: 4, Reader: bytes.NewReader([]byte("%PDF")),
	})
	if err != nil {
		t.Fatalf("AttachPlan: %v", err)
	}
	if len(f.queue.planIDs) != 0 {
		t.Fatalf("pdf should not be queued, got %v", f.queue.planIDs)
	}
	got, err := f.svc.GetPlan(ctx, plan.ID, f.beneficiary)
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if got.Converted || got.ContentType != "application/pdf" {
		t.Fatalf("unexpected download %+v", got)
	}
	if n := f.upstream.calls.Load(); n != 0 {
		t.Fatalf("expected no conversion, got %d", n)
	}
}

func TestAttachPlanGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.openForm(t)

	if _, err := f.svc.AttachPlan(ctx, form.ID, f.supervisor, drawing("a.dwg", "x")); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden for supervisor, got %v", err)
	}
	if _, err := f.svc.AttachPlan(ctx, form.ID, f.beneficiary, drawing("virus.exe", "x")); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation for unsupported type, got %v", err)
	}

	f.queue.err = errors.New("redis down")
	if _, err := f.svc.AttachPlan(ctx, form.ID, f.beneficiary, drawing("b.dxf", "y")); err != nil {
		t.Fatalf("enqueue failure should not fail the upload: %v", err)
	}

	if _, err := f.svc.Submit(ctx, form.ID, f.beneficiary); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := f.svc.Review(ctx, form.ID, f.admin, transport.ReviewFormRequest{}); err != nil {
		t.Fatalf("Review: %v", err)
	}
	if _, err := f.svc.AttachPlan(ctx, form.ID, f.beneficiary, drawing("c.dwg", "z")); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on reviewed form, got %v", err)
	}
	if n := len(f.bus.Named(events.PosventaPlanAttached{}.EventName())); n != 1 {
		t.Fatalf("expected one plan event, got %d", n)
	}
}
