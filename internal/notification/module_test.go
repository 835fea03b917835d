package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"techo_backend/internal/authz"
	"techo_backend/internal/authz/authztest"
	"techo_backend/internal/email"
	"techo_backend/internal/events"
	"techo_backend/internal/notification/inapp"
	"techo_backend/platform/apperr"
	"techo_backend/platform/logger"

	"github.com/google/uuid"
)

type testNotificationConfig struct{}

func (testNotificationConfig) GetAppBaseURL() string { return "https://app.example.com/" }

type sentEmail struct {
	kind string
	to   string
	url  string
}

type testSender struct {
	mu     sync.Mutex
	sent   []sentEmail
	visits []email.VisitItem
	err    error
}

func (s *testSender) record(kind, to, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentEmail{kind: kind, to: to, url: url})
	return s.err
}

func (s *testSender) SendAssignmentNotice(_ context.Context, to, _, _, url string) error {
	return s.record("assignment", to, url)
}

func (s *testSender) SendRatingInvitation(_ context.Context, to, _, _, url string) error {
	return s.record("rating", to, url)
}

func (s *testSender) SendPosventaReviewed(_ context.Context, to, _, _, url string) error {
	return s.record("posventa", to, url)
}

func (s *testSender) SendVisitDigest(_ context.Context, to, _, _ string, visits []email.VisitItem) error {
	s.visits = visits
	return s.record("digest", to, "")
}

type memoryStore struct {
	mu    sync.Mutex
	items []inapp.Notification
}

func (s *memoryStore) Insert(_ context.Context, d inapp.Draft) (inapp.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := inapp.Notification{
		ID: uuid.New(), UserID: d.UserID, Title: d.Title, Body: d.Body,
		Resource: d.Resource, Level: d.Level, CreatedAt: time.Now(),
	}
	s.items = append(s.items, n)
	return n, nil
}

func (s *memoryStore) Inbox(_ context.Context, userID uuid.UUID, limit, offset int) ([]inapp.Notification, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []inapp.Notification{}
	for _, n := range s.items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	total := len(out)
	if offset >= total {
		return []inapp.Notification{}, total, nil
	}
	return out[offset:min(offset+limit, total)], total, nil
}

func (s *memoryStore) CountUnread(_ context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, item := range s.items {
		if item.UserID == userID && !item.Read {
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) MarkRead(_ context.Context, userID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id && s.items[i].UserID == userID {
			s.items[i].Read = true
			return nil
		}
	}
	return apperr.NotFound("notification not found")
}

func (s *memoryStore) MarkAllRead(_ context.Context, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.items {
		if s.items[i].UserID == userID && !s.items[i].Read {
			s.items[i].Read = true
			n++
		}
	}
	return n, nil
}

type fakeIncidences map[uuid.UUID]Incidence

func (f fakeIncidences) NotificationIncidence(_ context.Context, id uuid.UUID) (Incidence, error) {
	inc, ok := f[id]
	if !ok {
		return Incidence{}, apperr.NotFound("incidence not found")
	}
	return inc, nil
}

type fixture struct {
	module      *Module
	store       *memoryStore
	sender      *testSender
	beneficiary uuid.UUID
	technician  uuid.UUID
	supervisor  uuid.UUID
	incidence   Incidence
}

func newFixture() *fixture {
	dir := authztest.NewDirectory()
	f := &fixture{
		store:       &memoryStore{},
		sender:      &testSender{},
		beneficiary: dir.Add("berta", authz.RoleBeneficiary),
		technician:  dir.Add("tomas", authz.RoleTechnician),
		supervisor:  dir.Add("sofia", authz.RoleSupervisor),
	}
	f.incidence = Incidence{ID: uuid.New(), ReporterID: f.beneficiary, TechnicianID: &f.technician, Category: "Filtración", Status: "asignada"}
	incs := fakeIncidences{f.incidence.ID: f.incidence}
	f.module = New(f.store, f.sender, dir, incs, testNotificationConfig{}, logger.Discard())
	return f
}

func (f *fixture) notificationsFor(userID uuid.UUID) []inapp.Notification {
	items, _, _ := f.store.Inbox(context.Background(), userID, 100, 0)
	return items
}

func TestAssignmentNotifiesTechnician(t *testing.T) {
	f := newFixture()
	err := f.module.Handle(context.Background(), events.IncidenceAssigned{
		BaseEvent: events.NewBaseEvent(), IncidenceID: f.incidence.ID, TechnicianID: f.technician, ActorID: f.supervisor,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if n := len(f.notificationsFor(f.technician)); n != 1 {
		t.Fatalf("expected one in-app notification for technician, got %d", n)
	}
	if len(f.sender.sent) != 1 || f.sender.sent[0].kind != "assignment" || f.sender.sent[0].to != "tomas@example.test" {
		t.Fatalf("unexpected emails %+v", f.sender.sent)
	}
	if want := "https://app.example.com/incidencias/" + f.incidence.ID.String(); f.sender.sent[0].url != want {
		t.Fatalf("expected link %q, got %q", want, f.sender.sent[0].url)
	}
}

func TestClaimDoesNotNotifyTechnician(t *testing.T) {
	f := newFixture()
	err := f.module.Handle(context.Background(), events.IncidenceAssigned{
		BaseEvent: events.NewBaseEvent(), IncidenceID: f.incidence.ID, TechnicianID: f.technician, ActorID: f.technician, Claimed: true,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(f.store.items) != 0 || len(f.sender.sent) != 0 {
		t.Fatalf("claim should not notify, got %d notifications and %d emails", len(f.store.items), len(f.sender.sent))
	}
}

func TestResolvedInvitesReporterToRate(t *testing.T) {
	f := newFixture()
	f.sender.err = errors.New("smtp unavailable")
	err := f.module.Handle(context.Background(), events.IncidenceResolved{
		BaseEvent: events.NewBaseEvent(), IncidenceID: f.incidence.ID, ReporterID: f.beneficiary, TechnicianID: f.technician,
	})
	if err != nil {
		t.Fatalf("email failure must not fail the handler: %v", err)
	}
	items := f.notificationsFor(f.beneficiary)
	if len(items) != 1 || items[0].Level != inapp.LevelSuccess {
		t.Fatalf("unexpected notifications %+v", items)
	}
	if len(f.sender.sent) != 1 || f.sender.sent[0].kind != "rating" {
		t.Fatalf("expected rating invitation attempt, got %+v", f.sender.sent)
	}
}

func TestCommentNotifiesOtherParty(t *testing.T) {
	f := newFixture()
	err := f.module.Handle(context.Background(), events.CommentAdded{
		BaseEvent: events.NewBaseEvent(), IncidenceID: f.incidence.ID, CommentID: uuid.New(), AuthorID: f.technician,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(f.notificationsFor(f.beneficiary)) != 1 || len(f.notificationsFor(f.technician)) != 0 {
		t.Fatalf("expected only the reporter to be notified, got %+v", f.store.items)
	}
}

func TestPosventaReviewedNotifiesSubmitter(t *testing.T) {
	f := newFixture()
	formID := uuid.New()
	err := f.module.Handle(context.Background(), events.PosventaFormReviewed{
		BaseEvent: events.NewBaseEvent(), FormID: formID, SubmittedBy: f.beneficiary, Verdict: "rechazada",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	items := f.notificationsFor(f.beneficiary)
	if len(items) != 1 || items[0].Level != inapp.LevelWarning || items[0].Resource.ID != formID {
		t.Fatalf("unexpected notifications %+v", items)
	}
	if f.sender.sent[0].url != "https://app.example.com/posventa/"+formID.String() {
		t.Fatalf("unexpected link %q", f.sender.sent[0].url)
	}
}

func TestSendVisitDigest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if err := f.module.SendVisitDigest(ctx, f.technician, "2026-03-10", nil); err != nil {
		t.Fatalf("empty digest: %v", err)
	}
	if len(f.sender.sent) != 0 {
		t.Fatalf("empty digest should not send, got %+v", f.sender.sent)
	}

	visits := []DigestVisit{{IncidenceID: f.incidence.ID, Category: "Filtración", Address: "Pasaje 1 #12", Priority: "alta"}}
	if err := f.module.SendVisitDigest(ctx, f.technician, "2026-03-10", visits); err != nil {
		t.Fatalf("SendVisitDigest: %v", err)
	}
	if len(f.sender.visits) != 1 || f.sender.visits[0].URL != "https://app.example.com/incidencias/"+f.incidence.ID.String() {
		t.Fatalf("unexpected digest items %+v", f.sender.visits)
	}
}

func TestInAppReadFlow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for range 2 {
		if err := f.module.Handle(ctx, events.IncidenceResolved{BaseEvent: events.NewBaseEvent(), IncidenceID: f.incidence.ID, ReporterID: f.beneficiary}); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}
	svc := f.module.inApp
	if n, _ := svc.CountUnread(ctx, f.beneficiary); n != 2 {
		t.Fatalf("expected 2 unread, got %d", n)
	}
	page, err := svc.Inbox(ctx, f.beneficiary, 1, 1)
	if err != nil || page.Total != 2 || len(page.Items) != 1 || page.Size != 1 {
		t.Fatalf("unexpected page %+v %v", page, err)
	}
	first := page.Items[0]
	if err := svc.MarkRead(ctx, f.beneficiary, first.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if err := svc.MarkRead(ctx, f.technician, first.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for someone else's notification, got %v", err)
	}
	updated, err := svc.MarkAllRead(ctx, f.beneficiary)
	if err != nil || updated != 1 {
		t.Fatalf("MarkAllRead = %d, %v", updated, err)
	}
	if n, _ := svc.CountUnread(ctx, f.beneficiary); n != 0 {
		t.Fatalf("expected 0 unread, got %d", n)
	}
}

func TestSendRejectsUnknownLevel(t *testing.T) {
	f := newFixture()
	err := f.module.inApp.Send(context.Background(), inapp.Draft{
		UserID: f.beneficiary, Title: "Aviso", Body: "Texto", Level: "urgent",
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.store.items) != 0 {
		t.Fatalf("nothing should be stored, got %+v", f.store.items)
	}
}

func TestInboxClampsPageSize(t *testing.T) {
	f := newFixture()
	page, err := f.module.inApp.Inbox(context.Background(), f.beneficiary, 0, 500)
	if err != nil {
		t.Fatalf("Inbox: %v", err)
	}
	if page.Page != 1 || page.Size != 50 || page.Items == nil {
		t.Fatalf("unexpected page %+v", page)
	}
}
