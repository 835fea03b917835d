package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"techo_backend/platform/apperr"
	"techo_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type fakePrewarmer struct {
	calls []uuid.UUID
	err   error
}

func (f *fakePrewarmer) PrewarmPlan(_ context.Context, planID uuid.UUID) error {
	f.calls = append(f.calls, planID)
	return f.err
}

type fakeDigester struct {
	technician uuid.UUID
	day        time.Time
}

func (f *fakeDigester) SendVisitDigest(_ context.Context, technicianID uuid.UUID, day time.Time) (int, error) {
	f.technician = technicianID
	f.day = day
	return 2, nil
}

func TestPlanConversionTask(t *testing.T) {
	plans := &fakePrewarmer{}
	w := newWorker(plans, &fakeDigester{}, logger.Discard())

	planID := uuid.New()
	task, err := NewPlanConversionTask(PlanConversionPayload{PlanID: planID.String()})
	if err != nil {
		t.Fatalf("NewPlanConversionTask: %v", err)
	}
	if err := w.handlePlanConversion(context.Background(), task); err != nil {
		t.Fatalf("handlePlanConversion: %v", err)
	}
	if len(plans.calls) != 1 || plans.calls[0] != planID {
		t.Fatalf("expected prewarm of %s, got %v", planID, plans.calls)
	}
}

func TestPlanConversionMissingPlanIsDropped(t *testing.T) {
	plans := &fakePrewarmer{err: apperr.NotFound("plan not found")}
	w := newWorker(plans, &fakeDigester{}, logger.Discard())

	task, _ := NewPlanConversionTask(PlanConversionPayload{PlanID: uuid.NewString()})
	if err := w.handlePlanConversion(context.Background(), task); err != nil {
		t.Fatalf("expected missing plan to be dropped, got %v", err)
	}
}

func TestPlanConversionUpstreamFailureRetries(t *testing.T) {
	plans := &fakePrewarmer{err: apperr.Upstream("document conversion failed", errors.New("502"))}
	w := newWorker(plans, &fakeDigester{}, logger.Discard())

	task, _ := NewPlanConversionTask(PlanConversionPayload{PlanID: uuid.NewString()})
	err := w.handlePlanConversion(context.Background(), task)
	if err == nil || errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected a retryable error, got %v", err)
	}
}

func TestMalformedPayloadSkipsRetry(t *testing.T) {
	w := newWorker(&fakePrewarmer{}, &fakeDigester{}, logger.Discard())

	bad := asynq.NewTask(TaskPlanConversion, []byte(`{"planId":"nope"}`))
	if err := w.handlePlanConversion(context.Background(), bad); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}

	badDate, _ := NewVisitDigestTask(VisitDigestPayload{TechnicianID: uuid.NewString(), Date: "16/10/2026"})
	if err := w.handleVisitDigest(context.Background(), badDate); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for bad date, got %v", err)
	}
}

func TestVisitDigestTask(t *testing.T) {
	digester := &fakeDigester{}
	w := newWorker(&fakePrewarmer{}, digester, logger.Discard())

	tech := uuid.New()
	task, _ := NewVisitDigestTask(VisitDigestPayload{TechnicianID: tech.String(), Date: "2026-10-16"})
	if err := w.handleVisitDigest(context.Background(), task); err != nil {
		t.Fatalf("handleVisitDigest: %v", err)
	}
	if digester.technician != tech {
		t.Fatalf("digest sent to %s, want %s", digester.technician, tech)
	}
	if want := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC); !digester.day.Equal(want) {
		t.Fatalf("digest day %v, want %v", digester.day, want)
	}
}

type staticTechnicians struct {
	ids []uuid.UUID
	err error
}

func (s staticTechnicians) BusyTechnicians(context.Context) ([]uuid.UUID, error) {
	return s.ids, s.err
}

type recordingEnqueuer struct {
	mu     sync.Mutex
	queued []uuid.UUID
	failOn uuid.UUID
}

func (r *recordingEnqueuer) EnqueueVisitDigest(_ context.Context, technicianID uuid.UUID, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if technicianID == r.failOn {
		return errors.New("redis down")
	}
	r.queued = append(r.queued, technicianID)
	return nil
}

func TestStaleSweepQueuesBusyTechnicians(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	queue := &recordingEnqueuer{failOn: b}
	sweep := NewStaleSweep(staticTechnicians{ids: []uuid.UUID{a, b, c}}, queue, logger.Discard(), time.Hour)

	if n := sweep.sweepOnce(context.Background()); n != 2 {
		t.Fatalf("expected 2 digests queued, got %d", n)
	}
	if len(queue.queued) != 2 || queue.queued[0] != a || queue.queued[1] != c {
		t.Fatalf("unexpected queue %v", queue.queued)
	}
}

func TestStaleSweepListFailure(t *testing.T) {
	queue := &recordingEnqueuer{}
	sweep := NewStaleSweep(staticTechnicians{err: errors.New("db down")}, queue, logger.Discard(), 0)

	if n := sweep.sweepOnce(context.Background()); n != 0 {
		t.Fatalf("expected nothing queued, got %d", n)
	}
	if sweep.interval != 6*time.Hour {
		t.Fatalf("expected default interval, got %v", sweep.interval)
	}
}

func TestStaleSweepStopsWithContext(t *testing.T) {
	sweep := NewStaleSweep(staticTechnicians{}, &recordingEnqueuer{}, logger.Discard(), time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweep.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not stop after cancel")
	}
}

func TestRedisClientOpt(t *testing.T) {
	opt, err := redisClientOpt("rediss://:secret@cache.internal:6380/2", true)
	if err != nil {
		t.Fatalf("redisClientOpt: %v", err)
	}
	if opt.Addr != "cache.internal:6380" || opt.Password != "secret" || opt.DB != 2 {
		t.Fatalf("unexpected opts %+v", opt)
	}
	if opt.TLSConfig == nil || !opt.TLSConfig.InsecureSkipVerify {
		t.Fatal("expected insecure TLS config")
	}
}
