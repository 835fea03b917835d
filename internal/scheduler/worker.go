package scheduler

import (
	"context"
	"fmt"
	"time"

	"techo_backend/platform/apperr"
	"techo_backend/platform/config"
	"techo_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// PlanPrewarmer converts a stored drawing ahead of its first view.
type PlanPrewarmer interface {
	PrewarmPlan(ctx context.Context, planID uuid.UUID) error
}

// VisitDigester sends a technician the incidences worth visiting on day and
// reports how many were listed.
type VisitDigester interface {
	SendVisitDigest(ctx context.Context, technicianID uuid.UUID, day time.Time) (int, error)
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	plans    PlanPrewarmer
	digester VisitDigester
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, plans PlanPrewarmer, digester VisitDigester, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newWorker(plans, digester, log)
	w.server = server
	return w, nil
}

func newWorker(plans PlanPrewarmer, digester VisitDigester, log *logger.Logger) *Worker {
	mux := asynq.NewServeMux()
	w := &Worker{mux: mux, plans: plans, digester: digester, log: log}
	mux.HandleFunc(TaskPlanConversion, w.handlePlanConversion)
	mux.HandleFunc(TaskVisitDigest, w.handleVisitDigest)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handlePlanConversion(ctx context.Context, task *asynq.Task) error {
	payload, err := ParsePlanConversionPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	planID, err := uuid.Parse(payload.PlanID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	started := time.Now()
	if err := w.plans.PrewarmPlan(ctx, planID); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			w.log.Warn("plan conversion skipped, plan not found", "planId", planID)
			return nil
		}
		w.log.UpstreamFailure("gotenberg", "prewarm_plan", err)
		return err
	}
	w.log.Info("plan prewarmed", "planId", planID, "duration_ms", time.Since(started).Milliseconds())
	return nil
}

func (w *Worker) handleVisitDigest(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseVisitDigestPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	technicianID, err := uuid.Parse(payload.TechnicianID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	day, err := time.Parse(dateLayout, payload.Date)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	count, err := w.digester.SendVisitDigest(ctx, technicianID, day)
	if err != nil {
		return err
	}
	w.log.Info("visit digest processed", "technicianId", technicianID, "date", payload.Date, "visits", count)
	return nil
}
