package scheduler

import (
	"context"
	"time"

	"techo_backend/platform/logger"

	"github.com/google/uuid"
)

// TechnicianLister returns the technicians that currently hold active work.
type TechnicianLister interface {
	BusyTechnicians(ctx context.Context) ([]uuid.UUID, error)
}

// DigestEnqueuer schedules a visit digest for one technician and day.
type DigestEnqueuer interface {
	EnqueueVisitDigest(ctx context.Context, technicianID uuid.UUID, day time.Time) error
}

// StaleSweep periodically queues visit digests so incidences idling in
// asignada or en_proceso reach their technician's inbox.
type StaleSweep struct {
	technicians TechnicianLister
	queue       DigestEnqueuer
	log         *logger.Logger
	interval    time.Duration
	now         func() time.Time
}

func NewStaleSweep(technicians TechnicianLister, queue DigestEnqueuer, log *logger.Logger, interval time.Duration) *StaleSweep {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &StaleSweep{
		technicians: technicians,
		queue:       queue,
		log:         log,
		interval:    interval,
		now:         time.Now,
	}
}

func (s *StaleSweep) Run(ctx context.Context) {
	if s == nil || s.technicians == nil || s.queue == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *StaleSweep) sweepOnce(ctx context.Context) int {
	ids, err := s.technicians.BusyTechnicians(ctx)
	if err != nil {
		s.log.Error("stale sweep failed to list technicians", "error", err)
		return 0
	}

	day := s.now().UTC()
	queued := 0
	for _, id := range ids {
		if err := s.queue.EnqueueVisitDigest(ctx, id, day); err != nil {
			s.log.UpstreamFailure("redis", "enqueue_visit_digest", err)
			continue
		}
		queued++
	}

	if queued > 0 {
		s.log.Info("stale sweep queued visit digests", "count", queued, "date", day.Format(dateLayout))
	}
	return queued
}
