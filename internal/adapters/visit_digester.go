package adapters

import (
	"context"
	"time"

	increpo "techo_backend/internal/incidences/repository"
	"techo_backend/internal/notification"

	"github.com/google/uuid"
)

// VisitPlanner computes the suggested visits of a technician for a day.
type VisitPlanner interface {
	SuggestedVisitsFor(ctx context.Context, technicianID uuid.UUID, day time.Time) (time.Time, []increpo.VisitCandidate, error)
}

// DigestMailer delivers a visit digest.
type DigestMailer interface {
	SendVisitDigest(ctx context.Context, technicianID uuid.UUID, date string, visits []notification.DigestVisit) error
}

// VisitDigester implements scheduler.VisitDigester by joining the visit
// planner of the incidences module with the notification module.
type VisitDigester struct {
	planner VisitPlanner
	mailer  DigestMailer
}

func NewVisitDigester(planner VisitPlanner, mailer DigestMailer) *VisitDigester {
	return &VisitDigester{planner: planner, mailer: mailer}
}

func (a *VisitDigester) SendVisitDigest(ctx context.Context, technicianID uuid.UUID, day time.Time) (int, error) {
	_, candidates, err := a.planner.SuggestedVisitsFor(ctx, technicianID, day)
	if err != nil {
		return 0, err
	}
	visits := make([]notification.DigestVisit, 0, len(candidates))
	for _, c := range candidates {
		visits = append(visits, notification.DigestVisit{
			IncidenceID: c.ID,
			Category:    c.Category,
			Address:     c.Address,
			Priority:    string(c.Priority),
			IdleSince:   c.UpdatedAt,
		})
	}
	if err := a.mailer.SendVisitDigest(ctx, technicianID, day.Format("2006-01-02"), visits); err != nil {
		return 0, err
	}
	return len(visits), nil
}
