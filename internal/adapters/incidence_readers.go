package adapters

import (
	"context"

	increpo "techo_backend/internal/incidences/repository"
	"techo_backend/internal/notification"
	ratingsvc "techo_backend/internal/ratings/service"

	"github.com/google/uuid"
)

// IncidenceLookup is the narrow interface for reading an incidence without
// authorization checks.
type IncidenceLookup interface {
	Lookup(ctx context.Context, id uuid.UUID) (increpo.Incidence, error)
}

// RatingTargets implements ratings/service.IncidenceReader.
type RatingTargets struct {
	incidences IncidenceLookup
}

func NewRatingTargets(incidences IncidenceLookup) *RatingTargets {
	return &RatingTargets{incidences: incidences}
}

// RatingTarget reports who may rate the incidence and whether it can be rated yet.
func (a *RatingTargets) RatingTarget(ctx context.Context, incidenceID uuid.UUID) (ratingsvc.Incidence, error) {
	inc, err := a.incidences.Lookup(ctx, incidenceID)
	if err != nil {
		return ratingsvc.Incidence{}, err
	}
	return ratingsvc.Incidence{
		ID:           inc.ID,
		ReporterID:   inc.ReporterID,
		TechnicianID: inc.TechnicianID,
		Rateable:     inc.Status.IsRateable(),
	}, nil
}

// NotificationIncidences implements notification.IncidenceReader.
type NotificationIncidences struct {
	incidences IncidenceLookup
}

func NewNotificationIncidences(incidences IncidenceLookup) *NotificationIncidences {
	return &NotificationIncidences{incidences: incidences}
}

func (a *NotificationIncidences) NotificationIncidence(ctx context.Context, id uuid.UUID) (notification.Incidence, error) {
	inc, err := a.incidences.Lookup(ctx, id)
	if err != nil {
		return notification.Incidence{}, err
	}
	return notification.Incidence{
		ID:           inc.ID,
		ReporterID:   inc.ReporterID,
		TechnicianID: inc.TechnicianID,
		Category:     inc.Category,
		Status:       string(inc.Status),
	}, nil
}
