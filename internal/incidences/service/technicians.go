package service

import (
	"context"
	"time"

	"techo_backend/internal/authz"
	"techo_backend/internal/incidences/repository"
	"techo_backend/internal/incidences/transport"
	"techo_backend/platform/apperr"

	"github.com/google/uuid"
)

const visitDateLayout = "2006-01-02"

// ListAvailableTechnicians returns active technicians ordered by current
// workload, then name, then id.
func (s *Service) ListAvailableTechnicians(ctx context.Context, actorID uuid.UUID) (transport.TechnicianListResponse, error) {
	if _, err := authz.Require(ctx, s.users, actorID, authz.Role.IsStaff, "list technicians"); err != nil {
		return transport.TechnicianListResponse{}, err
	}
	workloads, err := s.repo.TechnicianWorkloads(ctx)
	if err != nil {
		return transport.TechnicianListResponse{}, err
	}
	items := make([]transport.TechnicianResponse, 0, len(workloads))
	for _, w := range workloads {
		items = append(items, transport.TechnicianResponse{
			ID:               w.TechnicianID,
			Name:             w.Name,
			ActiveIncidences: w.ActiveCount,
		})
	}
	return transport.TechnicianListResponse{Items: items}, nil
}

// SuggestedVisits lists the technician's active incidences that have been
// idle longer than the visit window as of date (YYYY-MM-DD, UTC; today when
// empty). Technicians may only ask for themselves.
func (s *Service) SuggestedVisits(ctx context.Context, actorID, technicianID uuid.UUID, date string) (transport.SuggestedVisitListResponse, error) {
	role, err := s.users.RoleOf(ctx, actorID)
	if err != nil {
		return transport.SuggestedVisitListResponse{}, err
	}
	if !role.CanAssign() && !(role.IsTechnician() && actorID == technicianID) {
		return transport.SuggestedVisitListResponse{}, apperr.Forbidden("cannot view another technician's visits")
	}

	day := startOfDay(s.now())
	if date != "" {
		day, err = time.Parse(visitDateLayout, date)
		if err != nil {
			return transport.SuggestedVisitListResponse{}, apperr.Validation("date must be YYYY-MM-DD")
		}
	}

	cutoff, visits, err := s.SuggestedVisitsFor(ctx, technicianID, day)
	if err != nil {
		return transport.SuggestedVisitListResponse{}, err
	}

	items := make([]transport.SuggestedVisitResponse, 0, len(visits))
	for _, v := range visits {
		items = append(items, transport.SuggestedVisitResponse{
			Incidence:      toIncidenceResponse(v.Incidence),
			Address:        v.Address,
			ProjectID:      v.ProjectID,
			IdleSinceHours: int(day.Sub(v.UpdatedAt).Hours()),
		})
	}
	return transport.SuggestedVisitListResponse{
		TechnicianID: technicianID,
		Date:         day,
		Cutoff:       cutoff,
		Items:        items,
	}, nil
}

// SuggestedVisitsFor computes the cutoff for the UTC day containing day and
// returns the matching visits without authorization checks. The scheduler
// uses it for digests.
func (s *Service) SuggestedVisitsFor(ctx context.Context, technicianID uuid.UUID, day time.Time) (time.Time, []repository.VisitCandidate, error) {
	day = startOfDay(day)
	if _, err := s.users.GetUser(ctx, technicianID); err != nil {
		return time.Time{}, nil, err
	}
	cutoff := day.Add(-s.visitWindow)
	visits, err := s.repo.SuggestedVisits(ctx, technicianID, cutoff)
	if err != nil {
		return time.Time{}, nil, err
	}
	return cutoff, visits, nil
}

// startOfDay is midnight UTC of the day containing t.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
