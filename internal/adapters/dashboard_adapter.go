package adapters

import (
	"context"

	dashsvc "techo_backend/internal/dashboard/service"
	housingrepo "techo_backend/internal/housing/repository"
	incdomain "techo_backend/internal/incidences/domain"
	increpo "techo_backend/internal/incidences/repository"
	ratingdomain "techo_backend/internal/ratings/domain"

	"github.com/google/uuid"
)

// IncidenceProjections is the part of the incidences service the dashboard
// and the stale sweep read.
type IncidenceProjections interface {
	StatusCounts(ctx context.Context) (map[incdomain.Status]int, error)
	TechnicianWorkloads(ctx context.Context) ([]increpo.TechnicianWorkload, error)
}

// DashboardIncidences implements dashboard/service.IncidenceStats and
// scheduler.TechnicianLister.
type DashboardIncidences struct {
	incidences IncidenceProjections
}

func NewDashboardIncidences(incidences IncidenceProjections) *DashboardIncidences {
	return &DashboardIncidences{incidences: incidences}
}

func (a *DashboardIncidences) StatusCounts(ctx context.Context) (map[string]int, error) {
	counts, err := a.incidences.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	return out, nil
}

func (a *DashboardIncidences) TechnicianWorkloads(ctx context.Context) ([]dashsvc.Workload, error) {
	rows, err := a.incidences.TechnicianWorkloads(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dashsvc.Workload, 0, len(rows))
	for _, r := range rows {
		w := dashsvc.Workload{TechnicianID: r.TechnicianID, Active: r.ActiveCount}
		if r.Name != "" {
			name := r.Name
			w.Name = &name
		}
		out = append(out, w)
	}
	return out, nil
}

// BusyTechnicians returns technicians with at least one active incidence.
func (a *DashboardIncidences) BusyTechnicians(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := a.incidences.TechnicianWorkloads(ctx)
	if err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	for _, r := range rows {
		if r.ActiveCount > 0 {
			ids = append(ids, r.TechnicianID)
		}
	}
	return ids, nil
}

// TopRanking is the narrow interface over the ratings service ranking.
type TopRanking interface {
	TopTechnicians(ctx context.Context, limit int) ([]ratingdomain.TechnicianScore, error)
}

// DashboardRatings implements dashboard/service.RatingRanking.
type DashboardRatings struct {
	ratings TopRanking
}

func NewDashboardRatings(ratings TopRanking) *DashboardRatings {
	return &DashboardRatings{ratings: ratings}
}

func (a *DashboardRatings) TopTechnicians(ctx context.Context, limit int) ([]dashsvc.TechnicianScore, error) {
	rows, err := a.ratings.TopTechnicians(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dashsvc.TechnicianScore, 0, len(rows))
	for _, r := range rows {
		out = append(out, dashsvc.TechnicianScore{
			TechnicianID: r.TechnicianID,
			Name:         r.Name,
			Mean:         r.Mean,
			Count:        r.Count,
		})
	}
	return out, nil
}

// DeliveryCounter is the narrow interface over housing delivery totals.
type DeliveryCounter interface {
	DeliveryStats(ctx context.Context) (housingrepo.DeliveryStats, error)
}

// DashboardHousing implements dashboard/service.DeliveryStats.
type DashboardHousing struct {
	housing DeliveryCounter
}

func NewDashboardHousing(housing DeliveryCounter) *DashboardHousing {
	return &DashboardHousing{housing: housing}
}

func (a *DashboardHousing) DeliveryStats(ctx context.Context) (dashsvc.Delivery, error) {
	s, err := a.housing.DeliveryStats(ctx)
	if err != nil {
		return dashsvc.Delivery{}, err
	}
	return dashsvc.Delivery{Total: s.Total, Delivered: s.Delivered}, nil
}
