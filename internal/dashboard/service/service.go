package service

import (
	"context"
	"time"

	"techo_backend/internal/authz"
	"techo_backend/internal/dashboard/transport"
	incdomain "techo_backend/internal/incidences/domain"
	"techo_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultTopN = 10

const (
	projectionStatusCounts = "statusCounts"
	projectionWorkloads    = "workloads"
	projectionRanking      = "topTechnicians"
	projectionDelivery     = "delivery"
)

// Service aggregates read-only projections from the other modules.
type Service struct {
	auth       authz.Authorizer
	incidences IncidenceStats
	ratings    RatingRanking
	housing    DeliveryStats
	log        *logger.Logger
	now        func() time.Time
}

// New creates a new dashboard service.
func New(auth authz.Authorizer, incidences IncidenceStats, ratings RatingRanking, housing DeliveryStats, log *logger.Logger) *Service {
	return &Service{
		auth:       auth,
		incidences: incidences,
		ratings:    ratings,
		housing:    housing,
		log:        log,
		now:        time.Now,
	}
}

// Summary returns the dashboard snapshot for supervisors and admins.
func (s *Service) Summary(ctx context.Context, actorID uuid.UUID, topN int) (transport.SummaryResponse, error) {
	if _, err := authz.Require(ctx, s.auth, actorID, authz.Role.CanViewDashboard, "view the dashboard"); err != nil {
		return transport.SummaryResponse{}, err
	}
	return s.Build(ctx, topN), nil
}

// Build fetches every projection concurrently. A failing projection is
// logged, listed in Warnings and left empty.
func (s *Service) Build(ctx context.Context, topN int) transport.SummaryResponse {
	if topN < 1 {
		topN = defaultTopN
	}

	var (
		counts    map[string]int
		workloads []Workload
		ranking   []TechnicianScore
		delivery  Delivery
		failed    [4]bool
	)

	var g errgroup.Group
	g.Go(func() error {
		var err error
		counts, err = s.incidences.StatusCounts(ctx)
		failed[0] = s.warn(ctx, projectionStatusCounts, err)
		return nil
	})
	g.Go(func() error {
		var err error
		workloads, err = s.incidences.TechnicianWorkloads(ctx)
		failed[1] = s.warn(ctx, projectionWorkloads, err)
		return nil
	})
	g.Go(func() error {
		var err error
		ranking, err = s.ratings.TopTechnicians(ctx, topN)
		failed[2] = s.warn(ctx, projectionRanking, err)
		return nil
	})
	g.Go(func() error {
		var err error
		delivery, err = s.housing.DeliveryStats(ctx)
		failed[3] = s.warn(ctx, projectionDelivery, err)
		return nil
	})
	_ = g.Wait()

	warnings := make([]string, 0)
	for i, name := range []string{projectionStatusCounts, projectionWorkloads, projectionRanking, projectionDelivery} {
		if failed[i] {
			warnings = append(warnings, name)
		}
	}
	if failed[0] {
		counts = nil
	}
	if failed[1] {
		workloads = nil
	}
	if failed[2] {
		ranking = nil
	}
	if failed[3] {
		delivery = Delivery{}
	}

	return transport.SummaryResponse{
		GeneratedAt:    s.now().UTC(),
		StatusCounts:   zeroFilled(counts),
		Workloads:      toWorkloadEntries(workloads),
		TopTechnicians: toRankingEntries(ranking),
		Delivery:       toDeliveryEntry(delivery),
		Warnings:       warnings,
	}
}

func (s *Service) warn(ctx context.Context, projection string, err error) bool {
	if err == nil {
		return false
	}
	s.log.WithContext(ctx).Warn("dashboard projection unavailable", "projection", projection, "error", err)
	return true
}

// zeroFilled reports every incidence status, including those without rows.
func zeroFilled(counts map[string]int) map[string]int {
	out := make(map[string]int, len(incdomain.AllStatuses))
	for _, st := range incdomain.AllStatuses {
		out[string(st)] = counts[string(st)]
	}
	return out
}

func toWorkloadEntries(items []Workload) []transport.WorkloadEntry {
	out := make([]transport.WorkloadEntry, 0, len(items))
	for _, w := range items {
		out = append(out, transport.WorkloadEntry{
			TechnicianID:     w.TechnicianID,
			TechnicianName:   w.Name,
			ActiveIncidences: w.Active,
		})
	}
	return out
}

func toRankingEntries(items []TechnicianScore) []transport.RankingEntry {
	out := make([]transport.RankingEntry, 0, len(items))
	for i, sc := range items {
		out = append(out, transport.RankingEntry{
			Position:       i + 1,
			TechnicianID:   sc.TechnicianID,
			TechnicianName: sc.Name,
			Mean:           sc.Mean,
			Count:          sc.Count,
		})
	}
	return out
}

func toDeliveryEntry(d Delivery) transport.DeliveryEntry {
	entry := transport.DeliveryEntry{Total: d.Total, Delivered: d.Delivered}
	if d.Total > 0 {
		entry.CompletionRate = float64(d.Delivered) / float64(d.Total)
	}
	return entry
}
