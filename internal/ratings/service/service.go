package service

import (
	"context"
	"time"

	"techo_backend/internal/authz"
	"techo_backend/internal/events"
	"techo_backend/internal/ratings/domain"
	"techo_backend/internal/ratings/repository"
	"techo_backend/internal/ratings/transport"
	"techo_backend/platform/apperr"
	"techo_backend/platform/logger"
	"techo_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Incidence is the part of an incidence a rating depends on.
type Incidence struct {
	ID           uuid.UUID
	ReporterID   uuid.UUID
	TechnicianID *uuid.UUID
	Rateable     bool
}

// IncidenceReader resolves incidences owned by the incidences module.
type IncidenceReader interface {
	RatingTarget(ctx context.Context, incidenceID uuid.UUID) (Incidence, error)
}

// Service provides business logic for ratings.
type Service struct {
	repo       repository.Repository
	auth       authz.Authorizer
	incidences IncidenceReader
	bus        events.Bus
	log        *logger.Logger
	now        func() time.Time
}

// New creates a new ratings service.
func New(repo repository.Repository, auth authz.Authorizer, incidences IncidenceReader, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, auth: auth, incidences: incidences, bus: bus, log: log, now: time.Now}
}

// Create records the reporter's rating of the technician who resolved the
// incidence. Administrators may rate on the reporter's behalf.
func (s *Service) Create(ctx context.Context, incidenceID, actorID uuid.UUID, req transport.CreateRatingRequest) (transport.RatingResponse, error) {
	if err := domain.ValidateScore(req.Score); err != nil {
		return transport.RatingResponse{}, err
	}
	role, err := s.auth.RoleOf(ctx, actorID)
	if err != nil {
		return transport.RatingResponse{}, err
	}
	inc, err := s.incidences.RatingTarget(ctx, incidenceID)
	if err != nil {
		return transport.RatingResponse{}, err
	}
	if inc.ReporterID != actorID && !role.IsAdmin() {
		return transport.RatingResponse{}, apperr.Forbidden("only the reporter may rate this incidence")
	}
	if !inc.Rateable || inc.TechnicianID == nil {
		return transport.RatingResponse{}, apperr.Validation("incidence must be resolved by a technician before it can be rated")
	}

	rating, err := s.repo.Create(ctx, repository.CreateParams{
		IncidenceID:  inc.ID,
		TechnicianID: *inc.TechnicianID,
		RaterID:      inc.ReporterID,
		Score:        req.Score,
		Comment:      cleanComment(req.Comment),
		At:           s.now().UTC(),
	})
	if err != nil {
		return transport.RatingResponse{}, err
	}

	s.log.WithContext(ctx).Info("rating created", "ratingId", rating.ID, "incidenceId", rating.IncidenceID, "score", rating.Score)
	s.bus.Publish(ctx, events.RatingCreated{
		BaseEvent:    events.NewBaseEvent(),
		RatingID:     rating.ID,
		IncidenceID:  rating.IncidenceID,
		TechnicianID: rating.TechnicianID,
		Score:        rating.Score,
	})
	return toResponse(rating), nil
}

// Update replaces score and comment. Only the author or an administrator may update.
func (s *Service) Update(ctx context.Context, ratingID, actorID uuid.UUID, req transport.UpdateRatingRequest) (transport.RatingResponse, error) {
	if err := domain.ValidateScore(req.Score); err != nil {
		return transport.RatingResponse{}, err
	}
	if _, err := s.loadOwned(ctx, ratingID, actorID); err != nil {
		return transport.RatingResponse{}, err
	}
	rating, err := s.repo.Update(ctx, repository.UpdateParams{
		ID:      ratingID,
		Score:   req.Score,
		Comment: cleanComment(req.Comment),
		At:      s.now().UTC(),
	})
	if err != nil {
		return transport.RatingResponse{}, err
	}
	return toResponse(rating), nil
}

// Delete removes a rating. Only the author or an administrator may delete.
func (s *Service) Delete(ctx context.Context, ratingID, actorID uuid.UUID) error {
	if _, err := s.loadOwned(ctx, ratingID, actorID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, ratingID); err != nil {
		return err
	}
	s.log.WithContext(ctx).Info("rating deleted", "ratingId", ratingID, "actorId", actorID)
	return nil
}

// Get returns a rating visible to the actor.
func (s *Service) Get(ctx context.Context, ratingID, actorID uuid.UUID) (transport.RatingResponse, error) {
	role, err := s.auth.RoleOf(ctx, actorID)
	if err != nil {
		return transport.RatingResponse{}, err
	}
	rating, err := s.repo.GetByID(ctx, ratingID)
	if err != nil {
		return transport.RatingResponse{}, err
	}
	if !canView(rating, actorID, role) {
		return transport.RatingResponse{}, apperr.Forbidden("rating not visible")
	}
	return toResponse(rating), nil
}

// GetByIncidence returns the rating of an incidence.
func (s *Service) GetByIncidence(ctx context.Context, incidenceID, actorID uuid.UUID) (transport.RatingResponse, error) {
	role, err := s.auth.RoleOf(ctx, actorID)
	if err != nil {
		return transport.RatingResponse{}, err
	}
	rating, err := s.repo.GetByIncidence(ctx, incidenceID)
	if err != nil {
		return transport.RatingResponse{}, err
	}
	if !canView(rating, actorID, role) {
		return transport.RatingResponse{}, apperr.Forbidden("rating not visible")
	}
	return toResponse(rating), nil
}

// Ranking returns technicians by mean score desc, count desc, id asc.
func (s *Service) Ranking(ctx context.Context, actorID uuid.UUID, limit int) (transport.RankingResponse, error) {
	if _, err := authz.Require(ctx, s.auth, actorID, authz.Role.IsStaff, "view the technician ranking"); err != nil {
		return transport.RankingResponse{}, err
	}
	scores, err := s.TopTechnicians(ctx, limit)
	if err != nil {
		return transport.RankingResponse{}, err
	}
	items := make([]transport.RankingEntry, 0, len(scores))
	for i, sc := range scores {
		items = append(items, transport.RankingEntry{
			Position:       i + 1,
			TechnicianID:   sc.TechnicianID,
			TechnicianName: sc.Name,
			Mean:           sc.Mean,
			Count:          sc.Count,
		})
	}
	return transport.RankingResponse{Items: items}, nil
}

// TopTechnicians returns the ranking without authorization checks, for the dashboard.
// Rows are re-sorted with domain.Less so ties resolve the same way whatever
// order the store returned them in.
func (s *Service) TopTechnicians(ctx context.Context, limit int) ([]domain.TechnicianScore, error) {
	limit = domain.ClampLimit(limit)
	scores, err := s.repo.Ranking(ctx, limit)
	if err != nil {
		return nil, err
	}
	domain.SortRanking(scores)
	if len(scores) > limit {
		scores = scores[:limit]
	}
	return scores, nil
}

// StatsFor returns count, mean and distribution for a technician. Technicians
// may read their own stats; staff who assign may read anyone's.
func (s *Service) StatsFor(ctx context.Context, technicianID, actorID uuid.UUID) (transport.StatsResponse, error) {
	role, err := s.auth.RoleOf(ctx, actorID)
	if err != nil {
		return transport.StatsResponse{}, err
	}
	if !role.CanAssign() && actorID != technicianID {
		return transport.StatsResponse{}, apperr.Forbidden("cannot view another technician's stats")
	}
	counts, err := s.repo.ScoreCounts(ctx, technicianID)
	if err != nil {
		return transport.StatsResponse{}, err
	}
	stats := domain.StatsFromDistribution(counts)
	dist := make(map[int]int, domain.MaxScore)
	for i, n := range stats.Distribution {
		dist[i+1] = n
	}
	return transport.StatsResponse{
		TechnicianID: technicianID,
		Count:        stats.Count,
		Mean:         stats.Mean,
		Distribution: dist,
	}, nil
}

func (s *Service) loadOwned(ctx context.Context, ratingID, actorID uuid.UUID) (repository.Rating, error) {
	role, err := s.auth.RoleOf(ctx, actorID)
	if err != nil {
		return repository.Rating{}, err
	}
	rating, err := s.repo.GetByID(ctx, ratingID)
	if err != nil {
		return repository.Rating{}, err
	}
	if rating.RaterID != actorID && !role.IsAdmin() {
		return repository.Rating{}, apperr.Forbidden("only the author may change this rating")
	}
	return rating, nil
}

// canView lets the author, the rated technician and supervisors or admins read a rating.
func canView(r repository.Rating, actorID uuid.UUID, role authz.Role) bool {
	switch {
	case r.RaterID == actorID, r.TechnicianID == actorID:
		return true
	default:
		return role.CanAssign()
	}
}

func cleanComment(c *string) *string {
	return sanitize.Optional(c)
}

func toResponse(r repository.Rating) transport.RatingResponse {
	return transport.RatingResponse{
		ID:           r.ID,
		IncidenceID:  r.IncidenceID,
		TechnicianID: r.TechnicianID,
		RaterID:      r.RaterID,
		Score:        r.Score,
		Comment:      r.Comment,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
