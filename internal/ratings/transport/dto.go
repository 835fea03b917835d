package transport

import (
	"time"

	"github.com/google/uuid"
)

// CreateRatingRequest rates the technician of a resolved incidence.
type CreateRatingRequest struct {
	Score   int     `json:"score" validate:"required"`
	Comment *string `json:"comment,omitempty" validate:"omitempty,max=2000"`
}

// UpdateRatingRequest replaces a rating's score and comment.
type UpdateRatingRequest struct {
	Score   int     `json:"score" validate:"required"`
	Comment *string `json:"comment,omitempty" validate:"omitempty,max=2000"`
}

// RatingResponse is a rating as returned by the API.
type RatingResponse struct {
	ID           uuid.UUID `json:"id"`
	IncidenceID  uuid.UUID `json:"incidenceId"`
	TechnicianID uuid.UUID `json:"technicianId"`
	RaterID      uuid.UUID `json:"raterId"`
	Score        int       `json:"score"`
	Comment      *string   `json:"comment,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// RankingEntry is one technician in the ranking.
type RankingEntry struct {
	Position       int       `json:"position"`
	TechnicianID   uuid.UUID `json:"technicianId"`
	TechnicianName *string   `json:"technicianName"`
	Mean           float64   `json:"mean"`
	Count          int       `json:"count"`
}

// RankingResponse is the technician ranking.
type RankingResponse struct {
	Items []RankingEntry `json:"items"`
}

// StatsResponse summarises one technician's ratings.
type StatsResponse struct {
	TechnicianID uuid.UUID   `json:"technicianId"`
	Count        int         `json:"count"`
	Mean         float64     `json:"mean"`
	Distribution map[int]int `json:"distribution"`
}
