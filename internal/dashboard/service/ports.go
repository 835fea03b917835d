package service

import (
	"context"

	"github.com/google/uuid"
)

// Workload is the number of active incidences held by a technician.
type Workload struct {
	TechnicianID uuid.UUID
	Name         *string
	Active       int
}

// TechnicianScore is a technician's position input in the rating ranking.
type TechnicianScore struct {
	TechnicianID uuid.UUID
	Name         *string
	Mean         float64
	Count        int
}

// Delivery counts housing units and how many have been delivered.
type Delivery struct {
	Total     int
	Delivered int
}

// IncidenceStats reads incidence projections.
type IncidenceStats interface {
	StatusCounts(ctx context.Context) (map[string]int, error)
	TechnicianWorkloads(ctx context.Context) ([]Workload, error)
}

// RatingRanking reads the top rated technicians.
type RatingRanking interface {
	TopTechnicians(ctx context.Context, limit int) ([]TechnicianScore, error)
}

// DeliveryStats reads housing delivery progress.
type DeliveryStats interface {
	DeliveryStats(ctx context.Context) (Delivery, error)
}
