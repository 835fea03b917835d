package transport

import (
	"time"

	"github.com/google/uuid"
)

// SummaryRequest selects how many technicians the ranking includes.
type SummaryRequest struct {
	TopN int `form:"topN" validate:"omitempty,min=1,max=100"`
}

// WorkloadEntry is one row of the technician workload table.
type WorkloadEntry struct {
	TechnicianID     uuid.UUID `json:"technicianId"`
	TechnicianName   *string   `json:"technicianName"`
	ActiveIncidences int       `json:"activeIncidences"`
}

// RankingEntry is one technician in the rating ranking.
type RankingEntry struct {
	Position       int       `json:"position"`
	TechnicianID   uuid.UUID `json:"technicianId"`
	TechnicianName *string   `json:"technicianName"`
	Mean           float64   `json:"mean"`
	Count          int       `json:"count"`
}

// DeliveryEntry summarizes housing delivery progress.
type DeliveryEntry struct {
	Total          int     `json:"total"`
	Delivered      int     `json:"delivered"`
	CompletionRate float64 `json:"completionRate"`
}

// SummaryResponse is the dashboard snapshot. Warnings name the projections
// that could not be loaded; those render empty.
type SummaryResponse struct {
	GeneratedAt    time.Time       `json:"generatedAt"`
	StatusCounts   map[string]int  `json:"statusCounts"`
	Workloads      []WorkloadEntry `json:"workloads"`
	TopTechnicians []RankingEntry  `json:"topTechnicians"`
	Delivery       DeliveryEntry   `json:"delivery"`
	Warnings       []string        `json:"warnings"`
}
