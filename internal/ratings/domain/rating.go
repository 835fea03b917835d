// Package domain holds the rating rules shared by the service and its tests.
package domain

import (
	"sort"

	"techo_backend/platform/apperr"

	"github.com/google/uuid"
)

// Score bounds.
const (
	MinScore = 1
	MaxScore = 5
)

// Ranking limits.
const (
	DefaultRankingLimit = 10
	MaxRankingLimit     = 100
)

// ValidateScore rejects scores outside [MinScore, MaxScore].
func ValidateScore(score int) error {
	if score < MinScore || score > MaxScore {
		return apperr.Validation("score must be between 1 and 5")
	}
	return nil
}

// ClampLimit keeps a ranking limit inside [1, MaxRankingLimit]. Zero means the default.
func ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultRankingLimit
	case limit < 1:
		return 1
	case limit > MaxRankingLimit:
		return MaxRankingLimit
	default:
		return limit
	}
}

// TechnicianScore is one row of the technician ranking.
type TechnicianScore struct {
	TechnicianID uuid.UUID
	Name         *string
	Mean         float64
	Count        int
}

// Less orders by mean descending, then count descending, then technician id ascending.
func Less(a, b TechnicianScore) bool {
	if a.Mean != b.Mean {
		return a.Mean > b.Mean
	}
	if a.Count != b.Count {
		return a.Count > b.Count
	}
	return a.TechnicianID.String() < b.TechnicianID.String()
}

// SortRanking sorts scores in ranking order.
func SortRanking(scores []TechnicianScore) {
	sort.SliceStable(scores, func(i, j int) bool { return Less(scores[i], scores[j]) })
}

// Stats summarises the ratings of one technician.
type Stats struct {
	Count        int
	Mean         float64
	Distribution [MaxScore]int // index 0 holds score 1
}

// StatsFromDistribution builds Stats from a score -> count map. Scores
// outside the valid range are ignored. Mean is zero without ratings.
func StatsFromDistribution(counts map[int]int) Stats {
	var (
		s   Stats
		sum int
	)
	for score, n := range counts {
		if score < MinScore || score > MaxScore || n <= 0 {
			continue
		}
		s.Distribution[score-1] = n
		s.Count += n
		sum += score * n
	}
	if s.Count > 0 {
		s.Mean = float64(sum) / float64(s.Count)
	}
	return s
}
