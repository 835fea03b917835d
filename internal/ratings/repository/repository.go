package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"techo_backend/internal/ratings/domain"
	"techo_backend/platform/apperr"
	"techo_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	ratingNotFoundMessage = "rating not found"
	notRateableMessage    = "incidence must be resolved by a technician before it can be rated"
)

// Rating is a beneficiary's score for the technician who resolved an incidence.
type Rating struct {
	ID           uuid.UUID
	IncidenceID  uuid.UUID
	TechnicianID uuid.UUID
	RaterID      uuid.UUID
	Score        int
	Comment      *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateParams contains parameters for recording a rating.
type CreateParams struct {
	IncidenceID  uuid.UUID
	TechnicianID uuid.UUID
	RaterID      uuid.UUID
	Score        int
	Comment      *string
	At           time.Time
}

// UpdateParams replaces score and comment of a rating.
type UpdateParams struct {
	ID      uuid.UUID
	Score   int
	Comment *string
	At      time.Time
}

// Repository defines the persistence contract for ratings.
type Repository interface {
	// Create fails with Conflict when the incidence already has a rating and
	// with Validation when, at write time, the incidence is not resuelta or
	// cerrada or its technician is no longer TechnicianID.
	Create(ctx context.Context, params CreateParams) (Rating, error)
	GetByID(ctx context.Context, id uuid.UUID) (Rating, error)
	GetByIncidence(ctx context.Context, incidenceID uuid.UUID) (Rating, error)
	Update(ctx context.Context, params UpdateParams) (Rating, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Ranking(ctx context.Context, limit int) ([]domain.TechnicianScore, error)
	ScoreCounts(ctx context.Context, technicianID uuid.UUID) (map[int]int, error)
}

// Repo implements Repository with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new ratings repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

const ratingColumns = `id, incidence_id, technician_id, rater_id, score, comment, created_at, updated_at`

func scanRating(row pgx.Row) (Rating, error) {
	var r Rating
	err := row.Scan(&r.ID, &r.IncidenceID, &r.TechnicianID, &r.RaterID, &r.Score, &r.Comment, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (r *Repo) Create(ctx context.Context, params CreateParams) (Rating, error) {
	rating, err := scanRating(r.pool.QueryRow(ctx, `
		INSERT INTO ratings (incidence_id, technician_id, rater_id, score, comment, created_at, updated_at)
		SELECT i.id, i.id_usuario_tecnico, $2::uuid, $3::int, $4::text, $5::timestamptz, $5::timestamptz
		FROM incidences i
		WHERE i.id = $1
		  AND i.status IN ('resuelta', 'cerrada')
		  AND i.id_usuario_tecnico = $6
		RETURNING `+ratingColumns,
		params.IncidenceID, params.RaterID, params.Score, params.Comment, params.At, params.TechnicianID,
	))
	if db.IsUniqueViolation(err) {
		return Rating{}, apperr.Conflict("incidence already rated")
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return Rating{}, apperr.Validation(notRateableMessage)
	}
	if err != nil {
		return Rating{}, fmt.Errorf("insert rating: %w", err)
	}
	return rating, nil
}

func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Rating, error) {
	rating, err := scanRating(r.pool.QueryRow(ctx, `SELECT `+ratingColumns+` FROM ratings WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Rating{}, apperr.NotFound(ratingNotFoundMessage)
	}
	if err != nil {
		return Rating{}, fmt.Errorf("get rating: %w", err)
	}
	return rating, nil
}

func (r *Repo) GetByIncidence(ctx context.Context, incidenceID uuid.UUID) (Rating, error) {
	rating, err := scanRating(r.pool.QueryRow(ctx, `SELECT `+ratingColumns+` FROM ratings WHERE incidence_id = $1`, incidenceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Rating{}, apperr.NotFound(ratingNotFoundMessage)
	}
	if err != nil {
		return Rating{}, fmt.Errorf("get rating by incidence: %w", err)
	}
	return rating, nil
}

func (r *Repo) Update(ctx context.Context, params UpdateParams) (Rating, error) {
	rating, err := scanRating(r.pool.QueryRow(ctx, `
		UPDATE ratings SET score = $2, comment = $3, updated_at = $4
		WHERE id = $1
		RETURNING `+ratingColumns,
		params.ID, params.Score, params.Comment, params.At,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Rating{}, apperr.NotFound(ratingNotFoundMessage)
	}
	if err != nil {
		return Rating{}, fmt.Errorf("update rating: %w", err)
	}
	return rating, nil
}

func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM ratings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(ratingNotFoundMessage)
	}
	return nil
}

// Ranking aggregates ratings per technician in ranking order. The ORDER BY
// must stay in step with domain.Less.
func (r *Repo) Ranking(ctx context.Context, limit int) ([]domain.TechnicianScore, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.technician_id, u.name, AVG(r.score)::float8 AS mean, COUNT(*) AS total
		FROM ratings r
		LEFT JOIN users u ON u.id = r.technician_id
		GROUP BY r.technician_id, u.name
		ORDER BY mean DESC, total DESC, r.technician_id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("rating ranking: %w", err)
	}
	defer rows.Close()

	items := make([]domain.TechnicianScore, 0, limit)
	for rows.Next() {
		var s domain.TechnicianScore
		if err := rows.Scan(&s.TechnicianID, &s.Name, &s.Mean, &s.Count); err != nil {
			return nil, fmt.Errorf("scan rating ranking: %w", err)
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rating ranking: %w", err)
	}
	return items, nil
}

func (r *Repo) ScoreCounts(ctx context.Context, technicianID uuid.UUID) (map[int]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT score, COUNT(*) FROM ratings WHERE technician_id = $1 GROUP BY score`, technicianID)
	if err != nil {
		return nil, fmt.Errorf("rating score counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int, domain.MaxScore)
	for rows.Next() {
		var score, n int
		if err := rows.Scan(&score, &n); err != nil {
			return nil, fmt.Errorf("scan rating score counts: %w", err)
		}
		counts[score] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rating score counts: %w", err)
	}
	return counts, nil
}
