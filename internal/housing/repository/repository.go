package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"techo_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	DeliveryPending   = "pendiente"
	DeliveryDelivered = "entregada"

	unitNotFoundMessage    = "housing unit not found"
	projectNotFoundMessage = "project not found"
)

// Project groups housing units built together.
type Project struct {
	ID             uuid.UUID
	Name           string
	Commune        *string
	Region         *string
	UnitCount      int
	DeliveredCount int
	CreatedAt      time.Time
}

// Unit is a single housing unit.
type Unit struct {
	ID             uuid.UUID
	ProjectID      uuid.UUID
	Address        string
	BeneficiaryID  *uuid.UUID
	DeliveryStatus string
	DeliveredAt    *time.Time
	DeliveredBy    *uuid.UUID
	CreatedAt      time.Time
}

// IsDelivered reports whether the unit was handed over.
func (u Unit) IsDelivered() bool { return u.DeliveryStatus == DeliveryDelivered }

// DeliveryStats counts units by delivery state.
type DeliveryStats struct {
	Total     int
	Delivered int
}

// Repository is the persistence contract of the housing module.
type Repository interface {
	GetUnit(ctx context.Context, id uuid.UUID) (Unit, error)
	ListUnits(ctx context.Context, projectID uuid.UUID) ([]Unit, error)
	GetProject(ctx context.Context, id uuid.UUID) (Project, error)
	ListProjects(ctx context.Context) ([]Project, error)
	// MarkDelivered moves a unit from pendiente to entregada. It reports false
	// when the unit was not pendiente (or does not exist).
	MarkDelivered(ctx context.Context, id, actorID uuid.UUID, at time.Time) (Unit, bool, error)
	DeliveryStats(ctx context.Context) (DeliveryStats, error)
}

// Repo implements Repository with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new housing repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

const unitColumns = `id, project_id, address, beneficiary_id, delivery_status, delivered_at, delivered_by, created_at`

func scanUnit(row pgx.Row) (Unit, error) {
	var u Unit
	err := row.Scan(&u.ID, &u.ProjectID, &u.Address, &u.BeneficiaryID, &u.DeliveryStatus, &u.DeliveredAt, &u.DeliveredBy, &u.CreatedAt)
	return u, err
}

func (r *Repo) GetUnit(ctx context.Context, id uuid.UUID) (Unit, error) {
	u, err := scanUnit(r.pool.QueryRow(ctx, `SELECT `+unitColumns+` FROM housing_units WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Unit{}, apperr.NotFound(unitNotFoundMessage)
	}
	if err != nil {
		return Unit{}, fmt.Errorf("get housing unit: %w", err)
	}
	return u, nil
}

func (r *Repo) ListUnits(ctx context.Context, projectID uuid.UUID) ([]Unit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+unitColumns+`
		FROM housing_units
		WHERE project_id = $1
		ORDER BY address ASC, id ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list housing units: %w", err)
	}
	defer rows.Close()

	units := make([]Unit, 0)
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan housing unit: %w", err)
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate housing units: %w", err)
	}
	return units, nil
}

const projectQuery = `
	SELECT p.id, p.name, p.commune, p.region, p.created_at,
		COUNT(u.id)::int,
		COUNT(u.id) FILTER (WHERE u.delivery_status = 'entregada')::int
	FROM projects p
	LEFT JOIN housing_units u ON u.project_id = p.id`

func scanProject(row pgx.Row) (Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.Name, &p.Commune, &p.Region, &p.CreatedAt, &p.UnitCount, &p.DeliveredCount)
	return p, err
}

func (r *Repo) GetProject(ctx context.Context, id uuid.UUID) (Project, error) {
	p, err := scanProject(r.pool.QueryRow(ctx, projectQuery+` WHERE p.id = $1 GROUP BY p.id`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Project{}, apperr.NotFound(projectNotFoundMessage)
	}
	if err != nil {
		return Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (r *Repo) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := r.pool.Query(ctx, projectQuery+` GROUP BY p.id ORDER BY p.name ASC, p.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, nil
}

func (r *Repo) MarkDelivered(ctx context.Context, id, actorID uuid.UUID, at time.Time) (Unit, bool, error) {
	u, err := scanUnit(r.pool.QueryRow(ctx, `
		UPDATE housing_units
		SET delivery_status = 'entregada', delivered_at = $3, delivered_by = $2
		WHERE id = $1 AND delivery_status = 'pendiente'
		RETURNING `+unitColumns, id, actorID, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return Unit{}, false, nil
	}
	if err != nil {
		return Unit{}, false, fmt.Errorf("mark housing unit delivered: %w", err)
	}
	return u, true, nil
}

func (r *Repo) DeliveryStats(ctx context.Context) (DeliveryStats, error) {
	var s DeliveryStats
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)::int, COUNT(*) FILTER (WHERE delivery_status = 'entregada')::int
		FROM housing_units`).Scan(&s.Total, &s.Delivered)
	if err != nil {
		return DeliveryStats{}, fmt.Errorf("housing delivery stats: %w", err)
	}
	return s, nil
}
