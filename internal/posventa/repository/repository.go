package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"techo_backend/internal/posventa/domain"
	"techo_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	formNotFoundMessage = "posventa form not found"
	planNotFoundMessage = "posventa plan not found"
)

// Form is a post-delivery inspection form.
type Form struct {
	ID            uuid.UUID
	HousingUnitID uuid.UUID
	SubmittedBy   uuid.UUID
	Status        domain.FormStatus
	Observations  *string
	ReviewComment *string
	Verdict       *domain.Verdict
	ReviewedBy    *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SubmittedAt   *time.Time
	ReviewedAt    *time.Time
}

// Plan is a plan document attached to a form.
type Plan struct {
	ID           uuid.UUID
	FormID       uuid.UUID
	FileName     string
	Bucket       string
	FileKey      string
	ContentType  string
	SourceFormat domain.SourceFormat
	SizeBytes    int64
	UploadedBy   uuid.UUID
	CreatedAt    time.Time
}

// CreateFormParams contains parameters for opening a form.
type CreateFormParams struct {
	HousingUnitID uuid.UUID
	SubmittedBy   uuid.UUID
	Observations  *string
	At            time.Time
}

// ListFormsParams filters forms.
type ListFormsParams struct {
	HousingUnitID *uuid.UUID
	Status        *domain.FormStatus
	// VisibleTo restricts the list to forms submitted by, or for a unit owned by, this user.
	VisibleTo *uuid.UUID
	Limit     int
	Offset    int
}

// ReviewParams records the outcome of a review.
type ReviewParams struct {
	ID         uuid.UUID
	ReviewerID uuid.UUID
	Comment    *string
	Verdict    *domain.Verdict
	At         time.Time
}

// CreatePlanParams contains parameters for recording a stored plan.
type CreatePlanParams struct {
	FormID       uuid.UUID
	FileName     string
	Bucket       string
	FileKey      string
	ContentType  string
	SourceFormat domain.SourceFormat
	SizeBytes    int64
	UploadedBy   uuid.UUID
}

// Repository defines the persistence contract for posventa forms and plans.
type Repository interface {
	CreateForm(ctx context.Context, params CreateFormParams) (Form, error)
	GetForm(ctx context.Context, id uuid.UUID) (Form, error)
	ListForms(ctx context.Context, params ListFormsParams) ([]Form, int, error)
	// Submit moves a borrador form to enviada. It reports false when the form
	// was not in borrador.
	Submit(ctx context.Context, id uuid.UUID, at time.Time) (Form, bool, error)
	// Review moves an enviada form to revisada. It reports false when the form
	// was not in enviada.
	Review(ctx context.Context, params ReviewParams) (Form, bool, error)
	CreatePlan(ctx context.Context, params CreatePlanParams) (Plan, error)
	GetPlan(ctx context.Context, id uuid.UUID) (Plan, error)
	ListPlans(ctx context.Context, formID uuid.UUID) ([]Plan, error)
}

// Repo implements Repository with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new posventa repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

const formColumns = `id, housing_unit_id, submitted_by, status, observations, review_comment, verdict,
	reviewed_by, created_at, updated_at, submitted_at, reviewed_at`

func scanForm(row pgx.Row) (Form, error) {
	var (
		f       Form
		status  string
		verdict *string
	)
	err := row.Scan(&f.ID, &f.HousingUnitID, &f.SubmittedBy, &status, &f.Observations, &f.ReviewComment, &verdict,
		&f.ReviewedBy, &f.CreatedAt, &f.UpdatedAt, &f.SubmittedAt, &f.ReviewedAt)
	if err != nil {
		return Form{}, err
	}
	f.Status = domain.FormStatus(status)
	if verdict != nil {
		v := domain.Verdict(*verdict)
		f.Verdict = &v
	}
	return f, nil
}

const planColumns = `id, form_id, file_name, bucket, file_key, content_type, source_format, size_bytes, uploaded_by, created_at`

func scanPlan(row pgx.Row) (Plan, error) {
	var (
		p      Plan
		format string
	)
	err := row.Scan(&p.ID, &p.FormID, &p.FileName, &p.Bucket, &p.FileKey, &p.ContentType, &format, &p.SizeBytes, &p.UploadedBy, &p.CreatedAt)
	if err != nil {
		return Plan{}, err
	}
	p.SourceFormat = domain.SourceFormat(format)
	return p, nil
}

func (r *Repo) CreateForm(ctx context.Context, params CreateFormParams) (Form, error) {
	form, err := scanForm(r.pool.QueryRow(ctx, `
		INSERT INTO posventa_forms (housing_unit_id, submitted_by, status, observations, created_at, updated_at)
		VALUES ($1, $2, 'borrador', $3, $4, $4)
		RETURNING `+formColumns,
		params.HousingUnitID, params.SubmittedBy, params.Observations, params.At,
	))
	if err != nil {
		return Form{}, fmt.Errorf("insert posventa form: %w", err)
	}
	return form, nil
}

func (r *Repo) GetForm(ctx context.Context, id uuid.UUID) (Form, error) {
	form, err := scanForm(r.pool.QueryRow(ctx, `SELECT `+formColumns+` FROM posventa_forms WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Form{}, apperr.NotFound(formNotFoundMessage)
	}
	if err != nil {
		return Form{}, fmt.Errorf("get posventa form: %w", err)
	}
	return form, nil
}

func (r *Repo) ListForms(ctx context.Context, params ListFormsParams) ([]Form, int, error) {
	conditions := make([]string, 0, 3)
	args := make([]any, 0, 5)
	if params.HousingUnitID != nil {
		args = append(args, *params.HousingUnitID)
		conditions = append(conditions, fmt.Sprintf("housing_unit_id = $%d", len(args)))
	}
	if params.Status != nil {
		args = append(args, string(*params.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if params.VisibleTo != nil {
		args = append(args, *params.VisibleTo)
		conditions = append(conditions, fmt.Sprintf(
			"(submitted_by = $%d OR housing_unit_id IN (SELECT id FROM housing_units WHERE beneficiary_id = $%d))",
			len(args), len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posventa_forms`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posventa forms: %w", err)
	}

	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`SELECT %s FROM posventa_forms%s ORDER BY created_at DESC, id ASC LIMIT $%d OFFSET $%d`,
		formColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list posventa forms: %w", err)
	}
	defer rows.Close()

	items := make([]Form, 0)
	for rows.Next() {
		form, err := scanForm(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan posventa form: %w", err)
		}
		items = append(items, form)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate posventa forms: %w", err)
	}
	return items, total, nil
}

func (r *Repo) Submit(ctx context.Context, id uuid.UUID, at time.Time) (Form, bool, error) {
	form, err := scanForm(r.pool.QueryRow(ctx, `
		UPDATE posventa_forms
		SET status = 'enviada', submitted_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'borrador'
		RETURNING `+formColumns, id, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return Form{}, false, nil
	}
	if err != nil {
		return Form{}, false, fmt.Errorf("submit posventa form: %w", err)
	}
	return form, true, nil
}

func (r *Repo) Review(ctx context.Context, params ReviewParams) (Form, bool, error) {
	var verdict *string
	if params.Verdict != nil {
		v := string(*params.Verdict)
		verdict = &v
	}
	form, err := scanForm(r.pool.QueryRow(ctx, `
		UPDATE posventa_forms
		SET status = 'revisada', review_comment = $3, verdict = $4, reviewed_by = $2, reviewed_at = $5, updated_at = $5
		WHERE id = $1 AND status = 'enviada'
		RETURNING `+formColumns,
		params.ID, params.ReviewerID, params.Comment, verdict, params.At,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Form{}, false, nil
	}
	if err != nil {
		return Form{}, false, fmt.Errorf("review posventa form: %w", err)
	}
	return form, true, nil
}

func (r *Repo) CreatePlan(ctx context.Context, params CreatePlanParams) (Plan, error) {
	plan, err := scanPlan(r.pool.QueryRow(ctx, `
		INSERT INTO posventa_plans (form_id, file_name, bucket, file_key, content_type, source_format, size_bytes, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+planColumns,
		params.FormID, params.FileName, params.Bucket, params.FileKey, params.ContentType,
		string(params.SourceFormat), params.SizeBytes, params.UploadedBy,
	))
	if err != nil {
		return Plan{}, fmt.Errorf("insert posventa plan: %w", err)
	}
	return plan, nil
}

func (r *Repo) GetPlan(ctx context.Context, id uuid.UUID) (Plan, error) {
	plan, err := scanPlan(r.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM posventa_plans WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Plan{}, apperr.NotFound(planNotFoundMessage)
	}
	if err != nil {
		return Plan{}, fmt.Errorf("get posventa plan: %w", err)
	}
	return plan, nil
}

func (r *Repo) ListPlans(ctx context.Context, formID uuid.UUID) ([]Plan, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+planColumns+` FROM posventa_plans WHERE form_id = $1 ORDER BY created_at, id`, formID)
	if err != nil {
		return nil, fmt.Errorf("list posventa plans: %w", err)
	}
	defer rows.Close()

	items := make([]Plan, 0)
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan posventa plan: %w", err)
		}
		items = append(items, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posventa plans: %w", err)
	}
	return items, nil
}
