package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"techo_backend/internal/incidences/domain"
	"techo_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const incidenceNotFoundMessage = "incidence not found"

// Repo implements Repository with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new incidences repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

const incidenceColumns = `id, id_usuario_reporta, id_usuario_tecnico, id_vivienda, category, description,
	contact_phone, priority, status, created_at, updated_at, resolved_at, closed_at`

func scanIncidence(row pgx.Row, extra ...any) (Incidence, error) {
	var (
		inc              Incidence
		priority, status string
	)
	dest := []any{
		&inc.ID, &inc.ReporterID, &inc.TechnicianID, &inc.HousingUnitID, &inc.Category, &inc.Description,
		&inc.ContactPhone, &priority, &status, &inc.CreatedAt, &inc.UpdatedAt, &inc.ResolvedAt, &inc.ClosedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Incidence{}, err
	}
	inc.Priority = domain.Priority(priority)
	inc.Status = domain.Status(status)
	return inc, nil
}

const insertHistory = `
	INSERT INTO incidence_history (incidence_id, from_status, to_status, actor_id, technician_id, note, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Create inserts an incidence in abierta with its first history row.
func (r *Repo) Create(ctx context.Context, params CreateParams) (Incidence, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Incidence{}, fmt.Errorf("begin create incidence: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inc, err := scanIncidence(tx.QueryRow(ctx, `
		INSERT INTO incidences (id_usuario_reporta, id_vivienda, category, description, contact_phone, priority, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'abierta', $7, $7)
		RETURNING `+incidenceColumns,
		params.ReporterID, params.HousingUnitID, params.Category, params.Description,
		params.ContactPhone, string(params.Priority), params.At,
	))
	if err != nil {
		return Incidence{}, fmt.Errorf("insert incidence: %w", err)
	}

	if _, err := tx.Exec(ctx, insertHistory, inc.ID, nil, string(domain.StatusOpen), params.ReporterID, nil, nil, params.At); err != nil {
		return Incidence{}, fmt.Errorf("insert incidence history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Incidence{}, fmt.Errorf("commit create incidence: %w", err)
	}
	return inc, nil
}

// GetByID retrieves an incidence by its ID.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Incidence, error) {
	inc, err := scanIncidence(r.pool.QueryRow(ctx, `SELECT `+incidenceColumns+` FROM incidences WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Incidence{}, apperr.NotFound(incidenceNotFoundMessage)
	}
	if err != nil {
		return Incidence{}, fmt.Errorf("get incidence by id: %w", err)
	}
	return inc, nil
}

// List returns a page of incidences ordered by created_at DESC, id ASC and the total count.
func (r *Repo) List(ctx context.Context, params ListParams) ([]Incidence, int, error) {
	conditions := make([]string, 0, 4)
	args := make([]any, 0, 6)
	addFilter := func(column string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if params.Status != nil {
		addFilter("status", string(*params.Status))
	}
	if params.TechnicianID != nil {
		addFilter("id_usuario_tecnico", *params.TechnicianID)
	}
	if params.HousingUnitID != nil {
		addFilter("id_vivienda", *params.HousingUnitID)
	}
	if params.ReporterID != nil {
		addFilter("id_usuario_reporta", *params.ReporterID)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM incidences`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count incidences: %w", err)
	}

	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`SELECT %s FROM incidences%s ORDER BY created_at DESC, id ASC LIMIT $%d OFFSET $%d`,
		incidenceColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list incidences: %w", err)
	}
	defer rows.Close()

	items := make([]Incidence, 0)
	for rows.Next() {
		inc, err := scanIncidence(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan incidence: %w", err)
		}
		items = append(items, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate incidences: %w", err)
	}
	return items, total, nil
}

// History returns the audit trail of an incidence in chronological order.
func (r *Repo) History(ctx context.Context, id uuid.UUID) ([]HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, incidence_id, from_status, to_status, actor_id, technician_id, note, created_at
		FROM incidence_history
		WHERE incidence_id = $1
		ORDER BY id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("list incidence history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0)
	for rows.Next() {
		var (
			e    HistoryEntry
			from *string
			to   string
		)
		if err := rows.Scan(&e.ID, &e.IncidenceID, &from, &to, &e.ActorID, &e.TechnicianID, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan incidence history: %w", err)
		}
		if from != nil {
			st := domain.Status(*from)
			e.FromStatus = &st
		}
		e.ToStatus = domain.Status(to)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incidence history: %w", err)
	}
	return entries, nil
}

// CompareAndSwapStatus is one statement: the conditional UPDATE and its
// history insert either both happen or neither does. For an expected status
// of abierta the row must also have no technician.
func (r *Repo) CompareAndSwapStatus(ctx context.Context, params SwapParams) (Incidence, bool, error) {
	inc, err := scanIncidence(r.pool.QueryRow(ctx, `
		WITH updated AS (
			UPDATE incidences
			SET status = $3, id_usuario_tecnico = COALESCE($4, id_usuario_tecnico), updated_at = $5
			WHERE id = $1 AND status = $2
				AND ($2::text <> 'abierta' OR id_usuario_tecnico IS NULL)
			RETURNING `+incidenceColumns+`
		), history AS (
			INSERT INTO incidence_history (incidence_id, from_status, to_status, actor_id, technician_id, note, created_at)
			SELECT id, $2, $3, $6, id_usuario_tecnico, $7, $5 FROM updated
		)
		SELECT `+incidenceColumns+` FROM updated`,
		params.ID, string(params.Expected), string(params.Next), params.TechnicianID, params.At, params.ActorID, params.Note,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Incidence{}, false, nil
	}
	if err != nil {
		return Incidence{}, false, fmt.Errorf("compare and swap incidence status: %w", err)
	}
	return inc, true, nil
}

// Assign locks the row, validates it and sets the technician.
func (r *Repo) Assign(ctx context.Context, params AssignParams) (Incidence, domain.Status, error) {
	var previous domain.Status
	inc, err := r.lockAndWrite(ctx, params.ID, params.Check, func(tx pgx.Tx, current Incidence) (Incidence, error) {
		previous = current.Status
		next := current.Status
		if next == domain.StatusOpen {
			next = domain.StatusAssigned
		}

		updated, err := scanIncidence(tx.QueryRow(ctx, `
			UPDATE incidences
			SET id_usuario_tecnico = $2, status = $3, updated_at = $4
			WHERE id = $1 AND status <> 'cerrada'
			RETURNING `+incidenceColumns,
			params.ID, params.TechnicianID, string(next), params.At,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return Incidence{}, apperr.InvalidTransition(string(current.Status), string(domain.StatusAssigned))
		}
		if err != nil {
			return Incidence{}, fmt.Errorf("assign incidence: %w", err)
		}

		note := "assigned"
		if current.TechnicianID != nil {
			note = "reassigned"
		}
		if _, err := tx.Exec(ctx, insertHistory, params.ID, string(current.Status), string(next), params.ActorID, params.TechnicianID, note, params.At); err != nil {
			return Incidence{}, fmt.Errorf("insert incidence history: %w", err)
		}
		return updated, nil
	})
	return inc, previous, err
}

// Transition locks the row, validates it and writes the new status.
func (r *Repo) Transition(ctx context.Context, params TransitionParams) (Incidence, domain.Status, error) {
	var previous domain.Status
	inc, err := r.lockAndWrite(ctx, params.ID, params.Check, func(tx pgx.Tx, current Incidence) (Incidence, error) {
		previous = current.Status

		updated, err := scanIncidence(tx.QueryRow(ctx, `
			UPDATE incidences
			SET status = $2,
				updated_at = $3,
				resolved_at = CASE WHEN $2::text = 'resuelta' THEN $3
				                   WHEN $2::text = 'en_proceso' THEN NULL
				                   ELSE resolved_at END,
				closed_at = CASE WHEN $2::text = 'cerrada' THEN $3 ELSE closed_at END
			WHERE id = $1
			RETURNING `+incidenceColumns,
			params.ID, string(params.To), params.At,
		))
		if err != nil {
			return Incidence{}, fmt.Errorf("update incidence status: %w", err)
		}

		if _, err := tx.Exec(ctx, insertHistory, params.ID, string(current.Status), string(params.To), params.ActorID, current.TechnicianID, params.Note, params.At); err != nil {
			return Incidence{}, fmt.Errorf("insert incidence history: %w", err)
		}
		return updated, nil
	})
	return inc, previous, err
}

// lockAndWrite runs SELECT ... FOR UPDATE, the caller's check and write in
// one transaction.
func (r *Repo) lockAndWrite(ctx context.Context, id uuid.UUID, check CheckFunc, write func(pgx.Tx, Incidence) (Incidence, error)) (Incidence, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Incidence{}, fmt.Errorf("begin incidence write: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanIncidence(tx.QueryRow(ctx, `SELECT `+incidenceColumns+` FROM incidences WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Incidence{}, apperr.NotFound(incidenceNotFoundMessage)
	}
	if err != nil {
		return Incidence{}, fmt.Errorf("lock incidence: %w", err)
	}

	if check != nil {
		if err := check(current); err != nil {
			return Incidence{}, err
		}
	}

	updated, err := write(tx, current)
	if err != nil {
		return Incidence{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Incidence{}, fmt.Errorf("commit incidence write: %w", err)
	}
	return updated, nil
}

// CreateComment inserts a comment.
func (r *Repo) CreateComment(ctx context.Context, params CommentParams) (Comment, error) {
	var c Comment
	err := r.pool.QueryRow(ctx, `
		INSERT INTO incidence_comments (incidence_id, author_id, body, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, incidence_id, author_id, body, created_at`,
		params.IncidenceID, params.AuthorID, params.Body, params.At,
	).Scan(&c.ID, &c.IncidenceID, &c.AuthorID, &c.Body, &c.CreatedAt)
	if err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return c, nil
}

// ListComments returns the comments of an incidence, oldest first.
func (r *Repo) ListComments(ctx context.Context, incidenceID uuid.UUID) ([]Comment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, incidence_id, author_id, body, created_at
		FROM incidence_comments
		WHERE incidence_id = $1
		ORDER BY created_at ASC, id ASC`, incidenceID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]Comment, 0)
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.IncidenceID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}

const mediaColumns = `id, incidence_id, owner_kind, owner_id, bucket, file_key, file_name, content_type,
	size_bytes, thumbnail_key, captured_at, uploaded_by, created_at`

func scanMedia(row pgx.Row) (Media, error) {
	var m Media
	err := row.Scan(&m.ID, &m.IncidenceID, &m.OwnerKind, &m.OwnerID, &m.Bucket, &m.FileKey, &m.FileName,
		&m.ContentType, &m.SizeBytes, &m.ThumbnailKey, &m.CapturedAt, &m.UploadedBy, &m.CreatedAt)
	return m, err
}

// CreateMedia records a blob that was already written to storage.
func (r *Repo) CreateMedia(ctx context.Context, params MediaParams) (Media, error) {
	m, err := scanMedia(r.pool.QueryRow(ctx, `
		INSERT INTO incidence_media (incidence_id, owner_kind, owner_id, bucket, file_key, file_name,
			content_type, size_bytes, thumbnail_key, captured_at, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+mediaColumns,
		params.IncidenceID, params.OwnerKind, params.OwnerID, params.Bucket, params.FileKey, params.FileName,
		params.ContentType, params.SizeBytes, params.ThumbnailKey, params.CapturedAt, params.UploadedBy,
	))
	if err != nil {
		return Media{}, fmt.Errorf("insert media: %w", err)
	}
	return m, nil
}

// ListMedia returns every media row of an incidence, comments included.
func (r *Repo) ListMedia(ctx context.Context, incidenceID uuid.UUID) ([]Media, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+mediaColumns+`
		FROM incidence_media
		WHERE incidence_id = $1
		ORDER BY created_at ASC, id ASC`, incidenceID)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	items := make([]Media, 0)
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media: %w", err)
	}
	return items, nil
}

// TechnicianWorkloads lists active technicians, least loaded first.
func (r *Repo) TechnicianWorkloads(ctx context.Context) ([]TechnicianWorkload, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.name,
			COUNT(i.id) FILTER (WHERE i.status IN ('asignada', 'en_proceso'))::int AS active
		FROM users u
		LEFT JOIN incidences i ON i.id_usuario_tecnico = u.id
		WHERE u.role = 'tecnico' AND u.is_active
		GROUP BY u.id, u.name
		ORDER BY active ASC, u.name ASC, u.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("technician workloads: %w", err)
	}
	defer rows.Close()

	items := make([]TechnicianWorkload, 0)
	for rows.Next() {
		var w TechnicianWorkload
		if err := rows.Scan(&w.TechnicianID, &w.Name, &w.ActiveCount); err != nil {
			return nil, fmt.Errorf("scan technician workload: %w", err)
		}
		items = append(items, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate technician workloads: %w", err)
	}
	return items, nil
}

// SuggestedVisits returns the technician's active incidences inside their
// service area that were not touched since cutoff, most urgent and stalest first.
func (r *Repo) SuggestedVisits(ctx context.Context, technicianID uuid.UUID, cutoff time.Time) ([]VisitCandidate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT i.id, i.id_usuario_reporta, i.id_usuario_tecnico, i.id_vivienda, i.category, i.description,
			i.contact_phone, i.priority, i.status, i.created_at, i.updated_at, i.resolved_at, i.closed_at,
			h.address, h.project_id
		FROM incidences i
		JOIN housing_units h ON h.id = i.id_vivienda
		JOIN technician_projects tp ON tp.project_id = h.project_id AND tp.technician_id = i.id_usuario_tecnico
		WHERE i.id_usuario_tecnico = $1
			AND i.status IN ('asignada', 'en_proceso')
			AND i.updated_at < $2
		ORDER BY CASE i.priority WHEN 'alta' THEN 3 WHEN 'media' THEN 2 ELSE 1 END DESC,
			i.updated_at ASC, i.id ASC`, technicianID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("suggested visits: %w", err)
	}
	defer rows.Close()

	items := make([]VisitCandidate, 0)
	for rows.Next() {
		var v VisitCandidate
		inc, err := scanIncidence(rows, &v.Address, &v.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("scan suggested visit: %w", err)
		}
		v.Incidence = inc
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suggested visits: %w", err)
	}
	return items, nil
}

// StatusCounts counts incidences per status. Statuses without rows are absent.
func (r *Repo) StatusCounts(ctx context.Context) (map[domain.Status]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*)::int FROM incidences GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("incidence status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[domain.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}
