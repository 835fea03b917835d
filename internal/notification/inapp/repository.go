package inapp

import (
	"context"
	"errors"
	"fmt"

	"techo_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const notificationColumns = `id, user_id, title, content, resource_type, resource_id, category, is_read, read_at, created_at`

// Store persists in-app notifications.
type Store interface {
	Insert(ctx context.Context, d Draft) (Notification, error)
	Inbox(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, int, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func (r *Repository) Insert(ctx context.Context, d Draft) (Notification, error) {
	var resType *string
	var resID *uuid.UUID
	if d.Resource != nil {
		resType, resID = &d.Resource.Type, &d.Resource.ID
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO notifications (user_id, title, content, resource_type, resource_id, category)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+notificationColumns,
		d.UserID, d.Title, d.Body, resType, resID, string(d.Level))
	n, err := scanNotification(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Notification{}, apperr.NotFound("recipient not found").WithOp("inapp.Insert")
		}
		return Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

func (r *Repository) Inbox(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count inbox: %w", err)
	}
	if total == 0 || offset >= total {
		return []Notification{}, total, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id ASC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list inbox: %w", err)
	}
	defer rows.Close()

	items := make([]Notification, 0, limit)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, n)
	}
	return items, total, rows.Err()
}

func (r *Repository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// MarkRead is idempotent for the owner; someone else's notification is NotFound.
func (r *Repository) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET is_read = TRUE, read_at = COALESCE(read_at, now())
		WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notification not found").WithOp("inapp.MarkRead")
	}
	return nil
}

func (r *Repository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET is_read = TRUE, read_at = now()
		WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanNotification(row pgx.Row) (Notification, error) {
	var (
		n       Notification
		resType *string
		resID   *uuid.UUID
		level   string
	)
	if err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &resType, &resID, &level, &n.Read, &n.ReadAt, &n.CreatedAt); err != nil {
		return Notification{}, err
	}
	if resType != nil && resID != nil {
		n.Resource = &Resource{Type: *resType, ID: *resID}
	}
	n.Level = Level(level)
	return n, nil
}
