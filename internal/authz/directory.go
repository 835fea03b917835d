package authz

import (
	"context"
	"errors"
	"fmt"

	"techo_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// User is the read-only view of a platform user.
type User struct {
	ID       uuid.UUID
	Name     string
	Email    string
	Phone    *string
	Role     Role
	IsActive bool
}

// Authorizer answers the role question for an actor.
type Authorizer interface {
	RoleOf(ctx context.Context, actorID uuid.UUID) (Role, error)
}

// Directory is the user lookup used by services that need more than a role.
type Directory interface {
	Authorizer
	GetUser(ctx context.Context, userID uuid.UUID) (User, error)
}

// Repository reads users from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a user directory backed by pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetUser loads a user by id.
func (r *Repository) GetUser(ctx context.Context, userID uuid.UUID) (User, error) {
	var (
		u    User
		role string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, role, is_active
		FROM users
		WHERE id = $1`, userID,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &role, &u.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}

	parsed, ok := ParseRole(role)
	if !ok {
		return User{}, fmt.Errorf("user %s has unknown role %q", userID, role)
	}
	u.Role = parsed
	return u, nil
}

// RoleOf returns the role of an active user. Unknown and inactive users are
// reported as Forbidden so callers never learn which ids exist.
func (r *Repository) RoleOf(ctx context.Context, actorID uuid.UUID) (Role, error) {
	return RoleFromDirectory(ctx, r, actorID)
}

// UserGetter is the lookup RoleFromDirectory needs.
type UserGetter interface {
	GetUser(ctx context.Context, userID uuid.UUID) (User, error)
}

// RoleFromDirectory resolves the role of actorID through users.
func RoleFromDirectory(ctx context.Context, users UserGetter, actorID uuid.UUID) (Role, error) {
	u, err := users.GetUser(ctx, actorID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return "", apperr.Forbidden("unknown user")
		}
		return "", err
	}
	if !u.IsActive {
		return "", apperr.Forbidden("user is inactive")
	}
	return u.Role, nil
}

// Require resolves the actor's role and fails with Forbidden unless allowed
// accepts it.
func Require(ctx context.Context, auth Authorizer, actorID uuid.UUID, allowed func(Role) bool, action string) (Role, error) {
	role, err := auth.RoleOf(ctx, actorID)
	if err != nil {
		return "", err
	}
	if !allowed(role) {
		return role, apperr.Forbidden(fmt.Sprintf("role %s may not %s", role, action))
	}
	return role, nil
}
