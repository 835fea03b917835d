// Package authztest provides an in-memory user directory for tests.
package authztest

import (
	"context"
	"sync"

	"techo_backend/internal/authz"
	"techo_backend/platform/apperr"

	"github.com/google/uuid"
)

// Directory is an in-memory authz.Directory.
type Directory struct {
	mu    sync.RWMutex
	users map[uuid.UUID]authz.User
}

// NewDirectory returns a directory seeded with users.
func NewDirectory(users ...authz.User) *Directory {
	d := &Directory{users: make(map[uuid.UUID]authz.User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

// Add registers an active user with the given role and returns its id.
func (d *Directory) Add(name string, role authz.Role) uuid.UUID {
	id := uuid.New()
	d.mu.Lock()
	d.users[id] = authz.User{ID: id, Name: name, Email: name + "@example.test", Role: role, IsActive: true}
	d.mu.Unlock()
	return id
}

// Deactivate marks a user inactive.
func (d *Directory) Deactivate(id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u := d.users[id]
	u.IsActive = false
	d.users[id] = u
}

func (d *Directory) GetUser(_ context.Context, userID uuid.UUID) (authz.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[userID]
	if !ok {
		return authz.User{}, apperr.NotFound("user not found")
	}
	return u, nil
}

func (d *Directory) RoleOf(ctx context.Context, actorID uuid.UUID) (authz.Role, error) {
	return authz.RoleFromDirectory(ctx, d, actorID)
}
