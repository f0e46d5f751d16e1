package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/turf/internal/domain/model"
)

// UserDirectory is an in-memory user lookup, seeded at startup.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[string]model.User
}

// NewUserDirectory creates a directory holding users.
func NewUserDirectory(users ...model.User) *UserDirectory {
	d := &UserDirectory{users: make(map[string]model.User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

// Upsert adds or replaces a user.
func (d *UserDirectory) Upsert(_ context.Context, u model.User) error {
	if u.ID == "" {
		return fmt.Errorf("%w: user id must not be empty", model.ErrInvalidInput)
	}
	d.mu.Lock()
	d.users[u.ID] = u
	d.mu.Unlock()
	return nil
}

// FindUser returns model.ErrNotFound for unknown ids.
func (d *UserDirectory) FindUser(_ context.Context, id string) (model.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return model.User{}, fmt.Errorf("user %q: %w", id, model.ErrNotFound)
	}
	return u, nil
}

// ListUsers returns all users ordered by id.
func (d *UserDirectory) ListUsers(_ context.Context) ([]model.User, error) {
	d.mu.RLock()
	out := make([]model.User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u)
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
