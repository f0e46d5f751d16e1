package tracking

import (
	"context"

	"github.com/okian/turf/internal/domain/model"
)

// RunStore persists runs. Implementations return independent copies so
// callers may mutate what they read, and reads observe prior saves.
type RunStore interface {
	// Save inserts or replaces the run.
	Save(ctx context.Context, run model.Run) error
	// FindByID returns model.ErrNotFound for unknown ids.
	FindByID(ctx context.Context, id string) (model.Run, error)
	// FindOpenRunForUser returns the user's Active or Paused run, if any.
	FindOpenRunForUser(ctx context.Context, userID string) (model.Run, bool, error)
	// FindAllByUser returns the user's runs, newest start first.
	FindAllByUser(ctx context.Context, userID string) ([]model.Run, error)
}

// UserDirectory resolves user profiles.
type UserDirectory interface {
	// FindUser returns model.ErrNotFound for unknown ids.
	FindUser(ctx context.Context, id string) (model.User, error)
}
