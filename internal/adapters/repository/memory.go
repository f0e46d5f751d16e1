package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/turf/internal/domain/model"
	"github.com/okian/turf/pkg/metrics"
)

// MemoryStore keeps runs in an arena keyed by id with a per-user index.
// Every read and write copies the run.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string]model.Run
	byUser map[string][]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:   make(map[string]model.Run),
		byUser: make(map[string][]string),
	}
}

// Save inserts or replaces run.
func (s *MemoryStore) Save(_ context.Context, run model.Run) error {
	if run.ID == "" {
		return fmt.Errorf("%w: run id must not be empty", model.ErrInvalidInput)
	}
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("memory", "save", time.Since(start)) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		s.byUser[run.UserID] = append(s.byUser[run.UserID], run.ID)
	}
	s.runs[run.ID] = run.Clone()
	return nil
}

// FindByID returns a copy of the run.
func (s *MemoryStore) FindByID(_ context.Context, id string) (model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return model.Run{}, fmt.Errorf("run %q: %w", id, model.ErrNotFound)
	}
	return r.Clone(), nil
}

// FindOpenRunForUser returns the user's Active or Paused run.
func (s *MemoryStore) FindOpenRunForUser(_ context.Context, userID string) (model.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byUser[userID]
	for i := len(ids) - 1; i >= 0; i-- {
		if r := s.runs[ids[i]]; r.State.IsOpen() {
			return r.Clone(), true, nil
		}
	}
	return model.Run{}, false, nil
}

// FindAllByUser returns the user's runs, newest start first.
func (s *MemoryStore) FindAllByUser(_ context.Context, userID string) ([]model.Run, error) {
	s.mu.RLock()
	ids := s.byUser[userID]
	out := make([]model.Run, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.runs[id].Clone())
	}
	s.mu.RUnlock()

	sortNewestFirst(out)
	return out, nil
}

// RangeTotals sums the user's runs that started in [from, to].
func (s *MemoryStore) RangeTotals(_ context.Context, userID string, from, to time.Time) (model.Totals, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("memory", "totals", time.Since(start)) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byUser[userID]
	runs := make([]model.Run, 0, len(ids))
	for _, id := range ids {
		runs = append(runs, s.runs[id])
	}
	return sumRuns(runs, from, to), nil
}

// ClaimedTerritories lists all claimed territories, newest first.
func (s *MemoryStore) ClaimedTerritories(_ context.Context) ([]model.ClaimedTerritory, error) {
	s.mu.RLock()
	out := make([]model.ClaimedTerritory, 0)
	for _, r := range s.runs {
		if t, ok := territoryOf(r); ok {
			out = append(out, t)
		}
	}
	s.mu.RUnlock()

	sortTerritories(out)
	return out, nil
}

// Count returns the number of stored runs.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
