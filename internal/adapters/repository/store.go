// Package repository provides run storage backends, the user directory and
// the windowed totals lookup used by leaderboards.
package repository

import (
	"context"
	"sort"
	"time"

	"github.com/okian/turf/internal/domain/model"
	"github.com/okian/turf/internal/domain/tracking"
)

// Store is a run store that can also answer aggregate queries.
type Store interface {
	tracking.RunStore

	// RangeTotals sums a user's runs whose start time lies in [from, to].
	RangeTotals(ctx context.Context, userID string, from, to time.Time) (model.Totals, error)
	// ClaimedTerritories lists every territory claimed by an ended run, newest first.
	ClaimedTerritories(ctx context.Context) ([]model.ClaimedTerritory, error)
	// Count returns the number of stored runs.
	Count(ctx context.Context) (int, error)
	Close() error
}

// sumRuns aggregates the runs that started inside [from, to].
func sumRuns(runs []model.Run, from, to time.Time) model.Totals {
	var t model.Totals
	for i := range runs {
		r := &runs[i]
		if !model.Contains(from, to, r.StartTime) {
			continue
		}
		t.Steps += int64(r.TotalSteps)
		t.DistanceMeters += r.DistanceMeters
		if r.HasTerritory() {
			t.TerritoriesClaimed++
		}
	}
	return t
}

// territoryOf returns the claimed territory of an ended run.
func territoryOf(r model.Run) (model.ClaimedTerritory, bool) {
	if !r.HasTerritory() || r.EndTime == nil {
		return model.ClaimedTerritory{}, false
	}
	return model.ClaimedTerritory{
		RunID:     r.ID,
		UserID:    r.UserID,
		Ring:      append([]model.Coordinate(nil), r.Territory...),
		AreaM2:    r.TerritoryAreaM2,
		ClaimedAt: *r.EndTime,
	}, true
}

func sortNewestFirst(runs []model.Run) {
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartTime.After(runs[j].StartTime)
	})
}

func sortTerritories(ts []model.ClaimedTerritory) {
	sort.SliceStable(ts, func(i, j int) bool {
		return ts[i].ClaimedAt.After(ts[j].ClaimedAt)
	})
}
