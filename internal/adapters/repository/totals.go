package repository

import (
	"context"
	"time"

	"github.com/okian/turf/internal/domain/model"
)

// RangeTotaler sums a user's runs over an explicit time range.
type RangeTotaler interface {
	RangeTotals(ctx context.Context, userID string, from, to time.Time) (model.Totals, error)
}

// WindowedTotals resolves a leaderboard window to a time range and asks the
// underlying store for the user's totals in it.
type WindowedTotals struct {
	store RangeTotaler
	now   func() time.Time
	loc   *time.Location
}

// TotalsOption configures WindowedTotals.
type TotalsOption func(*WindowedTotals)

// WithTotalsClock replaces time.Now.
func WithTotalsClock(now func() time.Time) TotalsOption {
	return func(w *WindowedTotals) {
		if now != nil {
			w.now = now
		}
	}
}

// WithLocation anchors the daily window to loc.
func WithLocation(loc *time.Location) TotalsOption {
	return func(w *WindowedTotals) {
		if loc != nil {
			w.loc = loc
		}
	}
}

// NewWindowedTotals creates a WindowedTotals over store.
func NewWindowedTotals(store RangeTotaler, opts ...TotalsOption) *WindowedTotals {
	w := &WindowedTotals{store: store, now: time.Now, loc: time.UTC}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Totals returns the user's totals inside window at the current time.
func (w *WindowedTotals) Totals(ctx context.Context, userID string, window model.Window) (model.Totals, error) {
	from, to := window.Range(w.now(), w.loc)
	return w.store.RangeTotals(ctx, userID, from, to)
}
