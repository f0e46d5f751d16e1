package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/turf/internal/domain/model"
	"github.com/okian/turf/pkg/metrics"
)

// LeaderboardNotifier delivers a freshly computed leaderboard snapshot.
type LeaderboardNotifier interface {
	Name() string
	Publish(ctx context.Context, window model.Window, entries []model.LeaderboardEntry) error
}

// MultiNotifier fans a snapshot out to several notifiers. Every notifier is
// tried; failures are joined.
type MultiNotifier struct {
	notifiers []LeaderboardNotifier
}

// NewMultiNotifier combines notifiers, skipping nil ones.
func NewMultiNotifier(notifiers ...LeaderboardNotifier) *MultiNotifier {
	m := &MultiNotifier{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Name identifies the fan-out.
func (m *MultiNotifier) Name() string { return "multi" }

// Len returns the number of wrapped notifiers.
func (m *MultiNotifier) Len() int { return len(m.notifiers) }

// Publish sends the snapshot to every notifier.
func (m *MultiNotifier) Publish(ctx context.Context, window model.Window, entries []model.LeaderboardEntry) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Publish(ctx, window, entries); err != nil {
			metrics.RecordPublishFailure(n.Name())
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		metrics.RecordLeaderboardPublish(n.Name(), string(window))
	}
	return errors.Join(errs...)
}
