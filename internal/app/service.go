// Package service wires the run tracker, leaderboard aggregation and
// notification fan-out into the operations the HTTP API exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	eventqueue "github.com/okian/turf/internal/adapters/mq/queue"
	workerpool "github.com/okian/turf/internal/adapters/mq/worker"
	"github.com/okian/turf/internal/adapters/repository"
	"github.com/okian/turf/internal/domain/dedupe"
	"github.com/okian/turf/internal/domain/leaderboard"
	"github.com/okian/turf/internal/domain/model"
	"github.com/okian/turf/internal/domain/stride"
	"github.com/okian/turf/internal/domain/territory"
	"github.com/okian/turf/internal/domain/tracking"
	"github.com/okian/turf/pkg/logger"
	"github.com/okian/turf/pkg/metrics"
)

// Default service configuration.
const (
	defaultQueueSize  = 1024
	defaultDedupeSize = 100_000
)

// PointInput is a GPS sample as submitted by a client.
type PointInput struct {
	Latitude  float64
	Longitude float64
	StepCount *int
	// SampleID makes retried submissions idempotent when set.
	SampleID string
}

// Service implements the API dependencies for the run tracker.
type Service struct {
	mu sync.RWMutex

	store      repository.Store
	users      *repository.UserDirectory
	notifiers  []LeaderboardNotifier
	notifier   *MultiNotifier
	tracker    *tracking.Tracker
	aggregator *leaderboard.Aggregator
	totals     *repository.WindowedTotals
	deduper    dedupe.Deduper
	queue      *eventqueue.InMemoryQueue
	pool       *workerpool.Pool
	cancelRun  context.CancelFunc

	strideLength    float64
	territoryBuffer float64
	limit           int
	filter          leaderboard.Filter
	location        *time.Location
	queueSize       int
	workerCount     int
	dedupeSize      int
	now             func() time.Time

	started bool
	logger  logger.Logger
}

// New constructs a Service. Domain components are ready immediately; the
// refresh workers only run between Start and Stop.
func New(opts ...Option) *Service {
	s := &Service{
		strideLength:    stride.DefaultLength,
		territoryBuffer: territory.DefaultBuffer,
		limit:           leaderboard.DefaultLimit,
		filter:          leaderboard.StepsOrDistance,
		location:        time.UTC,
		queueSize:       defaultQueueSize,
		workerCount:     runtime.NumCPU(),
		dedupeSize:      defaultDedupeSize,
		now:             time.Now,
		logger:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.users == nil {
		s.users = repository.NewUserDirectory()
	}

	s.notifier = NewMultiNotifier(s.notifiers...)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.tracker = tracking.NewTracker(s.store, s.users,
		tracking.WithEstimator(stride.New(stride.WithLength(s.strideLength))),
		tracking.WithTerritoryBuffer(s.territoryBuffer),
		tracking.WithDeduper(s.deduper),
		tracking.WithClock(s.now),
		tracking.WithLogger(s.logger.Named("tracker")),
	)
	s.aggregator = leaderboard.New(
		leaderboard.WithLimit(s.limit),
		leaderboard.WithFilter(s.filter),
	)
	s.totals = repository.NewWindowedTotals(s.store,
		repository.WithTotalsClock(s.now),
		repository.WithLocation(s.location),
	)
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	return s
}

// Start launches the refresh worker pool. The workers outlive ctx and run
// until Stop has drained the queue.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.queue.IsClosed() {
		return errors.New("service was stopped and cannot be restarted")
	}

	s.logger.Info(ctx, "starting run tracker service...")
	s.pool = workerpool.NewPool(s.workerCount, s.queue,
		workerpool.HandlerFunc(s.HandleRunEnded),
		workerpool.WithLogger(s.logger),
	)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelRun = cancel
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "run tracker service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("notifiers", s.notifier.Len()),
	)
	return nil
}

// Stop drains pending refreshes and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping run tracker service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	s.cancelRun()
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "closing store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "run tracker service stopped")
}

// StartRun opens a new run for userID, ending any run the user left open.
func (s *Service) StartRun(ctx context.Context, userID string) (model.Run, error) {
	run, closed, err := s.tracker.Start(ctx, userID)
	if closed != nil {
		metrics.RecordRunForceEnded()
		s.runEnded(ctx, *closed)
	}
	if err != nil {
		return model.Run{}, err
	}
	metrics.RecordRunStarted()
	return run, nil
}

// PauseRun pauses an active run.
func (s *Service) PauseRun(ctx context.Context, runID string) (model.Run, error) {
	return s.tracker.Pause(ctx, runID)
}

// ResumeRun resumes a paused run.
func (s *Service) ResumeRun(ctx context.Context, runID string) (model.Run, error) {
	return s.tracker.Resume(ctx, runID)
}

// AddPoint appends a GPS sample. A retried sample with a known SampleID
// returns the run unchanged.
func (s *Service) AddPoint(ctx context.Context, runID string, in PointInput) (model.Run, error) {
	run, applied, err := s.tracker.AddPoint(ctx, runID, tracking.PointInput{
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		StepHint:  in.StepCount,
		SampleID:  in.SampleID,
	})
	if err != nil {
		metrics.RecordPointRejected(rejectReason(err))
		return model.Run{}, err
	}
	if !applied {
		metrics.RecordDuplicatePoint()
		return run, nil
	}
	metrics.RecordPointAdded()
	return run, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrInvalidState):
		return "invalid_state"
	default:
		return "internal"
	}
}

// EndRun ends a run and schedules a leaderboard refresh.
func (s *Service) EndRun(ctx context.Context, runID string) (model.Run, error) {
	run, ev, err := s.tracker.End(ctx, runID)
	if err != nil {
		return model.Run{}, err
	}
	s.runEnded(ctx, ev)
	return run, nil
}

// runEnded records metrics for an ended run and queues its refresh. The
// refresh is detached from the request that ended the run. A full queue
// drops it; the next ended run or an explicit refresh catches up.
func (s *Service) runEnded(ctx context.Context, ev model.RunEnded) {
	metrics.RecordRunEnded(ev.DistanceMeters, ev.HasTerritory)
	if !s.queue.Enqueue(context.WithoutCancel(ctx), ev) {
		s.logger.Warn(ctx, "leaderboard refresh dropped",
			logger.String("run_id", ev.RunID), logger.String("user_id", ev.UserID))
	}
}

// ActiveRun returns the user's open run or model.ErrNotFound.
func (s *Service) ActiveRun(ctx context.Context, userID string) (model.Run, error) {
	return s.tracker.ActiveRun(ctx, userID)
}

// UserRuns lists a user's runs, newest first.
func (s *Service) UserRuns(ctx context.Context, userID string) ([]model.Run, error) {
	return s.tracker.UserRuns(ctx, userID)
}

// Leaderboard ranks every known user by their totals in window.
func (s *Service) Leaderboard(ctx context.Context, window model.Window) ([]model.LeaderboardEntry, error) {
	start := time.Now()
	defer func() { metrics.RecordAggregationLatency(string(window), time.Since(start)) }()

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	totals := make([]model.UserTotals, 0, len(users))
	for _, u := range users {
		t, err := s.totals.Totals(ctx, u.ID, window)
		if err != nil {
			return nil, fmt.Errorf("totals for %q: %w", u.ID, err)
		}
		totals = append(totals, model.UserTotals{User: u, Totals: t})
	}
	return s.aggregator.Aggregate(window, totals), nil
}

// RefreshLeaderboards recomputes every window and publishes each snapshot.
// Publish failures are logged, not returned.
func (s *Service) RefreshLeaderboards(ctx context.Context) error {
	boards := make([][]model.LeaderboardEntry, len(model.Windows))
	g, gctx := errgroup.WithContext(ctx)
	for i, w := range model.Windows {
		g.Go(func() error {
			entries, err := s.Leaderboard(gctx, w)
			if err != nil {
				return fmt.Errorf("%s leaderboard: %w", w, err)
			}
			boards[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, w := range model.Windows {
		if err := s.notifier.Publish(ctx, w, boards[i]); err != nil {
			s.logger.Warn(ctx, "leaderboard publish failed",
				logger.String("window", string(w)), logger.Error(err))
		}
	}
	return nil
}

// HandleRunEnded refreshes leaderboards after a run ends.
func (s *Service) HandleRunEnded(ctx context.Context, ev model.RunEnded) error {
	if err := s.RefreshLeaderboards(ctx); err != nil {
		return fmt.Errorf("refresh after run %q: %w", ev.RunID, err)
	}
	return nil
}

// ClaimedTerritories lists every claimed territory, newest first.
func (s *Service) ClaimedTerritories(ctx context.Context) ([]model.ClaimedTerritory, error) {
	return s.store.ClaimedTerritories(ctx)
}

// ListUsers returns the user directory sorted by id.
func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.users.ListUsers(ctx)
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, id string) (model.User, error) {
	return s.users.FindUser(ctx, id)
}

// UpsertUser creates or replaces a user profile.
func (s *Service) UpsertUser(ctx context.Context, u model.User) (model.User, error) {
	if err := s.users.Upsert(ctx, u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueCapacity": s.queueSize,
		"queueLength":   s.queue.Len(ctx),
		"dedupeSize":    s.deduper.Size(),
		"notifiers":     s.notifier.Len(),
	}
	if n, err := s.store.Count(ctx); err == nil {
		stats["totalRuns"] = n
		metrics.UpdateTotalRuns(n)
	}
	if users, err := s.users.ListUsers(ctx); err == nil {
		stats["totalUsers"] = len(users)
	}
	return stats
}
