// Package tracking implements the run state machine and point accumulation.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/turf/internal/domain/dedupe"
	"github.com/okian/turf/internal/domain/geo"
	"github.com/okian/turf/internal/domain/model"
	"github.com/okian/turf/internal/domain/stride"
	"github.com/okian/turf/internal/domain/territory"
	"github.com/okian/turf/pkg/logger"
)

// PointInput is a GPS sample submitted for a run.
type PointInput struct {
	Latitude  float64
	Longitude float64
	// StepHint is the client's own step count, stored for display only.
	StepHint *int
	// SampleID makes a retried submission idempotent when a deduper is set.
	SampleID string
}

// Tracker owns run lifecycle transitions. Every mutation of a run is
// serialized on the run id, and run creation is serialized on the user id.
type Tracker struct {
	store RunStore
	users UserDirectory

	estimator stride.Estimator
	deduper   dedupe.Deduper
	buffer    float64
	now       func() time.Time
	newID     func() string
	log       logger.Logger

	runLocks  *keyedMutex
	userLocks *keyedMutex
}

// NewTracker creates a Tracker with configuration options.
func NewTracker(store RunStore, users UserDirectory, opts ...Option) *Tracker {
	t := &Tracker{
		store:     store,
		users:     users,
		estimator: stride.New(),
		buffer:    territory.DefaultBuffer,
		now:       time.Now,
		newID:     uuid.NewString,
		log:       logger.Nop(),
		runLocks:  newKeyedMutex(),
		userLocks: newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start opens a new Active run for userID. An open run the user already has
// is ended first; its RunEnded event is returned as closed.
func (t *Tracker) Start(ctx context.Context, userID string) (model.Run, *model.RunEnded, error) {
	if _, err := t.users.FindUser(ctx, userID); err != nil {
		return model.Run{}, nil, fmt.Errorf("start run for %q: %w", userID, err)
	}

	unlockUser := t.userLocks.Lock(userID)
	defer unlockUser()

	var closed *model.RunEnded
	open, ok, err := t.store.FindOpenRunForUser(ctx, userID)
	if err != nil {
		return model.Run{}, nil, fmt.Errorf("find open run: %w", err)
	}
	if ok {
		unlockRun := t.runLocks.Lock(open.ID)
		_, ev, err := t.endLocked(ctx, open.ID)
		unlockRun()
		switch {
		case err == nil:
			closed = &ev
			t.log.Info(ctx, "open run force-ended", logger.String("run_id", open.ID), logger.String("user_id", userID))
		case errors.Is(err, model.ErrInvalidState):
			// Ended concurrently between the lookup and the lock.
		default:
			return model.Run{}, nil, fmt.Errorf("end open run %q: %w", open.ID, err)
		}
	}

	run := model.Run{
		ID:        t.newID(),
		UserID:    userID,
		StartTime: t.now(),
		State:     model.StateActive,
		Points:    []model.RunPoint{},
	}
	if err := t.store.Save(ctx, run); err != nil {
		return model.Run{}, closed, fmt.Errorf("save run: %w", err)
	}
	t.log.Debug(ctx, "run started", logger.String("run_id", run.ID), logger.String("user_id", userID))
	return run, closed, nil
}

// Pause moves an Active run to Paused. Pausing a Paused run changes nothing.
func (t *Tracker) Pause(ctx context.Context, runID string) (model.Run, error) {
	return t.transition(ctx, runID, model.StatePaused)
}

// Resume moves a Paused run back to Active. Resuming an Active run changes nothing.
func (t *Tracker) Resume(ctx context.Context, runID string) (model.Run, error) {
	return t.transition(ctx, runID, model.StateActive)
}

func (t *Tracker) transition(ctx context.Context, runID string, to model.State) (model.Run, error) {
	unlock := t.runLocks.Lock(runID)
	defer unlock()

	run, err := t.store.FindByID(ctx, runID)
	if err != nil {
		return model.Run{}, fmt.Errorf("load run %q: %w", runID, err)
	}
	if run.State == model.StateEnded {
		return model.Run{}, fmt.Errorf("%w: run %q has ended", model.ErrInvalidState, runID)
	}
	if run.State == to {
		return run, nil
	}

	run.State = to
	if err := t.store.Save(ctx, run); err != nil {
		return model.Run{}, fmt.Errorf("save run: %w", err)
	}
	t.log.Debug(ctx, "run state changed", logger.String("run_id", runID), logger.String("state", string(to)))
	return run, nil
}

// AddPoint appends a sample to an open run and refreshes its distance and
// step totals. The first point of a run contributes no distance. The bool
// result is false when the sample id was already applied; the run is then
// returned unchanged.
func (t *Tracker) AddPoint(ctx context.Context, runID string, in PointInput) (model.Run, bool, error) {
	if err := geo.Validate(in.Latitude, in.Longitude); err != nil {
		return model.Run{}, false, err
	}
	if in.StepHint != nil && *in.StepHint < 0 {
		return model.Run{}, false, fmt.Errorf("%w: step count must not be negative", model.ErrInvalidInput)
	}

	unlock := t.runLocks.Lock(runID)
	defer unlock()

	run, err := t.store.FindByID(ctx, runID)
	if err != nil {
		return model.Run{}, false, fmt.Errorf("load run %q: %w", runID, err)
	}

	// The sample is recorded under the run lock, so a concurrent retry
	// waits for the original and sees its outcome.
	var key string
	if t.deduper != nil && in.SampleID != "" {
		key = dedupe.Key(runID, in.SampleID)
		if t.deduper.SeenAndRecord(ctx, key) {
			t.log.Debug(ctx, "duplicate sample skipped",
				logger.String("run_id", runID), logger.String("sample_id", in.SampleID))
			return run, false, nil
		}
	}
	run, err = t.appendPoint(ctx, run, in)
	if err != nil {
		if key != "" {
			t.deduper.Unrecord(ctx, key)
		}
		return model.Run{}, false, err
	}
	return run, true, nil
}

func (t *Tracker) appendPoint(ctx context.Context, run model.Run, in PointInput) (model.Run, error) {
	if run.State == model.StateEnded {
		return model.Run{}, fmt.Errorf("%w: run %q has ended", model.ErrInvalidState, run.ID)
	}

	now := t.now()
	point := model.RunPoint{
		Location:  model.At(in.Latitude, in.Longitude),
		Timestamp: now,
	}
	if in.StepHint != nil {
		hint := *in.StepHint
		point.ReportedSteps = &hint
	}

	var delta float64
	if n := len(run.Points); n > 0 {
		last := run.Points[n-1]
		delta = geo.Between(last.Location, point.Location)
		point.StepCount = t.estimator.Steps(delta)
		if dt := now.Sub(last.Timestamp).Seconds(); dt > 0 {
			speed := delta / dt
			point.Speed = &speed
		}
	}

	run.Points = append(run.Points, point)
	run.DistanceMeters += delta
	run.TotalSteps = t.estimator.Steps(run.DistanceMeters)

	if err := t.store.Save(ctx, run); err != nil {
		return model.Run{}, fmt.Errorf("save run: %w", err)
	}
	return run, nil
}

// End finalizes a run: duration, distance and steps are recomputed from the
// full path and a territory is claimed when the path has more than two points.
// The returned event is the caller's to deliver.
func (t *Tracker) End(ctx context.Context, runID string) (model.Run, model.RunEnded, error) {
	unlock := t.runLocks.Lock(runID)
	defer unlock()
	return t.endLocked(ctx, runID)
}

func (t *Tracker) endLocked(ctx context.Context, runID string) (model.Run, model.RunEnded, error) {
	run, err := t.store.FindByID(ctx, runID)
	if err != nil {
		return model.Run{}, model.RunEnded{}, fmt.Errorf("load run %q: %w", runID, err)
	}
	if run.State == model.StateEnded {
		return model.Run{}, model.RunEnded{}, fmt.Errorf("%w: run %q already ended", model.ErrInvalidState, runID)
	}

	end := t.now()
	if end.Before(run.StartTime) {
		end = run.StartTime
	}
	run.EndTime = &end
	run.State = model.StateEnded
	run.DurationSeconds = int64(end.Sub(run.StartTime) / time.Second)

	path := run.Path()
	run.DistanceMeters = geo.PathLength(path)
	run.TotalSteps = t.estimator.Steps(run.DistanceMeters)
	if ring, ok := territory.Derive(path, territory.WithBuffer(t.buffer)); ok {
		run.Territory = ring
		run.TerritoryAreaM2 = territory.AreaSquareMeters(ring)
	}

	if err := t.store.Save(ctx, run); err != nil {
		return model.Run{}, model.RunEnded{}, fmt.Errorf("save run: %w", err)
	}

	t.log.Info(ctx, "run ended",
		logger.String("run_id", run.ID),
		logger.String("user_id", run.UserID),
		logger.Float64("distance_m", run.DistanceMeters),
		logger.Int("steps", run.TotalSteps),
		logger.Bool("territory", run.HasTerritory()),
	)
	return run, model.RunEnded{
		RunID:          run.ID,
		UserID:         run.UserID,
		EndedAt:        end,
		DistanceMeters: run.DistanceMeters,
		HasTerritory:   run.HasTerritory(),
	}, nil
}

// ActiveRun returns the user's open run or model.ErrNotFound.
func (t *Tracker) ActiveRun(ctx context.Context, userID string) (model.Run, error) {
	run, ok, err := t.store.FindOpenRunForUser(ctx, userID)
	if err != nil {
		return model.Run{}, fmt.Errorf("find open run: %w", err)
	}
	if !ok {
		return model.Run{}, fmt.Errorf("%w: no active run for %q", model.ErrNotFound, userID)
	}
	return run, nil
}

// UserRuns returns every run of a known user, newest first.
func (t *Tracker) UserRuns(ctx context.Context, userID string) ([]model.Run, error) {
	if _, err := t.users.FindUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("list runs for %q: %w", userID, err)
	}
	runs, err := t.store.FindAllByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
