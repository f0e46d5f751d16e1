package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/turf/internal/adapters/repository"
	service "github.com/okian/turf/internal/app"
	"github.com/okian/turf/internal/domain/model"
)

var base = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock { return &fakeClock{t: base} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	name  string
	fail  error
	mu    sync.Mutex
	seen  map[model.Window][]model.LeaderboardEntry
	calls chan model.Window
}

func newRecorder(name string) *recordingNotifier {
	return &recordingNotifier{name: name, seen: map[model.Window][]model.LeaderboardEntry{}, calls: make(chan model.Window, 64)}
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) Publish(_ context.Context, w model.Window, entries []model.LeaderboardEntry) error {
	r.mu.Lock()
	r.seen[w] = entries
	r.mu.Unlock()
	r.calls <- w
	return r.fail
}

func (r *recordingNotifier) last(w model.Window) []model.LeaderboardEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[w]
}

func users() *repository.UserDirectory {
	return repository.NewUserDirectory(
		model.User{ID: "ana", Name: "Ana"},
		model.User{ID: "ben", Name: "Ben"},
		model.User{ID: "cy", Name: "Cy"},
	)
}

func newService(clock *fakeClock, opts ...service.Option) *service.Service {
	return service.New(append([]service.Option{
		service.WithUsers(users()),
		service.WithClock(clock.Now),
		service.WithWorkerCount(1),
	}, opts...)...)
}

// walk adds n points heading east from the origin, 0.001 degrees apart.
func walk(ctx context.Context, svc *service.Service, clock *fakeClock, runID string, n int) model.Run {
	var run model.Run
	for i := 0; i < n; i++ {
		clock.Advance(time.Minute)
		var err error
		run, err = svc.AddPoint(ctx, runID, service.PointInput{Latitude: 0, Longitude: float64(i) * 0.001})
		So(err, ShouldBeNil)
	}
	return run
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New()

		Convey("Then stats are available before starting", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["totalRuns"], ShouldEqual, 0)
		})

		Convey("When started twice and stopped", func() {
			ctx := context.Background()
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)
			svc.Stop()

			Convey("Then it reports stopped and cannot restart", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(svc.Start(ctx), ShouldNotBeNil)
				svc.Stop()
			})
		})
	})
}

func TestService_Runs(t *testing.T) {
	Convey("Given a service with seeded users", t, func() {
		ctx := context.Background()
		clock := newClock()
		svc := newService(clock)

		Convey("Unknown users cannot start runs", func() {
			_, err := svc.StartRun(ctx, "ghost")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("A run moves through its lifecycle", func() {
			run, err := svc.StartRun(ctx, "ana")
			So(err, ShouldBeNil)
			So(run.State, ShouldEqual, model.StateActive)

			active, err := svc.ActiveRun(ctx, "ana")
			So(err, ShouldBeNil)
			So(active.ID, ShouldEqual, run.ID)

			paused, err := svc.PauseRun(ctx, run.ID)
			So(err, ShouldBeNil)
			So(paused.State, ShouldEqual, model.StatePaused)

			resumed, err := svc.ResumeRun(ctx, run.ID)
			So(err, ShouldBeNil)
			So(resumed.State, ShouldEqual, model.StateActive)

			walked := walk(ctx, svc, clock, run.ID, 3)
			So(walked.Points, ShouldHaveLength, 3)
			So(walked.DistanceMeters, ShouldAlmostEqual, 222.39, 0.1)

			clock.Advance(time.Minute)
			ended, err := svc.EndRun(ctx, run.ID)
			So(err, ShouldBeNil)
			So(ended.State, ShouldEqual, model.StateEnded)
			So(ended.HasTerritory(), ShouldBeTrue)
			So(ended.DurationSeconds, ShouldEqual, 240)

			_, err = svc.ActiveRun(ctx, "ana")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)

			_, err = svc.EndRun(ctx, run.ID)
			So(errors.Is(err, model.ErrInvalidState), ShouldBeTrue)

			runs, err := svc.UserRuns(ctx, "ana")
			So(err, ShouldBeNil)
			So(runs, ShouldHaveLength, 1)

			ts, err := svc.ClaimedTerritories(ctx)
			So(err, ShouldBeNil)
			So(ts, ShouldHaveLength, 1)
			So(ts[0].RunID, ShouldEqual, run.ID)
		})

		Convey("Starting again ends the open run", func() {
			first, err := svc.StartRun(ctx, "ben")
			So(err, ShouldBeNil)
			clock.Advance(time.Second)
			second, err := svc.StartRun(ctx, "ben")
			So(err, ShouldBeNil)
			So(second.ID, ShouldNotEqual, first.ID)

			runs, err := svc.UserRuns(ctx, "ben")
			So(err, ShouldBeNil)
			So(runs, ShouldHaveLength, 2)
			So(runs[0].ID, ShouldEqual, second.ID)
			So(runs[1].State, ShouldEqual, model.StateEnded)
		})
	})
}

func TestService_AddPointIdempotency(t *testing.T) {
	Convey("Given an active run", t, func() {
		ctx := context.Background()
		clock := newClock()
		svc := newService(clock)
		run, err := svc.StartRun(ctx, "ana")
		So(err, ShouldBeNil)

		Convey("When the same sample is submitted twice", func() {
			in := service.PointInput{Latitude: 1, Longitude: 1, SampleID: "s-1"}
			_, err := svc.AddPoint(ctx, run.ID, in)
			So(err, ShouldBeNil)
			clock.Advance(time.Second)
			again, err := svc.AddPoint(ctx, run.ID, in)

			Convey("Then only one point is stored", func() {
				So(err, ShouldBeNil)
				So(again.Points, ShouldHaveLength, 1)
			})
		})

		Convey("When a rejected sample is retried with valid data", func() {
			_, err := svc.AddPoint(ctx, run.ID, service.PointInput{Latitude: 91, Longitude: 0, SampleID: "s-2"})
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)

			got, err := svc.AddPoint(ctx, run.ID, service.PointInput{Latitude: 10, Longitude: 0, SampleID: "s-2"})

			Convey("Then the retry is accepted", func() {
				So(err, ShouldBeNil)
				So(got.Points, ShouldHaveLength, 1)
			})
		})

		Convey("When the step hint is supplied", func() {
			hint := 12
			got, err := svc.AddPoint(ctx, run.ID, service.PointInput{Latitude: 1, Longitude: 1, StepCount: &hint})

			Convey("Then it is stored but does not drive totals", func() {
				So(err, ShouldBeNil)
				So(*got.Points[0].ReportedSteps, ShouldEqual, 12)
				So(got.TotalSteps, ShouldEqual, 0)
			})
		})

		Convey("When the run is unknown", func() {
			_, err := svc.AddPoint(ctx, "nope", service.PointInput{Latitude: 1, Longitude: 1})
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_Users(t *testing.T) {
	Convey("Given the user directory", t, func() {
		ctx := context.Background()
		svc := newService(newClock())

		list, err := svc.ListUsers(ctx)
		So(err, ShouldBeNil)
		So(list, ShouldHaveLength, 3)

		u, err := svc.UpsertUser(ctx, model.User{ID: "dee", Name: "Dee"})
		So(err, ShouldBeNil)
		So(u.Name, ShouldEqual, "Dee")

		got, err := svc.GetUser(ctx, "dee")
		So(err, ShouldBeNil)
		So(got.Name, ShouldEqual, "Dee")

		_, err = svc.UpsertUser(ctx, model.User{})
		So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
	})
}

func TestMultiNotifier(t *testing.T) {
	Convey("Given a fan-out over a healthy and a failing notifier", t, func() {
		ok := newRecorder("ok")
		bad := newRecorder("bad")
		bad.fail = errors.New("boom")
		m := service.NewMultiNotifier(ok, nil, bad)
		So(m.Len(), ShouldEqual, 2)

		err := m.Publish(context.Background(), model.WindowDaily, []model.LeaderboardEntry{{UserID: "a", Rank: 1}})

		Convey("Then every notifier is tried and the failure is reported", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "bad: boom")
			So(ok.last(model.WindowDaily), ShouldHaveLength, 1)
			So(bad.last(model.WindowDaily), ShouldHaveLength, 1)
		})
	})
}
