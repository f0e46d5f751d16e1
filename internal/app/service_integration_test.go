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
	"github.com/okian/turf/internal/domain/leaderboard"
	"github.com/okian/turf/internal/domain/model"
)

func waitWindows(ch <-chan model.Window, n int) bool {
	for i := 0; i < n; i++ {
		select {
		case <-ch:
		case <-time.After(3 * time.Second):
			return false
		}
	}
	return true
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a started service with a notifier", t, func() {
		ctx := context.Background()
		clock := newClock()
		rec := newRecorder("recorder")
		svc := newService(clock, service.WithNotifier(rec))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When two users finish runs of different length", func() {
			a, err := svc.StartRun(ctx, "ana")
			So(err, ShouldBeNil)
			walk(ctx, svc, clock, a.ID, 2)
			_, err = svc.EndRun(ctx, a.ID)
			So(err, ShouldBeNil)

			b, err := svc.StartRun(ctx, "ben")
			So(err, ShouldBeNil)
			walk(ctx, svc, clock, b.ID, 4)
			_, err = svc.EndRun(ctx, b.ID)
			So(err, ShouldBeNil)

			Convey("Then the leaderboard ranks by steps and skips idle users", func() {
				entries, err := svc.Leaderboard(ctx, model.WindowDaily)
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 2)
				So(entries[0].UserID, ShouldEqual, "ben")
				So(entries[0].Rank, ShouldEqual, 1)
				So(entries[0].TotalSteps, ShouldEqual, 428)
				So(entries[0].TerritoriesClaimed, ShouldEqual, 1)
				So(entries[1].UserID, ShouldEqual, "ana")
				So(entries[1].TotalSteps, ShouldEqual, 143)
				So(entries[1].Rank, ShouldEqual, 2)
			})

			Convey("And every window is published after each ended run", func() {
				So(waitWindows(rec.calls, 2*len(model.Windows)), ShouldBeTrue)
				for _, w := range model.Windows {
					So(rec.last(w), ShouldHaveLength, 2)
				}
			})

			Convey("And the weekly window drops runs older than seven days", func() {
				clock.Advance(8 * 24 * time.Hour)
				weekly, err := svc.Leaderboard(ctx, model.WindowWeekly)
				So(err, ShouldBeNil)
				So(weekly, ShouldBeEmpty)
				all, err := svc.Leaderboard(ctx, model.WindowAllTime)
				So(err, ShouldBeNil)
				So(all, ShouldHaveLength, 2)
			})
		})
	})
}

func TestServiceRefresh(t *testing.T) {
	Convey("Given a failing notifier", t, func() {
		ctx := context.Background()
		rec := newRecorder("flaky")
		rec.fail = errors.New("unreachable")
		svc := newService(newClock(), service.WithNotifier(rec))

		Convey("Then a manual refresh still succeeds", func() {
			So(svc.RefreshLeaderboards(ctx), ShouldBeNil)
			So(waitWindows(rec.calls, len(model.Windows)), ShouldBeTrue)
		})
	})

	Convey("Given a store that fails", t, func() {
		ctx := context.Background()
		svc := newService(newClock(), service.WithStore(&brokenStore{Store: repository.NewMemoryStore()}))

		Convey("Then refresh reports the failure", func() {
			err := svc.RefreshLeaderboards(ctx)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "disk on fire")
		})
	})

	Convey("Given the steps-only filter and a limit of one", t, func() {
		ctx := context.Background()
		clock := newClock()
		svc := newService(clock,
			service.WithLeaderboardFilter(leaderboard.StepsOnly),
			service.WithLeaderboardLimit(1),
		)
		for _, u := range []string{"ana", "ben"} {
			run, err := svc.StartRun(ctx, u)
			So(err, ShouldBeNil)
			walk(ctx, svc, clock, run.ID, 2)
			_, err = svc.EndRun(ctx, run.ID)
			So(err, ShouldBeNil)
		}

		Convey("Then only the top entry is returned", func() {
			entries, err := svc.Leaderboard(ctx, model.WindowAllTime)
			So(err, ShouldBeNil)
			So(entries, ShouldHaveLength, 1)
			So(entries[0].Rank, ShouldEqual, 1)
		})
	})
}

func TestServiceConcurrency(t *testing.T) {
	Convey("Given many users tracking at once", t, func() {
		ctx := context.Background()
		clock := newClock()
		ids := []string{"u0", "u1", "u2", "u3", "u4", "u5", "u6", "u7"}
		dir := repository.NewUserDirectory()
		for _, id := range ids {
			So(dir.Upsert(ctx, model.User{ID: id, Name: id}), ShouldBeNil)
		}
		svc := service.New(service.WithUsers(dir), service.WithClock(clock.Now), service.WithWorkerCount(2))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		var wg sync.WaitGroup
		errs := make(chan error, 64)
		for _, id := range ids {
			wg.Add(1)
			go func(user string) {
				defer wg.Done()
				run, err := svc.StartRun(ctx, user)
				if err != nil {
					errs <- err
					return
				}
				for j := 0; j < 5; j++ {
					if _, err := svc.AddPoint(ctx, run.ID, service.PointInput{Latitude: float64(j) * 0.001, Longitude: 0}); err != nil {
						errs <- err
					}
				}
				if _, err := svc.EndRun(ctx, run.ID); err != nil {
					errs <- err
				}
			}(id)
		}
		wg.Wait()
		close(errs)

		Convey("Then every run is recorded without errors", func() {
			for err := range errs {
				So(err, ShouldBeNil)
			}
			So(svc.GetStats()["totalRuns"], ShouldEqual, 8)
			entries, err := svc.Leaderboard(ctx, model.WindowAllTime)
			So(err, ShouldBeNil)
			So(entries, ShouldHaveLength, 8)
		})
	})
}

type brokenStore struct {
	repository.Store
}

func (b *brokenStore) RangeTotals(context.Context, string, time.Time, time.Time) (model.Totals, error) {
	return model.Totals{}, errors.New("disk on fire")
}

func TestServiceShutdownDrain(t *testing.T) {
	Convey("Given a service started on a context that is later cancelled", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		clock := newClock()
		rec := newRecorder("recorder")
		svc := newService(clock, service.WithNotifier(rec))
		So(svc.Start(ctx), ShouldBeNil)

		run, err := svc.StartRun(ctx, "ana")
		So(err, ShouldBeNil)
		walk(ctx, svc, clock, run.ID, 3)
		cancel()

		Convey("When a run ends during the grace period and the service stops", func() {
			_, err := svc.EndRun(context.Background(), run.ID)
			So(err, ShouldBeNil)
			svc.Stop()

			Convey("Then the pending refresh was published before Stop returned", func() {
				So(len(rec.calls), ShouldEqual, len(model.Windows))
				So(rec.last(model.WindowDaily), ShouldHaveLength, 1)
			})
		})
	})

	Convey("Given a started service", t, func() {
		clock := newClock()
		rec := newRecorder("recorder")
		svc := newService(clock, service.WithNotifier(rec))
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		run, err := svc.StartRun(context.Background(), "ben")
		So(err, ShouldBeNil)
		walk(context.Background(), svc, clock, run.ID, 3)

		Convey("When the request that ends a run is cancelled after the save", func() {
			reqCtx, cancelReq := context.WithCancel(context.Background())
			cancelReq()
			_, err := svc.EndRun(reqCtx, run.ID)

			Convey("Then the refresh is still delivered", func() {
				So(err, ShouldBeNil)
				So(waitWindows(rec.calls, len(model.Windows)), ShouldBeTrue)
				So(rec.last(model.WindowAllTime), ShouldHaveLength, 1)
			})
		})
	})
}

// gatedStore blocks the first armed Save until released and then fails it.
type gatedStore struct {
	repository.Store
	mu      sync.Mutex
	armed   bool
	entered chan struct{}
	release chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		Store:   repository.NewMemoryStore(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedStore) arm() {
	g.mu.Lock()
	g.armed = true
	g.mu.Unlock()
}

func (g *gatedStore) Save(ctx context.Context, r model.Run) error {
	g.mu.Lock()
	armed := g.armed
	g.armed = false
	g.mu.Unlock()
	if armed {
		close(g.entered)
		<-g.release
		return errors.New("write timed out")
	}
	return g.Store.Save(ctx, r)
}

func TestServiceConcurrentSampleRetry(t *testing.T) {
	Convey("Given a run whose next save fails slowly", t, func() {
		ctx := context.Background()
		store := newGatedStore()
		svc := newService(newClock(), service.WithStore(store))
		run, err := svc.StartRun(ctx, "ana")
		So(err, ShouldBeNil)
		store.arm()

		Convey("When a retry with the same sample id arrives while the original is in flight", func() {
			in := service.PointInput{Latitude: 1, Longitude: 1, SampleID: "s-1"}

			var (
				origErr  error
				retry    model.Run
				retryErr error
				wg       sync.WaitGroup
			)
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, origErr = svc.AddPoint(ctx, run.ID, in)
			}()
			<-store.entered

			retried := make(chan struct{})
			go func() {
				defer close(retried)
				retry, retryErr = svc.AddPoint(ctx, run.ID, in)
			}()

			answeredEarly := false
			select {
			case <-retried:
				answeredEarly = true
			case <-time.After(50 * time.Millisecond):
			}
			close(store.release)
			wg.Wait()
			<-retried

			Convey("Then the retry applies the sample the original failed to store", func() {
				So(answeredEarly, ShouldBeFalse)
				So(origErr, ShouldNotBeNil)
				So(retryErr, ShouldBeNil)
				So(retry.Points, ShouldHaveLength, 1)

				stored, err := store.FindByID(ctx, run.ID)
				So(err, ShouldBeNil)
				So(stored.Points, ShouldHaveLength, 1)
			})
		})
	})
}
