package simulate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/turf/pkg/logger"
)

// Throttle handling.
const (
	throttleBackoff    = 250 * time.Millisecond
	maxThrottleRetries = 8
)

// Windows lists the leaderboards the simulation verifies.
var Windows = []string{"daily", "weekly", "all-time"}

// plan is one synthetic user's run, generated before any request is sent.
type plan struct {
	userID  string
	name    string
	samples []Sample
	retry   []bool
}

// Run executes the complete simulation and returns its statistics.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("simulate")

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	log.Info(ctx, "starting run simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("users", cfg.Users),
		logger.Int("pointsPerRun", cfg.PointsPerRun),
		logger.Int("workers", cfg.Workers),
		logger.String("seed", strconv.FormatUint(seed, 10)))

	client := NewClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate tracks
	plans := generatePlans(cfg, NewWalker(seed, cfg.Origin, cfg.SampleEvery))

	// Step 3: Register users
	for _, p := range plans {
		if err := client.PutUser(ctx, p.userID, p.name); err != nil {
			return stats, fmt.Errorf("register %s: %w", p.userID, err)
		}
		stats.UsersCreated++
	}

	// Step 4: Drive runs concurrently
	ended := driveRuns(ctx, cfg, client, plans, stats, log)
	if len(ended) == 0 {
		return stats, errors.New("no run completed")
	}

	// Step 5: Refresh and verify leaderboards
	if err := client.Refresh(ctx); err != nil {
		return stats, fmt.Errorf("refresh leaderboards: %w", err)
	}
	var errs []error
	for _, w := range Windows {
		entries, err := client.Leaderboard(ctx, w)
		if err != nil {
			return stats, fmt.Errorf("fetch %s leaderboard: %w", w, err)
		}
		stats.LeaderboardChecks++
		errs = append(errs, VerifyOrder(w, entries, cfg.Limit))
		if w == "all-time" {
			errs = append(errs, VerifyTotals(w, entries, ended))
		}
		log.Info(ctx, "leaderboard checked", logger.String("window", w), logger.Int("entries", len(entries)))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)

	if err := errors.Join(errs...); err != nil {
		return stats, fmt.Errorf("verification failed: %w", err)
	}
	log.Info(ctx, "simulation completed successfully")
	return stats, nil
}

func generatePlans(cfg *Config, w *Walker) []plan {
	batch := uuid.NewString()[:8]
	plans := make([]plan, cfg.Users)
	for i := range plans {
		samples := w.Track(cfg.PointsPerRun)
		retry := make([]bool, len(samples))
		for j := range retry {
			retry[j] = w.Float64() < cfg.RetryRate
		}
		plans[i] = plan{
			userID:  fmt.Sprintf("sim-%s-%03d", batch, i),
			name:    fmt.Sprintf("Runner %d", i+1),
			samples: samples,
			retry:   retry,
		}
	}
	return plans
}

// driveRuns fans plans out to workers and returns the ended run per user.
func driveRuns(ctx context.Context, cfg *Config, client *Client, plans []plan, stats *Stats, log logger.Logger) map[string]RunView {
	var (
		submitted, retried, failedPts, failedRuns atomic.Int64

		mu    sync.Mutex
		ended = make(map[string]RunView, len(plans))
	)

	jobs := make(chan plan, cfg.Workers*2)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				run, err := driveRun(ctx, client, p, &submitted, &retried, &failedPts)
				if err != nil {
					failedRuns.Add(1)
					log.Warn(ctx, "run failed", logger.String("user_id", p.userID), logger.Error(err))
					continue
				}
				mu.Lock()
				ended[p.userID] = run
				mu.Unlock()
				if cfg.Verbose {
					log.Info(ctx, "run ended",
						logger.String("user_id", p.userID),
						logger.Int("steps", run.TotalSteps),
						logger.Float64("distance", run.DistanceMeters))
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, p := range plans {
			select {
			case <-ctx.Done():
				return
			case jobs <- p:
			}
		}
	}()
	wg.Wait()

	stats.PointsSubmitted = int(submitted.Load())
	stats.PointsRetried = int(retried.Load())
	stats.PointsFailed = int(failedPts.Load())
	stats.RunsFailed = int(failedRuns.Load())
	stats.RunsCompleted = len(ended)
	return ended
}

func driveRun(ctx context.Context, client *Client, p plan, submitted, retried, failed *atomic.Int64) (RunView, error) {
	run, err := client.StartRun(ctx, p.userID)
	if err != nil {
		return RunView{}, fmt.Errorf("start: %w", err)
	}
	for i, s := range p.samples {
		if err := addPoint(ctx, client, run.ID, s); err != nil {
			failed.Add(1)
			return RunView{}, fmt.Errorf("point %d: %w", i, err)
		}
		submitted.Add(1)
		if p.retry[i] {
			if err := addPoint(ctx, client, run.ID, s); err != nil {
				failed.Add(1)
				return RunView{}, fmt.Errorf("retry point %d: %w", i, err)
			}
			retried.Add(1)
		}
	}
	run, err = client.EndRun(ctx, run.ID)
	if err != nil {
		return RunView{}, fmt.Errorf("end: %w", err)
	}
	return run, nil
}

// addPoint submits s, backing off while the service throttles this client.
// Resubmitting is safe because every sample carries a sample id.
func addPoint(ctx context.Context, client *Client, runID string, s Sample) error {
	backoff := throttleBackoff
	for attempt := 0; ; attempt++ {
		_, err := client.AddPoint(ctx, runID, s)
		if err == nil || !IsThrottled(err) || attempt == maxThrottleRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// displayFinalStats logs the final simulation statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var pointsPerSecond float64
	if stats.Duration > 0 {
		pointsPerSecond = float64(stats.PointsSubmitted+stats.PointsRetried) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("usersCreated", stats.UsersCreated),
		logger.Int("runsCompleted", stats.RunsCompleted),
		logger.Int("runsFailed", stats.RunsFailed),
		logger.Int("pointsSubmitted", stats.PointsSubmitted),
		logger.Int("pointsRetried", stats.PointsRetried),
		logger.Int("pointsFailed", stats.PointsFailed),
		logger.Int("leaderboardChecks", stats.LeaderboardChecks),
		logger.Duration("duration", stats.Duration),
		logger.Float64("pointsPerSecond", pointsPerSecond))
}
