package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/turf/internal/simulate"
)

// Default configuration constants.
const (
	defaultUsers        = 100
	defaultPointsPerRun = 60
	defaultWorkers      = 2 // multiplier for runtime.NumCPU()
	defaultEvery        = 5 * time.Second
	defaultRetryRate    = 0.05
	defaultLimit        = 50
	defaultTimeout      = 30 * time.Second
	defaultSimTimeout   = 10 * time.Minute
	defaultLat          = 52.3676
	defaultLon          = 4.9041
)

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:9080", "Base URL of the service")
		users   = flag.Int("users", defaultUsers, "Number of synthetic users, one run each")
		points  = flag.Int("points", defaultPointsPerRun, "GPS samples per run")
		workers = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		every   = flag.Duration("every", defaultEvery, "Simulated time between samples")
		retry   = flag.Float64("retry", defaultRetryRate, "Fraction of samples resubmitted with the same sample id")
		limit   = flag.Int("limit", defaultLimit, "Leaderboard size cap to verify against")
		seed    = flag.Uint64("seed", 0, "Random walk seed (default: from the clock)")
		lat     = flag.Float64("lat", defaultLat, "Walk origin latitude")
		lon     = flag.Float64("lon", defaultLon, "Walk origin longitude")
		timeout = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logFile = flag.String("log", "", "Log file (default: simulate_TIMESTAMP.log)")
		verbose = flag.Bool("verbose", false, "Enable verbose logging")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	closer, err := simulate.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultSimTimeout)
	cfg := &simulate.Config{
		BaseURL:      *baseURL,
		Users:        *users,
		PointsPerRun: *points,
		Workers:      max(1, *workers),
		Timeout:      *timeout,
		SampleEvery:  *every,
		RetryRate:    *retry,
		Limit:        *limit,
		Seed:         *seed,
		Origin:       simulate.Coordinate{Latitude: *lat, Longitude: *lon},
		LogFile:      *logFile,
		Verbose:      *verbose,
	}

	_, err = simulate.Run(ctx, cfg)
	cancel()
	_ = closer.Close()
	if err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
