package simulate

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/turf/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "simulate_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.Init(logger.WithOutput(io.MultiWriter(os.Stdout, file))); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return file, nil
}

// ShowHelp prints usage information for the simulation tool.
func ShowHelp() {
	os.Stdout.WriteString(`Turf Run Simulator
==================

Drives synthetic runs through the run tracker HTTP API and checks the
resulting leaderboards.

Usage:
  go run ./cmd/simulate [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -users int
        Number of synthetic users, one run each (default 100)
  -points int
        GPS samples per run (default 60)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -every duration
        Simulated time between samples (default 5s)
  -retry float
        Fraction of samples resubmitted with the same sample id (default 0.05)
  -limit int
        Leaderboard size cap to verify against (default 50)
  -seed uint
        Random walk seed (default: from the clock)
  -lat, -lon float
        Walk origin (default 52.3676, 4.9041)
  -timeout duration
        HTTP request timeout (default 30s)
  -log string
        Log file (default: simulate_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  go run ./cmd/simulate -users 500 -workers 16
  go run ./cmd/simulate -seed 42 -verbose
`)
}
