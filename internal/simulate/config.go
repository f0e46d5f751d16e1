package simulate

import "time"

// Config holds configuration for a simulation.
type Config struct {
	BaseURL      string        // Base URL of the service
	Users        int           // Number of synthetic users
	PointsPerRun int           // GPS samples per run
	Workers      int           // Number of concurrent workers
	Timeout      time.Duration // HTTP request timeout
	SampleEvery  time.Duration // Simulated time between samples
	RetryRate    float64       // Fraction of samples resubmitted with the same sample id
	Limit        int           // Expected leaderboard size cap
	Seed         uint64        // Random walk seed; zero picks one from the clock
	Origin       Coordinate    // Centre the walks start around
	LogFile      string        // Log file for simulation output
	Verbose      bool          // Enable verbose logging
}

// Coordinate is a latitude/longitude pair.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Sample is one GPS fix submitted to a run.
type Sample struct {
	Coordinate
	SampleID string `json:"sampleId"`
}

// RunView mirrors the run shape returned by the service.
type RunView struct {
	ID             string  `json:"id"`
	UserID         string  `json:"userId"`
	TotalSteps     int     `json:"totalSteps"`
	DistanceMeters float64 `json:"distanceMeters"`
	IsActive       bool    `json:"isActive"`
}

// Entry mirrors a leaderboard row.
type Entry struct {
	UserID        string  `json:"userId"`
	Name          string  `json:"name"`
	TotalSteps    int64   `json:"totalSteps"`
	TotalDistance float64 `json:"totalDistance"`
	Rank          int     `json:"rank"`
}

// Stats holds simulation statistics.
type Stats struct {
	UsersCreated      int
	RunsCompleted     int
	RunsFailed        int
	PointsSubmitted   int
	PointsRetried     int
	PointsFailed      int
	LeaderboardChecks int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
