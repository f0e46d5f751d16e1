// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New returns a Config populated with defaults.
// - Load layers a YAML file and environment variables on top of the defaults.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Supported store backends.
const (
	StoreMemory   = "memory"
	StoreBadger   = "badger"
	StorePostgres = "postgres"
)

// Supported leaderboard filters.
const (
	FilterStepsOrDistance = "steps_or_distance"
	FilterStepsOnly       = "steps_only"
)

// User seeds the in-memory user directory.
type User struct {
	ID     string `koanf:"id"`
	Name   string `koanf:"name"`
	Avatar string `koanf:"avatar"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is either text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Store selects the run store backend: memory, badger or postgres.
	Store       string `koanf:"store"`
	BadgerDir   string `koanf:"badger_dir"`
	PostgresURL string `koanf:"postgres_url"`

	// RedisAddr enables cross-instance leaderboard fan-out when set.
	RedisAddr          string `koanf:"redis_addr"`
	RedisChannelPrefix string `koanf:"redis_channel_prefix"`

	StrideLengthM      float64 `koanf:"stride_length_m"`
	TerritoryBufferDeg float64 `koanf:"territory_buffer_deg"`

	LeaderboardLimit  int    `koanf:"leaderboard_limit"`
	LeaderboardFilter string `koanf:"leaderboard_filter"`

	// Timezone anchors the daily leaderboard window.
	Timezone string `koanf:"timezone"`

	// RefreshQueueSize bounds the queue of pending leaderboard refreshes.
	RefreshQueueSize int `koanf:"refresh_queue_size"`
	// RefreshWorkers sets the number of refresh workers.
	RefreshWorkers int `koanf:"refresh_workers"`

	// DedupeSize bounds the point sample-id cache.
	DedupeSize int `koanf:"dedupe_size"`

	// RateLimitPerMinute caps point submissions per client IP. Zero disables it.
	RateLimitPerMinute int `koanf:"rate_limit_per_minute"`

	Users []User `koanf:"users"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		Store:              StoreMemory,
		BadgerDir:          "data/badger",
		RedisChannelPrefix: "turf:leaderboard",
		StrideLengthM:      0.78,
		TerritoryBufferDeg: 0.001,
		LeaderboardLimit:   50,
		LeaderboardFilter:  FilterStepsOrDistance,
		Timezone:           "UTC",
		RefreshQueueSize:   1024,
		RefreshWorkers:     runtime.NumCPU(),
		DedupeSize:         100_000,
		RateLimitPerMinute: 600,
	}
}

// Location resolves Timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks the invariants the service relies on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.StrideLengthM <= 0 {
		return fmt.Errorf("%w: stride_length_m must be positive", ErrInvalidConfig)
	}
	if c.TerritoryBufferDeg < 0 {
		return fmt.Errorf("%w: territory_buffer_deg must not be negative", ErrInvalidConfig)
	}
	if c.LeaderboardLimit <= 0 {
		return fmt.Errorf("%w: leaderboard_limit must be positive", ErrInvalidConfig)
	}
	switch c.Store {
	case StoreMemory:
	case StoreBadger:
		if c.BadgerDir == "" {
			return fmt.Errorf("%w: badger_dir required for badger store", ErrInvalidConfig)
		}
	case StorePostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("%w: postgres_url required for postgres store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}
	switch c.LeaderboardFilter {
	case FilterStepsOrDistance, FilterStepsOnly:
	default:
		return fmt.Errorf("%w: unknown leaderboard_filter %q", ErrInvalidConfig, c.LeaderboardFilter)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	for i, u := range c.Users {
		if strings.TrimSpace(u.ID) == "" {
			return fmt.Errorf("%w: users[%d].id must not be empty", ErrInvalidConfig, i)
		}
	}
	return nil
}
