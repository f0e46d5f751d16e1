package service

import (
	"time"

	"github.com/okian/turf/internal/adapters/repository"
	"github.com/okian/turf/internal/domain/leaderboard"
	"github.com/okian/turf/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the run store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithUsers sets the user directory.
func WithUsers(users *repository.UserDirectory) Option {
	return func(s *Service) {
		if users != nil {
			s.users = users
		}
	}
}

// WithNotifier adds a leaderboard notifier. It may be given more than once.
func WithNotifier(n LeaderboardNotifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifiers = append(s.notifiers, n)
		}
	}
}

// WithStrideLength sets the stride used to turn meters into steps.
func WithStrideLength(meters float64) Option {
	return func(s *Service) {
		if meters > 0 {
			s.strideLength = meters
		}
	}
}

// WithTerritoryBuffer sets the territory bounding box padding in degrees.
func WithTerritoryBuffer(deg float64) Option {
	return func(s *Service) {
		if deg >= 0 {
			s.territoryBuffer = deg
		}
	}
}

// WithLeaderboardLimit sets the maximum leaderboard length.
func WithLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithLeaderboardFilter sets which users qualify for a leaderboard.
func WithLeaderboardFilter(f leaderboard.Filter) Option {
	return func(s *Service) {
		s.filter = f
	}
}

// WithLocation sets the time zone that bounds the daily window.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithQueueSize sets the capacity of the refresh queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of refresh workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithDedupeSize sets how many point sample ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithClock sets the time source for runs and windows.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
