package tracking

import (
	"time"

	"github.com/okian/turf/internal/domain/dedupe"
	"github.com/okian/turf/internal/domain/stride"
	"github.com/okian/turf/pkg/logger"
)

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithEstimator sets the step estimator.
func WithEstimator(e stride.Estimator) Option {
	return func(t *Tracker) {
		if e != nil {
			t.estimator = e
		}
	}
}

// WithDeduper enables idempotent sample ids. Without one, SampleID is ignored.
func WithDeduper(d dedupe.Deduper) Option {
	return func(t *Tracker) {
		t.deduper = d
	}
}

// WithTerritoryBuffer sets the bounding box padding in degrees.
func WithTerritoryBuffer(deg float64) Option {
	return func(t *Tracker) {
		if deg >= 0 {
			t.buffer = deg
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithIDGenerator replaces the run id generator.
func WithIDGenerator(gen func() string) Option {
	return func(t *Tracker) {
		if gen != nil {
			t.newID = gen
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.log = l
		}
	}
}
