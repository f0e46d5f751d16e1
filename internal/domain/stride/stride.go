// Package stride converts distance into an estimated step count.
package stride

import "math"

// DefaultLength is the average stride in meters.
const DefaultLength = 0.78

// Estimator maps a distance in meters to a whole number of steps.
type Estimator interface {
	Steps(meters float64) int
}

// Option applies a configuration option to a Fixed estimator.
type Option func(*Fixed)

// WithLength sets the stride length in meters. Non-positive values are ignored.
func WithLength(meters float64) Option {
	return func(f *Fixed) {
		if meters > 0 && !math.IsInf(meters, 0) {
			f.length = meters
		}
	}
}

// Fixed estimates steps assuming a constant stride length.
type Fixed struct {
	length float64
}

// New creates a Fixed estimator with configuration options.
func New(opts ...Option) *Fixed {
	f := &Fixed{length: DefaultLength}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Length returns the configured stride length.
func (f *Fixed) Length() float64 { return f.length }

// Steps returns round(meters / length), rounding halves away from zero.
// Negative, NaN and infinite distances yield zero.
func (f *Fixed) Steps(meters float64) int {
	if !(meters > 0) || math.IsInf(meters, 0) {
		return 0
	}
	return int(math.Round(meters / f.length))
}
