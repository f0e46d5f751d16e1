// Package territory derives the area a finished run claims.
package territory

import (
	"math"

	"github.com/okian/turf/internal/domain/model"
)

const (
	// DefaultBuffer pads the bounding box on every side, in degrees.
	DefaultBuffer = 0.001
	// MinPoints is the smallest path that claims a territory.
	MinPoints = 3
	// metersPerDegree is the flat-earth scale used by AreaSquareMeters.
	metersPerDegree = 111_000.0
)

type options struct {
	buffer float64
}

// Option configures Derive.
type Option func(*options)

// WithBuffer overrides the bounding box padding. Negative values are ignored.
func WithBuffer(deg float64) Option {
	return func(o *options) {
		if deg >= 0 {
			o.buffer = deg
		}
	}
}

// Derive returns the closed five-point ring bounding path, padded by the
// buffer, or false when path has fewer than MinPoints coordinates.
// The ring runs (minX,minY) (maxX,minY) (maxX,maxY) (minX,maxY) (minX,minY).
func Derive(path []model.Coordinate, opts ...Option) ([]model.Coordinate, bool) {
	if len(path) < MinPoints {
		return nil, false
	}
	o := options{buffer: DefaultBuffer}
	for _, opt := range opts {
		opt(&o)
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range path {
		minX = math.Min(minX, c.X)
		minY = math.Min(minY, c.Y)
		maxX = math.Max(maxX, c.X)
		maxY = math.Max(maxY, c.Y)
	}
	minX -= o.buffer
	minY -= o.buffer
	maxX += o.buffer
	maxY += o.buffer

	return []model.Coordinate{
		{X: minX, Y: minY},
		{X: maxX, Y: minY},
		{X: maxX, Y: maxY},
		{X: minX, Y: maxY},
		{X: minX, Y: minY},
	}, true
}

// AreaSquareMeters approximates the area of a closed ring using the planar
// shoelace formula in degrees scaled by 111 km per degree on both axes.
func AreaSquareMeters(ring []model.Coordinate) float64 {
	if len(ring) < 4 {
		return 0
	}
	var sum float64
	for i := 0; i < len(ring)-1; i++ {
		sum += ring[i].X*ring[i+1].Y - ring[i+1].X*ring[i].Y
	}
	return math.Abs(sum) / 2 * metersPerDegree * metersPerDegree
}
