// Package geo holds the great-circle math used to measure runs.
package geo

import (
	"fmt"
	"math"

	"github.com/okian/turf/internal/domain/model"
)

// EarthRadiusM is the mean Earth radius used by Distance.
const EarthRadiusM = 6_371_000.0

const degToRad = math.Pi / 180

// Distance returns the haversine distance in meters between two points given
// in degrees. The result is symmetric, never negative and never NaN for
// finite inputs.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * degToRad
	dLon := (lon2 - lon1) * degToRad

	s1 := math.Sin(dLat / 2)
	s2 := math.Sin(dLon / 2)
	a := s1*s1 + math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*s2*s2

	// Rounding can push a slightly outside [0,1] near antipodes.
	a = math.Min(1, math.Max(0, a))

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusM * c
}

// Between returns the haversine distance between two coordinates.
func Between(a, b model.Coordinate) float64 {
	return Distance(a.Y, a.X, b.Y, b.X)
}

// PathLength sums the distance between consecutive coordinates.
func PathLength(path []model.Coordinate) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += Between(path[i-1], path[i])
	}
	return total
}

// Validate reports model.ErrInvalidInput for coordinates outside the
// geographic range or not finite.
func Validate(lat, lon float64) error {
	switch {
	case math.IsNaN(lat) || math.IsInf(lat, 0):
		return fmt.Errorf("%w: latitude is not finite", model.ErrInvalidInput)
	case math.IsNaN(lon) || math.IsInf(lon, 0):
		return fmt.Errorf("%w: longitude is not finite", model.ErrInvalidInput)
	case lat < -90 || lat > 90:
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", model.ErrInvalidInput, lat)
	case lon < -180 || lon > 180:
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", model.ErrInvalidInput, lon)
	}
	return nil
}
