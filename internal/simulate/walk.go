package simulate

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// Walk speed bounds in metres per second.
const (
	minSpeed        = 1.0
	maxSpeed        = 3.0
	metersPerDegLat = 111_320.0
	originJitterM   = 500.0
)

// Walker generates random-walk GPS tracks.
type Walker struct {
	rng    *rand.Rand
	origin Coordinate
	every  time.Duration
}

// NewWalker creates a walker seeded with seed.
func NewWalker(seed uint64, origin Coordinate, every time.Duration) *Walker {
	return &Walker{
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		origin: origin,
		every:  every,
	}
}

// Track returns n samples. The walk starts within a few hundred metres of
// the origin and moves 1 to 3 m/s per sample interval, turning gradually.
func (w *Walker) Track(n int) []Sample {
	out := make([]Sample, 0, n)
	pos := offset(w.origin, w.rng.Float64()*2*math.Pi, w.rng.Float64()*originJitterM)
	heading := w.rng.Float64() * 2 * math.Pi
	for i := 0; i < n; i++ {
		out = append(out, Sample{Coordinate: pos, SampleID: uuid.NewString()})
		speed := minSpeed + w.rng.Float64()*(maxSpeed-minSpeed)
		heading += (w.rng.Float64() - 0.5) * math.Pi / 4
		pos = offset(pos, heading, speed*w.every.Seconds())
	}
	return out
}

// Float64 returns a value in [0, 1).
func (w *Walker) Float64() float64 { return w.rng.Float64() }

// offset moves c by meters along heading using a flat-earth approximation,
// accurate enough at walking scale.
func offset(c Coordinate, heading, meters float64) Coordinate {
	dLat := meters * math.Cos(heading) / metersPerDegLat
	dLon := meters * math.Sin(heading) / (metersPerDegLat * math.Cos(c.Latitude*math.Pi/180))
	return Coordinate{Latitude: c.Latitude + dLat, Longitude: c.Longitude + dLon}
}
