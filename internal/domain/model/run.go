// Package model contains domain models passed between layers.
package model

import "time"

// Coordinate is a planar point with X = longitude and Y = latitude, in degrees.
type Coordinate struct {
	X float64
	Y float64
}

// At builds a Coordinate from latitude and longitude.
func At(lat, lon float64) Coordinate { return Coordinate{X: lon, Y: lat} }

// Lat returns the latitude.
func (c Coordinate) Lat() float64 { return c.Y }

// Lon returns the longitude.
func (c Coordinate) Lon() float64 { return c.X }

// State is the lifecycle state of a run.
type State string

const (
	StateActive State = "ACTIVE"
	StatePaused State = "PAUSED"
	StateEnded  State = "ENDED"
)

// IsOpen reports whether a run in this state can still change.
func (s State) IsOpen() bool { return s == StateActive || s == StatePaused }

// RunPoint is a single GPS sample recorded during a run.
type RunPoint struct {
	Location  Coordinate
	Timestamp time.Time
	// StepCount is the step estimate for the segment ending at this point.
	StepCount int
	// ReportedSteps is the client-supplied step hint, kept for reference only.
	ReportedSteps *int
	// Speed in meters per second over the segment ending at this point, if known.
	Speed *float64
}

// Run is a single tracked activity session owned by one user.
type Run struct {
	ID              string
	UserID          string
	StartTime       time.Time
	EndTime         *time.Time
	State           State
	DurationSeconds int64
	TotalSteps      int
	DistanceMeters  float64
	Points          []RunPoint
	// Territory is the closed ring claimed when the run ended, nil if none.
	Territory []Coordinate
	// TerritoryAreaM2 is a coarse area estimate of Territory.
	TerritoryAreaM2 float64
}

// Path returns the point locations in insertion order.
func (r *Run) Path() []Coordinate {
	out := make([]Coordinate, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Location
	}
	return out
}

// HasTerritory reports whether the run claimed a territory.
func (r *Run) HasTerritory() bool { return len(r.Territory) > 0 }

// Clone returns a deep copy so callers can mutate freely.
func (r Run) Clone() Run {
	c := r
	if r.EndTime != nil {
		t := *r.EndTime
		c.EndTime = &t
	}
	if r.Points != nil {
		c.Points = make([]RunPoint, len(r.Points))
		for i, p := range r.Points {
			if p.ReportedSteps != nil {
				v := *p.ReportedSteps
				p.ReportedSteps = &v
			}
			if p.Speed != nil {
				v := *p.Speed
				p.Speed = &v
			}
			c.Points[i] = p
		}
	}
	if r.Territory != nil {
		c.Territory = append([]Coordinate(nil), r.Territory...)
	}
	return c
}

// User is a participant as seen by the leaderboard.
type User struct {
	ID     string
	Name   string
	Avatar string
}

// Totals aggregates a user's runs inside a window.
type Totals struct {
	Steps              int64
	DistanceMeters     float64
	TerritoriesClaimed int
}

// UserTotals pairs a user's profile with their windowed totals.
type UserTotals struct {
	User   User
	Totals Totals
}

// LeaderboardEntry is one ranked row of a leaderboard.
type LeaderboardEntry struct {
	UserID             string
	Name               string
	Avatar             string
	TotalSteps         int64
	TotalDistance      float64
	TerritoriesClaimed int
	Rank               int
}

// RunEnded is emitted whenever a run reaches the Ended state.
type RunEnded struct {
	RunID          string
	UserID         string
	EndedAt        time.Time
	DistanceMeters float64
	HasTerritory   bool
}

// ClaimedTerritory is a territory together with its owning run.
type ClaimedTerritory struct {
	RunID     string
	UserID    string
	Ring      []Coordinate
	AreaM2    float64
	ClaimedAt time.Time
}
