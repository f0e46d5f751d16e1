// Package types contains the JSON shapes exchanged with clients.
package types

import (
	"time"

	"github.com/okian/turf/internal/domain/model"
)

// Point is a latitude/longitude pair.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Run is the client view of a run.
type Run struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	StartTime        time.Time  `json:"startTime"`
	EndTime          *time.Time `json:"endTime,omitempty"`
	DurationSeconds  int64      `json:"durationSeconds"`
	TotalSteps       int        `json:"totalSteps"`
	DistanceMeters   float64    `json:"distanceMeters"`
	Path             []Point    `json:"path"`
	ClaimedTerritory []Point    `json:"claimedTerritory,omitempty"`
	IsActive         bool       `json:"isActive"`
}

// LeaderboardEntry is one leaderboard row.
type LeaderboardEntry struct {
	UserID             string  `json:"userId"`
	Name               string  `json:"name"`
	Avatar             string  `json:"avatar"`
	TotalSteps         int64   `json:"totalSteps"`
	Rank               int     `json:"rank"`
	TotalDistance      float64 `json:"totalDistance"`
	TerritoriesClaimed int     `json:"territoriesClaimed"`
}

// Leaderboard is a published snapshot for one window.
type Leaderboard struct {
	Window      string             `json:"window"`
	GeneratedAt time.Time          `json:"generatedAt"`
	Entries     []LeaderboardEntry `json:"entries"`
}

// Territory is a claimed area on the map.
type Territory struct {
	RunID            string    `json:"runId"`
	UserID           string    `json:"userId"`
	Polygon          []Point   `json:"polygon"`
	AreaSquareMeters float64   `json:"areaSquareMeters"`
	ClaimedAt        time.Time `json:"claimedAt"`
}

// FromCoordinates swaps the internal X=lon, Y=lat axes into Points.
func FromCoordinates(cs []model.Coordinate) []Point {
	if cs == nil {
		return nil
	}
	out := make([]Point, len(cs))
	for i, c := range cs {
		out[i] = Point{Latitude: c.Lat(), Longitude: c.Lon()}
	}
	return out
}

// FromRun converts a domain run. IsActive is true for any open state.
func FromRun(r model.Run) Run {
	path := FromCoordinates(r.Path())
	if path == nil {
		path = []Point{}
	}
	return Run{
		ID:               r.ID,
		UserID:           r.UserID,
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
		DurationSeconds:  r.DurationSeconds,
		TotalSteps:       r.TotalSteps,
		DistanceMeters:   r.DistanceMeters,
		Path:             path,
		ClaimedTerritory: FromCoordinates(r.Territory),
		IsActive:         r.State.IsOpen(),
	}
}

// FromRuns converts a slice of domain runs.
func FromRuns(rs []model.Run) []Run {
	out := make([]Run, len(rs))
	for i, r := range rs {
		out[i] = FromRun(r)
	}
	return out
}

// FromEntries converts ranked domain entries.
func FromEntries(es []model.LeaderboardEntry) []LeaderboardEntry {
	out := make([]LeaderboardEntry, len(es))
	for i, e := range es {
		out[i] = LeaderboardEntry{
			UserID:             e.UserID,
			Name:               e.Name,
			Avatar:             e.Avatar,
			TotalSteps:         e.TotalSteps,
			Rank:               e.Rank,
			TotalDistance:      e.TotalDistance,
			TerritoriesClaimed: e.TerritoriesClaimed,
		}
	}
	return out
}

// FromTerritories converts claimed territories.
func FromTerritories(ts []model.ClaimedTerritory) []Territory {
	out := make([]Territory, len(ts))
	for i, t := range ts {
		out[i] = Territory{
			RunID:            t.RunID,
			UserID:           t.UserID,
			Polygon:          FromCoordinates(t.Ring),
			AreaSquareMeters: t.AreaM2,
			ClaimedAt:        t.ClaimedAt,
		}
	}
	return out
}

// User is a participant profile.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// FromUser converts a domain user.
func FromUser(u model.User) User {
	return User{ID: u.ID, Name: u.Name, Avatar: u.Avatar}
}

// FromUsers converts a slice of domain users.
func FromUsers(us []model.User) []User {
	out := make([]User, len(us))
	for i, u := range us {
		out[i] = FromUser(u)
	}
	return out
}
