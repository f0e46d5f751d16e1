package repository

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/turf/internal/domain/model"
)

// runRecord is the persisted shape of a run.
type runRecord struct {
	ID              string        `json:"id"`
	UserID          string        `json:"userId"`
	StartTime       time.Time     `json:"startTime"`
	EndTime         *time.Time    `json:"endTime,omitempty"`
	State           string        `json:"state"`
	DurationSeconds int64         `json:"durationSeconds"`
	TotalSteps      int           `json:"totalSteps"`
	DistanceMeters  float64       `json:"distanceMeters"`
	Points          []pointRecord `json:"points"`
	Territory       [][2]float64  `json:"territory,omitempty"`
	TerritoryAreaM2 float64       `json:"territoryAreaM2,omitempty"`
}

type pointRecord struct {
	Lon           float64   `json:"lon"`
	Lat           float64   `json:"lat"`
	Timestamp     time.Time `json:"ts"`
	StepCount     int       `json:"steps"`
	ReportedSteps *int      `json:"reportedSteps,omitempty"`
	Speed         *float64  `json:"speed,omitempty"`
}

func encodePoints(ps []model.RunPoint) []pointRecord {
	out := make([]pointRecord, len(ps))
	for i, p := range ps {
		out[i] = pointRecord{
			Lon:           p.Location.X,
			Lat:           p.Location.Y,
			Timestamp:     p.Timestamp,
			StepCount:     p.StepCount,
			ReportedSteps: p.ReportedSteps,
			Speed:         p.Speed,
		}
	}
	return out
}

func decodePoints(ps []pointRecord) []model.RunPoint {
	out := make([]model.RunPoint, len(ps))
	for i, p := range ps {
		out[i] = model.RunPoint{
			Location:      model.Coordinate{X: p.Lon, Y: p.Lat},
			Timestamp:     p.Timestamp,
			StepCount:     p.StepCount,
			ReportedSteps: p.ReportedSteps,
			Speed:         p.Speed,
		}
	}
	return out
}

func encodeRing(ring []model.Coordinate) [][2]float64 {
	if ring == nil {
		return nil
	}
	out := make([][2]float64, len(ring))
	for i, c := range ring {
		out[i] = [2]float64{c.X, c.Y}
	}
	return out
}

func decodeRing(ring [][2]float64) []model.Coordinate {
	if len(ring) == 0 {
		return nil
	}
	out := make([]model.Coordinate, len(ring))
	for i, c := range ring {
		out[i] = model.Coordinate{X: c[0], Y: c[1]}
	}
	return out
}

func toRecord(r model.Run) runRecord {
	return runRecord{
		ID:              r.ID,
		UserID:          r.UserID,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		State:           string(r.State),
		DurationSeconds: r.DurationSeconds,
		TotalSteps:      r.TotalSteps,
		DistanceMeters:  r.DistanceMeters,
		Points:          encodePoints(r.Points),
		Territory:       encodeRing(r.Territory),
		TerritoryAreaM2: r.TerritoryAreaM2,
	}
}

func (rec runRecord) toRun() model.Run {
	return model.Run{
		ID:              rec.ID,
		UserID:          rec.UserID,
		StartTime:       rec.StartTime,
		EndTime:         rec.EndTime,
		State:           model.State(rec.State),
		DurationSeconds: rec.DurationSeconds,
		TotalSteps:      rec.TotalSteps,
		DistanceMeters:  rec.DistanceMeters,
		Points:          decodePoints(rec.Points),
		Territory:       decodeRing(rec.Territory),
		TerritoryAreaM2: rec.TerritoryAreaM2,
	}
}

func marshalRun(r model.Run) ([]byte, error) {
	b, err := json.Marshal(toRecord(r))
	if err != nil {
		return nil, fmt.Errorf("marshal run %q: %w", r.ID, err)
	}
	return b, nil
}

func unmarshalRun(b []byte) (model.Run, error) {
	var rec runRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return model.Run{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return rec.toRun(), nil
}
