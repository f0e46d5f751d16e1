package simulate

import (
	"errors"
	"fmt"
	"math"
)

// distanceTolerance absorbs float rounding across JSON round trips.
const distanceTolerance = 1e-6

// VerifyOrder checks a leaderboard is capped at limit, ranked 1..n without
// gaps, and sorted by steps then distance, both descending.
func VerifyOrder(window string, entries []Entry, limit int) error {
	var errs []error
	if limit > 0 && len(entries) > limit {
		errs = append(errs, fmt.Errorf("%s: %d entries exceed limit %d", window, len(entries), limit))
	}
	for i, e := range entries {
		if e.Rank != i+1 {
			errs = append(errs, fmt.Errorf("%s: entry %d (%s) has rank %d", window, i, e.UserID, e.Rank))
		}
		if i == 0 {
			continue
		}
		prev := entries[i-1]
		switch {
		case prev.TotalSteps < e.TotalSteps:
			errs = append(errs, fmt.Errorf("%s: %s (%d steps) ranked above %s (%d steps)",
				window, prev.UserID, prev.TotalSteps, e.UserID, e.TotalSteps))
		case prev.TotalSteps == e.TotalSteps && prev.TotalDistance < e.TotalDistance:
			errs = append(errs, fmt.Errorf("%s: %s (%.2f m) ranked above %s (%.2f m) on equal steps",
				window, prev.UserID, prev.TotalDistance, e.UserID, e.TotalDistance))
		}
	}
	return errors.Join(errs...)
}

// VerifyTotals checks every listed user that the simulation drove has the
// totals of the run it ended.
func VerifyTotals(window string, entries []Entry, expected map[string]RunView) error {
	var errs []error
	for _, e := range entries {
		run, ok := expected[e.UserID]
		if !ok {
			continue
		}
		if e.TotalSteps != int64(run.TotalSteps) {
			errs = append(errs, fmt.Errorf("%s: %s has %d steps, ended run had %d",
				window, e.UserID, e.TotalSteps, run.TotalSteps))
		}
		if math.Abs(e.TotalDistance-run.DistanceMeters) > distanceTolerance*math.Max(1, run.DistanceMeters) {
			errs = append(errs, fmt.Errorf("%s: %s has %.3f m, ended run had %.3f m",
				window, e.UserID, e.TotalDistance, run.DistanceMeters))
		}
	}
	return errors.Join(errs...)
}
