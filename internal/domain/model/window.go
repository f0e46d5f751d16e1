package model

import (
	"fmt"
	"strings"
	"time"
)

// Window is a leaderboard time window.
type Window string

const (
	WindowDaily   Window = "daily"
	WindowWeekly  Window = "weekly"
	WindowAllTime Window = "all-time"
)

// Windows lists every supported window in publication order.
var Windows = []Window{WindowDaily, WindowWeekly, WindowAllTime}

// allTimeStart is the fixed lower bound of the all-time window.
var allTimeStart = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// ParseWindow accepts daily, weekly and all-time (also alltime, all_time).
func ParseWindow(s string) (Window, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily":
		return WindowDaily, nil
	case "weekly":
		return WindowWeekly, nil
	case "all-time", "alltime", "all_time":
		return WindowAllTime, nil
	}
	return "", fmt.Errorf("%w: unknown window %q", ErrInvalidInput, s)
}

// Range returns the inclusive [from, to] bounds of the window at now.
// Daily spans the calendar day of now in loc; weekly is the trailing seven
// days; all-time starts at 2020-01-01 UTC.
func (w Window) Range(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	switch w {
	case WindowDaily:
		local := now.In(loc)
		start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 0, 1)
	case WindowWeekly:
		return now.Add(-7 * 24 * time.Hour), now
	default:
		return allTimeStart, now
	}
}

// Contains reports whether t falls inside the inclusive window bounds.
func Contains(from, to, t time.Time) bool {
	return !t.Before(from) && !t.After(to)
}
