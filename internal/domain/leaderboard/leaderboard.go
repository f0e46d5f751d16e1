// Package leaderboard ranks users by their windowed totals.
package leaderboard

import (
	"net/url"
	"sort"

	"github.com/okian/turf/internal/domain/model"
)

// DefaultLimit caps the number of ranked entries.
const DefaultLimit = 50

// Filter decides which users qualify for a leaderboard.
type Filter int

const (
	// StepsOrDistance keeps users with any steps or any distance.
	StepsOrDistance Filter = iota
	// StepsOnly keeps users with at least one step. Kept for clients that
	// expect the stricter historical behaviour.
	StepsOnly
)

// ParseFilter maps a config value to a Filter.
func ParseFilter(s string) Filter {
	if s == "steps_only" {
		return StepsOnly
	}
	return StepsOrDistance
}

func (f Filter) qualifies(t model.Totals) bool {
	if f == StepsOnly {
		return t.Steps > 0
	}
	return t.Steps > 0 || t.DistanceMeters > 0
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLimit sets the maximum number of entries. Non-positive values are ignored.
func WithLimit(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.limit = n
		}
	}
}

// WithFilter selects the qualification rule.
func WithFilter(f Filter) Option {
	return func(a *Aggregator) { a.filter = f }
}

// WithAvatarFallback sets the avatar used for users without one.
func WithAvatarFallback(fn func(name string) string) Option {
	return func(a *Aggregator) {
		if fn != nil {
			a.avatar = fn
		}
	}
}

// Aggregator turns per-user totals into ranked entries. It holds no mutable
// state and is safe for concurrent use.
type Aggregator struct {
	limit  int
	filter Filter
	avatar func(name string) string
}

// New creates an Aggregator with configuration options.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		limit:  DefaultLimit,
		filter: StepsOrDistance,
		avatar: DefaultAvatar,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Limit returns the configured entry cap.
func (a *Aggregator) Limit() int { return a.limit }

// Aggregate filters, sorts by steps then distance (both descending, stable),
// truncates and assigns contiguous 1-based ranks. The window is carried for
// callers; the totals must already be restricted to it.
func (a *Aggregator) Aggregate(_ model.Window, totals []model.UserTotals) []model.LeaderboardEntry {
	entries := make([]model.LeaderboardEntry, 0, len(totals))
	for _, ut := range totals {
		if !a.filter.qualifies(ut.Totals) {
			continue
		}
		avatar := ut.User.Avatar
		if avatar == "" {
			avatar = a.avatar(ut.User.Name)
		}
		entries = append(entries, model.LeaderboardEntry{
			UserID:             ut.User.ID,
			Name:               ut.User.Name,
			Avatar:             avatar,
			TotalSteps:         ut.Totals.Steps,
			TotalDistance:      ut.Totals.DistanceMeters,
			TerritoriesClaimed: ut.Totals.TerritoriesClaimed,
		})
	}

	sortEntries(entries)

	if len(entries) > a.limit {
		entries = entries[:a.limit]
	}
	assignRanks(entries)
	return entries
}

// sortEntries orders by steps desc, then distance desc. Full ties keep input order.
func sortEntries(entries []model.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TotalSteps != entries[j].TotalSteps {
			return entries[i].TotalSteps > entries[j].TotalSteps
		}
		return entries[i].TotalDistance > entries[j].TotalDistance
	})
}

// assignRanks numbers entries by position; ties do not share a rank.
func assignRanks(entries []model.LeaderboardEntry) {
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

// DefaultAvatar builds a generated initials avatar for name.
func DefaultAvatar(name string) string {
	q := url.Values{}
	q.Set("name", name)
	q.Set("background", "ef4444")
	q.Set("color", "ffffff")
	q.Set("size", "40")
	return "https://ui-avatars.com/api/?" + q.Encode()
}
