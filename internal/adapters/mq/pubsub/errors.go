package pubsub

import "errors"

// Sentinel kinds for pub/sub errors.
var (
	ErrUnavailable = errors.New("leaderboard channel unavailable")
	ErrBadMessage  = errors.New("malformed leaderboard message")
)
