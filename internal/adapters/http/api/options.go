package api

import "github.com/okian/turf/pkg/logger"

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for failed requests.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithStreamer enables the websocket leaderboard route.
func WithStreamer(streamer LeaderboardStreamer) Option {
	return func(s *Server) {
		s.streamer = streamer
	}
}

// WithPointRateLimit caps point submissions per client IP per minute.
// Zero or less disables the limit.
func WithPointRateLimit(perMinute int) Option {
	return func(s *Server) {
		s.pointRateLimit = perMinute
	}
}
