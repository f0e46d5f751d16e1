package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/turf/internal/domain/model"
	"github.com/okian/turf/pkg/logger"
)

// StreamHandler subscribes websocket clients to leaderboard snapshots.
type StreamHandler struct {
	streamer LeaderboardStreamer
	log      logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(streamer LeaderboardStreamer, log logger.Logger) *StreamHandler {
	return &StreamHandler{streamer: streamer, log: log}
}

// HandleStream handles GET /ws/leaderboard/{window}.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	const op = "api.stream_leaderboard"
	window, err := model.ParseWindow(chi.URLParam(r, "window"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	// The upgrader has already answered the request when this fails.
	if err := h.streamer.ServeWS(w, r, window); err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed",
			logger.String("window", string(window)), logger.Error(err))
	}
}
