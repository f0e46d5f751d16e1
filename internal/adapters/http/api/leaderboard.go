package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/turf/internal/domain/model"
	"github.com/okian/turf/internal/domain/types"
	"github.com/okian/turf/pkg/logger"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, window model.Window) ([]model.LeaderboardEntry, error)
	RefreshLeaderboards(ctx context.Context) error
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps LeaderboardDependencies
	log  logger.Logger
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, log logger.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps, log: log}
}

// HandleGetLeaderboard handles GET /leaderboard/{window}.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	window, err := model.ParseWindow(chi.URLParam(r, "window"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	entries, err := h.deps.Leaderboard(r.Context(), window)
	if err != nil {
		writeDomainError(r.Context(), h.log, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromEntries(entries))
}

// HandleRefresh handles POST /leaderboard/refresh.
func (h *LeaderboardHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.refresh_leaderboards"
	if err := h.deps.RefreshLeaderboards(r.Context()); err != nil {
		writeDomainError(r.Context(), h.log, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "refreshed"})
}
