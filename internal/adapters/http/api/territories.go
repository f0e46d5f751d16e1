package api

import (
	"context"
	"net/http"

	"github.com/okian/turf/internal/domain/model"
	"github.com/okian/turf/internal/domain/types"
	"github.com/okian/turf/pkg/logger"
)

// TerritoryDependencies lists claimed territories.
type TerritoryDependencies interface {
	ClaimedTerritories(ctx context.Context) ([]model.ClaimedTerritory, error)
}

// TerritoryHandler handles territory requests.
type TerritoryHandler struct {
	deps TerritoryDependencies
	log  logger.Logger
}

// NewTerritoryHandler creates a new territory handler.
func NewTerritoryHandler(deps TerritoryDependencies, log logger.Logger) *TerritoryHandler {
	return &TerritoryHandler{deps: deps, log: log}
}

// HandleActive handles GET /territories/active.
func (h *TerritoryHandler) HandleActive(w http.ResponseWriter, r *http.Request) {
	ts, err := h.deps.ClaimedTerritories(r.Context())
	if err != nil {
		writeDomainError(r.Context(), h.log, w, "api.claimed_territories", err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromTerritories(ts))
}
