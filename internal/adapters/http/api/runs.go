package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/okian/turf/internal/domain/model"
	"github.com/okian/turf/internal/domain/types"
	"github.com/okian/turf/pkg/logger"
)

// RunDependencies defines the run lifecycle operations.
type RunDependencies interface {
	StartRun(ctx context.Context, userID string) (model.Run, error)
	PauseRun(ctx context.Context, runID string) (model.Run, error)
	ResumeRun(ctx context.Context, runID string) (model.Run, error)
	EndRun(ctx context.Context, runID string) (model.Run, error)
	AddPoint(ctx context.Context, runID string, in PointInput) (model.Run, error)
	ActiveRun(ctx context.Context, userID string) (model.Run, error)
	UserRuns(ctx context.Context, userID string) ([]model.Run, error)
}

// startRequest is the body of POST /runs/start.
type startRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// pointRequest is the body of POST /runs/{runID}/point.
type pointRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
	StepCount *int     `json:"stepCount,omitempty" validate:"omitempty,gte=0"`
	SampleID  string   `json:"sampleId,omitempty" validate:"max=128"`
}

// RunsHandler handles run lifecycle requests.
type RunsHandler struct {
	deps     RunDependencies
	validate *validator.Validate
	log      logger.Logger
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps RunDependencies, v *validator.Validate, log logger.Logger) *RunsHandler {
	return &RunsHandler{deps: deps, validate: v, log: log}
}

// HandleStart handles POST /runs/start.
func (h *RunsHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.start_run"
	var req startRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
		return
	}
	run, err := h.deps.StartRun(r.Context(), req.UserID)
	if err != nil {
		writeDomainError(r.Context(), h.log, w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.FromRun(run))
}

// HandlePause handles POST /runs/{runID}/pause.
func (h *RunsHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "api.pause_run", h.deps.PauseRun)
}

// HandleResume handles POST /runs/{runID}/resume.
func (h *RunsHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "api.resume_run", h.deps.ResumeRun)
}

// HandleEnd handles POST /runs/{runID}/end.
func (h *RunsHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "api.end_run", h.deps.EndRun)
}

func (h *RunsHandler) transition(w http.ResponseWriter, r *http.Request, op string,
	fn func(context.Context, string) (model.Run, error),
) {
	run, err := fn(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeDomainError(r.Context(), h.log, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromRun(run))
}

// HandleAddPoint handles POST /runs/{runID}/point.
func (h *RunsHandler) HandleAddPoint(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_point"
	var req pointRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
		return
	}
	run, err := h.deps.AddPoint(r.Context(), chi.URLParam(r, "runID"), PointInput{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		StepCount: req.StepCount,
		SampleID:  req.SampleID,
	})
	if err != nil {
		writeDomainError(r.Context(), h.log, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromRun(run))
}

// HandleUserRuns handles GET /runs/user/{userID}.
func (h *RunsHandler) HandleUserRuns(w http.ResponseWriter, r *http.Request) {
	const op = "api.user_runs"
	runs, err := h.deps.UserRuns(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeDomainError(r.Context(), h.log, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromRuns(runs))
}

// HandleActiveRun handles GET /runs/user/{userID}/active.
func (h *RunsHandler) HandleActiveRun(w http.ResponseWriter, r *http.Request) {
	const op = "api.active_run"
	run, err := h.deps.ActiveRun(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeDomainError(r.Context(), h.log, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromRun(run))
}
