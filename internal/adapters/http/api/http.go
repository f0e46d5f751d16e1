// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	service "github.com/okian/turf/internal/app"
	"github.com/okian/turf/internal/domain/model"
	"github.com/okian/turf/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	RunDependencies
	LeaderboardDependencies
	TerritoryDependencies
	UserDependencies
}

// LeaderboardStreamer upgrades a request into a leaderboard subscription.
type LeaderboardStreamer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, window model.Window) error
}

// PointInput mirrors the service input for point submissions.
type PointInput = service.PointInput

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	runsHandler        *RunsHandler
	leaderboardHandler *LeaderboardHandler
	territoryHandler   *TerritoryHandler
	usersHandler       *UsersHandler
	streamHandler      *StreamHandler

	streamer       LeaderboardStreamer
	pointRateLimit int
	log            logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	v := validator.New()
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.runsHandler = NewRunsHandler(deps, v, s.log)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.log)
	s.territoryHandler = NewTerritoryHandler(deps, s.log)
	s.usersHandler = NewUsersHandler(deps, v, s.log)
	if s.streamer != nil {
		s.streamHandler = NewStreamHandler(s.streamer, s.log)
	}
	return s
}

// Router builds the chi router with every route attached.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	s.Register(r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/metrics", s.healthHandler.HandleMetrics)

	r.Group(func(r chi.Router) {
		r.Use(MetricsMiddleware)

		r.Get("/stats", s.statsHandler.HandleStats)

		r.Route("/runs", func(r chi.Router) {
			r.Post("/start", s.runsHandler.HandleStart)
			r.Get("/user/{userID}", s.runsHandler.HandleUserRuns)
			r.Get("/user/{userID}/active", s.runsHandler.HandleActiveRun)
			r.Route("/{runID}", func(r chi.Router) {
				r.Post("/pause", s.runsHandler.HandlePause)
				r.Post("/resume", s.runsHandler.HandleResume)
				r.Post("/end", s.runsHandler.HandleEnd)
				if s.pointRateLimit > 0 {
					r.With(httprate.LimitByIP(s.pointRateLimit, time.Minute)).
						Post("/point", s.runsHandler.HandleAddPoint)
				} else {
					r.Post("/point", s.runsHandler.HandleAddPoint)
				}
			})
		})

		r.Post("/leaderboard/refresh", s.leaderboardHandler.HandleRefresh)
		r.Get("/leaderboard/{window}", s.leaderboardHandler.HandleGetLeaderboard)

		r.Get("/territories/active", s.territoryHandler.HandleActive)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.usersHandler.HandleList)
			r.Get("/{userID}", s.usersHandler.HandleGet)
			r.Put("/{userID}", s.usersHandler.HandlePut)
		})
	})

	if s.streamHandler != nil {
		r.Get("/ws/leaderboard/{window}", s.streamHandler.HandleStream)
	}
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps domain error kinds onto HTTP statuses.
func writeDomainError(ctx context.Context, log logger.Logger, w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, model.ErrInvalidState):
		writeError(w, http.StatusConflict, "invalid_state", err)
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		log.Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}

// decodeAndValidate reads a JSON body into req and runs struct validation.
func decodeAndValidate(r *http.Request, v *validator.Validate, req any) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return WrapKind("decode body", ErrBadRequest, err)
	}
	if err := v.Struct(req); err != nil {
		return WrapKind("validate body", ErrBadRequest, err)
	}
	return nil
}
