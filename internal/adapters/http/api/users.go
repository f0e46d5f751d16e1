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

// UserDependencies exposes the user directory.
type UserDependencies interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUser(ctx context.Context, id string) (model.User, error)
	UpsertUser(ctx context.Context, u model.User) (model.User, error)
}

// userRequest is the body of PUT /users/{userID}.
type userRequest struct {
	Name   string `json:"name" validate:"required,max=64"`
	Avatar string `json:"avatar" validate:"omitempty,max=512"`
}

// UsersHandler handles user profile requests.
type UsersHandler struct {
	deps     UserDependencies
	validate *validator.Validate
	log      logger.Logger
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(deps UserDependencies, v *validator.Validate, log logger.Logger) *UsersHandler {
	return &UsersHandler{deps: deps, validate: v, log: log}
}

// HandleList handles GET /users.
func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.deps.ListUsers(r.Context())
	if err != nil {
		writeDomainError(r.Context(), h.log, w, "api.list_users", err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromUsers(users))
}

// HandleGet handles GET /users/{userID}.
func (h *UsersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	u, err := h.deps.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeDomainError(r.Context(), h.log, w, "api.get_user", err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromUser(u))
}

// HandlePut handles PUT /users/{userID}.
func (h *UsersHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_user"
	var req userRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
		return
	}
	u, err := h.deps.UpsertUser(r.Context(), model.User{
		ID:     chi.URLParam(r, "userID"),
		Name:   req.Name,
		Avatar: req.Avatar,
	})
	if err != nil {
		writeDomainError(r.Context(), h.log, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromUser(u))
}
