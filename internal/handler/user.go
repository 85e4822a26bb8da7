package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/comparathor/internal/apperror"
	"github.com/sakif/comparathor/internal/auth"
	"github.com/sakif/comparathor/internal/model"
	"github.com/sakif/comparathor/internal/service"
)

type UserHandler struct {
	svc    *service.UserService
	logger *slog.Logger
}

func NewUserHandler(svc *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{svc: svc, logger: logger}
}

type updateProfileRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password"`
}

type updateRoleRequest struct {
	Role model.Role `json:"role" validate:"required"`
}

// HandleMe returns the authenticated caller.
//
// HTTP: GET /users/me
// Auth: Required (RequireAuth puts the stored user in the context)
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleUpdateMe edits the caller's own email and/or password.
//
// HTTP: PUT /users/me
func (h *UserHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid profile update", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	user, err := h.svc.UpdateProfile(r.Context(), caller, service.ProfileUpdate{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleUpdateRole sets another user's role.
//
// HTTP: PUT /admin/users/{id}/role
// Auth: Required + admin
func (h *UserHandler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	var req updateRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid role update", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	user, err := h.svc.UpdateRole(r.Context(), caller, chi.URLParam(r, "id"), string(req.Role))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}
