package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/comparathor/internal/model"
	"github.com/sakif/comparathor/internal/service"
)

// AuthHandler serves registration and login.
//
//	POST /auth/register → 201 {user_id, email, role}
//	POST /auth/login    → 200 {access_token, token_type, user_id}
type AuthHandler struct {
	svc    *service.AuthService
	logger *slog.Logger
}

func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

// Role is a model.Role, so an unknown role fails while the body is decoded
// (reported as field "role"). An empty role registers a plain user.
type registerRequest struct {
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required"`
	Role     model.Role `json:"role"`
	UserID   string     `json:"user_id" validate:"omitempty,max=64"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// userResponse is the public view of a user. The password hash never
// appears here (and model.User hides it with json:"-" as well).
type userResponse struct {
	UserID string     `json:"user_id"`
	Email  string     `json:"email"`
	Role   model.Role `json:"role"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{UserID: u.ID, Email: u.Email, Role: u.Role}
}

// HandleRegister creates an account.
//
// HTTP: POST /auth/register
// REQUEST BODY: {"email": "ada@example.com", "password": "...", "role": "user"}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid register request", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	user, err := h.svc.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Role:     string(req.Role),
		UserID:   req.UserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// HandleLogin exchanges credentials for a bearer token.
//
// HTTP: POST /auth/login
// REQUEST BODY: {"email": "ada@example.com", "password": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid login request", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}
