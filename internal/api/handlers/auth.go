package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hugh/go-studio/internal/api/dto"
	"github.com/hugh/go-studio/internal/api/middleware"
	"github.com/hugh/go-studio/internal/api/validation"
	"github.com/hugh/go-studio/internal/auth"
)

type AuthHandler struct {
	authService auth.Authenticator
	validator   *validation.Validator
	logger      *slog.Logger
}

func NewAuthHandler(authService auth.Authenticator, v *validation.Validator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, validator: v, logger: logger}
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	resp, err := h.authService.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		OrgName:  req.OrgName,
	})
	if err != nil {
		fail(w, h.logger, err, "Registration failed")
		return
	}
	writeData(w, http.StatusCreated, resp)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	resp, err := h.authService.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
		case errors.Is(err, auth.ErrInactiveUser):
			writeError(w, http.StatusForbidden, "Account is inactive")
		default:
			fail(w, h.logger, err, "Login failed")
		}
		return
	}
	writeData(w, http.StatusOK, resp)
}

// Me handles GET /api/v1/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.GetUserByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		fail(w, h.logger, err, "Failed to load user")
		return
	}
	writeData(w, http.StatusOK, user)
}
