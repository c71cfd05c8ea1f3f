package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cadence-learn/cadence-api/internal/api/shared"
	"github.com/cadence-learn/cadence-api/internal/platform/logger"
	"github.com/cadence-learn/cadence-api/internal/redact"
	"github.com/cadence-learn/cadence-api/internal/service/auth"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService *auth.Service
	logger      *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *auth.Service, logger *slog.Logger) *AuthHandler {
	if authService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("authService cannot be nil for AuthHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for AuthHandler")
	}

	return &AuthHandler{
		authService: authService,
		logger:      logger.With(slog.String("component", "auth_handler")),
	}
}

// Login handles POST /auth/login requests
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req LoginRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid login request format", slog.String("error", redact.Error(err)))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Email and password are required")
		return
	}

	token, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to log in", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, LoginResponse{Token: token})
}
