package auth

import (
	"context"
	"log/slog"

	"github.com/cadence-learn/cadence-api/internal/platform/logger"
	"github.com/cadence-learn/cadence-api/internal/store"
)

// Service exchanges credentials for signed session tokens.
type Service struct {
	userStore store.UserStore
	verifier  PasswordVerifier
	jwt       JWTService
	logger    *slog.Logger
}

// NewService creates a new authentication service.
func NewService(
	userStore store.UserStore,
	verifier PasswordVerifier,
	jwt JWTService,
	logger *slog.Logger,
) *Service {
	if userStore == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("userStore cannot be nil")
	}
	if verifier == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("verifier cannot be nil")
	}
	if jwt == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("jwt cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		userStore: userStore,
		verifier:  verifier,
		jwt:       jwt,
		logger:    logger.With(slog.String("component", "auth_service")),
	}
}

// Login verifies the credentials and returns a signed session token.
// Unknown email and wrong password both return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.userStore.GetByEmail(ctx, email)
	if err != nil {
		if store.IsNotFoundError(err) {
			return "", ErrInvalidCredentials
		}
		log.Error("failed to look up user for login",
			slog.String("error", err.Error()))
		return "", err
	}

	if err := s.verifier.Compare(user.HashedPassword, password); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateToken(ctx, user)
	if err != nil {
		log.Error("failed to generate session token",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return "", err
	}

	log.Info("user logged in",
		slog.String("user_id", user.ID.String()),
		slog.String("role", string(user.Role)))
	return token, nil
}
