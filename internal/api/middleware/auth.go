package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/cadence-learn/cadence-api/internal/api/shared"
	"github.com/cadence-learn/cadence-api/internal/domain"
	"github.com/cadence-learn/cadence-api/internal/service/auth"
)

// AuthMiddleware handles JWT authentication for protected routes.
type AuthMiddleware struct {
	jwtService auth.JWTService
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(jwtService auth.JWTService) *AuthMiddleware {
	if jwtService == nil {
		panic("jwtService cannot be nil") // ALLOW-PANIC: Constructor enforcing required dependency
	}
	return &AuthMiddleware{jwtService: jwtService}
}

// Authenticate validates the Bearer token and stores the session claims in
// the request context for downstream handlers.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
			return
		}

		claims, err := m.jwtService.ValidateToken(r.Context(), parts[1])
		if err != nil {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), shared.SessionContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSession retrieves the authenticated session claims from the request
// context. The second return value is false when the request was not
// authenticated.
func GetSession(r *http.Request) (*auth.Claims, bool) {
	claims, ok := r.Context().Value(shared.SessionContextKey).(*auth.Claims)
	return claims, ok
}

// RequireRole returns middleware that rejects authenticated requests whose
// session does not carry the given role.
func RequireRole(role domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetSession(r)
			if !ok {
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}
			if claims.Role != role {
				shared.RespondWithError(w, r, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
