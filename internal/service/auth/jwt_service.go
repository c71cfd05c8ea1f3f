package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cadence-learn/cadence-api/internal/domain"
)

// JWTService defines operations for managing JWT authentication tokens.
type JWTService interface {
	// GenerateToken creates a signed JWT access token containing the user's
	// identity, role, and school. Returns the token string or an error if
	// token generation fails.
	GenerateToken(ctx context.Context, user *domain.User) (string, error)

	// ValidateToken validates the provided token string and extracts the
	// claims. Returns an error if validation fails (expired, invalid
	// signature, etc.).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the custom claims structure for the JWT tokens.
// Role and SchoolID ride along so that handlers can authorize without a
// user lookup on every request.
type Claims struct {
	// UserID is the unique identifier of the user the token was issued for.
	UserID uuid.UUID `json:"uid,omitempty"`

	// Role is the user's role at issue time.
	Role domain.Role `json:"role,omitempty"`

	// SchoolID scopes the session to the user's school.
	SchoolID uuid.UUID `json:"sch,omitempty"`

	// Standard registered JWT claims
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
