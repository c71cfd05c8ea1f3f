package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadence-learn/cadence-api/internal/config"
	"github.com/cadence-learn/cadence-api/internal/domain"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

func newTestJWTService(t *testing.T) *hmacJWTService {
	t.Helper()

	svc, err := NewJWTService(config.AuthConfig{
		JWTSecret:         testJWTSecret,
		TokenLifetimeMins: 60,
	})
	require.NoError(t, err)

	impl, ok := svc.(*hmacJWTService)
	require.True(t, ok)
	return impl
}

func testUser() *domain.User {
	return &domain.User{
		ID:       uuid.New(),
		SchoolID: uuid.New(),
		Email:    "teacher@example.com",
		Role:     domain.RoleTeacher,
	}
}

func TestJWTService_RoundTrip(t *testing.T) {
	t.Parallel()

	svc := newTestJWTService(t)
	user := testUser()
	ctx := context.Background()

	token, err := svc.GenerateToken(ctx, user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)

	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Role, claims.Role)
	assert.Equal(t, user.SchoolID, claims.SchoolID)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
}

func TestJWTService_ExpiredToken(t *testing.T) {
	t.Parallel()

	svc := newTestJWTService(t)
	ctx := context.Background()

	issuedAt := time.Now().Add(-3 * time.Hour)
	svc.timeFunc = func() time.Time { return issuedAt }
	token, err := svc.GenerateToken(ctx, testUser())
	require.NoError(t, err)

	svc.timeFunc = time.Now
	_, err = svc.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTService_ClockSkewTolerated(t *testing.T) {
	t.Parallel()

	svc := newTestJWTService(t)
	ctx := context.Background()

	// Expired one minute ago, inside the two-minute leeway.
	issuedAt := time.Now().Add(-61 * time.Minute)
	svc.timeFunc = func() time.Time { return issuedAt }
	token, err := svc.GenerateToken(ctx, testUser())
	require.NoError(t, err)

	svc.timeFunc = time.Now
	_, err = svc.ValidateToken(ctx, token)
	assert.NoError(t, err)
}

func TestJWTService_WrongKeyRejected(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	signer := newTestJWTService(t)
	token, err := signer.GenerateToken(ctx, testUser())
	require.NoError(t, err)

	other, err := NewJWTService(config.AuthConfig{
		JWTSecret:         "another-secret-another-secret-32b!",
		TokenLifetimeMins: 60,
	})
	require.NoError(t, err)

	_, err = other.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_GarbageTokenRejected(t *testing.T) {
	t.Parallel()

	svc := newTestJWTService(t)

	_, err := svc.ValidateToken(context.Background(), "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewJWTService_RejectsShortSecret(t *testing.T) {
	t.Parallel()

	_, err := NewJWTService(config.AuthConfig{JWTSecret: "too-short"})
	assert.Error(t, err)
}

func TestNewJWTService_DefaultsLifetime(t *testing.T) {
	t.Parallel()

	svc, err := NewJWTService(config.AuthConfig{JWTSecret: testJWTSecret})
	require.NoError(t, err)

	impl, ok := svc.(*hmacJWTService)
	require.True(t, ok)
	assert.Equal(t, 60*time.Minute, impl.tokenLifetime)
}
