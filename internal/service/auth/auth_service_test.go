package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadence-learn/cadence-api/internal/domain"
	"github.com/cadence-learn/cadence-api/internal/store"
)

type stubUserStore struct {
	store.UserStore
	users map[string]*domain.User
}

func (s *stubUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	user, ok := s.users[email]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return user, nil
}

// stubVerifier treats the stored hash as the plaintext password.
type stubVerifier struct{}

func (stubVerifier) Compare(hashedPassword, password string) error {
	if hashedPassword != password {
		return errors.New("password mismatch")
	}
	return nil
}

type stubJWTService struct {
	token string
	err   error
}

func (s *stubJWTService) GenerateToken(_ context.Context, _ *domain.User) (string, error) {
	return s.token, s.err
}

func (s *stubJWTService) ValidateToken(_ context.Context, _ string) (*Claims, error) {
	return nil, ErrInvalidToken
}

func newLoginFixture(t *testing.T) (*Service, *domain.User) {
	t.Helper()

	user := &domain.User{
		ID:             uuid.New(),
		SchoolID:       uuid.New(),
		Email:          "student@example.com",
		HashedPassword: "correct horse battery staple",
		Role:           domain.RoleStudent,
	}
	users := &stubUserStore{users: map[string]*domain.User{user.Email: user}}
	svc := NewService(users, stubVerifier{}, &stubJWTService{token: "signed-token"}, nil)
	return svc, user
}

func TestLogin_Succeeds(t *testing.T) {
	t.Parallel()

	svc, user := newLoginFixture(t)

	token, err := svc.Login(context.Background(), user.Email, user.HashedPassword)
	require.NoError(t, err)
	assert.Equal(t, "signed-token", token)
}

func TestLogin_UnknownEmail(t *testing.T) {
	t.Parallel()

	svc, user := newLoginFixture(t)

	_, err := svc.Login(context.Background(), "nobody@example.com", user.HashedPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_WrongPassword(t *testing.T) {
	t.Parallel()

	svc, user := newLoginFixture(t)

	_, err := svc.Login(context.Background(), user.Email, "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_TokenGenerationFailure(t *testing.T) {
	t.Parallel()

	_, user := newLoginFixture(t)
	users := &stubUserStore{users: map[string]*domain.User{user.Email: user}}
	tokenErr := errors.New("signing failed")
	svc := NewService(users, stubVerifier{}, &stubJWTService{err: tokenErr}, nil)

	_, err := svc.Login(context.Background(), user.Email, user.HashedPassword)
	assert.ErrorIs(t, err, tokenErr)
}
