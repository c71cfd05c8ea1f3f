package domain

import (
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Role identifies what a user is allowed to do on the platform.
type Role string

// Possible role values.
const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// User-specific validation errors.
var (
	ErrUserIDEmpty     = errors.New("user ID cannot be empty")
	ErrUserSchoolEmpty = errors.New("user school ID cannot be empty")
	ErrInvalidRole     = errors.New("invalid user role")
)

// emailRegex is a pragmatic check for well-formed addresses; deliverability
// is the identity provider's problem.
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// User is an authenticated principal. Accounts are provisioned by the
// surrounding platform; this service only reads them to issue sessions
// and to resolve ownership (a teacher owns classrooms, a student owns
// attempts and review state).
type User struct {
	ID             uuid.UUID `json:"id"`
	SchoolID       uuid.UUID `json:"school_id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return ErrUserIDEmpty
	}
	if u.SchoolID == uuid.Nil {
		return ErrUserSchoolEmpty
	}
	if !emailRegex.MatchString(u.Email) {
		return ErrInvalidEmail
	}
	switch u.Role {
	case RoleStudent, RoleTeacher:
	default:
		return ErrInvalidRole
	}
	return nil
}
