package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the
	// store. This is the generic form of the entity-specific not found
	// errors below.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when an update operation fails, for
	// example because the entity does not exist or the update violates
	// constraints.
	ErrUpdateFailed = errors.New("update failed")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// Entity-specific "not found" errors.

	// ErrUserNotFound indicates that the requested user does not exist.
	ErrUserNotFound = fmt.Errorf("%w: user", ErrNotFound)

	// ErrStudentNotFound indicates that the requested student does not exist.
	ErrStudentNotFound = fmt.Errorf("%w: student", ErrNotFound)

	// ErrClassroomNotFound indicates that the requested classroom does not
	// exist, or that an enrollment code matched no active classroom.
	ErrClassroomNotFound = fmt.Errorf("%w: classroom", ErrNotFound)

	// ErrEnrollmentNotFound indicates that the requested enrollment does not exist.
	ErrEnrollmentNotFound = fmt.Errorf("%w: enrollment", ErrNotFound)

	// ErrActivityNotFound indicates that the requested activity does not exist.
	ErrActivityNotFound = fmt.Errorf("%w: activity", ErrNotFound)

	// ErrAttemptNotFound indicates that the requested attempt does not exist.
	ErrAttemptNotFound = fmt.Errorf("%w: attempt", ErrNotFound)

	// ErrReviewStateNotFound indicates that no review state exists for the
	// requested (student, activity) pair.
	ErrReviewStateNotFound = fmt.Errorf("%w: review state", ErrNotFound)

	// ErrDeltaNotFound indicates that no progression ledger entry exists
	// for the requested attempt.
	ErrDeltaNotFound = fmt.Errorf("%w: progression delta", ErrNotFound)

	// Entity-specific "duplicate" errors.

	// ErrAttemptExists indicates that an attempt with the same idempotency
	// key (student, activity, submitted at) already exists.
	ErrAttemptExists = fmt.Errorf("%w: attempt", ErrDuplicate)

	// ErrEnrollmentExists indicates that the student is already actively
	// enrolled in the classroom.
	ErrEnrollmentExists = fmt.Errorf("%w: enrollment", ErrDuplicate)

	// ErrDeltaExists indicates that a progression ledger entry for the
	// attempt already exists.
	ErrDeltaExists = fmt.Errorf("%w: progression delta", ErrDuplicate)

	// ErrCodeExists indicates that a generated enrollment code collides
	// with another active code in the same school.
	ErrCodeExists = fmt.Errorf("%w: enrollment code", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError is a custom error type for store-specific errors with
// additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "attempt", "review state")
	Operation string // The operation that failed (e.g., "create", "update")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation, e.Entity, e.Message, e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation,
// message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
