package grading

import (
	"errors"
	"fmt"
)

// Common grading service errors.
var (
	// ErrAlreadyGraded indicates the attempt was graded before. Callers
	// receive the previously stored attempt alongside this sentinel; the
	// external generator is never re-invoked.
	ErrAlreadyGraded = errors.New("attempt already graded")

	// ErrGradingPending indicates the attempt is persisted but waiting on
	// the feedback generator. The reconciliation sweep picks it up later.
	ErrGradingPending = errors.New("grading pending external feedback")

	// ErrGradingFailed indicates grading ended in a terminal failure: the
	// generator response was structurally unusable or blocked. The attempt
	// keeps its failed status and the reconciliation sweep does not retry.
	ErrGradingFailed = errors.New("grading failed terminally")

	// ErrStaleTransition indicates the attempt's gradedAt predates a
	// transition already applied to the review state. The attempt's ledger
	// application is rejected to preserve ordering.
	ErrStaleTransition = errors.New("stale transition: newer attempt already applied")

	// ErrInvalidAnswer indicates the raw answer is structurally unusable
	// for the activity (for example, an MCQ option that does not exist).
	// Never retried.
	ErrInvalidAnswer = errors.New("answer is invalid for this activity")
)

// ServiceError is a custom error type for grading service errors.
type ServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("grading service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("grading service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}
