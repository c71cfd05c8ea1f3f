// Package api provides the HTTP surface: handlers, request/response models,
// and the mapping from service errors to status codes.
package api

import (
	"errors"
	"net/http"

	"github.com/cadence-learn/cadence-api/internal/domain"
	"github.com/cadence-learn/cadence-api/internal/feedback"
	"github.com/cadence-learn/cadence-api/internal/service/analytics"
	"github.com/cadence-learn/cadence-api/internal/service/assignment"
	"github.com/cadence-learn/cadence-api/internal/service/auth"
	"github.com/cadence-learn/cadence-api/internal/service/enrollment"
	"github.com/cadence-learn/cadence-api/internal/service/grading"
	"github.com/cadence-learn/cadence-api/internal/service/progression"
	"github.com/cadence-learn/cadence-api/internal/store"
)

// MapErrorToStatusCode translates service and store errors into HTTP status
// codes. Unrecognized errors map to 500 so internals are never leaked by
// accident.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication failures.
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	// Authorization failures.
	case errors.Is(err, enrollment.ErrNotClassroomOwner),
		errors.Is(err, assignment.ErrNotClassroomOwner),
		errors.Is(err, analytics.ErrNotClassroomOwner),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden

	// Missing entities. Covers every entity-specific sentinel in the store
	// package since they all wrap store.ErrNotFound.
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, enrollment.ErrNotEnrolled):
		return http.StatusNotFound

	// Conflicts with current resource state.
	case errors.Is(err, grading.ErrAlreadyGraded),
		errors.Is(err, grading.ErrStaleTransition),
		errors.Is(err, enrollment.ErrAlreadyEnrolled),
		errors.Is(err, progression.ErrAlreadyApplied),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	// Accepted but not yet complete; the attempt is parked for the
	// reconciliation sweep.
	case errors.Is(err, grading.ErrGradingPending):
		return http.StatusAccepted

	// Malformed or invalid input.
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, grading.ErrInvalidAnswer),
		errors.Is(err, enrollment.ErrInvalidCode),
		errors.Is(err, feedback.ErrEmptyAnswer):
		return http.StatusBadRequest

	// Upstream feedback generator failures, including attempts parked and
	// then terminally failed by the generator.
	case errors.Is(err, grading.ErrGradingFailed),
		errors.Is(err, feedback.ErrContentBlocked),
		errors.Is(err, feedback.ErrInvalidResponse),
		errors.Is(err, feedback.ErrGenerationFailed),
		errors.Is(err, feedback.ErrTransientFailure):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-safe message for an error. Validation
// errors pass through their own text since it is user-actionable; everything
// else gets a generic message keyed off the status code.
func GetSafeErrorMessage(err error) string {
	if errors.Is(err, domain.ErrValidation) || errors.Is(err, store.ErrInvalidEntity) {
		return err.Error()
	}

	switch MapErrorToStatusCode(err) {
	case http.StatusUnauthorized:
		return "Authentication failed"
	case http.StatusForbidden:
		return "You do not have permission to perform this action"
	case http.StatusNotFound:
		return "The requested resource was not found"
	case http.StatusConflict:
		switch {
		case errors.Is(err, grading.ErrAlreadyGraded):
			return "This attempt has already been graded"
		case errors.Is(err, grading.ErrStaleTransition):
			return "A newer attempt has already been applied"
		case errors.Is(err, enrollment.ErrAlreadyEnrolled):
			return "Student is already enrolled in this classroom"
		default:
			return "The request conflicts with the current state of the resource"
		}
	case http.StatusAccepted:
		return "Grading is in progress"
	case http.StatusBadRequest:
		switch {
		case errors.Is(err, grading.ErrInvalidAnswer):
			return "The submitted answer is not valid for this activity"
		case errors.Is(err, enrollment.ErrInvalidCode):
			return "Invalid enrollment code"
		default:
			return "The request is invalid"
		}
	case http.StatusBadGateway:
		if errors.Is(err, grading.ErrGradingFailed) {
			return "Grading failed for this attempt"
		}
		return "Feedback generation is temporarily unavailable"
	default:
		return "An internal error occurred"
	}
}
