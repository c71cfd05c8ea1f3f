package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

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

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		err      error
		expected int
	}{
		{"invalid credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{"invalid token", auth.ErrInvalidToken, http.StatusUnauthorized},
		{"expired token", auth.ErrExpiredToken, http.StatusUnauthorized},
		{"missing token", auth.ErrMissingToken, http.StatusUnauthorized},
		{"not classroom owner (enrollment)", enrollment.ErrNotClassroomOwner, http.StatusForbidden},
		{"not classroom owner (assignment)", assignment.ErrNotClassroomOwner, http.StatusForbidden},
		{"not classroom owner (analytics)", analytics.ErrNotClassroomOwner, http.StatusForbidden},
		{"unauthorized", domain.ErrUnauthorized, http.StatusForbidden},
		{"generic not found", store.ErrNotFound, http.StatusNotFound},
		{"student not found", store.ErrStudentNotFound, http.StatusNotFound},
		{"activity not found", store.ErrActivityNotFound, http.StatusNotFound},
		{"attempt not found", store.ErrAttemptNotFound, http.StatusNotFound},
		{"not enrolled", enrollment.ErrNotEnrolled, http.StatusNotFound},
		{"already graded", grading.ErrAlreadyGraded, http.StatusConflict},
		{"stale transition", grading.ErrStaleTransition, http.StatusConflict},
		{"already enrolled", enrollment.ErrAlreadyEnrolled, http.StatusConflict},
		{"progression already applied", progression.ErrAlreadyApplied, http.StatusConflict},
		{"duplicate", store.ErrDuplicate, http.StatusConflict},
		{"grading pending", grading.ErrGradingPending, http.StatusAccepted},
		{"validation", domain.ErrValidation, http.StatusBadRequest},
		{"invalid answer", grading.ErrInvalidAnswer, http.StatusBadRequest},
		{"invalid enrollment code", enrollment.ErrInvalidCode, http.StatusBadRequest},
		{"empty answer", feedback.ErrEmptyAnswer, http.StatusBadRequest},
		{"grading failed", grading.ErrGradingFailed, http.StatusBadGateway},
		{"content blocked", feedback.ErrContentBlocked, http.StatusBadGateway},
		{"generation failed", feedback.ErrGenerationFailed, http.StatusBadGateway},
		{"transient feedback failure", feedback.ErrTransientFailure, http.StatusBadGateway},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
		{"nil-adjacent unknown", fmt.Errorf("wrapped: %w", errors.New("boom")), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, MapErrorToStatusCode(tc.err))
		})
	}
}

func TestMapErrorToStatusCode_WrappedErrors(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("grade attempt: %w", grading.ErrAlreadyGraded)
	assert.Equal(t, http.StatusConflict, MapErrorToStatusCode(wrapped))

	svcErr := &enrollment.ServiceError{Operation: "generate_code", Message: "exhausted", Err: store.ErrCodeExists}
	assert.Equal(t, http.StatusConflict, MapErrorToStatusCode(svcErr))
}

func TestGetSafeErrorMessage(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		err      error
		expected string
	}{
		{"already graded", grading.ErrAlreadyGraded, "This attempt has already been graded"},
		{"stale transition", grading.ErrStaleTransition, "A newer attempt has already been applied"},
		{"already enrolled", enrollment.ErrAlreadyEnrolled, "Student is already enrolled in this classroom"},
		{"invalid answer", grading.ErrInvalidAnswer, "The submitted answer is not valid for this activity"},
		{"invalid code", enrollment.ErrInvalidCode, "Invalid enrollment code"},
		{"grading pending", grading.ErrGradingPending, "Grading is in progress"},
		{"not found", store.ErrStudentNotFound, "The requested resource was not found"},
		{"forbidden", domain.ErrUnauthorized, "You do not have permission to perform this action"},
		{"unauthorized", auth.ErrInvalidCredentials, "Authentication failed"},
		{"feedback outage", feedback.ErrGenerationFailed, "Feedback generation is temporarily unavailable"},
		{"grading failed", grading.ErrGradingFailed, "Grading failed for this attempt"},
		{"unknown", errors.New("connection reset"), "An internal error occurred"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, GetSafeErrorMessage(tc.err))
		})
	}
}

// Validation errors carry user-actionable text, so it passes through intact.
func TestGetSafeErrorMessage_ValidationTextPassesThrough(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("%w: difficulty out of range", domain.ErrValidation)
	assert.Equal(t, err.Error(), GetSafeErrorMessage(err))
}
