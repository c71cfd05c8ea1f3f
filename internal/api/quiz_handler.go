package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cadence-learn/cadence-api/internal/api/middleware"
	"github.com/cadence-learn/cadence-api/internal/api/shared"
	"github.com/cadence-learn/cadence-api/internal/platform/logger"
	"github.com/cadence-learn/cadence-api/internal/redact"
	"github.com/cadence-learn/cadence-api/internal/service/grading"
)

// SubmitAttemptRequest represents the request body for submitting an answer.
// SubmittedAt is the client-side submission timestamp; it doubles as the
// idempotency key, so retries of the same submission must repeat it.
type SubmitAttemptRequest struct {
	Answer      string    `json:"answer"       validate:"required"`
	SubmittedAt time.Time `json:"submitted_at" validate:"required"`
}

// QuizHandler handles attempt submission HTTP requests
type QuizHandler struct {
	gradingService *grading.Service
	logger         *slog.Logger
}

// NewQuizHandler creates a new QuizHandler
func NewQuizHandler(gradingService *grading.Service, logger *slog.Logger) *QuizHandler {
	if gradingService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("gradingService cannot be nil for QuizHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for QuizHandler")
	}

	return &QuizHandler{
		gradingService: gradingService,
		logger:         logger.With(slog.String("component", "quiz_handler")),
	}
}

// SubmitAttempt handles POST /activities/{id}/attempts requests.
//
// Response codes distinguish grading outcomes:
//   - 200: the attempt was graded synchronously
//   - 202: the attempt was accepted but grading is still in flight
//   - 409: a duplicate submission; the body carries the original attempt
func (h *QuizHandler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	activityID, ok := parsePathUUID(chi.URLParam(r, "id"))
	if !ok {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid activity ID format")
		return
	}

	claims, ok := middleware.GetSession(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req SubmitAttemptRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid attempt request format",
			slog.String("error", redact.Error(err)),
			slog.String("activity_id", activityID.String()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Answer and submitted_at are required")
		return
	}

	attempt, err := h.gradingService.Grade(r.Context(), grading.RawAttempt{
		StudentID:   claims.UserID,
		ActivityID:  activityID,
		SubmittedAt: req.SubmittedAt,
		Answer:      req.Answer,
	})

	switch {
	case err == nil:
		log.Debug("attempt graded synchronously",
			slog.String("attempt_id", attempt.ID.String()),
			slog.String("student_id", claims.UserID.String()))
		shared.RespondWithJSON(w, r, http.StatusOK, attemptToResponse(attempt))

	case errors.Is(err, grading.ErrGradingPending) && attempt != nil:
		// The attempt is persisted; the reconciliation sweep will finish it.
		log.Debug("attempt parked pending feedback",
			slog.String("attempt_id", attempt.ID.String()),
			slog.String("student_id", claims.UserID.String()))
		shared.RespondWithJSON(w, r, http.StatusAccepted, attemptToResponse(attempt))

	case errors.Is(err, grading.ErrAlreadyGraded) && attempt != nil:
		shared.RespondWithJSON(w, r, http.StatusConflict, attemptToResponse(attempt))

	default:
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
	}
}
