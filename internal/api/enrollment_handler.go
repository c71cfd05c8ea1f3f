package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cadence-learn/cadence-api/internal/api/middleware"
	"github.com/cadence-learn/cadence-api/internal/api/shared"
	"github.com/cadence-learn/cadence-api/internal/platform/logger"
	"github.com/cadence-learn/cadence-api/internal/redact"
	"github.com/cadence-learn/cadence-api/internal/service/enrollment"
)

// EnrollRequest represents the request body for joining a classroom by code.
type EnrollRequest struct {
	Code string `json:"code" validate:"required,len=8"`
}

// GenerateCodeResponse carries a freshly rotated enrollment code.
type GenerateCodeResponse struct {
	Code string `json:"code"`
}

// EnrollmentHandler handles classroom membership HTTP requests
type EnrollmentHandler struct {
	enrollmentService *enrollment.Service
	logger            *slog.Logger
}

// NewEnrollmentHandler creates a new EnrollmentHandler
func NewEnrollmentHandler(enrollmentService *enrollment.Service, logger *slog.Logger) *EnrollmentHandler {
	if enrollmentService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("enrollmentService cannot be nil for EnrollmentHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for EnrollmentHandler")
	}

	return &EnrollmentHandler{
		enrollmentService: enrollmentService,
		logger:            logger.With(slog.String("component", "enrollment_handler")),
	}
}

// Enroll handles POST /enrollments requests. The authenticated student joins
// the classroom matching the submitted code within their own school.
func (h *EnrollmentHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	claims, ok := middleware.GetSession(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req EnrollRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid enroll request format", slog.String("error", redact.Error(err)))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "An 8-character enrollment code is required")
		return
	}

	enrolled, err := h.enrollmentService.Enroll(r.Context(), claims.UserID, req.Code)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("student enrolled",
		slog.String("student_id", claims.UserID.String()),
		slog.String("classroom_id", enrolled.ClassroomID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, enrolled)
}

// Unenroll handles DELETE /classrooms/{id}/enrollment requests. Enrollment
// records are deactivated rather than deleted so attempt history survives.
func (h *EnrollmentHandler) Unenroll(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	classroomID, ok := parsePathUUID(chi.URLParam(r, "id"))
	if !ok {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid classroom ID format")
		return
	}

	claims, ok := middleware.GetSession(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	if _, err := h.enrollmentService.Unenroll(r.Context(), claims.UserID, classroomID); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("student unenrolled",
		slog.String("student_id", claims.UserID.String()),
		slog.String("classroom_id", classroomID.String()))
	w.WriteHeader(http.StatusNoContent)
}

// ListClassrooms handles GET /students/me/classrooms requests, returning the
// authenticated student's active classrooms.
func (h *EnrollmentHandler) ListClassrooms(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetSession(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	classrooms, err := h.enrollmentService.ResolveClassroomsForStudent(r.Context(), claims.UserID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	responses := make([]ClassroomResponse, len(classrooms))
	for i, classroom := range classrooms {
		responses[i] = classroomToResponse(classroom)
	}
	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// RotateCode handles POST /classrooms/{id}/code requests. The owning teacher
// gets a fresh enrollment code; the old code stops working immediately.
func (h *EnrollmentHandler) RotateCode(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	classroomID, ok := parsePathUUID(chi.URLParam(r, "id"))
	if !ok {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid classroom ID format")
		return
	}

	claims, ok := middleware.GetSession(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	code, err := h.enrollmentService.GenerateCode(r.Context(), claims.UserID, classroomID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("enrollment code rotated", slog.String("classroom_id", classroomID.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, GenerateCodeResponse{Code: code})
}
