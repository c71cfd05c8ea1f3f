package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cadence-learn/cadence-api/internal/api/middleware"
	"github.com/cadence-learn/cadence-api/internal/api/shared"
	"github.com/cadence-learn/cadence-api/internal/domain"
	"github.com/cadence-learn/cadence-api/internal/platform/logger"
	"github.com/cadence-learn/cadence-api/internal/service/analytics"
)

// AnalyticsHandler handles metrics HTTP requests
type AnalyticsHandler struct {
	analyticsService *analytics.Service
	logger           *slog.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler
func NewAnalyticsHandler(analyticsService *analytics.Service, logger *slog.Logger) *AnalyticsHandler {
	if analyticsService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("analyticsService cannot be nil for AnalyticsHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for AnalyticsHandler")
	}

	return &AnalyticsHandler{
		analyticsService: analyticsService,
		logger:           logger.With(slog.String("component", "analytics_handler")),
	}
}

// SRSHealth handles GET /students/{id}/srs-health requests.
// Responds 204 when the student has no review history yet.
func (h *AnalyticsHandler) SRSHealth(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	studentID, ok := parsePathUUID(chi.URLParam(r, "id"))
	if !ok {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid student ID format")
		return
	}

	claims, ok := middleware.GetSession(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	if claims.Role != domain.RoleTeacher && claims.UserID != studentID {
		shared.RespondWithError(w, r, http.StatusForbidden, "You may only view your own metrics")
		return
	}

	report, err := h.analyticsService.Health(r.Context(), studentID, time.Now().UTC())
	if errors.Is(err, analytics.ErrNoData) {
		log.Debug("no review history for health report", slog.String("student_id", studentID.String()))
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, report)
}

// Velocity handles GET /students/{id}/velocity requests.
// Responds 204 when the student has no review history yet.
func (h *AnalyticsHandler) Velocity(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	studentID, ok := parsePathUUID(chi.URLParam(r, "id"))
	if !ok {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid student ID format")
		return
	}

	claims, ok := middleware.GetSession(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	if claims.Role != domain.RoleTeacher && claims.UserID != studentID {
		shared.RespondWithError(w, r, http.StatusForbidden, "You may only view your own metrics")
		return
	}

	report, err := h.analyticsService.Velocity(r.Context(), studentID, time.Now().UTC())
	if errors.Is(err, analytics.ErrNoData) {
		log.Debug("no review history for velocity report", slog.String("student_id", studentID.String()))
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, report)
}

// ClassroomRollup handles GET /classrooms/{id}/rollup requests.
func (h *AnalyticsHandler) ClassroomRollup(w http.ResponseWriter, r *http.Request) {
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

	rollup, err := h.analyticsService.ClassroomRollup(r.Context(), claims.UserID, classroomID, time.Now().UTC())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, rollup)
}
