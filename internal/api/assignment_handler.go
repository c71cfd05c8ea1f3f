package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cadence-learn/cadence-api/internal/api/middleware"
	"github.com/cadence-learn/cadence-api/internal/api/shared"
	"github.com/cadence-learn/cadence-api/internal/domain"
	"github.com/cadence-learn/cadence-api/internal/platform/logger"
	"github.com/cadence-learn/cadence-api/internal/redact"
	"github.com/cadence-learn/cadence-api/internal/service/assignment"
)

// Bounds for the next-activities page size.
const (
	defaultNextLimit = 10
	maxNextLimit     = 50
)

// CreateAssignmentRequest represents the request body for creating an
// assignment. Activity order is preserved.
type CreateAssignmentRequest struct {
	ActivityIDs []string   `json:"activity_ids" validate:"required,min=1,dive,uuid"`
	DueAt       *time.Time `json:"due_at,omitempty"`
}

// AssignmentHandler handles assignment distribution HTTP requests
type AssignmentHandler struct {
	assignmentService *assignment.Service
	logger            *slog.Logger
}

// NewAssignmentHandler creates a new AssignmentHandler
func NewAssignmentHandler(assignmentService *assignment.Service, logger *slog.Logger) *AssignmentHandler {
	if assignmentService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("assignmentService cannot be nil for AssignmentHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for AssignmentHandler")
	}

	return &AssignmentHandler{
		assignmentService: assignmentService,
		logger:            logger.With(slog.String("component", "assignment_handler")),
	}
}

// CreateAssignment handles POST /classrooms/{id}/assignments requests.
func (h *AssignmentHandler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
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

	var req CreateAssignmentRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid assignment request format", slog.String("error", redact.Error(err)))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "At least one valid activity ID is required")
		return
	}

	activityIDs := make([]uuid.UUID, len(req.ActivityIDs))
	for i, raw := range req.ActivityIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid activity ID format")
			return
		}
		activityIDs[i] = id
	}

	created, err := h.assignmentService.CreateAssignment(r.Context(), claims.UserID, classroomID, activityIDs, req.DueAt)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("assignment created",
		slog.String("assignment_id", created.ID.String()),
		slog.String("classroom_id", classroomID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, assignmentToResponse(created))
}

// ListAssignments handles GET /classrooms/{id}/assignments requests.
func (h *AssignmentHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
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

	assignments, err := h.assignmentService.ListAssignments(r.Context(), claims.UserID, classroomID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	responses := make([]AssignmentResponse, len(assignments))
	for i, a := range assignments {
		responses[i] = assignmentToResponse(a)
	}
	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// NextActivities handles GET /students/{id}/next-activities requests. It
// returns the prioritized work queue for a student: due reviews first, then
// outstanding assignments, then unseen material at the student's band.
//
// Students may only fetch their own queue; teachers may fetch any student's.
func (h *AssignmentHandler) NextActivities(w http.ResponseWriter, r *http.Request) {
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
		shared.RespondWithError(w, r, http.StatusForbidden, "You may only view your own activity queue")
		return
	}

	limit := defaultNextLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxNextLimit {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Limit must be between 1 and 50")
			return
		}
		limit = parsed
	}

	activities, err := h.assignmentService.NextActivities(r.Context(), studentID, limit, time.Now().UTC())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	responses := make([]ActivityResponse, len(activities))
	for i, activity := range activities {
		responses[i] = activityToResponse(activity)
	}

	log.Debug("next activities selected",
		slog.String("student_id", studentID.String()),
		slog.Int("count", len(responses)))
	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}
