// Package assignment distributes work to students. Teacher-authored
// assignments are explicit, ordered activity lists per classroom; the
// distributor merges them with due spaced-repetition reviews and fresh
// material into a single "what should this student do next" answer.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/cadence-learn/cadence-api/internal/config"
	"github.com/cadence-learn/cadence-api/internal/domain"
	"github.com/cadence-learn/cadence-api/internal/platform/logger"
	"github.com/cadence-learn/cadence-api/internal/store"
)

// ErrNotClassroomOwner indicates the acting teacher does not own the
// classroom being assigned to.
var ErrNotClassroomOwner = errors.New("classroom is owned by another teacher")

// DefaultReviewFraction is the share of a distribution call reserved for
// due reviews before assignments and new material fill the rest.
const DefaultReviewFraction = 0.7

// ServiceError is a custom error type for assignment service errors.
type ServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("assignment service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("assignment service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Service creates teacher assignments and selects each student's next
// activities.
type Service struct {
	students       store.StudentStore
	classrooms     store.ClassroomStore
	activities     store.ActivityStore
	assignments    store.AssignmentStore
	reviewStates   store.ReviewStateStore
	reviewFraction float64
	logger         *slog.Logger
}

// NewService creates a new assignment service.
func NewService(
	students store.StudentStore,
	classrooms store.ClassroomStore,
	activities store.ActivityStore,
	assignments store.AssignmentStore,
	reviewStates store.ReviewStateStore,
	cfg config.DistributorConfig,
	logger *slog.Logger,
) *Service {
	if students == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("students cannot be nil")
	}
	if classrooms == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("classrooms cannot be nil")
	}
	if activities == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("activities cannot be nil")
	}
	if assignments == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("assignments cannot be nil")
	}
	if reviewStates == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("reviewStates cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	fraction := cfg.ReviewFraction
	if fraction <= 0 || fraction > 1 {
		fraction = DefaultReviewFraction
	}

	return &Service{
		students:       students,
		classrooms:     classrooms,
		activities:     activities,
		assignments:    assignments,
		reviewStates:   reviewStates,
		reviewFraction: fraction,
		logger:         logger.With(slog.String("component", "assignment_service")),
	}
}

// CreateAssignment creates an ordered assignment for a classroom. The
// teacher must own the classroom and every activity must exist.
func (s *Service) CreateAssignment(
	ctx context.Context,
	teacherID, classroomID uuid.UUID,
	activityIDs []uuid.UUID,
	dueAt *time.Time,
) (*domain.Assignment, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	classroom, err := s.classrooms.GetByID(ctx, classroomID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, err
		}
		return nil, &ServiceError{Operation: "create_assignment", Message: "classroom lookup failed", Err: err}
	}
	if classroom.TeacherID != teacherID {
		return nil, ErrNotClassroomOwner
	}

	// Validates existence of every referenced activity up front.
	if _, err := s.activities.GetMultiple(ctx, activityIDs); err != nil {
		if store.IsNotFoundError(err) {
			return nil, err
		}
		return nil, &ServiceError{Operation: "create_assignment", Message: "activity lookup failed", Err: err}
	}

	assignment, err := domain.NewAssignment(classroomID, teacherID, activityIDs, dueAt)
	if err != nil {
		return nil, err
	}

	if err := s.assignments.Create(ctx, assignment); err != nil {
		return nil, &ServiceError{Operation: "create_assignment", Message: "failed to save assignment", Err: err}
	}

	log.Info("assignment created",
		slog.String("assignment_id", assignment.ID.String()),
		slog.String("classroom_id", classroomID.String()),
		slog.Int("activity_count", len(activityIDs)))
	return assignment, nil
}

// ListAssignments retrieves a classroom's assignments, oldest first. The
// teacher must own the classroom.
func (s *Service) ListAssignments(
	ctx context.Context,
	teacherID, classroomID uuid.UUID,
) ([]*domain.Assignment, error) {
	classroom, err := s.classrooms.GetByID(ctx, classroomID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, err
		}
		return nil, &ServiceError{Operation: "list_assignments", Message: "classroom lookup failed", Err: err}
	}
	if classroom.TeacherID != teacherID {
		return nil, ErrNotClassroomOwner
	}

	assignments, err := s.assignments.ListByClassroom(ctx, classroomID)
	if err != nil {
		return nil, &ServiceError{Operation: "list_assignments", Message: "assignment lookup failed", Err: err}
	}
	return assignments, nil
}

// NextActivities selects up to limit activities for the student, in
// priority order:
//
//  1. due reviews, up to ceil(limit * reviewFraction), struggling items first
//  2. outstanding teacher assignments, FIFO by creation time
//  3. unseen activities at the student's difficulty band
//
// An activity appears at most once per call.
func (s *Service) NextActivities(
	ctx context.Context,
	studentID uuid.UUID,
	limit int,
	asOf time.Time,
) ([]*domain.Activity, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		return nil, nil
	}

	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, err
		}
		return nil, &ServiceError{Operation: "next_activities", Message: "student lookup failed", Err: err}
	}

	reviewBudget := int(math.Ceil(float64(limit) * s.reviewFraction))
	if reviewBudget > limit {
		reviewBudget = limit
	}

	due, err := s.reviewStates.ListDue(ctx, studentID, asOf, reviewBudget)
	if err != nil {
		return nil, &ServiceError{Operation: "next_activities", Message: "due review lookup failed", Err: err}
	}

	selected := make([]uuid.UUID, 0, limit)
	seen := make(map[uuid.UUID]struct{}, limit)
	for _, state := range due {
		selected = append(selected, state.ActivityID)
		seen[state.ActivityID] = struct{}{}
	}

	if len(selected) < limit {
		assignments, err := s.assignments.ListForStudent(ctx, studentID)
		if err != nil {
			return nil, &ServiceError{Operation: "next_activities", Message: "assignment lookup failed", Err: err}
		}
	assignmentFill:
		for _, assignment := range assignments {
			for _, activityID := range assignment.ActivityIDs {
				if len(selected) >= limit {
					break assignmentFill
				}
				if _, dup := seen[activityID]; dup {
					continue
				}
				selected = append(selected, activityID)
				seen[activityID] = struct{}{}
			}
		}
	}

	if len(selected) < limit {
		difficulty := difficultyFor(student.CEFRLevel)
		// Over-fetch slightly since some unseen items may already be
		// selected through an assignment.
		unseen, err := s.activities.ListUnseen(ctx, studentID, difficulty, limit)
		if err != nil {
			return nil, &ServiceError{Operation: "next_activities", Message: "unseen lookup failed", Err: err}
		}
		for _, activity := range unseen {
			if len(selected) >= limit {
				break
			}
			if _, dup := seen[activity.ID]; dup {
				continue
			}
			selected = append(selected, activity.ID)
			seen[activity.ID] = struct{}{}
		}
	}

	if len(selected) == 0 {
		return nil, nil
	}

	activities, err := s.activities.GetMultiple(ctx, selected)
	if err != nil {
		return nil, &ServiceError{Operation: "next_activities", Message: "activity lookup failed", Err: err}
	}

	log.Debug("activities distributed",
		slog.String("student_id", studentID.String()),
		slog.Int("due_reviews", len(due)),
		slog.Int("total", len(activities)))
	return activities, nil
}

// difficultyFor maps a CEFR band onto the 1..6 difficulty scale.
func difficultyFor(level domain.CEFRLevel) int {
	idx := domain.CEFRIndex(level)
	if idx < 0 {
		return domain.MinDifficulty
	}
	return idx + 1
}
