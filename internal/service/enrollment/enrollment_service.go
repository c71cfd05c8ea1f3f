// Package enrollment manages classroom membership: joining by code, leaving,
// roster resolution, and enrollment code lifecycle. Membership is the
// authorization boundary for everything downstream, so unenrollment is a
// soft delete and never discards attempt or review history.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cadence-learn/cadence-api/internal/domain"
	"github.com/cadence-learn/cadence-api/internal/platform/logger"
	"github.com/cadence-learn/cadence-api/internal/store"
)

// Common enrollment service errors.
var (
	// ErrInvalidCode indicates the enrollment code matched no classroom in
	// the student's school. Expired (regenerated) codes fail the same way.
	ErrInvalidCode = errors.New("invalid enrollment code")

	// ErrAlreadyEnrolled indicates the student already has an active
	// enrollment in the classroom.
	ErrAlreadyEnrolled = errors.New("student already enrolled in classroom")

	// ErrNotEnrolled indicates the student has no active enrollment in the
	// classroom.
	ErrNotEnrolled = errors.New("student not enrolled in classroom")

	// ErrNotClassroomOwner indicates the acting teacher does not own the
	// classroom.
	ErrNotClassroomOwner = errors.New("classroom is owned by another teacher")
)

// codeGenerationAttempts bounds collision retries when minting a new
// enrollment code. With an 8-character code the chance of exhausting this
// is negligible; the bound exists so a broken store cannot loop forever.
const codeGenerationAttempts = 5

// ServiceError is a custom error type for enrollment service errors.
type ServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("enrollment service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("enrollment service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Service manages classroom enrollment.
type Service struct {
	students    store.StudentStore
	classrooms  store.ClassroomStore
	enrollments store.EnrollmentStore
	logger      *slog.Logger
}

// NewService creates a new enrollment service.
func NewService(
	students store.StudentStore,
	classrooms store.ClassroomStore,
	enrollments store.EnrollmentStore,
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
	if enrollments == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("enrollments cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		students:    students,
		classrooms:  classrooms,
		enrollments: enrollments,
		logger:      logger.With(slog.String("component", "enrollment_service")),
	}
}

// Enroll joins a student to the classroom carrying the given code. The code
// lookup is scoped to the student's school, so codes never leak across
// school boundaries.
func (s *Service) Enroll(ctx context.Context, studentID uuid.UUID, code string) (*domain.Enrollment, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, err
		}
		return nil, &ServiceError{Operation: "enroll", Message: "student lookup failed", Err: err}
	}

	classroom, err := s.classrooms.GetByCode(ctx, student.SchoolID, code)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrInvalidCode
		}
		return nil, &ServiceError{Operation: "enroll", Message: "classroom lookup failed", Err: err}
	}

	enrollment, err := domain.NewEnrollment(studentID, classroom.ID)
	if err != nil {
		return nil, err
	}

	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		if errors.Is(err, store.ErrEnrollmentExists) {
			return nil, ErrAlreadyEnrolled
		}
		return nil, &ServiceError{Operation: "enroll", Message: "failed to save enrollment", Err: err}
	}

	log.Info("student enrolled",
		slog.String("student_id", studentID.String()),
		slog.String("classroom_id", classroom.ID.String()))
	return enrollment, nil
}

// Unenroll ends a student's active enrollment in the classroom. The row is
// deactivated, not deleted; attempts and review states remain for analytics.
func (s *Service) Unenroll(ctx context.Context, studentID, classroomID uuid.UUID) (*domain.Enrollment, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	enrollment, err := s.enrollments.GetActive(ctx, studentID, classroomID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrNotEnrolled
		}
		return nil, &ServiceError{Operation: "unenroll", Message: "enrollment lookup failed", Err: err}
	}

	enrollment.Deactivate(time.Now().UTC())
	if err := s.enrollments.Update(ctx, enrollment); err != nil {
		return nil, &ServiceError{Operation: "unenroll", Message: "failed to deactivate enrollment", Err: err}
	}

	log.Info("student unenrolled",
		slog.String("student_id", studentID.String()),
		slog.String("classroom_id", classroomID.String()))
	return enrollment, nil
}

// ResolveClassroomsForStudent retrieves the classrooms the student is
// actively enrolled in.
func (s *Service) ResolveClassroomsForStudent(
	ctx context.Context,
	studentID uuid.UUID,
) ([]*domain.Classroom, error) {
	classrooms, err := s.enrollments.ListActiveByStudent(ctx, studentID)
	if err != nil {
		return nil, &ServiceError{Operation: "resolve_classrooms", Message: "enrollment lookup failed", Err: err}
	}
	return classrooms, nil
}

// ResolveStudentsForTeacher retrieves the students actively enrolled in any
// of the teacher's classrooms.
func (s *Service) ResolveStudentsForTeacher(
	ctx context.Context,
	teacherID uuid.UUID,
) ([]*domain.Student, error) {
	students, err := s.students.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, &ServiceError{Operation: "resolve_students", Message: "roster lookup failed", Err: err}
	}
	return students, nil
}

// GenerateCode mints a fresh enrollment code for the classroom, retrying on
// the rare collision with another active code in the school. The previous
// code stops working the moment the new one is stored.
func (s *Service) GenerateCode(ctx context.Context, teacherID, classroomID uuid.UUID) (string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	classroom, err := s.classrooms.GetByID(ctx, classroomID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return "", err
		}
		return "", &ServiceError{Operation: "generate_code", Message: "classroom lookup failed", Err: err}
	}
	if classroom.TeacherID != teacherID {
		return "", ErrNotClassroomOwner
	}

	for attempt := 0; attempt < codeGenerationAttempts; attempt++ {
		code, err := domain.NewEnrollmentCode()
		if err != nil {
			return "", &ServiceError{Operation: "generate_code", Message: "failed to generate code", Err: err}
		}

		err = s.classrooms.UpdateCode(ctx, classroomID, code)
		if err == nil {
			log.Info("enrollment code rotated",
				slog.String("classroom_id", classroomID.String()))
			return code, nil
		}
		if !errors.Is(err, store.ErrCodeExists) {
			return "", &ServiceError{Operation: "generate_code", Message: "failed to store code", Err: err}
		}

		log.Debug("enrollment code collision, retrying",
			slog.String("classroom_id", classroomID.String()),
			slog.Int("attempt", attempt+1))
	}

	return "", &ServiceError{
		Operation: "generate_code",
		Message:   fmt.Sprintf("could not find a free code in %d attempts", codeGenerationAttempts),
		Err:       store.ErrCodeExists,
	}
}
