// Package analytics computes the SRS health and velocity metrics teachers
// use to monitor student progress, plus per-classroom rollups.
//
// Health is a judgment about review hygiene (are reviews done, and done on
// time); velocity is a throughput rate (how much graded work per day). The
// two deliberately degrade differently: a student with no review history has
// no health (NoData), while a student with history but no recent work has a
// velocity of exactly zero.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/cadence-learn/cadence-api/internal/domain"
	"github.com/cadence-learn/cadence-api/internal/platform/logger"
	"github.com/cadence-learn/cadence-api/internal/platform/redis"
	"github.com/cadence-learn/cadence-api/internal/store"
)

// ErrNoData indicates the student has no active review states, so health is
// undefined rather than numeric.
var ErrNoData = errors.New("no review history for student")

// ErrNotClassroomOwner indicates the acting teacher does not own the
// classroom being rolled up.
var ErrNotClassroomOwner = errors.New("classroom is owned by another teacher")

// ServiceError is a custom error type for analytics service errors.
type ServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("analytics service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("analytics service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// HealthReport is the composite review-hygiene metric for one student.
type HealthReport struct {
	StudentID    uuid.UUID `json:"student_id"`
	Score        float64   `json:"score"`
	OnTimeRatio  float64   `json:"on_time_ratio"`
	OverdueRatio float64   `json:"overdue_ratio"`
	StreakFactor float64   `json:"streak_factor"`
	TotalStates  int       `json:"total_states"`
	AsOf         time.Time `json:"as_of"`
}

// VelocityReport is the smoothed graded-attempts-per-day rate for one student.
type VelocityReport struct {
	StudentID  uuid.UUID `json:"student_id"`
	PerDay     float64   `json:"per_day"`
	WindowDays int       `json:"window_days"`
	AsOf       time.Time `json:"as_of"`
}

// ClassroomRollup aggregates student metrics over a classroom. Students with
// no review history are excluded from the means and counted separately so a
// quiet classroom is distinguishable from a struggling one.
type ClassroomRollup struct {
	ClassroomID   uuid.UUID `json:"classroom_id"`
	StudentCount  int       `json:"student_count"`
	MeanHealth    float64   `json:"mean_health"`
	MeanVelocity  float64   `json:"mean_velocity"`
	ExcludedCount int       `json:"excluded_count"`
	AsOf          time.Time `json:"as_of"`
}

// Service computes analytics metrics from review and attempt history.
type Service struct {
	reviewStates store.ReviewStateStore
	attempts     store.AttemptStore
	enrollments  store.EnrollmentStore
	classrooms   store.ClassroomStore
	cache        *redis.Cache
	params       Params
	logger       *slog.Logger
}

// NewService creates a new analytics service. cache may be nil, in which
// case rollups are recomputed on every call.
func NewService(
	reviewStates store.ReviewStateStore,
	attempts store.AttemptStore,
	enrollments store.EnrollmentStore,
	classrooms store.ClassroomStore,
	cache *redis.Cache,
	params Params,
	logger *slog.Logger,
) *Service {
	if reviewStates == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("reviewStates cannot be nil")
	}
	if attempts == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("attempts cannot be nil")
	}
	if enrollments == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("enrollments cannot be nil")
	}
	if classrooms == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("classrooms cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		reviewStates: reviewStates,
		attempts:     attempts,
		enrollments:  enrollments,
		classrooms:   classrooms,
		cache:        cache,
		params:       params,
		logger:       logger.With(slog.String("component", "analytics_service")),
	}
}

// Health computes the SRS health score for a student as of the given time.
// Returns ErrNoData when the student has no review states; health is never
// defaulted to a numeric value without history.
func (s *Service) Health(ctx context.Context, studentID uuid.UUID, asOf time.Time) (*HealthReport, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	states, err := s.reviewStates.ListByStudent(ctx, studentID)
	if err != nil {
		log.Error("failed to load review states",
			slog.String("error", err.Error()),
			slog.String("student_id", studentID.String()))
		return nil, &ServiceError{Operation: "health", Message: "review state lookup failed", Err: err}
	}
	if len(states) == 0 {
		return nil, ErrNoData
	}

	report := s.computeHealth(studentID, states, asOf)
	return report, nil
}

func (s *Service) computeHealth(
	studentID uuid.UUID,
	states []*domain.ReviewState,
	asOf time.Time,
) *HealthReport {
	var totalReviews, onTimeReviews, overdue, streakSum int
	for _, st := range states {
		totalReviews += st.TotalReviews
		onTimeReviews += st.OnTimeReviews
		if st.Overdue(asOf) {
			overdue++
		}
		streakSum += st.Streak
	}

	// No graded reviews yet means nothing has been late yet.
	onTimeRatio := 1.0
	if totalReviews > 0 {
		onTimeRatio = float64(onTimeReviews) / float64(totalReviews)
	}
	overdueRatio := float64(overdue) / float64(len(states))
	streakFactor := float64(streakSum) / float64(len(states)) / float64(s.params.StreakTarget)

	score := s.params.OnTimeWeight*clamp01(onTimeRatio) +
		s.params.OverdueWeight*clamp01(1-overdueRatio) +
		s.params.StreakWeight*clamp01(streakFactor)

	return &HealthReport{
		StudentID:    studentID,
		Score:        score,
		OnTimeRatio:  clamp01(onTimeRatio),
		OverdueRatio: clamp01(overdueRatio),
		StreakFactor: clamp01(streakFactor),
		TotalStates:  len(states),
		AsOf:         asOf,
	}
}

// Velocity computes the smoothed graded-attempts-per-day rate over the
// trailing window. Returns ErrNoData only when the student has no review
// history at all; history with no recent attempts yields exactly 0.
func (s *Service) Velocity(ctx context.Context, studentID uuid.UUID, asOf time.Time) (*VelocityReport, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	exposed, err := s.reviewStates.ListActivityIDs(ctx, studentID)
	if err != nil {
		log.Error("failed to load review history",
			slog.String("error", err.Error()),
			slog.String("student_id", studentID.String()))
		return nil, &ServiceError{Operation: "velocity", Message: "review state lookup failed", Err: err}
	}
	if len(exposed) == 0 {
		return nil, ErrNoData
	}

	since := asOf.AddDate(0, 0, -s.params.VelocityWindowDays)
	attempts, err := s.attempts.ListGradedSince(ctx, studentID, since, asOf)
	if err != nil {
		log.Error("failed to load graded attempts",
			slog.String("error", err.Error()),
			slog.String("student_id", studentID.String()))
		return nil, &ServiceError{Operation: "velocity", Message: "attempt lookup failed", Err: err}
	}

	return &VelocityReport{
		StudentID:  studentID,
		PerDay:     s.computeVelocity(attempts, asOf),
		WindowDays: s.params.VelocityWindowDays,
		AsOf:       asOf,
	}, nil
}

// computeVelocity is an exponentially-weighted mean of daily graded-attempt
// counts: day d back from asOf carries weight 0.5^(d/halfLife).
func (s *Service) computeVelocity(attempts []*domain.Attempt, asOf time.Time) float64 {
	counts := make([]int, s.params.VelocityWindowDays)
	for _, a := range attempts {
		if a.GradedAt == nil {
			continue
		}
		age := asOf.Sub(*a.GradedAt)
		day := int(age.Hours() / 24)
		if day < 0 || day >= s.params.VelocityWindowDays {
			continue
		}
		counts[day]++
	}

	var weighted, norm float64
	for day, count := range counts {
		w := math.Pow(0.5, float64(day)/s.params.VelocityHalfLifeDays)
		weighted += w * float64(count)
		norm += w
	}
	if norm == 0 {
		return 0
	}
	return weighted / norm
}

// rollupCacheKey namespaces classroom rollups in the shared cache.
func rollupCacheKey(classroomID uuid.UUID) string {
	return "rollup:classroom:" + classroomID.String()
}

// ClassroomRollup aggregates the enrolled students' metrics for a classroom
// owned by teacherID. The result is cached briefly when a cache is
// configured, since teacher dashboards poll and the computation fans out
// across the whole roster. The ownership check runs before the cache read so
// cached rollups never leak across teachers.
func (s *Service) ClassroomRollup(
	ctx context.Context,
	teacherID, classroomID uuid.UUID,
	asOf time.Time,
) (*ClassroomRollup, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	classroom, err := s.classrooms.GetByID(ctx, classroomID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, err
		}
		return nil, &ServiceError{Operation: "classroom_rollup", Message: "classroom lookup failed", Err: err}
	}
	if classroom.TeacherID != teacherID {
		return nil, ErrNotClassroomOwner
	}

	var cached ClassroomRollup
	if err := s.cache.Get(ctx, rollupCacheKey(classroomID), &cached); err == nil {
		log.Debug("classroom rollup served from cache",
			slog.String("classroom_id", classroomID.String()))
		return &cached, nil
	} else if !errors.Is(err, redis.ErrCacheMiss) {
		log.Warn("rollup cache read failed, recomputing",
			slog.String("error", err.Error()),
			slog.String("classroom_id", classroomID.String()))
	}

	studentIDs, err := s.enrollments.ListActiveByClassroom(ctx, classroomID)
	if err != nil {
		return nil, &ServiceError{Operation: "classroom_rollup", Message: "roster lookup failed", Err: err}
	}

	rollup := &ClassroomRollup{
		ClassroomID:  classroomID,
		StudentCount: len(studentIDs),
		AsOf:         asOf,
	}

	var healthSum, velocitySum float64
	var included int
	for _, studentID := range studentIDs {
		health, err := s.Health(ctx, studentID, asOf)
		if errors.Is(err, ErrNoData) {
			rollup.ExcludedCount++
			continue
		}
		if err != nil {
			return nil, err
		}

		velocity, err := s.Velocity(ctx, studentID, asOf)
		if err != nil {
			return nil, err
		}

		healthSum += health.Score
		velocitySum += velocity.PerDay
		included++
	}

	if included > 0 {
		rollup.MeanHealth = healthSum / float64(included)
		rollup.MeanVelocity = velocitySum / float64(included)
	}

	if err := s.cache.Set(ctx, rollupCacheKey(classroomID), rollup); err != nil {
		log.Warn("rollup cache write failed",
			slog.String("error", err.Error()),
			slog.String("classroom_id", classroomID.String()))
	}
	return rollup, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
