package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadence-learn/cadence-api/internal/domain"
	"github.com/cadence-learn/cadence-api/internal/store"
)

// The stubs embed the store interfaces so only the methods the service
// actually calls need implementations.

type stubReviewStateStore struct {
	store.ReviewStateStore
	states map[uuid.UUID][]*domain.ReviewState
}

func (s *stubReviewStateStore) ListByStudent(_ context.Context, studentID uuid.UUID) ([]*domain.ReviewState, error) {
	return s.states[studentID], nil
}

func (s *stubReviewStateStore) ListActivityIDs(_ context.Context, studentID uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, state := range s.states[studentID] {
		out = append(out, state.ActivityID)
	}
	return out, nil
}

type stubAttemptStore struct {
	store.AttemptStore
	graded map[uuid.UUID][]*domain.Attempt
}

func (s *stubAttemptStore) ListGradedSince(
	_ context.Context,
	studentID uuid.UUID,
	since, until time.Time,
) ([]*domain.Attempt, error) {
	var out []*domain.Attempt
	for _, a := range s.graded[studentID] {
		if a.GradedAt != nil && a.GradedAt.After(since) && !a.GradedAt.After(until) {
			out = append(out, a)
		}
	}
	return out, nil
}

type stubEnrollmentStore struct {
	store.EnrollmentStore
	roster map[uuid.UUID][]uuid.UUID
}

func (s *stubEnrollmentStore) ListActiveByClassroom(_ context.Context, classroomID uuid.UUID) ([]uuid.UUID, error) {
	return s.roster[classroomID], nil
}

type stubClassroomStore struct {
	store.ClassroomStore
	classrooms map[uuid.UUID]*domain.Classroom
}

func (s *stubClassroomStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Classroom, error) {
	classroom, ok := s.classrooms[id]
	if !ok {
		return nil, store.ErrClassroomNotFound
	}
	return classroom, nil
}

func newAnalyticsService(
	states *stubReviewStateStore,
	attempts *stubAttemptStore,
	enrollments *stubEnrollmentStore,
	classrooms *stubClassroomStore,
) *Service {
	if states == nil {
		states = &stubReviewStateStore{states: map[uuid.UUID][]*domain.ReviewState{}}
	}
	if attempts == nil {
		attempts = &stubAttemptStore{graded: map[uuid.UUID][]*domain.Attempt{}}
	}
	if enrollments == nil {
		enrollments = &stubEnrollmentStore{roster: map[uuid.UUID][]uuid.UUID{}}
	}
	if classrooms == nil {
		classrooms = &stubClassroomStore{classrooms: map[uuid.UUID]*domain.Classroom{}}
	}
	return NewService(states, attempts, enrollments, classrooms, nil, NewDefaultParams(), nil)
}

// ownedClassroom registers a classroom for teacherID and returns its store.
func ownedClassroom(t *testing.T, teacherID uuid.UUID) (*domain.Classroom, *stubClassroomStore) {
	t.Helper()
	classroom, err := domain.NewClassroom(teacherID, uuid.New(), "Period 3 English")
	require.NoError(t, err)
	return classroom, &stubClassroomStore{classrooms: map[uuid.UUID]*domain.Classroom{
		classroom.ID: classroom,
	}}
}

func reviewState(studentID uuid.UUID, dueAt time.Time, total, onTime, streak int) *domain.ReviewState {
	return &domain.ReviewState{
		StudentID:     studentID,
		ActivityID:    uuid.New(),
		Stage:         domain.StageLearning,
		EaseFactor:    2.5,
		DueAt:         dueAt,
		Streak:        streak,
		TotalReviews:  total,
		OnTimeReviews: onTime,
	}
}

func gradedAt(studentID uuid.UUID, when time.Time) *domain.Attempt {
	score := 1.0
	return &domain.Attempt{
		ID:         uuid.New(),
		StudentID:  studentID,
		ActivityID: uuid.New(),
		Status:     domain.AttemptStatusGraded,
		Score:      &score,
		GradedAt:   &when,
	}
}

func TestHealth_NoReviewHistory(t *testing.T) {
	t.Parallel()

	svc := newAnalyticsService(nil, nil, nil, nil)

	_, err := svc.Health(context.Background(), uuid.New(), time.Now().UTC())
	assert.ErrorIs(t, err, ErrNoData)
}

func TestHealth_PerfectHygiene(t *testing.T) {
	t.Parallel()

	studentID := uuid.New()
	asOf := time.Now().UTC()
	future := asOf.Add(48 * time.Hour)

	states := &stubReviewStateStore{states: map[uuid.UUID][]*domain.ReviewState{
		studentID: {
			reviewState(studentID, future, 4, 4, 5),
			reviewState(studentID, future, 6, 6, 7),
		},
	}}
	svc := newAnalyticsService(states, nil, nil, nil)

	report, err := svc.Health(context.Background(), studentID, asOf)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, report.Score, 1e-9)
	assert.Equal(t, 1.0, report.OnTimeRatio)
	assert.Equal(t, 0.0, report.OverdueRatio)
	assert.Equal(t, 1.0, report.StreakFactor)
	assert.Equal(t, 2, report.TotalStates)
}

func TestHealth_MixedHygiene(t *testing.T) {
	t.Parallel()

	studentID := uuid.New()
	asOf := time.Now().UTC()

	// One healthy item and one overdue, half of all reviews on time, and an
	// average streak at half the target.
	states := &stubReviewStateStore{states: map[uuid.UUID][]*domain.ReviewState{
		studentID: {
			reviewState(studentID, asOf.Add(24*time.Hour), 2, 1, 5),
			reviewState(studentID, asOf.Add(-24*time.Hour), 2, 1, 0),
		},
	}}
	svc := newAnalyticsService(states, nil, nil, nil)

	report, err := svc.Health(context.Background(), studentID, asOf)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, report.OnTimeRatio, 1e-9)
	assert.InDelta(t, 0.5, report.OverdueRatio, 1e-9)
	assert.InDelta(t, 0.5, report.StreakFactor, 1e-9)
	assert.InDelta(t, 0.5, report.Score, 1e-9)
}

func TestHealth_NoGradedReviewsYet(t *testing.T) {
	t.Parallel()

	studentID := uuid.New()
	asOf := time.Now().UTC()

	// First exposure, nothing graded: nothing can have been late yet, so
	// the on-time term does not drag health down.
	states := &stubReviewStateStore{states: map[uuid.UUID][]*domain.ReviewState{
		studentID: {reviewState(studentID, asOf.Add(-time.Hour), 0, 0, 0)},
	}}
	svc := newAnalyticsService(states, nil, nil, nil)

	report, err := svc.Health(context.Background(), studentID, asOf)
	require.NoError(t, err)

	assert.Equal(t, 1.0, report.OnTimeRatio)
	assert.InDelta(t, 0.4, report.Score, 1e-9)
}

func TestVelocity_NoReviewHistory(t *testing.T) {
	t.Parallel()

	svc := newAnalyticsService(nil, nil, nil, nil)

	_, err := svc.Velocity(context.Background(), uuid.New(), time.Now().UTC())
	assert.ErrorIs(t, err, ErrNoData)
}

func TestVelocity_HistoryButNoRecentWorkIsZero(t *testing.T) {
	t.Parallel()

	studentID := uuid.New()
	asOf := time.Now().UTC()

	states := &stubReviewStateStore{states: map[uuid.UUID][]*domain.ReviewState{
		studentID: {reviewState(studentID, asOf, 3, 3, 1)},
	}}
	svc := newAnalyticsService(states, nil, nil, nil)

	report, err := svc.Velocity(context.Background(), studentID, asOf)
	require.NoError(t, err)
	assert.Equal(t, 0.0, report.PerDay)
	assert.Equal(t, DefaultVelocityWindowDays, report.WindowDays)
}

func TestVelocity_UniformDailyWork(t *testing.T) {
	t.Parallel()

	studentID := uuid.New()
	asOf := time.Now().UTC()

	states := &stubReviewStateStore{states: map[uuid.UUID][]*domain.ReviewState{
		studentID: {reviewState(studentID, asOf, 1, 1, 1)},
	}}

	// Exactly one graded attempt per day across the whole window: the
	// weighted daily mean is exactly one per day regardless of half-life.
	var attempts []*domain.Attempt
	for day := 0; day < DefaultVelocityWindowDays; day++ {
		when := asOf.Add(-time.Duration(day)*24*time.Hour - 12*time.Hour)
		attempts = append(attempts, gradedAt(studentID, when))
	}
	attemptStore := &stubAttemptStore{graded: map[uuid.UUID][]*domain.Attempt{studentID: attempts}}
	svc := newAnalyticsService(states, attemptStore, nil, nil)

	report, err := svc.Velocity(context.Background(), studentID, asOf)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, report.PerDay, 1e-9)
}

func TestVelocity_RecentWorkWeighsMore(t *testing.T) {
	t.Parallel()

	studentID := uuid.New()
	asOf := time.Now().UTC()

	states := &stubReviewStateStore{states: map[uuid.UUID][]*domain.ReviewState{
		studentID: {reviewState(studentID, asOf, 1, 1, 1)},
	}}

	recentOnly := &stubAttemptStore{graded: map[uuid.UUID][]*domain.Attempt{
		studentID: {
			gradedAt(studentID, asOf.Add(-6*time.Hour)),
			gradedAt(studentID, asOf.Add(-8*time.Hour)),
		},
	}}
	oldOnly := &stubAttemptStore{graded: map[uuid.UUID][]*domain.Attempt{
		studentID: {
			gradedAt(studentID, asOf.Add(-13*24*time.Hour)),
			gradedAt(studentID, asOf.Add(-13*24*time.Hour-time.Hour)),
		},
	}}

	recentReport, err := newAnalyticsService(states, recentOnly, nil, nil).
		Velocity(context.Background(), studentID, asOf)
	require.NoError(t, err)

	oldReport, err := newAnalyticsService(states, oldOnly, nil, nil).
		Velocity(context.Background(), studentID, asOf)
	require.NoError(t, err)

	assert.Greater(t, recentReport.PerDay, oldReport.PerDay)
}

func TestClassroomRollup_ExcludesStudentsWithoutHistory(t *testing.T) {
	t.Parallel()

	teacherID := uuid.New()
	classroom, classrooms := ownedClassroom(t, teacherID)
	active := uuid.New()
	quiet := uuid.New()
	asOf := time.Now().UTC()

	states := &stubReviewStateStore{states: map[uuid.UUID][]*domain.ReviewState{
		active: {reviewState(active, asOf.Add(24*time.Hour), 4, 4, 5)},
	}}
	enrollments := &stubEnrollmentStore{roster: map[uuid.UUID][]uuid.UUID{
		classroom.ID: {active, quiet},
	}}
	svc := newAnalyticsService(states, nil, enrollments, classrooms)

	rollup, err := svc.ClassroomRollup(context.Background(), teacherID, classroom.ID, asOf)
	require.NoError(t, err)

	assert.Equal(t, 2, rollup.StudentCount)
	assert.Equal(t, 1, rollup.ExcludedCount)
	assert.InDelta(t, 1.0, rollup.MeanHealth, 1e-9)
	assert.Equal(t, 0.0, rollup.MeanVelocity)
}

func TestClassroomRollup_EmptyRoster(t *testing.T) {
	t.Parallel()

	teacherID := uuid.New()
	classroom, classrooms := ownedClassroom(t, teacherID)
	svc := newAnalyticsService(nil, nil, nil, classrooms)

	rollup, err := svc.ClassroomRollup(context.Background(), teacherID, classroom.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 0, rollup.StudentCount)
	assert.Equal(t, 0.0, rollup.MeanHealth)
}

func TestClassroomRollup_UnknownClassroom(t *testing.T) {
	t.Parallel()

	svc := newAnalyticsService(nil, nil, nil, nil)

	_, err := svc.ClassroomRollup(context.Background(), uuid.New(), uuid.New(), time.Now().UTC())
	assert.ErrorIs(t, err, store.ErrClassroomNotFound)
}

func TestClassroomRollup_RequiresClassroomOwnership(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	classroom, classrooms := ownedClassroom(t, owner)

	student := uuid.New()
	states := &stubReviewStateStore{states: map[uuid.UUID][]*domain.ReviewState{
		student: {reviewState(student, time.Now().UTC(), 2, 2, 1)},
	}}
	enrollments := &stubEnrollmentStore{roster: map[uuid.UUID][]uuid.UUID{
		classroom.ID: {student},
	}}
	svc := newAnalyticsService(states, nil, enrollments, classrooms)

	// Another teacher knows the classroom ID but does not own it.
	_, err := svc.ClassroomRollup(context.Background(), uuid.New(), classroom.ID, time.Now().UTC())
	assert.ErrorIs(t, err, ErrNotClassroomOwner)

	// The owner still gets the rollup.
	rollup, err := svc.ClassroomRollup(context.Background(), owner, classroom.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, rollup.StudentCount)
}
