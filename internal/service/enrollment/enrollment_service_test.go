package enrollment

import (
	"context"
	"database/sql"
	"strings"
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

type stubStudentStore struct {
	store.StudentStore
	students map[uuid.UUID]*domain.Student
}

func (s *stubStudentStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Student, error) {
	student, ok := s.students[id]
	if !ok {
		return nil, store.ErrStudentNotFound
	}
	return student, nil
}

type stubClassroomStore struct {
	store.ClassroomStore
	classrooms map[uuid.UUID]*domain.Classroom

	// codeCollisions makes UpdateCode fail this many times before
	// succeeding, to exercise the regeneration retry loop.
	codeCollisions int
	updateCalls    int
}

func (s *stubClassroomStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Classroom, error) {
	classroom, ok := s.classrooms[id]
	if !ok {
		return nil, store.ErrClassroomNotFound
	}
	return classroom, nil
}

func (s *stubClassroomStore) GetByCode(_ context.Context, schoolID uuid.UUID, code string) (*domain.Classroom, error) {
	for _, classroom := range s.classrooms {
		if classroom.SchoolID == schoolID && classroom.EnrollmentCode == code {
			return classroom, nil
		}
	}
	return nil, store.ErrClassroomNotFound
}

func (s *stubClassroomStore) UpdateCode(_ context.Context, classroomID uuid.UUID, code string) error {
	s.updateCalls++
	if s.updateCalls <= s.codeCollisions {
		return store.ErrCodeExists
	}
	classroom, ok := s.classrooms[classroomID]
	if !ok {
		return store.ErrClassroomNotFound
	}
	classroom.EnrollmentCode = code
	return nil
}

func (s *stubClassroomStore) WithTx(_ *sql.Tx) store.ClassroomStore { return s }

type stubEnrollmentStore struct {
	store.EnrollmentStore
	active map[string]*domain.Enrollment
}

func enrollKey(studentID, classroomID uuid.UUID) string {
	return studentID.String() + "/" + classroomID.String()
}

func (s *stubEnrollmentStore) Create(_ context.Context, enrollment *domain.Enrollment) error {
	key := enrollKey(enrollment.StudentID, enrollment.ClassroomID)
	if existing, ok := s.active[key]; ok && existing.Active {
		return store.ErrEnrollmentExists
	}
	s.active[key] = enrollment
	return nil
}

func (s *stubEnrollmentStore) GetActive(_ context.Context, studentID, classroomID uuid.UUID) (*domain.Enrollment, error) {
	enrollment, ok := s.active[enrollKey(studentID, classroomID)]
	if !ok || !enrollment.Active {
		return nil, store.ErrEnrollmentNotFound
	}
	c := *enrollment
	return &c, nil
}

func (s *stubEnrollmentStore) Update(_ context.Context, enrollment *domain.Enrollment) error {
	key := enrollKey(enrollment.StudentID, enrollment.ClassroomID)
	if _, ok := s.active[key]; !ok {
		return store.ErrEnrollmentNotFound
	}
	c := *enrollment
	s.active[key] = &c
	return nil
}

func (s *stubEnrollmentStore) WithTx(_ *sql.Tx) store.EnrollmentStore { return s }

type enrollmentFixture struct {
	svc         *Service
	student     *domain.Student
	teacherID   uuid.UUID
	classroom   *domain.Classroom
	classrooms  *stubClassroomStore
	enrollments *stubEnrollmentStore
}

func newEnrollmentFixture(t *testing.T) *enrollmentFixture {
	t.Helper()

	schoolID := uuid.New()
	teacherID := uuid.New()

	student, err := domain.NewStudent(uuid.New(), schoolID)
	require.NoError(t, err)

	classroom, err := domain.NewClassroom(teacherID, schoolID, "Year 9 English")
	require.NoError(t, err)

	students := &stubStudentStore{students: map[uuid.UUID]*domain.Student{student.ID: student}}
	classrooms := &stubClassroomStore{classrooms: map[uuid.UUID]*domain.Classroom{classroom.ID: classroom}}
	enrollments := &stubEnrollmentStore{active: make(map[string]*domain.Enrollment)}

	return &enrollmentFixture{
		svc:         NewService(students, classrooms, enrollments, nil),
		student:     student,
		teacherID:   teacherID,
		classroom:   classroom,
		classrooms:  classrooms,
		enrollments: enrollments,
	}
}

func TestEnroll_Succeeds(t *testing.T) {
	t.Parallel()

	f := newEnrollmentFixture(t)

	enrollment, err := f.svc.Enroll(context.Background(), f.student.ID, f.classroom.EnrollmentCode)
	require.NoError(t, err)

	assert.Equal(t, f.student.ID, enrollment.StudentID)
	assert.Equal(t, f.classroom.ID, enrollment.ClassroomID)
	assert.True(t, enrollment.Active)
}

func TestEnroll_UnknownCode(t *testing.T) {
	t.Parallel()

	f := newEnrollmentFixture(t)

	_, err := f.svc.Enroll(context.Background(), f.student.ID, "XXXXXXXX")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestEnroll_CodeScopedToSchool(t *testing.T) {
	t.Parallel()

	f := newEnrollmentFixture(t)

	// A classroom in another school with an identical code must not match.
	other, err := domain.NewClassroom(uuid.New(), uuid.New(), "Other School Class")
	require.NoError(t, err)
	other.EnrollmentCode = f.classroom.EnrollmentCode
	delete(f.classrooms.classrooms, f.classroom.ID)
	f.classrooms.classrooms[other.ID] = other

	_, err = f.svc.Enroll(context.Background(), f.student.ID, f.classroom.EnrollmentCode)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestEnroll_AlreadyEnrolled(t *testing.T) {
	t.Parallel()

	f := newEnrollmentFixture(t)
	ctx := context.Background()

	_, err := f.svc.Enroll(ctx, f.student.ID, f.classroom.EnrollmentCode)
	require.NoError(t, err)

	_, err = f.svc.Enroll(ctx, f.student.ID, f.classroom.EnrollmentCode)
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)
}

func TestEnroll_UnknownStudent(t *testing.T) {
	t.Parallel()

	f := newEnrollmentFixture(t)

	_, err := f.svc.Enroll(context.Background(), uuid.New(), f.classroom.EnrollmentCode)
	assert.ErrorIs(t, err, store.ErrStudentNotFound)
}

func TestUnenroll_DeactivatesWithoutDeleting(t *testing.T) {
	t.Parallel()

	f := newEnrollmentFixture(t)
	ctx := context.Background()

	_, err := f.svc.Enroll(ctx, f.student.ID, f.classroom.EnrollmentCode)
	require.NoError(t, err)

	enrollment, err := f.svc.Unenroll(ctx, f.student.ID, f.classroom.ID)
	require.NoError(t, err)

	assert.False(t, enrollment.Active)
	require.NotNil(t, enrollment.UnenrolledAt)

	// The record survives deactivated; only re-enrollment is possible.
	stored := f.enrollments.active[enrollKey(f.student.ID, f.classroom.ID)]
	require.NotNil(t, stored)
	assert.False(t, stored.Active)
}

func TestUnenroll_NotEnrolled(t *testing.T) {
	t.Parallel()

	f := newEnrollmentFixture(t)

	_, err := f.svc.Unenroll(context.Background(), f.student.ID, f.classroom.ID)
	assert.ErrorIs(t, err, ErrNotEnrolled)
}

func TestUnenroll_ThenReenroll(t *testing.T) {
	t.Parallel()

	f := newEnrollmentFixture(t)
	ctx := context.Background()

	_, err := f.svc.Enroll(ctx, f.student.ID, f.classroom.EnrollmentCode)
	require.NoError(t, err)
	_, err = f.svc.Unenroll(ctx, f.student.ID, f.classroom.ID)
	require.NoError(t, err)

	enrollment, err := f.svc.Enroll(ctx, f.student.ID, f.classroom.EnrollmentCode)
	require.NoError(t, err)
	assert.True(t, enrollment.Active)
}

func TestGenerateCode_ReplacesCode(t *testing.T) {
	t.Parallel()

	f := newEnrollmentFixture(t)
	previous := f.classroom.EnrollmentCode

	code, err := f.svc.GenerateCode(context.Background(), f.teacherID, f.classroom.ID)
	require.NoError(t, err)

	assert.Len(t, code, 8)
	assert.NotEqual(t, previous, code)
	assert.Equal(t, code, f.classroom.EnrollmentCode)

	for _, r := range code {
		assert.True(t, strings.ContainsRune("ABCDEFGHJKMNPQRSTUVWXYZ23456789", r),
			"code %q contains ambiguous character %q", code, r)
	}
}

func TestGenerateCode_RetriesOnCollision(t *testing.T) {
	t.Parallel()

	f := newEnrollmentFixture(t)
	f.classrooms.codeCollisions = 2

	code, err := f.svc.GenerateCode(context.Background(), f.teacherID, f.classroom.ID)
	require.NoError(t, err)
	assert.Len(t, code, 8)
	assert.Equal(t, 3, f.classrooms.updateCalls)
}

func TestGenerateCode_GivesUpAfterRepeatedCollisions(t *testing.T) {
	t.Parallel()

	f := newEnrollmentFixture(t)
	f.classrooms.codeCollisions = codeGenerationAttempts + 1

	_, err := f.svc.GenerateCode(context.Background(), f.teacherID, f.classroom.ID)
	assert.ErrorIs(t, err, store.ErrCodeExists)
}

func TestGenerateCode_RequiresOwnership(t *testing.T) {
	t.Parallel()

	f := newEnrollmentFixture(t)

	_, err := f.svc.GenerateCode(context.Background(), uuid.New(), f.classroom.ID)
	assert.ErrorIs(t, err, ErrNotClassroomOwner)
}

func TestDeactivateTimestampIsUTC(t *testing.T) {
	t.Parallel()

	f := newEnrollmentFixture(t)
	ctx := context.Background()

	_, err := f.svc.Enroll(ctx, f.student.ID, f.classroom.EnrollmentCode)
	require.NoError(t, err)

	before := time.Now().UTC()
	enrollment, err := f.svc.Unenroll(ctx, f.student.ID, f.classroom.ID)
	require.NoError(t, err)

	require.NotNil(t, enrollment.UnenrolledAt)
	assert.False(t, enrollment.UnenrolledAt.Before(before))
	assert.Equal(t, time.UTC, enrollment.UnenrolledAt.Location())
}
