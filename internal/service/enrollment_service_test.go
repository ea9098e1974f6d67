package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-registration-api/internal/dto"
	"github.com/noah-isme/course-registration-api/internal/messaging"
	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/internal/repository"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type admissionStoreMock struct {
	students    map[string]bool
	instances   map[string]*models.CourseInstance
	enrollments map[string]*models.Enrollment
	order       []string
	createErr   error
	// onCancel runs before MarkCancelled touches the store.
	onCancel func(id string)
}

func newAdmissionStoreMock() *admissionStoreMock {
	return &admissionStoreMock{
		students:    map[string]bool{},
		instances:   map[string]*models.CourseInstance{},
		enrollments: map[string]*models.Enrollment{},
	}
}

func (m *admissionStoreMock) addStudent() string {
	id := uuid.NewString()
	m.students[id] = true
	return id
}

func (m *admissionStoreMock) addInstance(capacity int) string {
	id := uuid.NewString()
	m.instances[id] = &models.CourseInstance{ID: id, CourseID: uuid.NewString(), Location: "Room 1", Capacity: capacity}
	return id
}

func (m *admissionStoreMock) ExistsWithTx(ctx context.Context, tx *sqlx.Tx, id string) (bool, error) {
	return m.students[id], nil
}

func (m *admissionStoreMock) LockForAdmission(ctx context.Context, tx *sqlx.Tx, id string) (*models.CourseInstance, error) {
	instance, ok := m.instances[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return instance, nil
}

func (m *admissionStoreMock) ExistsActiveWithTx(ctx context.Context, tx *sqlx.Tx, studentID, courseInstanceID string) (bool, error) {
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.CourseInstanceID == courseInstanceID && e.Status == models.EnrollmentStatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (m *admissionStoreMock) CountActiveWithTx(ctx context.Context, tx *sqlx.Tx, courseInstanceID string) (int, error) {
	count := 0
	for _, e := range m.enrollments {
		if e.CourseInstanceID == courseInstanceID && e.Status == models.EnrollmentStatusActive {
			count++
		}
	}
	return count, nil
}

func (m *admissionStoreMock) CreateWithTx(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error {
	if m.createErr != nil {
		return m.createErr
	}
	enrollment.ID = uuid.NewString()
	stored := *enrollment
	m.enrollments[enrollment.ID] = &stored
	m.order = append(m.order, enrollment.ID)
	return nil
}

func (m *admissionStoreMock) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	result := []models.Enrollment{}
	for _, id := range m.order {
		e := m.enrollments[id]
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseInstanceID != "" && e.CourseInstanceID != filter.CourseInstanceID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		result = append(result, *e)
	}
	return result, len(result), nil
}

func (m *admissionStoreMock) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	e, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *e
	return &copied, nil
}

func (m *admissionStoreMock) MarkCancelled(ctx context.Context, id string, cancelledAt time.Time) (bool, error) {
	if m.onCancel != nil {
		m.onCancel(id)
	}
	e, ok := m.enrollments[id]
	if !ok || e.Status != models.EnrollmentStatusActive {
		return false, nil
	}
	e.Status = models.EnrollmentStatusCancelled
	e.CancelledAt = &cancelledAt
	return true, nil
}

type publisherMock struct {
	subjects []string
	err      error
}

func (p *publisherMock) Publish(ctx context.Context, name string, event interface{}) error {
	p.subjects = append(p.subjects, name)
	return p.err
}

type enrollmentFixture struct {
	svc       *EnrollmentService
	store     *admissionStoreMock
	mock      sqlmock.Sqlmock
	metrics   *MetricsService
	publisher *publisherMock
}

func newEnrollmentFixture(t *testing.T) *enrollmentFixture {
	tx, mock := newTxProviderMock(t)
	store := newAdmissionStoreMock()
	metrics := NewMetricsService()
	publisher := &publisherMock{}
	svc := NewEnrollmentService(store, store, store, tx, publisher, metrics, nil, nil)
	return &enrollmentFixture{svc: svc, store: store, mock: mock, metrics: metrics, publisher: publisher}
}

func (f *enrollmentFixture) enroll(t *testing.T, studentID, courseInstanceID string, admitted bool) (*models.Enrollment, error) {
	t.Helper()
	f.mock.ExpectBegin()
	if admitted {
		f.mock.ExpectCommit()
	} else {
		f.mock.ExpectRollback()
	}
	return f.svc.Enroll(context.Background(), dto.EnrollRequest{StudentID: studentID, CourseInstanceID: courseInstanceID})
}

func assertCode(t *testing.T, expected *appErrors.Error, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, expected.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollAdmits(t *testing.T) {
	f := newEnrollmentFixture(t)
	studentID := f.store.addStudent()
	instanceID := f.store.addInstance(25)

	requestedAt := time.Now().UTC()
	enrollment, err := f.enroll(t, studentID, instanceID, true)
	require.NoError(t, err)

	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.False(t, enrollment.EnrolledAt.Before(requestedAt))
	assert.Equal(t, time.UTC, enrollment.EnrolledAt.Location())
	assert.Nil(t, enrollment.CancelledAt)
	assert.Equal(t, []string{messaging.SubjectEnrollmentCreated}, f.publisher.subjects)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.admissions.WithLabelValues(AdmissionOutcomeAdmitted)))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestEnrollmentServiceRejectsDuplicate(t *testing.T) {
	f := newEnrollmentFixture(t)
	studentID := f.store.addStudent()
	instanceID := f.store.addInstance(25)

	_, err := f.enroll(t, studentID, instanceID, true)
	require.NoError(t, err)

	_, err = f.enroll(t, studentID, instanceID, false)
	assertCode(t, appErrors.ErrDuplicateEnrollment, err)
	assert.Equal(t, 409, appErrors.FromError(err).Status)
	assert.Len(t, f.store.enrollments, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.admissions.WithLabelValues(AdmissionOutcomeDuplicate)))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestEnrollmentServiceCapacityBoundary(t *testing.T) {
	f := newEnrollmentFixture(t)
	const capacity = 3
	instanceID := f.store.addInstance(capacity)

	for i := 0; i < capacity; i++ {
		_, err := f.enroll(t, f.store.addStudent(), instanceID, true)
		require.NoError(t, err, "admission %d", i+1)
	}

	_, err := f.enroll(t, f.store.addStudent(), instanceID, false)
	assertCode(t, appErrors.ErrCapacityExceeded, err)
	assert.Equal(t, 409, appErrors.FromError(err).Status)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestEnrollmentServiceCancelFreesExactlyOneSeat(t *testing.T) {
	f := newEnrollmentFixture(t)
	instanceID := f.store.addInstance(2)

	first, err := f.enroll(t, f.store.addStudent(), instanceID, true)
	require.NoError(t, err)
	_, err = f.enroll(t, f.store.addStudent(), instanceID, true)
	require.NoError(t, err)
	_, err = f.enroll(t, f.store.addStudent(), instanceID, false)
	assertCode(t, appErrors.ErrCapacityExceeded, err)

	require.NoError(t, f.svc.Cancel(context.Background(), first.ID))

	_, err = f.enroll(t, f.store.addStudent(), instanceID, true)
	require.NoError(t, err)
	_, err = f.enroll(t, f.store.addStudent(), instanceID, false)
	assertCode(t, appErrors.ErrCapacityExceeded, err)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestEnrollmentServiceCancelledEnrollmentAllowsReenrollment(t *testing.T) {
	f := newEnrollmentFixture(t)
	studentID := f.store.addStudent()
	instanceID := f.store.addInstance(1)

	first, err := f.enroll(t, studentID, instanceID, true)
	require.NoError(t, err)
	require.NoError(t, f.svc.Cancel(context.Background(), first.ID))

	second, err := f.enroll(t, studentID, instanceID, true)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestEnrollmentServiceCheckOrder(t *testing.T) {
	f := newEnrollmentFixture(t)
	studentID := f.store.addStudent()
	fullInstance := f.store.addInstance(1)
	_, err := f.enroll(t, studentID, fullInstance, true)
	require.NoError(t, err)

	_, err = f.enroll(t, uuid.NewString(), uuid.NewString(), false)
	assertCode(t, appErrors.ErrUnknownStudent, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)

	_, err = f.enroll(t, studentID, uuid.NewString(), false)
	assertCode(t, appErrors.ErrUnknownCourseInstance, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)

	// duplicate is reported before capacity on a full instance
	_, err = f.enroll(t, studentID, fullInstance, false)
	assertCode(t, appErrors.ErrDuplicateEnrollment, err)

	_, err = f.enroll(t, f.store.addStudent(), fullInstance, false)
	assertCode(t, appErrors.ErrCapacityExceeded, err)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestEnrollmentServiceMalformedIDs(t *testing.T) {
	f := newEnrollmentFixture(t)
	studentID := f.store.addStudent()

	_, err := f.svc.Enroll(context.Background(), dto.EnrollRequest{StudentID: "not-a-uuid", CourseInstanceID: "also-not"})
	assertCode(t, appErrors.ErrUnknownStudent, err)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.svc.Enroll(context.Background(), dto.EnrollRequest{StudentID: studentID, CourseInstanceID: "also-not"})
	assertCode(t, appErrors.ErrUnknownCourseInstance, err)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestEnrollmentServiceValidation(t *testing.T) {
	f := newEnrollmentFixture(t)

	_, err := f.svc.Enroll(context.Background(), dto.EnrollRequest{CourseInstanceID: uuid.NewString()})
	assertCode(t, appErrors.ErrValidation, err)
	assert.Equal(t, "studentId", appErrors.FromError(err).Field)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestEnrollmentServiceMapsConstraintViolations(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		expected *appErrors.Error
	}{
		{name: "active index", err: &pq.Error{Code: "23505", Constraint: repository.ActiveEnrollmentConstraint}, expected: appErrors.ErrDuplicateEnrollment},
		{name: "student fk", err: &pq.Error{Code: "23503", Constraint: repository.EnrollmentStudentFKey}, expected: appErrors.ErrUnknownStudent},
		{name: "other failure", err: fmt.Errorf("connection reset"), expected: appErrors.ErrInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newEnrollmentFixture(t)
			f.store.createErr = fmt.Errorf("create enrollment: %w", tc.err)

			_, err := f.enroll(t, f.store.addStudent(), f.store.addInstance(5), false)
			assertCode(t, tc.expected, err)
			assert.Empty(t, f.publisher.subjects)
			assert.NoError(t, f.mock.ExpectationsWereMet())
		})
	}
}

func TestEnrollmentServiceCancel(t *testing.T) {
	f := newEnrollmentFixture(t)
	enrollment, err := f.enroll(t, f.store.addStudent(), f.store.addInstance(5), true)
	require.NoError(t, err)

	require.NoError(t, f.svc.Cancel(context.Background(), enrollment.ID))
	cancelled, err := f.svc.Get(context.Background(), enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	firstCancel := *cancelled.CancelledAt

	// cancelling twice is a no-op
	require.NoError(t, f.svc.Cancel(context.Background(), enrollment.ID))
	again, err := f.svc.Get(context.Background(), enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, firstCancel, *again.CancelledAt)
	assert.Equal(t, enrollment.EnrolledAt, again.EnrolledAt)

	assert.Equal(t, []string{messaging.SubjectEnrollmentCreated, messaging.SubjectEnrollmentCancelled}, f.publisher.subjects)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.cancellations))

	err = f.svc.Cancel(context.Background(), uuid.NewString())
	assertCode(t, appErrors.ErrNotFound, err)
}

func TestEnrollmentServiceCancelLosesRace(t *testing.T) {
	f := newEnrollmentFixture(t)
	enrollment, err := f.enroll(t, f.store.addStudent(), f.store.addInstance(5), true)
	require.NoError(t, err)

	otherCancel := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	f.store.onCancel = func(id string) {
		e := f.store.enrollments[id]
		e.Status = models.EnrollmentStatusCancelled
		e.CancelledAt = &otherCancel
	}

	require.NoError(t, f.svc.Cancel(context.Background(), enrollment.ID))
	stored, err := f.svc.Get(context.Background(), enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, otherCancel, *stored.CancelledAt)
	assert.Equal(t, []string{messaging.SubjectEnrollmentCreated}, f.publisher.subjects)
	assert.Equal(t, float64(0), testutil.ToFloat64(f.metrics.cancellations))
}

func TestEnrollmentServiceCancelRowRemovedMidway(t *testing.T) {
	f := newEnrollmentFixture(t)
	enrollment, err := f.enroll(t, f.store.addStudent(), f.store.addInstance(5), true)
	require.NoError(t, err)

	f.store.onCancel = func(id string) { delete(f.store.enrollments, id) }

	err = f.svc.Cancel(context.Background(), enrollment.ID)
	assertCode(t, appErrors.ErrNotFound, err)
	assert.Equal(t, []string{messaging.SubjectEnrollmentCreated}, f.publisher.subjects)
	assert.Equal(t, float64(0), testutil.ToFloat64(f.metrics.cancellations))
}

func TestEnrollmentServicePublishFailureIsNotSurfaced(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.publisher.err = fmt.Errorf("nats unavailable")

	_, err := f.enroll(t, f.store.addStudent(), f.store.addInstance(5), true)
	assert.NoError(t, err)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestEnrollmentServiceList(t *testing.T) {
	f := newEnrollmentFixture(t)
	studentID := f.store.addStudent()
	instanceID := f.store.addInstance(25)
	_, err := f.enroll(t, studentID, instanceID, true)
	require.NoError(t, err)
	_, err = f.enroll(t, f.store.addStudent(), instanceID, true)
	require.NoError(t, err)

	enrollments, pagination, err := f.svc.List(context.Background(), models.EnrollmentFilter{StudentID: studentID, CourseInstanceID: instanceID})
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, studentID, enrollments[0].StudentID)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 20, pagination.PageSize)

	_, _, err = f.svc.List(context.Background(), models.EnrollmentFilter{Status: "PENDING"})
	assertCode(t, appErrors.ErrValidation, err)
}
