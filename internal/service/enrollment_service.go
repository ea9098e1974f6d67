package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/course-registration-api/internal/dto"
	"github.com/noah-isme/course-registration-api/internal/messaging"
	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/internal/repository"
	"github.com/noah-isme/course-registration-api/pkg/database"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ExistsActiveWithTx(ctx context.Context, tx *sqlx.Tx, studentID, courseInstanceID string) (bool, error)
	CountActiveWithTx(ctx context.Context, tx *sqlx.Tx, courseInstanceID string) (int, error)
	CreateWithTx(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error
	MarkCancelled(ctx context.Context, id string, cancelledAt time.Time) (bool, error)
}

type admissionStudentChecker interface {
	ExistsWithTx(ctx context.Context, tx *sqlx.Tx, id string) (bool, error)
}

type admissionInstanceLocker interface {
	LockForAdmission(ctx context.Context, tx *sqlx.Tx, id string) (*models.CourseInstance, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, name string, event interface{}) error
}

// EnrollmentService admits students to course instances and cancels
// enrollments.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  admissionStudentChecker
	instances admissionInstanceLocker
	tx        txProvider
	events    eventPublisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs EnrollmentService. events and metrics may be nil.
func NewEnrollmentService(
	repo enrollmentRepository,
	students admissionStudentChecker,
	instances admissionInstanceLocker,
	tx txProvider,
	events eventPublisher,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *EnrollmentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      repo,
		students:  students,
		instances: instances,
		tx:        tx,
		events:    events,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Validation("status", "status must be ACTIVE or CANCELLED")
	}
	if (filter.StudentID != "" && !isUUID(filter.StudentID)) || (filter.CourseInstanceID != "" && !isUUID(filter.CourseInstanceID)) {
		return []models.Enrollment{}, paginate(filter.Page, filter.PageSize, 0), nil
	}
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list enrollments")
	}
	return enrollments, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a single enrollment.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, internalError(err, "failed to load enrollment")
	}
	return enrollment, nil
}

// Enroll runs the admission check and persists a new ACTIVE enrollment. The
// checks run in one transaction that holds a row lock on the course instance,
// so concurrent requests for the same instance are decided one at a time.
func (s *EnrollmentService) Enroll(ctx context.Context, req dto.EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid enrollment payload")
	}

	enrollment, err := s.admit(ctx, req)
	s.metrics.RecordAdmission(admissionOutcome(err))
	if err != nil {
		appErr := appErrors.FromError(err)
		if appErr.Status >= 500 {
			s.logger.Error("enrollment admission failed", zap.String("student_id", req.StudentID), zap.String("course_instance_id", req.CourseInstanceID), zap.Error(err))
		} else {
			s.logger.Info("enrollment rejected", zap.String("student_id", req.StudentID), zap.String("course_instance_id", req.CourseInstanceID), zap.String("reason", appErr.Code))
		}
		return nil, err
	}

	s.logger.Info("enrollment admitted",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", enrollment.StudentID),
		zap.String("course_instance_id", enrollment.CourseInstanceID),
	)
	s.publish(ctx, messaging.SubjectEnrollmentCreated, enrollment)
	return enrollment, nil
}

func (s *EnrollmentService) admit(ctx context.Context, req dto.EnrollRequest) (enrollment *models.Enrollment, err error) {
	if !isUUID(req.StudentID) {
		return nil, unknownStudent(req.StudentID)
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internalError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	exists, err := s.students.ExistsWithTx(ctx, tx, req.StudentID)
	if err != nil {
		return nil, internalError(err, "failed to load student")
	}
	if !exists {
		return nil, unknownStudent(req.StudentID)
	}

	if !isUUID(req.CourseInstanceID) {
		return nil, unknownCourseInstance(req.CourseInstanceID)
	}
	instance, err := s.instances.LockForAdmission(ctx, tx, req.CourseInstanceID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, unknownCourseInstance(req.CourseInstanceID)
		}
		return nil, internalError(err, "failed to load course instance")
	}

	active, err := s.repo.ExistsActiveWithTx(ctx, tx, req.StudentID, req.CourseInstanceID)
	if err != nil {
		return nil, internalError(err, "failed to check existing enrollment")
	}
	if active {
		return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
	}

	taken, err := s.repo.CountActiveWithTx(ctx, tx, req.CourseInstanceID)
	if err != nil {
		return nil, internalError(err, "failed to count enrollments")
	}
	if taken >= instance.Capacity {
		return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, "")
	}

	enrollment = models.NewEnrollment(req.StudentID, req.CourseInstanceID, s.now())
	if err = s.repo.CreateWithTx(ctx, tx, enrollment); err != nil {
		switch {
		case database.IsUniqueViolation(err, repository.ActiveEnrollmentConstraint):
			return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
		case database.IsForeignKeyViolation(err, repository.EnrollmentStudentFKey):
			return nil, unknownStudent(req.StudentID)
		}
		return nil, internalError(err, "failed to create enrollment")
	}

	if err = tx.Commit(); err != nil {
		return nil, internalError(err, "failed to commit enrollment")
	}
	return enrollment, nil
}

// Cancel moves an ACTIVE enrollment to CANCELLED and frees its seat.
// Cancelling an already cancelled enrollment succeeds without changes.
func (s *EnrollmentService) Cancel(ctx context.Context, id string) error {
	enrollment, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !enrollment.Cancel(s.now()) {
		s.logger.Debug("enrollment already cancelled", zap.String("enrollment_id", id))
		return nil
	}
	changed, err := s.repo.MarkCancelled(ctx, id, *enrollment.CancelledAt)
	if err != nil {
		return internalError(err, "failed to cancel enrollment")
	}
	if !changed {
		// another request cancelled or removed the row after it was read
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		s.logger.Debug("enrollment already cancelled", zap.String("enrollment_id", id))
		return nil
	}
	s.metrics.RecordCancellation()
	s.logger.Info("enrollment cancelled", zap.String("enrollment_id", id))
	s.publish(ctx, messaging.SubjectEnrollmentCancelled, enrollment)
	return nil
}

func (s *EnrollmentService) publish(ctx context.Context, subject string, enrollment *models.Enrollment) {
	if s.events == nil {
		return
	}
	event := messaging.EnrollmentEvent{
		EnrollmentID:     enrollment.ID,
		StudentID:        enrollment.StudentID,
		CourseInstanceID: enrollment.CourseInstanceID,
		Status:           string(enrollment.Status),
		EnrolledAt:       enrollment.EnrolledAt,
		CancelledAt:      enrollment.CancelledAt,
		OccurredAt:       s.now(),
	}
	if err := s.events.Publish(ctx, subject, event); err != nil {
		s.logger.Warn("failed to publish enrollment event", zap.String("subject", subject), zap.String("enrollment_id", enrollment.ID), zap.Error(err))
	}
}

func unknownStudent(id string) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrUnknownStudent, "student "+id+" does not exist")
}

func unknownCourseInstance(id string) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrUnknownCourseInstance, "course instance "+id+" does not exist")
}

func admissionOutcome(err error) string {
	if err == nil {
		return AdmissionOutcomeAdmitted
	}
	switch appErrors.FromError(err).Code {
	case appErrors.ErrUnknownStudent.Code, appErrors.ErrUnknownCourseInstance.Code:
		return AdmissionOutcomeUnknown
	case appErrors.ErrDuplicateEnrollment.Code:
		return AdmissionOutcomeDuplicate
	case appErrors.ErrCapacityExceeded.Code:
		return AdmissionOutcomeCapacity
	}
	return AdmissionOutcomeInternalError
}
