package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-registration-api/internal/dto"
	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/internal/repository"
	"github.com/noah-isme/course-registration-api/pkg/database"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

type courseInstanceTeacherRepository interface {
	ListByCourseInstance(ctx context.Context, courseInstanceID string) ([]models.AssignedTeacher, error)
	Assign(ctx context.Context, assignment *models.CourseInstanceTeacher) error
	Unassign(ctx context.Context, courseInstanceID, teacherID string) error
}

type courseInstanceReader interface {
	FindByID(ctx context.Context, id string) (*models.CourseInstance, error)
}

type teacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// CourseInstanceTeacherService assigns teachers to course instances.
type CourseInstanceTeacherService struct {
	repo      courseInstanceTeacherRepository
	instances courseInstanceReader
	teachers  teacherReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseInstanceTeacherService constructs CourseInstanceTeacherService.
func NewCourseInstanceTeacherService(repo courseInstanceTeacherRepository, instances courseInstanceReader, teachers teacherReader, validate *validator.Validate, logger *zap.Logger) *CourseInstanceTeacherService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseInstanceTeacherService{repo: repo, instances: instances, teachers: teachers, validator: validate, logger: logger}
}

// List returns the teachers assigned to a course instance.
func (s *CourseInstanceTeacherService) List(ctx context.Context, courseInstanceID string) ([]models.AssignedTeacher, error) {
	if err := s.ensureInstance(ctx, courseInstanceID); err != nil {
		return nil, err
	}
	teachers, err := s.repo.ListByCourseInstance(ctx, courseInstanceID)
	if err != nil {
		return nil, internalError(err, "failed to list course instance teachers")
	}
	return teachers, nil
}

// Assign links a teacher to a course instance.
func (s *CourseInstanceTeacherService) Assign(ctx context.Context, courseInstanceID string, req dto.AssignTeacherRequest) (*models.CourseInstanceTeacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid teacher assignment payload")
	}
	if err := s.ensureInstance(ctx, courseInstanceID); err != nil {
		return nil, err
	}
	if !isUUID(req.TeacherID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	if _, err := s.teachers.FindByID(ctx, req.TeacherID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, internalError(err, "failed to load teacher")
	}

	assignment := &models.CourseInstanceTeacher{CourseInstanceID: courseInstanceID, TeacherID: req.TeacherID}
	if err := s.repo.Assign(ctx, assignment); err != nil {
		if database.IsUniqueViolation(err, repository.CourseInstanceTeacherConstraint) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "teacher already assigned to course instance")
		}
		return nil, internalError(err, "failed to assign teacher")
	}
	return assignment, nil
}

// Unassign removes a teacher from a course instance.
func (s *CourseInstanceTeacherService) Unassign(ctx context.Context, courseInstanceID, teacherID string) error {
	if !isUUID(teacherID) {
		return appErrors.Clone(appErrors.ErrNotFound, "teacher assignment not found")
	}
	if err := s.repo.Unassign(ctx, courseInstanceID, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher assignment not found")
		}
		return internalError(err, "failed to unassign teacher")
	}
	return nil
}

func (s *CourseInstanceTeacherService) ensureInstance(ctx context.Context, id string) error {
	if _, err := s.instances.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "course instance not found")
		}
		return internalError(err, "failed to load course instance")
	}
	return nil
}
