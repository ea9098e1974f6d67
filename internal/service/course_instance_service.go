package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/course-registration-api/internal/dto"
	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/pkg/database"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

type courseInstanceRepository interface {
	List(ctx context.Context, filter models.CourseInstanceFilter) ([]models.CourseInstance, int, error)
	FindByID(ctx context.Context, id string) (*models.CourseInstance, error)
	Create(ctx context.Context, instance *models.CourseInstance) error
	Update(ctx context.Context, instance *models.CourseInstance) error
	Delete(ctx context.Context, id string) error
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// CourseInstanceService manages scheduled offerings of courses.
type CourseInstanceService struct {
	repo      courseInstanceRepository
	courses   courseReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseInstanceService constructs CourseInstanceService.
func NewCourseInstanceService(repo courseInstanceRepository, courses courseReader, validate *validator.Validate, logger *zap.Logger) *CourseInstanceService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseInstanceService{repo: repo, courses: courses, validator: validate, logger: logger}
}

// List returns course instances, optionally restricted to one course.
func (s *CourseInstanceService) List(ctx context.Context, filter models.CourseInstanceFilter) ([]models.CourseInstance, *models.Pagination, error) {
	if filter.CourseID != "" && !isUUID(filter.CourseID) {
		return []models.CourseInstance{}, paginate(filter.Page, filter.PageSize, 0), nil
	}
	instances, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list course instances")
	}
	return instances, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a course instance by ID.
func (s *CourseInstanceService) Get(ctx context.Context, id string) (*models.CourseInstance, error) {
	instance, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course instance not found")
		}
		return nil, internalError(err, "failed to load course instance")
	}
	return instance, nil
}

// Create schedules a new instance of an existing course.
func (s *CourseInstanceService) Create(ctx context.Context, req dto.CourseInstanceRequest) (*models.CourseInstance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid course instance payload")
	}
	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	if !isUUID(req.CourseID) {
		return nil, unknownCourse(req.CourseID)
	}
	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, unknownCourse(req.CourseID)
		}
		return nil, internalError(err, "failed to load course")
	}

	instance, err := models.NewCourseInstance(req.CourseID, start, end, req.Location, req.Capacity)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, instance); err != nil {
		if database.IsForeignKeyViolation(err, "") {
			return nil, unknownCourse(req.CourseID)
		}
		return nil, internalError(err, "failed to create course instance")
	}
	s.logger.Info("course instance created", zap.String("course_instance_id", instance.ID), zap.String("course_id", instance.CourseID), zap.Int("capacity", instance.Capacity))
	return instance, nil
}

// Update changes dates, location and capacity of an instance.
func (s *CourseInstanceService) Update(ctx context.Context, id string, req dto.UpdateCourseInstanceRequest) (*models.CourseInstance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid course instance payload")
	}
	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	instance, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := instance.Update(start, end, req.Location, req.Capacity); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, instance); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course instance not found")
		}
		return nil, internalError(err, "failed to update course instance")
	}
	return instance, nil
}

// Delete removes an instance together with its enrollments and assignments.
func (s *CourseInstanceService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "course instance not found")
		}
		return internalError(err, "failed to delete course instance")
	}
	return nil
}

func parseDateRange(rawStart, rawEnd string) (models.Date, models.Date, error) {
	start, err := models.ParseDate(rawStart)
	if err != nil {
		return models.Date{}, models.Date{}, appErrors.Validation("startDate", "startDate must use the YYYY-MM-DD format")
	}
	end, err := models.ParseDate(rawEnd)
	if err != nil {
		return models.Date{}, models.Date{}, appErrors.Validation("endDate", "endDate must use the YYYY-MM-DD format")
	}
	return start, end, nil
}

func unknownCourse(id string) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrUnknownCourse, "course "+id+" does not exist")
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
