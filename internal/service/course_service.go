package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-registration-api/internal/dto"
	"github.com/noah-isme/course-registration-api/internal/models"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

const courseCachePattern = "courses:*"

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
}

// CourseService manages the course catalog. Reads go through the optional
// catalog cache.
type CourseService struct {
	repo      courseRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

type courseListPage struct {
	Courses []models.Course    `json:"courses"`
	Page    *models.Pagination `json:"pagination"`
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns courses with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	key := fmt.Sprintf("courses:list:%s:%d:%d", strings.ToLower(filter.Search), filter.Page, filter.PageSize)
	page, err := readThrough(ctx, s.cache, key, func() (courseListPage, error) {
		courses, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return courseListPage{}, internalError(err, "failed to list courses")
		}
		return courseListPage{Courses: courses, Page: paginate(filter.Page, filter.PageSize, total)}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return page.Courses, page.Page, nil
}

// Get returns a course by ID.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	return readThrough(ctx, s.cache, "courses:item:"+id, func() (*models.Course, error) {
		course, err := s.repo.FindByID(ctx, id)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
			}
			return nil, internalError(err, "failed to load course")
		}
		return course, nil
	})
}

// Create validates and stores a course.
func (s *CourseService) Create(ctx context.Context, req dto.CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid course payload")
	}
	course, err := models.NewCourse(req.Title, req.Description)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, internalError(err, "failed to create course")
	}
	s.invalidate(ctx)
	s.logger.Info("course created", zap.String("course_id", course.ID))
	return course, nil
}

// Update changes the title and description of a course.
func (s *CourseService) Update(ctx context.Context, id string, req dto.CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid course payload")
	}
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, internalError(err, "failed to load course")
	}
	if err := course.SetTitle(req.Title); err != nil {
		return nil, err
	}
	course.SetDescription(req.Description)
	if err := s.repo.Update(ctx, course); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, internalError(err, "failed to update course")
	}
	s.invalidate(ctx)
	return course, nil
}

// Delete removes a course and, through cascades, its instances.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return internalError(err, "failed to delete course")
	}
	s.invalidate(ctx)
	return nil
}

func (s *CourseService) invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx, courseCachePattern)
}
