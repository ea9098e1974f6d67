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

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	Delete(ctx context.Context, id string) error
}

// TeacherService handles teacher CRUD.
type TeacherService struct {
	repo      teacherRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService constructs TeacherService.
func NewTeacherService(repo teacherRepository, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, validator: validate, logger: logger}
}

// List returns teachers with pagination metadata.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	teachers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list teachers")
	}
	return teachers, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a teacher by ID.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, internalError(err, "failed to load teacher")
	}
	return teacher, nil
}

// Create registers a new teacher with a unique email.
func (s *TeacherService) Create(ctx context.Context, req dto.PersonRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid teacher payload")
	}
	teacher, err := models.NewTeacher(req.FirstName, req.LastName, req.Email)
	if err != nil {
		return nil, err
	}
	if err := s.ensureEmailAvailable(ctx, teacher.Email, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, teacher); err != nil {
		if database.IsUniqueViolation(err, repository.TeacherEmailConstraint) {
			return nil, duplicateEmail(teacher.Email)
		}
		return nil, internalError(err, "failed to create teacher")
	}
	return teacher, nil
}

// Update replaces a teacher's name and email.
func (s *TeacherService) Update(ctx context.Context, id string, req dto.PersonRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid teacher payload")
	}
	teacher, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := teacher.SetName(req.FirstName, req.LastName); err != nil {
		return nil, err
	}
	if err := teacher.SetEmail(req.Email); err != nil {
		return nil, err
	}
	if err := s.ensureEmailAvailable(ctx, teacher.Email, id); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, teacher); err != nil {
		switch {
		case err == sql.ErrNoRows:
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		case database.IsUniqueViolation(err, repository.TeacherEmailConstraint):
			return nil, duplicateEmail(teacher.Email)
		}
		return nil, internalError(err, "failed to update teacher")
	}
	return teacher, nil
}

// Delete removes a teacher and their assignments.
func (s *TeacherService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return internalError(err, "failed to delete teacher")
	}
	return nil
}

func (s *TeacherService) ensureEmailAvailable(ctx context.Context, email, excludeID string) error {
	exists, err := s.repo.ExistsByEmail(ctx, email, excludeID)
	if err != nil {
		return internalError(err, "failed to check teacher email")
	}
	if exists {
		return duplicateEmail(email)
	}
	return nil
}
