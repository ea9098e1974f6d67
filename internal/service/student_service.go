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

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

// StudentService handles student CRUD.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// List returns students with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list students")
	}
	return students, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a student by ID.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, internalError(err, "failed to load student")
	}
	return student, nil
}

// Create registers a new student with a unique email.
func (s *StudentService) Create(ctx context.Context, req dto.PersonRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student payload")
	}
	student, err := models.NewStudent(req.FirstName, req.LastName, req.Email)
	if err != nil {
		return nil, err
	}
	if err := s.ensureEmailAvailable(ctx, student.Email, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, student); err != nil {
		if database.IsUniqueViolation(err, repository.StudentEmailConstraint) {
			return nil, duplicateEmail(student.Email)
		}
		return nil, internalError(err, "failed to create student")
	}
	return student, nil
}

// Update replaces a student's name and email.
func (s *StudentService) Update(ctx context.Context, id string, req dto.PersonRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student payload")
	}
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := student.SetName(req.FirstName, req.LastName); err != nil {
		return nil, err
	}
	if err := student.SetEmail(req.Email); err != nil {
		return nil, err
	}
	if err := s.ensureEmailAvailable(ctx, student.Email, id); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, student); err != nil {
		switch {
		case err == sql.ErrNoRows:
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		case database.IsUniqueViolation(err, repository.StudentEmailConstraint):
			return nil, duplicateEmail(student.Email)
		}
		return nil, internalError(err, "failed to update student")
	}
	return student, nil
}

// Delete removes a student without enrollments.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		switch {
		case err == sql.ErrNoRows:
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		case database.IsForeignKeyViolation(err, repository.EnrollmentStudentFKey):
			return appErrors.Clone(appErrors.ErrConflict, "student still has enrollments")
		}
		return internalError(err, "failed to delete student")
	}
	return nil
}

func (s *StudentService) ensureEmailAvailable(ctx context.Context, email, excludeID string) error {
	exists, err := s.repo.ExistsByEmail(ctx, email, excludeID)
	if err != nil {
		return internalError(err, "failed to check student email")
	}
	if exists {
		return duplicateEmail(email)
	}
	return nil
}

func duplicateEmail(email string) *appErrors.Error {
	err := appErrors.Clone(appErrors.ErrDuplicateEmail, "email "+email+" is already registered")
	err.Field = "email"
	return err
}
