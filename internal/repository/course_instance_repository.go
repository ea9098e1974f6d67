package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-registration-api/internal/models"
)

const courseInstanceColumns = "id, course_id, start_date, end_date, location, capacity, created_at, updated_at"

// CourseInstanceRepository manages persistence for course instances.
type CourseInstanceRepository struct {
	db *sqlx.DB
}

// NewCourseInstanceRepository constructs a CourseInstanceRepository.
func NewCourseInstanceRepository(db *sqlx.DB) *CourseInstanceRepository {
	return &CourseInstanceRepository{db: db}
}

// List returns course instances ordered by start date.
func (r *CourseInstanceRepository) List(ctx context.Context, filter models.CourseInstanceFilter) ([]models.CourseInstance, int, error) {
	base := "FROM course_instances"
	var args []interface{}
	if filter.CourseID != "" {
		base += " WHERE course_id = $1"
		args = append(args, filter.CourseID)
	}
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s ORDER BY start_date ASC, created_at ASC LIMIT %d OFFSET %d", courseInstanceColumns, base, limit, offset)
	instances := []models.CourseInstance{}
	if err := r.db.SelectContext(ctx, &instances, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list course instances: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count course instances: %w", err)
	}
	return instances, total, nil
}

// FindByID returns a course instance or sql.ErrNoRows.
func (r *CourseInstanceRepository) FindByID(ctx context.Context, id string) (*models.CourseInstance, error) {
	query := "SELECT " + courseInstanceColumns + " FROM course_instances WHERE id = $1"
	var instance models.CourseInstance
	if err := r.db.GetContext(ctx, &instance, query, id); err != nil {
		return nil, err
	}
	return &instance, nil
}

// LockForAdmission reads the instance inside tx and holds a row lock until the
// transaction ends, serialising admissions against the same instance.
func (r *CourseInstanceRepository) LockForAdmission(ctx context.Context, tx *sqlx.Tx, id string) (*models.CourseInstance, error) {
	query := "SELECT " + courseInstanceColumns + " FROM course_instances WHERE id = $1 FOR UPDATE"
	var instance models.CourseInstance
	if err := tx.GetContext(ctx, &instance, query, id); err != nil {
		return nil, err
	}
	return &instance, nil
}

// Create inserts a new course instance.
func (r *CourseInstanceRepository) Create(ctx context.Context, instance *models.CourseInstance) error {
	if instance.ID == "" {
		instance.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	instance.CreatedAt = now
	instance.UpdatedAt = now
	const query = `INSERT INTO course_instances (id, course_id, start_date, end_date, location, capacity, created_at, updated_at)
        VALUES (:id, :course_id, :start_date, :end_date, :location, :capacity, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, instance); err != nil {
		return fmt.Errorf("create course instance: %w", err)
	}
	return nil
}

// Update persists schedule, location and capacity changes.
func (r *CourseInstanceRepository) Update(ctx context.Context, instance *models.CourseInstance) error {
	instance.UpdatedAt = time.Now().UTC()
	const query = `UPDATE course_instances SET start_date = $2, end_date = $3, location = $4, capacity = $5, updated_at = $6 WHERE id = $1`
	return execAffecting(ctx, r.db, "update course instance", query,
		instance.ID, instance.StartDate, instance.EndDate, instance.Location, instance.Capacity, instance.UpdatedAt)
}

// Delete removes a course instance; enrollments and teacher assignments cascade.
func (r *CourseInstanceRepository) Delete(ctx context.Context, id string) error {
	return execAffecting(ctx, r.db, "delete course instance", `DELETE FROM course_instances WHERE id = $1`, id)
}
