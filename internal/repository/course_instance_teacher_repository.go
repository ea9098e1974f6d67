package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-registration-api/internal/models"
)

// CourseInstanceTeacherConstraint is the composite primary key of assignments.
const CourseInstanceTeacherConstraint = "course_instance_teachers_pkey"

// CourseInstanceTeacherRepository manages teacher assignments to course instances.
type CourseInstanceTeacherRepository struct {
	db *sqlx.DB
}

// NewCourseInstanceTeacherRepository constructs the repository.
func NewCourseInstanceTeacherRepository(db *sqlx.DB) *CourseInstanceTeacherRepository {
	return &CourseInstanceTeacherRepository{db: db}
}

// ListByCourseInstance returns the teachers assigned to an instance.
func (r *CourseInstanceTeacherRepository) ListByCourseInstance(ctx context.Context, courseInstanceID string) ([]models.AssignedTeacher, error) {
	const query = `SELECT t.id, t.first_name, t.last_name, t.email, t.created_at, t.updated_at, cit.assigned_at
        FROM course_instance_teachers cit
        JOIN teachers t ON t.id = cit.teacher_id
        WHERE cit.course_instance_id = $1
        ORDER BY t.last_name ASC, t.first_name ASC`
	teachers := []models.AssignedTeacher{}
	if err := r.db.SelectContext(ctx, &teachers, query, courseInstanceID); err != nil {
		return nil, fmt.Errorf("list course instance teachers: %w", err)
	}
	return teachers, nil
}

// Assign inserts the (instance, teacher) pair. A repeated pair fails with a
// unique violation on the primary key.
func (r *CourseInstanceTeacherRepository) Assign(ctx context.Context, assignment *models.CourseInstanceTeacher) error {
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now().UTC()
	}
	const query = `INSERT INTO course_instance_teachers (course_instance_id, teacher_id, assigned_at)
        VALUES (:course_instance_id, :teacher_id, :assigned_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("assign teacher: %w", err)
	}
	return nil
}

// Unassign removes the pair or returns sql.ErrNoRows.
func (r *CourseInstanceTeacherRepository) Unassign(ctx context.Context, courseInstanceID, teacherID string) error {
	const query = `DELETE FROM course_instance_teachers WHERE course_instance_id = $1 AND teacher_id = $2`
	return execAffecting(ctx, r.db, "unassign teacher", query, courseInstanceID, teacherID)
}
