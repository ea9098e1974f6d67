package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-registration-api/internal/models"
)

// Constraints raised by enrollment inserts.
const (
	ActiveEnrollmentConstraint = "enrollments_active_student_instance_key"
	EnrollmentStudentFKey      = "enrollments_student_id_fkey"
)

const enrollmentColumns = "id, student_id, course_instance_id, enrolled_at, status, cancelled_at"

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria, oldest first.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseInstanceID != "" {
		conditions = append(conditions, fmt.Sprintf("course_instance_id = $%d", len(args)+1))
		args = append(args, filter.CourseInstanceID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	base := "FROM enrollments"
	if len(conditions) > 0 {
		base += " WHERE " + strings.Join(conditions, " AND ")
	}
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s ORDER BY enrolled_at ASC LIMIT %d OFFSET %d", enrollmentColumns, base, limit, offset)
	enrollments := []models.Enrollment{}
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := "SELECT " + enrollmentColumns + " FROM enrollments WHERE id = $1"
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ExistsActiveWithTx checks for an ACTIVE enrollment of the pair inside tx.
func (r *EnrollmentRepository) ExistsActiveWithTx(ctx context.Context, tx *sqlx.Tx, studentID, courseInstanceID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND course_instance_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := tx.GetContext(ctx, &exists, query, studentID, courseInstanceID, models.EnrollmentStatusActive); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}

// CountActiveWithTx counts the seats taken in a course instance inside tx.
func (r *EnrollmentRepository) CountActiveWithTx(ctx context.Context, tx *sqlx.Tx, courseInstanceID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE course_instance_id = $1 AND status = $2`
	var count int
	if err := tx.GetContext(ctx, &count, query, courseInstanceID, models.EnrollmentStatusActive); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}

// CreateWithTx persists a new enrollment inside tx.
func (r *EnrollmentRepository) CreateWithTx(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	const query = `INSERT INTO enrollments (id, student_id, course_instance_id, enrolled_at, status, cancelled_at)
        VALUES (:id, :student_id, :course_instance_id, :enrolled_at, :status, :cancelled_at)`
	if _, err := tx.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// MarkCancelled moves an ACTIVE enrollment to CANCELLED and reports whether
// this call made the transition. Rows that are already cancelled or missing
// are left untouched and yield false.
func (r *EnrollmentRepository) MarkCancelled(ctx context.Context, id string, cancelledAt time.Time) (bool, error) {
	const query = `UPDATE enrollments SET status = $2, cancelled_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, models.EnrollmentStatusCancelled, cancelledAt, models.EnrollmentStatusActive)
	if err != nil {
		return false, fmt.Errorf("cancel enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel enrollment rows affected: %w", err)
	}
	return affected > 0, nil
}

// Roster lists the enrollments of a course instance with student details.
// An empty status returns every enrollment.
func (r *EnrollmentRepository) Roster(ctx context.Context, courseInstanceID string, status models.EnrollmentStatus) ([]models.RosterEntry, error) {
	query := `SELECT e.id AS enrollment_id, e.student_id, s.first_name, s.last_name, s.email, e.enrolled_at, e.status
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        WHERE e.course_instance_id = $1`
	args := []interface{}{courseInstanceID}
	if status != "" {
		query += " AND e.status = $2"
		args = append(args, status)
	}
	query += " ORDER BY s.last_name ASC, s.first_name ASC"

	entries := []models.RosterEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	return entries, nil
}

// BeginTxx starts a transaction for admission checks.
func (r *EnrollmentRepository) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, opts)
}
