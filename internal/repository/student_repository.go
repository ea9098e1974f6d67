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

// StudentEmailConstraint is the unique constraint guarding student emails.
const StudentEmailConstraint = "students_email_key"

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students"
	var args []interface{}
	if filter.Search != "" {
		base += " WHERE (LOWER(first_name) LIKE $1 OR LOWER(last_name) LIKE $1 OR email LIKE $1)"
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT id, first_name, last_name, email, created_at, updated_at %s ORDER BY last_name ASC, first_name ASC LIMIT %d OFFSET %d", base, limit, offset)
	students := []models.Student{}
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, first_name, last_name, email, created_at, updated_at FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByEmail checks if a student with the given email exists optionally excluding an ID.
func (r *StudentRepository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE email = $1"
	args := []interface{}{email}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student email: %w", err)
	}
	return true, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, first_name, last_name, email, created_at, updated_at)
        VALUES (:id, :first_name, :last_name, :email, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET first_name = $2, last_name = $3, email = $4, updated_at = $5 WHERE id = $1`
	return execAffecting(ctx, r.db, "update student", query, student.ID, student.FirstName, student.LastName, student.Email, student.UpdatedAt)
}

// Delete removes a student. It fails with a foreign key violation while the
// student still has enrollments.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	return execAffecting(ctx, r.db, "delete student", `DELETE FROM students WHERE id = $1`, id)
}

// ExistsWithTx reports whether the student exists and keeps it from being
// deleted until tx ends.
func (r *StudentRepository) ExistsWithTx(ctx context.Context, tx *sqlx.Tx, id string) (bool, error) {
	var exists int
	if err := tx.GetContext(ctx, &exists, `SELECT 1 FROM students WHERE id = $1 FOR KEY SHARE`, id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student: %w", err)
	}
	return true, nil
}
