package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. ACTIVE moves to CANCELLED and never back.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s EnrollmentStatus) Valid() bool {
	return s == EnrollmentStatusActive || s == EnrollmentStatusCancelled
}

// Enrollment captures a student's registration to a course instance.
type Enrollment struct {
	ID               string           `db:"id" json:"id"`
	StudentID        string           `db:"student_id" json:"studentId"`
	CourseInstanceID string           `db:"course_instance_id" json:"courseInstanceId"`
	EnrolledAt       time.Time        `db:"enrolled_at" json:"enrolledAtUtc"`
	Status           EnrollmentStatus `db:"status" json:"status"`
	CancelledAt      *time.Time       `db:"cancelled_at" json:"cancelledAtUtc,omitempty"`
}

// NewEnrollment builds an ACTIVE enrollment stamped with now in UTC.
func NewEnrollment(studentID, courseInstanceID string, now time.Time) *Enrollment {
	return &Enrollment{
		StudentID:        studentID,
		CourseInstanceID: courseInstanceID,
		EnrolledAt:       now.UTC(),
		Status:           EnrollmentStatusActive,
	}
}

// Cancel moves the enrollment to CANCELLED. It reports false when the
// enrollment was already cancelled, leaving it untouched.
func (e *Enrollment) Cancel(now time.Time) bool {
	if e.Status == EnrollmentStatusCancelled {
		return false
	}
	at := now.UTC()
	e.Status = EnrollmentStatusCancelled
	e.CancelledAt = &at
	return true
}

// RosterEntry is an enrollment joined with the student's contact details.
type RosterEntry struct {
	EnrollmentID string           `db:"enrollment_id" json:"enrollmentId"`
	StudentID    string           `db:"student_id" json:"studentId"`
	FirstName    string           `db:"first_name" json:"firstName"`
	LastName     string           `db:"last_name" json:"lastName"`
	Email        string           `db:"email" json:"email"`
	EnrolledAt   time.Time        `db:"enrolled_at" json:"enrolledAtUtc"`
	Status       EnrollmentStatus `db:"status" json:"status"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID        string
	CourseInstanceID string
	Status           EnrollmentStatus
	Page             int
	PageSize         int
}
