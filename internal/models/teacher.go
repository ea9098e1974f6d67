package models

import "time"

// Teacher represents an instructor record.
type Teacher struct {
	ID string `db:"id" json:"id"`
	PersonName
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	Search   string
	Page     int
	PageSize int
}

// NewTeacher validates and builds a teacher.
func NewTeacher(firstName, lastName, email string) (*Teacher, error) {
	t := &Teacher{}
	if err := t.SetName(firstName, lastName); err != nil {
		return nil, err
	}
	if err := t.SetEmail(email); err != nil {
		return nil, err
	}
	return t, nil
}

// SetEmail assigns the normalised email.
func (t *Teacher) SetEmail(email string) error {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	t.Email = normalized
	return nil
}

// CourseInstanceTeacher associates a teacher with a course instance.
type CourseInstanceTeacher struct {
	CourseInstanceID string    `db:"course_instance_id" json:"courseInstanceId"`
	TeacherID        string    `db:"teacher_id" json:"teacherId"`
	AssignedAt       time.Time `db:"assigned_at" json:"assignedAt"`
}

// AssignedTeacher is a teacher listed under a course instance.
type AssignedTeacher struct {
	Teacher
	AssignedAt time.Time `db:"assigned_at" json:"assignedAt"`
}
