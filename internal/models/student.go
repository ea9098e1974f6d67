package models

import "time"

// Student represents a learner who can enroll in course instances.
type Student struct {
	ID string `db:"id" json:"id"`
	PersonName
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search   string
	Page     int
	PageSize int
}

// NewStudent validates and builds a student.
func NewStudent(firstName, lastName, email string) (*Student, error) {
	s := &Student{}
	if err := s.SetName(firstName, lastName); err != nil {
		return nil, err
	}
	if err := s.SetEmail(email); err != nil {
		return nil, err
	}
	return s, nil
}

// SetEmail assigns the normalised email.
func (s *Student) SetEmail(email string) error {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	s.Email = normalized
	return nil
}
