package models

import (
	"strings"

	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

// PersonName holds the validated first and last name shared by students and teachers.
type PersonName struct {
	FirstName string `db:"first_name" json:"firstName"`
	LastName  string `db:"last_name" json:"lastName"`
}

// SetName trims and assigns both names; neither may be blank.
func (p *PersonName) SetName(firstName, lastName string) error {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" {
		return appErrors.Validation("firstName", "first name is required")
	}
	if lastName == "" {
		return appErrors.Validation("lastName", "last name is required")
	}
	p.FirstName = firstName
	p.LastName = lastName
	return nil
}

// FullName joins first and last name.
func (p PersonName) FullName() string {
	return p.FirstName + " " + p.LastName
}

// NormalizeEmail trims and lower-cases an email so uniqueness is case-insensitive.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", appErrors.Validation("email", "email is required")
	}
	return email, nil
}
