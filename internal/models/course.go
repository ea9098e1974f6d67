package models

import (
	"strings"
	"time"

	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

// Course is a catalog entry describing a subject of instruction.
type Course struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// CourseFilter captures list options for courses.
type CourseFilter struct {
	Search   string
	Page     int
	PageSize int
}

// NewCourse validates and builds a course.
func NewCourse(title string, description *string) (*Course, error) {
	c := &Course{}
	if err := c.SetTitle(title); err != nil {
		return nil, err
	}
	c.SetDescription(description)
	return c, nil
}

// SetTitle replaces the title; it must be non-empty after trimming.
func (c *Course) SetTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return appErrors.Validation("title", "title cannot be empty")
	}
	c.Title = title
	return nil
}

// SetDescription replaces the optional description.
func (c *Course) SetDescription(description *string) {
	c.Description = description
}
