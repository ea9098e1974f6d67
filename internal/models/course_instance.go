package models

import (
	"strings"
	"time"

	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

// CourseInstance is one scheduled, dated, capacity-bounded offering of a course.
type CourseInstance struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"courseId"`
	StartDate Date      `db:"start_date" json:"startDate"`
	EndDate   Date      `db:"end_date" json:"endDate"`
	Location  string    `db:"location" json:"location"`
	Capacity  int       `db:"capacity" json:"capacity"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// CourseInstanceFilter captures list options for course instances.
type CourseInstanceFilter struct {
	CourseID string
	Page     int
	PageSize int
}

// NewCourseInstance validates and builds a course instance.
func NewCourseInstance(courseID string, start, end Date, location string, capacity int) (*CourseInstance, error) {
	ci := &CourseInstance{CourseID: courseID}
	if err := ci.Update(start, end, location, capacity); err != nil {
		return nil, err
	}
	return ci, nil
}

// Update replaces the schedule, location and capacity after validating them.
func (ci *CourseInstance) Update(start, end Date, location string, capacity int) error {
	if end.Before(start) {
		return appErrors.Validation("endDate", "end date cannot be before start date")
	}
	location = strings.TrimSpace(location)
	if location == "" {
		return appErrors.Validation("location", "location cannot be empty")
	}
	if capacity <= 0 {
		return appErrors.Validation("capacity", "capacity must be greater than zero")
	}
	ci.StartDate = start
	ci.EndDate = end
	ci.Location = location
	ci.Capacity = capacity
	return nil
}
