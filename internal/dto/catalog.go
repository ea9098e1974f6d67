package dto

// CourseRequest defines the payload for creating or updating a course.
type CourseRequest struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

// CourseInstanceRequest defines the payload for creating a course instance.
// Dates use the YYYY-MM-DD layout.
type CourseInstanceRequest struct {
	CourseID  string `json:"courseId" validate:"required"`
	StartDate string `json:"startDate" validate:"required"`
	EndDate   string `json:"endDate" validate:"required"`
	Location  string `json:"location" validate:"required,max=200"`
	Capacity  int    `json:"capacity"`
}

// UpdateCourseInstanceRequest defines the payload for updating a course instance.
type UpdateCourseInstanceRequest struct {
	StartDate string `json:"startDate" validate:"required"`
	EndDate   string `json:"endDate" validate:"required"`
	Location  string `json:"location" validate:"required,max=200"`
	Capacity  int    `json:"capacity"`
}

// PersonRequest is shared by student and teacher create/update payloads.
type PersonRequest struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email,max=200"`
}

// AssignTeacherRequest assigns a teacher to a course instance.
type AssignTeacherRequest struct {
	TeacherID string `json:"teacherId" validate:"required"`
}
