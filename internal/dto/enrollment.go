package dto

// EnrollRequest asks for a student to be admitted to a course instance.
type EnrollRequest struct {
	StudentID        string `json:"studentId" validate:"required"`
	CourseInstanceID string `json:"courseInstanceId" validate:"required"`
}

// RosterExport is a rendered roster ready for download.
type RosterExport struct {
	Filename    string
	ContentType string
	Payload     []byte
}
