package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/course-registration-api/internal/dto"
	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/pkg/export"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

type rosterRepository interface {
	Roster(ctx context.Context, courseInstanceID string, status models.EnrollmentStatus) ([]models.RosterEntry, error)
}

var rosterHeaders = []string{"Enrollment ID", "Student ID", "Last Name", "First Name", "Email", "Enrolled At (UTC)", "Status"}

// RosterService renders the enrollment roster of a course instance.
type RosterService struct {
	repo      rosterRepository
	instances courseInstanceReader
	courses   courseReader
	logger    *zap.Logger
}

// NewRosterService constructs RosterService.
func NewRosterService(repo rosterRepository, instances courseInstanceReader, courses courseReader, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{repo: repo, instances: instances, courses: courses, logger: logger}
}

// Export lists every enrollment of the instance and encodes it as format.
// An empty status includes cancelled enrollments.
func (s *RosterService) Export(ctx context.Context, courseInstanceID, format string, status models.EnrollmentStatus) (*dto.RosterExport, error) {
	renderer, err := export.ForFormat(export.Format(strings.ToLower(format)))
	if err != nil {
		return nil, appErrors.Validation("format", "format must be csv or pdf")
	}
	if status != "" && !status.Valid() {
		return nil, appErrors.Validation("status", "status must be ACTIVE or CANCELLED")
	}

	instance, err := s.instances.FindByID(ctx, courseInstanceID)
	if err != nil {
		return nil, notFoundOrInternal(err, "course instance not found", "failed to load course instance")
	}
	title := "Course instance " + instance.ID
	if course, err := s.courses.FindByID(ctx, instance.CourseID); err == nil {
		title = fmt.Sprintf("%s, %s to %s, %s", course.Title, instance.StartDate, instance.EndDate, instance.Location)
	}

	entries, err := s.repo.Roster(ctx, courseInstanceID, status)
	if err != nil {
		return nil, internalError(err, "failed to load roster")
	}

	dataset := export.Dataset{Title: title, Headers: rosterHeaders, Rows: make([]map[string]string, 0, len(entries))}
	for _, entry := range entries {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Enrollment ID":     entry.EnrollmentID,
			"Student ID":        entry.StudentID,
			"Last Name":         entry.LastName,
			"First Name":        entry.FirstName,
			"Email":             entry.Email,
			"Enrolled At (UTC)": entry.EnrolledAt.UTC().Format("2006-01-02 15:04:05"),
			"Status":            string(entry.Status),
		})
	}

	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, internalError(err, "failed to render roster")
	}
	s.logger.Debug("roster exported", zap.String("course_instance_id", courseInstanceID), zap.Int("rows", len(entries)), zap.String("format", renderer.Extension()))
	return &dto.RosterExport{
		Filename:    fmt.Sprintf("roster-%s.%s", courseInstanceID, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Payload:     payload,
	}, nil
}
