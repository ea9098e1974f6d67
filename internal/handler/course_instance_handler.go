package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-registration-api/internal/dto"
	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/pkg/response"
)

type courseInstanceService interface {
	List(ctx context.Context, filter models.CourseInstanceFilter) ([]models.CourseInstance, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.CourseInstance, error)
	Create(ctx context.Context, req dto.CourseInstanceRequest) (*models.CourseInstance, error)
	Update(ctx context.Context, id string, req dto.UpdateCourseInstanceRequest) (*models.CourseInstance, error)
	Delete(ctx context.Context, id string) error
}

type courseInstanceTeacherService interface {
	List(ctx context.Context, courseInstanceID string) ([]models.AssignedTeacher, error)
	Assign(ctx context.Context, courseInstanceID string, req dto.AssignTeacherRequest) (*models.CourseInstanceTeacher, error)
	Unassign(ctx context.Context, courseInstanceID, teacherID string) error
}

type rosterService interface {
	Export(ctx context.Context, courseInstanceID, format string, status models.EnrollmentStatus) (*dto.RosterExport, error)
}

// CourseInstanceHandler exposes course instance, teacher assignment and
// roster endpoints.
type CourseInstanceHandler struct {
	instances courseInstanceService
	teachers  courseInstanceTeacherService
	rosters   rosterService
}

// NewCourseInstanceHandler constructs CourseInstanceHandler.
func NewCourseInstanceHandler(instances courseInstanceService, teachers courseInstanceTeacherService, rosters rosterService) *CourseInstanceHandler {
	return &CourseInstanceHandler{instances: instances, teachers: teachers, rosters: rosters}
}

// List godoc
// @Summary List course instances
// @Tags CourseInstances
// @Produce json
// @Param courseId query string false "Filter by course"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /course-instances [get]
func (h *CourseInstanceHandler) List(c *gin.Context) {
	filter := models.CourseInstanceFilter{CourseID: strings.TrimSpace(c.Query("courseId"))}
	filter.Page, filter.PageSize = pageParams(c)

	instances, pagination, err := h.instances.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instances, pagination)
}

// Get godoc
// @Summary Get course instance
// @Tags CourseInstances
// @Produce json
// @Param id path string true "Course instance ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /course-instances/{id} [get]
func (h *CourseInstanceHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id", "course instance")
	if !ok {
		return
	}
	instance, err := h.instances.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instance, nil)
}

// Create godoc
// @Summary Create course instance
// @Tags CourseInstances
// @Accept json
// @Produce json
// @Param payload body dto.CourseInstanceRequest true "Course instance payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /course-instances [post]
func (h *CourseInstanceHandler) Create(c *gin.Context) {
	var req dto.CourseInstanceRequest
	if !bindJSON(c, &req) {
		return
	}
	instance, err := h.instances.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, c.Request.URL.Path+"/"+instance.ID, instance)
}

// Update godoc
// @Summary Update course instance
// @Tags CourseInstances
// @Accept json
// @Produce json
// @Param id path string true "Course instance ID"
// @Param payload body dto.UpdateCourseInstanceRequest true "Course instance payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /course-instances/{id} [put]
func (h *CourseInstanceHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id", "course instance")
	if !ok {
		return
	}
	var req dto.UpdateCourseInstanceRequest
	if !bindJSON(c, &req) {
		return
	}
	instance, err := h.instances.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instance, nil)
}

// Delete godoc
// @Summary Delete course instance
// @Tags CourseInstances
// @Param id path string true "Course instance ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /course-instances/{id} [delete]
func (h *CourseInstanceHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id", "course instance")
	if !ok {
		return
	}
	if err := h.instances.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListTeachers godoc
// @Summary List teachers assigned to a course instance
// @Tags CourseInstances
// @Produce json
// @Param id path string true "Course instance ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /course-instances/{id}/teachers [get]
func (h *CourseInstanceHandler) ListTeachers(c *gin.Context) {
	id, ok := pathID(c, "id", "course instance")
	if !ok {
		return
	}
	teachers, err := h.teachers.List(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, nil)
}

// AssignTeacher godoc
// @Summary Assign a teacher to a course instance
// @Tags CourseInstances
// @Accept json
// @Produce json
// @Param id path string true "Course instance ID"
// @Param payload body dto.AssignTeacherRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /course-instances/{id}/teachers [post]
func (h *CourseInstanceHandler) AssignTeacher(c *gin.Context) {
	id, ok := pathID(c, "id", "course instance")
	if !ok {
		return
	}
	var req dto.AssignTeacherRequest
	if !bindJSON(c, &req) {
		return
	}
	assignment, err := h.teachers.Assign(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, c.Request.URL.Path+"/"+assignment.TeacherID, assignment)
}

// UnassignTeacher godoc
// @Summary Remove a teacher from a course instance
// @Tags CourseInstances
// @Param id path string true "Course instance ID"
// @Param teacherId path string true "Teacher ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /course-instances/{id}/teachers/{teacherId} [delete]
func (h *CourseInstanceHandler) UnassignTeacher(c *gin.Context) {
	id, ok := pathID(c, "id", "course instance")
	if !ok {
		return
	}
	teacherID, ok := pathID(c, "teacherId", "teacher assignment")
	if !ok {
		return
	}
	if err := h.teachers.Unassign(c.Request.Context(), id, teacherID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Roster godoc
// @Summary Download the enrollment roster of a course instance
// @Tags CourseInstances
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Course instance ID"
// @Param format query string false "csv (default) or pdf"
// @Param status query string false "ACTIVE or CANCELLED; all when omitted"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /course-instances/{id}/roster [get]
func (h *CourseInstanceHandler) Roster(c *gin.Context) {
	id, ok := pathID(c, "id", "course instance")
	if !ok {
		return
	}
	status := models.EnrollmentStatus(strings.ToUpper(strings.TrimSpace(c.Query("status"))))
	out, err := h.rosters.Export(c.Request.Context(), id, strings.TrimSpace(c.Query("format")), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, out.Filename, out.ContentType, out.Payload)
}
