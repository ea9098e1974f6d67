package handler

import (
	"github.com/gin-gonic/gin"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes.
type Handlers struct {
	Courses         *CourseHandler
	CourseInstances *CourseInstanceHandler
	Students        *StudentHandler
	Teachers        *TeacherHandler
	Enrollments     *EnrollmentHandler
	Metrics         *MetricsHandler
}

// RegisterRoutes mounts the operational endpoints on r and the API endpoints
// under prefix.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)

	courses := api.Group("/courses")
	courses.GET("", h.Courses.List)
	courses.POST("", h.Courses.Create)
	courses.GET("/:id", h.Courses.Get)
	courses.PUT("/:id", h.Courses.Update)
	courses.DELETE("/:id", h.Courses.Delete)

	instances := api.Group("/course-instances")
	instances.GET("", h.CourseInstances.List)
	instances.POST("", h.CourseInstances.Create)
	instances.GET("/:id", h.CourseInstances.Get)
	instances.PUT("/:id", h.CourseInstances.Update)
	instances.DELETE("/:id", h.CourseInstances.Delete)
	instances.GET("/:id/teachers", h.CourseInstances.ListTeachers)
	instances.POST("/:id/teachers", h.CourseInstances.AssignTeacher)
	instances.DELETE("/:id/teachers/:teacherId", h.CourseInstances.UnassignTeacher)
	instances.GET("/:id/roster", h.CourseInstances.Roster)

	students := api.Group("/students")
	students.GET("", h.Students.List)
	students.POST("", h.Students.Create)
	students.GET("/:id", h.Students.Get)
	students.PUT("/:id", h.Students.Update)
	students.DELETE("/:id", h.Students.Delete)

	teachers := api.Group("/teachers")
	teachers.GET("", h.Teachers.List)
	teachers.POST("", h.Teachers.Create)
	teachers.GET("/:id", h.Teachers.Get)
	teachers.PUT("/:id", h.Teachers.Update)
	teachers.DELETE("/:id", h.Teachers.Delete)

	enrollments := api.Group("/enrollments")
	enrollments.GET("", h.Enrollments.List)
	enrollments.POST("", h.Enrollments.Create)
	enrollments.GET("/:id", h.Enrollments.Get)
	enrollments.POST("/:id/cancel", h.Enrollments.Cancel)
}
