package database

import (
	"fmt"
	"io/fs"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-registration-api/pkg/config"
)

func TestConstraintViolations(t *testing.T) {
	unique := &pq.Error{Code: "23505", Constraint: "students_email_key"}
	wrapped := fmt.Errorf("create student: %w", unique)

	assert.True(t, IsUniqueViolation(wrapped, ""))
	assert.True(t, IsUniqueViolation(wrapped, "students_email_key"))
	assert.False(t, IsUniqueViolation(wrapped, "teachers_email_key"))
	assert.False(t, IsForeignKeyViolation(wrapped, ""))

	fk := &pq.Error{Code: "23503", Constraint: "enrollments_student_id_fkey"}
	assert.True(t, IsForeignKeyViolation(fk, "enrollments_student_id_fkey"))
	assert.False(t, IsUniqueViolation(fmt.Errorf("plain"), ""))
}

func TestConnectionStrings(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss word", Name: "education", SSLMode: "disable"}

	assert.Equal(t, "host=db port=5432 user=app password=p@ss word dbname=education sslmode=disable", DSN(cfg))
	assert.Equal(t, "postgres://app:p%40ss%20word@db:5432/education?sslmode=disable", MigrationURL(cfg))
}

func TestMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrationFS, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationFS, "migrations/*.down.sql")
	require.NoError(t, err)

	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}
