package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-registration-api/internal/models"
)

var courseInstanceRowColumns = []string{"id", "course_id", "start_date", "end_date", "location", "capacity", "created_at", "updated_at"}

func courseInstanceRow(id string, capacity int) *sqlmock.Rows {
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(courseInstanceRowColumns).
		AddRow(id, "course-1", start, start.AddDate(0, 3, 0), "Room 101", capacity, time.Now(), time.Now())
}

func TestCourseInstanceRepositoryLockForAdmission(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseInstanceRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, course_id, start_date, end_date, location, capacity, created_at, updated_at FROM course_instances WHERE id = $1 FOR UPDATE") + "$").
		WithArgs("ci-1").
		WillReturnRows(courseInstanceRow("ci-1", 25))
	mock.ExpectQuery(regexp.QuoteMeta("FROM course_instances WHERE id = $1 FOR UPDATE") + "$").
		WithArgs("ci-missing").
		WillReturnRows(sqlmock.NewRows(courseInstanceRowColumns))
	mock.ExpectRollback()

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)

	instance, err := repo.LockForAdmission(ctx, tx, "ci-1")
	require.NoError(t, err)
	assert.Equal(t, 25, instance.Capacity)
	assert.Equal(t, "2025-09-01", instance.StartDate.String())

	_, err = repo.LockForAdmission(ctx, tx, "ci-missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseInstanceRepositoryListByCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseInstanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM course_instances WHERE course_id = $1 ORDER BY start_date ASC, created_at ASC LIMIT 10 OFFSET 10")).
		WithArgs("course-1").
		WillReturnRows(courseInstanceRow("ci-1", 5))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM course_instances WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	instances, total, err := repo.List(context.Background(), models.CourseInstanceFilter{CourseID: "course-1", Page: 2, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "course-1", instances[0].CourseID)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseInstanceRepositoryWrites(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseInstanceRepository(db)
	ctx := context.Background()

	start, _ := models.ParseDate("2025-09-01")
	end, _ := models.ParseDate("2025-12-19")
	instance, err := models.NewCourseInstance("course-1", start, end, "Room 101", 25)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO course_instances").
		WithArgs(sqlmock.AnyArg(), "course-1", "2025-09-01", "2025-12-19", "Room 101", int64(25), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.Create(ctx, instance))
	assert.NotEmpty(t, instance.ID)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE course_instances SET start_date = $2, end_date = $3, location = $4, capacity = $5, updated_at = $6 WHERE id = $1")).
		WithArgs(instance.ID, "2025-09-01", "2025-12-19", "Room 101", int64(25), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Update(ctx, instance), sql.ErrNoRows)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM course_instances WHERE id = $1")).
		WithArgs(instance.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(ctx, instance.ID))
	assert.NoError(t, mock.ExpectationsWereMet())
}
