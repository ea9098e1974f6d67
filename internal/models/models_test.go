package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

func mustDate(t *testing.T, raw string) Date {
	t.Helper()
	d, err := ParseDate(raw)
	require.NoError(t, err)
	return d
}

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	return appErr.Field
}

func TestNewCourseTrimsTitle(t *testing.T) {
	c, err := NewCourse("  Testkurs ", nil)
	require.NoError(t, err)
	assert.Equal(t, "Testkurs", c.Title)
	assert.Nil(t, c.Description)

	_, err = NewCourse("   ", nil)
	assert.Equal(t, "title", fieldOf(t, err))
}

func TestNewCourseInstanceBoundaries(t *testing.T) {
	start := mustDate(t, "2026-03-01")

	tests := []struct {
		name     string
		end      Date
		location string
		capacity int
		field    string
	}{
		{name: "zero capacity", end: start, location: "Online", capacity: 0, field: "capacity"},
		{name: "negative capacity", end: start, location: "Online", capacity: -1, field: "capacity"},
		{name: "end before start", end: start.AddDays(-1), location: "Online", capacity: 10, field: "endDate"},
		{name: "blank location", end: start, location: "  ", capacity: 10, field: "location"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCourseInstance("course-1", start, tc.end, tc.location, tc.capacity)
			assert.Equal(t, tc.field, fieldOf(t, err))
		})
	}

	ci, err := NewCourseInstance("course-1", start, start, " Online ", 1)
	require.NoError(t, err)
	assert.Equal(t, "Online", ci.Location)
	assert.Equal(t, 1, ci.Capacity)
}

func TestCourseInstanceUpdateKeepsStateOnError(t *testing.T) {
	start := mustDate(t, "2026-03-01")
	ci, err := NewCourseInstance("course-1", start, start.AddDays(4), "Online", 25)
	require.NoError(t, err)

	err = ci.Update(start, start, "Room 1", 0)
	require.Error(t, err)
	assert.Equal(t, "Online", ci.Location)
	assert.Equal(t, 25, ci.Capacity)
}

func TestPeopleNormaliseEmail(t *testing.T) {
	s, err := NewStudent(" Anna ", "Test", "  Anna.Test@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "anna.test@example.com", s.Email)
	assert.Equal(t, "Anna", s.FirstName)
	assert.Equal(t, "Anna Test", s.FullName())

	_, err = NewTeacher("Ada", "", "ada@example.com")
	assert.Equal(t, "lastName", fieldOf(t, err))

	_, err = NewTeacher("Ada", "Lovelace", " ")
	assert.Equal(t, "email", fieldOf(t, err))
}

func TestEnrollmentCancelIsTerminal(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	e := NewEnrollment("s1", "ci1", now)
	assert.Equal(t, EnrollmentStatusActive, e.Status)
	assert.Equal(t, time.UTC, e.EnrolledAt.Location())

	assert.True(t, e.Cancel(now))
	require.NotNil(t, e.CancelledAt)
	first := *e.CancelledAt

	assert.False(t, e.Cancel(now.Add(time.Hour)))
	assert.Equal(t, EnrollmentStatusCancelled, e.Status)
	assert.Equal(t, first, *e.CancelledAt)
}

func TestDateJSON(t *testing.T) {
	var payload struct {
		Start Date `json:"start"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"start":"2026-03-05"}`), &payload))
	assert.Equal(t, "2026-03-05", payload.Start.String())

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"2026-03-05"}`, string(raw))

	assert.Error(t, json.Unmarshal([]byte(`{"start":"05/03/2026"}`), &payload))
}

func TestDateScan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-03-01", d.String())
	require.NoError(t, d.Scan([]byte("2026-04-02")))
	assert.Equal(t, "2026-04-02", d.String())
	assert.Error(t, d.Scan(42))

	v, err := d.Value()
	require.NoError(t, err)
	assert.Equal(t, "2026-04-02", v)
}
