package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-registration-api/internal/dto"
	"github.com/noah-isme/course-registration-api/internal/models"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

type courseRepoMock struct {
	courses   map[string]*models.Course
	listCalls int
}

func newCourseRepoMock() *courseRepoMock {
	return &courseRepoMock{courses: map[string]*models.Course{}}
}

func (m *courseRepoMock) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	m.listCalls++
	result := []models.Course{}
	for _, c := range m.courses {
		if filter.Search == "" || strings.Contains(strings.ToLower(c.Title), strings.ToLower(filter.Search)) {
			result = append(result, *c)
		}
	}
	return result, len(result), nil
}

func (m *courseRepoMock) FindByID(ctx context.Context, id string) (*models.Course, error) {
	c, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *c
	return &copied, nil
}

func (m *courseRepoMock) Create(ctx context.Context, course *models.Course) error {
	course.ID = uuid.NewString()
	course.CreatedAt = time.Now().UTC()
	course.UpdatedAt = course.CreatedAt
	stored := *course
	m.courses[course.ID] = &stored
	return nil
}

func (m *courseRepoMock) Update(ctx context.Context, course *models.Course) error {
	if _, ok := m.courses[course.ID]; !ok {
		return sql.ErrNoRows
	}
	stored := *course
	m.courses[course.ID] = &stored
	return nil
}

func (m *courseRepoMock) Delete(ctx context.Context, id string) error {
	if _, ok := m.courses[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.courses, id)
	return nil
}

type cacheRepoMock struct {
	values        map[string][]byte
	invalidations []string
}

func newCacheRepoMock() *cacheRepoMock {
	return &cacheRepoMock{values: map[string][]byte{}}
}

func (m *cacheRepoMock) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *cacheRepoMock) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	return nil
}

func (m *cacheRepoMock) DeleteByPattern(ctx context.Context, pattern string) error {
	m.invalidations = append(m.invalidations, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.values {
		if strings.HasPrefix(key, prefix) {
			delete(m.values, key)
		}
	}
	return nil
}

func TestCourseServiceCreateAndList(t *testing.T) {
	repo := newCourseRepoMock()
	svc := NewCourseService(repo, nil, nil, nil)

	course, err := svc.Create(context.Background(), dto.CourseRequest{Title: "  Testkurs  "})
	require.NoError(t, err)
	assert.Equal(t, "Testkurs", course.Title)

	courses, pagination, err := svc.List(context.Background(), models.CourseFilter{})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "Testkurs", courses[0].Title)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestCourseServiceValidation(t *testing.T) {
	svc := NewCourseService(newCourseRepoMock(), nil, nil, nil)

	_, err := svc.Create(context.Background(), dto.CourseRequest{Title: "   "})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, "title", appErr.Field)

	_, err = svc.Create(context.Background(), dto.CourseRequest{})
	assert.Equal(t, "title", appErrors.FromError(err).Field)
}

func TestCourseServiceNotFound(t *testing.T) {
	svc := NewCourseService(newCourseRepoMock(), nil, nil, nil)
	id := uuid.NewString()

	_, err := svc.Get(context.Background(), id)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Update(context.Background(), id, dto.CourseRequest{Title: "Algebra"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	err = svc.Delete(context.Background(), id)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceCachesReadsAndInvalidatesOnWrite(t *testing.T) {
	repo := newCourseRepoMock()
	cacheRepo := newCacheRepoMock()
	metrics := NewMetricsService()
	cache := NewCacheService(cacheRepo, metrics, time.Minute, nil, true)
	svc := NewCourseService(repo, cache, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, dto.CourseRequest{Title: "Testkurs"})
	require.NoError(t, err)

	_, _, err = svc.List(ctx, models.CourseFilter{})
	require.NoError(t, err)
	courses, _, err := svc.List(ctx, models.CourseFilter{})
	require.NoError(t, err)
	assert.Len(t, courses, 1)
	assert.Equal(t, 1, repo.listCalls)

	course, err := svc.Create(ctx, dto.CourseRequest{Title: "Geometry"})
	require.NoError(t, err)
	courses, _, err = svc.List(ctx, models.CourseFilter{})
	require.NoError(t, err)
	assert.Len(t, courses, 2)
	assert.Equal(t, 2, repo.listCalls)
	assert.Contains(t, cacheRepo.invalidations, courseCachePattern)

	description := "Shapes"
	updated, err := svc.Update(ctx, course.ID, dto.CourseRequest{Title: "Geometry II", Description: &description})
	require.NoError(t, err)
	fetched, err := svc.Get(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Title, fetched.Title)
	require.NotNil(t, fetched.Description)
	assert.Equal(t, "Shapes", *fetched.Description)
}
