package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-registration-api/internal/models"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

func render(fn func(c *gin.Context)) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	fn(c)
	body := map[string]json.RawMessage{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestJSONEnvelope(t *testing.T) {
	w, body := render(func(c *gin.Context) {
		JSON(c, http.StatusOK, []string{"a"}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1})
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.JSONEq(t, `["a"]`, string(body["data"]))
	assert.JSONEq(t, `{"page":1,"pageSize":20,"totalCount":1}`, string(body["pagination"]))
	assert.Len(t, body, 2)
}

func TestCreatedSetsLocation(t *testing.T) {
	w, body := render(func(c *gin.Context) {
		Created(c, "/api/v1/courses/c-1", map[string]string{"id": "c-1"})
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/api/v1/courses/c-1", w.Header().Get("Location"))
	assert.NotContains(t, body, "pagination")
}

func TestErrorEnvelope(t *testing.T) {
	w, body := render(func(c *gin.Context) {
		Error(c, appErrors.Clone(appErrors.ErrNotFound, "course not found"))
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, body, "error")
	assert.NotContains(t, body, "data")
	var errBody struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(body["error"], &errBody))
	assert.Equal(t, "NOT_FOUND", errBody.Code)
	assert.Equal(t, "course not found", errBody.Message)
}
