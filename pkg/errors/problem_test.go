package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestErrorResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/calls", nil)
	c.Set("trace_id", "t-1")

	NotFound(c, "customer not found")

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	var p ProblemDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "https://api.troikatech.in/problems/not-found", p.Type)
	assert.Equal(t, "customer not found", p.Detail)
	assert.Equal(t, "t-1", p.TraceID)
	assert.Equal(t, "/calls", p.Instance)
}

func TestInternalErrorHidesCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

	InternalError(c, errors.New("mongo: connection refused"), zap.NewNop())

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "mongo")
}

func TestUpstreamHidesCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/dialogue/preview", nil)

	Upstream(c, errors.New("anthropic: 529 overloaded"), "chat provider failed", zap.NewNop())

	require.Equal(t, http.StatusBadGateway, w.Code)
	var p ProblemDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "Bad Gateway", p.Title)
	assert.Equal(t, "https://api.troikatech.in/problems/upstream-error", p.Type)
	assert.NotContains(t, w.Body.String(), "anthropic")
}
