package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		query string
		want  PaginationParams
	}{
		{"", PaginationParams{Page: 1, Limit: 50}},
		{"?page=3&limit=10", PaginationParams{Page: 3, Limit: 10}},
		{"?page=-1&limit=500", PaginationParams{Page: 1, Limit: 100}},
		{"?page=x&limit=y", PaginationParams{Page: 1, Limit: 50}},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/calls/live"+tt.query, nil)
		assert.Equal(t, tt.want, ParsePagination(c), tt.query)
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	got := Paginate(items, PaginationParams{Page: 2, Limit: 2})
	assert.Equal(t, []int{3, 4}, got.Data)
	assert.Equal(t, int64(5), got.Total)
	assert.Equal(t, 2, got.Count)

	got = Paginate(items, PaginationParams{Page: 9, Limit: 2})
	assert.Equal(t, []int{}, got.Data)
	assert.Equal(t, 0, got.Count)
}
