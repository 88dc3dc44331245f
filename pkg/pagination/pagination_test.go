package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestFromQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		query string
		want  Params
	}{
		{"", Params{Page: 1, Limit: 10}},
		{"?page=3&limit=20", Params{Page: 3, Limit: 20}},
		{"?page=-1&limit=0", Params{Page: 1, Limit: 10}},
		{"?limit=1000", Params{Page: 1, Limit: MaxLimit}},
		{"?page=abc", Params{Page: 1, Limit: 10}},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/events"+tt.query, nil)
		assert.Equal(t, tt.want, FromQuery(c), tt.query)
	}
}

func TestNewPage(t *testing.T) {
	p := NewPage([]string{"a", "b"}, Params{Page: 2, Limit: 2}, 5)
	assert.Equal(t, 3, p.Pagination.TotalPages)
	assert.Equal(t, 2, Params{Page: 2, Limit: 2}.Offset())
	assert.Len(t, p.Items, 2)

	empty := NewPage[string](nil, Params{Page: 1, Limit: 10}, 0)
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 0, empty.Pagination.TotalPages)
}
