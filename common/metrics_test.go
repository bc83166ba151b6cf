package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsMiddleware(t *testing.T) {
	conn, err := TestDBInit()
	require.NoError(t, err)
	t.Cleanup(func() { TestDBFree(conn) })

	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/rows", func(c *gin.Context) {
		c.Set("rows_processed", 42)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/rows", nil)
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))

	var metric ApiMetric
	require.Eventually(t, func() bool {
		return conn.Where("request_id = ?", "req-1").First(&metric).Error == nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "/rows", metric.Endpoint)
	assert.Equal(t, 42, metric.RowsProcessed)
	assert.Equal(t, http.StatusNoContent, metric.StatusCode)
}

func TestMetricsMiddlewareGeneratesRequestID(t *testing.T) {
	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	id := w.Header().Get("X-Request-ID")
	assert.Len(t, id, 36)
	assert.Equal(t, id, w.Body.String())
}
