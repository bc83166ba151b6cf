package common

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MetricsMiddleware tags each request with an ID, logs it and stores an
// ApiMetric row. Handlers report decoded or encoded rows by setting
// "rows_processed" on the context.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		rowsProcessed := c.GetInt("rows_processed")
		errors := ""
		if len(c.Errors) > 0 {
			errors = c.Errors.String()
		}

		metric := ApiMetric{
			RequestID:     requestID,
			Endpoint:      c.FullPath(),
			Method:        c.Request.Method,
			StatusCode:    c.Writer.Status(),
			DurationMs:    int(duration.Milliseconds()),
			RowsProcessed: rowsProcessed,
			Errors:        errors,
			Timestamp:     start,
		}

		LoggerFrom(c).Info("request",
			"method", metric.Method,
			"path", c.Request.URL.Path,
			"status", metric.StatusCode,
			"duration_ms", metric.DurationMs,
			"rows", rowsProcessed,
		)

		conn := GetDB()
		if conn == nil {
			return
		}
		go func() {
			if err := conn.Create(&metric).Error; err != nil {
				LoggerFrom(nil).Warn("failed to store api metric", "request_id", requestID, "error", err)
			}
		}()
	}
}
