package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/frostdev-ops/erp-backend-go/internal/core/metrics"
)

// RequestRecorder receives one sample per served request
type RequestRecorder interface {
	RecordRequest(method, path string, statusCode int, duration time.Duration)
}

// MetricsMiddleware feeds every request to the Prometheus collector and to the
// performance tracker that backs the response time and error rate rules
func MetricsMiddleware(collector metrics.MetricsCollector, tracker RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Route templates keep label cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		duration := time.Since(start)
		method := c.Request.Method
		statusCode := c.Writer.Status()

		if collector != nil {
			collector.RecordHTTPRequest(method, path, statusCode, duration)
		}
		if tracker != nil {
			tracker.RecordRequest(method, path, statusCode, duration)
		}
	}
}
