package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/erp-backend-go/pkg/logger"
)

// LoggingMiddleware logs every request through the batch logger, folding
// successful responses into periodic summaries
func LoggingMiddleware(log *logger.BatchLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		fields := logrus.Fields{
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status_code": c.Writer.Status(),
			"user_agent":  c.Request.UserAgent(),
			"request_id":  GetRequestID(c),
		}
		if len(c.Errors) > 0 {
			fields["error_message"] = c.Errors.String()
		}

		log.LogRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start), fields)
	}
}
