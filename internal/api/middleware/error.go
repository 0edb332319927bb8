package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/erp-backend-go/internal/core/alerting"
	"github.com/frostdev-ops/erp-backend-go/pkg/utils"
)

const (
	// RequestIDHeader carries the correlation id in and out of the API
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "request_id"
)

// ErrorHandlingMiddleware recovers panics, logs them with request context and
// answers 500
func ErrorHandlingMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.WithFields(logrus.Fields{
			"panic":       fmt.Sprintf("%v", recovered),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"query":       c.Request.URL.RawQuery,
			"ip":          c.ClientIP(),
			"user_agent":  c.GetHeader("User-Agent"),
			"request_id":  GetRequestID(c),
			"user":        GetUsername(c),
			"stack_trace": string(debug.Stack()),
		}).Error("Panic recovered in API middleware")

		utils.SendError(c, http.StatusInternalServerError, "Internal server error")
		c.Abort()
	})
}

// RequestIDMiddleware assigns each request a correlation id, honouring an
// incoming X-Request-ID, and threads it into the request context so alerts
// raised while serving it carry the same id
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(alerting.WithCorrelationID(c.Request.Context(), requestID))
		c.Next()
	}
}

// GetRequestID returns the correlation id assigned to the request
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
