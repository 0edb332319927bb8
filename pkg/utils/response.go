package utils

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/frostdev-ops/erp-backend-go/pkg/errors"
)

// Response represents a standard API response
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp string      `json:"timestamp"`
	Meta      interface{} `json:"meta,omitempty"`
}

// ErrorResponse represents an error response with request context
type ErrorResponse struct {
	Success   bool        `json:"success"`
	Error     string      `json:"error"`
	Code      int         `json:"code"`
	Timestamp string      `json:"timestamp"`
	Request   RequestInfo `json:"request"`
	Details   interface{} `json:"details,omitempty"`
}

// RequestInfo provides context about the failed request
type RequestInfo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Query  string `json:"query,omitempty"`
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// SendSuccess sends a successful response
func SendSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: now(),
	})
}

// SendCreated sends a 201 response
func SendCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success:   true,
		Data:      data,
		Timestamp: now(),
	})
}

// SendSuccessWithMeta sends a successful response with metadata
func SendSuccessWithMeta(c *gin.Context, data interface{}, meta interface{}) {
	c.JSON(http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Meta:      meta,
		Timestamp: now(),
	})
}

// SendError sends an error response
func SendError(c *gin.Context, statusCode int, message string) {
	sendError(c, statusCode, message, nil)
}

// SendAppError sends an error response derived from an AppError
func SendAppError(c *gin.Context, err error) {
	status := apperrors.GetStatusCode(err)
	message := http.StatusText(status)
	var details interface{}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
		if appErr.Details != "" {
			details = appErr.Details
		}
	}
	sendError(c, status, message, details)
}

func sendError(c *gin.Context, statusCode int, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		Success:   false,
		Error:     message,
		Code:      statusCode,
		Timestamp: now(),
		Request: RequestInfo{
			Method: c.Request.Method,
			Path:   c.Request.URL.Path,
			Query:  c.Request.URL.RawQuery,
		},
		Details: details,
	})
}
