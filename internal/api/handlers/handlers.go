package handlers

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/frostdev-ops/erp-backend-go/internal/api/middleware"
	"github.com/frostdev-ops/erp-backend-go/internal/core/alerting"
	apperrors "github.com/frostdev-ops/erp-backend-go/pkg/errors"
	"github.com/frostdev-ops/erp-backend-go/pkg/utils"
)

// sendFailure maps engine errors onto HTTP responses
func sendFailure(c *gin.Context, err error) {
	switch {
	case errors.Is(err, alerting.ErrInvalidRequest),
		errors.Is(err, alerting.ErrInvalidSuppression),
		errors.Is(err, alerting.ErrInvalidRule),
		errors.Is(err, alerting.ErrUnknownOperator),
		errors.Is(err, alerting.ErrUnknownMetric):
		utils.SendAppError(c, apperrors.Wrap(apperrors.ErrBadRequest, err))
	case errors.Is(err, alerting.ErrStoreClosed):
		utils.SendAppError(c, apperrors.Wrap(apperrors.ErrServiceUnavailable, err))
	default:
		_ = c.Error(err)
		utils.SendAppError(c, apperrors.ErrInternalServer)
	}
}

func sendBadRequest(c *gin.Context, details string) {
	utils.SendAppError(c, apperrors.WithDetails(apperrors.ErrBadRequest, details))
}

func sendNotFound(c *gin.Context, details string) {
	utils.SendAppError(c, apperrors.WithDetails(apperrors.ErrNotFound, details))
}

// operator picks the authenticated user over a self-reported name
func operator(c *gin.Context, reported string) string {
	if name := middleware.GetUsername(c); name != "" {
		return name
	}
	return reported
}

// queryInt reads a non-negative integer query parameter
func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}
