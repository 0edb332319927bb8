package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/frostdev-ops/erp-backend-go/internal/core/metrics"
	"github.com/frostdev-ops/erp-backend-go/pkg/utils"
	"github.com/frostdev-ops/erp-backend-go/pkg/version"
)

// healthStatusCode reports UNHEALTHY as 503 so load balancers can act on it
func healthStatusCode(status metrics.OverallStatus) int {
	if status == metrics.StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// GetHealth runs every registered check and returns the aggregated report
func (h *MonitoringHandler) GetHealth(c *gin.Context) {
	report := h.health.PerformHealthCheck(c.Request.Context())

	code := healthStatusCode(report.Status)
	c.JSON(code, utils.Response{
		Success:   code == http.StatusOK,
		Data:      report,
		Meta:      version.GetBuildInfo(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// GetLiveness answers as long as the process serves HTTP
func (h *MonitoringHandler) GetLiveness(c *gin.Context) {
	utils.SendSuccess(c, gin.H{
		"status":    "alive",
		"service":   version.Service,
		"version":   version.GetVersion(),
		"timestamp": time.Now().UTC(),
	})
}

// GetReadiness reports whether the instance should receive traffic
func (h *MonitoringHandler) GetReadiness(c *gin.Context) {
	report := h.health.PerformHealthCheck(c.Request.Context())
	if report.Status == metrics.StatusUnhealthy {
		c.JSON(http.StatusServiceUnavailable, utils.Response{
			Success: false,
			Error:   "not ready",
			Data: gin.H{
				"status":        report.Status,
				"failed_checks": report.FailedChecks(),
			},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	utils.SendSuccess(c, gin.H{
		"status": "ready",
		"score":  report.Score,
	})
}
