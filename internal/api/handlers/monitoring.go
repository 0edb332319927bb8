package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/frostdev-ops/erp-backend-go/internal/core/alerting"
	"github.com/frostdev-ops/erp-backend-go/internal/core/analytics"
	"github.com/frostdev-ops/erp-backend-go/pkg/utils"
)

const (
	defaultPerformanceWindow = 5 * time.Minute
	maxPerformanceWindow     = 24 * time.Hour
)

// PerformanceReporter produces the detailed request performance view
type PerformanceReporter interface {
	GetPerformanceMetrics(period time.Duration) *analytics.PerformanceMetrics
}

// StatusReporter describes a background component
type StatusReporter interface {
	GetStatus() map[string]interface{}
}

// MonitoringHandler serves health, performance and infrastructure views
type MonitoringHandler struct {
	health         alerting.HealthSource
	performance    PerformanceReporter
	infrastructure alerting.InfrastructureSource
	components     map[string]StatusReporter
}

// NewMonitoringHandler creates a monitoring handler. infrastructure may be nil.
func NewMonitoringHandler(health alerting.HealthSource, performance PerformanceReporter, infrastructure alerting.InfrastructureSource) *MonitoringHandler {
	return &MonitoringHandler{
		health:         health,
		performance:    performance,
		infrastructure: infrastructure,
		components:     make(map[string]StatusReporter),
	}
}

// AddComponent exposes a background component under /monitoring/status
func (h *MonitoringHandler) AddComponent(name string, reporter StatusReporter) {
	h.components[name] = reporter
}

// RegisterHealthRoutes registers the probe routes, which never require auth
func (h *MonitoringHandler) RegisterHealthRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.GetHealth)
	router.GET("/health/live", h.GetLiveness)
	router.GET("/health/ready", h.GetReadiness)
}

// RegisterRoutes registers monitoring routes
func (h *MonitoringHandler) RegisterRoutes(router *gin.RouterGroup) {
	monitoring := router.Group("/monitoring")
	{
		monitoring.GET("/performance", h.GetPerformance)
		monitoring.GET("/infrastructure", h.GetInfrastructure)
		monitoring.GET("/status", h.GetStatus)
	}
}

// GetPerformance returns request statistics for ?window= (default 5m)
func (h *MonitoringHandler) GetPerformance(c *gin.Context) {
	window := defaultPerformanceWindow
	if raw := c.Query("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 || d > maxPerformanceWindow {
			sendBadRequest(c, "window must be a positive duration up to "+maxPerformanceWindow.String())
			return
		}
		window = d
	}

	utils.SendSuccess(c, h.performance.GetPerformanceMetrics(window))
}

// GetInfrastructure returns the latest resource, database and cache snapshot.
// Signals that could not be collected are omitted.
func (h *MonitoringHandler) GetInfrastructure(c *gin.Context) {
	if h.infrastructure == nil {
		utils.SendSuccess(c, alerting.InfrastructureSnapshot{})
		return
	}

	snapshot, err := h.infrastructure.GetInfrastructureMetrics(c.Request.Context())
	if err != nil {
		sendFailure(c, err)
		return
	}
	utils.SendSuccess(c, snapshot)
}

// GetStatus reports the state of background components such as the scheduler
func (h *MonitoringHandler) GetStatus(c *gin.Context) {
	status := make(map[string]interface{}, len(h.components))
	for name, reporter := range h.components {
		status[name] = reporter.GetStatus()
	}
	utils.SendSuccess(c, status)
}
