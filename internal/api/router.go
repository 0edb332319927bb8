package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/frostdev-ops/erp-backend-go/internal/api/handlers"
	"github.com/frostdev-ops/erp-backend-go/internal/api/middleware"
	"github.com/frostdev-ops/erp-backend-go/internal/config"
	"github.com/frostdev-ops/erp-backend-go/internal/core/metrics"
	"github.com/frostdev-ops/erp-backend-go/internal/websocket"
	"github.com/frostdev-ops/erp-backend-go/pkg/logger"
)

// RouterDeps holds everything the HTTP surface is built from
type RouterDeps struct {
	Config     *config.Config
	Logger     *logger.BatchLogger
	Metrics    metrics.MetricsCollector
	Gatherer   prometheus.Gatherer
	Tracker    middleware.RequestRecorder
	Limiter    *middleware.RateLimiter
	Alerts     *handlers.AlertsHandler
	Monitoring *handlers.MonitoringHandler

	// Hub is nil when the live alert stream is disabled
	Hub *websocket.Hub
}

// NewRouter creates and configures the main HTTP router
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config

	// Set gin mode based on config
	switch cfg.Server.Mode {
	case "debug", "development":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.ErrorHandlingMiddleware(deps.Logger.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(deps.Logger))
	router.Use(middleware.CORSMiddleware(cfg.Server.CORSOrigins))
	router.Use(middleware.MetricsMiddleware(deps.Metrics, deps.Tracker))
	if deps.Limiter != nil {
		router.Use(deps.Limiter.RateLimitMiddleware())
	}

	api := router.Group("/api/v1")

	// Probes, metrics and the alert stream are public
	deps.Monitoring.RegisterHealthRoutes(api)
	if cfg.Monitoring.Prometheus.Enabled && deps.Gatherer != nil {
		api.GET(cfg.Monitoring.Prometheus.Path, gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
	if deps.Hub != nil {
		api.GET("/ws/alerts", websocket.HandleWebSocketGin(deps.Hub))
	}

	protected := api.Group("")
	protected.Use(middleware.OptionalAuthMiddleware(cfg.Auth.Enabled, cfg.Auth.JWTSecret))
	deps.Alerts.RegisterRoutes(protected)
	deps.Monitoring.RegisterRoutes(protected)

	return router
}
