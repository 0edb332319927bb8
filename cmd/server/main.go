package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/erp-backend-go/internal/api"
	"github.com/frostdev-ops/erp-backend-go/internal/api/handlers"
	"github.com/frostdev-ops/erp-backend-go/internal/api/middleware"
	"github.com/frostdev-ops/erp-backend-go/internal/config"
	"github.com/frostdev-ops/erp-backend-go/internal/core/alerting"
	"github.com/frostdev-ops/erp-backend-go/internal/core/analytics"
	"github.com/frostdev-ops/erp-backend-go/internal/core/cache"
	"github.com/frostdev-ops/erp-backend-go/internal/core/metrics"
	"github.com/frostdev-ops/erp-backend-go/internal/core/monitor"
	"github.com/frostdev-ops/erp-backend-go/internal/database"
	"github.com/frostdev-ops/erp-backend-go/internal/websocket"
	"github.com/frostdev-ops/erp-backend-go/pkg/logger"
	"github.com/frostdev-ops/erp-backend-go/pkg/version"
)

const (
	shutdownTimeout = 30 * time.Second
	statsCacheTTL   = 30 * time.Second
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("ERP_CONFIG_FILE"))
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(logger.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	log.WithFields(logrus.Fields{
		"version": version.GetVersion(),
		"commit":  version.GitCommit,
	}).Info("Starting alerting engine")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewPrometheusCollector(&metrics.MetricsConfig{Enabled: cfg.Monitoring.Prometheus.Enabled, Prefix: "erp"}, registry)

	// Database is monitored for connectivity and pool pressure
	db, err := database.Initialize(cfg.Database, log.Logger)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	// Redis is optional; an outage is reported through the health check
	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		redisCache, err = cache.NewRedisCache(cfg.Redis, log.Logger)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize redis client")
		}
		defer redisCache.Close()
	}

	tracker := analytics.NewPerformanceTracker(cfg.Monitoring.Performance.MaxDataPoints, cfg.Monitoring.Performance.EndpointRankingSize)
	statsCache := newStatsCache()

	// Health checks
	thresholds := cfg.Monitoring.Alerts.Thresholds.Thresholds()
	resources := monitor.NewResourceMonitor("/", log.Logger)
	healthChecker := metrics.NewHealthChecker(config.Duration(cfg.Monitoring.HealthCheckTimeout, 5*time.Second), log.Logger)
	healthChecker.SetDatabaseChecker(db.HealthCheck())
	healthChecker.SetSystemResourceChecker(monitor.SystemResourceCheck(resources, monitor.ResourceThresholds{
		CPUPercent:    thresholds.CPUPercent,
		MemoryPercent: thresholds.MemoryPercent,
		DiskPercent:   thresholds.DiskPercent,
	}))
	healthChecker.Register("go_runtime", false, monitor.RuntimeCheck(monitor.DefaultRuntimeLimits()))

	var cacheSource monitor.CacheStatsSource
	if redisCache != nil {
		healthChecker.SetCacheChecker(redisCache.HealthCheck())
		cacheSource = redisCache
	}
	infrastructure := monitor.NewInfrastructureCollector(resources, db, cacheSource, log.Logger)

	// Live alert stream
	var hub *websocket.Hub
	if cfg.Monitoring.Alerts.WebSocket.Enabled {
		hub = websocket.NewHub(log.Logger, collector)
		go hub.Run(ctx)
	}

	// Alert engine
	manager, err := buildAlertManager(cfg, thresholds, collector, hub, log.Logger)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize alert manager")
	}
	if hub != nil {
		manager.Subscribe(hub.OnAlertEvent)
	}

	// Scheduler
	scheduler, err := monitor.NewMonitoringService(monitor.MonitoringServiceConfig{
		Enabled:              cfg.Monitoring.Enabled && cfg.Monitoring.Alerts.Enabled,
		Interval:             config.Duration(cfg.Monitoring.SchedulerInterval, time.Minute),
		PerformanceWindow:    config.Duration(cfg.Monitoring.PerformanceWindow, 5*time.Minute),
		AlertRetention:       config.Duration(cfg.Monitoring.Alerts.RetentionPeriod, 7*24*time.Hour),
		RetentionSchedule:    cfg.Monitoring.Alerts.RetentionSchedule,
		PerformanceRetention: 24 * time.Hour,
	}, monitor.MonitoringServiceDeps{
		Engine:         manager,
		Performance:    tracker,
		Health:         healthChecker,
		Infrastructure: infrastructure,
		Metrics:        collector,
	}, log.Logger)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize scheduler")
	}
	if err := scheduler.Start(ctx); err != nil {
		log.WithError(err).Fatal("Failed to start scheduler")
	}

	// HTTP surface
	monitoringHandler := handlers.NewMonitoringHandler(healthChecker, tracker, infrastructure)
	monitoringHandler.AddComponent("scheduler", scheduler)
	monitoringHandler.AddComponent("alert_stats_cache", statsCache)
	if hub != nil {
		monitoringHandler.AddComponent("websocket", hub)
	}

	limiter := middleware.NewRateLimiter(100, 200)
	go limiter.Run(ctx)

	router := api.NewRouter(api.RouterDeps{
		Config:     cfg,
		Logger:     log,
		Metrics:    collector,
		Gatherer:   registry,
		Tracker:    tracker,
		Limiter:    limiter,
		Alerts:     handlers.NewAlertsHandler(manager, statsCache, config.Duration(cfg.Monitoring.Alerts.DefaultCooldown, alerting.DefaultCooldown), log.Logger),
		Monitoring: monitoringHandler,
		Hub:        hub,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server forced to shutdown")
	}
	if err := scheduler.Stop(); err != nil {
		log.WithError(err).Warn("Failed to stop scheduler")
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Alert notifications abandoned during shutdown")
	}

	// Stops the hub and the rate limiter janitor
	cancel()
	log.FlushPending()
	log.Info("Server exited")
}

// newStatsCache holds computed /alerts/stats responses. It is cleared on every
// alert event, so its hit rate says nothing about a backing cache and is kept
// out of the request tracker that feeds the cache hit rate rule.
func newStatsCache() *cache.MemoryCache {
	return cache.NewMemoryCache("alert_stats", statsCacheTTL, nil)
}

// buildAlertManager assembles the store, the rule set and the notification
// channels enabled in configuration
func buildAlertManager(cfg *config.Config, thresholds alerting.Thresholds, recorder alerting.Recorder, hub *websocket.Hub, logger *logrus.Logger) (*alerting.Manager, error) {
	alerts := cfg.Monitoring.Alerts
	cooldown := config.Duration(alerts.DefaultCooldown, alerting.DefaultCooldown)

	rules := alerting.DefaultRules(thresholds, cooldown)
	if alerts.RulesFile != "" {
		extra, err := alerting.LoadRulesFile(alerts.RulesFile, cooldown)
		if err != nil {
			return nil, err
		}
		rules = alerting.MergeRules(rules, extra)
	}

	evaluator, err := alerting.NewRuleEvaluator(rules, logger)
	if err != nil {
		return nil, err
	}

	dispatcher := alerting.NewDispatcher(config.Duration(alerts.NotificationTimeout, alerting.DefaultNotificationTimeout), recorder, logger)
	dispatcher.AddNotifier(alerting.NewLogNotifier(logger))

	if alerts.Email.Enabled {
		email, err := alerting.NewEmailNotifier(alerting.EmailConfig{
			Name:     "email",
			Enabled:  true,
			Host:     alerts.Email.SMTPHost,
			Port:     alerts.Email.SMTPPort,
			Username: alerts.Email.Username,
			Password: alerts.Email.Password,
			From:     alerts.Email.From,
			To:       alerts.Email.To,
		})
		if err != nil {
			return nil, err
		}
		dispatcher.AddNotifier(email)
	}

	if alerts.Webhook.Enabled {
		webhook, err := alerting.NewWebhookNotifier(alerting.WebhookConfig{
			Name:    "webhook",
			Enabled: true,
			URL:     alerts.Webhook.URL,
			Headers: alerts.Webhook.Headers,
		}, &http.Client{Timeout: config.Duration(alerts.NotificationTimeout, alerting.DefaultNotificationTimeout)})
		if err != nil {
			return nil, err
		}
		dispatcher.AddNotifier(webhook)
	}

	if hub != nil {
		dispatcher.AddNotifier(alerting.NewBroadcastNotifier("websocket", hub))
	}

	store := alerting.NewStore(alerting.StoreConfig{
		MaxAlerts:       alerts.MaxAlerts,
		DefaultCooldown: cooldown,
	}, logger)

	logger.WithFields(logrus.Fields{
		"rules":    len(rules),
		"channels": len(dispatcher.Channels()),
	}).Info("Alert manager initialized")

	return alerting.NewManager(store, evaluator, dispatcher, recorder, logger), nil
}
