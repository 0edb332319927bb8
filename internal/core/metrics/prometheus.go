package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements MetricsCollector and the alerting recorder
// on top of Prometheus metrics
type PrometheusCollector struct {
	config *MetricsConfig

	// HTTP Metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// WebSocket Metrics
	websocketConnections prometheus.Gauge

	// System Metrics
	systemCPU    prometheus.Gauge
	systemMemory prometheus.Gauge
	systemDisk   prometheus.Gauge

	// Health Metrics
	healthScore  prometheus.Gauge
	healthStatus *prometheus.GaugeVec
	healthChecks *prometheus.GaugeVec

	// Scheduler Metrics
	schedulerTicks        *prometheus.CounterVec
	schedulerTickDuration prometheus.Histogram

	// Alert Metrics
	alertsCreated        *prometheus.CounterVec
	alertsDropped        *prometheus.CounterVec
	alertTransitions     *prometheus.CounterVec
	alertsActive         *prometheus.GaugeVec
	notificationsTotal   *prometheus.CounterVec
	notificationDuration *prometheus.HistogramVec
}

// NewPrometheusCollector registers every metric with reg. A nil reg uses the
// default registerer.
func NewPrometheusCollector(config *MetricsConfig, reg prometheus.Registerer) *PrometheusCollector {
	if config == nil {
		config = &MetricsConfig{
			Enabled: true,
			Prefix:  "erp",
		}
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	prefix := config.Prefix
	factory := promauto.With(reg)

	collector := &PrometheusCollector{config: config}

	// Initialize HTTP metrics
	collector.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	collector.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	collector.websocketConnections = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_websocket_connections",
			Help: "Number of connected alert stream clients",
		},
	)

	// Initialize System metrics
	collector.systemCPU = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_system_cpu_usage_percent",
			Help: "System CPU usage percentage",
		},
	)

	collector.systemMemory = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_system_memory_usage_percent",
			Help: "System memory usage percentage",
		},
	)

	collector.systemDisk = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_system_disk_usage_percent",
			Help: "System disk usage percentage",
		},
	)

	// Initialize Health metrics
	collector.healthScore = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_health_score",
			Help: "Aggregated health score from 0 to 100",
		},
	)

	collector.healthStatus = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_health_status",
			Help: "1 for the current overall health status, 0 otherwise",
		},
		[]string{"status"},
	)

	collector.healthChecks = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_health_check_up",
			Help: "1 when the named health check is UP",
		},
		[]string{"check"},
	)

	// Initialize Scheduler metrics
	collector.schedulerTicks = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_scheduler_ticks_total",
			Help: "Total number of alert scheduler ticks",
		},
		[]string{"result"},
	)

	collector.schedulerTickDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    prefix + "_scheduler_tick_duration_seconds",
			Help:    "Duration of one alert scheduler tick",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
	)

	// Initialize Alert metrics
	collector.alertsCreated = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_alerts_total",
			Help: "Total number of alerts raised",
		},
		[]string{"severity", "category"},
	)

	collector.alertsDropped = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_alerts_dropped_total",
			Help: "Alert requests dropped by cooldown or suppression",
		},
		[]string{"reason"},
	)

	collector.alertTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_alert_transitions_total",
			Help: "Alert lifecycle transitions",
		},
		[]string{"transition"},
	)

	collector.alertsActive = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_alerts_active",
			Help: "Number of open alerts",
		},
		[]string{"severity"},
	)

	collector.notificationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_alerting_notifications_total",
			Help: "Alert notifications by channel and result",
		},
		[]string{"channel", "result"},
	)

	collector.notificationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_alerting_notification_duration_seconds",
			Help:    "Alert notification delivery time",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"channel"},
	)

	return collector
}

// RecordHTTPRequest records an HTTP request metric
func (c *PrometheusCollector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordWebSocketConnection tracks stream clients; action is "connect" or "disconnect"
func (c *PrometheusCollector) RecordWebSocketConnection(action string) {
	switch action {
	case "connect":
		c.websocketConnections.Inc()
	case "disconnect":
		c.websocketConnections.Dec()
	}
}

// RecordSystemResource records system resource usage
func (c *PrometheusCollector) RecordSystemResource(cpu, memory, disk float64) {
	c.systemCPU.Set(cpu)
	c.systemMemory.Set(memory)
	c.systemDisk.Set(disk)
}

// RecordHealth publishes the latest health report
func (c *PrometheusCollector) RecordHealth(report HealthReport) {
	c.healthScore.Set(report.Score)
	for _, s := range []OverallStatus{StatusHealthy, StatusDegraded, StatusUnhealthy} {
		v := 0.0
		if s == report.Status {
			v = 1
		}
		c.healthStatus.WithLabelValues(string(s)).Set(v)
	}
	for _, check := range report.Checks {
		v := 0.0
		if check.Status == CheckUp {
			v = 1
		}
		c.healthChecks.WithLabelValues(check.Name).Set(v)
	}
}

// RecordSchedulerTick records one scheduler pass
func (c *PrometheusCollector) RecordSchedulerTick(success bool, duration time.Duration) {
	c.schedulerTicks.WithLabelValues(resultLabel(success)).Inc()
	c.schedulerTickDuration.Observe(duration.Seconds())
}

// AlertCreated counts a newly raised alert
func (c *PrometheusCollector) AlertCreated(severity, category string) {
	c.alertsCreated.WithLabelValues(severity, category).Inc()
}

// AlertDropped counts a deduplicated alert request
func (c *PrometheusCollector) AlertDropped(reason string) {
	c.alertsDropped.WithLabelValues(reason).Inc()
}

// AlertTransition counts a lifecycle transition
func (c *PrometheusCollector) AlertTransition(transition string) {
	c.alertTransitions.WithLabelValues(transition).Inc()
}

// NotificationSent records a notification attempt
func (c *PrometheusCollector) NotificationSent(channel string, success bool, duration time.Duration) {
	c.notificationsTotal.WithLabelValues(channel, resultLabel(success)).Inc()
	c.notificationDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// ActiveAlerts sets the open alert gauge per severity
func (c *PrometheusCollector) ActiveAlerts(bySeverity map[string]int) {
	for severity, n := range bySeverity {
		c.alertsActive.WithLabelValues(severity).Set(float64(n))
	}
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
