package metrics

import (
	"time"
)

// MetricsCollector defines the interface for collecting process metrics
type MetricsCollector interface {
	RecordHTTPRequest(method, path string, status int, duration time.Duration)
	RecordWebSocketConnection(action string)
	RecordSystemResource(cpu, memory, disk float64)
	RecordHealth(report HealthReport)
	RecordSchedulerTick(success bool, duration time.Duration)
}

// MetricsConfig contains configuration for metrics collection
type MetricsConfig struct {
	Enabled bool
	Prefix  string
}

// NoopCollector discards everything; used when metrics are disabled
type NoopCollector struct{}

func (NoopCollector) RecordHTTPRequest(string, string, int, time.Duration) {}
func (NoopCollector) RecordWebSocketConnection(string) {}
func (NoopCollector) RecordSystemResource(float64, float64, float64) {}
func (NoopCollector) RecordHealth(HealthReport) {}
func (NoopCollector) RecordSchedulerTick(bool, time.Duration) {}
