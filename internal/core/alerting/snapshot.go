package alerting

import (
	"context"
	"time"

	"github.com/frostdev-ops/erp-backend-go/internal/core/metrics"
)

// PerformanceSnapshot carries request-path signals over a recent window.
// Nil fields mean the value could not be collected.
type PerformanceSnapshot struct {
	AverageResponseTimeMs *float64  `json:"avg_response_time_ms,omitempty"`
	ErrorRatePercent      *float64  `json:"error_rate_percent,omitempty"`
	CacheHitRatePercent   *float64  `json:"cache_hit_rate_percent,omitempty"`
	RequestCount          int64     `json:"request_count"`
	Timestamp             time.Time `json:"timestamp"`
}

// ConnectionUsage is the database pool occupancy
type ConnectionUsage struct {
	Active int `json:"active"`
	Max    int `json:"max"`
}

// Percent returns active/max as a percentage; ok is false when max is unknown
func (c ConnectionUsage) Percent() (float64, bool) {
	if c.Max <= 0 {
		return 0, false
	}
	return float64(c.Active) / float64(c.Max) * 100, true
}

// InfrastructureSnapshot carries host and backing-service signals.
// Nil fields mean the value could not be collected.
type InfrastructureSnapshot struct {
	CPUPercent          *float64         `json:"cpu_percent,omitempty"`
	MemoryPercent       *float64         `json:"memory_percent,omitempty"`
	DiskPercent         *float64         `json:"disk_percent,omitempty"`
	DBConnections       *ConnectionUsage `json:"db_connections,omitempty"`
	CacheHitRatePercent *float64         `json:"cache_hit_rate_percent,omitempty"`
	Timestamp           time.Time        `json:"timestamp"`
}

// PerformanceSource supplies request-path statistics over a window
type PerformanceSource interface {
	GetPerformanceStats(window time.Duration) PerformanceSnapshot
}

// HealthSource supplies the aggregated health report
type HealthSource interface {
	PerformHealthCheck(ctx context.Context) metrics.HealthReport
}

// InfrastructureSource supplies host and backing-service metrics
type InfrastructureSource interface {
	GetInfrastructureMetrics(ctx context.Context) (InfrastructureSnapshot, error)
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}
