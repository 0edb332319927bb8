package monitor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/erp-backend-go/internal/core/alerting"
)

// ConnectionStatsSource reports database pool occupancy
type ConnectionStatsSource interface {
	ConnectionStats() alerting.ConnectionUsage
}

// CacheStatsSource reports the backing cache hit rate. ok is false when no
// lookups have been observed yet.
type CacheStatsSource interface {
	HitRate(ctx context.Context) (rate float64, ok bool, err error)
}

// InfrastructureCollector assembles the infrastructure snapshot from host,
// database and cache signals. Any source may be nil.
type InfrastructureCollector struct {
	usage    UsageSource
	database ConnectionStatsSource
	cache    CacheStatsSource
	logger   *logrus.Logger
	now      func() time.Time
}

// NewInfrastructureCollector creates an infrastructure snapshot source
func NewInfrastructureCollector(usage UsageSource, database ConnectionStatsSource, cache CacheStatsSource, logger *logrus.Logger) *InfrastructureCollector {
	return &InfrastructureCollector{
		usage:    usage,
		database: database,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

// GetInfrastructureMetrics collects what it can. Fields whose source failed
// stay nil so the evaluator skips the rules that depend on them.
func (c *InfrastructureCollector) GetInfrastructureMetrics(ctx context.Context) (alerting.InfrastructureSnapshot, error) {
	snapshot := alerting.InfrastructureSnapshot{Timestamp: c.now()}

	if c.usage != nil {
		cpu, memory, disk, err := c.usage.GetUsagePercentages(ctx)
		if err != nil {
			c.logger.WithError(err).Warn("Failed to collect host usage")
		} else {
			snapshot.CPUPercent = alerting.Float(cpu)
			snapshot.MemoryPercent = alerting.Float(memory)
			snapshot.DiskPercent = alerting.Float(disk)
		}
	}

	if c.database != nil {
		usage := c.database.ConnectionStats()
		snapshot.DBConnections = &usage
	}

	if c.cache != nil {
		rate, ok, err := c.cache.HitRate(ctx)
		switch {
		case err != nil:
			c.logger.WithError(err).Warn("Failed to collect cache hit rate")
		case ok:
			snapshot.CacheHitRatePercent = alerting.Float(rate)
		}
	}

	return snapshot, nil
}
