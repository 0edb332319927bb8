package main

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostdev-ops/erp-backend-go/internal/core/alerting"
	"github.com/frostdev-ops/erp-backend-go/internal/core/analytics"
)

func TestStatsCacheChurnDoesNotRaiseCacheAlerts(t *testing.T) {
	tracker := analytics.NewPerformanceTracker(100, 5)
	tracker.RecordRequest("GET", "/api/v1/alerts/stats", 200, 10*time.Millisecond)
	statsCache := newStatsCache()

	// every lifecycle event clears the cache, so lookups keep missing
	for i := 0; i < 20; i++ {
		statsCache.Get("stats:24")
		statsCache.Clear()
	}

	snapshot := tracker.GetPerformanceStats(time.Minute)
	assert.Nil(t, snapshot.CacheHitRatePercent)

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	evaluator, err := alerting.NewRuleEvaluator(alerting.DefaultRules(alerting.DefaultThresholds(), alerting.DefaultCooldown), quiet)
	require.NoError(t, err)

	for _, req := range evaluator.Evaluate(&snapshot, nil, nil) {
		assert.NotEqual(t, "Low Cache Hit Rate", req.Name)
	}
	assert.EqualValues(t, 20, statsCache.Stats().MissCount)
}
