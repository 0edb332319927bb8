package metrics

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func check(name string, status CheckStatus) CheckResult {
	return CheckResult{Name: name, Status: status}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name        string
		checks      []CheckResult
		executionMs float64
		status      OverallStatus
		score       float64
	}{
		{
			name:   "all up",
			checks: []CheckResult{check("database", CheckUp), check("cache", CheckUp), check("system_resources", CheckUp)},
			status: StatusHealthy,
			score:  100,
		},
		{
			name:   "no checks",
			status: StatusHealthy,
			score:  100,
		},
		{
			name:   "critical database down overrides score band",
			checks: []CheckResult{check("database", CheckDown), check("cache", CheckUp), check("system_resources", CheckUp)},
			status: StatusUnhealthy,
			score:  50,
		},
		{
			name:   "database degraded",
			checks: []CheckResult{check("database", CheckDegraded), check("cache", CheckUp)},
			status: StatusHealthy,
			score:  80,
		},
		{
			name:   "cache down is non-critical",
			checks: []CheckResult{check("database", CheckUp), check("redis_cache", CheckDown)},
			status: StatusHealthy,
			score:  80,
		},
		{
			name:   "cache and resources failing",
			checks: []CheckResult{check("cache", CheckDown), check("system_resources", CheckUnhealthy)},
			status: StatusDegraded,
			score:  55,
		},
		{
			name:   "unknown checks get default weight",
			checks: []CheckResult{check("payments_api", CheckDown), check("ledger_api", CheckDegraded)},
			status: StatusHealthy,
			score:  80,
		},
		{
			name:        "slow execution",
			checks:      []CheckResult{check("database", CheckUp)},
			executionMs: 750,
			status:      StatusHealthy,
			score:       95,
		},
		{
			name:        "very slow execution",
			checks:      []CheckResult{check("cache", CheckDown)},
			executionMs: 1500,
			status:      StatusDegraded,
			score:       70,
		},
		{
			name:   "flagged critical check down",
			checks: []CheckResult{{Name: "ledger_api", Status: CheckDown, Critical: true}},
			status: StatusUnhealthy,
			score:  85,
		},
		{
			name:   "slow critical check deducts even when up",
			checks: []CheckResult{check("database", CheckUp).WithResponseTime(8 * time.Second), check("cache", CheckDegraded).WithResponseTime(8 * time.Second)},
			status: StatusDegraded,
			score:  60,
		},
		{
			name:   "moderately slow checks",
			checks: []CheckResult{check("database", CheckUp).WithResponseTime(750 * time.Millisecond), check("payments_api", CheckUp).WithResponseTime(600 * time.Millisecond)},
			status: StatusHealthy,
			score:  85,
		},
		{
			name:   "fast checks cost nothing",
			checks: []CheckResult{check("database", CheckUp).WithResponseTime(20 * time.Millisecond)},
			status: StatusHealthy,
			score:  100,
		},
		{
			name: "score clamps at zero",
			checks: []CheckResult{
				check("database", CheckUnhealthy), check("sqlite", CheckUnhealthy),
				check("cache", CheckDown), check("disk", CheckDown),
			},
			status: StatusUnhealthy,
			score:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, score := Aggregate(tt.checks, tt.executionMs)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.score, score)
		})
	}
}

func TestAggregate_ManyHealthyChecksCannotMaskCriticalFailure(t *testing.T) {
	checks := []CheckResult{check("database", CheckDown)}
	for i := 0; i < 20; i++ {
		checks = append(checks, check("worker", CheckUp))
	}

	status, _ := Aggregate(checks, 0)
	assert.Equal(t, StatusUnhealthy, status)
}

func TestHealthChecker_PerformHealthCheck(t *testing.T) {
	h := NewHealthChecker(time.Second, quietLogger())
	h.SetDatabaseChecker(func(ctx context.Context) CheckResult {
		return NewCheckResult("database", CheckUp, "ok")
	})
	h.SetCacheChecker(func(ctx context.Context) CheckResult {
		return NewCheckResult("cache", CheckDegraded, "slow").WithDetail("latency_ms", 40)
	})
	h.SetSystemResourceChecker(func(ctx context.Context) CheckResult {
		return NewCheckResult("system_resources", CheckUp, "ok")
	})

	report := h.PerformHealthCheck(context.Background())
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, 90.0, report.Score)
	require.Len(t, report.Checks, 3)
	assert.Equal(t, "cache", report.Checks[0].Name)
	assert.Equal(t, "database", report.Checks[1].Name)
	assert.True(t, report.Checks[1].Critical)
	assert.NotNil(t, report.Checks[1].ResponseTimeMs)
	assert.Equal(t, []string{"cache"}, report.FailedChecks())
	assert.Contains(t, report.SystemInfo, "uptime")
}

func TestHealthChecker_TimeoutMarksCheckDown(t *testing.T) {
	h := NewHealthChecker(50*time.Millisecond, quietLogger())
	h.SetDatabaseChecker(func(ctx context.Context) CheckResult {
		select {
		case <-time.After(time.Minute):
		case <-ctx.Done():
		}
		return NewCheckResult("database", CheckUp, "late")
	})

	start := time.Now()
	report := h.PerformHealthCheck(context.Background())

	assert.Less(t, time.Since(start), 5*time.Second)
	require.Len(t, report.Checks, 1)
	assert.Equal(t, CheckDown, report.Checks[0].Status)
	assert.Equal(t, StatusUnhealthy, report.Status)
}

func TestHealthChecker_PanicMarksCheckDown(t *testing.T) {
	h := NewHealthChecker(time.Second, quietLogger())
	h.Register("ledger_api", false, func(ctx context.Context) CheckResult {
		panic("nil pointer")
	})

	report := h.PerformHealthCheck(context.Background())
	require.Len(t, report.Checks, 1)
	assert.Equal(t, CheckDown, report.Checks[0].Status)
	assert.Contains(t, report.Checks[0].Message, "panicked")
}

func TestCheckResult_WithDetailDoesNotAlias(t *testing.T) {
	base := NewCheckResult("x", CheckUp, "")
	a := base.WithDetail("k", 1)
	b := base.WithDetail("k", 2)

	assert.Equal(t, 1, a.Details["k"])
	assert.Equal(t, 2, b.Details["k"])
	assert.NotContains(t, base.Details, "k")
}
