package alerting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostdev-ops/erp-backend-go/internal/core/metrics"
)

func newDefaultEvaluator(t *testing.T) *RuleEvaluator {
	t.Helper()
	e, err := NewRuleEvaluator(DefaultRules(DefaultThresholds(), DefaultCooldown), testLogger())
	require.NoError(t, err)
	return e
}

func requestsByName(reqs []CreateRequest) map[string]CreateRequest {
	m := make(map[string]CreateRequest, len(reqs))
	for _, r := range reqs {
		m[r.Name] = r
	}
	return m
}

func TestRuleEvaluator_ResponseTimeTiers(t *testing.T) {
	e := newDefaultEvaluator(t)

	tests := []struct {
		name     string
		value    float64
		fires    bool
		severity AlertSeverity
	}{
		{name: "healthy", value: 600},
		{name: "at threshold", value: 1000},
		{name: "high", value: 1500, fires: true, severity: SeverityHigh},
		{name: "critical", value: 2500, fires: true, severity: SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqs := e.Evaluate(&PerformanceSnapshot{AverageResponseTimeMs: Float(tt.value)}, nil, nil)
			if !tt.fires {
				assert.Empty(t, reqs)
				return
			}
			require.Len(t, reqs, 1)
			assert.Equal(t, "High Response Time", reqs[0].Name)
			assert.Equal(t, tt.severity, reqs[0].Severity)
			assert.Equal(t, CategoryPerformance, reqs[0].Category)
			assert.Equal(t, SourceRuleEvaluator, reqs[0].Source)
			require.NotNil(t, reqs[0].CurrentValue)
			assert.Equal(t, tt.value, *reqs[0].CurrentValue)
			require.NotNil(t, reqs[0].Threshold)
			assert.Equal(t, tt.severity, reqs[0].Threshold.Severity)
		})
	}
}

func TestRuleEvaluator_PerformanceScenario(t *testing.T) {
	e := newDefaultEvaluator(t)

	reqs := e.Evaluate(&PerformanceSnapshot{
		AverageResponseTimeMs: Float(3000),
		ErrorRatePercent:      Float(10),
	}, nil, nil)

	require.Len(t, reqs, 2)
	assert.Equal(t, "High Response Time", reqs[0].Name)
	assert.Equal(t, SeverityCritical, reqs[0].Severity)
	assert.Equal(t, "High Error Rate", reqs[1].Name)
	assert.Equal(t, SeverityCritical, reqs[1].Severity)
}

func TestRuleEvaluator_ErrorRateHigh(t *testing.T) {
	e := newDefaultEvaluator(t)

	reqs := e.Evaluate(&PerformanceSnapshot{ErrorRatePercent: Float(7)}, nil, nil)
	require.Len(t, reqs, 1)
	assert.Equal(t, SeverityHigh, reqs[0].Severity)

	assert.Empty(t, e.Evaluate(&PerformanceSnapshot{ErrorRatePercent: Float(5)}, nil, nil))
}

func TestRuleEvaluator_MissingDataSkipsRules(t *testing.T) {
	e := newDefaultEvaluator(t)

	assert.Empty(t, e.Evaluate(nil, nil, nil))
	assert.Empty(t, e.Evaluate(&PerformanceSnapshot{}, &metrics.HealthReport{}, &InfrastructureSnapshot{}))
	assert.Empty(t, e.Evaluate(nil, nil, &InfrastructureSnapshot{DBConnections: &ConnectionUsage{Active: 5, Max: 0}}))
}

func TestRuleEvaluator_SystemUnhealthy(t *testing.T) {
	e := newDefaultEvaluator(t)

	report := &metrics.HealthReport{
		Status: metrics.StatusUnhealthy,
		Score:  50,
		Checks: []metrics.CheckResult{
			{Name: "database", Status: metrics.CheckDown},
			{Name: "cache", Status: metrics.CheckUp},
		},
	}
	reqs := e.Evaluate(nil, report, nil)
	require.Len(t, reqs, 1)
	assert.Equal(t, "System Unhealthy", reqs[0].Name)
	assert.Equal(t, SeverityCritical, reqs[0].Severity)
	assert.Equal(t, CategoryAvailability, reqs[0].Category)
	assert.Equal(t, []string{"database"}, reqs[0].Metadata["failed_checks"])

	assert.Empty(t, e.Evaluate(nil, &metrics.HealthReport{Status: metrics.StatusDegraded, Score: 60}, nil))
}

func TestRuleEvaluator_Infrastructure(t *testing.T) {
	e := newDefaultEvaluator(t)

	reqs := e.Evaluate(nil, nil, &InfrastructureSnapshot{
		CPUPercent:          Float(96),
		MemoryPercent:       Float(91),
		DiskPercent:         Float(80),
		DBConnections:       &ConnectionUsage{Active: 9, Max: 10},
		CacheHitRatePercent: Float(25),
	})

	byName := requestsByName(reqs)
	require.Len(t, reqs, 4)
	assert.Equal(t, SeverityCritical, byName["High CPU Usage"].Severity)
	assert.Equal(t, SeverityHigh, byName["High Memory Usage"].Severity)
	assert.Equal(t, SeverityHigh, byName["High Database Connections"].Severity)
	assert.Equal(t, CategoryDatabase, byName["High Database Connections"].Category)
	assert.Equal(t, SeverityHigh, byName["Low Cache Hit Rate"].Severity)
	assert.NotContains(t, byName, "High Disk Usage")

	// rule-list order is preserved
	assert.Equal(t, "High CPU Usage", reqs[0].Name)
	assert.Equal(t, "Low Cache Hit Rate", reqs[3].Name)
}

func TestRuleEvaluator_CacheHitRateFallsBackToPerformance(t *testing.T) {
	e := newDefaultEvaluator(t)

	reqs := e.Evaluate(&PerformanceSnapshot{CacheHitRatePercent: Float(40)}, nil, nil)
	require.Len(t, reqs, 1)
	assert.Equal(t, "Low Cache Hit Rate", reqs[0].Name)
	assert.Equal(t, SeverityMedium, reqs[0].Severity)

	// infrastructure wins when both are present
	assert.Empty(t, e.Evaluate(&PerformanceSnapshot{CacheHitRatePercent: Float(40)}, nil, &InfrastructureSnapshot{CacheHitRatePercent: Float(90)}))
}

func TestRuleEvaluator_DisabledRule(t *testing.T) {
	rules := DefaultRules(DefaultThresholds(), DefaultCooldown)
	rules[0].Enabled = false
	e, err := NewRuleEvaluator(rules, testLogger())
	require.NoError(t, err)

	assert.Empty(t, e.Evaluate(&PerformanceSnapshot{AverageResponseTimeMs: Float(5000)}, nil, nil))
}

func TestRuleEvaluator_RejectsInvalidConfiguration(t *testing.T) {
	_, err := NewRuleEvaluator([]AlertRule{{Name: "x", Metric: MetricCPUUsage, Operator: "approx", Severity: SeverityHigh}}, testLogger())
	assert.ErrorIs(t, err, ErrUnknownOperator)

	rules := DefaultRules(DefaultThresholds(), DefaultCooldown)
	_, err = NewRuleEvaluator(append(rules, rules[0]), testLogger())
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestRuleEvaluator_AddRule(t *testing.T) {
	e := newDefaultEvaluator(t)
	count := len(e.Rules())

	err := e.AddRule(AlertRule{Name: "Low Health Score", Metric: MetricHealthScore, Operator: OpLessThan, Threshold: 70, Severity: SeverityMedium, Enabled: true})
	require.NoError(t, err)
	assert.Len(t, e.Rules(), count+1)

	replaced := e.Rules()[3]
	replaced.Threshold = 50
	require.NoError(t, e.AddRule(replaced))
	assert.Len(t, e.Rules(), count+1)
	assert.Equal(t, 50.0, e.Rules()[3].Threshold)

	assert.ErrorIs(t, e.AddRule(AlertRule{Name: "bad", Metric: "nope", Operator: OpLessThan, Severity: SeverityLow}), ErrUnknownMetric)

	reqs := e.Evaluate(nil, &metrics.HealthReport{Status: metrics.StatusDegraded, Score: 65}, &InfrastructureSnapshot{CPUPercent: Float(55)})
	byName := requestsByName(reqs)
	assert.Contains(t, byName, "Low Health Score")
	assert.Contains(t, byName, "High CPU Usage")
}

func TestRuleEvaluator_RulesReturnsCopy(t *testing.T) {
	e := newDefaultEvaluator(t)

	rules := e.Rules()
	rules[0].Threshold = 1
	rules[0].Escalation.Threshold = 2

	fresh := e.Rules()
	assert.Equal(t, 1000.0, fresh[0].Threshold)
	assert.Equal(t, 2000.0, fresh[0].Escalation.Threshold)
}

func TestRuleEvaluator_TrendWindow(t *testing.T) {
	clock := newFakeClock()
	e, err := NewRuleEvaluator([]AlertRule{{
		Name:      "Sustained CPU",
		Metric:    MetricCPUUsage,
		Operator:  OpGreaterThan,
		Threshold: 80,
		Severity:  SeverityHigh,
		Window:    5 * time.Minute,
		Enabled:   true,
	}}, testLogger())
	require.NoError(t, err)
	e.now = clock.Now

	infra := func(v float64) *InfrastructureSnapshot {
		return &InfrastructureSnapshot{CPUPercent: Float(v)}
	}

	// a single sample is not a trend
	assert.Empty(t, e.Evaluate(nil, nil, infra(99)))

	clock.Advance(time.Minute)
	reqs := e.Evaluate(nil, nil, infra(71))
	require.Len(t, reqs, 1)
	assert.Equal(t, 85.0, *reqs[0].CurrentValue)
	assert.Equal(t, "5m0s", reqs[0].Metadata["window"])

	// older samples fall out of the window
	clock.Advance(10 * time.Minute)
	assert.Empty(t, e.Evaluate(nil, nil, infra(99)))
	clock.Advance(time.Minute)
	assert.Empty(t, e.Evaluate(nil, nil, infra(50)))
}
