package alerting

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/erp-backend-go/internal/core/metrics"
)

// SourceRuleEvaluator tags alerts raised by threshold rules
const SourceRuleEvaluator = "rule_evaluator"

type sample struct {
	at    time.Time
	value float64
}

// RuleEvaluator turns metric snapshots into alert create requests
type RuleEvaluator struct {
	mu      sync.Mutex
	rules   []AlertRule
	samples map[string][]sample
	now     func() time.Time
	logger  *logrus.Logger
}

// NewRuleEvaluator validates every rule up front so bad configuration fails at startup
func NewRuleEvaluator(rules []AlertRule, logger *logrus.Logger) (*RuleEvaluator, error) {
	if logger == nil {
		logger = logrus.New()
	}

	validated := make([]AlertRule, 0, len(rules))
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("%w: duplicate rule name %q", ErrInvalidRule, r.Name)
		}
		seen[r.Name] = true
		validated = append(validated, r)
	}

	return &RuleEvaluator{
		rules:   validated,
		samples: make(map[string][]sample),
		now:     time.Now,
		logger:  logger,
	}, nil
}

// AddRule appends a rule, or replaces the rule with the same name in place
func (e *RuleEvaluator) AddRule(rule AlertRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.samples, rule.Name)
	for i, r := range e.rules {
		if r.Name == rule.Name {
			e.rules[i] = rule
			return nil
		}
	}
	e.rules = append(e.rules, rule)
	return nil
}

// Rules returns a copy of the configured rules in evaluation order
func (e *RuleEvaluator) Rules() []AlertRule {
	e.mu.Lock()
	defer e.mu.Unlock()

	rules := make([]AlertRule, len(e.rules))
	copy(rules, e.rules)
	for i := range rules {
		if rules[i].Escalation != nil {
			esc := *rules[i].Escalation
			rules[i].Escalation = &esc
		}
	}
	return rules
}

// Evaluate checks every enabled rule in order. Rules whose metric is missing
// from the snapshots are skipped.
func (e *RuleEvaluator) Evaluate(perf *PerformanceSnapshot, health *metrics.HealthReport, infra *InfrastructureSnapshot) []CreateRequest {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	requests := make([]CreateRequest, 0)

	for _, rule := range e.rules {
		if !rule.Enabled {
			continue
		}

		value, ok := extractMetric(rule.Metric, perf, health, infra)
		if !ok {
			continue
		}

		if rule.Window > 0 {
			value, ok = e.windowMeanLocked(rule, now, value)
			if !ok {
				continue
			}
		}

		threshold, severity, breached := classify(rule, value)
		if !breached {
			continue
		}

		req := e.buildRequest(rule, value, threshold, severity)
		if rule.Metric == MetricHealthUnhealthy && health != nil {
			req.Metadata["health_score"] = health.Score
			req.Metadata["failed_checks"] = health.FailedChecks()
		}
		requests = append(requests, req)

		e.logger.WithFields(logrus.Fields{
			"rule":      rule.Name,
			"metric":    rule.Metric,
			"value":     value,
			"threshold": threshold.Value,
			"severity":  severity,
		}).Debug("Alert rule breached")
	}

	return requests
}

// windowMeanLocked records value and returns the mean over the rule window.
// Fewer than two samples in the window is not enough to call a trend.
func (e *RuleEvaluator) windowMeanLocked(rule AlertRule, now time.Time, value float64) (float64, bool) {
	cutoff := now.Add(-rule.Window)
	kept := e.samples[rule.Name][:0]
	for _, s := range e.samples[rule.Name] {
		if s.at.After(cutoff) {
			kept = append(kept, s)
		}
	}
	kept = append(kept, sample{at: now, value: value})
	e.samples[rule.Name] = kept

	if len(kept) < 2 {
		return 0, false
	}
	sum := 0.0
	for _, s := range kept {
		sum += s.value
	}
	return sum / float64(len(kept)), true
}

func classify(rule AlertRule, value float64) (Threshold, AlertSeverity, bool) {
	if esc := rule.Escalation; esc != nil && esc.Operator.Compare(value, esc.Threshold) {
		return Threshold{
			Metric:   string(rule.Metric),
			Operator: esc.Operator,
			Value:    esc.Threshold,
			Severity: esc.Severity,
		}, esc.Severity, true
	}
	if rule.Operator.Compare(value, rule.Threshold) {
		return Threshold{
			Metric:   string(rule.Metric),
			Operator: rule.Operator,
			Value:    rule.Threshold,
			Severity: rule.Severity,
		}, rule.Severity, true
	}
	return Threshold{}, "", false
}

func (e *RuleEvaluator) buildRequest(rule AlertRule, value float64, threshold Threshold, severity AlertSeverity) CreateRequest {
	description := rule.Description
	if description == "" {
		description = rule.Name
	}
	description = fmt.Sprintf("%s: %.2f (threshold %s %.2f)", description, value, threshold.Operator, threshold.Value)

	metadata := map[string]interface{}{
		"rule":   rule.Name,
		"metric": string(rule.Metric),
	}
	if rule.Window > 0 {
		metadata["window"] = rule.Window.String()
	}

	return CreateRequest{
		Name:         rule.Name,
		Description:  description,
		Severity:     severity,
		Category:     rule.Category,
		Source:       SourceRuleEvaluator,
		CurrentValue: Float(value),
		Threshold:    &threshold,
		Tags:         []string{"automated", string(rule.Metric)},
		Metadata:     metadata,
		Cooldown:     rule.Cooldown,
	}
}

// extractMetric pulls the value a rule watches out of whichever snapshot carries it
func extractMetric(key MetricKey, perf *PerformanceSnapshot, health *metrics.HealthReport, infra *InfrastructureSnapshot) (float64, bool) {
	switch key {
	case MetricAverageResponseTime:
		if perf == nil {
			return 0, false
		}
		return deref(perf.AverageResponseTimeMs)
	case MetricErrorRate:
		if perf == nil {
			return 0, false
		}
		return deref(perf.ErrorRatePercent)
	case MetricHealthUnhealthy:
		if health == nil || health.Status == "" {
			return 0, false
		}
		if health.Status == metrics.StatusUnhealthy {
			return 1, true
		}
		return 0, true
	case MetricHealthScore:
		if health == nil || health.Status == "" {
			return 0, false
		}
		return health.Score, true
	case MetricCPUUsage:
		if infra == nil {
			return 0, false
		}
		return deref(infra.CPUPercent)
	case MetricMemoryUsage:
		if infra == nil {
			return 0, false
		}
		return deref(infra.MemoryPercent)
	case MetricDiskUsage:
		if infra == nil {
			return 0, false
		}
		return deref(infra.DiskPercent)
	case MetricDBConnectionUsage:
		if infra == nil || infra.DBConnections == nil {
			return 0, false
		}
		return infra.DBConnections.Percent()
	case MetricCacheHitRate:
		if infra != nil && infra.CacheHitRatePercent != nil {
			return *infra.CacheHitRatePercent, true
		}
		if perf != nil {
			return deref(perf.CacheHitRatePercent)
		}
		return 0, false
	}
	return 0, false
}

func deref(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}
