package alerting

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Operator is a threshold comparison
type Operator string

const (
	OpGreaterThan    Operator = "gt"
	OpLessThan       Operator = "lt"
	OpEqual          Operator = "eq"
	OpGreaterOrEqual Operator = "gte"
	OpLessOrEqual    Operator = "lte"
)

// ParseOperator accepts both the short names and their symbolic forms
func ParseOperator(s string) (Operator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gt", ">":
		return OpGreaterThan, nil
	case "lt", "<":
		return OpLessThan, nil
	case "eq", "==", "=":
		return OpEqual, nil
	case "gte", ">=":
		return OpGreaterOrEqual, nil
	case "lte", "<=":
		return OpLessOrEqual, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOperator, s)
}

// Compare reports whether value breaches threshold under op
func (op Operator) Compare(value, threshold float64) bool {
	switch op {
	case OpGreaterThan:
		return value > threshold
	case OpLessThan:
		return value < threshold
	case OpEqual:
		return value == threshold
	case OpGreaterOrEqual:
		return value >= threshold
	case OpLessOrEqual:
		return value <= threshold
	}
	return false
}

// MetricKey names a signal the evaluator knows how to extract from a snapshot
type MetricKey string

const (
	MetricAverageResponseTime MetricKey = "avg_response_time_ms"
	MetricErrorRate           MetricKey = "error_rate_percent"
	MetricHealthUnhealthy     MetricKey = "health_unhealthy"
	MetricHealthScore         MetricKey = "health_score"
	MetricCPUUsage            MetricKey = "cpu_usage_percent"
	MetricMemoryUsage         MetricKey = "memory_usage_percent"
	MetricDiskUsage           MetricKey = "disk_usage_percent"
	MetricDBConnectionUsage   MetricKey = "db_connection_usage_percent"
	MetricCacheHitRate        MetricKey = "cache_hit_rate_percent"
)

// Valid reports whether the evaluator can extract k
func (k MetricKey) Valid() bool {
	switch k {
	case MetricAverageResponseTime, MetricErrorRate, MetricHealthUnhealthy, MetricHealthScore,
		MetricCPUUsage, MetricMemoryUsage, MetricDiskUsage, MetricDBConnectionUsage, MetricCacheHitRate:
		return true
	}
	return false
}

// EscalationTier raises the severity of a rule when a second threshold is breached
type EscalationTier struct {
	Operator  Operator      `json:"operator,omitempty"`
	Threshold float64       `json:"threshold"`
	Severity  AlertSeverity `json:"severity"`
}

// AlertRule is a threshold or trend condition watched on every scheduler tick
type AlertRule struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Metric      MetricKey       `json:"metric"`
	Operator    Operator        `json:"operator"`
	Threshold   float64         `json:"threshold"`
	Severity    AlertSeverity   `json:"severity"`
	Category    AlertCategory   `json:"category"`
	Escalation  *EscalationTier `json:"escalation,omitempty"`
	Cooldown    time.Duration   `json:"cooldown"`
	Window      time.Duration   `json:"window,omitempty"`
	Enabled     bool            `json:"enabled"`
}

// Validate normalizes the rule and rejects configurations that can never evaluate
func (r *AlertRule) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if !r.Metric.Valid() {
		return fmt.Errorf("rule %q: %w: %q", r.Name, ErrUnknownMetric, r.Metric)
	}

	op, err := ParseOperator(string(r.Operator))
	if err != nil {
		return fmt.Errorf("rule %q: %w", r.Name, err)
	}
	r.Operator = op

	sev, err := ParseSeverity(string(r.Severity))
	if err != nil {
		return fmt.Errorf("rule %q: %w", r.Name, ErrInvalidRule)
	}
	r.Severity = sev

	if r.Category == "" {
		r.Category = CategorySystem
	}
	cat, err := ParseCategory(string(r.Category))
	if err != nil {
		return fmt.Errorf("rule %q: %w", r.Name, ErrInvalidRule)
	}
	r.Category = cat

	if r.Cooldown < 0 || r.Window < 0 {
		return fmt.Errorf("rule %q: %w: negative duration", r.Name, ErrInvalidRule)
	}

	if r.Escalation != nil {
		if r.Escalation.Operator == "" {
			r.Escalation.Operator = r.Operator
		}
		op, err := ParseOperator(string(r.Escalation.Operator))
		if err != nil {
			return fmt.Errorf("rule %q escalation: %w", r.Name, err)
		}
		r.Escalation.Operator = op

		sev, err := ParseSeverity(string(r.Escalation.Severity))
		if err != nil {
			return fmt.Errorf("rule %q escalation: %w", r.Name, ErrInvalidRule)
		}
		r.Escalation.Severity = sev
	}
	return nil
}

// Thresholds holds the configurable values behind the built-in rule set
type Thresholds struct {
	ResponseTimeMs         float64
	ResponseTimeCriticalMs float64
	ErrorRate              float64
	ErrorRateCritical      float64
	CPUPercent             float64
	CPUCriticalPercent     float64
	MemoryPercent          float64
	MemoryCriticalPercent  float64
	DiskPercent            float64
	DiskCriticalPercent    float64
	DBConnectionPercent    float64
	CacheHitRate           float64
	CacheHitRateCritical   float64
}

// DefaultThresholds returns the stock values of the built-in rules
func DefaultThresholds() Thresholds {
	return Thresholds{
		ResponseTimeMs:         1000,
		ResponseTimeCriticalMs: 2000,
		ErrorRate:              5,
		ErrorRateCritical:      10,
		CPUPercent:             90,
		CPUCriticalPercent:     95,
		MemoryPercent:          90,
		MemoryCriticalPercent:  95,
		DiskPercent:            85,
		DiskCriticalPercent:    95,
		DBConnectionPercent:    80,
		CacheHitRate:           50,
		CacheHitRateCritical:   30,
	}
}

// DefaultRules builds the built-in rule set in evaluation order
func DefaultRules(t Thresholds, cooldown time.Duration) []AlertRule {
	return []AlertRule{
		{
			Name:        "High Response Time",
			Description: "Average response time is above threshold",
			Metric:      MetricAverageResponseTime,
			Operator:    OpGreaterThan,
			Threshold:   t.ResponseTimeMs,
			Severity:    SeverityHigh,
			Category:    CategoryPerformance,
			Escalation:  &EscalationTier{Operator: OpGreaterThan, Threshold: t.ResponseTimeCriticalMs, Severity: SeverityCritical},
			Cooldown:    cooldown,
			Enabled:     true,
		},
		{
			Name:        "High Error Rate",
			Description: "Request error rate is above threshold",
			Metric:      MetricErrorRate,
			Operator:    OpGreaterThan,
			Threshold:   t.ErrorRate,
			Severity:    SeverityHigh,
			Category:    CategoryPerformance,
			Escalation:  &EscalationTier{Operator: OpGreaterOrEqual, Threshold: t.ErrorRateCritical, Severity: SeverityCritical},
			Cooldown:    cooldown,
			Enabled:     true,
		},
		{
			Name:        "System Unhealthy",
			Description: "Overall system health is UNHEALTHY",
			Metric:      MetricHealthUnhealthy,
			Operator:    OpEqual,
			Threshold:   1,
			Severity:    SeverityCritical,
			Category:    CategoryAvailability,
			Cooldown:    cooldown,
			Enabled:     true,
		},
		{
			Name:        "High CPU Usage",
			Description: "CPU usage is above threshold",
			Metric:      MetricCPUUsage,
			Operator:    OpGreaterThan,
			Threshold:   t.CPUPercent,
			Severity:    SeverityHigh,
			Category:    CategorySystem,
			Escalation:  &EscalationTier{Operator: OpGreaterThan, Threshold: t.CPUCriticalPercent, Severity: SeverityCritical},
			Cooldown:    cooldown,
			Enabled:     true,
		},
		{
			Name:        "High Memory Usage",
			Description: "Memory usage is above threshold",
			Metric:      MetricMemoryUsage,
			Operator:    OpGreaterThan,
			Threshold:   t.MemoryPercent,
			Severity:    SeverityHigh,
			Category:    CategorySystem,
			Escalation:  &EscalationTier{Operator: OpGreaterThan, Threshold: t.MemoryCriticalPercent, Severity: SeverityCritical},
			Cooldown:    cooldown,
			Enabled:     true,
		},
		{
			Name:        "High Disk Usage",
			Description: "Disk usage is above threshold",
			Metric:      MetricDiskUsage,
			Operator:    OpGreaterThan,
			Threshold:   t.DiskPercent,
			Severity:    SeverityHigh,
			Category:    CategorySystem,
			Escalation:  &EscalationTier{Operator: OpGreaterThan, Threshold: t.DiskCriticalPercent, Severity: SeverityCritical},
			Cooldown:    cooldown,
			Enabled:     true,
		},
		{
			Name:        "High Database Connections",
			Description: "Active database connections are close to the pool maximum",
			Metric:      MetricDBConnectionUsage,
			Operator:    OpGreaterThan,
			Threshold:   t.DBConnectionPercent,
			Severity:    SeverityHigh,
			Category:    CategoryDatabase,
			Cooldown:    cooldown,
			Enabled:     true,
		},
		{
			Name:        "Low Cache Hit Rate",
			Description: "Cache hit rate is below threshold",
			Metric:      MetricCacheHitRate,
			Operator:    OpLessThan,
			Threshold:   t.CacheHitRate,
			Severity:    SeverityMedium,
			Category:    CategoryCache,
			Escalation:  &EscalationTier{Operator: OpLessThan, Threshold: t.CacheHitRateCritical, Severity: SeverityHigh},
			Cooldown:    cooldown,
			Enabled:     true,
		},
	}
}

// ruleFile is the on-disk YAML layout of additional rules
type ruleFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

// RuleSpec is the textual form of a rule used by rule files and the API.
// Durations are Go duration strings.
type RuleSpec struct {
	Name        string          `yaml:"name" json:"name"`
	Description string          `yaml:"description" json:"description"`
	Metric      string          `yaml:"metric" json:"metric"`
	Operator    string          `yaml:"operator" json:"operator"`
	Threshold   float64         `yaml:"threshold" json:"threshold"`
	Severity    string          `yaml:"severity" json:"severity"`
	Category    string          `yaml:"category" json:"category"`
	Cooldown    string          `yaml:"cooldown" json:"cooldown"`
	Window      string          `yaml:"window" json:"window"`
	Enabled     *bool           `yaml:"enabled" json:"enabled"`
	Escalation  *EscalationSpec `yaml:"escalation" json:"escalation"`
}

// EscalationSpec is the textual form of an EscalationTier
type EscalationSpec struct {
	Operator  string  `yaml:"operator" json:"operator"`
	Threshold float64 `yaml:"threshold" json:"threshold"`
	Severity  string  `yaml:"severity" json:"severity"`
}

// Rule converts the entry into a validated rule. Rules are enabled unless
// Enabled is explicitly false.
func (rs RuleSpec) Rule(defaultCooldown time.Duration) (AlertRule, error) {
	rule := AlertRule{
		Name:        rs.Name,
		Description: rs.Description,
		Metric:      MetricKey(rs.Metric),
		Operator:    Operator(rs.Operator),
		Threshold:   rs.Threshold,
		Severity:    AlertSeverity(rs.Severity),
		Category:    AlertCategory(rs.Category),
		Cooldown:    defaultCooldown,
		Enabled:     rs.Enabled == nil || *rs.Enabled,
	}

	if rs.Cooldown != "" {
		d, err := time.ParseDuration(rs.Cooldown)
		if err != nil {
			return AlertRule{}, fmt.Errorf("%w: invalid cooldown: %v", ErrInvalidRule, err)
		}
		rule.Cooldown = d
	}
	if rs.Window != "" {
		d, err := time.ParseDuration(rs.Window)
		if err != nil {
			return AlertRule{}, fmt.Errorf("%w: invalid window: %v", ErrInvalidRule, err)
		}
		rule.Window = d
	}
	if rs.Escalation != nil {
		rule.Escalation = &EscalationTier{
			Operator:  Operator(rs.Escalation.Operator),
			Threshold: rs.Escalation.Threshold,
			Severity:  AlertSeverity(rs.Escalation.Severity),
		}
	}

	if err := rule.Validate(); err != nil {
		return AlertRule{}, err
	}
	return rule, nil
}

// ParseRules decodes a YAML rules document. Every rule is validated; the first
// invalid rule aborts the load.
func ParseRules(data []byte, defaultCooldown time.Duration) ([]AlertRule, error) {
	var doc ruleFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	rules := make([]AlertRule, 0, len(doc.Rules))
	for i, entry := range doc.Rules {
		rule, err := entry.Rule(defaultCooldown)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, entry.Name, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// LoadRulesFile reads and parses a YAML rules file
func LoadRulesFile(path string, defaultCooldown time.Duration) ([]AlertRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	return ParseRules(data, defaultCooldown)
}

// MergeRules overrides base rules by name and appends new ones, keeping base order
func MergeRules(base, extra []AlertRule) []AlertRule {
	merged := make([]AlertRule, len(base))
	copy(merged, base)

	index := make(map[string]int, len(merged))
	for i, r := range merged {
		index[r.Name] = i
	}
	for _, r := range extra {
		if i, ok := index[r.Name]; ok {
			merged[i] = r
			continue
		}
		index[r.Name] = len(merged)
		merged = append(merged, r)
	}
	return merged
}
