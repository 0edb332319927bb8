package alerting

import (
	"fmt"
	"strings"
	"time"
)

// AlertSeverity represents the severity level of an alert
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "LOW"
	SeverityMedium   AlertSeverity = "MEDIUM"
	SeverityHigh     AlertSeverity = "HIGH"
	SeverityCritical AlertSeverity = "CRITICAL"
)

// Severities lists every severity from least to most severe
var Severities = []AlertSeverity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Rank orders severities so escalation tiers can be compared
func (s AlertSeverity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// Valid reports whether s is a known severity
func (s AlertSeverity) Valid() bool {
	return s.Rank() > 0
}

// AlertCategory classifies what kind of condition an alert describes
type AlertCategory string

const (
	CategorySystem       AlertCategory = "SYSTEM"
	CategoryPerformance  AlertCategory = "PERFORMANCE"
	CategorySecurity     AlertCategory = "SECURITY"
	CategoryBusiness     AlertCategory = "BUSINESS"
	CategoryAvailability AlertCategory = "AVAILABILITY"
	CategoryDatabase     AlertCategory = "DATABASE"
	CategoryCache        AlertCategory = "CACHE"
)

// Categories lists every known category
var Categories = []AlertCategory{
	CategorySystem,
	CategoryPerformance,
	CategorySecurity,
	CategoryBusiness,
	CategoryAvailability,
	CategoryDatabase,
	CategoryCache,
}

// Valid reports whether c is a known category
func (c AlertCategory) Valid() bool {
	switch c {
	case CategorySystem, CategoryPerformance, CategorySecurity, CategoryBusiness,
		CategoryAvailability, CategoryDatabase, CategoryCache:
		return true
	}
	return false
}

// AlertStatus is the lifecycle state of an alert
type AlertStatus string

const (
	StatusActive       AlertStatus = "ACTIVE"
	StatusAcknowledged AlertStatus = "ACKNOWLEDGED"
	StatusResolved     AlertStatus = "RESOLVED"
	StatusSuppressed   AlertStatus = "SUPPRESSED"
)

// Valid reports whether s is a known status
func (s AlertStatus) Valid() bool {
	switch s {
	case StatusActive, StatusAcknowledged, StatusResolved, StatusSuppressed:
		return true
	}
	return false
}

// ParseSeverity accepts any casing of a severity name
func ParseSeverity(s string) (AlertSeverity, error) {
	sev := AlertSeverity(strings.ToUpper(strings.TrimSpace(s)))
	if !sev.Valid() {
		return "", fmt.Errorf("%w: unknown severity %q", ErrInvalidRequest, s)
	}
	return sev, nil
}

// ParseCategory accepts any casing of a category name
func ParseCategory(s string) (AlertCategory, error) {
	cat := AlertCategory(strings.ToUpper(strings.TrimSpace(s)))
	if !cat.Valid() {
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidRequest, s)
	}
	return cat, nil
}

// ParseStatus accepts any casing of a status name
func ParseStatus(s string) (AlertStatus, error) {
	st := AlertStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, s)
	}
	return st, nil
}

// Threshold describes the breach that produced an alert
type Threshold struct {
	Metric   string        `json:"metric" yaml:"metric"`
	Operator Operator      `json:"operator" yaml:"operator"`
	Value    float64       `json:"value" yaml:"value"`
	Severity AlertSeverity `json:"severity" yaml:"severity"`
}

// Alert represents a detected threshold breach or operator-raised condition
type Alert struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Source      string        `json:"source"`
	Category    AlertCategory `json:"category"`
	Severity    AlertSeverity `json:"severity"`

	CurrentValue *float64   `json:"current_value,omitempty"`
	Threshold    *Threshold `json:"threshold,omitempty"`

	Status          AlertStatus `json:"status"`
	Timestamp       time.Time   `json:"timestamp"`
	AcknowledgedBy  string      `json:"acknowledged_by,omitempty"`
	AcknowledgedAt  *time.Time  `json:"acknowledged_at,omitempty"`
	ResolvedBy      string      `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time  `json:"resolved_at,omitempty"`
	SuppressedUntil *time.Time  `json:"suppressed_until,omitempty"`
	Notes           string      `json:"notes,omitempty"`

	Tags          []string               `json:"tags"`
	Metadata      map[string]interface{} `json:"metadata"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
}

// IsOpen reports whether the alert shows up in active queries
func (a *Alert) IsOpen() bool {
	return a.Status == StatusActive || a.Status == StatusAcknowledged
}

// clone returns a deep copy so callers never share state with the store
func (a *Alert) clone() *Alert {
	c := *a
	if a.CurrentValue != nil {
		v := *a.CurrentValue
		c.CurrentValue = &v
	}
	if a.Threshold != nil {
		t := *a.Threshold
		c.Threshold = &t
	}
	c.AcknowledgedAt = copyTime(a.AcknowledgedAt)
	c.ResolvedAt = copyTime(a.ResolvedAt)
	c.SuppressedUntil = copyTime(a.SuppressedUntil)
	c.Tags = append([]string(nil), a.Tags...)
	c.Metadata = make(map[string]interface{}, len(a.Metadata))
	for k, v := range a.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// CreateRequest carries everything needed to raise an alert.
// Name is the deduplication key together with Source.
type CreateRequest struct {
	Name          string                 `json:"name" binding:"required"`
	Description   string                 `json:"description"`
	Severity      AlertSeverity          `json:"severity"`
	Category      AlertCategory          `json:"category"`
	Source        string                 `json:"source"`
	CurrentValue  *float64               `json:"current_value,omitempty"`
	Threshold     *Threshold             `json:"threshold,omitempty"`
	Tags          []string               `json:"tags,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`

	// Cooldown overrides the store default when positive
	Cooldown time.Duration `json:"-"`
}

// Validate normalizes casing and rejects malformed requests
func (r *CreateRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}

	if r.Severity == "" {
		r.Severity = SeverityMedium
	}
	sev, err := ParseSeverity(string(r.Severity))
	if err != nil {
		return err
	}
	r.Severity = sev

	if r.Category == "" {
		r.Category = CategorySystem
	}
	cat, err := ParseCategory(string(r.Category))
	if err != nil {
		return err
	}
	r.Category = cat

	if r.Threshold != nil && r.Threshold.Operator != "" {
		if _, err := ParseOperator(string(r.Threshold.Operator)); err != nil {
			return err
		}
	}
	return nil
}

// AlertFilter selects alerts in GetAlerts. Zero values mean "any".
type AlertFilter struct {
	Severity AlertSeverity `form:"severity"`
	Category AlertCategory `form:"category"`
	Status   AlertStatus   `form:"status"`
	Source   string        `form:"source"`
	Limit    int           `form:"limit"`
	Offset   int           `form:"offset"`
}

func (f AlertFilter) matches(a *Alert) bool {
	if f.Severity != "" && a.Severity != f.Severity {
		return false
	}
	if f.Category != "" && a.Category != f.Category {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Source != "" && a.Source != f.Source {
		return false
	}
	return true
}

// AlertPage is a filtered, paginated slice of alerts
type AlertPage struct {
	Alerts  []*Alert `json:"alerts"`
	Total   int      `json:"total"`
	HasMore bool     `json:"has_more"`
}

// AlertCount pairs an alert name with its number of occurrences
type AlertCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// AlertStatistics summarizes alerts raised within a time window
type AlertStatistics struct {
	WindowHours  int                   `json:"window_hours"`
	Total        int                   `json:"total"`
	Active       int                   `json:"active"`
	Acknowledged int                   `json:"acknowledged"`
	Suppressed   int                   `json:"suppressed"`
	Resolved     int                   `json:"resolved"`
	BySeverity   map[AlertSeverity]int `json:"by_severity"`
	ByCategory   map[AlertCategory]int `json:"by_category"`
	RecentAlerts []*Alert              `json:"recent_alerts"`
	TopAlerts    []AlertCount          `json:"top_alerts"`

	// AverageResolutionTime is expressed in minutes
	AverageResolutionTime float64 `json:"average_resolution_time"`
}
