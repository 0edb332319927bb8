package metrics

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CheckStatus is the outcome of a single health check
type CheckStatus string

const (
	CheckUp        CheckStatus = "UP"
	CheckDown      CheckStatus = "DOWN"
	CheckDegraded  CheckStatus = "DEGRADED"
	CheckUnhealthy CheckStatus = "UNHEALTHY"
)

// OverallStatus is the aggregated health of the process
type OverallStatus string

const (
	StatusHealthy   OverallStatus = "HEALTHY"
	StatusDegraded  OverallStatus = "DEGRADED"
	StatusUnhealthy OverallStatus = "UNHEALTHY"
)

// CheckResult represents the health of one component
type CheckResult struct {
	Name           string                 `json:"name"`
	Status         CheckStatus            `json:"status"`
	Message        string                 `json:"message,omitempty"`
	ResponseTimeMs *float64               `json:"response_time_ms,omitempty"`
	Critical       bool                   `json:"critical"`
	Details        map[string]interface{} `json:"details,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
}

// HealthReport represents the overall health report
type HealthReport struct {
	Status          OverallStatus          `json:"status"`
	Score           float64                `json:"score"`
	Message         string                 `json:"message"`
	Timestamp       time.Time              `json:"timestamp"`
	ExecutionTimeMs float64                `json:"execution_time_ms"`
	Checks          []CheckResult          `json:"checks"`
	SystemInfo      map[string]interface{} `json:"system_info"`
}

// FailedChecks returns the names of checks that are not UP
func (r HealthReport) FailedChecks() []string {
	failed := make([]string, 0)
	for _, c := range r.Checks {
		if c.Status != CheckUp {
			failed = append(failed, c.Name)
		}
	}
	return failed
}

// NewCheckResult creates a check result stamped with the current time
func NewCheckResult(name string, status CheckStatus, message string) CheckResult {
	return CheckResult{
		Name:      name,
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
		Details:   make(map[string]interface{}),
	}
}

// WithDetail adds a single detail to a check result
func (c CheckResult) WithDetail(key string, value interface{}) CheckResult {
	details := make(map[string]interface{}, len(c.Details)+1)
	for k, v := range c.Details {
		details[k] = v
	}
	details[key] = value
	c.Details = details
	return c
}

// WithResponseTime records how long the check took
func (c CheckResult) WithResponseTime(d time.Duration) CheckResult {
	ms := float64(d) / float64(time.Millisecond)
	c.ResponseTimeMs = &ms
	return c
}

// checkWeight is the score deduction applied to a failing check of a given class
type checkWeight struct {
	down     float64
	degraded float64
	critical bool
}

var (
	databaseWeight = checkWeight{down: 50, degraded: 20, critical: true}
	cacheWeight    = checkWeight{down: 20, degraded: 10}
	resourceWeight = checkWeight{down: 25, degraded: 10}
	defaultWeight  = checkWeight{down: 15, degraded: 5}
)

func weightFor(name string) checkWeight {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "database"), strings.Contains(n, "sqlite"), n == "db":
		return databaseWeight
	case strings.Contains(n, "cache"), strings.Contains(n, "redis"):
		return cacheWeight
	case strings.Contains(n, "system_resources"), strings.Contains(n, "disk"),
		strings.Contains(n, "memory"), strings.Contains(n, "cpu"):
		return resourceWeight
	}
	return defaultWeight
}

const (
	slowExecutionMs     = 500
	verySlowExecutionMs = 1000
)

// slowness is the deduction for a check or run that took longer than the
// slow thresholds. Critical checks cost twice as much.
func slowness(ms float64, critical bool) float64 {
	var d float64
	switch {
	case ms > verySlowExecutionMs:
		d = 10
	case ms > slowExecutionMs:
		d = 5
	}
	if critical {
		d *= 2
	}
	return d
}

// Aggregate derives the overall status and a 0-100 score from check results.
// Score bands decide the status unless a critical check is DOWN, which always
// yields UNHEALTHY. Slow checks and a slow overall run deduct further.
func Aggregate(checks []CheckResult, executionDurationMs float64) (OverallStatus, float64) {
	score := 100.0
	criticalDown := false

	for _, c := range checks {
		w := weightFor(c.Name)
		critical := w.critical || c.Critical
		switch c.Status {
		case CheckUp:
		case CheckDegraded:
			score -= w.degraded
		default:
			score -= w.down
		}
		if c.ResponseTimeMs != nil {
			score -= slowness(*c.ResponseTimeMs, critical)
		}
		if c.Status == CheckDown && critical {
			criticalDown = true
		}
	}

	score -= slowness(executionDurationMs, false)

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	if criticalDown {
		return StatusUnhealthy, score
	}
	switch {
	case score >= 80:
		return StatusHealthy, score
	case score >= 50:
		return StatusDegraded, score
	}
	return StatusUnhealthy, score
}

// CheckFunc performs a single component health check
type CheckFunc func(ctx context.Context) CheckResult

type registeredCheck struct {
	name     string
	critical bool
	fn       CheckFunc
}

// HealthChecker runs registered checks concurrently and aggregates the results
type HealthChecker struct {
	mu      sync.RWMutex
	checks  map[string]registeredCheck
	timeout time.Duration
	logger  *logrus.Logger
	started time.Time
}

// NewHealthChecker creates a health checker that bounds every check by timeout
func NewHealthChecker(timeout time.Duration, logger *logrus.Logger) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &HealthChecker{
		checks:  make(map[string]registeredCheck),
		timeout: timeout,
		logger:  logger,
		started: time.Now(),
	}
}

// SetDatabaseChecker sets the database health check function
func (h *HealthChecker) SetDatabaseChecker(check CheckFunc) {
	h.Register("database", true, check)
}

// SetCacheChecker sets the cache health check function
func (h *HealthChecker) SetCacheChecker(check CheckFunc) {
	h.Register("cache", false, check)
}

// SetSystemResourceChecker sets the system resource health check function
func (h *HealthChecker) SetSystemResourceChecker(check CheckFunc) {
	h.Register("system_resources", false, check)
}

// Register adds or replaces a named check
func (h *HealthChecker) Register(name string, critical bool, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = registeredCheck{name: name, critical: critical, fn: check}
}

// PerformHealthCheck runs every check and returns the aggregated report
func (h *HealthChecker) PerformHealthCheck(ctx context.Context) HealthReport {
	start := time.Now()

	h.mu.RLock()
	checks := make([]registeredCheck, 0, len(h.checks))
	for _, c := range h.checks {
		checks = append(checks, c)
	}
	h.mu.RUnlock()
	sort.Slice(checks, func(i, j int) bool { return checks[i].name < checks[j].name })

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func(i int, c registeredCheck) {
			defer wg.Done()
			result := RunCheckWithTimeout(ctx, h.timeout, c.name, c.fn)
			result.Name = c.name
			result.Critical = result.Critical || c.critical
			results[i] = result
		}(i, c)
	}
	wg.Wait()

	elapsed := time.Since(start)
	executionMs := float64(elapsed) / float64(time.Millisecond)
	status, score := Aggregate(results, executionMs)

	report := HealthReport{
		Status:          status,
		Score:           score,
		Message:         summarize(status, results),
		Timestamp:       time.Now(),
		ExecutionTimeMs: executionMs,
		Checks:          results,
		SystemInfo:      h.gatherSystemInfo(),
	}

	if status != StatusHealthy {
		h.logger.WithFields(logrus.Fields{
			"status":        status,
			"score":         score,
			"failed_checks": report.FailedChecks(),
		}).Warn("System health degraded")
	}
	return report
}

func summarize(status OverallStatus, results []CheckResult) string {
	failed := 0
	for _, r := range results {
		if r.Status != CheckUp {
			failed++
		}
	}
	if failed == 0 {
		return fmt.Sprintf("All %d checks passing", len(results))
	}
	return fmt.Sprintf("%d/%d checks failing, system %s", failed, len(results), strings.ToLower(string(status)))
}

func (h *HealthChecker) gatherSystemInfo() map[string]interface{} {
	return map[string]interface{}{
		"uptime":     time.Since(h.started).String(),
		"goroutines": runtime.NumGoroutine(),
		"go_version": runtime.Version(),
	}
}

// RunCheckWithTimeout runs check and reports DOWN if it does not finish within
// timeout or panics
func RunCheckWithTimeout(ctx context.Context, timeout time.Duration, name string, check CheckFunc) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resultChan := make(chan CheckResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultChan <- NewCheckResult(name, CheckDown, fmt.Sprintf("health check panicked: %v", r))
			}
		}()
		resultChan <- check(ctx)
	}()

	select {
	case result := <-resultChan:
		if result.ResponseTimeMs == nil {
			result = result.WithResponseTime(time.Since(start))
		}
		if result.Timestamp.IsZero() {
			result.Timestamp = time.Now()
		}
		return result
	case <-ctx.Done():
		return NewCheckResult(name, CheckDown, "Health check timed out").
			WithDetail("timeout", timeout.String()).
			WithResponseTime(time.Since(start))
	}
}
