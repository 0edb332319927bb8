package analytics

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/frostdev-ops/erp-backend-go/internal/core/alerting"
)

// PerformanceMetrics represents request-path performance over a window
type PerformanceMetrics struct {
	RequestCount     int64             `json:"request_count"`
	ErrorCount       int64             `json:"error_count"`
	AverageLatencyMs float64           `json:"average_latency_ms"`
	P50LatencyMs     float64           `json:"p50_latency_ms"`
	P95LatencyMs     float64           `json:"p95_latency_ms"`
	P99LatencyMs     float64           `json:"p99_latency_ms"`
	MinLatencyMs     float64           `json:"min_latency_ms"`
	MaxLatencyMs     float64           `json:"max_latency_ms"`
	Throughput       float64           `json:"throughput"` // requests per second
	ErrorRate        float64           `json:"error_rate"` // percent
	CacheHitRate     *float64          `json:"cache_hit_rate,omitempty"`
	MostActive       []EndpointMetrics `json:"most_active_endpoints"`
	Slowest          []EndpointMetrics `json:"slowest_endpoints"`
	Fastest          []EndpointMetrics `json:"fastest_endpoints"`
	Period           time.Duration     `json:"period"`
	Timestamp        time.Time         `json:"timestamp"`
}

// EndpointMetrics represents metrics for a specific endpoint within a window
type EndpointMetrics struct {
	Path             string        `json:"path"`
	Method           string        `json:"method"`
	RequestCount     int64         `json:"request_count"`
	ErrorCount       int64         `json:"error_count"`
	AverageLatencyMs float64       `json:"average_latency_ms"`
	MaxLatencyMs     float64       `json:"max_latency_ms"`
	StatusCodes      map[int]int64 `json:"status_codes"`
	LastAccessed     time.Time     `json:"last_accessed"`
}

// RequestData represents individual request data for analysis
type RequestData struct {
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	StatusCode int           `json:"status_code"`
	Duration   time.Duration `json:"duration"`
	Timestamp  time.Time     `json:"timestamp"`
}

type cacheAccess struct {
	at  time.Time
	hit bool
}

// PerformanceTracker keeps a bounded ring of recent requests and cache lookups
type PerformanceTracker struct {
	mu            sync.RWMutex
	requests      []RequestData
	cacheAccesses []cacheAccess
	maxDataPoints int
	rankingSize   int
	now           func() time.Time
}

// NewPerformanceTracker creates a new performance tracker
func NewPerformanceTracker(maxDataPoints, rankingSize int) *PerformanceTracker {
	if maxDataPoints <= 0 {
		maxDataPoints = 10000
	}
	if rankingSize <= 0 {
		rankingSize = 5
	}
	return &PerformanceTracker{
		requests:      make([]RequestData, 0, 256),
		cacheAccesses: make([]cacheAccess, 0, 256),
		maxDataPoints: maxDataPoints,
		rankingSize:   rankingSize,
		now:           time.Now,
	}
}

// RecordRequest records a request for performance analysis
func (pt *PerformanceTracker) RecordRequest(method, path string, statusCode int, duration time.Duration) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.requests = append(pt.requests, RequestData{
		Method:     method,
		Path:       path,
		StatusCode: statusCode,
		Duration:   duration,
		Timestamp:  pt.now(),
	})

	// Remove old requests if we exceed max data points
	if over := len(pt.requests) - pt.maxDataPoints; over > 0 {
		pt.requests = append(pt.requests[:0], pt.requests[over:]...)
	}
}

// RecordCacheAccess records one cache lookup
func (pt *PerformanceTracker) RecordCacheAccess(hit bool) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.cacheAccesses = append(pt.cacheAccesses, cacheAccess{at: pt.now(), hit: hit})
	if over := len(pt.cacheAccesses) - pt.maxDataPoints; over > 0 {
		pt.cacheAccesses = append(pt.cacheAccesses[:0], pt.cacheAccesses[over:]...)
	}
}

// GetPerformanceMetrics calculates performance metrics for the specified period
func (pt *PerformanceTracker) GetPerformanceMetrics(period time.Duration) *PerformanceMetrics {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	now := pt.now()
	cutoff := now.Add(-period)

	metrics := &PerformanceMetrics{
		Period:       period,
		Timestamp:    now,
		CacheHitRate: pt.cacheHitRateSince(cutoff),
		MostActive:   []EndpointMetrics{},
		Slowest:      []EndpointMetrics{},
		Fastest:      []EndpointMetrics{},
	}

	var relevant []RequestData
	for _, req := range pt.requests {
		if req.Timestamp.After(cutoff) {
			relevant = append(relevant, req)
		}
	}
	if len(relevant) == 0 {
		return metrics
	}

	var totalDuration time.Duration
	var errorCount int64
	durations := make([]time.Duration, len(relevant))
	for i, req := range relevant {
		totalDuration += req.Duration
		durations[i] = req.Duration
		if req.StatusCode >= 400 {
			errorCount++
		}
	}

	metrics.RequestCount = int64(len(relevant))
	metrics.ErrorCount = errorCount
	metrics.AverageLatencyMs = toMillis(totalDuration / time.Duration(len(relevant)))
	metrics.ErrorRate = float64(errorCount) / float64(len(relevant)) * 100
	if period > 0 {
		metrics.Throughput = float64(len(relevant)) / period.Seconds()
	}

	sort.Slice(durations, func(i, j int) bool {
		return durations[i] < durations[j]
	})
	metrics.MinLatencyMs = toMillis(durations[0])
	metrics.MaxLatencyMs = toMillis(durations[len(durations)-1])
	metrics.P50LatencyMs = toMillis(calculatePercentile(durations, 0.5))
	metrics.P95LatencyMs = toMillis(calculatePercentile(durations, 0.95))
	metrics.P99LatencyMs = toMillis(calculatePercentile(durations, 0.99))

	metrics.MostActive, metrics.Slowest, metrics.Fastest = pt.rankEndpoints(relevant)
	return metrics
}

// GetPerformanceStats condenses the window into the snapshot the rule evaluator consumes.
// Averages are omitted when no request was seen.
func (pt *PerformanceTracker) GetPerformanceStats(window time.Duration) alerting.PerformanceSnapshot {
	m := pt.GetPerformanceMetrics(window)

	snapshot := alerting.PerformanceSnapshot{
		RequestCount:        m.RequestCount,
		CacheHitRatePercent: m.CacheHitRate,
		Timestamp:           m.Timestamp,
	}
	if m.RequestCount > 0 {
		snapshot.AverageResponseTimeMs = alerting.Float(m.AverageLatencyMs)
		snapshot.ErrorRatePercent = alerting.Float(m.ErrorRate)
	}
	return snapshot
}

// rankEndpoints returns the most active endpoints, the slowest endpoints, and
// the fastest among the most active ones
func (pt *PerformanceTracker) rankEndpoints(requests []RequestData) (mostActive, slowest, fastest []EndpointMetrics) {
	byKey := make(map[string]*EndpointMetrics)
	totals := make(map[string]time.Duration)

	for _, req := range requests {
		key := req.Method + ":" + req.Path
		ep := byKey[key]
		if ep == nil {
			ep = &EndpointMetrics{Path: req.Path, Method: req.Method, StatusCodes: make(map[int]int64)}
			byKey[key] = ep
		}
		ep.RequestCount++
		ep.StatusCodes[req.StatusCode]++
		if req.StatusCode >= 400 {
			ep.ErrorCount++
		}
		if ms := toMillis(req.Duration); ms > ep.MaxLatencyMs {
			ep.MaxLatencyMs = ms
		}
		if req.Timestamp.After(ep.LastAccessed) {
			ep.LastAccessed = req.Timestamp
		}
		totals[key] += req.Duration
	}

	all := make([]EndpointMetrics, 0, len(byKey))
	for key, ep := range byKey {
		ep.AverageLatencyMs = toMillis(totals[key] / time.Duration(ep.RequestCount))
		all = append(all, *ep)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].RequestCount != all[j].RequestCount {
			return all[i].RequestCount > all[j].RequestCount
		}
		return endpointKey(all[i]) < endpointKey(all[j])
	})
	mostActive = append([]EndpointMetrics(nil), all[:min(pt.rankingSize, len(all))]...)

	fastest = append([]EndpointMetrics(nil), mostActive...)
	sort.SliceStable(fastest, func(i, j int) bool {
		return fastest[i].AverageLatencyMs < fastest[j].AverageLatencyMs
	})

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].AverageLatencyMs > all[j].AverageLatencyMs
	})
	slowest = all[:min(pt.rankingSize, len(all))]

	return mostActive, slowest, fastest
}

func endpointKey(ep EndpointMetrics) string {
	return ep.Method + ":" + ep.Path
}

func (pt *PerformanceTracker) cacheHitRateSince(cutoff time.Time) *float64 {
	var hits, total int
	for _, a := range pt.cacheAccesses {
		if !a.at.After(cutoff) {
			continue
		}
		total++
		if a.hit {
			hits++
		}
	}
	if total == 0 {
		return nil
	}
	rate := float64(hits) / float64(total) * 100
	return &rate
}

// ClearOldData removes data older than the retention period
func (pt *PerformanceTracker) ClearOldData(retentionPeriod time.Duration) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	cutoff := pt.now().Add(-retentionPeriod)

	kept := pt.requests[:0]
	for _, req := range pt.requests {
		if req.Timestamp.After(cutoff) {
			kept = append(kept, req)
		}
	}
	pt.requests = kept

	keptAccesses := pt.cacheAccesses[:0]
	for _, a := range pt.cacheAccesses {
		if a.at.After(cutoff) {
			keptAccesses = append(keptAccesses, a)
		}
	}
	pt.cacheAccesses = keptAccesses
}

// calculatePercentile calculates the specified percentile from sorted durations
func calculatePercentile(sortedDurations []time.Duration, percentile float64) time.Duration {
	if len(sortedDurations) == 0 {
		return 0
	}

	if percentile <= 0 {
		return sortedDurations[0]
	}

	if percentile >= 1 {
		return sortedDurations[len(sortedDurations)-1]
	}

	index := percentile * float64(len(sortedDurations)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))

	if lower == upper {
		return sortedDurations[lower]
	}

	// Linear interpolation
	weight := index - float64(lower)
	lowerValue := float64(sortedDurations[lower])
	upperValue := float64(sortedDurations[upper])

	return time.Duration(lowerValue + weight*(upperValue-lowerValue))
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
