package alerting

import (
	"sort"
	"time"
)

const (
	recentAlertsLimit = 10
	topAlertsLimit    = 10
)

// Statistics summarizes alerts raised within the last windowHours.
// Active counts every open alert, acknowledged ones included.
func (s *Store) Statistics(windowHours int) AlertStatistics {
	if windowHours <= 0 {
		windowHours = 24
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	since := s.now().Add(-time.Duration(windowHours) * time.Hour)

	stats := AlertStatistics{
		WindowHours:  windowHours,
		BySeverity:   make(map[AlertSeverity]int, len(Severities)),
		ByCategory:   make(map[AlertCategory]int),
		RecentAlerts: make([]*Alert, 0, recentAlertsLimit),
		TopAlerts:    make([]AlertCount, 0),
	}
	for _, sev := range Severities {
		stats.BySeverity[sev] = 0
	}

	counts := make(map[string]int)
	var resolutionTotal time.Duration
	resolvedWithTime := 0

	for _, a := range s.sortedLocked() {
		if a.Timestamp.Before(since) {
			continue
		}

		stats.Total++
		stats.BySeverity[a.Severity]++
		stats.ByCategory[a.Category]++
		counts[a.Name]++

		switch a.Status {
		case StatusActive:
			stats.Active++
		case StatusAcknowledged:
			stats.Active++
			stats.Acknowledged++
		case StatusSuppressed:
			stats.Suppressed++
		case StatusResolved:
			stats.Resolved++
			if a.ResolvedAt != nil {
				resolutionTotal += a.ResolvedAt.Sub(a.Timestamp)
				resolvedWithTime++
			}
		}

		if len(stats.RecentAlerts) < recentAlertsLimit {
			stats.RecentAlerts = append(stats.RecentAlerts, a.clone())
		}
	}

	if resolvedWithTime > 0 {
		mean := resolutionTotal / time.Duration(resolvedWithTime)
		stats.AverageResolutionTime = mean.Minutes()
	}

	for name, count := range counts {
		stats.TopAlerts = append(stats.TopAlerts, AlertCount{Name: name, Count: count})
	}
	sort.Slice(stats.TopAlerts, func(i, j int) bool {
		if stats.TopAlerts[i].Count != stats.TopAlerts[j].Count {
			return stats.TopAlerts[i].Count > stats.TopAlerts[j].Count
		}
		return stats.TopAlerts[i].Name < stats.TopAlerts[j].Name
	})
	if len(stats.TopAlerts) > topAlertsLimit {
		stats.TopAlerts = stats.TopAlerts[:topAlertsLimit]
	}

	return stats
}
