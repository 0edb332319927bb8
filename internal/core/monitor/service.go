package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/erp-backend-go/internal/core/alerting"
	"github.com/frostdev-ops/erp-backend-go/internal/core/metrics"
)

// AlertEngine is the part of the alert manager the scheduler drives
type AlertEngine interface {
	Evaluate(ctx context.Context, perf *alerting.PerformanceSnapshot, health *metrics.HealthReport, infra *alerting.InfrastructureSnapshot) []*alerting.Alert
	SweepSuppressions(now time.Time) []*alerting.Alert
	PruneRetention(now time.Time, retention time.Duration) int
}

// PerformanceStore is the request tracker: a snapshot source that also ages out its data
type PerformanceStore interface {
	alerting.PerformanceSource
	ClearOldData(retention time.Duration)
}

// MonitoringServiceConfig contains configuration for the monitoring service
type MonitoringServiceConfig struct {
	Enabled              bool
	Interval             time.Duration
	PerformanceWindow    time.Duration
	AlertRetention       time.Duration
	RetentionSchedule    string
	PerformanceRetention time.Duration
}

// DefaultMonitoringServiceConfig returns the stock scheduler settings
func DefaultMonitoringServiceConfig() MonitoringServiceConfig {
	return MonitoringServiceConfig{
		Enabled:              true,
		Interval:             time.Minute,
		PerformanceWindow:    5 * time.Minute,
		AlertRetention:       7 * 24 * time.Hour,
		RetentionSchedule:    "@every 1h",
		PerformanceRetention: 24 * time.Hour,
	}
}

// MonitoringServiceDeps are the collaborators a scheduler tick pulls from.
// Performance, Health and Infrastructure may be nil.
type MonitoringServiceDeps struct {
	Engine         AlertEngine
	Performance    PerformanceStore
	Health         alerting.HealthSource
	Infrastructure alerting.InfrastructureSource
	Metrics        metrics.MetricsCollector
}

// MonitoringService is the periodic scheduler: every interval it collects
// fresh snapshots, evaluates the alert rules and sweeps expired suppressions.
// Retention pruning runs on a separate cron schedule.
type MonitoringService struct {
	config MonitoringServiceConfig
	deps   MonitoringServiceDeps
	logger *logrus.Logger
	now    func() time.Time

	cron     *cron.Cron
	stopChan chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
	mu       sync.RWMutex

	lastTick    time.Time
	lastTickErr error
}

// NewMonitoringService creates a new monitoring service
func NewMonitoringService(cfg MonitoringServiceConfig, deps MonitoringServiceDeps, logger *logrus.Logger) (*MonitoringService, error) {
	if deps.Engine == nil {
		return nil, fmt.Errorf("monitoring service requires an alert engine")
	}
	defaults := DefaultMonitoringServiceConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.PerformanceWindow <= 0 {
		cfg.PerformanceWindow = defaults.PerformanceWindow
	}
	if cfg.AlertRetention <= 0 {
		cfg.AlertRetention = defaults.AlertRetention
	}
	if cfg.RetentionSchedule == "" {
		cfg.RetentionSchedule = defaults.RetentionSchedule
	}
	if cfg.PerformanceRetention <= 0 {
		cfg.PerformanceRetention = defaults.PerformanceRetention
	}
	if _, err := cron.ParseStandard(cfg.RetentionSchedule); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", cfg.RetentionSchedule, err)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoopCollector{}
	}

	return &MonitoringService{
		config: cfg,
		deps:   deps,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Start launches the evaluation loop and the retention job
func (s *MonitoringService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("monitoring service is already running")
	}

	if !s.config.Enabled {
		s.logger.Info("Monitoring service is disabled")
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.config.RetentionSchedule, s.runRetention); err != nil {
		return fmt.Errorf("failed to schedule retention job: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cron = c
	s.cancel = cancel
	s.stopChan = make(chan struct{})

	s.wg.Add(1)
	go s.evaluationWorker(loopCtx, s.stopChan)
	c.Start()

	s.running = true
	s.logger.WithFields(logrus.Fields{
		"interval":           s.config.Interval.String(),
		"retention_schedule": s.config.RetentionSchedule,
	}).Info("Monitoring service started")

	return nil
}

// Stop cancels the timer and waits for an in-flight tick to finish or abandon
func (s *MonitoringService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.logger.Info("Stopping monitoring service")

	close(s.stopChan)
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()

	s.running = false
	s.logger.Info("Monitoring service stopped")

	return nil
}

// IsRunning reports whether the loop is active
func (s *MonitoringService) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *MonitoringService) evaluationWorker(ctx context.Context, stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.logger.Debug("Evaluation worker started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one scheduler pass. A failing step is logged and the remaining
// steps still run; the returned error summarizes the failures.
func (s *MonitoringService) Tick(ctx context.Context) error {
	start := time.Now()
	var failed []string

	var perf *alerting.PerformanceSnapshot
	if s.deps.Performance != nil {
		if err := s.runStep("performance", func() error {
			snap := s.deps.Performance.GetPerformanceStats(s.config.PerformanceWindow)
			perf = &snap
			return nil
		}); err != nil {
			failed = append(failed, "performance")
		}
	}

	var health *metrics.HealthReport
	if s.deps.Health != nil {
		if err := s.runStep("health", func() error {
			report := s.deps.Health.PerformHealthCheck(ctx)
			health = &report
			s.deps.Metrics.RecordHealth(report)
			return nil
		}); err != nil {
			failed = append(failed, "health")
		}
	}

	var infra *alerting.InfrastructureSnapshot
	if s.deps.Infrastructure != nil {
		if err := s.runStep("infrastructure", func() error {
			snap, err := s.deps.Infrastructure.GetInfrastructureMetrics(ctx)
			if err != nil {
				return err
			}
			infra = &snap
			if snap.CPUPercent != nil && snap.MemoryPercent != nil && snap.DiskPercent != nil {
				s.deps.Metrics.RecordSystemResource(*snap.CPUPercent, *snap.MemoryPercent, *snap.DiskPercent)
			}
			return nil
		}); err != nil {
			failed = append(failed, "infrastructure")
		}
	}

	var raised []*alerting.Alert
	if err := s.runStep("evaluate", func() error {
		raised = s.deps.Engine.Evaluate(ctx, perf, health, infra)
		return nil
	}); err != nil {
		failed = append(failed, "evaluate")
	}

	var reactivated []*alerting.Alert
	if err := s.runStep("sweep", func() error {
		reactivated = s.deps.Engine.SweepSuppressions(s.now())
		return nil
	}); err != nil {
		failed = append(failed, "sweep")
	}

	duration := time.Since(start)
	var tickErr error
	if len(failed) > 0 {
		tickErr = fmt.Errorf("scheduler tick failed steps: %v", failed)
	}
	s.deps.Metrics.RecordSchedulerTick(tickErr == nil, duration)

	s.mu.Lock()
	s.lastTick = s.now()
	s.lastTickErr = tickErr
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"alerts_raised": len(raised),
		"reactivated":   len(reactivated),
		"failed_steps":  len(failed),
		"duration_ms":   duration.Milliseconds(),
	}).Debug("Scheduler tick completed")

	return tickErr
}

// runStep executes one tick step; a panic is converted into an error
func (s *MonitoringService) runStep(name string, step func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s step panicked: %v", name, r)
		}
		if err != nil {
			s.logger.WithError(err).WithField("step", name).Error("Scheduler step failed")
		}
	}()
	return step()
}

func (s *MonitoringService) runRetention() {
	now := s.now()
	var removed int
	err := s.runStep("retention", func() error {
		removed = s.deps.Engine.PruneRetention(now, s.config.AlertRetention)
		if s.deps.Performance != nil {
			s.deps.Performance.ClearOldData(s.config.PerformanceRetention)
		}
		return nil
	})
	if err != nil {
		return
	}
	s.logger.WithField("removed", removed).Info("Alert retention pruning completed")
}

// GetStatus returns the current status of the monitoring service
func (s *MonitoringService) GetStatus() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := map[string]interface{}{
		"running":            s.running,
		"enabled":            s.config.Enabled,
		"interval":           s.config.Interval.String(),
		"retention_schedule": s.config.RetentionSchedule,
		"components": map[string]interface{}{
			"performance":    s.deps.Performance != nil,
			"health":         s.deps.Health != nil,
			"infrastructure": s.deps.Infrastructure != nil,
		},
	}
	if !s.lastTick.IsZero() {
		status["last_tick"] = s.lastTick
	}
	if s.lastTickErr != nil {
		status["last_tick_error"] = s.lastTickErr.Error()
	}
	return status
}
