package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/erp-backend-go/internal/core/metrics"
)

// EventType identifies an alert lifecycle change
type EventType string

const (
	EventCreated      EventType = "alert_created"
	EventAcknowledged EventType = "alert_acknowledged"
	EventResolved     EventType = "alert_resolved"
	EventSuppressed   EventType = "alert_suppressed"
	EventReactivated  EventType = "alert_reactivated"
)

// Event is published to listeners after every successful transition
type Event struct {
	Type  EventType `json:"type"`
	Alert *Alert    `json:"alert"`
}

// EventListener receives lifecycle events. Listeners must not block.
type EventListener func(Event)

type correlationKey struct{}

// WithCorrelationID attaches a correlation id for alerts raised under ctx
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFromContext returns the correlation id set by WithCorrelationID
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// Manager ties the store, the rule evaluator and the dispatcher together.
// Notification delivery runs off the caller's path.
type Manager struct {
	store      *Store
	evaluator  *RuleEvaluator
	dispatcher *Dispatcher
	recorder   Recorder
	logger     *logrus.Logger

	listenersMu sync.RWMutex
	listeners   []EventListener

	dispatchMu sync.Mutex
	dispatchWG sync.WaitGroup
	stopping   bool
}

// NewManager creates an alert manager. A nil dispatcher disables notifications.
func NewManager(store *Store, evaluator *RuleEvaluator, dispatcher *Dispatcher, recorder Recorder, logger *logrus.Logger) *Manager {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		store:      store,
		evaluator:  evaluator,
		dispatcher: dispatcher,
		recorder:   recorder,
		logger:     logger,
	}
}

// Subscribe registers a lifecycle listener
func (m *Manager) Subscribe(listener EventListener) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.listeners = append(m.listeners, listener)
}

// CreateAlert stores a new alert and notifies channels in the background.
// created is false when the request was dropped as a duplicate.
func (m *Manager) CreateAlert(ctx context.Context, req CreateRequest) (*Alert, bool, error) {
	if req.CorrelationID == "" {
		req.CorrelationID = CorrelationIDFromContext(ctx)
	}

	alert, dropReason, err := m.store.CreateOrDrop(req)
	if err != nil {
		return nil, false, err
	}
	if dropReason != "" {
		m.recorder.AlertDropped(dropReason)
		return alert, false, nil
	}

	m.recorder.AlertCreated(string(alert.Severity), string(alert.Category))
	m.refreshActiveGauge()
	m.publish(EventCreated, alert)
	m.dispatchAsync(alert)
	return alert, true, nil
}

func (m *Manager) dispatchAsync(alert *Alert) {
	if m.dispatcher == nil {
		return
	}

	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()
	if m.stopping {
		m.logger.WithField("alert_id", alert.ID).Warn("Skipping notification during shutdown")
		return
	}

	m.dispatchWG.Add(1)
	go func() {
		defer m.dispatchWG.Done()
		results := m.dispatcher.Dispatch(context.Background(), alert)

		failed := 0
		for _, r := range results {
			if !r.Success {
				failed++
			}
		}
		if failed > 0 {
			m.logger.WithFields(logrus.Fields{
				"alert_id": alert.ID,
				"channels": len(results),
				"failed":   failed,
			}).Warn("Alert notification partially failed")
		}
	}()
}

// AcknowledgeAlert annotates an alert as seen. It returns nil when the alert
// does not exist or is resolved.
func (m *Manager) AcknowledgeAlert(_ context.Context, id, by, notes string) (*Alert, error) {
	alert, err := m.store.Acknowledge(id, by, notes)
	if err != nil || alert == nil {
		return nil, err
	}
	m.recorder.AlertTransition("acknowledge")
	m.refreshActiveGauge()
	m.publish(EventAcknowledged, alert)
	return alert, nil
}

// ResolveAlert closes an alert. It returns nil when the alert does not exist
// or is already resolved.
func (m *Manager) ResolveAlert(_ context.Context, id, by, notes string) (*Alert, error) {
	alert, err := m.store.Resolve(id, by, notes)
	if err != nil || alert == nil {
		return nil, err
	}
	m.recorder.AlertTransition("resolve")
	m.refreshActiveGauge()
	m.publish(EventResolved, alert)
	return alert, nil
}

// SuppressAlert silences an alert for minutes
func (m *Manager) SuppressAlert(_ context.Context, id string, minutes int, reason string) (*Alert, error) {
	alert, err := m.store.Suppress(id, minutes, reason)
	if err != nil || alert == nil {
		return nil, err
	}
	m.recorder.AlertTransition("suppress")
	m.refreshActiveGauge()
	m.publish(EventSuppressed, alert)
	return alert, nil
}

// SweepSuppressions reactivates alerts whose suppression window has passed
func (m *Manager) SweepSuppressions(now time.Time) []*Alert {
	reactivated := m.store.SweepExpiredSuppressions(now)
	if len(reactivated) == 0 {
		return reactivated
	}
	for _, a := range reactivated {
		m.recorder.AlertTransition("reactivate")
		m.publish(EventReactivated, a)
	}
	m.refreshActiveGauge()
	return reactivated
}

// Evaluate runs every rule against the snapshots and raises the resulting
// alerts. Duplicates inside their cooldown are dropped by the store.
func (m *Manager) Evaluate(ctx context.Context, perf *PerformanceSnapshot, health *metrics.HealthReport, infra *InfrastructureSnapshot) []*Alert {
	if m.evaluator == nil {
		return nil
	}

	created := make([]*Alert, 0)
	for _, req := range m.evaluator.Evaluate(perf, health, infra) {
		alert, ok, err := m.CreateAlert(ctx, req)
		if err != nil {
			m.logger.WithError(err).WithField("rule", req.Name).Warn("Failed to raise alert from rule")
			continue
		}
		if ok {
			created = append(created, alert)
		}
	}
	return created
}

// PruneRetention removes alerts resolved longer than retention ago
func (m *Manager) PruneRetention(now time.Time, retention time.Duration) int {
	return m.store.PruneResolved(now.Add(-retention))
}

// AddRule adds or replaces an evaluation rule
func (m *Manager) AddRule(rule AlertRule) error {
	if m.evaluator == nil {
		return ErrInvalidRule
	}
	return m.evaluator.AddRule(rule)
}

// Rules returns the configured rules in evaluation order
func (m *Manager) Rules() []AlertRule {
	if m.evaluator == nil {
		return []AlertRule{}
	}
	return m.evaluator.Rules()
}

// Channels returns the configured notification channels
func (m *Manager) Channels() []NotificationChannel {
	if m.dispatcher == nil {
		return []NotificationChannel{}
	}
	return m.dispatcher.Channels()
}

// GetAlert returns a single alert or nil
func (m *Manager) GetAlert(id string) *Alert {
	return m.store.Get(id)
}

// GetAlerts returns a filtered page of alerts
func (m *Manager) GetAlerts(filter AlertFilter) AlertPage {
	return m.store.List(filter)
}

// GetActiveAlerts returns open alerts, newest first
func (m *Manager) GetActiveAlerts() []*Alert {
	return m.store.Active()
}

// GetAlertStatistics summarizes alerts raised within the last windowHours
func (m *Manager) GetAlertStatistics(windowHours int) AlertStatistics {
	return m.store.Statistics(windowHours)
}

// Shutdown stops accepting writes and waits for in-flight notifications
func (m *Manager) Shutdown(ctx context.Context) error {
	m.store.Close()

	m.dispatchMu.Lock()
	m.stopping = true
	m.dispatchMu.Unlock()

	done := make(chan struct{})
	go func() {
		m.dispatchWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("Alert manager stopped")
		return nil
	case <-ctx.Done():
		m.logger.Warn("Alert manager stopped with notifications still in flight")
		return ctx.Err()
	}
}

func (m *Manager) refreshActiveGauge() {
	counts := make(map[string]int, len(Severities))
	for _, sev := range Severities {
		counts[string(sev)] = 0
	}
	for _, a := range m.store.Active() {
		counts[string(a.Severity)]++
	}
	m.recorder.ActiveAlerts(counts)
}

func (m *Manager) publish(eventType EventType, alert *Alert) {
	m.listenersMu.RLock()
	listeners := make([]EventListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.listenersMu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.WithField("event", eventType).Errorf("Alert listener panicked: %v", r)
				}
			}()
			l(Event{Type: eventType, Alert: alert.clone()})
		}()
	}
}
