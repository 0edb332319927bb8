package alerting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, notifiers ...Notifier) (*Manager, *fakeClock, *recordingRecorder) {
	t.Helper()

	clock := newFakeClock()
	store := NewStore(StoreConfig{Now: clock.Now}, testLogger())
	evaluator, err := NewRuleEvaluator(DefaultRules(DefaultThresholds(), DefaultCooldown), testLogger())
	require.NoError(t, err)

	recorder := newRecordingRecorder()
	dispatcher := NewDispatcher(time.Second, recorder, testLogger())
	for _, n := range notifiers {
		dispatcher.AddNotifier(n)
	}
	return NewManager(store, evaluator, dispatcher, recorder, testLogger()), clock, recorder
}

func TestManager_CreateDispatchesAndPublishes(t *testing.T) {
	notifier := &stubNotifier{name: "stub"}
	m, _, recorder := newTestManager(t, notifier)

	var mu sync.Mutex
	var events []Event
	m.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})

	ctx := WithCorrelationID(context.Background(), "req-42")
	alert, created, err := m.CreateAlert(ctx, CreateRequest{Name: "Manual", Severity: SeverityHigh})
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, "req-42", alert.CorrelationID)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, 1, notifier.count())
	assert.Equal(t, 1, recorder.created)
	assert.Equal(t, 1, recorder.active["HIGH"])

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, EventCreated, events[0].Type)
	assert.Equal(t, alert.ID, events[0].Alert.ID)
}

func TestManager_DuplicateIsNotDispatched(t *testing.T) {
	notifier := &stubNotifier{name: "stub"}
	m, _, recorder := newTestManager(t, notifier)

	_, created, err := m.CreateAlert(context.Background(), CreateRequest{Name: "Manual"})
	require.NoError(t, err)
	require.True(t, created)
	_, created, err = m.CreateAlert(context.Background(), CreateRequest{Name: "Manual"})
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, 1, notifier.count())
	assert.Equal(t, 1, recorder.dropped)
	assert.Equal(t, []string{DropCooldown}, recorder.dropReasons)
}

func TestManager_SuppressedDuplicateRecordsReason(t *testing.T) {
	m, clock, recorder := newTestManager(t)

	alert, _, err := m.CreateAlert(context.Background(), CreateRequest{Name: "Disk Full", Source: "node-1"})
	require.NoError(t, err)
	_, err = m.SuppressAlert(context.Background(), alert.ID, 60, "maintenance")
	require.NoError(t, err)

	// past the cooldown, only the suppression blocks the request
	clock.Advance(DefaultCooldown + time.Minute)
	dup, created, err := m.CreateAlert(context.Background(), CreateRequest{Name: "Disk Full", Source: "node-1"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, alert.ID, dup.ID)

	_, created, err = m.CreateAlert(context.Background(), CreateRequest{Name: "Disk Full", Source: "node-2"})
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, m.Shutdown(context.Background()))
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Equal(t, []string{DropSuppressed}, recorder.dropReasons)
}

func TestManager_NotificationFailureKeepsAlert(t *testing.T) {
	failing := &stubNotifier{name: "failing", err: errors.New("connection refused")}
	m, _, _ := newTestManager(t, failing)

	alert, created, err := m.CreateAlert(context.Background(), CreateRequest{Name: "Manual"})
	require.NoError(t, err)
	require.True(t, created)
	require.NoError(t, m.Shutdown(context.Background()))

	stored := m.GetAlert(alert.ID)
	require.NotNil(t, stored)
	assert.Equal(t, StatusActive, stored.Status)
}

func TestManager_CreateDoesNotWaitForSlowTransport(t *testing.T) {
	slow := &stubNotifier{name: "slow", delay: 300 * time.Millisecond}
	m, _, _ := newTestManager(t, slow)

	start := time.Now()
	_, _, err := m.CreateAlert(context.Background(), CreateRequest{Name: "Manual"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 200*time.Millisecond)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, 1, slow.count())
}

func TestManager_LifecycleTransitions(t *testing.T) {
	m, clock, recorder := newTestManager(t)

	var mu sync.Mutex
	var types []EventType
	m.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, e.Type)
	})

	a, _, err := m.CreateAlert(context.Background(), CreateRequest{Name: "x"})
	require.NoError(t, err)

	acked, err := m.AcknowledgeAlert(context.Background(), a.ID, "alice", "")
	require.NoError(t, err)
	require.NotNil(t, acked)

	suppressed, err := m.SuppressAlert(context.Background(), a.ID, 15, "")
	require.NoError(t, err)
	require.NotNil(t, suppressed)

	_, err = m.SuppressAlert(context.Background(), a.ID, -1, "")
	assert.ErrorIs(t, err, ErrInvalidSuppression)

	clock.Advance(16 * time.Minute)
	reactivated := m.SweepSuppressions(clock.Now())
	require.Len(t, reactivated, 1)

	resolved, err := m.ResolveAlert(context.Background(), a.ID, "bob", "done")
	require.NoError(t, err)
	require.NotNil(t, resolved)

	again, err := m.ResolveAlert(context.Background(), a.ID, "bob", "")
	require.NoError(t, err)
	assert.Nil(t, again)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventType{EventCreated, EventAcknowledged, EventSuppressed, EventReactivated, EventResolved}, types)
	assert.Equal(t, []string{"acknowledge", "suppress", "reactivate", "resolve"}, recorder.transitions)
}

func TestManager_EvaluateRaisesAlertsOnce(t *testing.T) {
	m, clock, _ := newTestManager(t)
	perf := &PerformanceSnapshot{AverageResponseTimeMs: Float(2500)}

	created := m.Evaluate(context.Background(), perf, nil, nil)
	require.Len(t, created, 1)
	assert.Equal(t, SeverityCritical, created[0].Severity)

	clock.Advance(time.Minute)
	assert.Empty(t, m.Evaluate(context.Background(), perf, nil, nil))

	clock.Advance(DefaultCooldown)
	assert.Len(t, m.Evaluate(context.Background(), perf, nil, nil), 1)
	assert.Len(t, m.GetActiveAlerts(), 2)
}

func TestManager_QueriesAndRules(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, _, err := m.CreateAlert(context.Background(), CreateRequest{Name: "a", Severity: SeverityHigh})
	require.NoError(t, err)
	_, _, err = m.CreateAlert(context.Background(), CreateRequest{Name: "b", Severity: SeverityLow})
	require.NoError(t, err)

	assert.Equal(t, 1, m.GetAlerts(AlertFilter{Severity: SeverityHigh}).Total)
	assert.Equal(t, 2, m.GetAlertStatistics(24).Total)

	require.NoError(t, m.AddRule(AlertRule{Name: "Custom", Metric: MetricHealthScore, Operator: OpLessThan, Threshold: 40, Severity: SeverityHigh, Enabled: true}))
	assert.Len(t, m.Rules(), 9)
	assert.Empty(t, m.Channels())
}

func TestManager_ShutdownRejectsWrites(t *testing.T) {
	m, _, _ := newTestManager(t)
	require.NoError(t, m.Shutdown(context.Background()))

	_, _, err := m.CreateAlert(context.Background(), CreateRequest{Name: "late"})
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.Empty(t, m.Evaluate(context.Background(), &PerformanceSnapshot{AverageResponseTimeMs: Float(5000)}, nil, nil))
}

func TestManager_ListenerPanicIsContained(t *testing.T) {
	m, _, _ := newTestManager(t)
	m.Subscribe(func(Event) { panic("boom") })

	_, created, err := m.CreateAlert(context.Background(), CreateRequest{Name: "x"})
	require.NoError(t, err)
	assert.True(t, created)
}
