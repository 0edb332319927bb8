package alerting

import (
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	store := NewStore(StoreConfig{Now: clock.Now}, testLogger())
	return store, clock
}

func mustCreate(t *testing.T, s *Store, req CreateRequest) *Alert {
	t.Helper()
	alert, created, err := s.Create(req)
	require.NoError(t, err)
	require.True(t, created, "expected %q to be created", req.Name)
	return alert
}

func TestStore_CreateDefaults(t *testing.T) {
	store, clock := newTestStore(t)

	alert := mustCreate(t, store, CreateRequest{Name: "  Disk Full  ", Source: "host-1"})

	assert.NotEmpty(t, alert.ID)
	assert.Equal(t, "Disk Full", alert.Name)
	assert.Equal(t, SeverityMedium, alert.Severity)
	assert.Equal(t, CategorySystem, alert.Category)
	assert.Equal(t, StatusActive, alert.Status)
	assert.Equal(t, clock.Now(), alert.Timestamp)
	assert.Nil(t, alert.ResolvedAt)
	assert.NotNil(t, alert.Tags)
	assert.NotNil(t, alert.Metadata)
}

func TestStore_CreateRejectsMalformedRequests(t *testing.T) {
	store, _ := newTestStore(t)

	tests := []struct {
		name string
		req  CreateRequest
	}{
		{name: "empty name", req: CreateRequest{Name: "   "}},
		{name: "unknown severity", req: CreateRequest{Name: "x", Severity: "URGENT"}},
		{name: "unknown category", req: CreateRequest{Name: "x", Category: "WEATHER"}},
		{name: "unknown operator", req: CreateRequest{Name: "x", Threshold: &Threshold{Operator: "approx"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, created, err := store.Create(tt.req)
			assert.Error(t, err)
			assert.False(t, created)
		})
	}
	assert.Equal(t, 0, store.Len())
}

func TestStore_CreateNormalizesCase(t *testing.T) {
	store, _ := newTestStore(t)

	alert := mustCreate(t, store, CreateRequest{Name: "x", Severity: "high", Category: "database"})
	assert.Equal(t, SeverityHigh, alert.Severity)
	assert.Equal(t, CategoryDatabase, alert.Category)
}

func TestStore_CooldownDropsDuplicates(t *testing.T) {
	store, clock := newTestStore(t)

	first := mustCreate(t, store, CreateRequest{Name: "High CPU Usage", Source: "scheduler"})

	clock.Advance(time.Minute)
	dup, created, err := store.Create(CreateRequest{Name: "High CPU Usage", Source: "scheduler"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, dup.ID)

	page := store.List(AlertFilter{Status: StatusActive})
	assert.Equal(t, 1, page.Total)
}

func TestStore_CooldownExpiryAllowsNewAlert(t *testing.T) {
	store, clock := newTestStore(t)

	first := mustCreate(t, store, CreateRequest{Name: "High CPU Usage"})
	clock.Advance(DefaultCooldown)
	second := mustCreate(t, store, CreateRequest{Name: "High CPU Usage"})

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, store.Len())
}

func TestStore_CooldownPerRequestOverride(t *testing.T) {
	store, clock := newTestStore(t)

	mustCreate(t, store, CreateRequest{Name: "Flapping", Cooldown: 30 * time.Second})
	clock.Advance(31 * time.Second)
	mustCreate(t, store, CreateRequest{Name: "Flapping", Cooldown: 30 * time.Second})

	clock.Advance(10 * time.Second)
	_, created, err := store.Create(CreateRequest{Name: "Flapping", Cooldown: 30 * time.Second})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestStore_CooldownKeysOnNameAndSource(t *testing.T) {
	store, _ := newTestStore(t)

	mustCreate(t, store, CreateRequest{Name: "Disk Full", Source: "host-1"})
	mustCreate(t, store, CreateRequest{Name: "Disk Full", Source: "host-2"})

	_, created, err := store.Create(CreateRequest{Name: "Disk Full", Source: "host-1"})
	require.NoError(t, err)
	assert.False(t, created)

	_, created, err = store.Create(CreateRequest{Name: "Disk Full"})
	require.NoError(t, err)
	assert.False(t, created, "a request without source matches any source")
}

func TestStore_ResolvedAlertDoesNotBlockNewOne(t *testing.T) {
	store, clock := newTestStore(t)

	first := mustCreate(t, store, CreateRequest{Name: "High Error Rate"})
	_, err := store.Resolve(first.ID, "ops", "")
	require.NoError(t, err)

	clock.Advance(time.Second)
	second := mustCreate(t, store, CreateRequest{Name: "High Error Rate"})
	assert.NotEqual(t, first.ID, second.ID)
}

func TestStore_SuppressedAlertBlocksCreation(t *testing.T) {
	store, clock := newTestStore(t)

	first := mustCreate(t, store, CreateRequest{Name: "Noisy"})
	_, err := store.Suppress(first.ID, 60, "maintenance")
	require.NoError(t, err)

	// past the cooldown but still inside the suppression window
	clock.Advance(30 * time.Minute)
	dup, created, err := store.Create(CreateRequest{Name: "Noisy"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, dup.ID)
	assert.Equal(t, StatusSuppressed, dup.Status)
}

func TestStore_Acknowledge(t *testing.T) {
	store, clock := newTestStore(t)
	alert := mustCreate(t, store, CreateRequest{Name: "x"})

	clock.Advance(time.Minute)
	acked, err := store.Acknowledge(alert.ID, "alice", "looking")
	require.NoError(t, err)
	require.NotNil(t, acked)
	assert.Equal(t, StatusAcknowledged, acked.Status)
	assert.Equal(t, "alice", acked.AcknowledgedBy)
	assert.Equal(t, "looking", acked.Notes)
	require.NotNil(t, acked.AcknowledgedAt)
	assert.Equal(t, clock.Now(), *acked.AcknowledgedAt)

	reacked, err := store.Acknowledge(alert.ID, "bob", "still looking")
	require.NoError(t, err)
	require.NotNil(t, reacked)
	assert.Equal(t, StatusAcknowledged, reacked.Status)
	assert.Equal(t, "bob", reacked.AcknowledgedBy)
	assert.Equal(t, "still looking", reacked.Notes)

	// acknowledged alerts stay in the active view
	active := store.Active()
	require.Len(t, active, 1)
	assert.Equal(t, alert.ID, active[0].ID)
}

func TestStore_AcknowledgeSuppressedIsRejected(t *testing.T) {
	store, clock := newTestStore(t)
	alert := mustCreate(t, store, CreateRequest{Name: "x"})
	_, err := store.Suppress(alert.ID, 10, "")
	require.NoError(t, err)

	acked, err := store.Acknowledge(alert.ID, "alice", "")
	require.NoError(t, err)
	assert.Nil(t, acked)

	stored := store.Get(alert.ID)
	assert.Equal(t, StatusSuppressed, stored.Status)
	assert.Empty(t, stored.AcknowledgedBy)

	// once the suppression lapses the alert can be acknowledged again
	require.Len(t, store.SweepExpiredSuppressions(clock.Now().Add(11*time.Minute)), 1)
	acked, err = store.Acknowledge(alert.ID, "alice", "")
	require.NoError(t, err)
	require.NotNil(t, acked)
	assert.Equal(t, StatusAcknowledged, acked.Status)
}

func TestStore_TerminalResolvedState(t *testing.T) {
	store, _ := newTestStore(t)
	alert := mustCreate(t, store, CreateRequest{Name: "x"})

	resolved, err := store.Resolve(alert.ID, "alice", "fixed")
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, StatusResolved, resolved.Status)

	acked, err := store.Acknowledge(alert.ID, "bob", "")
	assert.NoError(t, err)
	assert.Nil(t, acked)

	again, err := store.Resolve(alert.ID, "bob", "")
	assert.NoError(t, err)
	assert.Nil(t, again)

	suppressed, err := store.Suppress(alert.ID, 10, "")
	assert.NoError(t, err)
	assert.Nil(t, suppressed)

	stored := store.Get(alert.ID)
	assert.Equal(t, "alice", stored.ResolvedBy)
	assert.Equal(t, "fixed", stored.Notes)
}

func TestStore_UnknownIDsReturnNil(t *testing.T) {
	store, _ := newTestStore(t)

	acked, err := store.Acknowledge("missing", "a", "")
	assert.NoError(t, err)
	assert.Nil(t, acked)

	resolved, err := store.Resolve("missing", "a", "")
	assert.NoError(t, err)
	assert.Nil(t, resolved)

	suppressed, err := store.Suppress("missing", 5, "")
	assert.NoError(t, err)
	assert.Nil(t, suppressed)

	assert.Nil(t, store.Get("missing"))
}

func TestStore_ResolvedAtInvariant(t *testing.T) {
	store, clock := newTestStore(t)

	var ids []string
	for i := 0; i < 5; i++ {
		a := mustCreate(t, store, CreateRequest{Name: fmt.Sprintf("alert-%d", i)})
		ids = append(ids, a.ID)
		clock.Advance(time.Minute)
	}
	_, err := store.Resolve(ids[1], "", "")
	require.NoError(t, err)
	_, err = store.Suppress(ids[2], 5, "")
	require.NoError(t, err)
	_, err = store.Resolve(ids[2], "", "")
	require.NoError(t, err)
	_, err = store.Acknowledge(ids[3], "", "")
	require.NoError(t, err)

	for _, a := range store.List(AlertFilter{}).Alerts {
		if a.Status != StatusResolved {
			assert.Nil(t, a.ResolvedAt, a.Name)
			continue
		}
		require.NotNil(t, a.ResolvedAt, a.Name)
		assert.False(t, a.ResolvedAt.Before(a.Timestamp), a.Name)
		assert.Nil(t, a.SuppressedUntil, a.Name)
		assert.Equal(t, "system", a.ResolvedBy)
	}
}

func TestStore_SuppressAndSweep(t *testing.T) {
	store, clock := newTestStore(t)
	alert := mustCreate(t, store, CreateRequest{Name: "x"})

	suppressed, err := store.Suppress(alert.ID, 30, "deploy window")
	require.NoError(t, err)
	require.NotNil(t, suppressed)
	assert.Equal(t, StatusSuppressed, suppressed.Status)
	require.NotNil(t, suppressed.SuppressedUntil)
	assert.Equal(t, clock.Now().Add(30*time.Minute), *suppressed.SuppressedUntil)
	assert.Equal(t, "deploy window", suppressed.Metadata["suppression_reason"])
	assert.Empty(t, store.Active())

	assert.Empty(t, store.SweepExpiredSuppressions(clock.Now().Add(29*time.Minute)))

	reactivated := store.SweepExpiredSuppressions(clock.Now().Add(31 * time.Minute))
	require.Len(t, reactivated, 1)
	assert.Equal(t, StatusActive, reactivated[0].Status)
	assert.Nil(t, reactivated[0].SuppressedUntil)
	assert.Equal(t, StatusActive, store.Get(alert.ID).Status)
}

func TestStore_SuppressRejectsNonPositiveMinutes(t *testing.T) {
	store, _ := newTestStore(t)
	alert := mustCreate(t, store, CreateRequest{Name: "x"})

	for _, minutes := range []int{0, -5} {
		_, err := store.Suppress(alert.ID, minutes, "")
		assert.ErrorIs(t, err, ErrInvalidSuppression)
	}
	assert.Equal(t, StatusActive, store.Get(alert.ID).Status)
}

func TestStore_ListFiltersPartition(t *testing.T) {
	store, _ := newTestStore(t)

	severities := []AlertSeverity{SeverityHigh, SeverityLow, SeverityHigh, SeverityCritical, SeverityMedium, SeverityHigh}
	for i, sev := range severities {
		mustCreate(t, store, CreateRequest{Name: fmt.Sprintf("alert-%d", i), Severity: sev})
	}

	high := store.List(AlertFilter{Severity: SeverityHigh})
	assert.Equal(t, 3, high.Total)
	for _, a := range high.Alerts {
		assert.Equal(t, SeverityHigh, a.Severity)
	}

	all := store.List(AlertFilter{})
	seen := make(map[string]bool)
	sum := 0
	for _, sev := range Severities {
		page := store.List(AlertFilter{Severity: sev})
		sum += page.Total
		for _, a := range page.Alerts {
			assert.False(t, seen[a.ID], "alert %s appears under two severities", a.ID)
			seen[a.ID] = true
		}
	}
	assert.Equal(t, all.Total, sum)
	assert.Len(t, seen, all.Total)
}

func TestStore_ListPagination(t *testing.T) {
	store, clock := newTestStore(t)
	for i := 0; i < 5; i++ {
		mustCreate(t, store, CreateRequest{Name: fmt.Sprintf("alert-%d", i)})
		clock.Advance(time.Second)
	}

	first := store.List(AlertFilter{Limit: 2, Offset: 0})
	assert.Equal(t, 5, first.Total)
	assert.Len(t, first.Alerts, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, "alert-4", first.Alerts[0].Name)
	assert.Equal(t, "alert-3", first.Alerts[1].Name)

	last := store.List(AlertFilter{Limit: 2, Offset: 4})
	assert.Len(t, last.Alerts, 1)
	assert.False(t, last.HasMore)
	assert.Equal(t, "alert-0", last.Alerts[0].Name)

	beyond := store.List(AlertFilter{Limit: 2, Offset: 10})
	assert.Empty(t, beyond.Alerts)
	assert.NotNil(t, beyond.Alerts)
	assert.False(t, beyond.HasMore)

	all := store.List(AlertFilter{})
	assert.Len(t, all.Alerts, 5)
	assert.False(t, all.HasMore)
}

func TestStore_ListOrdersTiesByInsertion(t *testing.T) {
	store, _ := newTestStore(t)
	for i := 0; i < 3; i++ {
		mustCreate(t, store, CreateRequest{Name: fmt.Sprintf("alert-%d", i)})
	}

	page := store.List(AlertFilter{})
	require.Len(t, page.Alerts, 3)
	assert.Equal(t, "alert-2", page.Alerts[0].Name)
	assert.Equal(t, "alert-0", page.Alerts[2].Name)
}

func TestStore_ReturnsCopies(t *testing.T) {
	store, _ := newTestStore(t)
	alert := mustCreate(t, store, CreateRequest{Name: "x", Tags: []string{"a"}, Metadata: map[string]interface{}{"k": "v"}})

	alert.Status = StatusResolved
	alert.Tags[0] = "mutated"
	alert.Metadata["k"] = "mutated"

	stored := store.Get(alert.ID)
	assert.Equal(t, StatusActive, stored.Status)
	assert.Equal(t, []string{"a"}, stored.Tags)
	assert.Equal(t, "v", stored.Metadata["k"])
}

func TestStore_EvictsOldestResolvedAtCapacity(t *testing.T) {
	clock := newFakeClock()
	store := NewStore(StoreConfig{MaxAlerts: 3, Now: clock.Now}, testLogger())

	a := mustCreate(t, store, CreateRequest{Name: "a"})
	clock.Advance(time.Second)
	b := mustCreate(t, store, CreateRequest{Name: "b"})
	clock.Advance(time.Second)
	c := mustCreate(t, store, CreateRequest{Name: "c"})

	_, err := store.Resolve(b.ID, "", "")
	require.NoError(t, err)
	_, err = store.Resolve(c.ID, "", "")
	require.NoError(t, err)

	clock.Advance(time.Second)
	d := mustCreate(t, store, CreateRequest{Name: "d"})

	assert.Equal(t, 3, store.Len())
	assert.NotNil(t, store.Get(a.ID), "open alerts are never evicted")
	assert.Nil(t, store.Get(b.ID))
	assert.NotNil(t, store.Get(c.ID))
	assert.NotNil(t, store.Get(d.ID))
}

func TestStore_PruneResolved(t *testing.T) {
	store, clock := newTestStore(t)

	old := mustCreate(t, store, CreateRequest{Name: "old"})
	_, err := store.Resolve(old.ID, "", "")
	require.NoError(t, err)
	open := mustCreate(t, store, CreateRequest{Name: "open"})

	clock.Advance(8 * 24 * time.Hour)
	recent := mustCreate(t, store, CreateRequest{Name: "recent"})
	_, err = store.Resolve(recent.ID, "", "")
	require.NoError(t, err)

	removed := store.PruneResolved(clock.Now().Add(-7 * 24 * time.Hour))
	assert.Equal(t, 1, removed)
	assert.Nil(t, store.Get(old.ID))
	assert.NotNil(t, store.Get(open.ID))
	assert.NotNil(t, store.Get(recent.ID))
}

func TestStore_CloseRejectsWrites(t *testing.T) {
	store, _ := newTestStore(t)
	alert := mustCreate(t, store, CreateRequest{Name: "x"})

	store.Close()

	_, _, err := store.Create(CreateRequest{Name: "y"})
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.Acknowledge(alert.ID, "", "")
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.Resolve(alert.ID, "", "")
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.Suppress(alert.ID, 5, "")
	assert.ErrorIs(t, err, ErrStoreClosed)

	// reads keep working
	assert.NotNil(t, store.Get(alert.ID))
	assert.Len(t, store.Active(), 1)
}

func TestStore_ConcurrentCreateDeduplicates(t *testing.T) {
	store, _ := newTestStore(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := store.Create(CreateRequest{Name: "race", Source: "test"})
			assert.NoError(t, err)
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, createdCount)
	assert.Equal(t, 1, store.Len())
}

func TestStore_ConcurrentTransitions(t *testing.T) {
	store, _ := newTestStore(t)
	alert := mustCreate(t, store, CreateRequest{Name: "x"})

	var wg sync.WaitGroup
	var mu sync.Mutex
	resolvedCount := 0
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := store.Acknowledge(alert.ID, fmt.Sprintf("user-%d", i), "")
			assert.NoError(t, err)
		}(i)
		go func() {
			defer wg.Done()
			resolved, err := store.Resolve(alert.ID, "", "")
			assert.NoError(t, err)
			if resolved != nil {
				mu.Lock()
				resolvedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, resolvedCount)
	assert.Equal(t, StatusResolved, store.Get(alert.ID).Status)
}
