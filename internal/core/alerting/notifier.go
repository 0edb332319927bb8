package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ChannelKind is the transport a notification channel uses
type ChannelKind string

const (
	ChannelEmail     ChannelKind = "email"
	ChannelWebhook   ChannelKind = "webhook"
	ChannelLog       ChannelKind = "log"
	ChannelWebSocket ChannelKind = "websocket"
)

// DefaultNotificationTimeout bounds a single channel send
const DefaultNotificationTimeout = 10 * time.Second

// NotificationChannel describes a configured notification target
type NotificationChannel struct {
	Name    string      `json:"name"`
	Kind    ChannelKind `json:"kind"`
	Target  string      `json:"target"`
	Enabled bool        `json:"enabled"`
}

// Notifier delivers an alert over one transport
type Notifier interface {
	Channel() NotificationChannel
	Send(ctx context.Context, alert *Alert) error
}

// Recorder receives alerting telemetry. The zero implementation is noopRecorder.
type Recorder interface {
	AlertCreated(severity, category string)
	AlertDropped(reason string)
	AlertTransition(transition string)
	NotificationSent(channel string, success bool, duration time.Duration)
	ActiveAlerts(bySeverity map[string]int)
}

type noopRecorder struct{}

func (noopRecorder) AlertCreated(string, string) {}
func (noopRecorder) AlertDropped(string) {}
func (noopRecorder) AlertTransition(string) {}
func (noopRecorder) NotificationSent(string, bool, time.Duration) {}
func (noopRecorder) ActiveAlerts(map[string]int) {}

// DispatchResult is the outcome of sending an alert over one channel
type DispatchResult struct {
	Channel  string        `json:"channel"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Dispatcher fans an alert out to every enabled channel
type Dispatcher struct {
	mu        sync.RWMutex
	notifiers []Notifier
	disabled  map[string]bool
	timeout   time.Duration
	recorder  Recorder
	logger    *logrus.Logger
}

// NewDispatcher creates a dispatcher whose sends are each bounded by timeout
func NewDispatcher(timeout time.Duration, recorder Recorder, logger *logrus.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultNotificationTimeout
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Dispatcher{
		disabled: make(map[string]bool),
		timeout:  timeout,
		recorder: recorder,
		logger:   logger,
	}
}

// AddNotifier registers a channel. Channels configured as disabled start disabled.
func (d *Dispatcher) AddNotifier(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch := n.Channel()
	for i, existing := range d.notifiers {
		if existing.Channel().Name == ch.Name {
			d.notifiers[i] = n
			d.disabled[ch.Name] = !ch.Enabled
			return
		}
	}
	d.notifiers = append(d.notifiers, n)
	d.disabled[ch.Name] = !ch.Enabled
}

// SetEnabled toggles a channel by name. It reports false for unknown channels.
func (d *Dispatcher) SetEnabled(name string, enabled bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, n := range d.notifiers {
		if n.Channel().Name == name {
			d.disabled[name] = !enabled
			return true
		}
	}
	return false
}

// Channels lists the configured channels with their current enabled flag
func (d *Dispatcher) Channels() []NotificationChannel {
	d.mu.RLock()
	defer d.mu.RUnlock()

	channels := make([]NotificationChannel, 0, len(d.notifiers))
	for _, n := range d.notifiers {
		ch := n.Channel()
		ch.Enabled = !d.disabled[ch.Name]
		channels = append(channels, ch)
	}
	return channels
}

// Dispatch sends alert to every enabled channel concurrently and waits for all
// of them. Failures are logged and reported, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *Alert) []DispatchResult {
	d.mu.RLock()
	targets := make([]Notifier, 0, len(d.notifiers))
	for _, n := range d.notifiers {
		if !d.disabled[n.Channel().Name] {
			targets = append(targets, n)
		}
	}
	d.mu.RUnlock()

	results := make([]DispatchResult, len(targets))
	var wg sync.WaitGroup
	for i, n := range targets {
		wg.Add(1)
		go func(i int, n Notifier) {
			defer wg.Done()
			results[i] = d.send(ctx, n, alert)
		}(i, n)
	}
	wg.Wait()
	return results
}

// send runs one notifier under the dispatch timeout. A transport that ignores
// its context is abandoned once the deadline passes.
func (d *Dispatcher) send(ctx context.Context, n Notifier, alert *Alert) DispatchResult {
	ch := n.Channel()
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	errChan := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errChan <- fmt.Errorf("notifier panicked: %v", r)
			}
		}()
		errChan <- n.Send(ctx, alert)
	}()

	var err error
	select {
	case err = <-errChan:
	case <-ctx.Done():
		err = fmt.Errorf("notification timed out: %w", ctx.Err())
	}

	result := DispatchResult{Channel: ch.Name, Success: err == nil, Duration: time.Since(start)}
	d.recorder.NotificationSent(string(ch.Kind), result.Success, result.Duration)

	if err != nil {
		result.Error = err.Error()
		d.logger.WithFields(logrus.Fields{
			"alert_id": alert.ID,
			"channel":  ch.Name,
			"kind":     ch.Kind,
			"error":    err,
		}).Warn("Failed to send alert notification")
		return result
	}

	d.logger.WithFields(logrus.Fields{
		"alert_id": alert.ID,
		"channel":  ch.Name,
		"duration": result.Duration,
	}).Debug("Alert notification sent")
	return result
}
