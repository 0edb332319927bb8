package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/erp-backend-go/internal/core/alerting"
	"github.com/frostdev-ops/erp-backend-go/internal/core/metrics"
)

// ErrHubStopped is returned by Broadcast once the hub has shut down
var ErrHubStopped = errors.New("websocket hub stopped")

const heartbeatInterval = 30 * time.Second

// outbound is one queued broadcast. severity is empty for messages every
// client receives regardless of its subscription.
type outbound struct {
	data     []byte
	severity alerting.AlertSeverity
}

// Hub maintains the set of alert stream clients and fans messages out to them
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages for the clients
	broadcast chan outbound

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	done    chan struct{}
	logger  *logrus.Logger
	metrics metrics.MetricsCollector

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Statistics
	stats *HubStats
}

// HubStats contains hub statistics
type HubStats struct {
	ConnectedClients int       `json:"connected_clients"`
	TotalConnections int64     `json:"total_connections"`
	MessagesSent     int64     `json:"messages_sent"`
	MessagesDropped  int64     `json:"messages_dropped"`
	MessagesReceived int64     `json:"messages_received"`
	LastActivity     time.Time `json:"last_activity"`
}

// NewHub creates a new WebSocket hub. collector may be nil.
func NewHub(logger *logrus.Logger, collector metrics.MetricsCollector) *Hub {
	if collector == nil {
		collector = metrics.NoopCollector{}
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
		metrics:    collector,
		stats: &HubStats{
			LastActivity: time.Now(),
		},
	}
}

// Run handles client registration and broadcasting until ctx is cancelled,
// then disconnects every client
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket hub started")

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case <-ticker.C:
			h.sendHeartbeat()
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	close(h.done)
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
		h.metrics.RecordWebSocketConnection("disconnect")
	}
	h.stats.ConnectedClients = 0
	h.logger.Info("WebSocket hub stopped")
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	h.stats.TotalConnections++
	h.stats.ConnectedClients = len(h.clients)
	h.stats.LastActivity = time.Now()
	h.metrics.RecordWebSocketConnection("connect")

	h.logger.WithFields(logrus.Fields{
		"client_id":         client.ID,
		"remote_addr":       client.RemoteAddr,
		"connected_clients": len(h.clients),
	}).Info("WebSocket client connected")

	// Send welcome message
	welcome := Message{
		Type: MessageTypeConnection,
		Data: map[string]interface{}{
			"status":       "connected",
			"client_id":    client.ID,
			"min_severity": client.MinSeverity(),
		},
	}
	client.send <- welcome.ToJSON()
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.stats.ConnectedClients = len(h.clients)
	h.stats.LastActivity = time.Now()
	h.metrics.RecordWebSocketConnection("disconnect")

	h.logger.WithFields(logrus.Fields{
		"client_id":         client.ID,
		"connected_clients": len(h.clients),
	}).Info("WebSocket client disconnected")
}

func (h *Hub) broadcastMessage(message outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for client := range h.clients {
		if message.severity != "" && !client.Wants(message.severity) {
			continue
		}
		select {
		case client.send <- message.data:
			sent++
		default:
			// Client's send channel is full, drop it
			h.removeLocked(client)
		}
	}

	h.stats.MessagesSent += int64(sent)
	h.stats.LastActivity = time.Now()

	h.logger.WithFields(logrus.Fields{
		"message_size": len(message.data),
		"clients_sent": sent,
	}).Debug("Message broadcasted to WebSocket clients")
}

func (h *Hub) sendHeartbeat() {
	heartbeat := Message{
		Type: MessageTypeHeartbeat,
		Data: map[string]interface{}{
			"clients": h.GetClientCount(),
		},
	}
	h.broadcastMessage(outbound{data: heartbeat.ToJSON()})
}

func (h *Hub) enqueue(message outbound) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}

	select {
	case h.broadcast <- message:
		return nil
	default:
		h.mu.Lock()
		h.stats.MessagesDropped++
		h.mu.Unlock()
		return fmt.Errorf("broadcast queue full, message dropped")
	}
}

// BroadcastToAll queues a message for every connected client
func (h *Hub) BroadcastToAll(message Message) error {
	return h.enqueue(outbound{data: message.ToJSON()})
}

// Broadcast queues a typed payload. Alert payloads honour each client's
// severity subscription; anything else reaches every client.
func (h *Hub) Broadcast(messageType string, payload interface{}) error {
	message := Message{Type: messageType, Data: map[string]interface{}{}}
	var severity alerting.AlertSeverity

	switch p := payload.(type) {
	case *alerting.Alert:
		message.Data["alert"] = p
		severity = p.Severity
	case map[string]interface{}:
		message.Data = p
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to encode %s payload: %w", messageType, err)
		}
		message.Data["payload"] = json.RawMessage(raw)
	}

	return h.enqueue(outbound{data: message.ToJSON(), severity: severity})
}

// OnAlertEvent forwards alert lifecycle events to subscribed clients
func (h *Hub) OnAlertEvent(event alerting.Event) {
	// New alerts reach clients through the websocket notification channel
	if event.Alert == nil || event.Type == alerting.EventCreated {
		return
	}
	message := AlertEventMessage(event)
	if err := h.enqueue(outbound{data: message.ToJSON(), severity: event.Alert.Severity}); err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"alert_id": event.Alert.ID,
			"event":    event.Type,
		}).Warn("Failed to stream alert event")
	}
}

// GetStats returns current hub statistics
func (h *Hub) GetStats() *HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	statsCopy := *h.stats
	statsCopy.ConnectedClients = len(h.clients)
	return &statsCopy
}

// GetClientCount returns the current number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) recordReceived() {
	h.mu.Lock()
	h.stats.MessagesReceived++
	h.mu.Unlock()
}

// GetStatus reports hub statistics for the monitoring API
func (h *Hub) GetStatus() map[string]interface{} {
	stats := h.GetStats()
	return map[string]interface{}{
		"connected_clients": stats.ConnectedClients,
		"total_connections": stats.TotalConnections,
		"messages_sent":     stats.MessagesSent,
		"messages_dropped":  stats.MessagesDropped,
		"messages_received": stats.MessagesReceived,
		"last_activity":     stats.LastActivity,
	}
}
