package websocket

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/frostdev-ops/erp-backend-go/internal/core/alerting"
)

// Message types for WebSocket communication
const (
	// Alert lifecycle events
	MessageTypeAlertCreated      = "alert_created"
	MessageTypeAlertAcknowledged = "alert_acknowledged"
	MessageTypeAlertResolved     = "alert_resolved"
	MessageTypeAlertSuppressed   = "alert_suppressed"
	MessageTypeAlertReactivated  = "alert_reactivated"
	MessageTypeAlertNotification = "alert_notification"

	// Connection management
	MessageTypeConnection         = "connection"
	MessageTypeHeartbeat          = "heartbeat"
	MessageTypeSubscribe          = "subscribe"
	MessageTypeSubscriptionUpdate = "subscription_update"
	MessageTypePing               = "ping"
	MessageTypePong               = "pong"
	MessageTypeError              = "error"
)

// millisecondThreshold separates unix seconds from unix milliseconds
const millisecondThreshold = 1e11

// Message represents a WebSocket message
type Message struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m Message) ToJSON() []byte {
	m.Timestamp = time.Now().UTC()
	data, _ := json.Marshal(m)
	return data
}

// UnmarshalJSON accepts RFC3339 timestamps as well as unix seconds or
// milliseconds, given as numbers or strings. A missing timestamp becomes now.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type      string                 `json:"type"`
		Data      map[string]interface{} `json:"data"`
		Timestamp interface{}            `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Type = raw.Type
	m.Data = raw.Data
	m.Timestamp = parseTimestamp(raw.Timestamp)
	return nil
}

func parseTimestamp(value interface{}) time.Time {
	switch v := value.(type) {
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return fromUnix(n)
		}
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	case float64:
		return fromUnix(int64(v))
	case int64:
		return fromUnix(v)
	case int:
		return fromUnix(int64(v))
	}
	return time.Now().UTC()
}

func fromUnix(n int64) time.Time {
	if n > millisecondThreshold {
		return time.Unix(0, n*int64(time.Millisecond))
	}
	return time.Unix(n, 0)
}

// AlertEventMessage converts a lifecycle event into a stream message
func AlertEventMessage(event alerting.Event) Message {
	return Message{
		Type: string(event.Type),
		Data: map[string]interface{}{
			"alert": event.Alert,
		},
	}
}

// ErrorMessage creates a message reporting a bad client request
func ErrorMessage(reason string) Message {
	return Message{
		Type: MessageTypeError,
		Data: map[string]interface{}{
			"error": reason,
		},
	}
}
