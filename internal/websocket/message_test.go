package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostdev-ops/erp-backend-go/internal/core/alerting"
)

func TestMessageUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		jsonData string
		expected time.Time
	}{
		{
			name:     "Unix timestamp in milliseconds as string",
			jsonData: `{"type":"test","data":{},"timestamp":"1753104374613"}`,
			expected: time.Unix(0, 1753104374613*int64(time.Millisecond)),
		},
		{
			name:     "Unix timestamp in seconds as string",
			jsonData: `{"type":"test","data":{},"timestamp":"1753104374"}`,
			expected: time.Unix(1753104374, 0),
		},
		{
			name:     "Unix timestamp as number",
			jsonData: `{"type":"test","data":{},"timestamp":1753104374613}`,
			expected: time.Unix(0, 1753104374613*int64(time.Millisecond)),
		},
		{
			name:     "RFC3339 timestamp string",
			jsonData: `{"type":"test","data":{},"timestamp":"2025-07-21T09:26:14.613Z"}`,
			expected: time.Date(2025, 7, 21, 9, 26, 14, 613000000, time.UTC),
		},
		{
			name:     "No timestamp field",
			jsonData: `{"type":"test","data":{}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg Message
			require.NoError(t, json.Unmarshal([]byte(tt.jsonData), &msg))
			assert.Equal(t, "test", msg.Type)

			if tt.expected.IsZero() {
				assert.WithinDuration(t, time.Now(), msg.Timestamp, time.Minute)
				return
			}
			assert.WithinDuration(t, tt.expected, msg.Timestamp, time.Millisecond)
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected time.Time
	}{
		{name: "Nil input", input: nil},
		{
			name:     "String Unix timestamp milliseconds",
			input:    "1753104374613",
			expected: time.Unix(0, 1753104374613*int64(time.Millisecond)),
		},
		{
			name:     "String Unix timestamp seconds",
			input:    "1753104374",
			expected: time.Unix(1753104374, 0),
		},
		{
			name:     "Float64 timestamp",
			input:    float64(1753104374613),
			expected: time.Unix(0, 1753104374613*int64(time.Millisecond)),
		},
		{
			name:     "Int64 timestamp",
			input:    int64(1753104374613),
			expected: time.Unix(0, 1753104374613*int64(time.Millisecond)),
		},
		{
			name:     "Int timestamp",
			input:    int(1753104374),
			expected: time.Unix(1753104374, 0),
		},
		{
			name:     "RFC3339 string",
			input:    "2025-07-21T09:26:14.613Z",
			expected: time.Date(2025, 7, 21, 9, 26, 14, 613000000, time.UTC),
		},
		{name: "Invalid string", input: "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseTimestamp(tt.input)
			if tt.expected.IsZero() {
				assert.WithinDuration(t, time.Now(), result, time.Minute)
				return
			}
			assert.WithinDuration(t, tt.expected, result, time.Millisecond)
		})
	}
}

func TestAlertEventMessage(t *testing.T) {
	alert := &alerting.Alert{ID: "a-7", Severity: alerting.SeverityCritical}
	msg := AlertEventMessage(alerting.Event{Type: alerting.EventResolved, Alert: alert})

	assert.Equal(t, MessageTypeAlertResolved, msg.Type)
	assert.Same(t, alert, msg.Data["alert"])

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.ToJSON(), &decoded))
	assert.Equal(t, "alert_resolved", decoded["type"])
	assert.Contains(t, decoded, "timestamp")
}
