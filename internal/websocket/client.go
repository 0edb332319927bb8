package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/erp-backend-go/internal/core/alerting"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced by the CORS middleware in front of the route
		return true
	},
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	// Unique client identifier
	ID string

	// The websocket connection
	conn *websocket.Conn

	// Buffered channel of outbound messages, owned and closed by the hub
	send chan []byte

	// Replies to this client's own requests, never closed
	direct chan []byte

	hub    *Hub
	logger *logrus.Logger

	// Client metadata
	UserAgent   string    `json:"user_agent"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`

	mu          sync.RWMutex
	minSeverity alerting.AlertSeverity
}

// HandleWebSocket upgrades the request and attaches the connection to the hub.
// An optional min_severity query parameter sets the initial subscription.
func HandleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request) {
	minSeverity := alerting.SeverityLow
	if raw := r.URL.Query().Get("min_severity"); raw != "" {
		sev, err := alerting.ParseSeverity(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		minSeverity = sev
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		conn:        conn,
		send:        make(chan []byte, 256),
		direct:      make(chan []byte, 16),
		hub:         hub,
		logger:      hub.logger,
		UserAgent:   r.Header.Get("User-Agent"),
		RemoteAddr:  r.RemoteAddr,
		ConnectedAt: time.Now(),
		minSeverity: minSeverity,
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// HandleWebSocketGin is a Gin-compatible wrapper for HandleWebSocket
func HandleWebSocketGin(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		HandleWebSocket(hub, c.Writer, c.Request)
	}
}

// MinSeverity returns the lowest severity this client receives
func (c *Client) MinSeverity() alerting.AlertSeverity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.minSeverity
}

// Wants reports whether an alert of the given severity should be delivered
func (c *Client) Wants(severity alerting.AlertSeverity) bool {
	return severity.Rank() >= c.MinSeverity().Rank()
}

// SetMinSeverity updates the client's subscription
func (c *Client) SetMinSeverity(severity alerting.AlertSeverity) {
	c.mu.Lock()
	c.minSeverity = severity
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"client_id":    c.ID,
		"min_severity": severity,
	}).Info("Client subscription updated")
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WithError(err).Error("WebSocket connection error")
			}
			break
		}

		c.hub.recordReceived()
		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case message := <-c.direct:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) reply(msg Message) {
	select {
	case c.direct <- msg.ToJSON():
	default:
		c.logger.WithField("client_id", c.ID).Warn("Dropping reply to slow WebSocket client")
	}
}

// handleMessage processes incoming messages from the client
func (c *Client) handleMessage(message []byte) {
	var msg Message
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.WithError(err).Debug("Failed to unmarshal WebSocket message")
		c.reply(ErrorMessage("malformed message"))
		return
	}

	switch msg.Type {
	case MessageTypeSubscribe:
		raw, _ := msg.Data["min_severity"].(string)
		severity, err := alerting.ParseSeverity(raw)
		if err != nil {
			c.reply(ErrorMessage(err.Error()))
			return
		}
		c.SetMinSeverity(severity)
		c.reply(Message{
			Type: MessageTypeSubscriptionUpdate,
			Data: map[string]interface{}{"min_severity": severity},
		})
	case MessageTypePing:
		c.reply(Message{
			Type: MessageTypePong,
			Data: map[string]interface{}{
				"timestamp": time.Now().UTC(),
			},
		})
	default:
		c.logger.WithField("message_type", msg.Type).Warn("Unknown WebSocket message type")
		c.reply(ErrorMessage("unknown message type: " + msg.Type))
	}
}
