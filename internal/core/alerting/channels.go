package alerting

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/smtp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/erp-backend-go/pkg/version"
)

// EmailConfig holds SMTP delivery settings
type EmailConfig struct {
	Name     string
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// EmailNotifier sends alerts as plain-text mail
type EmailNotifier struct {
	config EmailConfig
}

// NewEmailNotifier validates the SMTP settings and returns a notifier
func NewEmailNotifier(config EmailConfig) (*EmailNotifier, error) {
	if config.Host == "" {
		return nil, errors.New("email notifier: smtp host is required")
	}
	if config.Port == 0 {
		config.Port = 587
	}
	if config.From == "" {
		return nil, errors.New("email notifier: from address is required")
	}
	if len(config.To) == 0 {
		return nil, errors.New("email notifier: at least one recipient is required")
	}
	if config.Name == "" {
		config.Name = "email"
	}
	return &EmailNotifier{config: config}, nil
}

// Channel describes this notifier
func (n *EmailNotifier) Channel() NotificationChannel {
	return NotificationChannel{
		Name:    n.config.Name,
		Kind:    ChannelEmail,
		Target:  strings.Join(n.config.To, ","),
		Enabled: n.config.Enabled,
	}
}

// Send delivers the alert over SMTP. The connection deadline follows ctx.
func (n *EmailNotifier) Send(ctx context.Context, alert *Alert) error {
	addr := net.JoinHostPort(n.config.Host, strconv.Itoa(n.config.Port))

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to smtp server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, n.config.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to start smtp session: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: n.config.Host}); err != nil {
			return fmt.Errorf("failed to start tls: %w", err)
		}
	}
	if n.config.Username != "" {
		auth := smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp authentication failed: %w", err)
		}
	}

	if err := client.Mail(n.config.From); err != nil {
		return fmt.Errorf("smtp MAIL FROM failed: %w", err)
	}
	for _, to := range n.config.To {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("smtp RCPT TO %s failed: %w", to, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA failed: %w", err)
	}
	if _, err := w.Write(buildEmailMessage(n.config.From, n.config.To, alert)); err != nil {
		w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}
	return client.Quit()
}

func buildEmailMessage(from string, to []string, alert *Alert) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: [%s] %s\r\n", alert.Severity, alert.Name)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "%s\r\n\r\n", alert.Description)
	fmt.Fprintf(&b, "Alert ID:  %s\r\n", alert.ID)
	fmt.Fprintf(&b, "Severity:  %s\r\n", alert.Severity)
	fmt.Fprintf(&b, "Category:  %s\r\n", alert.Category)
	fmt.Fprintf(&b, "Source:    %s\r\n", alert.Source)
	fmt.Fprintf(&b, "Status:    %s\r\n", alert.Status)
	fmt.Fprintf(&b, "Raised at: %s\r\n", alert.Timestamp.UTC().Format(time.RFC3339))
	if alert.CurrentValue != nil {
		fmt.Fprintf(&b, "Value:     %.2f\r\n", *alert.CurrentValue)
	}
	if alert.Threshold != nil {
		fmt.Fprintf(&b, "Threshold: %s %s %.2f\r\n", alert.Threshold.Metric, alert.Threshold.Operator, alert.Threshold.Value)
	}
	if len(alert.Tags) > 0 {
		tags := append([]string(nil), alert.Tags...)
		sort.Strings(tags)
		fmt.Fprintf(&b, "Tags:      %s\r\n", strings.Join(tags, ", "))
	}
	return []byte(b.String())
}

// WebhookConfig holds webhook delivery settings
type WebhookConfig struct {
	Name    string
	Enabled bool
	URL     string
	Headers map[string]string
}

// WebhookNotifier posts alerts as JSON
type WebhookNotifier struct {
	config WebhookConfig
	client *http.Client
}

// WebhookPayload is the JSON body posted to webhook targets
type WebhookPayload struct {
	Event     string    `json:"event"`
	Alert     *Alert    `json:"alert"`
	Timestamp time.Time `json:"timestamp"`
}

// NewWebhookNotifier returns a webhook notifier. A nil client uses http.DefaultClient;
// the dispatch context bounds each request.
func NewWebhookNotifier(config WebhookConfig, client *http.Client) (*WebhookNotifier, error) {
	if config.URL == "" {
		return nil, errors.New("webhook notifier: url is required")
	}
	if config.Name == "" {
		config.Name = "webhook"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookNotifier{config: config, client: client}, nil
}

// Channel describes this notifier
func (n *WebhookNotifier) Channel() NotificationChannel {
	return NotificationChannel{
		Name:    n.config.Name,
		Kind:    ChannelWebhook,
		Target:  n.config.URL,
		Enabled: n.config.Enabled,
	}
}

// Send posts the alert. Any non-2xx response is a failure.
func (n *WebhookNotifier) Send(ctx context.Context, alert *Alert) error {
	body, err := json.Marshal(WebhookPayload{
		Event:     "alert.created",
		Alert:     alert,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	for k, v := range n.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier writes alerts to the structured log
type LogNotifier struct {
	name   string
	logger *logrus.Logger
}

// NewLogNotifier returns a notifier that logs every alert at warn level
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	if logger == nil {
		logger = logrus.New()
	}
	return &LogNotifier{name: "log", logger: logger}
}

// Channel describes this notifier
func (n *LogNotifier) Channel() NotificationChannel {
	return NotificationChannel{Name: n.name, Kind: ChannelLog, Target: "stdout", Enabled: true}
}

// Send logs the alert
func (n *LogNotifier) Send(_ context.Context, alert *Alert) error {
	n.logger.WithFields(logrus.Fields{
		"alert_id":       alert.ID,
		"alert_name":     alert.Name,
		"severity":       alert.Severity,
		"category":       alert.Category,
		"source":         alert.Source,
		"correlation_id": alert.CorrelationID,
	}).Warn(alert.Description)
	return nil
}

// Broadcaster pushes typed messages to connected clients
type Broadcaster interface {
	Broadcast(messageType string, payload interface{}) error
}

// BroadcastNotifier forwards alerts to a live client stream
type BroadcastNotifier struct {
	name        string
	broadcaster Broadcaster
}

// NewBroadcastNotifier wraps a broadcaster as a notification channel
func NewBroadcastNotifier(name string, broadcaster Broadcaster) *BroadcastNotifier {
	if name == "" {
		name = "websocket"
	}
	return &BroadcastNotifier{name: name, broadcaster: broadcaster}
}

// Channel describes this notifier
func (n *BroadcastNotifier) Channel() NotificationChannel {
	return NotificationChannel{Name: n.name, Kind: ChannelWebSocket, Target: "/ws/alerts", Enabled: true}
}

// Send broadcasts the alert as a notification message
func (n *BroadcastNotifier) Send(_ context.Context, alert *Alert) error {
	return n.broadcaster.Broadcast("alert_notification", alert)
}
