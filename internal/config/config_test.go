package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostdev-ops/erp-backend-go/internal/core/alerting"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeFile(t, "config.yaml", "server:\n  port: 8080\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "60s", cfg.Monitoring.SchedulerInterval)
	assert.Equal(t, alerting.DefaultMaxAlerts, cfg.Monitoring.Alerts.MaxAlerts)
	assert.Equal(t, "@every 1h", cfg.Monitoring.Alerts.RetentionSchedule)
	assert.Equal(t, alerting.DefaultThresholds(), cfg.Monitoring.Alerts.Thresholds.Thresholds())
	assert.Equal(t, 5*time.Minute, Duration(cfg.Monitoring.Alerts.DefaultCooldown, 0))
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "config.yaml", "logging:\n  level: debug\n")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("ALERT_WEBHOOK_URL", "https://hooks.example.com/alerts")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "https://hooks.example.com/alerts", cfg.Monitoring.Alerts.Webhook.URL)
}

func TestLoad_InvalidDurationFailsLoudly(t *testing.T) {
	path := writeFile(t, "config.yaml", "monitoring:\n  scheduler_interval: soon\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring.scheduler_interval")
}

func TestValidate_RulesFile(t *testing.T) {
	good := writeFile(t, "rules.yaml", `
rules:
  - name: Slow Checkout
    metric: avg_response_time_ms
    operator: gte
    threshold: 500
    severity: HIGH
`)
	bad := writeFile(t, "bad.yaml", `
rules:
  - name: Broken
    metric: avg_response_time_ms
    operator: around
    threshold: 500
    severity: HIGH
`)

	cfg, err := Load(writeFile(t, "config.yaml", "monitoring:\n  alerts:\n    rules_file: "+good+"\n"))
	require.NoError(t, err)
	assert.Equal(t, good, cfg.Monitoring.Alerts.RulesFile)

	_, err = Load(writeFile(t, "config.yaml", "monitoring:\n  alerts:\n    rules_file: "+bad+"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rules_file")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: 0},
		Database: DatabaseConfig{},
		Auth:     AuthConfig{Enabled: true},
		Logging:  LoggingConfig{Level: "verbose"},
		Monitoring: MonitoringConfig{
			Alerts: MonitoringAlertsConfig{
				Email:   AlertEmailConfig{Enabled: true},
				Webhook: AlertWebhookConfig{Enabled: true},
			},
		},
	}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"server.port",
		"server.host",
		"database.path",
		"auth.jwt_secret",
		"logging.level",
		"monitoring.alerts.max_alerts",
		"monitoring.alerts.email.smtp_host",
		"monitoring.alerts.webhook.url",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 30*time.Second, Duration("30s", time.Minute))
	assert.Equal(t, time.Minute, Duration("", time.Minute))
	assert.Equal(t, time.Minute, Duration("-5s", time.Minute))
}
