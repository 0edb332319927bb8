package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/frostdev-ops/erp-backend-go/internal/core/alerting"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	Host        string   `mapstructure:"host"`
	Mode        string   `mapstructure:"mode"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// RedisConfig configures the cache whose hit rate and reachability feed alerting
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MonitoringConfig contains monitoring and alerting configuration
type MonitoringConfig struct {
	Enabled            bool                        `mapstructure:"enabled"`
	SchedulerInterval  string                      `mapstructure:"scheduler_interval"`
	PerformanceWindow  string                      `mapstructure:"performance_window"`
	HealthCheckTimeout string                      `mapstructure:"health_check_timeout"`
	Alerts             MonitoringAlertsConfig      `mapstructure:"alerts"`
	Prometheus         MonitoringPrometheusConfig  `mapstructure:"prometheus"`
	Performance        MonitoringPerformanceConfig `mapstructure:"performance"`
}

// MonitoringAlertsConfig contains alert engine configuration
type MonitoringAlertsConfig struct {
	Enabled             bool                             `mapstructure:"enabled"`
	MaxAlerts           int                              `mapstructure:"max_alerts"`
	RetentionPeriod     string                           `mapstructure:"retention_period"`
	RetentionSchedule   string                           `mapstructure:"retention_schedule"`
	DefaultCooldown     string                           `mapstructure:"default_cooldown"`
	NotificationTimeout string                           `mapstructure:"notification_timeout"`
	RulesFile           string                           `mapstructure:"rules_file"`
	Thresholds          MonitoringAlertsThresholdsConfig `mapstructure:"thresholds"`
	Email               AlertEmailConfig                 `mapstructure:"email"`
	Webhook             AlertWebhookConfig               `mapstructure:"webhook"`
	WebSocket           AlertWebSocketConfig             `mapstructure:"websocket"`
}

// MonitoringAlertsThresholdsConfig contains the built-in rule thresholds
type MonitoringAlertsThresholdsConfig struct {
	ResponseTimeMs         float64 `mapstructure:"response_time_ms"`
	ResponseTimeCriticalMs float64 `mapstructure:"response_time_critical_ms"`
	ErrorRate              float64 `mapstructure:"error_rate"`
	ErrorRateCritical      float64 `mapstructure:"error_rate_critical"`
	CPUPercent             float64 `mapstructure:"cpu_percent"`
	CPUCriticalPercent     float64 `mapstructure:"cpu_critical_percent"`
	MemoryPercent          float64 `mapstructure:"memory_percent"`
	MemoryCriticalPercent  float64 `mapstructure:"memory_critical_percent"`
	DiskPercent            float64 `mapstructure:"disk_percent"`
	DiskCriticalPercent    float64 `mapstructure:"disk_critical_percent"`
	DBConnectionPercent    float64 `mapstructure:"db_connection_percent"`
	CacheHitRate           float64 `mapstructure:"cache_hit_rate"`
	CacheHitRateCritical   float64 `mapstructure:"cache_hit_rate_critical"`
}

// AlertEmailConfig contains SMTP notification settings
type AlertEmailConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// AlertWebhookConfig contains webhook notification settings
type AlertWebhookConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

// AlertWebSocketConfig toggles the live alert stream channel
type AlertWebSocketConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// MonitoringPrometheusConfig contains Prometheus configuration
type MonitoringPrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// MonitoringPerformanceConfig contains request tracking configuration
type MonitoringPerformanceConfig struct {
	MaxDataPoints       int `mapstructure:"max_data_points"`
	EndpointRankingSize int `mapstructure:"endpoint_ranking_size"`
}

// Load reads config.yaml from ./configs or the working directory. A non-empty
// path selects an explicit file instead. Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Set defaults
	setDefaults(v)

	// Read environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Override specific values from env
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("server.port", "PORT")
	v.BindEnv("database.path", "DATABASE_PATH")
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("monitoring.alerts.email.password", "ALERT_SMTP_PASSWORD")
	v.BindEnv("monitoring.alerts.webhook.url", "ALERT_WEBHOOK_URL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Validate the configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration for completeness and correctness
func (c *Config) Validate() error {
	var errors []string

	// Validate server configuration
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errors = append(errors, "server.port must be between 1 and 65535")
	}
	if c.Server.Host == "" {
		errors = append(errors, "server.host is required")
	}

	// Validate database configuration
	if c.Database.Path == "" {
		errors = append(errors, "database.path is required")
	}
	if c.Database.MaxConnections <= 0 {
		errors = append(errors, "database.max_connections must be greater than 0")
	}

	if c.Redis.Enabled && c.Redis.Host == "" {
		errors = append(errors, "redis.host is required when redis is enabled")
	}

	// Validate authentication configuration
	if c.Auth.Enabled && (c.Auth.JWTSecret == "" || c.Auth.JWTSecret == "your-secret-key-here") {
		errors = append(errors, "auth.jwt_secret must be set to a secure value when enabled")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}

	m := c.Monitoring
	durations := map[string]string{
		"monitoring.scheduler_interval":          m.SchedulerInterval,
		"monitoring.performance_window":          m.PerformanceWindow,
		"monitoring.health_check_timeout":        m.HealthCheckTimeout,
		"monitoring.alerts.retention_period":     m.Alerts.RetentionPeriod,
		"monitoring.alerts.default_cooldown":     m.Alerts.DefaultCooldown,
		"monitoring.alerts.notification_timeout": m.Alerts.NotificationTimeout,
	}
	for _, key := range sortedKeys(durations) {
		d, err := time.ParseDuration(durations[key])
		if err != nil {
			errors = append(errors, fmt.Sprintf("%s: %v", key, err))
			continue
		}
		if d <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive", key))
		}
	}

	if m.Alerts.MaxAlerts <= 0 {
		errors = append(errors, "monitoring.alerts.max_alerts must be greater than 0")
	}

	if m.Alerts.Email.Enabled {
		if m.Alerts.Email.SMTPHost == "" {
			errors = append(errors, "monitoring.alerts.email.smtp_host is required when email alerts are enabled")
		}
		if m.Alerts.Email.From == "" {
			errors = append(errors, "monitoring.alerts.email.from is required when email alerts are enabled")
		}
		if len(m.Alerts.Email.To) == 0 {
			errors = append(errors, "monitoring.alerts.email.to needs at least one recipient")
		}
	}
	if m.Alerts.Webhook.Enabled && m.Alerts.Webhook.URL == "" {
		errors = append(errors, "monitoring.alerts.webhook.url is required when webhook alerts are enabled")
	}

	// Rule files are parsed here so a bad operator or metric stops startup
	if m.Alerts.RulesFile != "" {
		if _, err := alerting.LoadRulesFile(m.Alerts.RulesFile, time.Minute); err != nil {
			errors = append(errors, fmt.Sprintf("monitoring.alerts.rules_file: %v", err))
		}
	}

	// If there are validation errors, return them
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Thresholds converts the configured values for the built-in rules
func (t MonitoringAlertsThresholdsConfig) Thresholds() alerting.Thresholds {
	return alerting.Thresholds{
		ResponseTimeMs:         t.ResponseTimeMs,
		ResponseTimeCriticalMs: t.ResponseTimeCriticalMs,
		ErrorRate:              t.ErrorRate,
		ErrorRateCritical:      t.ErrorRateCritical,
		CPUPercent:             t.CPUPercent,
		CPUCriticalPercent:     t.CPUCriticalPercent,
		MemoryPercent:          t.MemoryPercent,
		MemoryCriticalPercent:  t.MemoryCriticalPercent,
		DiskPercent:            t.DiskPercent,
		DiskCriticalPercent:    t.DiskCriticalPercent,
		DBConnectionPercent:    t.DBConnectionPercent,
		CacheHitRate:           t.CacheHitRate,
		CacheHitRateCritical:   t.CacheHitRateCritical,
	}
}

// Duration parses a validated duration string, falling back when empty or invalid
func Duration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.path", "./data/erp.db")
	v.SetDefault("database.max_connections", 10)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	// Auth defaults
	v.SetDefault("auth.enabled", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Monitoring defaults
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.scheduler_interval", "60s")
	v.SetDefault("monitoring.performance_window", "5m")
	v.SetDefault("monitoring.health_check_timeout", "5s")

	// Alert defaults
	v.SetDefault("monitoring.alerts.enabled", true)
	v.SetDefault("monitoring.alerts.max_alerts", alerting.DefaultMaxAlerts)
	v.SetDefault("monitoring.alerts.retention_period", "168h")
	v.SetDefault("monitoring.alerts.retention_schedule", "@every 1h")
	v.SetDefault("monitoring.alerts.default_cooldown", alerting.DefaultCooldown.String())
	v.SetDefault("monitoring.alerts.notification_timeout", alerting.DefaultNotificationTimeout.String())
	v.SetDefault("monitoring.alerts.websocket.enabled", true)

	defaults := alerting.DefaultThresholds()
	v.SetDefault("monitoring.alerts.thresholds.response_time_ms", defaults.ResponseTimeMs)
	v.SetDefault("monitoring.alerts.thresholds.response_time_critical_ms", defaults.ResponseTimeCriticalMs)
	v.SetDefault("monitoring.alerts.thresholds.error_rate", defaults.ErrorRate)
	v.SetDefault("monitoring.alerts.thresholds.error_rate_critical", defaults.ErrorRateCritical)
	v.SetDefault("monitoring.alerts.thresholds.cpu_percent", defaults.CPUPercent)
	v.SetDefault("monitoring.alerts.thresholds.cpu_critical_percent", defaults.CPUCriticalPercent)
	v.SetDefault("monitoring.alerts.thresholds.memory_percent", defaults.MemoryPercent)
	v.SetDefault("monitoring.alerts.thresholds.memory_critical_percent", defaults.MemoryCriticalPercent)
	v.SetDefault("monitoring.alerts.thresholds.disk_percent", defaults.DiskPercent)
	v.SetDefault("monitoring.alerts.thresholds.disk_critical_percent", defaults.DiskCriticalPercent)
	v.SetDefault("monitoring.alerts.thresholds.db_connection_percent", defaults.DBConnectionPercent)
	v.SetDefault("monitoring.alerts.thresholds.cache_hit_rate", defaults.CacheHitRate)
	v.SetDefault("monitoring.alerts.thresholds.cache_hit_rate_critical", defaults.CacheHitRateCritical)

	v.SetDefault("monitoring.alerts.email.smtp_port", 587)

	// Prometheus defaults
	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.path", "/metrics")

	// Performance tracking defaults
	v.SetDefault("monitoring.performance.max_data_points", 10000)
	v.SetDefault("monitoring.performance.endpoint_ranking_size", 5)
}
