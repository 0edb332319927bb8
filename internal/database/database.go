package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/frostdev-ops/erp-backend-go/internal/config"
	"github.com/frostdev-ops/erp-backend-go/internal/core/alerting"
	"github.com/frostdev-ops/erp-backend-go/internal/core/metrics"
)

// DB wraps the application database with the signals alerting consumes:
// pool occupancy and a ping-based health check
type DB struct {
	*sqlx.DB
	maxConnections int
	logger         *logrus.Logger
}

// Initialize creates and configures the database connection
func Initialize(cfg config.DatabaseConfig, logger *logrus.Logger) (*DB, error) {
	if cfg.Path != ":memory:" {
		// Ensure database directory exists
		dbDir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 1
	}

	// Configure connection pool
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(max(1, maxConns/2))
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(time.Minute * 30)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Apply SQLite optimizations
	if err := applySQLiteOptimizations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply SQLite optimizations: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"path":            cfg.Path,
		"max_connections": maxConns,
	}).Info("Database initialized")

	return &DB{DB: db, maxConnections: maxConns, logger: logger}, nil
}

// applySQLiteOptimizations applies SQLite-specific performance settings
func applySQLiteOptimizations(db *sqlx.DB) error {
	optimizations := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range optimizations {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

// ConnectionStats reports in-use connections against the pool limit
func (d *DB) ConnectionStats() alerting.ConnectionUsage {
	stats := d.DB.Stats()
	return alerting.ConnectionUsage{
		Active: stats.InUse,
		Max:    d.maxConnections,
	}
}

// HealthCheck builds the critical "database" health check
func (d *DB) HealthCheck() metrics.CheckFunc {
	return func(ctx context.Context) metrics.CheckResult {
		start := time.Now()
		var one int
		if err := d.GetContext(ctx, &one, "SELECT 1"); err != nil {
			return metrics.NewCheckResult("database", metrics.CheckDown, "Database query failed").
				WithDetail("error", err.Error())
		}
		latency := time.Since(start)

		usage := d.ConnectionStats()
		status := metrics.CheckUp
		message := "Database is reachable"
		if pct, ok := usage.Percent(); ok && pct >= 90 {
			status = metrics.CheckDegraded
			message = "Database connection pool is nearly exhausted"
		}

		return metrics.NewCheckResult("database", status, message).
			WithResponseTime(latency).
			WithDetail("open_connections", d.DB.Stats().OpenConnections).
			WithDetail("in_use", usage.Active).
			WithDetail("max_connections", usage.Max)
	}
}

// Close closes the database
func (d *DB) Close() error {
	d.logger.Info("Closing database")
	return d.DB.Close()
}
