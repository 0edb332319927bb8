package cache

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/erp-backend-go/internal/config"
	"github.com/frostdev-ops/erp-backend-go/internal/core/metrics"
)

// RedisCache watches the shared Redis cache: reachability for the health
// check and keyspace hit rate for the cache rules
type RedisCache struct {
	client *redis.Client
	addr   string
	logger *logrus.Logger
}

// NewRedisCache creates the client. An unreachable server is logged, not
// fatal; the health check reports it on every pass.
func NewRedisCache(cfg config.RedisConfig, logger *logrus.Logger) (*RedisCache, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("Redis is not enabled in configuration")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.WithError(err).WithField("addr", cfg.Addr()).Warn("Redis is not reachable yet")
	} else {
		logger.WithFields(logrus.Fields{
			"host": cfg.Host,
			"port": cfg.Port,
			"db":   cfg.DB,
		}).Info("Redis cache connected")
	}

	return newRedisCache(rdb, cfg.Addr(), logger), nil
}

func newRedisCache(client *redis.Client, addr string, logger *logrus.Logger) *RedisCache {
	return &RedisCache{client: client, addr: addr, logger: logger}
}

// Health pings the server
func (r *RedisCache) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// HitRate reads keyspace_hits and keyspace_misses from INFO stats and returns
// the hit percentage. ok is false before the first lookup.
func (r *RedisCache) HitRate(ctx context.Context) (float64, bool, error) {
	info, err := r.client.Info(ctx, "stats").Result()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read redis stats: %w", err)
	}
	return parseKeyspaceHitRate(info)
}

// HealthCheck builds the "cache" health check
func (r *RedisCache) HealthCheck() metrics.CheckFunc {
	return func(ctx context.Context) metrics.CheckResult {
		start := time.Now()
		if err := r.Health(ctx); err != nil {
			return metrics.NewCheckResult("cache", metrics.CheckDown, "Redis is unreachable").
				WithDetail("addr", r.addr).
				WithDetail("error", err.Error())
		}
		latency := time.Since(start)

		status := metrics.CheckUp
		message := "Redis is reachable"
		if latency > 500*time.Millisecond {
			status = metrics.CheckDegraded
			message = "Redis is responding slowly"
		}
		return metrics.NewCheckResult("cache", status, message).
			WithDetail("addr", r.addr).
			WithResponseTime(latency)
	}
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	return r.client.Close()
}

func parseKeyspaceHitRate(info string) (float64, bool, error) {
	var hits, misses int64
	var sawHits, sawMisses bool

	scanner := bufio.NewScanner(strings.NewReader(info))
	for scanner.Scan() {
		key, value, found := strings.Cut(strings.TrimSpace(scanner.Text()), ":")
		if !found {
			continue
		}
		switch key {
		case "keyspace_hits":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, false, fmt.Errorf("invalid keyspace_hits %q: %w", value, err)
			}
			hits, sawHits = n, true
		case "keyspace_misses":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, false, fmt.Errorf("invalid keyspace_misses %q: %w", value, err)
			}
			misses, sawMisses = n, true
		}
	}
	if !sawHits || !sawMisses {
		return 0, false, fmt.Errorf("redis stats missing keyspace counters")
	}

	total := hits + misses
	if total == 0 {
		return 0, false, nil
	}
	return float64(hits) / float64(total) * 100, true, nil
}
