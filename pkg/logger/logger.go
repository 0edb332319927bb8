package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultBatchSize = 100

// RequestMetrics holds metrics for a specific endpoint
type RequestMetrics struct {
	Count      int           `json:"count"`
	TotalTime  time.Duration `json:"total_time"`
	MinLatency time.Duration `json:"min_latency"`
	MaxLatency time.Duration `json:"max_latency"`
	AvgLatency time.Duration `json:"avg_latency"`
}

// Options control logger construction
type Options struct {
	Level     string
	Format    string // "json" or "text"
	Output    io.Writer
	BatchSize int
}

// BatchLogger wraps logrus.Logger and folds successful request logs into
// periodic summaries so high-volume polling does not drown out alerts
type BatchLogger struct {
	*logrus.Logger
	metrics    map[string]*RequestMetrics
	batchCount int
	batchSize  int
	mutex      sync.Mutex
}

// New creates a logger from the given options
func New(opts Options) *BatchLogger {
	log := logrus.New()

	if opts.Format == "text" {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "time",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "msg",
				logrus.FieldKeyFunc:  "func",
			},
		})
	}

	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	log.SetOutput(opts.Output)

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	return &BatchLogger{
		Logger:    log,
		metrics:   make(map[string]*RequestMetrics),
		batchSize: opts.BatchSize,
	}
}

// LogRequest logs a request, batching 2xx responses
func (bl *BatchLogger) LogRequest(method, endpoint string, statusCode int, latency time.Duration, fields logrus.Fields) {
	if statusCode >= 200 && statusCode < 300 {
		bl.batchSuccess(method, endpoint, latency)
		return
	}

	entry := bl.WithFields(fields)
	switch {
	case statusCode >= 500:
		entry.Errorf("%s %s - Status: %d, Latency: %v", method, endpoint, statusCode, latency)
	case statusCode >= 400:
		entry.Warnf("%s %s - Status: %d, Latency: %v", method, endpoint, statusCode, latency)
	default:
		entry.Infof("%s %s - Status: %d, Latency: %v", method, endpoint, statusCode, latency)
	}
}

func (bl *BatchLogger) batchSuccess(method, endpoint string, latency time.Duration) {
	bl.mutex.Lock()
	defer bl.mutex.Unlock()

	key := method + " " + endpoint
	m := bl.metrics[key]
	if m == nil {
		m = &RequestMetrics{MinLatency: latency, MaxLatency: latency}
		bl.metrics[key] = m
	}

	m.Count++
	m.TotalTime += latency
	m.MinLatency = min(m.MinLatency, latency)
	m.MaxLatency = max(m.MaxLatency, latency)
	m.AvgLatency = m.TotalTime / time.Duration(m.Count)

	bl.batchCount++
	if bl.batchCount >= bl.batchSize {
		bl.flushBatch()
	}
}

func (bl *BatchLogger) flushBatch() {
	if bl.batchCount == 0 {
		return
	}

	bl.WithFields(logrus.Fields{
		"batch_summary":  true,
		"total_requests": bl.batchCount,
		"endpoints":      bl.metrics,
	}).Info("Request batch summary (2xx responses)")

	bl.metrics = make(map[string]*RequestMetrics)
	bl.batchCount = 0
}

// FlushPending forces a flush of any pending batch data
func (bl *BatchLogger) FlushPending() {
	bl.mutex.Lock()
	defer bl.mutex.Unlock()
	bl.flushBatch()
}

// Pending returns the number of batched requests not yet summarised
func (bl *BatchLogger) Pending() int {
	bl.mutex.Lock()
	defer bl.mutex.Unlock()
	return bl.batchCount
}
