package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/frostdev-ops/erp-backend-go/pkg/utils"
)

// RateLimiter is an in-memory per-client token bucket limiter
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	rate     float64
	burst    float64
	idle     time.Duration
	now      func() time.Time
}

type visitor struct {
	tokens     float64
	lastRefill time.Time
	lastSeen   time.Time
}

// NewRateLimiter allows rate requests per second per client with the given burst
func NewRateLimiter(rate, burst int) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     float64(rate),
		burst:    float64(burst),
		idle:     5 * time.Minute,
		now:      time.Now,
	}
}

// RateLimitMiddleware rejects clients that exhaust their bucket with 429
func (rl *RateLimiter) RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			utils.SendError(c, http.StatusTooManyRequests, "Rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Run evicts idle visitors until ctx is cancelled
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(rl.idle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evictIdle()
		}
	}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{tokens: rl.burst, lastRefill: now}
		rl.visitors[key] = v
	}
	v.lastSeen = now

	elapsed := now.Sub(v.lastRefill).Seconds()
	if elapsed > 0 {
		v.tokens = min(rl.burst, v.tokens+elapsed*rl.rate)
		v.lastRefill = now
	}

	if v.tokens >= 1 {
		v.tokens--
		return true
	}
	return false
}

func (rl *RateLimiter) evictIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idle)
	for key, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, key)
		}
	}
}
