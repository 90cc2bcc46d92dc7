package middleware

import (
	"bitwise74/fileshare-api/pkg/metrics"
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// FailMode decides what happens to requests while Redis can't be reached
type FailMode string

const (
	FailOpen   FailMode = "open"   // let everything through
	FailClosed FailMode = "closed" // reject with 503
	FailLocal  FailMode = "local"  // fall back to an in-process limiter
)

type RateLimiterConfig struct {
	Limit     int
	Window    time.Duration
	FailMode  FailMode
	KeyPrefix string
	Timeout   time.Duration // per Redis round trip
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// localLimiter is a per-IP token bucket with the same average rate as
// the Redis window. It is only consulted while Redis is failing.
type localLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	every     rate.Limit
	burst     int
	ttl       time.Duration
	lastPrune time.Time
}

func newLocalLimiter(limit int, window time.Duration) *localLimiter {
	return &localLimiter{
		visitors:  make(map[string]*visitor),
		every:     rate.Limit(float64(limit) / window.Seconds()),
		burst:     limit,
		ttl:       window,
		lastPrune: time.Now(),
	}
}

func (l *localLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	// Pruning inline keeps the limiter free of background goroutines
	if now.Sub(l.lastPrune) > l.ttl {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.ttl {
				delete(l.visitors, k)
			}
		}
		l.lastPrune = now
	}

	v, exists := l.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.every, l.burst)}
		l.visitors[ip] = v
	}

	v.lastSeen = now
	return v.limiter.Allow()
}

// RateLimiterMiddleware counts requests per client IP in fixed Redis windows
// (INCR, EXPIRE on the first hit) and rejects with 429 once Limit is
// exceeded until the window key expires.
func RateLimiterMiddleware(rdb redis.Cmdable, config RateLimiterConfig) gin.HandlerFunc {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "ratelimit:"
	}
	if config.Timeout == 0 {
		config.Timeout = 500 * time.Millisecond
	}
	if config.FailMode == "" {
		config.FailMode = FailOpen
	}

	var local *localLimiter
	if config.FailMode == FailLocal {
		local = newLocalLimiter(config.Limit, config.Window)
	}

	return func(c *gin.Context) {
		requestID := c.GetString("requestID")
		ip := c.ClientIP()

		ctx, cancel := context.WithTimeout(c.Request.Context(), config.Timeout)
		defer cancel()

		count, retryAfter, err := hit(ctx, rdb, config.KeyPrefix+ip, config.Window)
		if err != nil {
			metrics.RateLimiterErrors.Inc()
			zap.L().Warn("Rate limiter backend unavailable", zap.String("mode", string(config.FailMode)), zap.Error(err))

			switch config.FailMode {
			case FailClosed:
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
					"error":     "Service temporarily unavailable",
					"requestID": requestID,
				})
				return
			case FailLocal:
				if !local.allow(ip) {
					metrics.RateLimited.WithLabelValues("local").Inc()
					c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
						"error":     "Too many requests",
						"requestID": requestID,
					})
					return
				}
			}

			c.Next()
			return
		}

		remaining := max(config.Limit-int(count), 0)
		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > int64(config.Limit) {
			metrics.RateLimited.WithLabelValues("redis").Inc()

			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":     "Too many requests",
				"requestID": requestID,
			})
			return
		}

		c.Next()
	}
}

// hit records one request against key and returns the count in the
// current window and how long the window has left
func hit(ctx context.Context, rdb redis.Cmdable, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}

	if count == 1 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}

		return count, window, nil
	}

	ttl, err := rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}

	// A crash between INCR and EXPIRE would leave a counter that never resets
	if ttl < 0 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		ttl = window
	}

	return count, ttl, nil
}
