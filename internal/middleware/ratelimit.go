package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter decides whether one more request for key fits in the window.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// InMemoryRateLimiter is a sliding-window limiter for single-instance deployments.
type InMemoryRateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

func NewInMemoryRateLimiter(limit int, window time.Duration) *InMemoryRateLimiter {
	return &InMemoryRateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

func (r *InMemoryRateLimiter) Allow(_ context.Context, key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	valid := prune(r.requests[key], now.Add(-r.window))
	if len(valid) >= r.limit {
		r.requests[key] = valid
		return false
	}
	r.requests[key] = append(valid, now)
	return true
}

// Cleanup drops idle keys until ctx is done.
func (r *InMemoryRateLimiter) Cleanup(ctx context.Context) {
	tick := time.NewTicker(time.Minute)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
		r.mu.Lock()
		cutoff := time.Now().Add(-r.window)
		for k, times := range r.requests {
			if valid := prune(times, cutoff); len(valid) == 0 {
				delete(r.requests, k)
			} else {
				r.requests[k] = valid
			}
		}
		r.mu.Unlock()
	}
}

func prune(times []time.Time, cutoff time.Time) []time.Time {
	valid := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	return valid
}

// RedisRateLimiter is a fixed-window counter shared by every instance. When
// Redis is unreachable it falls back to the in-memory limiter.
type RedisRateLimiter struct {
	rdb      *redis.Client
	limit    int64
	window   time.Duration
	prefix   string
	fallback *InMemoryRateLimiter
	log      *zap.Logger
}

func NewRedisRateLimiter(rdb *redis.Client, prefix string, limit int, window time.Duration, log *zap.Logger) *RedisRateLimiter {
	return &RedisRateLimiter{
		rdb:      rdb,
		limit:    int64(limit),
		window:   window,
		prefix:   prefix,
		fallback: NewInMemoryRateLimiter(limit, window),
		log:      log.Named("ratelimit"),
	}
}

func (r *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	bucket := time.Now().UnixNano() / int64(r.window)
	k := r.prefix + ":" + key + ":" + time.Unix(0, bucket*int64(r.window)).UTC().Format("20060102150405")
	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Warn("redis rate limit unavailable, using local window", zap.Error(err))
		return r.fallback.Allow(ctx, key)
	}
	return incr.Val() <= r.limit
}

// RateLimit returns a middleware that limits by client IP.
func RateLimit(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.Request.Context(), c.ClientIP()) {
			abort(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		c.Next()
	}
}
