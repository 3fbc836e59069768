// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file is the edge abuse limiter: per-identity token buckets over
// golang.org/x/time/rate, sitting in front of the per-operation quota windows
// the services enforce. It is process-local; a horizontally scaled deployment
// needs a shared store to enforce global limits.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc maps a request to the identity string that owns a bucket. Keys are
// prefixed ("user:", "ip:") so the two namespaces cannot collide.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP prefers the authenticated user id from the Gin context and
// falls back to the client IP for anonymous traffic.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get("userID"); ok {
			if s, ok := v.(string); ok && s != "" {
				return "user:" + s
			}
		}
		return "ip:" + c.ClientIP()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per identity. Buckets are created on
// demand; idle ones are evicted after ttl by a sweep that runs every few
// thousand lookups, so memory stays bounded without a background goroutine.
// Safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc

	// OnLimit writes the 429 response. The router points it at the shared
	// handlers envelope so edge denials and per-operation quota denials are
	// indistinguishable to clients. The fallback below mirrors that shape.
	OnLimit func(c *gin.Context, retryAfterSeconds int)

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	cleanupN uint64
}

// NewRateLimiter builds a limiter refilling rps tokens per second with the
// given burst capacity (coerced to at least 1), keyed by keyFn.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

// getVisitor fetches or creates the bucket for key. The idle sweep runs
// before the lookup so a stale bucket is evicted even when it is the one
// being fetched.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		rl.cleanupN = 0
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
	}

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// IsRateBypass reports whether IdempotencyValidator flagged this request as a
// replay of completed work. Replays are served without consuming tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns the enforcing middleware. Denied requests get a 429 with
// the standard error envelope and a minimal Retry-After.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		if rl.getVisitor(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}

		if rl.OnLimit != nil {
			rl.OnLimit(c, 1)
			return
		}
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id":          c.Writer.Header().Get("X-Request-ID"),
			"code":                "too_many_requests",
			"message":             "rate limit exceeded",
			"retry_after_seconds": 1,
		})
	}
}
