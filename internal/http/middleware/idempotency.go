// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header for unsafe methods and
// detects replays of already-completed requests. Keys are namespaced per
// operation scope so different endpoints can see the same client-supplied key
// without colliding. The middleware never serves a cached payload itself; it
// only annotates the context and leaves replay serving to the handler.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client's dedup key for retried POSTs.
const HeaderIdempotencyKey = "Idempotency-Key"

// Context keys stashed by the validator, read back through the accessors
// below and by the rate limiter's bypass check.
const (
	ctxKeyIdemKey    = "idempotencyKey"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// keyPattern is the default accepted alphabet, an RFC 7230-ish token set.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the validated key for this request, if any.
// Handlers read the key through here, never from the header directly.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether a stored result exists for this request's
// (user, scope, key). Handlers short-circuit to the persisted summary when
// true.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures header validation. TTL enforcement belongs to
// the lookup implementation, not here.
type IdempotencyOptions struct {
	// Scope names the guarded operation (e.g. "summarize") and namespaces
	// keys per endpoint.
	Scope string
	// MaxLen caps accepted key length; <= 0 means 200.
	MaxLen int
	// Pattern overrides the default token alphabet when non-nil.
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports whether a completed, unexpired result exists for
// (userID, scope, key) at now. Lookup errors must not block processing; the
// request simply proceeds as fresh work.
type IdempotencyLookup func(ctx context.Context, userID, scope, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator returns the middleware. Requests without the header
// pass through untouched. Malformed or overlong keys get a 400. A valid key
// is stashed for the handler, and when lookup confirms a prior result the
// replay and rate-bypass flags are set.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = keyPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "bad_idempotency_key",
				"message": "invalid Idempotency-Key",
			})
			return
		}

		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			exists, _ := lookup(c.Request.Context(), userIDFromCtx(c), opts.Scope, key, time.Now().UTC())
			if exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}

// userIDFromCtx mirrors the handlers' identity resolution: context value,
// then X-User-ID header, then the demo fallback.
func userIDFromCtx(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if h := c.GetHeader("X-User-ID"); h != "" {
		return h
	}
	return "demo-user"
}
