// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders, which hardens JSON API responses with a
// conservative header set. There is no CSP here: the service never serves
// HTML. HSTS is opt-in and only ever emitted for requests that actually came
// in over HTTPS (directly or via a trusted proxy).
package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures the headers emitted by SecurityHeaders.
//
// EnableHSTS must only be set when traffic is HTTPS end-to-end, including the
// proxy-to-app hop. HSTSMaxAge defaults to 180 days when unset or negative.
// NoStore adds Cache-Control: no-store (plus the legacy Pragma/Expires pair)
// for responses that must never be cached. EnablePolicy adds the browser
// feature-policy headers; harmless for non-browser clients.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	NoStore      bool
	EnablePolicy bool
}

// Headers applied to every response regardless of options.
var baselineHeaders = map[string]string{
	"X-Content-Type-Options": "nosniff",
	"X-Frame-Options":        "DENY",
	"Referrer-Policy":        "no-referrer",
}

// SecurityHeaders returns a middleware adding security headers per opt.
// When a request id is already on the response, it is appended to
// Access-Control-Expose-Headers so browser clients can correlate logs.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	hstsValue := fmt.Sprintf("max-age=%d; includeSubDomains; preload", hstsSeconds(opt.HSTSMaxAge))

	return func(c *gin.Context) {
		h := c.Writer.Header()

		for k, v := range baselineHeaders {
			h.Set(k, v)
		}

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		// Never advertise HSTS on plain-HTTP requests.
		if opt.EnableHSTS && requestIsHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hstsValue)
		}

		if rid := h.Get("X-Request-ID"); rid != "" {
			exposeHeader(h, "X-Request-ID")
		}

		c.Next()
	}
}

func hstsSeconds(d time.Duration) int {
	if s := int(d.Seconds()); s > 0 {
		return s
	}
	return int((180 * 24 * time.Hour).Seconds())
}

// exposeHeader appends name to Access-Control-Expose-Headers without
// clobbering values set by the CORS layer.
func exposeHeader(h http.Header, name string) {
	const key = "Access-Control-Expose-Headers"
	cur := h.Get(key)
	switch {
	case cur == "":
		h.Set(key, name)
	case !strings.Contains(cur, name):
		h.Set(key, cur+", "+name)
	}
}

// requestIsHTTPS reports whether the request arrived over TLS, either
// terminated here or at a proxy that set X-Forwarded-Proto.
func requestIsHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
