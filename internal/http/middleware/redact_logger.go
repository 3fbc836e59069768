// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the structured request logger.
// Summarization transcripts routinely carry names, emails, and phone numbers,
// so the logger never records bodies at all and scrubs whatever leaks into
// query strings and headers before a line is emitted.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Scrub patterns, compiled once. The phone pattern is digits-only so it
// cannot match the hex segments of a UUID; UUIDs are still replaced first
// because their digit/hyphen runs would otherwise look like phone numbers.
var (
	reUUID  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	reEmail = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	rePhone = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// Header names whose values are always fully masked.
var alwaysMasked = []string{"authorization", "cookie", "set-cookie"}

// RedactOptions configures extra scrub behavior. MaskHeaders lists additional
// header names (case-insensitive) to fully replace with "[REDACTED]", merged
// with the built-in Authorization/Cookie/Set-Cookie set.
type RedactOptions struct {
	MaskHeaders []string
}

// scrubText replaces identifiers in s with typed redaction markers.
func scrubText(s string) string {
	if s == "" {
		return s
	}
	s = reUUID.ReplaceAllString(s, "[REDACTED:id]")
	s = reEmail.ReplaceAllString(s, "[REDACTED:email]")
	return rePhone.ReplaceAllString(s, "[REDACTED:phone]")
}

// RedactingLogger returns a middleware that logs one structured line per
// request: method, route, scrubbed query, status, bytes, latency, and the
// scrubbed request headers. Level escalates with status (info, warn on 4xx,
// error on 5xx). Bodies are never logged.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := make(map[string]struct{}, len(alwaysMasked)+len(opts.MaskHeaders))
	for _, h := range alwaysMasked {
		masked[h] = struct{}{}
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		query := scrubText(c.Request.URL.RawQuery)

		headers := make(map[string]string, len(c.Request.Header))
		for name, values := range c.Request.Header {
			if _, hide := masked[strings.ToLower(name)]; hide {
				headers[name] = "[REDACTED]"
			} else {
				headers[name] = scrubText(strings.Join(values, ", "))
			}
		}

		c.Next()

		status := c.Writer.Status()
		reqID := c.Writer.Header().Get("X-Request-ID")
		if reqID == "" {
			reqID = c.GetHeader("X-Request-ID")
		}

		severityFor(status).
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", route).
			Str("query", query).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}

func severityFor(status int) *zerolog.Event {
	switch {
	case status >= 500:
		return log.Error()
	case status >= 400:
		return log.Warn()
	default:
		return log.Info()
	}
}
