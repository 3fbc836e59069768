// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides the correlation-ID injector, the access logger, and the
// panic recovery handler. Recommended ordering is RequestID, then a logger
// (Logger or RedactingLogger), then Recovery, so panics and errors are logged
// with the correlation ID already attached.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// Gin context keys.
	requestIDKey = "requestID"
	loggerKey    = "logger"

	// requestIDHeader propagates the correlation ID in both directions.
	requestIDHeader = "X-Request-ID"

	// Raw query strings are capped in logs; transcripts do not belong there.
	maxQueryLogLength = 2048
)

// RequestID reuses an incoming X-Request-ID or mints a UUIDv4, stores it in
// the Gin context, and echoes it on the response header. Runs first in the
// chain so every later log line and error body can carry the ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger writes one structured access-log line per request and stashes a
// request-scoped zerolog.Logger in the context for handlers and services to
// enrich. Level follows the outcome: 5xx (or collected Gin errors) log at
// error, 4xx at warn, everything else at info.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid, _ := c.Get(requestIDKey)
		uid, _ := c.Get("userID")
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		scoped := log.With().
			Str("request_id", asString(rid)).
			Str("user_id", asString(uid)).
			Str("method", c.Request.Method).
			Str("path", route).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
			Int64("bytes_in", c.Request.ContentLength). // -1 when unknown
			Logger()
		c.Set(loggerKey, &scoped)

		c.Next()

		status := c.Writer.Status()
		outcome := scoped.With().
			Int("status", status).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Logger()

		switch {
		case len(c.Errors) > 0:
			outcome.Error().Str("errors", c.Errors.String()).Msg("request")
		case status >= 500:
			outcome.Error().Msg("request")
		case status >= 400:
			outcome.Warn().Msg("request")
		default:
			outcome.Info().Msg("request")
		}
	}
}

// Recovery converts a panic into a JSON 500 with the correlation ID, logging
// the panic value and stack first. When the handler already wrote a partial
// response only the status is forced.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid, _ := c.Get(requestIDKey)
			log.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", asString(rid)).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header("Content-Type", "application/json")
			c.Header(requestIDHeader, asString(rid))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": asString(rid),
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger attached by Logger, or the
// global logger when none is present. Never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// asString narrows a context value to string, empty for anything else.
func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate caps s at max bytes with a trailing ellipsis. max <= 0 disables
// the cap. Byte-level slicing is fine for log output.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
