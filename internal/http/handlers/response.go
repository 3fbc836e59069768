// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the shared response envelopes. Every failure path in the
// API, handler or router level, goes through fail/Fail so clients always see
// the same shape: a stable snake_case code, a displayable message, and the
// request id for support correlation. 429 additionally carries the seconds
// until the quota window resets, mirrored in the Retry-After header.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ayan319/slack-summary-scribe/internal/http/middleware"
)

// ErrorResponse is the error envelope for all endpoints. Referenced from the
// Swagger annotations on each handler.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"resource not found"`
	// Seconds until the rate-limit window resets (429 only)
	RetryAfterSeconds int `json:"retry_after_seconds,omitempty" example:"31"`
}

// fail aborts the request with the standard envelope. Server-side failures
// (>= 500) are also logged through the request-scoped logger; 4xx are the
// client's problem and logged only by the access logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail exposes fail to the router for NoRoute/NoMethod wiring.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failInternal writes a 500 with a fixed client-safe message. The underlying
// cause goes to the request-scoped log only; it must never reach the body.
func failInternal(c *gin.Context, code, msg string, err error) {
	middleware.LoggerFrom(c).Error().
		Err(err).
		Str("code", code).
		Msg("api error")

	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// failRateLimited writes a 429 whose Retry-After header and body agree.
func failRateLimited(c *gin.Context, retryAfterSeconds int) {
	c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
		RequestID:         c.Writer.Header().Get("X-Request-ID"),
		Code:              ErrCodeRateLimited,
		Message:           "rate limit exceeded",
		RetryAfterSeconds: retryAfterSeconds,
	})
}

// FailRateLimited exposes the 429 envelope to router-level middleware so the
// edge limiter and the per-operation limiter reject with the same shape.
func FailRateLimited(c *gin.Context, retryAfterSeconds int) {
	failRateLimited(c, retryAfterSeconds)
}

// ok writes a success body; kept as a helper so the success path stays
// symmetric with fail.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
