// Package services defines the business logic for summarization, tag
// extraction, and usage metering. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyText is returned when a summarization request contains no
	// usable text after normalization.
	ErrEmptyText = errors.New("text is empty")

	// ErrTextTooLong is returned when the source text exceeds the maximum
	// configured length limit.
	ErrTextTooLong = errors.New("text too long")

	// ErrSummaryNotFound indicates that the requested summary does not exist
	// or is not accessible to the current user.
	ErrSummaryNotFound = errors.New("summary not found")
)

// RateLimitError is returned when a caller has exhausted their fixed-window
// quota for an operation. RetryAfterSeconds tells the caller when the window
// resets.
type RateLimitError struct {
	RetryAfterSeconds int
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded; retry in %ds", e.RetryAfterSeconds)
}

// TagExtractionError marks a tagging failure that happened after admission
// and the plan gate passed: model invocation, reply parsing, or persisting
// the tag set. These are expected product outcomes (the model output is
// untrusted), so the HTTP layer reports them inside a success=false envelope
// instead of a server error.
type TagExtractionError struct {
	Err error
}

// Error implements the error interface.
func (e *TagExtractionError) Error() string {
	return "tag extraction failed: " + e.Err.Error()
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *TagExtractionError) Unwrap() error { return e.Err }
