// Package handlers defines the stable error codes clients can switch on.
// Codes are lowercase snake_case; generic ones mirror HTTP status semantics,
// the rest name the operation that failed. A code, once published, never
// changes meaning.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	ErrCodeUnknownModel     = "unknown_model"
	ErrCodeSummarizeFailed  = "summarize_failed"
	ErrCodeTaggingFailed    = "tagging_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
