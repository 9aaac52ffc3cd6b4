// Package handlers defines HTTP-layer error codes used across all API
// endpoints.
//
// The codes form a stable, machine-readable taxonomy that supplements the
// human-readable message in the error envelope. Generic codes mirror HTTP
// status semantics; domain-specific codes mark business failures that a
// status alone cannot convey. Handlers pick the most specific code and pass
// it to fail() with the matching status.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeStartFailed      = "start_failed"
	ErrCodeSendFailed       = "send_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeUploadFailed     = "upload_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
