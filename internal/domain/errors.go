package domain

import "errors"

// Business errors (mapped to HTTP codes in the transport layer).
var (
	ErrBadParams        = errors.New("bad_params")         // 400
	ErrUnauth           = errors.New("unauthorized")       // 401
	ErrForbidden        = errors.New("forbidden")          // 403
	ErrNotFound         = errors.New("not_found")          // 404
	ErrMethodNotAllowed = errors.New("method_not_allowed") // 405
	ErrConflict         = errors.New("conflict")           // 409, lock contention; retry the whole operation
	ErrRateLimited      = errors.New("rate_limited")       // 429
	ErrUnexpected       = errors.New("unexpected")         // 500

	// ErrCacheUnavailable is internal: the cache layer swallows it and falls
	// back to the authoritative store. It never reaches a handler.
	ErrCacheUnavailable = errors.New("cache_unavailable")
)

// Envelope error codes.
const (
	ErrCodeBadParams        = 1000
	ErrCodeUnauth           = 1001
	ErrCodeForbidden        = 1003
	ErrCodeNotFound         = 1004
	ErrCodeMethodNotAllowed = 1005
	ErrCodeConflict         = 1009
	ErrCodeRateLimited      = 1029
	ErrCodeUnexpected       = 1500
)
