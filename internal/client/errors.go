package client

import (
	"errors"
	"fmt"
)

// Kind partitions every failure the client can surface. Raw transport
// errors never escape the client unwrapped; callers always see an *Error
// carrying exactly one of these kinds.
type Kind string

const (
	// KindNetwork covers failures where no HTTP response was received:
	// connection refused, DNS failure, timeout. Retryable.
	KindNetwork Kind = "network"

	// KindAuth covers 401/403 responses. Not retryable.
	KindAuth Kind = "auth"

	// KindRateLimit covers 429, plus 503 treated as a transient capacity
	// limit. Retryable, with the parsed rate-limit snapshot attached.
	KindRateLimit Kind = "rate_limit"

	// KindClient covers other 4xx responses. The request itself is
	// malformed, so retrying cannot help.
	KindClient Kind = "client"

	// KindServer covers 5xx responses other than 503. Retryable.
	KindServer Kind = "server"

	// KindCircuitOpen is produced locally when the circuit breaker is
	// open; no network call was attempted.
	KindCircuitOpen Kind = "circuit_open"
)

// CLI exit codes per error kind. Zero means success; 1 is reserved for
// generic failures; 2 for usage errors (cobra).
const (
	ExitAuth        = 3
	ExitClient      = 4
	ExitRateLimit   = 5
	ExitServer      = 6
	ExitNetwork     = 7
	ExitCircuitOpen = 8
	ExitBatchAbort  = 9
)

// Error is the classified form of every failure surfaced by the client.
type Error struct {
	// Kind identifies the failure class and drives retry decisions.
	Kind Kind

	// Message is a human-readable description.
	Message string

	// StatusCode is the HTTP status that produced this error, or zero for
	// network and circuit-open failures.
	StatusCode int

	// RequestID is the upstream request identifier echoed in the
	// X-Request-Id header, for support correlation. May be empty.
	RequestID string

	// RateLimit carries the snapshot parsed from the failing response.
	// Set only for KindRateLimit.
	RateLimit RateLimitSnapshot

	// RetryAfter is the server-provided wait hint, in effect only for
	// responses that carried a Retry-After header.
	RetryAfter string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%s: %s (request id %s)", e.Kind, e.Message, e.RequestID)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether another physical attempt could succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindRateLimit, KindServer:
		return true
	default:
		return false
	}
}

// ExitCode maps the error kind to the CLI process exit code.
func (e *Error) ExitCode() int {
	switch e.Kind {
	case KindAuth:
		return ExitAuth
	case KindClient:
		return ExitClient
	case KindRateLimit:
		return ExitRateLimit
	case KindServer:
		return ExitServer
	case KindNetwork:
		return ExitNetwork
	case KindCircuitOpen:
		return ExitCircuitOpen
	default:
		return 1
	}
}

// AsError extracts an *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsRateLimited reports whether err is (or wraps) a rate-limit classified
// error. The batch engine uses this to drive adaptive throttling.
func IsRateLimited(err error) bool {
	if ce, ok := AsError(err); ok {
		return ce.Kind == KindRateLimit
	}
	return false
}
