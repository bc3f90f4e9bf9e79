package client

import (
	"fmt"
	"net/http"
)

// classifyStatus maps an HTTP status code to an error kind. Pure function,
// independent of retry and breaker logic so each can be tested in isolation.
func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable:
		return KindRateLimit
	case status >= 500:
		return KindServer
	default:
		// Remaining 4xx, plus any stray non-2xx below 400 (e.g. an
		// unconsumed 304): the request will not succeed as sent.
		return KindClient
	}
}

// classifyResponse builds the classified error for a non-2xx response.
// Error bodies are opaque: only the status and headers are inspected.
func classifyResponse(op string, resp *http.Response) *Error {
	kind := classifyStatus(resp.StatusCode)

	ce := &Error{
		Kind:       kind,
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get(headerRequestID),
		RetryAfter: resp.Header.Get(headerRetryAfter),
	}

	switch kind {
	case KindAuth:
		ce.Message = fmt.Sprintf("%s: authentication failed (%d): check your API key", op, resp.StatusCode)
	case KindRateLimit:
		ce.Message = fmt.Sprintf("%s: rate limit exceeded (%d)", op, resp.StatusCode)
		ce.RateLimit = parseRateLimit(resp.Header)
	case KindClient:
		ce.Message = fmt.Sprintf("%s: request rejected (%d)", op, resp.StatusCode)
	default:
		ce.Message = fmt.Sprintf("%s: server error (%d)", op, resp.StatusCode)
	}

	return ce
}

// classifyTransport builds the classified error for a failure where no
// response was received at all.
func classifyTransport(op string, err error) *Error {
	return &Error{
		Kind:    KindNetwork,
		Message: fmt.Sprintf("%s: %v", op, err),
		Err:     err,
	}
}
