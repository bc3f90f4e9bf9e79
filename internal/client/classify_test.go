package client

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   Kind
	}{
		{"Unauthorized", http.StatusUnauthorized, KindAuth},
		{"Forbidden", http.StatusForbidden, KindAuth},
		{"TooManyRequests", http.StatusTooManyRequests, KindRateLimit},
		{"ServiceUnavailable", http.StatusServiceUnavailable, KindRateLimit},
		{"BadRequest", http.StatusBadRequest, KindClient},
		{"NotFound", http.StatusNotFound, KindClient},
		{"UnprocessableEntity", http.StatusUnprocessableEntity, KindClient},
		{"InternalServerError", http.StatusInternalServerError, KindServer},
		{"BadGateway", http.StatusBadGateway, KindServer},
		{"GatewayTimeout", http.StatusGatewayTimeout, KindServer},
		// A 3xx that escapes the redirect-following transport is not a
		// server fault and must stay terminal, not retryable.
		{"NotModified", http.StatusNotModified, KindClient},
		{"MovedPermanently", http.StatusMovedPermanently, KindClient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyStatus(tt.status))
		})
	}
}

func TestErrorRetryable(t *testing.T) {
	retryable := []Kind{KindNetwork, KindRateLimit, KindServer}
	terminal := []Kind{KindAuth, KindClient, KindCircuitOpen}

	for _, k := range retryable {
		assert.True(t, (&Error{Kind: k}).Retryable(), "kind %s", k)
	}
	for _, k := range terminal {
		assert.False(t, (&Error{Kind: k}).Retryable(), "kind %s", k)
	}
}

func TestErrorExitCode(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindAuth, ExitAuth},
		{KindClient, ExitClient},
		{KindRateLimit, ExitRateLimit},
		{KindServer, ExitServer},
		{KindNetwork, ExitNetwork},
		{KindCircuitOpen, ExitCircuitOpen},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, (&Error{Kind: tt.kind}).ExitCode())
	}
}

func TestErrorMessageIncludesRequestID(t *testing.T) {
	err := &Error{Kind: KindServer, Message: "server error (500)", RequestID: "req-abc"}
	assert.Contains(t, err.Error(), "req-abc")
}
