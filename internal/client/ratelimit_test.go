package client

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRateLimit(t *testing.T) {
	t.Run("DefaultBucket", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-RateLimit-Limit", "500")
		h.Set("X-RateLimit-Remaining", "487")
		h.Set("X-RateLimit-Reset", "900")

		snapshot := parseRateLimit(h)
		require.Len(t, snapshot, 1)
		assert.Equal(t, RateLimitBucket{Limit: 500, Remaining: 487, ResetSeconds: 900}, snapshot["default"])
	})

	t.Run("NamedBuckets", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-RateLimit-Limit", "100")
		h.Set("X-RateLimit-Remaining", "42")
		h.Set("X-RateLimit-Reset", "60")
		h.Set("X-RateLimit-Limit-Hour", "2000")
		h.Set("X-RateLimit-Remaining-Hour", "1999")
		h.Set("X-RateLimit-Reset-Hour", "3600")

		snapshot := parseRateLimit(h)
		require.Len(t, snapshot, 2)
		assert.Equal(t, RateLimitBucket{Limit: 100, Remaining: 42, ResetSeconds: 60}, snapshot["default"])
		assert.Equal(t, RateLimitBucket{Limit: 2000, Remaining: 1999, ResetSeconds: 3600}, snapshot["hour"])
	})

	t.Run("NoHeadersReturnsNil", func(t *testing.T) {
		h := http.Header{}
		h.Set("Content-Type", "application/json")
		assert.Nil(t, parseRateLimit(h))
	})

	t.Run("GarbageValuesSkipped", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-RateLimit-Limit", "lots")
		h.Set("X-RateLimit-Remaining", "10")

		snapshot := parseRateLimit(h)
		require.Len(t, snapshot, 1)
		assert.Equal(t, RateLimitBucket{Remaining: 10}, snapshot["default"])
	})
}

func TestRateLimitCache(t *testing.T) {
	var cache rateLimitCache
	assert.Nil(t, cache.last())

	first := RateLimitSnapshot{"default": {Limit: 500, Remaining: 487, ResetSeconds: 900}}
	cache.update(first)
	assert.Equal(t, first, cache.last())

	// A response without rate-limit headers must not clobber the cache.
	cache.update(nil)
	assert.Equal(t, first, cache.last())

	second := RateLimitSnapshot{"default": {Limit: 500, Remaining: 486, ResetSeconds: 899}}
	cache.update(second)
	assert.Equal(t, second, cache.last())
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	t.Run("Seconds", func(t *testing.T) {
		h := http.Header{}
		h.Set("Retry-After", "2")

		d, ok := parseRetryAfter(h, now)
		require.True(t, ok)
		assert.Equal(t, 2*time.Second, d)
	})

	t.Run("HTTPDate", func(t *testing.T) {
		h := http.Header{}
		h.Set("Retry-After", now.Add(30*time.Second).Format(http.TimeFormat))

		d, ok := parseRetryAfter(h, now)
		require.True(t, ok)
		assert.Equal(t, 30*time.Second, d)
	})

	t.Run("PastDateClampsToZero", func(t *testing.T) {
		h := http.Header{}
		h.Set("Retry-After", now.Add(-time.Minute).Format(http.TimeFormat))

		d, ok := parseRetryAfter(h, now)
		require.True(t, ok)
		assert.Equal(t, time.Duration(0), d)
	})

	t.Run("Absent", func(t *testing.T) {
		_, ok := parseRetryAfter(http.Header{}, now)
		assert.False(t, ok)
	})

	t.Run("Garbage", func(t *testing.T) {
		h := http.Header{}
		h.Set("Retry-After", "soonish")
		_, ok := parseRetryAfter(h, now)
		assert.False(t, ok)
	})
}
