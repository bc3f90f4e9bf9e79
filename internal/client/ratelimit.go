package client

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Rate-limit response headers. Buckets other than the default carry a
// suffix, e.g. X-RateLimit-Limit-Hour for the "hour" bucket.
const (
	headerRateLimitLimit     = "X-Ratelimit-Limit"
	headerRateLimitRemaining = "X-Ratelimit-Remaining"
	headerRateLimitReset     = "X-Ratelimit-Reset"
	headerRetryAfter         = "Retry-After"
	headerRequestID          = "X-Request-Id"

	defaultBucket = "default"
)

// RateLimitBucket is the quota window for one named bucket.
type RateLimitBucket struct {
	// Limit is the total number of requests allowed in the window.
	Limit int

	// Remaining is the number of requests left in the window.
	Remaining int

	// ResetSeconds is the number of seconds until the window resets.
	ResetSeconds int
}

// RateLimitSnapshot maps bucket names to their current quota state. It is
// rebuilt wholesale from the headers of every response, success or failure;
// the client retains only the latest snapshot.
type RateLimitSnapshot map[string]RateLimitBucket

// rateLimitCache retains the latest snapshot, replaced wholesale on each
// response that carried rate-limit headers.
type rateLimitCache struct {
	mu       sync.Mutex
	snapshot RateLimitSnapshot
}

// update replaces the cached snapshot. A nil snapshot (response without
// rate-limit headers) leaves the cache untouched.
func (c *rateLimitCache) update(s RateLimitSnapshot) {
	if s == nil {
		return
	}
	c.mu.Lock()
	c.snapshot = s
	c.mu.Unlock()
}

// last returns the most recent snapshot, or nil if none was seen yet.
func (c *rateLimitCache) last() RateLimitSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// parseRateLimit scans response headers for rate-limit information,
// independently per named bucket. Returns nil when no rate-limit headers
// are present, so an unrelated response does not clobber a cached snapshot.
func parseRateLimit(h http.Header) RateLimitSnapshot {
	var snapshot RateLimitSnapshot

	scan := func(header string, set func(b *RateLimitBucket, v int)) {
		for name, values := range h {
			canonical := http.CanonicalHeaderKey(name)
			if !strings.HasPrefix(canonical, header) || len(values) == 0 {
				continue
			}

			bucket := defaultBucket
			if suffix := strings.TrimPrefix(canonical, header); suffix != "" {
				if !strings.HasPrefix(suffix, "-") {
					// Some other X-RateLimit-* header, e.g. Remaining
					// while scanning for Limit.
					continue
				}
				bucket = strings.ToLower(strings.TrimPrefix(suffix, "-"))
			}

			v, err := strconv.Atoi(strings.TrimSpace(values[0]))
			if err != nil {
				continue
			}

			if snapshot == nil {
				snapshot = make(RateLimitSnapshot)
			}
			b := snapshot[bucket]
			set(&b, v)
			snapshot[bucket] = b
		}
	}

	scan(headerRateLimitLimit, func(b *RateLimitBucket, v int) { b.Limit = v })
	scan(headerRateLimitRemaining, func(b *RateLimitBucket, v int) { b.Remaining = v })
	scan(headerRateLimitReset, func(b *RateLimitBucket, v int) { b.ResetSeconds = v })

	return snapshot
}

// parseRetryAfter interprets a Retry-After header value, which may be a
// delay in seconds or an HTTP-date. The second return is false when the
// header is absent or unparseable.
func parseRetryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	value := h.Get(headerRetryAfter)
	if value == "" {
		return 0, false
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}

	if at, err := http.ParseTime(value); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}

	return 0, false
}
