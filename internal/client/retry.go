package client

import (
	"math"
	"math/rand"
	"time"
)

// maxJitterFraction caps the random jitter added to each computed delay,
// spreading retries from concurrent callers so they do not storm the
// upstream in lockstep.
const maxJitterFraction = 0.2

// retryPolicy is the explicit backoff state machine: given an attempt
// number and an optional server wait hint, it produces the delay before
// that attempt. Keeping it a pure value (with an injectable jitter source)
// makes retry timing deterministic under test.
type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	multiplier float64

	// jitter maps a computed delay to the delay actually slept. The
	// default adds a random fraction of up to maxJitterFraction.
	jitter func(time.Duration) time.Duration
}

func newRetryPolicy(maxRetries int, base, maxD time.Duration, multiplier float64) retryPolicy {
	return retryPolicy{
		maxRetries: maxRetries,
		baseDelay:  base,
		maxDelay:   maxD,
		multiplier: multiplier,
		jitter:     defaultJitter,
	}
}

// delay computes how long to wait before physical attempt n (1-based for
// retries: the first attempt is 0 and never waits). A server-provided
// retryAfter takes precedence over the computed backoff, with jitter still
// applied on top, since the upstream is explicitly saying when capacity
// will return.
func (p retryPolicy) delay(attempt int, retryAfter time.Duration) time.Duration {
	base := retryAfter
	if base <= 0 {
		backoff := float64(p.baseDelay) * math.Pow(p.multiplier, float64(attempt-1))
		base = time.Duration(backoff)
		if base > p.maxDelay {
			base = p.maxDelay
		}
	}
	return p.jitter(base)
}

// defaultJitter adds up to maxJitterFraction of random extra delay.
func defaultJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	return d + time.Duration(rand.Float64()*maxJitterFraction*float64(d))
}
