package client

import (
	"fmt"
	"sync"
	"time"
)

// breakerState is the circuit breaker position.
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// circuitBreaker guards the upstream against sustained failure. It counts
// consecutive terminal failures; at the threshold it opens and rejects
// calls locally until the cooldown elapses, then admits a single trial
// call (half-open). The trial closes the breaker on success and reopens
// it, restarting the cooldown, on failure.
//
// State is owned by one Client instance. The expected configuration shares
// one Client across all batch workers, so mutations are serialized with a
// mutex rather than relying on callers to single-thread their calls.
type circuitBreaker struct {
	mu sync.Mutex

	threshold int
	cooldown  time.Duration
	now       func() time.Time

	state         breakerState
	failures      int
	openedAt      time.Time
	trialInFlight bool
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	return &circuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// allow reports whether a call may proceed. When the breaker is open it
// returns a KindCircuitOpen error without any network call being made.
// After the cooldown it transitions to half-open and admits exactly one
// trial call; concurrent calls during the trial are still rejected.
func (b *circuitBreaker) allow() *Error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return nil

	case breakerOpen:
		elapsed := b.now().Sub(b.openedAt)
		if elapsed < b.cooldown {
			return b.rejectLocked(b.cooldown - elapsed)
		}
		b.state = breakerHalfOpen
		b.trialInFlight = true
		return nil

	default: // breakerHalfOpen
		if b.trialInFlight {
			return b.rejectLocked(0)
		}
		b.trialInFlight = true
		return nil
	}
}

// rejectLocked builds the circuit-open error. Must hold b.mu.
func (b *circuitBreaker) rejectLocked(retryIn time.Duration) *Error {
	msg := "service unavailable: circuit breaker is open"
	if retryIn > 0 {
		msg = fmt.Sprintf("%s, retrying in %s", msg, retryIn.Round(time.Millisecond))
	}
	return &Error{Kind: KindCircuitOpen, Message: msg}
}

// recordSuccess resets the failure counter and closes the breaker.
func (b *circuitBreaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = breakerClosed
	b.failures = 0
	b.trialInFlight = false
}

// recordFailure counts a terminal failure. In half-open the breaker
// reopens immediately; in closed it opens once the threshold is reached.
func (b *circuitBreaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerHalfOpen {
		b.state = breakerOpen
		b.openedAt = b.now()
		b.trialInFlight = false
		return
	}

	b.failures++
	if b.state == breakerClosed && b.failures >= b.threshold {
		b.state = breakerOpen
		b.openedAt = b.now()
	}
}

// currentState returns the breaker position, for logging.
func (b *circuitBreaker) currentState() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
