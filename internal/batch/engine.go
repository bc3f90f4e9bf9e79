package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mailgoat/mailgoat/internal/client"
)

// Floor for the adaptive concurrency cap: throttling can never stall the
// run completely.
const minConcurrency = 1

// SendFunc delivers one message. It is normally backed by client.Send and
// must surface a classified error (or at least mention "rate limit" or 429
// in its text) for throttling detection to work.
type SendFunc func(ctx context.Context, index int, message *client.SendRequest) error

// Options configures one batch run.
type Options struct {
	// BatchID is the stable identifier used for resume. Required.
	BatchID string

	// Concurrency is the hard upper bound on simultaneously in-flight
	// sends. Values below 1 are treated as 1.
	Concurrency int

	// Resume skips indices already recorded for BatchID instead of
	// starting fresh.
	Resume bool
}

// Report aggregates the outcome of a run. Skipped (already-processed)
// items appear in none of the counters.
type Report struct {
	// Attempted is the number of items handed to the send function.
	Attempted int

	// Succeeded is the number of items recorded as sent.
	Succeeded int

	// Failed is the number of items recorded as failed.
	Failed int

	// ThrottleEvents counts upstream capacity rejections, distinct from
	// ordinary failures so operators can tell "upstream out of capacity"
	// from "this message is invalid".
	ThrottleEvents int
}

// Engine dispatches an ordered collection of messages through a SendFunc.
type Engine struct {
	store  StateStore
	logger zerolog.Logger
}

// NewEngine creates an Engine recording progress in store.
func NewEngine(store StateStore, logger zerolog.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

// Run processes messages under opts and returns the aggregate report. Item
// failures are recorded and counted but never abort the run; a state-store
// failure does, since progress can no longer be tracked. On context
// cancellation no further items are scheduled and the error from ctx is
// returned alongside the partial report.
func (e *Engine) Run(
	ctx context.Context,
	messages []*client.SendRequest,
	send SendFunc,
	opts Options,
) (*Report, error) {
	if opts.BatchID == "" {
		return nil, errors.New("batch: BatchID is required")
	}
	if send == nil {
		return nil, errors.New("batch: send function is required")
	}
	if opts.Concurrency < minConcurrency {
		opts.Concurrency = minConcurrency
	}

	if err := e.store.InitializeBatch(ctx, opts.BatchID, len(messages)); err != nil {
		return nil, fmt.Errorf("batch: initializing state: %w", err)
	}

	processed := map[int]struct{}{}
	if opts.Resume {
		var err error
		processed, err = e.store.LoadProcessedIndices(ctx, opts.BatchID)
		if err != nil {
			return nil, fmt.Errorf("batch: loading resume state: %w", err)
		}
		e.logger.Info().
			Str("batch_id", opts.BatchID).
			Int("skipped", len(processed)).
			Msg("resuming batch")
	}

	var (
		report Report
		mu     sync.Mutex
	)
	slots := newSlotPool(opts.Concurrency)

	// The group context cancels scheduling when a worker hits a fatal
	// state-store error.
	g, gctx := errgroup.WithContext(ctx)

	for index, message := range messages {
		index, message := index, message
		if _, done := processed[index]; done {
			continue
		}

		if err := slots.acquire(gctx); err != nil {
			// Run canceled or aborted; stop scheduling new items.
			break
		}

		mu.Lock()
		report.Attempted++
		mu.Unlock()

		g.Go(func() error {
			defer slots.release()

			if err := e.store.UpdateBatchPosition(gctx, opts.BatchID, index); err != nil {
				return fmt.Errorf("batch: updating position: %w", err)
			}

			sendErr := send(gctx, index, message)

			outcome := ItemOutcome{Index: index, Status: StatusSent}
			if sendErr != nil {
				outcome.Status = StatusFailed
				outcome.Error = sendErr.Error()
			}
			if err := e.store.RecordResult(gctx, opts.BatchID, outcome); err != nil {
				return fmt.Errorf("batch: recording result: %w", err)
			}

			mu.Lock()
			defer mu.Unlock()
			if sendErr == nil {
				report.Succeeded++
				return nil
			}

			report.Failed++
			if isThrottle(sendErr) {
				report.ThrottleEvents++
				reduced := slots.shrink()
				e.logger.Warn().
					Str("batch_id", opts.BatchID).
					Int("index", index).
					Int("concurrency", reduced).
					Msg("throttled by upstream, reducing concurrency")
			} else {
				e.logger.Debug().
					Str("batch_id", opts.BatchID).
					Int("index", index).
					Err(sendErr).
					Msg("item failed")
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return &report, err
}

// isThrottle reports whether an item failure was an upstream capacity
// rejection. Classified errors are checked by kind; for foreign send
// functions the error text is inspected for rate-limit markers.
func isThrottle(err error) bool {
	if client.IsRateLimited(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "429")
}

// slotPool is a concurrency limiter whose capacity can shrink while workers
// are in flight. Shrinking retires tokens as they are released, so already
// running sends finish normally and only subsequently scheduled items see
// the reduced cap.
type slotPool struct {
	mu       sync.Mutex
	tokens   chan struct{}
	capacity int
	retiring int
}

func newSlotPool(capacity int) *slotPool {
	tokens := make(chan struct{}, capacity)
	for i := 0; i < capacity; i++ {
		tokens <- struct{}{}
	}
	return &slotPool{tokens: tokens, capacity: capacity}
}

// acquire takes a slot or returns the context error.
func (p *slotPool) acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.tokens:
		return nil
	}
}

// release returns a slot to the pool, or retires it if a shrink is pending.
func (p *slotPool) release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.retiring > 0 {
		p.retiring--
		return
	}
	p.tokens <- struct{}{}
}

// shrink halves the effective capacity, flooring at minConcurrency, and
// returns the new cap. Excess slots are retired lazily on release.
func (p *slotPool) shrink() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	target := p.capacity / 2
	if target < minConcurrency {
		target = minConcurrency
	}
	p.retiring += p.capacity - target
	p.capacity = target

	// Retire idle slots immediately; the rest retire as workers release.
	for p.retiring > 0 {
		select {
		case <-p.tokens:
			p.retiring--
		default:
			return target
		}
	}
	return target
}

// current returns the effective capacity.
func (p *slotPool) current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity
}
