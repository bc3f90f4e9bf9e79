// Package client implements the MailGoat API transport client. It turns one
// logical operation (send, fetch, delete, list) into zero or more physical
// HTTP calls, classifying every failure, retrying retryable ones with jittered
// exponential backoff, tripping a circuit breaker under sustained failure, and
// tracking rate-limit quota from response headers.
//
// A Client is safe for concurrent use; the expected configuration shares one
// instance across all batch workers. Every failure surfaced by a Client is an
// *Error carrying exactly one Kind. Check for specific classes with AsError:
//
//	if ce, ok := client.AsError(err); ok && ce.Kind == client.KindAuth {
//	    // actionable auth failure, do not retry
//	}
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const headerIdempotencyKey = "Idempotency-Key"

// Config holds the knobs for a Client. Zero values fall back to the
// documented defaults.
type Config struct {
	// APIKey authenticates every request via the Authorization header.
	APIKey string

	// BaseURL is the API root, e.g. https://api.mailgoat.ai/v1.
	BaseURL string

	// Timeout bounds each physical network call. Default 10s.
	Timeout time.Duration

	// MaxRetries is the total number of physical attempts for a logical
	// call, not the number of re-attempts. Default 3.
	MaxRetries int

	// BaseDelay is the backoff before the first retry. Default 500ms.
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff. Default 30s.
	MaxDelay time.Duration

	// BackoffMultiplier scales the delay per retry. Default 2.
	BackoffMultiplier float64

	// BreakerThreshold is the consecutive terminal failures that open
	// the circuit. Default 5.
	BreakerThreshold int

	// BreakerCooldown is how long the circuit stays open before a trial
	// call is admitted. Default 30s.
	BreakerCooldown time.Duration

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client

	// Logger receives debug/warn events for attempts and retries.
	Logger zerolog.Logger
}

// Client is the resilient MailGoat API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      retryPolicy
	breaker    *circuitBreaker
	logger     zerolog.Logger

	// sleep waits between retry attempts; injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error

	// newIdempotencyKey mints one key per logical Send call.
	newIdempotencyKey func() string

	rl rateLimitCache
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("client: API key is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("client: base URL is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.BackoffMultiplier <= 1 {
		cfg.BackoffMultiplier = 2
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:            cfg.APIKey,
		httpClient:        httpClient,
		retry:             newRetryPolicy(cfg.MaxRetries, cfg.BaseDelay, cfg.MaxDelay, cfg.BackoffMultiplier),
		breaker:           newCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
		logger:            cfg.Logger,
		sleep:             sleepCtx,
		newIdempotencyKey: uuid.NewString,
	}, nil
}

// sleepCtx waits for d or until ctx is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Send delivers one message. A fresh idempotency key is generated per Send
// invocation and reused across physical retries, so the upstream can
// deduplicate replays of the same logical call.
func (c *Client) Send(ctx context.Context, req *SendRequest) (*SendResult, error) {
	if err := req.Validate(); err != nil {
		return nil, &Error{Kind: KindClient, Message: err.Error(), Err: err}
	}

	var result SendResult
	call := call{
		op:             "send",
		method:         http.MethodPost,
		path:           "/send",
		body:           req,
		out:            &result,
		idempotencyKey: c.newIdempotencyKey(),
	}
	if err := c.do(ctx, call); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetMessage fetches a message by its identifier. Naturally idempotent, so
// no idempotency key is sent.
func (c *Client) GetMessage(ctx context.Context, id string) (*Message, error) {
	var msg Message
	call := call{
		op:     "get message",
		method: http.MethodGet,
		path:   "/messages/" + url.PathEscape(id),
		out:    &msg,
	}
	if err := c.do(ctx, call); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteMessage deletes a message by its identifier.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	return c.do(ctx, call{
		op:     "delete message",
		method: http.MethodDelete,
		path:   "/messages/" + url.PathEscape(id),
	})
}

// ListInbox returns the newest messages in the inbox, at most limit entries.
func (c *Client) ListInbox(ctx context.Context, limit int) ([]InboxEntry, error) {
	path := "/inbox"
	if limit > 0 {
		path += "?limit=" + fmt.Sprint(limit)
	}

	var entries []InboxEntry
	call := call{
		op:     "list inbox",
		method: http.MethodGet,
		path:   path,
		out:    &entries,
	}
	if err := c.do(ctx, call); err != nil {
		return nil, err
	}
	return entries, nil
}

// LastRateLimit returns the snapshot parsed from the most recent response.
func (c *Client) LastRateLimit() RateLimitSnapshot {
	return c.rl.last()
}

// call describes one logical API operation.
type call struct {
	op             string
	method         string
	path           string
	body           any
	out            any
	idempotencyKey string
}

// do runs the retry state machine around physical attempts of one logical
// call, guaranteeing exactly one terminal outcome. The circuit breaker is
// consulted once per logical call and updated with its terminal result.
func (c *Client) do(ctx context.Context, call call) error {
	if err := c.breaker.allow(); err != nil {
		c.logger.Warn().Str("op", call.op).Msg("call rejected: circuit breaker open")
		return err
	}

	var payload []byte
	if call.body != nil {
		var err error
		payload, err = json.Marshal(call.body)
		if err != nil {
			c.breaker.recordFailure()
			return &Error{Kind: KindClient, Message: fmt.Sprintf("%s: encoding request: %v", call.op, err), Err: err}
		}
	}

	var lastErr *Error
	for attempt := 0; attempt < c.retry.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retry.delay(attempt, retryAfterHint(lastErr))
			c.logger.Debug().
				Str("op", call.op).
				Int("attempt", attempt).
				Dur("delay", delay).
				Str("kind", string(lastErr.Kind)).
				Msg("retrying after backoff")
			if err := c.sleep(ctx, delay); err != nil {
				return classifyTransport(call.op, err)
			}
		}

		cerr := c.attempt(ctx, call, payload)
		if cerr == nil {
			c.breaker.recordSuccess()
			return nil
		}

		lastErr = cerr
		if !cerr.Retryable() {
			break
		}
	}

	c.breaker.recordFailure()
	return lastErr
}

// retryAfterHint extracts the server's Retry-After wait from the previous
// failure, if it carried one.
func retryAfterHint(e *Error) time.Duration {
	if e == nil || e.RetryAfter == "" {
		return 0
	}
	h := http.Header{}
	h.Set(headerRetryAfter, e.RetryAfter)
	d, ok := parseRetryAfter(h, time.Now())
	if !ok {
		return 0
	}
	return d
}

// attempt issues exactly one physical HTTP call and classifies its result.
// The rate-limit snapshot is refreshed from every response, success or not.
func (c *Client) attempt(ctx context.Context, call call, payload []byte) *Error {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, call.method, c.baseURL+call.path, bodyReader)
	if err != nil {
		return &Error{Kind: KindClient, Message: fmt.Sprintf("%s: building request: %v", call.op, err), Err: err}
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if call.idempotencyKey != "" {
		req.Header.Set(headerIdempotencyKey, call.idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransport(call.op, err)
	}
	defer resp.Body.Close()

	c.rl.update(parseRateLimit(resp.Header))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused; the body is opaque.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return classifyResponse(call.op, resp)
	}

	if call.out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransport(call.op, err)
	}
	if err := json.Unmarshal(respBody, call.out); err != nil {
		return &Error{
			Kind:       KindServer,
			StatusCode: resp.StatusCode,
			RequestID:  resp.Header.Get(headerRequestID),
			Message:    fmt.Sprintf("%s: decoding response: %v", call.op, err),
			Err:        err,
		}
	}
	return nil
}
