package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTripperFunc lets tests stand in for the network layer.
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// newTestClient builds a client against baseURL with fast, recorded sleeps.
func newTestClient(t *testing.T, baseURL string, mutate func(*Config)) (*Client, *[]time.Duration) {
	t.Helper()

	cfg := Config{
		APIKey:            "test-key",
		BaseURL:           baseURL,
		MaxRetries:        3,
		BaseDelay:         10 * time.Millisecond,
		MaxDelay:          time.Second,
		BackoffMultiplier: 2,
		BreakerThreshold:  100,
		BreakerCooldown:   time.Minute,
		Logger:            zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	c, err := New(cfg)
	require.NoError(t, err)

	var delays []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return c, &delays
}

func validSend() *SendRequest {
	return &SendRequest{
		To:       []string{"goat@example.com"},
		Subject:  "hello",
		TextBody: "hi there",
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{BaseURL: "https://api.test"})
	assert.Error(t, err)

	_, err = New(Config{APIKey: "k"})
	assert.Error(t, err)
}

func TestSendSuccess(t *testing.T) {
	var gotAuth, gotKey string
	var gotReq SendRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("X-Request-Id", "req-1")
		w.Header().Set("X-RateLimit-Limit", "500")
		w.Header().Set("X-RateLimit-Remaining", "487")
		w.Header().Set("X-RateLimit-Reset", "900")
		_ = json.NewEncoder(w).Encode(SendResult{
			MessageID: "msg-42",
			Recipients: map[string]DeliveryHandle{
				"goat@example.com": {ID: 7, Token: "tok-7"},
			},
		})
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, nil)

	result, err := c.Send(context.Background(), validSend())
	require.NoError(t, err)
	assert.Equal(t, "msg-42", result.MessageID)
	assert.Equal(t, DeliveryHandle{ID: 7, Token: "tok-7"}, result.Recipients["goat@example.com"])

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.NotEmpty(t, gotKey)
	assert.Equal(t, []string{"goat@example.com"}, gotReq.To)

	// Round trip: the snapshot built from the response headers is
	// retrievable unchanged immediately after the call.
	assert.Equal(t, RateLimitSnapshot{
		"default": {Limit: 500, Remaining: 487, ResetSeconds: 900},
	}, c.LastRateLimit())
}

func TestSendValidation(t *testing.T) {
	c, _ := newTestClient(t, "http://unused.invalid", nil)

	t.Run("NoRecipients", func(t *testing.T) {
		_, err := c.Send(context.Background(), &SendRequest{Subject: "s", TextBody: "b"})
		ce, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, KindClient, ce.Kind)
	})

	t.Run("NoBody", func(t *testing.T) {
		_, err := c.Send(context.Background(), &SendRequest{To: []string{"a@b.c"}})
		ce, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, KindClient, ce.Kind)
	})
}

func TestSendNetworkErrorExhaustsRetries(t *testing.T) {
	var attempts atomic.Int32

	httpClient := &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
		attempts.Add(1)
		return nil, errors.New("connection refused")
	})}

	c, delays := newTestClient(t, "http://unreachable.invalid", func(cfg *Config) {
		cfg.HTTPClient = httpClient
	})

	_, err := c.Send(context.Background(), validSend())
	ce, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, ce.Kind)

	// The number of physical attempts equals MaxRetries exactly.
	assert.Equal(t, int32(3), attempts.Load())
	assert.Len(t, *delays, 2)
}

func TestSendAuthErrorFailsOnFirstAttempt(t *testing.T) {
	var attempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.Header().Set("X-Request-Id", "req-auth")
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, delays := newTestClient(t, srv.URL, nil)

	_, err := c.Send(context.Background(), validSend())
	ce, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindAuth, ce.Kind)
	assert.Equal(t, "req-auth", ce.RequestID)

	// Zero retries consumed.
	assert.Equal(t, int32(1), attempts.Load())
	assert.Empty(t, *delays)
}

func TestSendHonorsRetryAfter(t *testing.T) {
	var attempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(SendResult{MessageID: "msg-1"})
	}))
	defer srv.Close()

	c, delays := newTestClient(t, srv.URL, nil)

	result, err := c.Send(context.Background(), validSend())
	require.NoError(t, err)
	assert.Equal(t, "msg-1", result.MessageID)

	// Exactly one retry, delayed 2s plus at most 20% jitter.
	assert.Equal(t, int32(2), attempts.Load())
	require.Len(t, *delays, 1)
	assert.GreaterOrEqual(t, (*delays)[0], 2000*time.Millisecond)
	assert.LessOrEqual(t, (*delays)[0], 2400*time.Millisecond)
}

func TestSendRateLimitCarriesSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "100")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, func(cfg *Config) { cfg.MaxRetries = 1 })

	_, err := c.Send(context.Background(), validSend())
	ce, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindRateLimit, ce.Kind)
	assert.Equal(t, RateLimitBucket{Limit: 100, ResetSeconds: 30}, ce.RateLimit["default"])
}

func TestSendServerErrorRetriesThenSucceeds(t *testing.T) {
	var attempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(SendResult{MessageID: "msg-ok"})
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, nil)

	result, err := c.Send(context.Background(), validSend())
	require.NoError(t, err)
	assert.Equal(t, "msg-ok", result.MessageID)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestIdempotencyKeyStableAcrossRetries(t *testing.T) {
	var keys []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		if len(keys) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(SendResult{MessageID: "msg-1"})
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, nil)

	_, err := c.Send(context.Background(), validSend())
	require.NoError(t, err)

	require.Len(t, keys, 3)
	assert.NotEmpty(t, keys[0])
	assert.Equal(t, keys[0], keys[1])
	assert.Equal(t, keys[0], keys[2])

	// A second logical send gets a fresh key.
	keys = keys[:0]
	_, err = c.Send(context.Background(), validSend())
	require.NoError(t, err)
	require.Len(t, keys, 3)
}

func TestCircuitBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	var attempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, func(cfg *Config) {
		cfg.BreakerThreshold = 2
	})

	for i := 0; i < 2; i++ {
		_, err := c.Send(context.Background(), validSend())
		ce, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, KindClient, ce.Kind)
	}
	assert.Equal(t, int32(2), attempts.Load())

	// Third call fails immediately without a physical network call.
	_, err := c.Send(context.Background(), validSend())
	ce, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindCircuitOpen, ce.Kind)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestGetMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/messages/msg-9", r.URL.Path)
		assert.Empty(t, r.Header.Get("Idempotency-Key"))
		_ = json.NewEncoder(w).Encode(Message{ID: "msg-9", From: "a@b.c", Subject: "hi"})
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, nil)

	msg, err := c.GetMessage(context.Background(), "msg-9")
	require.NoError(t, err)
	assert.Equal(t, "msg-9", msg.ID)
	assert.Equal(t, "a@b.c", msg.From)
}

func TestDeleteMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/messages/msg-9", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, nil)
	require.NoError(t, c.DeleteMessage(context.Background(), "msg-9"))
}

func TestListInbox(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/inbox", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode([]InboxEntry{
			{ID: "m1", From: "a@b.c", Subject: "one", Unread: true},
			{ID: "m2", From: "d@e.f", Subject: "two"},
		})
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, nil)

	entries, err := c.ListInbox(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "m1", entries[0].ID)
	assert.True(t, entries[0].Unread)
}

func TestSendContextCancellationDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	c.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := c.Send(ctx, validSend())
	ce, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, ce.Kind)
	assert.ErrorIs(t, ce.Err, context.Canceled)
}
