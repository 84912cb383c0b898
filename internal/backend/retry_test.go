package backend

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   statusClass
	}{
		{http.StatusOK, statusOK},
		{http.StatusCreated, statusOK},
		{http.StatusNoContent, statusOK},
		{http.StatusUnauthorized, statusUnauthorized},
		{http.StatusNotFound, statusNotFound},
		{http.StatusTooManyRequests, statusRetryable},
		{http.StatusBadGateway, statusRetryable},
		{http.StatusServiceUnavailable, statusRetryable},
		{http.StatusGatewayTimeout, statusRetryable},
		{http.StatusInternalServerError, statusFailed},
		{http.StatusForbidden, statusFailed},
		{http.StatusConflict, statusFailed},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := retryPolicy{maxAttempts: 5, initialBackoff: 100 * time.Millisecond, maxBackoff: time.Second}

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{10, time.Second},
	}

	for _, tt := range tests {
		if got := p.backoff(tt.failures); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.failures, got, tt.want)
		}
	}
}

func TestRetryPolicy_AttemptsFor(t *testing.T) {
	p := retryPolicy{maxAttempts: 3}

	if got := p.attemptsFor(http.MethodGet); got != 3 {
		t.Errorf("GET attempts = %d, want 3", got)
	}
	if got := p.attemptsFor(http.MethodPost); got != 1 {
		t.Errorf("POST attempts = %d, want 1", got)
	}
	if got := (retryPolicy{}).attemptsFor(http.MethodGet); got != 1 {
		t.Errorf("zero policy attempts = %d, want 1", got)
	}
}

func fastRetry(c *Client) {
	c.retry = retryPolicy{maxAttempts: 3, initialBackoff: time.Millisecond, maxBackoff: 5 * time.Millisecond}
}

func TestClient_RetriesIdempotentRequest(t *testing.T) {
	var calls atomic.Int32
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[]`))
	})
	fastRetry(c)

	convs, err := c.ListConversations(context.Background(), "jwt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if convs == nil {
		t.Error("conversations should be decoded after retry")
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if len(rec.requests) != 3 {
		t.Errorf("recorded requests = %d, want 3", len(rec.requests))
	}
}

func TestClient_RetryGivesUp(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	fastRetry(c)

	_, err := c.ListConversations(context.Background(), "jwt")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestClient_DoesNotRetryMutations(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	fastRetry(c)

	_, err := c.SendMessage(context.Background(), "jwt", "conv-1", "hello")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestClient_DoesNotRetryUnauthorized(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	fastRetry(c)

	_, err := c.ListConversations(context.Background(), "jwt")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestClient_RetryStopsOnContextCancel(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c.retry = retryPolicy{maxAttempts: 3, initialBackoff: time.Hour, maxBackoff: time.Hour}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.ListConversations(ctx, "jwt")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}
