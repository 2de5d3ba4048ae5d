package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBackoffFor(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"2"}}}
	if got := backoffFor(1, resp); got != 2*time.Second {
		t.Errorf("retry-after backoff = %v, want 2s", got)
	}

	// Malformed header falls back to the computed delay.
	bad := &http.Response{Header: http.Header{"Retry-After": []string{"soon"}}}
	if got := backoffFor(1, bad); got < chatRetryBackoff || got >= 2*chatRetryBackoff {
		t.Errorf("attempt 1 backoff = %v, want [%v, %v)", got, chatRetryBackoff, 2*chatRetryBackoff)
	}

	// Each attempt doubles the base.
	if got := backoffFor(3, nil); got < 4*chatRetryBackoff || got >= 8*chatRetryBackoff {
		t.Errorf("attempt 3 backoff = %v, want [%v, %v)", got, 4*chatRetryBackoff, 8*chatRetryBackoff)
	}
}

func TestSendWithRetryGivesUpOnPersistentFailure(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		// Zero Retry-After means retry immediately, keeping the test fast.
		w.Header().Set("Retry-After", "0")
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := sendWithRetry(context.Background(), srv.Client(), func() (*http.Request, error) {
		return http.NewRequest("GET", srv.URL, nil)
	}, testLogger())
	if err == nil {
		t.Fatal("expected error after persistent 500s")
	}
	if attempts != chatMaxAttempts {
		t.Errorf("attempts = %d, want %d", attempts, chatMaxAttempts)
	}
}

func TestSendWithRetryStopsOnContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sendWithRetry(ctx, srv.Client(), func() (*http.Request, error) {
		return http.NewRequest("GET", srv.URL, nil)
	}, testLogger())
	if err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
