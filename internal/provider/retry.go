package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

// Chat completions are slow and costly to repeat, so only clearly transient
// failures get another attempt.
const (
	chatMaxAttempts  = 3
	chatRetryBackoff = 500 * time.Millisecond
)

// transientError marks a response worth retrying: a rate limit or an
// upstream 5xx.
type transientError struct {
	status int
	body   string
}

func (e *transientError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.status, e.body)
}

// sendWithRetry issues the request up to chatMaxAttempts times with doubling
// jittered backoff between attempts. The request is rebuilt per attempt
// because its body reader is consumed on send.
func sendWithRetry(ctx context.Context, client *http.Client, build func() (*http.Request, error), logger *slog.Logger) (*http.Response, error) {
	var lastErr error
	var wait time.Duration

	for attempt := 1; attempt <= chatMaxAttempts; attempt++ {
		if wait > 0 {
			logger.Warn("retrying chat request", "attempt", attempt, "wait", wait)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			wait = backoffFor(attempt, nil)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			resp.Body.Close()
			lastErr = &transientError{status: resp.StatusCode, body: string(body)}
			wait = backoffFor(attempt, resp)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("chat request failed after %d attempts: %w", chatMaxAttempts, lastErr)
}

// backoffFor doubles the base delay per attempt and adds jitter. An explicit
// Retry-After from the endpoint wins over the computed delay.
func backoffFor(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, err := strconv.Atoi(s); err == nil && secs >= 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	base := chatRetryBackoff << (attempt - 1)
	return base + time.Duration(rand.Int64N(int64(base)))
}
