// Package httpx holds the request policy shared by the leaderboard fetcher
// and the delivery client: attempts, fixed retry delay and an overall timeout.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	logx "leaderbot/pkg/logx"
)

// Policy controls one logical HTTP call.
//
// Retries happen only when the transport fails (no response at all). Any
// response, including 4xx/5xx, is handed to the caller as-is.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration // fixed delay between attempts
	Timeout     time.Duration // overall budget across attempts; 0 disables
}

// FetchPolicy is the default for reading leaderboards.
func FetchPolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: time.Second, Timeout: 30 * time.Second}
}

// DeliveryPolicy is the default for webhook posts: one attempt.
func DeliveryPolicy() Policy {
	return Policy{MaxAttempts: 1, Timeout: 10 * time.Second}
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// TransportError wraps the last transport failure after all attempts.
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Do builds and sends a request under p and passes the response to handle.
// The response body is closed after handle returns.
func (p Policy) Do(
	ctx context.Context,
	client *http.Client,
	build func(ctx context.Context) (*http.Request, error),
	handle func(resp *http.Response) error,
	log logx.Logger,
) error {
	if client == nil {
		client = http.DefaultClient
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	maxAttempts := p.attempts()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := build(ctx)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			defer resp.Body.Close()
			return handle(resp)
		}
		lastErr = err
		if ctx.Err() != nil {
			return &TransportError{Attempts: attempt, Err: lastErr}
		}
		log.Debug("http attempt failed", logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))
		if attempt >= maxAttempts || p.Delay <= 0 {
			continue
		}
		t := time.NewTimer(p.Delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return &TransportError{Attempts: attempt, Err: errors.Join(lastErr, ctx.Err())}
		}
	}
	return &TransportError{Attempts: maxAttempts, Err: lastErr}
}
