package llm

import (
	"context"
	"time"
)

// retry budget for provider calls: one retry after a short backoff.
// Repeated failure escalates to the caller instead of looping.
const (
	retryAttempts = 2
	retryBaseWait = 250 * time.Millisecond
)

// withRetry runs fn up to retryAttempts times, waiting retryBaseWait
// (doubling) between attempts. Context cancellation aborts the wait.
func withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	wait := retryBaseWait
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				wait *= 2
			}
		}
		if err := fn(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
