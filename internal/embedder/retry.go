package embedder

import (
	"context"
	"time"
)

// retryDelay is the fixed pause before the single retry of a transient
// backend failure.
const retryDelay = 500 * time.Millisecond

// retryOnce executes fn and, when shouldRetry classifies the error as
// transient, retries exactly once after a fixed delay. Retry is skipped
// on context cancellation.
func retryOnce[T any](ctx context.Context, delay time.Duration, shouldRetry func(error) bool, fn func() (T, error)) (T, error) {
	var zero T

	result, err := fn()
	if err == nil {
		return result, nil
	}

	if ctx.Err() != nil {
		return zero, ctx.Err()
	}
	if !shouldRetry(err) {
		return zero, err
	}

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-time.After(delay):
	}

	return fn()
}
