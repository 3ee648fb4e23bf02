package application

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy is a bounded attempt count with a fixed pause between attempts.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// Do runs fn until it succeeds or the attempts run out. The last error is
// returned wrapped with the attempt count. Cancelling ctx stops the wait.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry aborted after %d attempt(s): %w", i, ctx.Err())
		case <-time.After(p.Backoff):
		}
	}
	return fmt.Errorf("gave up after %d attempt(s): %w", attempts, err)
}
