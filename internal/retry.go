package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var errRetriesExhausted = errors.New("retries exhausted")

// retryPolicy retries an operation a bounded number of times with a constant
// backoff, but only while it fails with a retryable error.
type retryPolicy struct {
	attempts  int
	backoff   time.Duration
	retryable func(error) bool
	// notify is called before each backoff.
	notify func(attempt int, err error, next time.Duration)
}

func newConnectRetryPolicy(cfg config) retryPolicy {
	return retryPolicy{
		attempts:  cfg.ConnectAttempts,
		backoff:   cfg.ConnectBackoff,
		retryable: isConnectionError,
	}
}

// do runs op until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. In the last case the returned error wraps both
// errRetriesExhausted and the final error from op.
func (p retryPolicy) do(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	attempts := max(p.attempts, 1)
	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		if p.retryable == nil || !p.retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		if p.notify != nil {
			p.notify(attempt, err, next)
		}
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.backoff), uint64(attempts-1)),
		ctx,
	)
	err := backoff.RetryNotify(operation, b, notify)
	if err != nil && attempt >= attempts && p.retryable != nil && p.retryable(err) {
		return fmt.Errorf("%w after %d attempts: %w", errRetriesExhausted, attempt, err)
	}
	return err
}
