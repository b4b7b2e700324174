package breaker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Defaults applied when corresponding RetryPolicy fields are unset.
const (
	defaultMaxAttempts     = 3
	defaultInitialInterval = 2 * time.Second
	defaultMaxInterval     = 10 * time.Second
)

// RetryPolicy retries a single operation with exponential backoff. It is
// composed by the caller around a breaker-guarded call, never layered inside
// it: an open circuit is a permanent condition for the retry loop.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Retryable decides whether a failed attempt is worth repeating.
	// Defaults to "any non-nil error except an open-circuit rejection".
	Retryable func(error) bool
}

// Do runs fn up to MaxAttempts times, backing off exponentially between
// attempts. Non-retryable errors and open-circuit rejections return
// immediately.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = func(err error) bool { return err != nil && !IsOpen(err) }
	}

	bo := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		bo.InitialInterval = p.InitialInterval
	} else {
		bo.InitialInterval = defaultInitialInterval
	}
	if p.MaxInterval > 0 {
		bo.MaxInterval = p.MaxInterval
	} else {
		bo.MaxInterval = defaultMaxInterval
	}
	bo.Reset()

	op := func() error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(attempts-1)), ctx))
}
