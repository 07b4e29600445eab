package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRetriesExhausted wraps the last conflict once every attempt has failed.
var ErrRetriesExhausted = errors.New("docstore: transaction retries exhausted")

const (
	DefaultMaxAttempts = 5
	DefaultBaseBackoff = 20 * time.Millisecond
	DefaultMaxBackoff  = 500 * time.Millisecond
)

// RetryPolicy bounds how often a conflicting transaction is attempted again.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// OnConflict, if set, is called before each backoff.
	OnConflict func(attempt int, wait time.Duration, err error)
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseBackoff < 0 {
		p.BaseBackoff = 0
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = DefaultMaxBackoff
	}
	return p
}

// Backoff returns the wait before attempt+1: BaseBackoff doubled per failed
// attempt and capped at MaxBackoff.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	p = p.withDefaults()
	wait := p.BaseBackoff
	for i := 1; i < attempt && wait < p.MaxBackoff; i++ {
		wait *= 2
	}
	if wait > p.MaxBackoff {
		wait = p.MaxBackoff
	}
	return wait
}

// RunWithRetry runs fn in a fresh transaction until it commits, fails with a
// non-conflict error, the attempts run out or ctx is done. Each attempt
// re-executes fn from the top so every read is repeated against the current
// state. It returns the number of attempts made.
func RunWithRetry(ctx context.Context, store Store, policy RetryPolicy, fn TxFunc) (int, error) {
	policy = policy.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err := store.RunTransaction(ctx, fn)
		if err == nil {
			return attempt, nil
		}
		if !IsRetryable(err) {
			return attempt, err
		}
		lastErr = err
		if attempt == policy.MaxAttempts {
			break
		}

		wait := policy.Backoff(attempt)
		if policy.OnConflict != nil {
			policy.OnConflict(attempt, wait, err)
		}
		if err := sleep(ctx, wait); err != nil {
			return attempt, err
		}
	}
	return policy.MaxAttempts, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, policy.MaxAttempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
