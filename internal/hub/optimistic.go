package hub

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds an optimistic update loop.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy is three attempts with a fixed 300ms pause.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 300 * time.Millisecond}
}

// Versioned is a value loaded together with the precondition a write of
// its successor must satisfy.
type Versioned[T any] struct {
	Value T
	Cond  Precondition
}

// OptimisticUpdate repeats the load/mutate/save cycle until save succeeds, save
// fails with something other than ErrConflict, or the policy's attempts
// are used up. Errors from load and mutate end the loop immediately.
// When attempts run out the last ErrConflict is returned.
func OptimisticUpdate[T any](
	ctx context.Context,
	policy RetryPolicy,
	load func(ctx context.Context) (Versioned[T], error),
	mutate func(T) (T, error),
	save func(ctx context.Context, next T, cond Precondition) error,
) (T, error) {
	var result T

	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := policy.Backoff
	if backoff <= 0 {
		backoff = time.Millisecond
	}
	b := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(backoff))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		current, err := load(ctx)
		if err != nil {
			return err
		}
		next, err := mutate(current.Value)
		if err != nil {
			return err
		}
		if err := save(ctx, next, current.Cond); err != nil {
			if errors.Is(err, ErrConflict) {
				return retry.RetryableError(err)
			}
			return err
		}
		result = next
		return nil
	})
	return result, err
}
