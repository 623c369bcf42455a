package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	retryBase     = 50 * time.Millisecond
	retryCap      = 500 * time.Millisecond
	retryAttempts = 3
)

// withBackoff runs op, retrying transient backend failures with capped
// exponential backoff. Contract errors (ErrNotExist, ErrKeyExists,
// ErrVersionConflict) pass through untouched; anything still failing after
// the retry budget is wrapped in ErrUnavailable.
func withBackoff(ctx context.Context, op func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(retryAttempts, retry.WithCappedDuration(retryCap, retry.NewExponential(retryBase)))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		err := op(ctx)
		if err == nil || isContractErr(err) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil && !isContractErr(err) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func isContractErr(err error) bool {
	return errors.Is(err, ErrNotExist) ||
		errors.Is(err, ErrKeyExists) ||
		errors.Is(err, ErrVersionConflict)
}
