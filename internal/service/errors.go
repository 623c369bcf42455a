package service

import (
	"context"
	"errors"
	"fmt"

	"inventory-service/internal/store"
)

// Ledger error taxonomy. Callers match with errors.Is; every error the
// services return wraps exactly one of these.
var (
	// ErrNotFound means the product, sku, or reservation does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists means inventory was already initialized for the product.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInsufficientStock means available stock cannot cover the request.
	// A business outcome, not a bug.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvalidState means an illegal reservation transition was attempted.
	ErrInvalidState = errors.New("invalid reservation state")

	// ErrConflict means the optimistic-retry budget was exhausted under
	// contention. The whole operation is safe to retry.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrInvalidArgument means the request itself is malformed.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStorageUnavailable means the backend failed past its retry budget.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// mapStoreErr translates storage contract errors into the ledger taxonomy.
func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, store.ErrNotExist):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, store.ErrKeyExists):
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	case errors.Is(err, store.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		// A timed-out mutation is a transient failure, never a success.
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	default:
		return err
	}
}
