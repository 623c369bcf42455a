package service

import (
	"context"
	"fmt"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"

	"github.com/google/uuid"
)

const (
	defaultMovementLimit = 50
	maxMovementLimit     = 500
)

// MovementLog is the append-only audit trail of balance-changing events.
// Entries are immutable once written.
type MovementLog struct {
	store store.Store
}

// NewMovementLog creates a movement log backed by the given store.
func NewMovementLog(st store.Store) *MovementLog {
	return &MovementLog{store: st}
}

// Append writes one audit entry. Quantity is a signed delta.
func (l *MovementLog) Append(ctx context.Context, productID, movType string, quantity int, reference string) (*models.StockMovement, error) {
	if !models.ValidMovementType(movType) {
		return nil, fmt.Errorf("%w: unknown movement type %q", ErrInvalidArgument, movType)
	}

	mv := &models.StockMovement{
		MovementID: uuid.New().String(),
		ProductID:  productID,
		Type:       movType,
		Quantity:   quantity,
		Reference:  reference,
		Timestamp:  time.Now().UTC(),
	}

	if err := l.store.AppendMovement(ctx, mv); err != nil {
		return nil, mapStoreErr(err)
	}
	return mv, nil
}

// List returns up to limit movements for a product, newest first.
func (l *MovementLog) List(ctx context.Context, productID string, limit int) ([]models.StockMovement, error) {
	if limit <= 0 {
		limit = defaultMovementLimit
	}
	if limit > maxMovementLimit {
		limit = maxMovementLimit
	}

	movements, err := l.store.ListMovements(ctx, productID, limit)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return movements, nil
}
