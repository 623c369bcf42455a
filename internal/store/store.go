// Package store defines the ledger's storage contract and its backends.
// Every backend provides conditional writes: create-if-absent for inventory
// records and reservations, versioned compare-and-swap for counter updates,
// and status-conditional transitions for reservations. The managers build
// their optimistic-retry loops on these three primitives.
package store

import (
	"context"
	"errors"
	"time"

	"inventory-service/internal/models"
)

var (
	// ErrNotExist is returned when the requested key is absent.
	ErrNotExist = errors.New("store: key does not exist")

	// ErrKeyExists is returned by conditional creates when the key is taken.
	ErrKeyExists = errors.New("store: key already exists")

	// ErrVersionConflict is returned when a conditional write loses the race:
	// the stored version (or reservation status) no longer matches.
	ErrVersionConflict = errors.New("store: version conflict")

	// ErrUnavailable wraps backend failures that survived the retry budget.
	ErrUnavailable = errors.New("store: storage unavailable")
)

// Store is the ledger's persistence contract.
type Store interface {
	// CreateInventory inserts a record if no record exists for its product id
	// (and no other product owns its SKU). Returns ErrKeyExists otherwise.
	CreateInventory(ctx context.Context, rec *models.InventoryRecord) error

	GetInventory(ctx context.Context, productID string) (*models.InventoryRecord, error)
	GetInventoryBySKU(ctx context.Context, sku string) (*models.InventoryRecord, error)

	// UpdateInventory writes the record's counters conditional on rec.Version
	// matching the stored version. On success the stored and in-memory
	// versions are incremented. Returns ErrVersionConflict when outraced.
	UpdateInventory(ctx context.Context, rec *models.InventoryRecord) error

	// ListLowStock returns records with availableStock <= lowStockThreshold.
	ListLowStock(ctx context.Context) ([]models.InventoryRecord, error)

	CreateReservation(ctx context.Context, res *models.Reservation) error
	GetReservation(ctx context.Context, reservationID string) (*models.Reservation, error)

	// TransitionReservation moves a reservation from one status to another,
	// conditional on the stored status still being from. This is the commit
	// point that decides confirm-vs-cancel races. Returns ErrVersionConflict
	// when the stored status differs from from.
	TransitionReservation(ctx context.Context, reservationID, from, to string) error

	// ListExpiredActive returns up to limit ACTIVE reservations with
	// expiresAt before the given time, oldest expiry first.
	ListExpiredActive(ctx context.Context, before time.Time, limit int) ([]models.Reservation, error)

	// AppendMovement inserts an audit entry. Movements are never updated.
	AppendMovement(ctx context.Context, mv *models.StockMovement) error

	// ListMovements returns up to limit movements for a product, newest first.
	ListMovements(ctx context.Context, productID string, limit int) ([]models.StockMovement, error)

	Close() error
}
