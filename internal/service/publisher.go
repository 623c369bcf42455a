package service

import (
	"context"
	"time"

	"inventory-service/internal/models"
)

// EventPublisher publishes stock domain events. Publish failures never fail
// the ledger operation that produced them; the services log and move on.
type EventPublisher interface {
	PublishStockInitialized(ctx context.Context, event *models.StockInitializedEvent) error
	PublishStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error
	PublishStockReserved(ctx context.Context, event *models.StockReservedEvent) error
	PublishReservationConfirmed(ctx context.Context, event *models.ReservationConfirmedEvent) error
	PublishReservationCancelled(ctx context.Context, event *models.ReservationCancelledEvent) error
	PublishLowStock(ctx context.Context, event *models.LowStockEvent) error
}

// NopPublisher discards all events. Used in tests and when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishStockInitialized(context.Context, *models.StockInitializedEvent) error {
	return nil
}
func (NopPublisher) PublishStockAdjusted(context.Context, *models.StockAdjustedEvent) error {
	return nil
}
func (NopPublisher) PublishStockReserved(context.Context, *models.StockReservedEvent) error {
	return nil
}
func (NopPublisher) PublishReservationConfirmed(context.Context, *models.ReservationConfirmedEvent) error {
	return nil
}
func (NopPublisher) PublishReservationCancelled(context.Context, *models.ReservationCancelledEvent) error {
	return nil
}
func (NopPublisher) PublishLowStock(context.Context, *models.LowStockEvent) error {
	return nil
}

// Options tunes the ledger services.
type Options struct {
	// DefaultTTL is the reservation hold window used when the caller does
	// not specify one.
	DefaultTTL time.Duration

	// StorageTimeout bounds the storage round-trips of a single operation.
	StorageTimeout time.Duration

	// MaxUpdateRetries bounds the optimistic-retry loop on counter updates
	// before the operation fails with ErrConflict.
	MaxUpdateRetries int

	// SweepBatchSize caps how many expired reservations one sweep processes.
	SweepBatchSize int
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		DefaultTTL:       15 * time.Minute,
		StorageTimeout:   3 * time.Second,
		MaxUpdateRetries: 5,
		SweepBatchSize:   256,
	}
}

func (o *Options) normalize() {
	if o.DefaultTTL <= 0 {
		o.DefaultTTL = 15 * time.Minute
	}
	if o.StorageTimeout <= 0 {
		o.StorageTimeout = 3 * time.Second
	}
	if o.MaxUpdateRetries <= 0 {
		o.MaxUpdateRetries = 5
	}
	if o.SweepBatchSize <= 0 {
		o.SweepBatchSize = 256
	}
}
