package broker

import (
	"context"
	"fmt"

	"inventory-service/internal/models"
)

// EventPublisher publishes stock domain events, keyed by product id so all
// events for one product land on the same partition in order.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishStockInitialized publishes StockInitialized event
func (ep *EventPublisher) PublishStockInitialized(ctx context.Context, event *models.StockInitializedEvent) error {
	return ep.producer.PublishEvent(ctx, productKey(event.ProductID), event)
}

// PublishStockAdjusted publishes StockAdjusted event
func (ep *EventPublisher) PublishStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error {
	return ep.producer.PublishEvent(ctx, productKey(event.ProductID), event)
}

// PublishStockReserved publishes StockReserved event
func (ep *EventPublisher) PublishStockReserved(ctx context.Context, event *models.StockReservedEvent) error {
	return ep.producer.PublishEvent(ctx, productKey(event.ProductID), event)
}

// PublishReservationConfirmed publishes ReservationConfirmed event
func (ep *EventPublisher) PublishReservationConfirmed(ctx context.Context, event *models.ReservationConfirmedEvent) error {
	return ep.producer.PublishEvent(ctx, productKey(event.ProductID), event)
}

// PublishReservationCancelled publishes ReservationCancelled event
func (ep *EventPublisher) PublishReservationCancelled(ctx context.Context, event *models.ReservationCancelledEvent) error {
	return ep.producer.PublishEvent(ctx, productKey(event.ProductID), event)
}

// PublishLowStock publishes LowStock event
func (ep *EventPublisher) PublishLowStock(ctx context.Context, event *models.LowStockEvent) error {
	return ep.producer.PublishEvent(ctx, productKey(event.ProductID), event)
}

func productKey(productID string) string {
	return fmt.Sprintf("product-%s", productID)
}
