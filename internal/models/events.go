package models

import "time"

// Event types
const (
	EventTypeStockInitialized     = "STOCK_INITIALIZED"
	EventTypeStockAdjusted        = "STOCK_ADJUSTED"
	EventTypeStockReserved        = "STOCK_RESERVED"
	EventTypeReservationConfirmed = "RESERVATION_CONFIRMED"
	EventTypeReservationCancelled = "RESERVATION_CANCELLED"
	EventTypeReservationReclaimed = "RESERVATION_RECLAIMED"
	EventTypeLowStock             = "LOW_STOCK"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// StockInitializedEvent published when inventory is created for a product
type StockInitializedEvent struct {
	BaseEvent
	ProductID    string `json:"product_id"`
	SKU          string `json:"sku"`
	InitialStock int    `json:"initial_stock"`
	Location     string `json:"location"`
}

// StockAdjustedEvent published when stock is restocked or manually adjusted
type StockAdjustedEvent struct {
	BaseEvent
	ProductID      string `json:"product_id"`
	MovementType   string `json:"movement_type"`
	Delta          int    `json:"delta"`
	AvailableStock int    `json:"available_stock"`
	TotalStock     int    `json:"total_stock"`
	Reference      string `json:"reference,omitempty"`
}

// StockReservedEvent published when a reservation is created
type StockReservedEvent struct {
	BaseEvent
	ReservationID string    `json:"reservation_id"`
	ProductID     string    `json:"product_id"`
	OrderID       string    `json:"order_id"`
	Quantity      int       `json:"quantity"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// ReservationConfirmedEvent published when a reservation resolves to a sale
type ReservationConfirmedEvent struct {
	BaseEvent
	ReservationID string `json:"reservation_id"`
	ProductID     string `json:"product_id"`
	OrderID       string `json:"order_id"`
	Quantity      int    `json:"quantity"`
}

// ReservationCancelledEvent published when a hold is released back to the pool
type ReservationCancelledEvent struct {
	BaseEvent
	ReservationID string `json:"reservation_id"`
	ProductID     string `json:"product_id"`
	OrderID       string `json:"order_id"`
	Quantity      int    `json:"quantity"`
	Reclaimed     bool   `json:"reclaimed"`
}

// LowStockEvent published when a mutation leaves available stock at or
// below the product's low-stock threshold
type LowStockEvent struct {
	BaseEvent
	ProductID      string `json:"product_id"`
	SKU            string `json:"sku"`
	AvailableStock int    `json:"available_stock"`
	Threshold      int    `json:"threshold"`
	ReorderPoint   int    `json:"reorder_point"`
}
