package models

import "time"

// InventoryRecord tracks the stock balance for a single product.
// Invariant: TotalStock = AvailableStock + ReservedStock, all three >= 0.
type InventoryRecord struct {
	ProductID         string    `db:"product_id" json:"product_id"`
	SKU               string    `db:"sku" json:"sku"`
	AvailableStock    int       `db:"available_stock" json:"available_stock"`
	ReservedStock     int       `db:"reserved_stock" json:"reserved_stock"`
	TotalStock        int       `db:"total_stock" json:"total_stock"`
	LowStockThreshold int       `db:"low_stock_threshold" json:"low_stock_threshold"`
	ReorderPoint      int       `db:"reorder_point" json:"reorder_point"`
	ReorderQuantity   int       `db:"reorder_quantity" json:"reorder_quantity"`
	Location          string    `db:"location" json:"location"`
	Version           int64     `db:"version" json:"-"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// IsLowStock reports whether available stock has dropped to the low-stock threshold.
func (r *InventoryRecord) IsLowStock() bool {
	return r.AvailableStock <= r.LowStockThreshold
}

// Reservation is a time-bounded hold on a quantity of stock for an order.
type Reservation struct {
	ReservationID string    `db:"reservation_id" json:"reservation_id"`
	ProductID     string    `db:"product_id" json:"product_id"`
	OrderID       string    `db:"order_id" json:"order_id"`
	Quantity      int       `db:"quantity" json:"quantity"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	ExpiresAt     time.Time `db:"expires_at" json:"expires_at"`
}

// Reservation statuses. CONFIRMED and CANCELLED are terminal.
const (
	ReservationStatusActive    = "ACTIVE"
	ReservationStatusConfirmed = "CONFIRMED"
	ReservationStatusCancelled = "CANCELLED"
)

// StockMovement is an immutable audit record of a balance-changing event.
type StockMovement struct {
	MovementID string    `db:"movement_id" json:"movement_id"`
	ProductID  string    `db:"product_id" json:"product_id"`
	Type       string    `db:"type" json:"type"`
	Quantity   int       `db:"quantity" json:"quantity"`
	Reference  string    `db:"reference" json:"reference"`
	Timestamp  time.Time `db:"timestamp" json:"timestamp"`
}

// Movement types
const (
	MovementTypeInitial    = "INITIAL"
	MovementTypeRestock    = "RESTOCK"
	MovementTypeSale       = "SALE"
	MovementTypeReturn     = "RETURN"
	MovementTypeAdjustment = "ADJUSTMENT"
)

// ValidMovementType reports whether t is one of the known movement types.
func ValidMovementType(t string) bool {
	switch t {
	case MovementTypeInitial, MovementTypeRestock, MovementTypeSale,
		MovementTypeReturn, MovementTypeAdjustment:
		return true
	}
	return false
}
