package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InventoryService owns the three-counter balance per product and enforces
// the conservation invariant: available + reserved == total, all >= 0.
type InventoryService struct {
	store     store.Store
	movements *MovementLog
	events    EventPublisher
	logger    *zap.Logger
	opts      Options
}

// NewInventoryService creates the inventory record manager.
func NewInventoryService(st store.Store, movements *MovementLog, events EventPublisher, opts Options) *InventoryService {
	opts.normalize()
	if events == nil {
		events = NopPublisher{}
	}
	return &InventoryService{
		store:     st,
		movements: movements,
		events:    events,
		logger:    util.GetLogger(),
		opts:      opts,
	}
}

// InitializeRequest creates inventory for a product.
type InitializeRequest struct {
	ProductID         string `json:"product_id" binding:"required"`
	SKU               string `json:"sku" binding:"required"`
	InitialStock      int    `json:"initial_stock" binding:"min=0"`
	Location          string `json:"location"`
	LowStockThreshold int    `json:"low_stock_threshold,omitempty"`
	ReorderPoint      int    `json:"reorder_point,omitempty"`
	ReorderQuantity   int    `json:"reorder_quantity,omitempty"`
}

// Initialize creates the inventory record for a product. Creation is
// conditional on absence; a second call for the same product (or sku) fails
// with ErrAlreadyExists.
func (s *InventoryService) Initialize(ctx context.Context, req *InitializeRequest) (*models.InventoryRecord, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.Initialize")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()

	if req.ProductID == "" || req.SKU == "" {
		return nil, fmt.Errorf("%w: product id and sku are required", ErrInvalidArgument)
	}
	if req.InitialStock < 0 {
		return nil, fmt.Errorf("%w: initial stock must not be negative", ErrInvalidArgument)
	}

	now := time.Now().UTC()
	rec := &models.InventoryRecord{
		ProductID:         req.ProductID,
		SKU:               req.SKU,
		AvailableStock:    req.InitialStock,
		ReservedStock:     0,
		TotalStock:        req.InitialStock,
		LowStockThreshold: req.LowStockThreshold,
		ReorderPoint:      req.ReorderPoint,
		ReorderQuantity:   req.ReorderQuantity,
		Location:          req.Location,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.store.CreateInventory(ctx, rec); err != nil {
		return nil, mapStoreErr(err)
	}

	if _, err := s.movements.Append(ctx, rec.ProductID, models.MovementTypeInitial, req.InitialStock, "initial stock"); err != nil {
		s.logger.Error("Failed to record INITIAL movement",
			zap.String("product_id", rec.ProductID),
			zap.Error(err))
	}

	util.InventoryInitializedTotal.Inc()
	s.logger.Info("Inventory initialized",
		zap.String("product_id", rec.ProductID),
		zap.String("sku", rec.SKU),
		zap.Int("initial_stock", req.InitialStock))

	if err := s.events.PublishStockInitialized(ctx, &models.StockInitializedEvent{
		BaseEvent:    newBaseEvent(models.EventTypeStockInitialized),
		ProductID:    rec.ProductID,
		SKU:          rec.SKU,
		InitialStock: req.InitialStock,
		Location:     rec.Location,
	}); err != nil {
		s.logger.Error("Failed to publish StockInitialized event", zap.Error(err))
	}

	s.notifyLowStock(ctx, rec)
	return rec, nil
}

// Adjust applies a signed delta to available and total stock. Restocks and
// returns use a positive delta, manual adjustments either sign. The delta
// never touches reserved stock.
func (s *InventoryService) Adjust(ctx context.Context, productID string, delta int, movType, reference string) (*models.InventoryRecord, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.Adjust")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()

	switch movType {
	case models.MovementTypeRestock, models.MovementTypeReturn, models.MovementTypeAdjustment:
	default:
		return nil, fmt.Errorf("%w: movement type %q is not an adjustment type", ErrInvalidArgument, movType)
	}

	rec, err := s.updateCounters(ctx, productID, func(r *models.InventoryRecord) error {
		if r.AvailableStock+delta < 0 {
			return fmt.Errorf("%w: available=%d, delta=%d", ErrInsufficientStock, r.AvailableStock, delta)
		}
		r.AvailableStock += delta
		r.TotalStock += delta
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.movements.Append(ctx, productID, movType, delta, reference); err != nil {
		s.logger.Error("Failed to record adjustment movement",
			zap.String("product_id", productID),
			zap.String("type", movType),
			zap.Error(err))
	}

	util.StockAdjustmentsTotal.WithLabelValues(movType).Inc()
	s.logger.Info("Stock adjusted",
		zap.String("product_id", productID),
		zap.String("type", movType),
		zap.Int("delta", delta),
		zap.Int("available", rec.AvailableStock))

	if err := s.events.PublishStockAdjusted(ctx, &models.StockAdjustedEvent{
		BaseEvent:      newBaseEvent(models.EventTypeStockAdjusted),
		ProductID:      productID,
		MovementType:   movType,
		Delta:          delta,
		AvailableStock: rec.AvailableStock,
		TotalStock:     rec.TotalStock,
		Reference:      reference,
	}); err != nil {
		s.logger.Error("Failed to publish StockAdjusted event", zap.Error(err))
	}

	s.notifyLowStock(ctx, rec)
	return rec, nil
}

// Get returns the inventory record for a product.
func (s *InventoryService) Get(ctx context.Context, productID string) (*models.InventoryRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()

	rec, err := s.store.GetInventory(ctx, productID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return rec, nil
}

// GetBySKU returns the inventory record owning the given sku.
func (s *InventoryService) GetBySKU(ctx context.Context, sku string) (*models.InventoryRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()

	rec, err := s.store.GetInventoryBySKU(ctx, sku)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return rec, nil
}

// ListLowStock returns every record with available stock at or below its
// low-stock threshold.
func (s *InventoryService) ListLowStock(ctx context.Context) ([]models.InventoryRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()

	records, err := s.store.ListLowStock(ctx)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return records, nil
}

// updateCounters runs an optimistic-retry loop around a read-modify-write of
// a product's counters. mutate sees a private copy; the write commits only if
// no concurrent update landed in between. Exhausting the retry budget yields
// ErrConflict.
func (s *InventoryService) updateCounters(ctx context.Context, productID string, mutate func(*models.InventoryRecord) error) (*models.InventoryRecord, error) {
	for attempt := 0; attempt < s.opts.MaxUpdateRetries; attempt++ {
		rec, err := s.store.GetInventory(ctx, productID)
		if err != nil {
			return nil, mapStoreErr(err)
		}

		if err := mutate(rec); err != nil {
			return nil, err
		}

		err = s.store.UpdateInventory(ctx, rec)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return nil, mapStoreErr(err)
		}
	}

	util.CounterConflictsTotal.Inc()
	return nil, fmt.Errorf("%w: product %s after %d attempts", ErrConflict, productID, s.opts.MaxUpdateRetries)
}

func (s *InventoryService) notifyLowStock(ctx context.Context, rec *models.InventoryRecord) {
	if !rec.IsLowStock() {
		return
	}

	util.LowStockEventsTotal.Inc()
	s.logger.Warn("Low stock",
		zap.String("product_id", rec.ProductID),
		zap.String("sku", rec.SKU),
		zap.Int("available", rec.AvailableStock),
		zap.Int("threshold", rec.LowStockThreshold))

	if err := s.events.PublishLowStock(ctx, &models.LowStockEvent{
		BaseEvent:      newBaseEvent(models.EventTypeLowStock),
		ProductID:      rec.ProductID,
		SKU:            rec.SKU,
		AvailableStock: rec.AvailableStock,
		Threshold:      rec.LowStockThreshold,
		ReorderPoint:   rec.ReorderPoint,
	}); err != nil {
		s.logger.Error("Failed to publish LowStock event", zap.Error(err))
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}
