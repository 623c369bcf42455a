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

// ReservationService runs the reservation state machine:
// ACTIVE -> CONFIRMED (sale) or ACTIVE -> CANCELLED (release), both terminal.
// The status transition is a conditional write, so a confirm racing a cancel
// is decided by whichever commits first; the loser observes the terminal
// status.
type ReservationService struct {
	store     store.Store
	inventory *InventoryService
	movements *MovementLog
	events    EventPublisher
	logger    *zap.Logger
	opts      Options
}

// NewReservationService creates the reservation manager.
func NewReservationService(st store.Store, inventory *InventoryService, movements *MovementLog, events EventPublisher, opts Options) *ReservationService {
	opts.normalize()
	if events == nil {
		events = NopPublisher{}
	}
	return &ReservationService{
		store:     st,
		inventory: inventory,
		movements: movements,
		events:    events,
		logger:    util.GetLogger(),
		opts:      opts,
	}
}

// ReserveRequest asks for a time-bounded hold on stock.
type ReserveRequest struct {
	ProductID  string `json:"product_id" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required,min=1"`
	OrderID    string `json:"order_id" binding:"required"`
	TTLMinutes int    `json:"ttl_minutes,omitempty"`
}

// CancelResult reports the outcome of a cancellation.
type CancelResult struct {
	AlreadyProcessed bool                `json:"already_processed"`
	Reservation      *models.Reservation `json:"reservation"`
}

// Reserve debits available stock, credits reserved stock, and creates an
// ACTIVE reservation. The debit happens at reservation time so a concurrent
// reserve immediately sees the reduced pool; no movement is logged because
// the stock has not left the system.
func (s *ReservationService) Reserve(ctx context.Context, req *ReserveRequest) (*models.Reservation, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.Reserve")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		util.ReserveLatency.Observe(time.Since(start).Seconds())
	}()

	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidArgument)
	}
	if req.ProductID == "" || req.OrderID == "" {
		return nil, fmt.Errorf("%w: product id and order id are required", ErrInvalidArgument)
	}

	ttl := time.Duration(req.TTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = s.opts.DefaultTTL
	}

	_, err := s.inventory.updateCounters(ctx, req.ProductID, func(r *models.InventoryRecord) error {
		if r.AvailableStock < req.Quantity {
			return fmt.Errorf("%w: available=%d, requested=%d", ErrInsufficientStock, r.AvailableStock, req.Quantity)
		}
		r.AvailableStock -= req.Quantity
		r.ReservedStock += req.Quantity
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			util.ReservationsFailedTotal.WithLabelValues("insufficient_stock").Inc()
		}
		return nil, err
	}

	now := time.Now().UTC()
	res := &models.Reservation{
		ReservationID: uuid.New().String(),
		ProductID:     req.ProductID,
		OrderID:       req.OrderID,
		Quantity:      req.Quantity,
		Status:        models.ReservationStatusActive,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}

	if err := s.store.CreateReservation(ctx, res); err != nil {
		// The hold was already debited; put it back before surfacing.
		s.compensateReserve(req.ProductID, req.Quantity)
		util.ReservationsFailedTotal.WithLabelValues("store_error").Inc()
		return nil, mapStoreErr(err)
	}

	util.ReservationsCreatedTotal.Inc()
	s.logger.Info("Reservation created",
		zap.String("reservation_id", res.ReservationID),
		zap.String("product_id", res.ProductID),
		zap.String("order_id", res.OrderID),
		zap.Int("quantity", res.Quantity),
		zap.Time("expires_at", res.ExpiresAt))

	if err := s.events.PublishStockReserved(ctx, &models.StockReservedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeStockReserved),
		ReservationID: res.ReservationID,
		ProductID:     res.ProductID,
		OrderID:       res.OrderID,
		Quantity:      res.Quantity,
		ExpiresAt:     res.ExpiresAt,
	}); err != nil {
		s.logger.Error("Failed to publish StockReserved event", zap.Error(err))
	}

	return res, nil
}

// Confirm resolves an ACTIVE reservation to a sale: reserved and total stock
// both drop by the held quantity and a SALE movement is appended. Confirming
// a resolved reservation fails with ErrInvalidState.
func (s *ReservationService) Confirm(ctx context.Context, reservationID string) (*models.Reservation, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.Confirm")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()

	res, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if res.Status != models.ReservationStatusActive {
		return nil, fmt.Errorf("%w: reservation %s is %s", ErrInvalidState, reservationID, res.Status)
	}

	err = s.store.TransitionReservation(ctx, reservationID,
		models.ReservationStatusActive, models.ReservationStatusConfirmed)
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			// Lost the race against a cancel or reclaim.
			return nil, fmt.Errorf("%w: reservation %s was resolved concurrently", ErrInvalidState, reservationID)
		}
		return nil, mapStoreErr(err)
	}
	res.Status = models.ReservationStatusConfirmed

	_, err = s.inventory.updateCounters(ctx, res.ProductID, func(r *models.InventoryRecord) error {
		if r.ReservedStock < res.Quantity || r.TotalStock < res.Quantity {
			return fmt.Errorf("counters out of sync for product %s: reserved=%d, total=%d, confirming=%d",
				res.ProductID, r.ReservedStock, r.TotalStock, res.Quantity)
		}
		r.ReservedStock -= res.Quantity
		r.TotalStock -= res.Quantity
		return nil
	})
	if err != nil {
		// The transition already committed; the movement log is the
		// reconciliation source for this reservation.
		s.logger.Error("Failed to settle counters after confirm",
			zap.String("reservation_id", reservationID),
			zap.String("product_id", res.ProductID),
			zap.Error(err))
		return nil, err
	}

	if _, err := s.movements.Append(ctx, res.ProductID, models.MovementTypeSale, -res.Quantity, res.OrderID); err != nil {
		s.logger.Error("Failed to record SALE movement",
			zap.String("reservation_id", reservationID),
			zap.Error(err))
	}

	util.ReservationsConfirmedTotal.Inc()
	s.logger.Info("Reservation confirmed",
		zap.String("reservation_id", res.ReservationID),
		zap.String("order_id", res.OrderID),
		zap.Int("quantity", res.Quantity))

	if err := s.events.PublishReservationConfirmed(ctx, &models.ReservationConfirmedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeReservationConfirmed),
		ReservationID: res.ReservationID,
		ProductID:     res.ProductID,
		OrderID:       res.OrderID,
		Quantity:      res.Quantity,
	}); err != nil {
		s.logger.Error("Failed to publish ReservationConfirmed event", zap.Error(err))
	}

	return res, nil
}

// Cancel releases an ACTIVE reservation back to the available pool. It is
// idempotent: cancelling a resolved reservation reports already-processed
// instead of erroring, so user actions and reclaimer sweeps can race safely.
func (s *ReservationService) Cancel(ctx context.Context, reservationID string) (*CancelResult, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.Cancel")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()

	return s.cancel(ctx, reservationID, false)
}

func (s *ReservationService) cancel(ctx context.Context, reservationID string, reclaimed bool) (*CancelResult, error) {
	res, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if res.Status != models.ReservationStatusActive {
		return &CancelResult{AlreadyProcessed: true, Reservation: res}, nil
	}

	err = s.store.TransitionReservation(ctx, reservationID,
		models.ReservationStatusActive, models.ReservationStatusCancelled)
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			// Resolved concurrently; re-read for the caller.
			if cur, gerr := s.store.GetReservation(ctx, reservationID); gerr == nil {
				res = cur
			}
			return &CancelResult{AlreadyProcessed: true, Reservation: res}, nil
		}
		return nil, mapStoreErr(err)
	}
	res.Status = models.ReservationStatusCancelled

	_, err = s.inventory.updateCounters(ctx, res.ProductID, func(r *models.InventoryRecord) error {
		if r.ReservedStock < res.Quantity {
			return fmt.Errorf("counters out of sync for product %s: reserved=%d, releasing=%d",
				res.ProductID, r.ReservedStock, res.Quantity)
		}
		r.AvailableStock += res.Quantity
		r.ReservedStock -= res.Quantity
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to release counters after cancel",
			zap.String("reservation_id", reservationID),
			zap.String("product_id", res.ProductID),
			zap.Error(err))
		return nil, err
	}

	if reclaimed {
		util.ReservationsReclaimedTotal.Inc()
	} else {
		util.ReservationsCancelledTotal.Inc()
	}
	s.logger.Info("Reservation cancelled",
		zap.String("reservation_id", res.ReservationID),
		zap.String("order_id", res.OrderID),
		zap.Int("quantity", res.Quantity),
		zap.Bool("reclaimed", reclaimed))

	eventType := models.EventTypeReservationCancelled
	if reclaimed {
		eventType = models.EventTypeReservationReclaimed
	}
	if err := s.events.PublishReservationCancelled(ctx, &models.ReservationCancelledEvent{
		BaseEvent:     newBaseEvent(eventType),
		ReservationID: res.ReservationID,
		ProductID:     res.ProductID,
		OrderID:       res.OrderID,
		Quantity:      res.Quantity,
		Reclaimed:     reclaimed,
	}); err != nil {
		s.logger.Error("Failed to publish ReservationCancelled event", zap.Error(err))
	}

	return &CancelResult{AlreadyProcessed: false, Reservation: res}, nil
}

// Get returns a reservation by id.
func (s *ReservationService) Get(ctx context.Context, reservationID string) (*models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()

	res, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return res, nil
}

// compensateReserve credits back a debit whose reservation write failed. The
// request context may be the reason that write failed (deadline expired), so
// the credit runs on its own deadline; otherwise the debited units would sit
// in reservedStock with no reservation for the reclaimer to find.
func (s *ReservationService) compensateReserve(productID string, quantity int) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.StorageTimeout)
	defer cancel()

	_, err := s.inventory.updateCounters(ctx, productID, func(r *models.InventoryRecord) error {
		r.AvailableStock += quantity
		r.ReservedStock -= quantity
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to compensate failed reservation",
			zap.String("product_id", productID),
			zap.Int("quantity", quantity),
			zap.Error(err))
	}
}
