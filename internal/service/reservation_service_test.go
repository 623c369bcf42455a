package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserve(t *testing.T) {
	inv, reservations, movements, _ := newTestServices(t)
	ctx := context.Background()

	_, err := inv.Initialize(ctx, &InitializeRequest{ProductID: "p1", SKU: "SKU1", InitialStock: 50, Location: "WH-A"})
	require.NoError(t, err)

	res, err := reservations.Reserve(ctx, &ReserveRequest{
		ProductID: "p1", Quantity: 10, OrderID: "orderA", TTLMinutes: 15,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ReservationID)
	assert.Equal(t, models.ReservationStatusActive, res.Status)
	assert.Equal(t, "orderA", res.OrderID)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), res.ExpiresAt, 5*time.Second)

	rec := requireConservation(t, inv, "p1")
	assert.Equal(t, 40, rec.AvailableStock)
	assert.Equal(t, 10, rec.ReservedStock)
	assert.Equal(t, 50, rec.TotalStock)

	// Reservation itself logs no movement; stock has not left the system.
	history, err := movements.List(ctx, "p1", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestReserveDefaultTTL(t *testing.T) {
	inv, reservations, _, _ := newTestServices(t)
	ctx := context.Background()

	_, err := inv.Initialize(ctx, &InitializeRequest{ProductID: "p1", SKU: "SKU1", InitialStock: 10})
	require.NoError(t, err)

	res, err := reservations.Reserve(ctx, &ReserveRequest{ProductID: "p1", Quantity: 1, OrderID: "o1"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), res.ExpiresAt, 5*time.Second)
}

func TestReserveInsufficientStock(t *testing.T) {
	inv, reservations, _, _ := newTestServices(t)
	ctx := context.Background()

	_, err := inv.Initialize(ctx, &InitializeRequest{ProductID: "p1", SKU: "SKU1", InitialStock: 40})
	require.NoError(t, err)

	_, err = reservations.Reserve(ctx, &ReserveRequest{ProductID: "p1", Quantity: 1000, OrderID: "orderC"})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	rec := requireConservation(t, inv, "p1")
	assert.Equal(t, 40, rec.AvailableStock)
	assert.Equal(t, 0, rec.ReservedStock)
}

func TestReserveValidation(t *testing.T) {
	inv, reservations, _, _ := newTestServices(t)
	ctx := context.Background()

	_, err := inv.Initialize(ctx, &InitializeRequest{ProductID: "p1", SKU: "SKU1", InitialStock: 10})
	require.NoError(t, err)

	_, err = reservations.Reserve(ctx, &ReserveRequest{ProductID: "p1", Quantity: 0, OrderID: "o1"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = reservations.Reserve(ctx, &ReserveRequest{ProductID: "p1", Quantity: -3, OrderID: "o1"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = reservations.Reserve(ctx, &ReserveRequest{ProductID: "missing", Quantity: 1, OrderID: "o1"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfirm(t *testing.T) {
	inv, reservations, movements, _ := newTestServices(t)
	ctx := context.Background()

	_, err := inv.Initialize(ctx, &InitializeRequest{ProductID: "p1", SKU: "SKU1", InitialStock: 50})
	require.NoError(t, err)

	res, err := reservations.Reserve(ctx, &ReserveRequest{ProductID: "p1", Quantity: 10, OrderID: "orderA"})
	require.NoError(t, err)

	confirmed, err := reservations.Confirm(ctx, res.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusConfirmed, confirmed.Status)

	rec := requireConservation(t, inv, "p1")
	assert.Equal(t, 40, rec.AvailableStock)
	assert.Equal(t, 0, rec.ReservedStock)
	assert.Equal(t, 40, rec.TotalStock)

	history, err := movements.List(ctx, "p1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.MovementTypeSale, history[0].Type)
	assert.Equal(t, -10, history[0].Quantity)
	assert.Equal(t, "orderA", history[0].Reference)
}

func TestConfirmNotFound(t *testing.T) {
	_, reservations, _, _ := newTestServices(t)

	_, err := reservations.Confirm(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelRestoresStock(t *testing.T) {
	inv, reservations, movements, _ := newTestServices(t)
	ctx := context.Background()

	_, err := inv.Initialize(ctx, &InitializeRequest{ProductID: "p1", SKU: "SKU1", InitialStock: 40})
	require.NoError(t, err)

	res, err := reservations.Reserve(ctx, &ReserveRequest{ProductID: "p1", Quantity: 5, OrderID: "orderB"})
	require.NoError(t, err)

	rec := requireConservation(t, inv, "p1")
	assert.Equal(t, 35, rec.AvailableStock)

	result, err := reservations.Cancel(ctx, res.ReservationID)
	require.NoError(t, err)
	assert.False(t, result.AlreadyProcessed)
	assert.Equal(t, models.ReservationStatusCancelled, result.Reservation.Status)

	rec = requireConservation(t, inv, "p1")
	assert.Equal(t, 40, rec.AvailableStock)
	assert.Equal(t, 0, rec.ReservedStock)
	assert.Equal(t, 40, rec.TotalStock)

	// Cancellation logs no movement.
	history, err := movements.List(ctx, "p1", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestCancelIdempotent(t *testing.T) {
	inv, reservations, _, _ := newTestServices(t)
	ctx := context.Background()

	_, err := inv.Initialize(ctx, &InitializeRequest{ProductID: "p1", SKU: "SKU1", InitialStock: 40})
	require.NoError(t, err)

	res, err := reservations.Reserve(ctx, &ReserveRequest{ProductID: "p1", Quantity: 5, OrderID: "o1"})
	require.NoError(t, err)

	first, err := reservations.Cancel(ctx, res.ReservationID)
	require.NoError(t, err)
	assert.False(t, first.AlreadyProcessed)

	second, err := reservations.Cancel(ctx, res.ReservationID)
	require.NoError(t, err)
	assert.True(t, second.AlreadyProcessed)

	// The second cancel must not move counters again.
	rec := requireConservation(t, inv, "p1")
	assert.Equal(t, 40, rec.AvailableStock)
	assert.Equal(t, 0, rec.ReservedStock)

	_, err = reservations.Cancel(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmCancelExclusivity(t *testing.T) {
	inv, reservations, _, _ := newTestServices(t)
	ctx := context.Background()

	_, err := inv.Initialize(ctx, &InitializeRequest{ProductID: "p1", SKU: "SKU1", InitialStock: 40})
	require.NoError(t, err)

	// Confirmed first: cancel becomes a no-op.
	res, err := reservations.Reserve(ctx, &ReserveRequest{ProductID: "p1", Quantity: 5, OrderID: "o1"})
	require.NoError(t, err)
	_, err = reservations.Confirm(ctx, res.ReservationID)
	require.NoError(t, err)

	result, err := reservations.Cancel(ctx, res.ReservationID)
	require.NoError(t, err)
	assert.True(t, result.AlreadyProcessed)
	assert.Equal(t, models.ReservationStatusConfirmed, result.Reservation.Status)

	rec := requireConservation(t, inv, "p1")
	assert.Equal(t, 35, rec.AvailableStock)
	assert.Equal(t, 35, rec.TotalStock)

	// Cancelled first: confirm fails with InvalidState.
	res2, err := reservations.Reserve(ctx, &ReserveRequest{ProductID: "p1", Quantity: 5, OrderID: "o2"})
	require.NoError(t, err)
	_, err = reservations.Cancel(ctx, res2.ReservationID)
	require.NoError(t, err)

	_, err = reservations.Confirm(ctx, res2.ReservationID)
	assert.ErrorIs(t, err, ErrInvalidState)

	// Double confirm is an error too.
	_, err = reservations.Confirm(ctx, res.ReservationID)
	assert.ErrorIs(t, err, ErrInvalidState)

	requireConservation(t, inv, "p1")
}

// deadlineStore honors context deadlines the way a networked backend would:
// reads fail once the context is dead, and reservation writes block until it
// is.
type deadlineStore struct {
	store.Store
}

func (d *deadlineStore) GetInventory(ctx context.Context, productID string) (*models.InventoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.Store.GetInventory(ctx, productID)
}

func (d *deadlineStore) UpdateInventory(ctx context.Context, rec *models.InventoryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.Store.UpdateInventory(ctx, rec)
}

func (d *deadlineStore) CreateReservation(ctx context.Context, res *models.Reservation) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestReserveCompensatesWhenReservationWriteTimesOut(t *testing.T) {
	slow := &deadlineStore{Store: store.NewMemoryStore()}
	movements := NewMovementLog(slow)
	opts := DefaultOptions()
	opts.StorageTimeout = 50 * time.Millisecond
	inv := NewInventoryService(slow, movements, NopPublisher{}, opts)
	reservations := NewReservationService(slow, inv, movements, NopPublisher{}, opts)

	ctx := context.Background()
	_, err := inv.Initialize(ctx, &InitializeRequest{ProductID: "p1", SKU: "SKU1", InitialStock: 40})
	require.NoError(t, err)

	_, err = reservations.Reserve(ctx, &ReserveRequest{ProductID: "p1", Quantity: 10, OrderID: "o1"})
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	// The debit must be credited back even though the request deadline
	// is long gone; otherwise the units are stranded in reservedStock
	// with no reservation for the sweeper to find.
	rec := requireConservation(t, inv, "p1")
	assert.Equal(t, 40, rec.AvailableStock)
	assert.Equal(t, 0, rec.ReservedStock)
	assert.Equal(t, 40, rec.TotalStock)

	result, err := reservations.ReclaimExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ReclaimedCount)
}

func TestConcurrentReservesNoOversell(t *testing.T) {
	st := store.NewMemoryStore()
	movements := NewMovementLog(st)
	opts := DefaultOptions()
	// Generous retry budget so contenders settle to success or
	// insufficient stock instead of conflict.
	opts.MaxUpdateRetries = 200
	inv := NewInventoryService(st, movements, NopPublisher{}, opts)
	reservations := NewReservationService(st, inv, movements, NopPublisher{}, opts)

	ctx := context.Background()
	_, err := inv.Initialize(ctx, &InitializeRequest{ProductID: "p1", SKU: "SKU1", InitialStock: 50})
	require.NoError(t, err)

	const (
		workers = 20
		qty     = 5
	)

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		succeeded    int
		insufficient int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := reservations.Reserve(ctx, &ReserveRequest{ProductID: "p1", Quantity: qty, OrderID: "bulk"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrInsufficientStock):
				insufficient++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded, "exactly totalStock/qty reservations may win")
	assert.Equal(t, workers-10, insufficient)

	rec := requireConservation(t, inv, "p1")
	assert.Equal(t, 0, rec.AvailableStock)
	assert.Equal(t, 50, rec.ReservedStock)
	assert.Equal(t, 50, rec.TotalStock)
}
