package store

import (
	"context"
	"testing"
	"time"

	"inventory-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInventoryConditional(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rec := &models.InventoryRecord{ProductID: "p1", SKU: "SKU1", AvailableStock: 10, TotalStock: 10}
	require.NoError(t, s.CreateInventory(ctx, rec))
	assert.EqualValues(t, 1, rec.Version)

	// Same product id
	err := s.CreateInventory(ctx, &models.InventoryRecord{ProductID: "p1", SKU: "SKU2"})
	assert.ErrorIs(t, err, ErrKeyExists)

	// Same sku, different product
	err = s.CreateInventory(ctx, &models.InventoryRecord{ProductID: "p2", SKU: "SKU1"})
	assert.ErrorIs(t, err, ErrKeyExists)
}

func TestUpdateInventoryVersionConflict(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreateInventory(ctx, &models.InventoryRecord{ProductID: "p1", SKU: "SKU1", AvailableStock: 10, TotalStock: 10}))

	a, err := s.GetInventory(ctx, "p1")
	require.NoError(t, err)
	b, err := s.GetInventory(ctx, "p1")
	require.NoError(t, err)

	a.AvailableStock = 5
	require.NoError(t, s.UpdateInventory(ctx, a))
	assert.EqualValues(t, 2, a.Version)

	// b still carries the old version; its write must lose.
	b.AvailableStock = 7
	assert.ErrorIs(t, s.UpdateInventory(ctx, b), ErrVersionConflict)

	cur, err := s.GetInventory(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, cur.AvailableStock)

	assert.ErrorIs(t, s.UpdateInventory(ctx, &models.InventoryRecord{ProductID: "missing"}), ErrNotExist)
}

func TestGetInventoryBySKU(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreateInventory(ctx, &models.InventoryRecord{ProductID: "p1", SKU: "SKU1"}))

	rec, err := s.GetInventoryBySKU(ctx, "SKU1")
	require.NoError(t, err)
	assert.Equal(t, "p1", rec.ProductID)

	_, err = s.GetInventoryBySKU(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestTransitionReservation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	res := &models.Reservation{
		ReservationID: "r1",
		ProductID:     "p1",
		Status:        models.ReservationStatusActive,
		ExpiresAt:     time.Now().Add(time.Minute),
	}
	require.NoError(t, s.CreateReservation(ctx, res))
	assert.ErrorIs(t, s.CreateReservation(ctx, res), ErrKeyExists)

	require.NoError(t, s.TransitionReservation(ctx, "r1",
		models.ReservationStatusActive, models.ReservationStatusConfirmed))

	// Second transition finds the status already moved.
	err := s.TransitionReservation(ctx, "r1",
		models.ReservationStatusActive, models.ReservationStatusCancelled)
	assert.ErrorIs(t, err, ErrVersionConflict)

	err = s.TransitionReservation(ctx, "missing",
		models.ReservationStatusActive, models.ReservationStatusCancelled)
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestListExpiredActive(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	mk := func(id string, expiresAt time.Time, status string) {
		require.NoError(t, s.CreateReservation(ctx, &models.Reservation{
			ReservationID: id,
			ProductID:     "p1",
			Status:        status,
			ExpiresAt:     expiresAt,
		}))
	}

	mk("old", now.Add(-2*time.Hour), models.ReservationStatusActive)
	mk("older", now.Add(-3*time.Hour), models.ReservationStatusActive)
	// Sub-second lapses count too; the bound itself does not.
	mk("justLapsed", now.Add(-50*time.Millisecond), models.ReservationStatusActive)
	mk("onTheBound", now, models.ReservationStatusActive)
	mk("fresh", now.Add(time.Hour), models.ReservationStatusActive)
	mk("resolved", now.Add(-time.Hour), models.ReservationStatusCancelled)

	expired, err := s.ListExpiredActive(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, expired, 3)
	assert.Equal(t, "older", expired[0].ReservationID)
	assert.Equal(t, "old", expired[1].ReservationID)
	assert.Equal(t, "justLapsed", expired[2].ReservationID)

	limited, err := s.ListExpiredActive(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "older", limited[0].ReservationID)
}

func TestListMovementsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i, typ := range []string{models.MovementTypeInitial, models.MovementTypeRestock, models.MovementTypeSale} {
		require.NoError(t, s.AppendMovement(ctx, &models.StockMovement{
			MovementID: typ,
			ProductID:  "p1",
			Type:       typ,
			Quantity:   i,
			Timestamp:  time.Now(),
		}))
	}

	movements, err := s.ListMovements(ctx, "p1", 10)
	require.NoError(t, err)
	require.Len(t, movements, 3)
	assert.Equal(t, models.MovementTypeSale, movements[0].Type)
	assert.Equal(t, models.MovementTypeInitial, movements[2].Type)

	limited, err := s.ListMovements(ctx, "p1", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, models.MovementTypeSale, limited[0].Type)

	empty, err := s.ListMovements(ctx, "unknown", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
