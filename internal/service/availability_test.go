package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAvailability(t *testing.T) {
	inv, reservations, _, _ := newTestServices(t)
	ctx := context.Background()

	_, err := inv.Initialize(ctx, &InitializeRequest{ProductID: "p1", SKU: "SKU1", InitialStock: 50})
	require.NoError(t, err)
	_, err = inv.Initialize(ctx, &InitializeRequest{ProductID: "p2", SKU: "SKU2", InitialStock: 3})
	require.NoError(t, err)

	_, err = reservations.Reserve(ctx, &ReserveRequest{ProductID: "p1", Quantity: 45, OrderID: "o1"})
	require.NoError(t, err)

	results, err := inv.CheckAvailability(ctx, []AvailabilityRequest{
		{ProductID: "p1", Quantity: 5},
		{ProductID: "p1", Quantity: 6},
		{ProductID: "p2", Quantity: 3},
		{ProductID: "ghost", Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.True(t, results[0].Available)
	assert.Equal(t, 5, results[0].AvailableStock)

	// Reserved stock does not count as available.
	assert.False(t, results[1].Available)
	assert.Equal(t, 5, results[1].AvailableStock)

	assert.True(t, results[2].Available)

	// Unknown products report zero availability, not an error.
	assert.False(t, results[3].Available)
	assert.Equal(t, 0, results[3].AvailableStock)
	assert.Equal(t, 1, results[3].Requested)
}

func TestCheckAvailabilityEmpty(t *testing.T) {
	inv, _, _, _ := newTestServices(t)

	results, err := inv.CheckAvailability(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
