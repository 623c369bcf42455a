package service

import (
	"context"
	"errors"

	"inventory-service/internal/store"
	"inventory-service/internal/util"
)

// AvailabilityRequest is one product/quantity pair of a bulk check.
type AvailabilityRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// AvailabilityResult reports whether available stock covers the request.
// Unknown products report zero availability rather than an error.
type AvailabilityResult struct {
	ProductID      string `json:"product_id"`
	Requested      int    `json:"requested"`
	Available      bool   `json:"available"`
	AvailableStock int    `json:"available_stock"`
}

// CheckAvailability is an advisory bulk check. It reserves nothing; callers
// must still handle ErrInsufficientStock from Reserve.
func (s *InventoryService) CheckAvailability(ctx context.Context, items []AvailabilityRequest) ([]AvailabilityResult, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.CheckAvailability")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()

	results := make([]AvailabilityResult, 0, len(items))
	for _, item := range items {
		result := AvailabilityResult{
			ProductID: item.ProductID,
			Requested: item.Quantity,
		}

		rec, err := s.store.GetInventory(ctx, item.ProductID)
		switch {
		case err == nil:
			result.AvailableStock = rec.AvailableStock
			result.Available = rec.AvailableStock >= item.Quantity
		case errors.Is(err, store.ErrNotExist):
			// Unknown product: zero availability, not an error.
		default:
			return nil, mapStoreErr(err)
		}

		results = append(results, result)
	}
	return results, nil
}
