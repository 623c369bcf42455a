package service

import (
	"context"
	"time"

	"inventory-service/internal/util"

	"go.uber.org/zap"
)

// ReclaimResult reports the outcome of one expiry sweep.
type ReclaimResult struct {
	ReclaimedCount int `json:"reclaimed_count"`
}

// ReclaimExpired cancels ACTIVE reservations whose deadline has passed,
// returning their quantity to the available pool. One failing reservation
// never aborts the sweep; it is logged and the sweep moves on. A reservation
// confirmed concurrently counts as already processed, not reclaimed.
func (s *ReservationService) ReclaimExpired(ctx context.Context) (*ReclaimResult, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.ReclaimExpired")
	defer span.End()

	listCtx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	expired, err := s.store.ListExpiredActive(listCtx, time.Now().UTC(), s.opts.SweepBatchSize)
	cancel()
	if err != nil {
		return nil, mapStoreErr(err)
	}

	result := &ReclaimResult{}
	for _, res := range expired {
		if ctx.Err() != nil {
			// Shutdown mid-sweep: stop enumerating, report what landed.
			break
		}

		cancelCtx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
		outcome, err := s.cancel(cancelCtx, res.ReservationID, true)
		cancel()
		if err != nil {
			util.ReservationsFailedTotal.WithLabelValues("reclaim_error").Inc()
			s.logger.Error("Failed to reclaim expired reservation",
				zap.String("reservation_id", res.ReservationID),
				zap.String("product_id", res.ProductID),
				zap.Error(err))
			continue
		}
		if !outcome.AlreadyProcessed {
			result.ReclaimedCount++
		}
	}

	if result.ReclaimedCount > 0 || len(expired) > 0 {
		s.logger.Info("Expiry sweep finished",
			zap.Int("candidates", len(expired)),
			zap.Int("reclaimed", result.ReclaimedCount))
	}
	return result, nil
}
