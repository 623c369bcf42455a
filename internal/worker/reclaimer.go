package worker

import (
	"context"
	"sync"
	"time"

	"inventory-service/internal/service"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

// ReclaimWorker runs the expiry sweep on a fixed interval. It is the
// service's only autonomous background process: started at boot, stopped on
// shutdown, invoking the same ReclaimExpired exposed to manual callers.
type ReclaimWorker struct {
	reservations *service.ReservationService
	interval     time.Duration
	logger       *zap.Logger
	done         chan struct{}
	wg           sync.WaitGroup
}

// NewReclaimWorker creates a reclaim worker with the given sweep interval.
func NewReclaimWorker(reservations *service.ReservationService, interval time.Duration) *ReclaimWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReclaimWorker{
		reservations: reservations,
		interval:     interval,
		logger:       util.GetLogger(),
		done:         make(chan struct{}),
	}
}

// Start launches the sweep loop. It returns immediately; the loop runs until
// the context is cancelled or Stop is called. An in-flight sweep finishes its
// current reservation before exiting.
func (w *ReclaimWorker) Start(ctx context.Context) {
	w.logger.Info("Starting reclaim worker", zap.Duration("interval", w.interval))

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.done:
				return
			case <-ticker.C:
				w.sweep(ctx)
			}
		}
	}()
}

// Stop signals the loop to exit and waits for any in-flight sweep.
func (w *ReclaimWorker) Stop() {
	w.logger.Info("Stopping reclaim worker")
	close(w.done)
	w.wg.Wait()
}

func (w *ReclaimWorker) sweep(ctx context.Context) {
	result, err := w.reservations.ReclaimExpired(ctx)
	if err != nil {
		w.logger.Error("Expiry sweep failed", zap.Error(err))
		return
	}
	if result.ReclaimedCount > 0 {
		w.logger.Info("Expiry sweep reclaimed reservations",
			zap.Int("count", result.ReclaimedCount))
	}
}
