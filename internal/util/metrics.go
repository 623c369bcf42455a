package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InventoryInitializedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_initialized_total",
		Help: "Total number of inventory records created",
	})

	StockAdjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_adjustments_total",
		Help: "Total number of stock adjustments",
	}, []string{"type"})

	ReservationsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_created_total",
		Help: "Total number of reservations created",
	})

	ReservationsConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_confirmed_total",
		Help: "Total number of reservations confirmed as sales",
	})

	ReservationsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_cancelled_total",
		Help: "Total number of reservations cancelled by callers",
	})

	ReservationsReclaimedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_reclaimed_total",
		Help: "Total number of expired reservations reclaimed by the sweep",
	})

	ReservationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservations_failed_total",
		Help: "Total number of failed reservation operations",
	}, []string{"reason"})

	CounterConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_counter_conflicts_total",
		Help: "Total number of counter updates that exhausted the optimistic retry budget",
	})

	LowStockEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_low_stock_total",
		Help: "Total number of times a mutation left a product at or below its low-stock threshold",
	})

	ReserveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_reserve_latency_seconds",
		Help:    "Latency of stock reservation operations",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
