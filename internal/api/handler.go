package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"inventory-service/internal/service"
	"inventory-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	inventory    *service.InventoryService
	reservations *service.ReservationService
	movements    *service.MovementLog
}

// NewHandler creates a new HTTP handler
func NewHandler(inventory *service.InventoryService, reservations *service.ReservationService, movements *service.MovementLog) *Handler {
	return &Handler{
		inventory:    inventory,
		reservations: reservations,
		movements:    movements,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/inventory", h.initializeInventory)
		v1.POST("/inventory/check", h.checkAvailability)
		v1.GET("/inventory/low-stock", h.listLowStock)
		v1.GET("/inventory/sku/:sku", h.getInventoryBySKU)
		v1.GET("/inventory/:productId", h.getInventory)
		v1.POST("/inventory/:productId/adjust", h.adjustStock)
		v1.GET("/inventory/:productId/movements", h.listMovements)

		v1.POST("/reservations", h.reserve)
		v1.GET("/reservations/:id", h.getReservation)
		v1.POST("/reservations/:id/confirm", h.confirmReservation)
		v1.POST("/reservations/:id/cancel", h.cancelReservation)
		v1.POST("/reservations/reclaim", h.reclaimExpired)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// initializeInventory creates inventory for a product
func (h *Handler) initializeInventory(c *gin.Context) {
	var req service.InitializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	rec, err := h.inventory.Initialize(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rec)
}

// getInventory returns inventory by product id
func (h *Handler) getInventory(c *gin.Context) {
	rec, err := h.inventory.Get(c.Request.Context(), c.Param("productId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// getInventoryBySKU returns inventory by sku
func (h *Handler) getInventoryBySKU(c *gin.Context) {
	rec, err := h.inventory.GetBySKU(c.Request.Context(), c.Param("sku"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type adjustRequest struct {
	Delta     int    `json:"delta" binding:"required"`
	Type      string `json:"type" binding:"required"`
	Reference string `json:"reference"`
}

// adjustStock applies a signed stock delta
func (h *Handler) adjustStock(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	rec, err := h.inventory.Adjust(c.Request.Context(), c.Param("productId"), req.Delta, req.Type, req.Reference)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

type checkAvailabilityRequest struct {
	Items []service.AvailabilityRequest `json:"items" binding:"required,min=1,dive"`
}

// checkAvailability runs the advisory bulk availability check
func (h *Handler) checkAvailability(c *gin.Context) {
	var req checkAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	results, err := h.inventory.CheckAvailability(c.Request.Context(), req.Items)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// listLowStock returns products at or below their low-stock threshold
func (h *Handler) listLowStock(c *gin.Context) {
	records, err := h.inventory.ListLowStock(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// listMovements returns the audit trail for a product, newest first
func (h *Handler) listMovements(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	movements, err := h.movements.List(c.Request.Context(), c.Param("productId"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"movements": movements})
}

// reserve creates a time-bounded hold on stock
func (h *Handler) reserve(c *gin.Context) {
	var req service.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	res, err := h.reservations.Reserve(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

// getReservation returns a reservation by id
func (h *Handler) getReservation(c *gin.Context) {
	res, err := h.reservations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// confirmReservation resolves a reservation to a sale
func (h *Handler) confirmReservation(c *gin.Context) {
	res, err := h.reservations.Confirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// cancelReservation releases a hold; idempotent
func (h *Handler) cancelReservation(c *gin.Context) {
	result, err := h.reservations.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// reclaimExpired triggers an on-demand expiry sweep
func (h *Handler) reclaimExpired(c *gin.Context) {
	result, err := h.reservations.ReclaimExpired(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// writeError maps the ledger error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	retryable := false

	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInsufficientStock):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, service.ErrConflict):
		status = http.StatusConflict
		retryable = true
	case errors.Is(err, service.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrStorageUnavailable):
		status = http.StatusServiceUnavailable
		retryable = true
	}

	body := gin.H{"error": err.Error()}
	if retryable {
		body["retryable"] = true
	}
	c.JSON(status, body)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
