package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fulfillment-service/config"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/service"
	"fulfillment-service/internal/store"
	"fulfillment-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ordersRecovery is where a buyer without a usable order id is sent
const ordersRecovery = "/orders"

// OrderReader loads composed orders
type OrderReader interface {
	Aggregate(ctx context.Context, orderID string) (*models.OrderDetails, error)
	List(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
}

// StatusUpdater applies admin status changes
type StatusUpdater interface {
	ApplyTransition(ctx context.Context, orderID string, target models.OrderStatus) (*models.Order, error)
}

// DeliveryPlanner prepares buyer download plans
type DeliveryPlanner interface {
	Prepare(ctx context.Context, orderID string) (*service.DeliveryPlan, error)
}

// ReadinessCheck reports whether a dependency is usable
type ReadinessCheck func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	orders   OrderReader
	statuses StatusUpdater
	delivery DeliveryPlanner
	cfg      config.DeliveryConfig
	checks   map[string]ReadinessCheck
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(orders OrderReader, statuses StatusUpdater, delivery DeliveryPlanner, cfg config.DeliveryConfig) *Handler {
	return &Handler{
		orders:   orders,
		statuses: statuses,
		delivery: delivery,
		cfg:      cfg,
		checks:   map[string]ReadinessCheck{},
		logger:   util.ComponentLogger("http"),
	}
}

// AddReadinessCheck registers a dependency probe for /ready
func (h *Handler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checks[name] = check
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET(h.cfg.OrderSuccessPath, h.orderSuccess)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/downloads", h.getDownloads)

		admin := v1.Group("/admin")
		admin.GET("/orders", h.listOrders)
		admin.GET("/orders/:id", h.getOrder)
		admin.PATCH("/orders/:id/status", h.setOrderStatus)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck probes every registered dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// getDownloads is the buyer entry point of digital delivery
func (h *Handler) getDownloads(c *gin.Context) {
	orderID, ok := h.buyerOrderID(c)
	if !ok {
		return
	}

	plan, err := h.delivery.Prepare(c.Request.Context(), orderID)
	if err != nil {
		h.writeLookupError(c, "Failed to load order", err)
		return
	}

	if !plan.HasDigitalContent() {
		c.Redirect(http.StatusSeeOther, h.cfg.OrderSuccessPath+"?orderId="+url.QueryEscape(orderID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orderId":          plan.OrderID,
		"assets":           plan.Assets,
		"expectedCount":    plan.ExpectedCount,
		"resolvedCount":    plan.ResolvedCount,
		"countdownSeconds": h.cfg.CountdownSeconds,
		"interItemDelayMs": h.cfg.InterItemDelayMs,
	})
}

// orderSuccess is the generic order confirmation
func (h *Handler) orderSuccess(c *gin.Context) {
	orderID, ok := h.buyerOrderID(c)
	if !ok {
		return
	}

	details, err := h.orders.Aggregate(c.Request.Context(), orderID)
	if err != nil {
		h.writeLookupError(c, "Failed to load order", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Thank you for your order",
		"orderId":       details.ID,
		"orderStatus":   details.OrderStatus,
		"paymentStatus": details.PaymentStatus,
		"totalAmount":   details.TotalAmount,
		"itemCount":     len(details.Items),
	})
}

// buyerOrderID reads the orderId query parameter and writes the terminal
// input error when it is unusable.
func (h *Handler) buyerOrderID(c *gin.Context) (string, bool) {
	orderID := strings.TrimSpace(c.Query("orderId"))
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "Missing orderId",
			"recovery": ordersRecovery,
		})
		return "", false
	}
	if _, err := uuid.Parse(orderID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "Invalid orderId",
			"details":  err.Error(),
			"recovery": ordersRecovery,
		})
		return "", false
	}
	return orderID, true
}

// listOrders handles the admin order list
func (h *Handler) listOrders(c *gin.Context) {
	filter := models.OrderFilter{}

	if raw := c.Query("order_status"); raw != "" {
		status, err := service.ParseOrderStatus(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order status", "details": err.Error()})
			return
		}
		filter.OrderStatus = status
	}
	if raw := c.Query("payment_status"); raw != "" {
		filter.PaymentStatus = models.PaymentStatus(strings.ToLower(raw))
	}

	var err error
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit", "details": err.Error()})
		return
	}
	if filter.Offset, err = queryInt(c, "offset"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset", "details": err.Error()})
		return
	}

	orders, err := h.orders.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list orders",
			"details": err.Error(),
		})
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// getOrder returns the composed order record
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := adminOrderID(c)
	if !ok {
		return
	}

	details, err := h.orders.Aggregate(c.Request.Context(), orderID)
	if err != nil {
		h.writeLookupError(c, "Failed to load order", err)
		return
	}

	c.JSON(http.StatusOK, details)
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// setOrderStatus applies an admin status change
func (h *Handler) setOrderStatus(c *gin.Context) {
	orderID, ok := adminOrderID(c)
	if !ok {
		return
	}

	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	target, err := service.ParseOrderStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid order status",
			"details": err.Error(),
		})
		return
	}

	order, err := h.statuses.ApplyTransition(c.Request.Context(), orderID, target)
	if err != nil {
		var transitionErr *service.InvalidTransitionError
		switch {
		case errors.As(err, &transitionErr):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "Invalid status transition",
				"details": err.Error(),
				"from":    transitionErr.From,
				"to":      transitionErr.To,
			})
		case errors.Is(err, service.ErrInvalidStatus):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid order status",
				"details": err.Error(),
			})
		default:
			h.writeLookupError(c, "Failed to update order status", err)
		}
		return
	}

	c.JSON(http.StatusOK, order)
}

func adminOrderID(c *gin.Context) (string, bool) {
	orderID := c.Param("id")
	if _, err := uuid.Parse(orderID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid order ID",
		})
		return "", false
	}
	return orderID, true
}

// writeLookupError maps a missing order to 404, an order that cannot be
// delivered to 409 and anything else to 500
func (h *Handler) writeLookupError(c *gin.Context, msg string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Order not found",
			"details": err.Error(),
		})
		return
	}
	if errors.Is(err, service.ErrDeliveryNotAvailable) {
		c.JSON(http.StatusConflict, gin.H{
			"error":    "Downloads are not available for this order",
			"details":  err.Error(),
			"recovery": ordersRecovery,
		})
		return
	}

	h.logger.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   msg,
		"details": err.Error(),
	})
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
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
