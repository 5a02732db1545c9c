package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrInvalidStatus is returned for a target outside the status set
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrInvalidTransition is matched by every *InvalidTransitionError
	ErrInvalidTransition = errors.New("invalid status transition")
)

// InvalidTransitionError describes a rejected status change
type InvalidTransitionError struct {
	From models.OrderStatus
	To   models.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

// Is lets errors.Is match ErrInvalidTransition
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// statusRank orders the forward lifecycle. cancelled sits outside it.
var statusRank = map[models.OrderStatus]int{
	models.OrderStatusProcessing: 0,
	models.OrderStatusConfirmed:  1,
	models.OrderStatusShipped:    2,
	models.OrderStatusDelivered:  3,
}

// ParseOrderStatus validates a raw status value
func ParseOrderStatus(raw string) (models.OrderStatus, error) {
	status := models.OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !IsValidStatus(status) {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return status, nil
}

// IsValidStatus reports whether s is one of the five order statuses
func IsValidStatus(s models.OrderStatus) bool {
	if s == models.OrderStatusCancelled {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// IsTerminal reports whether no transition may leave s
func IsTerminal(s models.OrderStatus) bool {
	return s == models.OrderStatusDelivered || s == models.OrderStatusCancelled
}

// CanTransition reports whether from -> to is a legal change. Forward moves
// may skip steps; cancelled is reachable from any non-terminal status.
func CanTransition(from, to models.OrderStatus) bool {
	if IsTerminal(from) || !IsValidStatus(to) {
		return false
	}
	if to == models.OrderStatusCancelled {
		return true
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	return statusRank[to] > fromRank
}

// OrderStatusMachine applies validated status transitions
type OrderStatusMachine struct {
	store     RecordStore
	publisher EventPublisher
	timeout   time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewOrderStatusMachine creates a status machine. publisher may be nil.
func NewOrderStatusMachine(store RecordStore, publisher EventPublisher, timeout time.Duration) *OrderStatusMachine {
	return &OrderStatusMachine{
		store:     store,
		publisher: publisher,
		timeout:   timeout,
		now:       time.Now,
		logger:    util.ComponentLogger("order-status-machine"),
	}
}

// ApplyTransition moves the order to target and stamps updatedAt. Re-applying
// the current status is a no-op that leaves updatedAt untouched.
func (m *OrderStatusMachine) ApplyTransition(ctx context.Context, orderID string, target models.OrderStatus) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderStatusMachine.ApplyTransition")
	defer span.End()

	if !IsValidStatus(target) {
		util.OrderStatusRejectedTotal.WithLabelValues("invalid_status").Inc()
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}

	order, err := fetchWithTimeout(ctx, m.timeout, func(ctx context.Context) (*models.Order, error) {
		return m.store.GetOrderByID(ctx, orderID)
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to fetch order %s: %w", orderID, err)
	}

	if order.OrderStatus == target {
		m.logger.Debug("Status unchanged, skipping update",
			zap.String("order_id", orderID),
			zap.String("status", string(target)))
		return order, nil
	}

	if !CanTransition(order.OrderStatus, target) {
		util.OrderStatusRejectedTotal.WithLabelValues("invalid_transition").Inc()
		m.logger.Info("Rejected status transition",
			zap.String("order_id", orderID),
			zap.String("from", string(order.OrderStatus)),
			zap.String("to", string(target)))
		return nil, &InvalidTransitionError{From: order.OrderStatus, To: target}
	}

	previous := order.OrderStatus
	updated, err := fetchWithTimeout(ctx, m.timeout, func(ctx context.Context) (*models.Order, error) {
		return m.store.UpdateOrderStatus(ctx, orderID, target, m.now().UTC())
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	util.OrderStatusTransitionsTotal.WithLabelValues(string(previous), string(target)).Inc()
	m.logger.Info("Order status updated",
		zap.String("order_id", orderID),
		zap.String("from", string(previous)),
		zap.String("to", string(target)))

	m.publishTransition(ctx, previous, updated)

	return updated, nil
}

// publishTransition emits the status change and, for fully digital paid
// orders, the delivery-ready event. Failures are logged only.
func (m *OrderStatusMachine) publishTransition(ctx context.Context, previous models.OrderStatus, order *models.Order) {
	if m.publisher == nil {
		return
	}

	now := m.now().UTC()
	changed := &models.OrderStatusChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderStatusChanged,
			Timestamp: now,
		},
		OrderID:        order.ID,
		PreviousStatus: previous,
		CurrentStatus:  order.OrderStatus,
		PaymentStatus:  order.PaymentStatus,
	}
	if err := m.publisher.PublishOrderStatusChanged(ctx, changed); err != nil {
		m.logger.Warn("Failed to publish status change", zap.String("order_id", order.ID), zap.Error(err))
	}

	// delivery is announced once, when the order first leaves processing
	if previous != models.OrderStatusProcessing ||
		order.OrderStatus == models.OrderStatusCancelled ||
		order.PaymentStatus != models.PaymentStatusCompleted {
		return
	}

	items, err := fetchWithTimeout(ctx, m.timeout, func(ctx context.Context) ([]models.OrderItem, error) {
		return m.store.GetOrderItemsByOrderID(ctx, order.ID)
	})
	if err != nil {
		m.logger.Warn("Failed to load items for delivery check", zap.String("order_id", order.ID), zap.Error(err))
		return
	}
	if len(items) == 0 {
		return
	}
	for _, item := range items {
		if !item.IsDigital() {
			return
		}
	}

	ready := &models.DigitalDeliveryReadyEvent{
		BaseEvent: models.BaseEvent{
			EventID:   deliveryReadyEventID(order.ID),
			EventType: models.EventTypeDigitalDeliveryReady,
			Timestamp: now,
		},
		OrderID:      order.ID,
		BuyerID:      order.BuyerID,
		DigitalItems: len(items),
	}
	if err := m.publisher.PublishDigitalDeliveryReady(ctx, ready); err != nil {
		m.logger.Warn("Failed to publish delivery ready", zap.String("order_id", order.ID), zap.Error(err))
	}
}

// deliveryReadyEventID is stable per order so consumers dedupe replays
func deliveryReadyEventID(orderID string) string {
	return "digital-delivery-ready:" + orderID
}
