package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/store"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// Sub-join names used in logs and metrics
const (
	joinCustomer = "customer"
	joinAddress  = "address"
	joinItems    = "items"
	joinPayment  = "payment"
)

// OrderAggregator composes an order with its customer, address, items and
// payment. A failed sub-join degrades to a placeholder; only the base order
// read can fail the whole aggregation.
type OrderAggregator struct {
	store   RecordStore
	timeout time.Duration
	logger  *zap.Logger
}

// NewOrderAggregator creates a new order aggregator. timeout bounds every
// individual fetch.
func NewOrderAggregator(store RecordStore, timeout time.Duration) *OrderAggregator {
	return &OrderAggregator{
		store:   store,
		timeout: timeout,
		logger:  util.ComponentLogger("order-aggregator"),
	}
}

// Aggregate loads the order and joins its sub-records
func (a *OrderAggregator) Aggregate(ctx context.Context, orderID string) (*models.OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderAggregator.Aggregate")
	defer span.End()

	order, err := fetchWithTimeout(ctx, a.timeout, func(ctx context.Context) (*models.Order, error) {
		return a.store.GetOrderByID(ctx, orderID)
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to fetch order %s: %w", orderID, err)
	}

	details := &models.OrderDetails{
		Order:    *order,
		Customer: a.joinCustomer(ctx, order),
		Address:  a.joinAddress(ctx, order),
		Items:    a.joinItems(ctx, order.ID),
		Payment:  a.joinPayment(ctx, order.ID),
	}

	return details, nil
}

// List returns orders matching filter without joins
func (a *OrderAggregator) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderAggregator.List")
	defer span.End()

	orders, err := fetchWithTimeout(ctx, a.timeout, func(ctx context.Context) ([]models.Order, error) {
		return a.store.ListOrders(ctx, filter)
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (a *OrderAggregator) joinCustomer(ctx context.Context, order *models.Order) models.Customer {
	if order.BuyerID == "" {
		return models.UnknownCustomer()
	}
	customer, err := fetchWithTimeout(ctx, a.timeout, func(ctx context.Context) (*models.Customer, error) {
		return a.store.GetCustomerByID(ctx, order.BuyerID)
	})
	if err != nil {
		a.subjoinFailed(joinCustomer, order.ID, err)
		return models.UnknownCustomer()
	}
	return *customer
}

func (a *OrderAggregator) joinAddress(ctx context.Context, order *models.Order) *models.Address {
	if order.AddressID == nil || *order.AddressID == "" {
		return nil
	}
	address, err := fetchWithTimeout(ctx, a.timeout, func(ctx context.Context) (*models.Address, error) {
		return a.store.GetAddressByID(ctx, *order.AddressID)
	})
	if err != nil {
		a.subjoinFailed(joinAddress, order.ID, err)
		return nil
	}
	return address
}

func (a *OrderAggregator) joinItems(ctx context.Context, orderID string) []models.OrderItem {
	items, err := fetchWithTimeout(ctx, a.timeout, func(ctx context.Context) ([]models.OrderItem, error) {
		return a.store.GetOrderItemsByOrderID(ctx, orderID)
	})
	if err != nil {
		a.subjoinFailed(joinItems, orderID, err)
		return []models.OrderItem{}
	}
	if items == nil {
		return []models.OrderItem{}
	}
	return items
}

func (a *OrderAggregator) joinPayment(ctx context.Context, orderID string) *models.Payment {
	payment, err := fetchWithTimeout(ctx, a.timeout, func(ctx context.Context) (*models.Payment, error) {
		return a.store.GetPaymentByOrderID(ctx, orderID)
	})
	if err != nil {
		a.subjoinFailed(joinPayment, orderID, err)
		return nil
	}
	return payment
}

// subjoinFailed records a degraded sub-join. Missing rows are expected and
// only logged at debug level.
func (a *OrderAggregator) subjoinFailed(join, orderID string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		a.logger.Debug("Sub-record not found, using placeholder",
			zap.String("join", join),
			zap.String("order_id", orderID))
		return
	}

	util.AggregateSubjoinFailuresTotal.WithLabelValues(join).Inc()
	a.logger.Warn("Sub-join failed, using placeholder",
		zap.String("join", join),
		zap.String("order_id", orderID),
		zap.Error(err))
}
