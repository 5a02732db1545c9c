package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededAggregateStore() *memStore {
	s := newMemStore()
	s.orders["o-1"] = &models.Order{
		ID:            "o-1",
		BuyerID:       "u-1",
		AddressID:     strPtr("a-1"),
		TotalAmount:   decimal.RequireFromString("25.50"),
		PaymentStatus: models.PaymentStatusCompleted,
		OrderStatus:   models.OrderStatusProcessing,
	}
	s.customers["u-1"] = &models.Customer{ID: "u-1", Email: "buyer@example.com"}
	s.addresses["a-1"] = &models.Address{ID: "a-1", City: "Lisbon"}
	s.items["o-1"] = []models.OrderItem{{ID: "i-1", OrderID: "o-1", ProductTitle: "Guide", Category: models.CategoryPDF}}
	s.payments["o-1"] = &models.Payment{ID: "p-1", OrderID: "o-1", Status: models.PaymentStatusCompleted}
	return s
}

func TestAggregateJoinsAllSubRecords(t *testing.T) {
	s := seededAggregateStore()
	agg := NewOrderAggregator(s, time.Second)

	details, err := agg.Aggregate(context.Background(), "o-1")
	require.NoError(t, err)

	assert.Equal(t, "o-1", details.ID)
	assert.Equal(t, "buyer@example.com", details.Customer.Email)
	require.NotNil(t, details.Address)
	assert.Equal(t, "Lisbon", details.Address.City)
	assert.Len(t, details.Items, 1)
	require.NotNil(t, details.Payment)
	assert.Equal(t, "p-1", details.Payment.ID)
}

func TestAggregateSubstitutesPlaceholders(t *testing.T) {
	s := seededAggregateStore()
	s.failOn["GetCustomerByID"] = errBoom
	s.failOn["GetAddressByID"] = errBoom
	s.failOn["GetOrderItemsByOrderID"] = errBoom
	s.failOn["GetPaymentByOrderID"] = errBoom
	agg := NewOrderAggregator(s, time.Second)

	details, err := agg.Aggregate(context.Background(), "o-1")
	require.NoError(t, err)

	assert.Equal(t, "Unknown", details.Customer.Email)
	assert.Nil(t, details.Address)
	assert.NotNil(t, details.Items)
	assert.Empty(t, details.Items)
	assert.Nil(t, details.Payment)
}

func TestAggregateOneFailureLeavesOthersIntact(t *testing.T) {
	s := seededAggregateStore()
	s.failOn["GetAddressByID"] = errBoom
	agg := NewOrderAggregator(s, time.Second)

	details, err := agg.Aggregate(context.Background(), "o-1")
	require.NoError(t, err)

	assert.Nil(t, details.Address)
	assert.Equal(t, "buyer@example.com", details.Customer.Email)
	assert.Len(t, details.Items, 1)
	assert.NotNil(t, details.Payment)
}

func TestAggregateMissingSubRecords(t *testing.T) {
	s := newMemStore()
	s.orders["o-2"] = &models.Order{ID: "o-2", BuyerID: "ghost", OrderStatus: models.OrderStatusProcessing}
	agg := NewOrderAggregator(s, time.Second)

	details, err := agg.Aggregate(context.Background(), "o-2")
	require.NoError(t, err)

	assert.Equal(t, "Unknown", details.Customer.Email)
	assert.Nil(t, details.Address)
	assert.Empty(t, details.Items)
	assert.Nil(t, details.Payment)
	assert.Equal(t, 0, s.callCount("GetAddressByID"))
}

func TestAggregateSubJoinTimeout(t *testing.T) {
	s := seededAggregateStore()
	s.delay["GetCustomerByID"] = 200 * time.Millisecond
	agg := NewOrderAggregator(s, 20*time.Millisecond)

	details, err := agg.Aggregate(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Equal(t, "Unknown", details.Customer.Email)
	assert.NotNil(t, details.Payment)
}

func TestAggregateBaseOrderFailure(t *testing.T) {
	s := newMemStore()
	agg := NewOrderAggregator(s, time.Second)

	_, err := agg.Aggregate(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	s.failOn["GetOrderByID"] = errBoom
	_, err = agg.Aggregate(context.Background(), "missing")
	assert.ErrorIs(t, err, errBoom)
}

func TestListOrdersFiltersByStatus(t *testing.T) {
	s := seededAggregateStore()
	s.orders["o-3"] = &models.Order{ID: "o-3", OrderStatus: models.OrderStatusShipped}
	agg := NewOrderAggregator(s, time.Second)

	orders, err := agg.List(context.Background(), models.OrderFilter{OrderStatus: models.OrderStatusShipped})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "o-3", orders[0].ID)
}
