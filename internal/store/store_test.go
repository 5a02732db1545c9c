package store

import (
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"fulfillment-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestStore(t *testing.T) *Store {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("Integration test - set TEST_DATABASE_URL")
	}

	store, err := NewStore(dsn)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func seedOrder(t *testing.T, s *Store, status models.OrderStatus) string {
	ctx := context.Background()
	orderID := uuid.NewString()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (id, buyer_id, total_amount, payment_method, payment_status, order_status)
		 VALUES ($1, $2, 19.90, 'card', 'completed', $3)`,
		orderID, uuid.NewString(), status)
	require.NoError(t, err)
	return orderID
}

func TestUpdateOrderStatus(t *testing.T) {
	store := getTestStore(t)
	defer store.Close()

	ctx := context.Background()
	orderID := seedOrder(t, store, models.OrderStatusProcessing)

	now := time.Now().UTC().Truncate(time.Millisecond)
	updated, err := store.UpdateOrderStatus(ctx, orderID, models.OrderStatusConfirmed, now)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, updated.OrderStatus)
	assert.WithinDuration(t, now, updated.UpdatedAt, time.Millisecond)

	retrieved, err := store.GetOrderByID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, retrieved.OrderStatus)
	assert.Equal(t, models.PaymentStatusCompleted, retrieved.PaymentStatus)
	assert.Equal(t, "19.9", retrieved.TotalAmount.String())
}

func TestGetOrderByID_NotFound(t *testing.T) {
	store := getTestStore(t)
	defer store.Close()

	_, err := store.GetOrderByID(context.Background(), uuid.NewString())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGetOrderItemsByCategory(t *testing.T) {
	store := getTestStore(t)
	defer store.Close()

	ctx := context.Background()
	orderID := seedOrder(t, store, models.OrderStatusProcessing)

	for _, category := range []string{models.CategoryPDF, "BOOK", models.CategoryPDF} {
		_, err := store.db.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, product_title, category, quantity, price)
			 VALUES ($1, $2, 'Workbook', $3, 1, 4.50)`,
			uuid.NewString(), orderID, category)
		require.NoError(t, err)
	}

	digital, err := store.GetOrderItemsByCategory(ctx, orderID, models.CategoryPDF)
	require.NoError(t, err)
	assert.Len(t, digital, 2)

	all, err := store.GetOrderItemsByOrderID(ctx, orderID)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGetProductsByTitle(t *testing.T) {
	store := getTestStore(t)
	defer store.Close()

	ctx := context.Background()
	title := "Phonics Pack " + uuid.NewString()
	_, err := store.db.ExecContext(ctx,
		`INSERT INTO products (id, title, asset_ref) VALUES ($1, $2, 'https://cdn.example.com/a.pdf')`,
		uuid.NewString(), title)
	require.NoError(t, err)

	products, err := store.GetProductsByTitle(ctx, title)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "https://cdn.example.com/a.pdf", products[0].Asset())

	none, err := store.GetProductsByTitle(ctx, title+" (old)")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func dbTags(v interface{}) []string {
	t := reflect.TypeOf(v)
	tags := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("db"); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func splitColumns(list string) []string {
	cols := strings.Split(list, ",")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	return cols
}

func TestColumnListsMatchModels(t *testing.T) {
	tests := []struct {
		name    string
		columns string
		model   interface{}
	}{
		{"orders", orderColumns, models.Order{}},
		{"order_items", orderItemColumns, models.OrderItem{}},
		{"payments", paymentColumns, models.Payment{}},
		{"addresses", addressColumns, models.Address{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, dbTags(tt.model), splitColumns(tt.columns))
		})
	}
}

func TestReadsIgnoreExtraUpstreamColumns(t *testing.T) {
	store := getTestStore(t)
	defer store.Close()

	ctx := context.Background()
	for _, table := range []string{"order_items", "payments", "addresses"} {
		_, err := store.db.ExecContext(ctx,
			"ALTER TABLE "+table+" ADD COLUMN IF NOT EXISTS upstream_note TEXT NOT NULL DEFAULT ''")
		require.NoError(t, err)
	}

	orderID := seedOrder(t, store, models.OrderStatusConfirmed)
	_, err := store.db.ExecContext(ctx,
		`INSERT INTO order_items (id, order_id, product_title, category) VALUES ($1, $2, 'Workbook', $3)`,
		uuid.NewString(), orderID, models.CategoryPDF)
	require.NoError(t, err)
	_, err = store.db.ExecContext(ctx,
		`INSERT INTO payments (id, order_id, amount, status, method) VALUES ($1, $2, 19.90, 'completed', 'card')`,
		uuid.NewString(), orderID)
	require.NoError(t, err)
	addressID := uuid.NewString()
	_, err = store.db.ExecContext(ctx,
		`INSERT INTO addresses (id, user_id, full_name, line1, city) VALUES ($1, $2, 'Ana', '1 Main St', 'Lisbon')`,
		addressID, uuid.NewString())
	require.NoError(t, err)

	items, err := store.GetOrderItemsByOrderID(ctx, orderID)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	digital, err := store.GetOrderItemsByCategory(ctx, orderID, models.CategoryPDF)
	require.NoError(t, err)
	assert.Len(t, digital, 1)

	payment, err := store.GetPaymentByOrderID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)

	address, err := store.GetAddressByID(ctx, addressID)
	require.NoError(t, err)
	assert.Equal(t, "Lisbon", address.City)
}
