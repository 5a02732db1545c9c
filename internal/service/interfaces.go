package service

import (
	"context"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/objectstore"
)

// RecordStore is the read/update surface of the relational store
type RecordStore interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus, updatedAt time.Time) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error)
	GetOrderItemsByCategory(ctx context.Context, orderID, category string) ([]models.OrderItem, error)
	GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	GetCustomerByID(ctx context.Context, id string) (*models.Customer, error)
	GetAddressByID(ctx context.Context, id string) (*models.Address, error)
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	GetProductsByTitle(ctx context.Context, title string) ([]models.Product, error)
}

// EventPublisher emits order domain events
type EventPublisher interface {
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishDigitalDeliveryReady(ctx context.Context, event *models.DigitalDeliveryReadyEvent) error
}

// SignedURLMinter is the object storage surface used to issue secure links
type SignedURLMinter interface {
	ParseObjectURL(raw string) (objectstore.ObjectRef, bool)
	CreateSignedURL(ctx context.Context, ref objectstore.ObjectRef, ttl time.Duration, download bool) (string, error)
}

// LinkCache stores signed links for reuse until shortly before they expire
type LinkCache interface {
	GetSignedLink(ctx context.Context, objectKey string) (string, bool, error)
	SetSignedLink(ctx context.Context, objectKey, link string, ttl time.Duration) error
}

// EventDeduper remembers handled event ids
type EventDeduper interface {
	MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
}

// fetchWithTimeout runs fetch under its own deadline. A non-positive timeout
// leaves ctx unbounded.
func fetchWithTimeout[T any](ctx context.Context, timeout time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fetch(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fetch(ctx)
}
