package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/objectstore"
	"fulfillment-service/internal/store"
)

var errBoom = errors.New("boom")

// memStore is an in-memory RecordStore. failOn forces a method to error.
type memStore struct {
	mu        sync.Mutex
	orders    map[string]*models.Order
	items     map[string][]models.OrderItem
	payments  map[string]*models.Payment
	customers map[string]*models.Customer
	addresses map[string]*models.Address
	products  map[string]*models.Product
	failOn    map[string]error
	calls     map[string]int
	delay     map[string]time.Duration
}

func newMemStore() *memStore {
	return &memStore{
		orders:    map[string]*models.Order{},
		items:     map[string][]models.OrderItem{},
		payments:  map[string]*models.Payment{},
		customers: map[string]*models.Customer{},
		addresses: map[string]*models.Address{},
		products:  map[string]*models.Product{},
		failOn:    map[string]error{},
		calls:     map[string]int{},
		delay:     map[string]time.Duration{},
	}
}

func (m *memStore) enter(ctx context.Context, method string) error {
	m.mu.Lock()
	m.calls[method]++
	err := m.failOn[method]
	d := m.delay[method]
	m.mu.Unlock()

	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (m *memStore) callCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
}

func (m *memStore) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	if err := m.enter(ctx, "GetOrderByID"); err != nil {
		return nil, err
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, notFound("order", id)
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	if err := m.enter(ctx, "ListOrders"); err != nil {
		return nil, err
	}
	var out []models.Order
	for _, o := range m.orders {
		if filter.OrderStatus != "" && o.OrderStatus != filter.OrderStatus {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (m *memStore) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus, updatedAt time.Time) (*models.Order, error) {
	if err := m.enter(ctx, "UpdateOrderStatus"); err != nil {
		return nil, err
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, notFound("order", id)
	}
	o.OrderStatus = status
	o.UpdatedAt = updatedAt
	cp := *o
	return &cp, nil
}

func (m *memStore) GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	if err := m.enter(ctx, "GetOrderItemsByOrderID"); err != nil {
		return nil, err
	}
	return m.items[orderID], nil
}

func (m *memStore) GetOrderItemsByCategory(ctx context.Context, orderID, category string) ([]models.OrderItem, error) {
	if err := m.enter(ctx, "GetOrderItemsByCategory"); err != nil {
		return nil, err
	}
	var out []models.OrderItem
	for _, it := range m.items[orderID] {
		if it.Category == category {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memStore) GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	if err := m.enter(ctx, "GetPaymentByOrderID"); err != nil {
		return nil, err
	}
	p, ok := m.payments[orderID]
	if !ok {
		return nil, notFound("payment for order", orderID)
	}
	return p, nil
}

func (m *memStore) GetCustomerByID(ctx context.Context, id string) (*models.Customer, error) {
	if err := m.enter(ctx, "GetCustomerByID"); err != nil {
		return nil, err
	}
	c, ok := m.customers[id]
	if !ok {
		return nil, notFound("customer", id)
	}
	return c, nil
}

func (m *memStore) GetAddressByID(ctx context.Context, id string) (*models.Address, error) {
	if err := m.enter(ctx, "GetAddressByID"); err != nil {
		return nil, err
	}
	a, ok := m.addresses[id]
	if !ok {
		return nil, notFound("address", id)
	}
	return a, nil
}

func (m *memStore) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	if err := m.enter(ctx, "GetProductByID"); err != nil {
		return nil, err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, notFound("product", id)
	}
	return p, nil
}

func (m *memStore) GetProductsByTitle(ctx context.Context, title string) ([]models.Product, error) {
	if err := m.enter(ctx, "GetProductsByTitle"); err != nil {
		return nil, err
	}
	var out []models.Product
	for _, p := range m.products {
		if p.Title == title {
			out = append(out, *p)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	changed []*models.OrderStatusChangedEvent
	ready   []*models.DigitalDeliveryReadyEvent
	err     error
}

func (p *recordingPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	p.changed = append(p.changed, event)
	return p.err
}

func (p *recordingPublisher) PublishDigitalDeliveryReady(ctx context.Context, event *models.DigitalDeliveryReadyEvent) error {
	p.ready = append(p.ready, event)
	return p.err
}

// fakeMinter parses with the real objectstore rules and signs locally
type fakeMinter struct {
	*objectstore.Client
	err   error
	delay time.Duration
	calls int
}

func newFakeMinter() *fakeMinter {
	return &fakeMinter{Client: objectstore.NewClient("https://proj.supabase.co", "key", time.Second)}
}

func (f *fakeMinter) CreateSignedURL(ctx context.Context, ref objectstore.ObjectRef, ttl time.Duration, download bool) (string, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("%s/storage/v1/object/sign/%s?token=t&download=", ref.Origin, ref.Key()), nil
}

type memCache struct {
	links map[string]string
	ttls  map[string]time.Duration
}

func newMemCache() *memCache {
	return &memCache{links: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *memCache) GetSignedLink(ctx context.Context, key string) (string, bool, error) {
	l, ok := c.links[key]
	return l, ok, nil
}

func (c *memCache) SetSignedLink(ctx context.Context, key, link string, ttl time.Duration) error {
	c.links[key] = link
	c.ttls[key] = ttl
	return nil
}

type memDeduper struct {
	seen map[string]bool
}

func (d *memDeduper) MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	if d.seen[eventID] {
		return false, nil
	}
	d.seen[eventID] = true
	return true, nil
}

func strPtr(s string) *string { return &s }
