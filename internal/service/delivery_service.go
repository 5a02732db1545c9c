package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// ErrDeliveryNotAvailable is returned for digital orders that are cancelled or
// not fully paid
var ErrDeliveryNotAvailable = errors.New("digital delivery not available")

// DeliveryAsset is one downloadable item handed to the buyer
type DeliveryAsset struct {
	ItemID string `json:"itemId"`
	Title  string `json:"title"`
	URL    string `json:"url"`
}

// DeliveryPlan lists the links for an order's digital items
type DeliveryPlan struct {
	OrderID       string          `json:"orderId"`
	Assets        []DeliveryAsset `json:"assets"`
	ExpectedCount int             `json:"expectedCount"`
	ResolvedCount int             `json:"resolvedCount"`
}

// HasDigitalContent reports whether the order bought any digital item
func (p *DeliveryPlan) HasDigitalContent() bool {
	return p.ExpectedCount > 0
}

// DeliveryService prepares digital delivery for an order
type DeliveryService struct {
	store    RecordStore
	resolver *DigitalAssetResolver
	issuer   *SecureLinkIssuer
	timeout  time.Duration
	logger   *zap.Logger
}

// NewDeliveryService creates a new delivery service
func NewDeliveryService(store RecordStore, resolver *DigitalAssetResolver, issuer *SecureLinkIssuer, timeout time.Duration) *DeliveryService {
	return &DeliveryService{
		store:    store,
		resolver: resolver,
		issuer:   issuer,
		timeout:  timeout,
		logger:   util.ComponentLogger("delivery-service"),
	}
}

// Prepare resolves the order's digital items and issues a link for each. An
// unreadable order is an error, distinct from an order with no digital items.
// Links are only issued once payment has completed and the order is not
// cancelled.
func (s *DeliveryService) Prepare(ctx context.Context, orderID string) (*DeliveryPlan, error) {
	ctx, span := util.StartSpan(ctx, "DeliveryService.Prepare")
	defer span.End()

	order, err := fetchWithTimeout(ctx, s.timeout, func(ctx context.Context) (*models.Order, error) {
		return s.store.GetOrderByID(ctx, orderID)
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to fetch order %s: %w", orderID, err)
	}

	result, err := s.resolver.Resolve(ctx, orderID)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	// orders without digital items still go to the confirmation page
	if result.DigitalItems > 0 && !deliverable(order) {
		s.logger.Warn("Digital delivery refused",
			zap.String("order_id", orderID),
			zap.String("order_status", string(order.OrderStatus)),
			zap.String("payment_status", string(order.PaymentStatus)))
		return nil, fmt.Errorf("%w: order %s is %s with payment %s",
			ErrDeliveryNotAvailable, orderID, order.OrderStatus, order.PaymentStatus)
	}

	plan := &DeliveryPlan{
		OrderID:       orderID,
		Assets:        make([]DeliveryAsset, 0, len(result.Assets)),
		ExpectedCount: result.DigitalItems,
		ResolvedCount: len(result.Assets),
	}
	for _, asset := range result.Assets {
		plan.Assets = append(plan.Assets, DeliveryAsset{
			ItemID: asset.ItemID,
			Title:  asset.Title,
			URL:    s.issuer.Issue(ctx, asset.AssetURL),
		})
	}

	s.logger.Debug("Delivery plan prepared",
		zap.String("order_id", orderID),
		zap.Int("expected", plan.ExpectedCount),
		zap.Int("resolved", plan.ResolvedCount))

	return plan, nil
}

func deliverable(order *models.Order) bool {
	return order.PaymentStatus == models.PaymentStatusCompleted &&
		order.OrderStatus != models.OrderStatusCancelled
}
