package service

import (
	"context"
	"fmt"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

const processedEventTTL = 24 * time.Hour

// DeliveryWarmer reacts to delivery-ready events by preparing the order's
// links ahead of the buyer's visit, which fills the signed-link cache.
type DeliveryWarmer struct {
	delivery *DeliveryService
	dedupe   EventDeduper
	logger   *zap.Logger
}

// NewDeliveryWarmer creates a new warmer. dedupe may be nil.
func NewDeliveryWarmer(delivery *DeliveryService, dedupe EventDeduper) *DeliveryWarmer {
	return &DeliveryWarmer{
		delivery: delivery,
		dedupe:   dedupe,
		logger:   util.ComponentLogger("delivery-warmer"),
	}
}

// HandleDigitalDeliveryReady handles one DIGITAL_DELIVERY_READY event
func (w *DeliveryWarmer) HandleDigitalDeliveryReady(ctx context.Context, event *models.DigitalDeliveryReadyEvent) error {
	ctx, span := util.StartSpan(ctx, "DeliveryWarmer.HandleDigitalDeliveryReady")
	defer span.End()

	if w.dedupe != nil && event.EventID != "" {
		first, err := w.dedupe.MarkEventProcessed(ctx, event.EventID, processedEventTTL)
		if err != nil {
			w.logger.Warn("Dedupe check failed, processing anyway",
				zap.String("event_id", event.EventID),
				zap.Error(err))
		} else if !first {
			util.DeliveryEventsTotal.WithLabelValues("duplicate").Inc()
			w.logger.Debug("Skipping duplicate event", zap.String("event_id", event.EventID))
			return nil
		}
	}

	plan, err := w.delivery.Prepare(ctx, event.OrderID)
	if err != nil {
		util.RecordError(span, err)
		util.DeliveryEventsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to prepare delivery for order %s: %w", event.OrderID, err)
	}

	if plan.ResolvedCount < event.DigitalItems {
		w.logger.Warn("Order has unresolved digital items",
			zap.String("order_id", event.OrderID),
			zap.Int("purchased", event.DigitalItems),
			zap.Int("resolved", plan.ResolvedCount))
	}

	util.DeliveryEventsTotal.WithLabelValues("warmed").Inc()
	w.logger.Info("Delivery links warmed",
		zap.String("order_id", event.OrderID),
		zap.Int("links", len(plan.Assets)))
	return nil
}
