package worker

import (
	"context"

	"fulfillment-service/internal/broker"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// DeliveryHandler reacts to delivery-ready events
type DeliveryHandler interface {
	HandleDigitalDeliveryReady(ctx context.Context, event *models.DigitalDeliveryReadyEvent) error
}

// DeliveryWorker consumes order events and prepares digital delivery ahead
// of the buyer's download request.
type DeliveryWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewDeliveryWorker creates a new delivery worker
func NewDeliveryWorker(consumer *broker.Consumer, handler DeliveryHandler) *DeliveryWorker {
	logger := util.ComponentLogger("delivery-worker")

	eventHandler := broker.NewEventHandler()
	eventHandler.OnDigitalDeliveryReady(handler.HandleDigitalDeliveryReady)
	eventHandler.OnOrderStatusChanged(func(ctx context.Context, e *models.OrderStatusChangedEvent) error {
		logger.Debug("Order status changed",
			zap.String("order_id", e.OrderID),
			zap.String("from", string(e.PreviousStatus)),
			zap.String("to", string(e.CurrentStatus)))
		return nil
	})

	return &DeliveryWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       logger,
	}
}

// Start consumes until ctx is cancelled
func (w *DeliveryWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting delivery worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *DeliveryWorker) Stop() error {
	w.logger.Info("Stopping delivery worker")
	return w.consumer.Close()
}
