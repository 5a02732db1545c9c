package models

import "time"

// Event types
const (
	EventTypeOrderStatusChanged   = "ORDER_STATUS_CHANGED"
	EventTypeDigitalDeliveryReady = "DIGITAL_DELIVERY_READY"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderStatusChangedEvent is published after every applied status transition.
// Invoice generation consumes it.
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID        string        `json:"order_id"`
	PreviousStatus OrderStatus   `json:"previous_status"`
	CurrentStatus  OrderStatus   `json:"current_status"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
}

// DigitalDeliveryReadyEvent is published when an all-digital, paid order
// transitions and its downloads become reachable to the buyer
type DigitalDeliveryReadyEvent struct {
	BaseEvent
	OrderID      string `json:"order_id"`
	BuyerID      string `json:"buyer_id"`
	DigitalItems int    `json:"digital_items"`
}
