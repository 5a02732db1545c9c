package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfillment lifecycle of an order
type OrderStatus string

// Order statuses
const (
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus is independent of OrderStatus; a cancelled order may still be paid.
type PaymentStatus string

// Payment statuses
const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// CategoryPDF marks a digital line item
const CategoryPDF = "PDF"

// Order represents a customer order
type Order struct {
	ID            string          `db:"id" json:"id"`
	BuyerID       string          `db:"buyer_id" json:"buyer_id"`
	AddressID     *string         `db:"address_id" json:"address_id,omitempty"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"total_amount"`
	PaymentMethod string          `db:"payment_method" json:"payment_method"`
	PaymentStatus PaymentStatus   `db:"payment_status" json:"payment_status"`
	OrderStatus   OrderStatus     `db:"order_status" json:"order_status"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem is a purchase-time snapshot of a product. Title, image and price are
// copied at checkout so catalog edits never change historical orders.
type OrderItem struct {
	ID              string          `db:"id" json:"id"`
	OrderID         string          `db:"order_id" json:"order_id"`
	ProductRef      *string         `db:"product_ref" json:"product_ref,omitempty"`
	ProductTitle    string          `db:"product_title" json:"product_title"`
	ProductImageRef string          `db:"product_image_ref" json:"product_image_ref"`
	Category        string          `db:"category" json:"category"`
	Quantity        int             `db:"quantity" json:"quantity"`
	Price           decimal.Decimal `db:"price" json:"price"`
}

// IsDigital reports whether the item entitles the buyer to a downloadable asset
func (i OrderItem) IsDigital() bool {
	return i.Category == CategoryPDF
}

// Product represents a catalog entry. AssetRef is set for digital products only.
type Product struct {
	ID       string  `db:"id" json:"id"`
	Title    string  `db:"title" json:"title"`
	AssetRef *string `db:"asset_ref" json:"asset_ref,omitempty"`
}

// Asset returns the asset reference or an empty string
func (p Product) Asset() string {
	if p.AssetRef == nil {
		return ""
	}
	return *p.AssetRef
}

// Address represents a shipping address
type Address struct {
	ID         string `db:"id" json:"id"`
	UserID     string `db:"user_id" json:"user_id"`
	FullName   string `db:"full_name" json:"full_name"`
	Line1      string `db:"line1" json:"line1"`
	Line2      string `db:"line2" json:"line2,omitempty"`
	City       string `db:"city" json:"city"`
	State      string `db:"state" json:"state"`
	PostalCode string `db:"postal_code" json:"postal_code"`
	Country    string `db:"country" json:"country"`
	Phone      string `db:"phone" json:"phone,omitempty"`
}

// Payment represents a payment record for an order
type Payment struct {
	ID             string          `db:"id" json:"id"`
	OrderID        string          `db:"order_id" json:"order_id"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Status         PaymentStatus   `db:"status" json:"status"`
	Method         string          `db:"method" json:"method"`
	TransactionRef string          `db:"transaction_ref" json:"transaction_ref,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// Customer is the buyer profile joined into order views
type Customer struct {
	ID       string `db:"id" json:"id,omitempty"`
	Email    string `db:"email" json:"email"`
	FullName string `db:"full_name" json:"full_name,omitempty"`
	Phone    string `db:"phone" json:"phone,omitempty"`
}

// UnknownCustomer is substituted when the customer join fails
func UnknownCustomer() Customer {
	return Customer{Email: "Unknown"}
}

// OrderDetails is an order composed with its joined sub-records. It is the
// input contract for CSV export and invoice rendering.
type OrderDetails struct {
	Order
	Customer Customer    `json:"customer"`
	Address  *Address    `json:"address"`
	Items    []OrderItem `json:"items"`
	Payment  *Payment    `json:"payment"`
}

// OrderFilter narrows the admin order list
type OrderFilter struct {
	OrderStatus   OrderStatus
	PaymentStatus PaymentStatus
	Limit         int
	Offset        int
}
