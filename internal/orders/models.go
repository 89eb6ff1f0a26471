package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order lifecycle statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

// Payment statuses as reported by the gateway mapping.
const (
	PaymentPending   = "pending"
	PaymentSuccess   = "success"
	PaymentFailure   = "failure"
	PaymentChallenge = "challenge"
)

// ValidStatus reports whether s is a known order status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Order is an order row. Total is a snapshot taken at creation and never
// recomputed.
type Order struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Total     decimal.Decimal `json:"total"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Line is one order line with the price snapshotted at order time.
type Line struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// Subtotal is quantity times the snapshotted price.
func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Payment is the one-to-one payment record of an order.
type Payment struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	Method    string          `json:"payment_method"`
	Status    string          `json:"payment_status"`
	Token     string          `json:"payment_token"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Transaction is an order with its lines and payment, the shape the history
// endpoints return.
type Transaction struct {
	Order
	Lines   []Line   `json:"order_details"`
	Payment *Payment `json:"payment,omitempty"`
}
