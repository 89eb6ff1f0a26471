package kafka

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TopicOrderPaid      = `orders.order-paid`
	TopicOrderCancelled = `orders.order-cancelled`
)

// OrderPaidEvent is emitted once reconciliation confirms a payment.
type OrderPaidEvent struct {
	OrderID   int64           `json:"order_id"`
	UserID    int64           `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// OrderCancelledEvent is emitted when reconciliation cancels an order and
// restores its stock.
type OrderCancelledEvent struct {
	OrderID   int64     `json:"order_id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
