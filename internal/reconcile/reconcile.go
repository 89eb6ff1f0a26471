// Package reconcile converges local payment and order state with the
// asynchronous notifications the gateway sends. It never creates records,
// only updates them, and every outcome must be acknowledged to the gateway.
package reconcile

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"shop-api/internal/apperr"
	"shop-api/internal/orders"
	"shop-api/internal/products"
)

// Gateway transaction statuses that drive the mapping table.
const (
	txCapture    = "capture"
	txSettlement = "settlement"
	txDeny       = "deny"
	txCancel     = "cancel"
	txExpire     = "expire"
	txPending    = "pending"

	fraudChallenge = "challenge"
	fraudAccept    = "accept"

	refPrefix  = "ORDER-"
	testMarker = "payment_notif_test"
)

// ErrOrderNotIdentified means no resolution rule matched the notification.
var ErrOrderNotIdentified = errors.New("could not determine order from notification")

// Notification is the webhook payload from the gateway.
type Notification struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
}

// OrderLedger is the slice of the order ledger reconciliation needs.
type OrderLedger interface {
	GetByID(ctx context.Context, id int64) (orders.Order, error)
	LatestByStatus(ctx context.Context, status string) (orders.Order, error)
	LinesByOrder(ctx context.Context, orderID int64) ([]orders.Line, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	PaymentByOrder(ctx context.Context, orderID int64) (orders.Payment, error)
	PaymentByToken(ctx context.Context, token string) (orders.Payment, error)
	UpdatePaymentStatus(ctx context.Context, orderID int64, status string) error
}

// ProductStore restores stock on failed payments.
type ProductStore interface {
	IncrementStock(ctx context.Context, id int64, qty int) (int, error)
	SetStatus(ctx context.Context, id int64, status string) error
}

// TxManager makes the status update and the compensating stock restore one
// atomic unit.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service applies gateway notifications to local state.
type Service struct {
	ledger   OrderLedger
	products ProductStore
	tx       TxManager
}

func NewService(l OrderLedger, p ProductStore, tx TxManager) *Service {
	return &Service{ledger: l, products: p, tx: tx}
}

// Outcome describes what a notification did, for logging and event emission.
type Outcome struct {
	OrderID       int64
	UserID        int64
	OrderStatus   string
	PaymentStatus string
	StockRestored bool
}

// MapStatus translates gateway transaction status and fraud flag into the
// local payment status. Unknown combinations fall back to pending.
func MapStatus(transactionStatus, fraudStatus string) string {
	switch transactionStatus {
	case txCapture, txSettlement:
		if fraudStatus == fraudChallenge {
			return orders.PaymentChallenge
		}
		if fraudStatus == fraudAccept || fraudStatus == "" {
			return orders.PaymentSuccess
		}
		return orders.PaymentPending
	case txDeny, txCancel, txExpire:
		return orders.PaymentFailure
	case txPending:
		return orders.PaymentPending
	default:
		return orders.PaymentPending
	}
}

// ParseMerchantRef extracts the order id from a reference shaped like
// ORDER-<id>-<suffix>.
func ParseMerchantRef(ref string) (int64, bool) {
	if !strings.HasPrefix(ref, refPrefix) {
		return 0, false
	}
	parts := strings.Split(ref, "-")
	if len(parts) < 2 {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// resolveOrder applies the priority-ordered identification rules. The
// fallbacks are inherently ambiguous when several pending orders exist; the
// most recently created one wins, which matches the gateway's own test
// notification behavior.
func (s *Service) resolveOrder(ctx context.Context, ref string) (int64, error) {
	if id, ok := ParseMerchantRef(ref); ok {
		return id, nil
	}

	if strings.Contains(ref, testMarker) {
		if o, err := s.ledger.LatestByStatus(ctx, orders.StatusPending); err == nil {
			return o.ID, nil
		}
	}

	if p, err := s.ledger.PaymentByToken(ctx, ref); err == nil {
		return p.OrderID, nil
	}

	if o, err := s.ledger.LatestByStatus(ctx, orders.StatusPending); err == nil {
		return o.ID, nil
	}

	return 0, ErrOrderNotIdentified
}

// Process applies one notification. Safe to call repeatedly with the same
// notification: the compensating stock restore only fires when the payment
// transitions into failure, not on replays.
func (s *Service) Process(ctx context.Context, n Notification) (Outcome, error) {
	orderID, err := s.resolveOrder(ctx, n.OrderID)
	if err != nil {
		return Outcome{}, err
	}

	status := MapStatus(n.TransactionStatus, n.FraudStatus)
	out := Outcome{OrderID: orderID, PaymentStatus: status}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		payment, err := s.ledger.PaymentByOrder(ctx, orderID)
		if err != nil {
			return err
		}

		order, err := s.ledger.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		out.UserID = order.UserID
		out.OrderStatus = order.Status

		if err := s.ledger.UpdatePaymentStatus(ctx, orderID, status); err != nil {
			return err
		}

		switch status {
		case orders.PaymentSuccess:
			if err := s.ledger.UpdateStatus(ctx, orderID, orders.StatusProcessing); err != nil {
				return err
			}
			out.OrderStatus = orders.StatusProcessing
		case orders.PaymentFailure:
			if err := s.ledger.UpdateStatus(ctx, orderID, orders.StatusCancelled); err != nil {
				return err
			}
			out.OrderStatus = orders.StatusCancelled
			if payment.Status != orders.PaymentFailure {
				if err := s.restoreStock(ctx, orderID); err != nil {
					return err
				}
				out.StockRestored = true
			}
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// restoreStock credits back every line quantity of the order and re-derives
// the availability status from the restored stock.
func (s *Service) restoreStock(ctx context.Context, orderID int64) error {
	lines, err := s.ledger.LinesByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	for _, line := range lines {
		remaining, err := s.products.IncrementStock(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return err
		}
		if remaining > 0 {
			if err := s.products.SetStatus(ctx, line.ProductID, products.StatusAvailable); err != nil {
				return err
			}
		}
	}
	return nil
}

// IsNoOp reports whether err is the benign "nothing to reconcile" case that
// must still be acknowledged with a 200.
func IsNoOp(err error) bool {
	return errors.Is(err, ErrOrderNotIdentified) || apperr.IsKind(err, apperr.KindNotFound)
}
