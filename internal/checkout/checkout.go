// Package checkout turns a user's cart into a settled order. The whole
// sequence, including the gateway call, runs inside one database transaction:
// if anything fails nothing is persisted.
package checkout

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"shop-api/internal/apperr"
	"shop-api/internal/carts"
	"shop-api/internal/gateway"
	"shop-api/internal/orders"
	"shop-api/internal/products"
	"shop-api/internal/users"
)

// UserStore resolves the buyer's profile for gateway customer metadata.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (users.User, error)
}

// CartStore reads and consumes the buyer's cart.
type CartStore interface {
	ItemsByUser(ctx context.Context, userID int64) ([]carts.Item, error)
	Clear(ctx context.Context, userID int64) error
}

// ProductStore locks and mutates catalog stock.
type ProductStore interface {
	GetForUpdate(ctx context.Context, id int64) (products.Product, error)
	DecrementStock(ctx context.Context, id int64, qty int) (int, error)
	SetStatus(ctx context.Context, id int64, status string) error
}

// OrderLedger creates the order, its lines, and the payment record.
type OrderLedger interface {
	CreateOrder(ctx context.Context, userID int64, total decimal.Decimal, status string) (orders.Order, error)
	CreateLine(ctx context.Context, orderID, productID int64, quantity int, price decimal.Decimal) error
	CreatePayment(ctx context.Context, orderID int64, method, status, token string, amount decimal.Decimal) (orders.Payment, error)
}

// TokenCreator is the payment gateway.
type TokenCreator interface {
	CreateTransaction(ctx context.Context, req gateway.ChargeRequest) (gateway.Charge, error)
}

// TxManager provides the atomic unit the workflow runs in.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service orchestrates the checkout workflow.
type Service struct {
	users    UserStore
	carts    CartStore
	products ProductStore
	ledger   OrderLedger
	gateway  TokenCreator
	tx       TxManager

	// now is swappable in tests; it feeds the merchant reference suffix.
	now func() time.Time
}

func NewService(u UserStore, c CartStore, p ProductStore, l OrderLedger, g TokenCreator, tx TxManager) *Service {
	return &Service{
		users:    u,
		carts:    c,
		products: p,
		ledger:   l,
		gateway:  g,
		tx:       tx,
		now:      time.Now,
	}
}

// Result is the order summary returned to the buyer.
type Result struct {
	Order       orders.Order
	Payment     orders.Payment
	Token       string
	RedirectURL string
}

// MerchantRef derives the gateway order reference: the internal order id plus
// a millisecond suffix so a reference is never reused.
func MerchantRef(orderID int64, at time.Time) string {
	return fmt.Sprintf("ORDER-%d-%d", orderID, at.UnixMilli())
}

// Checkout converts the user's entire cart into an order with a gateway
// payment token, or fails with no persisted side effects.
func (s *Service) Checkout(ctx context.Context, userID int64) (Result, error) {
	var res Result
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}

		items, err := s.carts.ItemsByUser(ctx, userID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return apperr.New(apperr.KindInvalidState, "cart empty")
		}

		// Lock every product row up front, validate stock, and price the
		// order from what is in the database right now.
		total := decimal.Zero
		locked := make([]products.Product, 0, len(items))
		chargeItems := make([]gateway.ChargeItem, 0, len(items))
		for _, item := range items {
			p, err := s.products.GetForUpdate(ctx, item.ProductID)
			if err != nil {
				return err
			}
			if item.Quantity > p.Stock {
				return &apperr.InsufficientStockError{
					ProductID: p.ID,
					Name:      p.Name,
					Requested: item.Quantity,
					Available: p.Stock,
				}
			}
			locked = append(locked, p)
			total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
			chargeItems = append(chargeItems, gateway.ChargeItem{
				ID:       strconv.FormatInt(p.ID, 10),
				Name:     p.Name,
				Price:    p.Price.IntPart(),
				Quantity: int32(item.Quantity),
			})
		}

		order, err := s.ledger.CreateOrder(ctx, userID, total, orders.StatusProcessing)
		if err != nil {
			return err
		}

		for i, item := range items {
			p := locked[i]
			if err := s.ledger.CreateLine(ctx, order.ID, p.ID, item.Quantity, p.Price); err != nil {
				return err
			}
			remaining, err := s.products.DecrementStock(ctx, p.ID, item.Quantity)
			if err != nil {
				return err
			}
			if remaining == 0 {
				if err := s.products.SetStatus(ctx, p.ID, products.StatusSoldOut); err != nil {
					return err
				}
			}
		}

		charge, err := s.gateway.CreateTransaction(ctx, gateway.ChargeRequest{
			OrderRef:      MerchantRef(order.ID, s.now()),
			GrossAmount:   total.IntPart(),
			Items:         chargeItems,
			CustomerName:  user.Username,
			CustomerEmail: user.Email,
		})
		if err != nil {
			return err
		}

		payment, err := s.ledger.CreatePayment(ctx, order.ID, gateway.Name,
			orders.PaymentSuccess, charge.Token, total)
		if err != nil {
			return err
		}

		if err := s.carts.Clear(ctx, userID); err != nil {
			return err
		}

		res = Result{
			Order:       order,
			Payment:     payment,
			Token:       charge.Token,
			RedirectURL: charge.RedirectURL,
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}
