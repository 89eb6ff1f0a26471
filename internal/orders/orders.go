// Package orders is the order ledger: orders, their line items, and payment
// records. The checkout and reconciliation flows are the only writers.
package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"shop-api/internal/apperr"
	"shop-api/internal/stores/postgres"
)

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

func (c *Conf) q(ctx context.Context) postgres.Querier {
	return postgres.QuerierFrom(ctx, c.db)
}

// CreateOrder inserts an order and returns it with id and timestamps filled.
func (c *Conf) CreateOrder(ctx context.Context, userID int64, total decimal.Decimal, status string) (Order, error) {
	query := `
		INSERT INTO orders (user_id, total, status, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	o := Order{UserID: userID, Total: total, Status: status}
	err := c.q(ctx).QueryRowContext(ctx, query, userID, total, status).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, fmt.Errorf("failed to create order: %w", err)
	}
	return o, nil
}

// CreateLine inserts an order line with the price snapshot.
func (c *Conf) CreateLine(ctx context.Context, orderID, productID int64, quantity int, price decimal.Decimal) error {
	query := `
		INSERT INTO order_details (order_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := c.q(ctx).ExecContext(ctx, query, orderID, productID, quantity, price); err != nil {
		return fmt.Errorf("failed to create order line: %w", err)
	}
	return nil
}

// GetByID fetches one order.
func (c *Conf) GetByID(ctx context.Context, id int64) (Order, error) {
	query := `SELECT id, user_id, total, status, created_at, updated_at FROM orders WHERE id = $1`
	var o Order
	err := c.q(ctx).QueryRowContext(ctx, query, id).
		Scan(&o.ID, &o.UserID, &o.Total, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, apperr.New(apperr.KindNotFound, "order not found")
		}
		return Order{}, fmt.Errorf("failed to query order %d: %w", id, err)
	}
	return o, nil
}

// ListByUser returns the user's orders, newest first.
func (c *Conf) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	query := `
		SELECT id, user_id, total, status, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	return c.listOrders(ctx, query, userID)
}

// LatestByStatus returns the most recently created order with the given
// status. Used by the reconciliation fallback rules.
func (c *Conf) LatestByStatus(ctx context.Context, status string) (Order, error) {
	query := `
		SELECT id, user_id, total, status, created_at, updated_at
		FROM orders
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var o Order
	err := c.q(ctx).QueryRowContext(ctx, query, status).
		Scan(&o.ID, &o.UserID, &o.Total, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, apperr.New(apperr.KindNotFound, "no order with status "+status)
		}
		return Order{}, fmt.Errorf("failed to query latest %s order: %w", status, err)
	}
	return o, nil
}

func (c *Conf) listOrders(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := c.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Total, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return out, nil
}

// UpdateStatus overwrites an order's lifecycle status.
func (c *Conf) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`
	res, err := c.q(ctx).ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update order %d status: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.New(apperr.KindNotFound, "order not found")
	}
	return nil
}

// LinesByOrder returns the order's line items with product names.
func (c *Conf) LinesByOrder(ctx context.Context, orderID int64) ([]Line, error) {
	query := `
		SELECT od.id, od.order_id, od.product_id, p.name, od.quantity, od.price
		FROM order_details od
		JOIN products p ON p.id = od.product_id
		WHERE od.order_id = $1
		ORDER BY od.id
	`
	rows, err := c.q(ctx).QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName,
			&l.Quantity, &l.Price); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order lines: %w", err)
	}
	return out, nil
}

// CreatePayment inserts the order's payment record.
func (c *Conf) CreatePayment(ctx context.Context, orderID int64, method, status, token string, amount decimal.Decimal) (Payment, error) {
	query := `
		INSERT INTO payments (order_id, payment_method, payment_status, payment_token, amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	p := Payment{OrderID: orderID, Method: method, Status: status, Token: token, Amount: amount}
	err := c.q(ctx).QueryRowContext(ctx, query, orderID, method, status, token, amount).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Payment{}, fmt.Errorf("failed to create payment: %w", err)
	}
	return p, nil
}

const paymentColumns = `id, order_id, payment_method, payment_status, COALESCE(payment_token, ''), amount, created_at, updated_at`

func (c *Conf) scanPayment(row *sql.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Method, &p.Status, &p.Token,
		&p.Amount, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// PaymentByOrder fetches the payment record belonging to an order.
func (c *Conf) PaymentByOrder(ctx context.Context, orderID int64) (Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1`
	p, err := c.scanPayment(c.q(ctx).QueryRowContext(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Payment{}, apperr.New(apperr.KindNotFound, "payment not found")
		}
		return Payment{}, fmt.Errorf("failed to query payment for order %d: %w", orderID, err)
	}
	return p, nil
}

// PaymentByToken fetches a payment record by its gateway token.
func (c *Conf) PaymentByToken(ctx context.Context, token string) (Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_token = $1`
	p, err := c.scanPayment(c.q(ctx).QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Payment{}, apperr.New(apperr.KindNotFound, "payment not found")
		}
		return Payment{}, fmt.Errorf("failed to query payment by token: %w", err)
	}
	return p, nil
}

// UpdatePaymentStatus overwrites the payment status of an order's record.
func (c *Conf) UpdatePaymentStatus(ctx context.Context, orderID int64, status string) error {
	query := `UPDATE payments SET payment_status = $2, updated_at = NOW() WHERE order_id = $1`
	res, err := c.q(ctx).ExecContext(ctx, query, orderID, status)
	if err != nil {
		return fmt.Errorf("failed to update payment status for order %d: %w", orderID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.New(apperr.KindNotFound, "payment not found")
	}
	return nil
}

// Transaction assembles an order with its lines and payment.
func (c *Conf) Transaction(ctx context.Context, userID, orderID int64) (Transaction, error) {
	o, err := c.GetByID(ctx, orderID)
	if err != nil {
		return Transaction{}, err
	}
	if o.UserID != userID {
		return Transaction{}, apperr.New(apperr.KindNotFound, "order not found")
	}
	return c.assemble(ctx, o)
}

// TransactionsByUser assembles the user's full order history, newest first.
func (c *Conf) TransactionsByUser(ctx context.Context, userID int64) ([]Transaction, error) {
	list, err := c.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]Transaction, 0, len(list))
	for _, o := range list {
		t, err := c.assemble(ctx, o)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *Conf) assemble(ctx context.Context, o Order) (Transaction, error) {
	lines, err := c.LinesByOrder(ctx, o.ID)
	if err != nil {
		return Transaction{}, err
	}
	t := Transaction{Order: o, Lines: lines}

	p, err := c.PaymentByOrder(ctx, o.ID)
	switch {
	case err == nil:
		t.Payment = &p
	case apperr.IsKind(err, apperr.KindNotFound):
		// order without a payment record is legal (admin-created states)
	default:
		return Transaction{}, err
	}
	return t, nil
}
