// Package products is the catalog store: reads plus the stock mutations the
// checkout and reconciliation flows depend on.
package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

const productColumns = `id, sku, name, price, stock, category_id, status, created_at, updated_at`

func scanProduct(row *sql.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.Stock, &p.CategoryID,
		&p.Status, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// GetByID fetches one product.
func (c *Conf) GetByID(ctx context.Context, id int64) (Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	p, err := scanProduct(c.q(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, apperr.New(apperr.KindNotFound, "product not found")
		}
		return Product{}, fmt.Errorf("failed to query product %d: %w", id, err)
	}
	return p, nil
}

// GetForUpdate fetches one product and takes a row lock, serializing
// concurrent checkouts that touch the same product.
func (c *Conf) GetForUpdate(ctx context.Context, id int64) (Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`
	p, err := scanProduct(c.q(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, apperr.New(apperr.KindNotFound, "product not found")
		}
		return Product{}, fmt.Errorf("failed to lock product %d: %w", id, err)
	}
	return p, nil
}

// List returns the catalog, optionally filtered by a case-insensitive name
// substring.
func (c *Conf) List(ctx context.Context, search string) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY id`
	args := []any{}
	if search != "" {
		query = `SELECT ` + productColumns + ` FROM products WHERE name ILIKE $1 ORDER BY id`
		args = append(args, "%"+search+"%")
	}

	rows, err := c.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.Stock,
			&p.CategoryID, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return out, nil
}

// DecrementStock subtracts qty from the product's stock and returns the
// remaining amount. The stock >= qty guard keeps stock from ever going
// negative even if callers race past the row lock.
func (c *Conf) DecrementStock(ctx context.Context, id int64, qty int) (int, error) {
	query := `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
		RETURNING stock
	`
	var remaining int
	err := c.q(ctx).QueryRowContext(ctx, query, id, qty).Scan(&remaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperr.New(apperr.KindInvalidState,
				fmt.Sprintf("stock underflow for product %d", id))
		}
		return 0, fmt.Errorf("failed to decrement stock for product %d: %w", id, err)
	}
	return remaining, nil
}

// IncrementStock adds qty back to the product's stock and returns the new
// amount. Used by payment reconciliation to undo a checkout decrement.
func (c *Conf) IncrementStock(ctx context.Context, id int64, qty int) (int, error) {
	query := `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING stock
	`
	var remaining int
	err := c.q(ctx).QueryRowContext(ctx, query, id, qty).Scan(&remaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperr.New(apperr.KindNotFound, "product not found")
		}
		return 0, fmt.Errorf("failed to increment stock for product %d: %w", id, err)
	}
	return remaining, nil
}

// SetStatus overwrites the product's availability status.
func (c *Conf) SetStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE products SET status = $2, updated_at = NOW() WHERE id = $1`
	res, err := c.q(ctx).ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to set status for product %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.New(apperr.KindNotFound, "product not found")
	}
	return nil
}
