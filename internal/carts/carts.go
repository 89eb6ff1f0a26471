// Package carts is the per-user cart store. At most one row exists per
// (user, product); repeated adds increment the quantity.
package carts

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

// ItemsByUser lists the user's cart lines joined with current catalog data.
func (c *Conf) ItemsByUser(ctx context.Context, userID int64) ([]Item, error) {
	query := `
		SELECT ci.id, ci.product_id, ci.quantity, p.name, p.price, p.stock
		FROM carts ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.id
	`
	rows, err := c.q(ctx).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Quantity, &it.ProductName,
			&it.UnitPrice, &it.Stock); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}
	return items, nil
}

// Add inserts a cart line or, when the product is already in the cart,
// increments its quantity. Returns the resulting line and whether it was
// newly created.
func (c *Conf) Add(ctx context.Context, userID, productID int64, quantity int) (Item, bool, error) {
	query := `
		INSERT INTO carts (user_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = carts.quantity + EXCLUDED.quantity, updated_at = NOW()
		RETURNING id, quantity, (xmax = 0)
	`
	var it Item
	var inserted bool
	err := c.q(ctx).QueryRowContext(ctx, query, userID, productID, quantity).
		Scan(&it.ID, &it.Quantity, &inserted)
	if err != nil {
		return Item{}, false, fmt.Errorf("failed to add product %d to cart: %w", productID, err)
	}
	it.ProductID = productID
	return it, inserted, nil
}

// UpdateQuantity sets the quantity of one of the user's cart lines.
func (c *Conf) UpdateQuantity(ctx context.Context, userID, itemID int64, quantity int) (Item, error) {
	query := `
		UPDATE carts
		SET quantity = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING id, product_id, quantity
	`
	var it Item
	err := c.q(ctx).QueryRowContext(ctx, query, itemID, userID, quantity).
		Scan(&it.ID, &it.ProductID, &it.Quantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Item{}, apperr.New(apperr.KindNotFound, "cart item not found")
		}
		return Item{}, fmt.Errorf("failed to update cart item %d: %w", itemID, err)
	}
	return it, nil
}

// Remove deletes one of the user's cart lines.
func (c *Conf) Remove(ctx context.Context, userID, itemID int64) error {
	query := `DELETE FROM carts WHERE id = $1 AND user_id = $2`
	res, err := c.q(ctx).ExecContext(ctx, query, itemID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove cart item %d: %w", itemID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.New(apperr.KindNotFound, "cart item not found")
	}
	return nil
}

// Clear deletes every cart line belonging to the user.
func (c *Conf) Clear(ctx context.Context, userID int64) error {
	query := `DELETE FROM carts WHERE user_id = $1`
	if _, err := c.q(ctx).ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to clear cart for user %d: %w", userID, err)
	}
	return nil
}
