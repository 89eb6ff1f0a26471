package products

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusAvailable = "available"
	StatusSoldOut   = "sold_out"
)

// Product is a catalog entry.
type Product struct {
	ID         int64           `json:"id"`
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Stock      int             `json:"stock"`
	CategoryID *int64          `json:"category_id,omitempty"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
