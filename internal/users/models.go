package users

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is an account row. The password hash never leaves this package.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`

	passwordHash string
}

// NewUser is the registration payload.
type NewUser struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// TopCustomer is one row of the spending report.
type TopCustomer struct {
	CustomerID int64           `json:"customer_id"`
	Username   string          `json:"username"`
	Email      string          `json:"email"`
	OrderCount int             `json:"order_count"`
	TotalSpent decimal.Decimal `json:"total_spent"`
}
