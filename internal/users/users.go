// Package users is the account store: registration, credential checks, and
// the top-customers report.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

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

// InsertUser creates an account with a bcrypt-hashed password.
func (c *Conf) InsertUser(ctx context.Context, nu NewUser) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(nu.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hashing password: %w", err)
	}

	query := `
		INSERT INTO users (username, email, password, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, role, created_at
	`
	u := User{Username: nu.Username, Email: nu.Email}
	err = c.q(ctx).QueryRowContext(ctx, query, nu.Username, nu.Email, string(hash)).
		Scan(&u.ID, &u.Role, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, apperr.New(apperr.KindValidation, "email already registered")
		}
		return User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	return u, nil
}

// GetByID fetches one account.
func (c *Conf) GetByID(ctx context.Context, id int64) (User, error) {
	query := `SELECT id, username, email, role, created_at FROM users WHERE id = $1`
	var u User
	err := c.q(ctx).QueryRowContext(ctx, query, id).
		Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, apperr.New(apperr.KindNotFound, "user not found")
		}
		return User{}, fmt.Errorf("failed to query user %d: %w", id, err)
	}
	return u, nil
}

// Authenticate verifies email and password, returning the account on success.
// Both a missing account and a wrong password map to the same tagged error so
// the response does not leak which one failed.
func (c *Conf) Authenticate(ctx context.Context, email, password string) (User, error) {
	query := `SELECT id, username, email, password, role, created_at FROM users WHERE email = $1`
	var u User
	err := c.q(ctx).QueryRowContext(ctx, query, email).
		Scan(&u.ID, &u.Username, &u.Email, &u.passwordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, apperr.New(apperr.KindUnauthenticated, "unauthentication")
		}
		return User{}, fmt.Errorf("failed to query user by email: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.passwordHash), []byte(password)) != nil {
		return User{}, apperr.New(apperr.KindUnauthenticated, "unauthentication")
	}
	u.passwordHash = ""
	return u, nil
}

// reportPeriods whitelists the interval literal interpolated into the report
// query; anything else is rejected before it gets near SQL.
var reportPeriods = map[string]struct{}{
	"7 days":   {},
	"14 days":  {},
	"1 month":  {},
	"3 months": {},
	"6 months": {},
	"1 year":   {},
}

// ValidPeriod reports whether period is an accepted report window.
func ValidPeriod(period string) bool {
	_, ok := reportPeriods[period]
	return ok
}

// TopCustomers returns the five biggest spenders over the period, counting
// orders that made it past payment (processing and later, not cancelled).
func (c *Conf) TopCustomers(ctx context.Context, period string) ([]TopCustomer, error) {
	if !ValidPeriod(period) {
		return nil, apperr.New(apperr.KindValidation, "invalid period")
	}

	query := fmt.Sprintf(`
		SELECT o.user_id, u.username, u.email, COUNT(o.id), SUM(o.total)
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE o.created_at >= NOW() - INTERVAL '%s'
		  AND o.status IN ('processing', 'shipped', 'delivered')
		GROUP BY o.user_id, u.username, u.email
		ORDER BY SUM(o.total) DESC
		LIMIT 5
	`, period)

	rows, err := c.q(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query top customers: %w", err)
	}
	defer rows.Close()

	var out []TopCustomer
	for rows.Next() {
		var tc TopCustomer
		if err := rows.Scan(&tc.CustomerID, &tc.Username, &tc.Email,
			&tc.OrderCount, &tc.TotalSpent); err != nil {
			return nil, fmt.Errorf("failed to scan top customer: %w", err)
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating top customers: %w", err)
	}
	return out, nil
}
