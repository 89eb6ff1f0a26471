package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"shop-api/internal/auth"
	"shop-api/internal/carts"
	"shop-api/internal/products"
)

func TestAddToCart(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.byID[1] = products.Product{
		ID: 1, Name: "keyboard", Price: decimal.RequireFromString("150000"),
		Stock: 5, Status: products.StatusAvailable,
	}
	tok := env.token(t, 7, auth.RoleUser)

	w := env.do(http.MethodPost, "/api/carts", `{"product_id":1,"quantity":2}`, tok)
	if w.Code != http.StatusCreated {
		t.Errorf("add to cart = %d, want 201", w.Code)
	}
}

func TestAddToCartDefaultsQuantity(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.byID[1] = products.Product{
		ID: 1, Name: "keyboard", Price: decimal.RequireFromString("150000"),
		Stock: 5, Status: products.StatusAvailable,
	}

	w := env.do(http.MethodPost, "/api/carts", `{"product_id":1}`,
		env.token(t, 7, auth.RoleUser))
	if w.Code != http.StatusCreated {
		t.Fatalf("add to cart = %d, want 201", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"quantity":1`) {
		t.Errorf("quantity did not default to 1: %s", w.Body.String())
	}
}

func TestAddToCartRejectsShortStock(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.byID[1] = products.Product{
		ID: 1, Name: "keyboard", Price: decimal.RequireFromString("150000"),
		Stock: 1, Status: products.StatusAvailable,
	}

	w := env.do(http.MethodPost, "/api/carts", `{"product_id":1,"quantity":5}`,
		env.token(t, 7, auth.RoleUser))
	if w.Code != http.StatusBadRequest {
		t.Errorf("add beyond stock = %d, want 400", w.Code)
	}
}

func TestAddToCartUnknownProduct(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/carts", `{"product_id":99,"quantity":1}`,
		env.token(t, 7, auth.RoleUser))
	if w.Code != http.StatusNotFound {
		t.Errorf("add unknown product = %d, want 404", w.Code)
	}
}

func TestGetCartTotals(t *testing.T) {
	env := newTestEnv(t)
	env.carts.items = []carts.Item{
		{ID: 1, ProductID: 1, Quantity: 2, ProductName: "keyboard",
			UnitPrice: decimal.RequireFromString("150000"), Stock: 5},
		{ID: 2, ProductID: 2, Quantity: 1, ProductName: "mouse",
			UnitPrice: decimal.RequireFromString("50000"), Stock: 3},
	}

	w := env.do(http.MethodGet, "/api/carts", "", env.token(t, 7, auth.RoleUser))
	if w.Code != http.StatusOK {
		t.Fatalf("get cart = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"total":"350000"`) {
		t.Errorf("cart total missing or wrong: %s", w.Body.String())
	}
}

func TestUpdateCartItemRejectsZeroQuantity(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPut, "/api/carts/1", `{"quantity":0}`,
		env.token(t, 7, auth.RoleUser))
	if w.Code != http.StatusBadRequest {
		t.Errorf("zero quantity = %d, want 400", w.Code)
	}
}
