package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"shop-api/internal/apperr"
	"shop-api/internal/auth"
	"shop-api/internal/carts"
	"shop-api/internal/checkout"
	"shop-api/internal/orders"
	"shop-api/internal/products"
	"shop-api/internal/reconcile"
	"shop-api/internal/users"
)

type stubUsers struct {
	insertErr error
	authErr   error
	user      users.User
}

func (s *stubUsers) InsertUser(ctx context.Context, nu users.NewUser) (users.User, error) {
	if s.insertErr != nil {
		return users.User{}, s.insertErr
	}
	return s.user, nil
}

func (s *stubUsers) Authenticate(ctx context.Context, email, password string) (users.User, error) {
	if s.authErr != nil {
		return users.User{}, s.authErr
	}
	return s.user, nil
}

func (s *stubUsers) TopCustomers(ctx context.Context, period string) ([]users.TopCustomer, error) {
	return nil, nil
}

type stubCatalog struct {
	list []products.Product
	byID map[int64]products.Product
}

func (s *stubCatalog) List(ctx context.Context, search string) ([]products.Product, error) {
	return s.list, nil
}

func (s *stubCatalog) GetByID(ctx context.Context, id int64) (products.Product, error) {
	p, ok := s.byID[id]
	if !ok {
		return products.Product{}, apperr.New(apperr.KindNotFound, "product not found")
	}
	return p, nil
}

type stubCarts struct {
	items []carts.Item
}

func (s *stubCarts) ItemsByUser(ctx context.Context, userID int64) ([]carts.Item, error) {
	return s.items, nil
}

func (s *stubCarts) Add(ctx context.Context, userID, productID int64, quantity int) (carts.Item, bool, error) {
	return carts.Item{ID: 1, ProductID: productID, Quantity: quantity}, true, nil
}

func (s *stubCarts) UpdateQuantity(ctx context.Context, userID, itemID int64, quantity int) (carts.Item, error) {
	return carts.Item{ID: itemID, Quantity: quantity}, nil
}

func (s *stubCarts) Remove(ctx context.Context, userID, itemID int64) error { return nil }
func (s *stubCarts) Clear(ctx context.Context, userID int64) error          { return nil }

type stubLedger struct {
	order orders.Order
	err   error
}

func (s *stubLedger) Transaction(ctx context.Context, userID, orderID int64) (orders.Transaction, error) {
	if s.err != nil {
		return orders.Transaction{}, s.err
	}
	return orders.Transaction{Order: s.order}, nil
}

func (s *stubLedger) TransactionsByUser(ctx context.Context, userID int64) ([]orders.Transaction, error) {
	return nil, nil
}

func (s *stubLedger) GetByID(ctx context.Context, id int64) (orders.Order, error) {
	if s.err != nil {
		return orders.Order{}, s.err
	}
	return s.order, nil
}

func (s *stubLedger) UpdateStatus(ctx context.Context, id int64, status string) error {
	return s.err
}

type stubCheckout struct {
	res checkout.Result
	err error
}

func (s *stubCheckout) Checkout(ctx context.Context, userID int64) (checkout.Result, error) {
	if s.err != nil {
		return checkout.Result{}, s.err
	}
	return s.res, nil
}

type stubReconciler struct {
	out reconcile.Outcome
	err error
}

func (s *stubReconciler) Process(ctx context.Context, n reconcile.Notification) (reconcile.Outcome, error) {
	if s.err != nil {
		return reconcile.Outcome{}, s.err
	}
	return s.out, nil
}

type testEnv struct {
	engine    *gin.Engine
	keys      *auth.Keys
	checkout  *stubCheckout
	reconcile *stubReconciler
	users     *stubUsers
	ledger    *stubLedger
	catalog   *stubCatalog
	carts     *stubCarts
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	keys, err := auth.NewKeys("test-secret")
	if err != nil {
		t.Fatalf("NewKeys() error = %v", err)
	}

	env := &testEnv{
		keys:      keys,
		checkout:  &stubCheckout{},
		reconcile: &stubReconciler{},
		users:     &stubUsers{user: users.User{ID: 7, Username: "alice", Role: auth.RoleUser}},
		ledger:    &stubLedger{order: orders.Order{ID: 42, UserID: 7, Status: orders.StatusPending}},
		catalog:   &stubCatalog{byID: map[int64]products.Product{}},
		carts:     &stubCarts{},
	}

	h := NewHandler(env.users, env.catalog, env.carts,
		env.ledger, env.checkout, env.reconcile, nil, keys)
	env.engine = API(gin.TestMode, h)
	return env
}

func (e *testEnv) token(t *testing.T, userID int64, role string) string {
	t.Helper()
	tok, err := e.keys.GenerateToken(userID, role)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return tok
}

func (e *testEnv) do(method, path, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/ping", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("GET /ping = %d, want 200", w.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		body string
	}{
		{"short username", `{"username":"ab","email":"a@b.com","password":"secret1"}`},
		{"bad email", `{"username":"alice","email":"not-an-email","password":"secret1"}`},
		{"short password", `{"username":"alice","email":"a@b.com","password":"12345"}`},
		{"missing fields", `{}`},
		{"not json", `garbage`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/register", tc.body, "")
			if w.Code != http.StatusBadRequest {
				t.Errorf("POST /api/register = %d, want 400", w.Code)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.users.insertErr = apperr.New(apperr.KindValidation, "email already registered")

	w := env.do(http.MethodPost, "/api/register",
		`{"username":"alice","email":"a@b.com","password":"secret1"}`, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("duplicate register = %d, want 400", w.Code)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.users.authErr = apperr.New(apperr.KindUnauthenticated, "invalid credentials")

	w := env.do(http.MethodPost, "/api/login",
		`{"email":"a@b.com","password":"wrong1"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad login = %d, want 401", w.Code)
	}
}

func TestLoginIssuesToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/login",
		`{"email":"a@b.com","password":"secret1"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "access_token") {
		t.Errorf("login response missing access_token: %s", w.Body.String())
	}
}

func TestAuthenticatedRoutesRejectMissingToken(t *testing.T) {
	env := newTestEnv(t)

	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/carts"},
		{http.MethodPost, "/api/transactions"},
		{http.MethodGet, "/api/user/toptransactions"},
	}
	for _, p := range paths {
		w := env.do(p.method, p.path, "", "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s = %d, want 401", p.method, p.path, w.Code)
		}
	}
}

func TestCheckoutInsufficientStockMapsTo400(t *testing.T) {
	env := newTestEnv(t)
	env.checkout.err = &apperr.InsufficientStockError{
		ProductID: 1, Name: "keyboard", Requested: 5, Available: 1,
	}

	w := env.do(http.MethodPost, "/api/transactions", "", env.token(t, 7, auth.RoleUser))
	if w.Code != http.StatusBadRequest {
		t.Errorf("checkout with short stock = %d, want 400", w.Code)
	}
}

func TestCheckoutSuccessReturns201(t *testing.T) {
	env := newTestEnv(t)
	env.checkout.res = checkout.Result{
		Order:       orders.Order{ID: 42, Status: orders.StatusProcessing},
		Payment:     orders.Payment{Status: orders.PaymentSuccess},
		Token:       "snap-token",
		RedirectURL: "https://pay.example/snap-token",
	}

	w := env.do(http.MethodPost, "/api/transactions", "", env.token(t, 7, auth.RoleUser))
	if w.Code != http.StatusCreated {
		t.Fatalf("checkout = %d, want 201", w.Code)
	}
	if !strings.Contains(w.Body.String(), "snap-token") {
		t.Errorf("checkout response missing token: %s", w.Body.String())
	}
}

func TestUpdateStatusRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPut, "/api/transactions/42/status",
		`{"status":"shipped"}`, env.token(t, 7, auth.RoleUser))
	if w.Code != http.StatusForbidden {
		t.Errorf("non-admin status update = %d, want 403", w.Code)
	}

	w = env.do(http.MethodPut, "/api/transactions/42/status",
		`{"status":"shipped"}`, env.token(t, 1, auth.RoleAdmin))
	if w.Code != http.StatusOK {
		t.Errorf("admin status update = %d, want 200", w.Code)
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPut, "/api/transactions/42/status",
		`{"status":"teleported"}`, env.token(t, 1, auth.RoleAdmin))
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown status = %d, want 400", w.Code)
	}
}

func TestWebhookAlwaysAcknowledges(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		prep func()
		body string
	}{
		{"applied", func() {
			env.reconcile.err = nil
			env.reconcile.out = reconcile.Outcome{OrderID: 42, PaymentStatus: orders.PaymentSuccess}
		}, `{"order_id":"ORDER-42-17","transaction_status":"settlement"}`},
		{"unidentified", func() {
			env.reconcile.err = reconcile.ErrOrderNotIdentified
		}, `{"order_id":"unknown","transaction_status":"settlement"}`},
		{"internal error", func() {
			env.reconcile.err = apperr.New(apperr.KindInternal, "db down")
		}, `{"order_id":"ORDER-42-17","transaction_status":"settlement"}`},
		{"malformed body", func() { env.reconcile.err = nil }, `garbage`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.prep()
			w := env.do(http.MethodPost, "/api/midtrans/notification", tc.body, "")
			if w.Code != http.StatusOK {
				t.Errorf("webhook = %d, want 200", w.Code)
			}
		})
	}
}
