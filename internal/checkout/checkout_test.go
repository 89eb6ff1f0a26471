package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"shop-api/internal/apperr"
	"shop-api/internal/carts"
	"shop-api/internal/gateway"
	"shop-api/internal/orders"
	"shop-api/internal/products"
	"shop-api/internal/users"
)

// memStore is an in-memory double for every collaborator of the workflow.
type memStore struct {
	user  users.User
	items []carts.Item

	products map[int64]*products.Product

	nextOrderID int64
	orders      map[int64]orders.Order
	lines       map[int64][]orders.Line
	payments    map[int64]orders.Payment

	gatewayErr error
	charges    []gateway.ChargeRequest
}

func newMemStore() *memStore {
	return &memStore{
		user:        users.User{ID: 7, Username: "alice", Email: "alice@example.com"},
		products:    map[int64]*products.Product{},
		nextOrderID: 100,
		orders:      map[int64]orders.Order{},
		lines:       map[int64][]orders.Line{},
		payments:    map[int64]orders.Payment{},
	}
}

func (m *memStore) addProduct(id int64, name string, price string, stock int) {
	m.products[id] = &products.Product{
		ID:     id,
		Name:   name,
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Status: products.StatusAvailable,
	}
}

func (m *memStore) addCartItem(productID int64, qty int) {
	p := m.products[productID]
	m.items = append(m.items, carts.Item{
		ID:          int64(len(m.items) + 1),
		ProductID:   productID,
		Quantity:    qty,
		ProductName: p.Name,
		UnitPrice:   p.Price,
		Stock:       p.Stock,
	})
}

func (m *memStore) GetByID(ctx context.Context, id int64) (users.User, error) {
	if id != m.user.ID {
		return users.User{}, apperr.New(apperr.KindNotFound, "user not found")
	}
	return m.user, nil
}

func (m *memStore) ItemsByUser(ctx context.Context, userID int64) ([]carts.Item, error) {
	return m.items, nil
}

func (m *memStore) Clear(ctx context.Context, userID int64) error {
	m.items = nil
	return nil
}

func (m *memStore) GetForUpdate(ctx context.Context, id int64) (products.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return products.Product{}, apperr.New(apperr.KindNotFound, "product not found")
	}
	return *p, nil
}

func (m *memStore) DecrementStock(ctx context.Context, id int64, qty int) (int, error) {
	p := m.products[id]
	if p.Stock < qty {
		return 0, apperr.New(apperr.KindInsufficientStock, "stock underflow")
	}
	p.Stock -= qty
	return p.Stock, nil
}

func (m *memStore) SetStatus(ctx context.Context, id int64, status string) error {
	m.products[id].Status = status
	return nil
}

func (m *memStore) CreateOrder(ctx context.Context, userID int64, total decimal.Decimal, status string) (orders.Order, error) {
	m.nextOrderID++
	o := orders.Order{ID: m.nextOrderID, UserID: userID, Total: total, Status: status}
	m.orders[o.ID] = o
	return o, nil
}

func (m *memStore) CreateLine(ctx context.Context, orderID, productID int64, quantity int, price decimal.Decimal) error {
	m.lines[orderID] = append(m.lines[orderID], orders.Line{
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  quantity,
		Price:     price,
	})
	return nil
}

func (m *memStore) CreatePayment(ctx context.Context, orderID int64, method, status, token string, amount decimal.Decimal) (orders.Payment, error) {
	p := orders.Payment{
		ID:      orderID,
		OrderID: orderID,
		Method:  method,
		Status:  status,
		Token:   token,
		Amount:  amount,
	}
	m.payments[orderID] = p
	return p, nil
}

func (m *memStore) CreateTransaction(ctx context.Context, req gateway.ChargeRequest) (gateway.Charge, error) {
	if m.gatewayErr != nil {
		return gateway.Charge{}, m.gatewayErr
	}
	m.charges = append(m.charges, req)
	return gateway.Charge{Token: "snap-token", RedirectURL: "https://pay.example/snap-token"}, nil
}

// snapshotTx mimics transactional semantics: on error every mutation made by
// fn is rolled back to the state captured at entry.
type snapshotTx struct {
	store *memStore
}

func (t *snapshotTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	saved := t.snapshot()
	if err := fn(ctx); err != nil {
		t.restore(saved)
		return err
	}
	return nil
}

func (t *snapshotTx) snapshot() memStore {
	s := *t.store
	s.items = append([]carts.Item(nil), t.store.items...)
	s.products = map[int64]*products.Product{}
	for id, p := range t.store.products {
		cp := *p
		s.products[id] = &cp
	}
	s.orders = map[int64]orders.Order{}
	for id, o := range t.store.orders {
		s.orders[id] = o
	}
	s.lines = map[int64][]orders.Line{}
	for id, l := range t.store.lines {
		s.lines[id] = append([]orders.Line(nil), l...)
	}
	s.payments = map[int64]orders.Payment{}
	for id, p := range t.store.payments {
		s.payments[id] = p
	}
	return s
}

func (t *snapshotTx) restore(s memStore) {
	*t.store = s
}

func newTestService(m *memStore) *Service {
	svc := NewService(m, m, m, m, m, &snapshotTx{store: m})
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc
}

func TestCheckoutSuccess(t *testing.T) {
	m := newMemStore()
	m.addProduct(1, "keyboard", "150000", 10)
	m.addProduct(2, "mouse", "50000", 3)
	m.addCartItem(1, 2)
	m.addCartItem(2, 1)

	svc := newTestService(m)
	res, err := svc.Checkout(context.Background(), 7)
	if err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}

	wantTotal := decimal.RequireFromString("350000")
	if !res.Order.Total.Equal(wantTotal) {
		t.Errorf("order total = %s, want %s", res.Order.Total, wantTotal)
	}
	if res.Order.Status != orders.StatusProcessing {
		t.Errorf("order status = %q, want %q", res.Order.Status, orders.StatusProcessing)
	}
	if res.Payment.Status != orders.PaymentSuccess {
		t.Errorf("payment status = %q, want %q", res.Payment.Status, orders.PaymentSuccess)
	}
	if res.Token != "snap-token" || res.RedirectURL == "" {
		t.Errorf("gateway result = (%q, %q)", res.Token, res.RedirectURL)
	}

	if m.products[1].Stock != 8 || m.products[2].Stock != 2 {
		t.Errorf("stock after checkout = (%d, %d), want (8, 2)",
			m.products[1].Stock, m.products[2].Stock)
	}
	if len(m.items) != 0 {
		t.Errorf("cart not cleared, %d items left", len(m.items))
	}

	lines := m.lines[res.Order.ID]
	if len(lines) != 2 {
		t.Fatalf("order lines = %d, want 2", len(lines))
	}
	if !lines[0].Price.Equal(decimal.RequireFromString("150000")) {
		t.Errorf("line price snapshot = %s, want 150000", lines[0].Price)
	}

	if len(m.charges) != 1 {
		t.Fatalf("gateway calls = %d, want 1", len(m.charges))
	}
	wantRef := MerchantRef(res.Order.ID, time.UnixMilli(1700000000000))
	if m.charges[0].OrderRef != wantRef {
		t.Errorf("merchant ref = %q, want %q", m.charges[0].OrderRef, wantRef)
	}
	if m.charges[0].GrossAmount != 350000 {
		t.Errorf("gross amount = %d, want 350000", m.charges[0].GrossAmount)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	m := newMemStore()
	svc := newTestService(m)

	_, err := svc.Checkout(context.Background(), 7)
	if !apperr.IsKind(err, apperr.KindInvalidState) {
		t.Fatalf("Checkout() error = %v, want invalid state", err)
	}
}

func TestCheckoutInsufficientStock(t *testing.T) {
	m := newMemStore()
	m.addProduct(1, "keyboard", "150000", 1)
	m.addCartItem(1, 5)

	svc := newTestService(m)
	_, err := svc.Checkout(context.Background(), 7)

	var ise *apperr.InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("Checkout() error = %v, want InsufficientStockError", err)
	}
	if ise.Requested != 5 || ise.Available != 1 {
		t.Errorf("stock error = requested %d available %d, want 5 and 1",
			ise.Requested, ise.Available)
	}

	if m.products[1].Stock != 1 {
		t.Errorf("stock changed to %d on failed checkout", m.products[1].Stock)
	}
	if len(m.orders) != 0 {
		t.Errorf("order persisted on failed checkout")
	}
}

func TestCheckoutGatewayFailureRollsBack(t *testing.T) {
	m := newMemStore()
	m.addProduct(1, "keyboard", "150000", 10)
	m.addCartItem(1, 2)
	m.gatewayErr = apperr.New(apperr.KindGateway, "midtrans unavailable")

	svc := newTestService(m)
	_, err := svc.Checkout(context.Background(), 7)
	if !apperr.IsKind(err, apperr.KindGateway) {
		t.Fatalf("Checkout() error = %v, want gateway kind", err)
	}

	if m.products[1].Stock != 10 {
		t.Errorf("stock = %d after rollback, want 10", m.products[1].Stock)
	}
	if len(m.orders) != 0 || len(m.payments) != 0 {
		t.Errorf("order or payment survived rollback")
	}
	if len(m.items) != 1 {
		t.Errorf("cart lost on failed checkout")
	}
}

func TestCheckoutMarksSoldOut(t *testing.T) {
	m := newMemStore()
	m.addProduct(1, "keyboard", "150000", 2)
	m.addCartItem(1, 2)

	svc := newTestService(m)
	if _, err := svc.Checkout(context.Background(), 7); err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}

	if m.products[1].Stock != 0 {
		t.Errorf("stock = %d, want 0", m.products[1].Stock)
	}
	if m.products[1].Status != products.StatusSoldOut {
		t.Errorf("status = %q, want %q", m.products[1].Status, products.StatusSoldOut)
	}
}

func TestMerchantRef(t *testing.T) {
	got := MerchantRef(42, time.UnixMilli(1700000000000))
	want := "ORDER-42-1700000000000"
	if got != want {
		t.Errorf("MerchantRef() = %q, want %q", got, want)
	}
}
