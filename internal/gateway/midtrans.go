// Package gateway wraps the Midtrans Snap API behind the narrow interface the
// checkout workflow consumes.
package gateway

import (
	"context"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"

	"shop-api/internal/apperr"
)

// Name is the payment method recorded on payment rows.
const Name = "midtrans"

// ChargeItem is one line of the gateway item breakdown.
type ChargeItem struct {
	ID       string
	Name     string
	Price    int64
	Quantity int32
}

// ChargeRequest is everything the gateway needs to issue a payment token.
type ChargeRequest struct {
	OrderRef      string
	GrossAmount   int64
	Items         []ChargeItem
	CustomerName  string
	CustomerEmail string
}

// Charge is the gateway's answer: an opaque token plus the page the customer
// is sent to.
type Charge struct {
	Token       string
	RedirectURL string
}

// Snap creates transactions against the Midtrans Snap API.
type Snap struct {
	client snap.Client
}

// NewSnap builds a Snap gateway for the given server key and environment.
func NewSnap(serverKey string, production bool) *Snap {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}
	s := &Snap{}
	s.client.New(serverKey, env)
	return s
}

// CreateTransaction requests a Snap payment token for the order.
func (s *Snap) CreateTransaction(ctx context.Context, req ChargeRequest) (Charge, error) {
	items := make([]midtrans.ItemDetails, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, midtrans.ItemDetails{
			ID:    it.ID,
			Name:  it.Name,
			Price: it.Price,
			Qty:   it.Quantity,
		})
	}

	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderRef,
			GrossAmt: req.GrossAmount,
		},
		Items: &items,
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.CustomerName,
			Email: req.CustomerEmail,
		},
	}

	resp, mErr := s.client.CreateTransaction(snapReq)
	if mErr != nil {
		return Charge{}, apperr.Wrap(apperr.KindGateway, "creating snap transaction", mErr)
	}
	return Charge{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}
