// Package handlers wires the HTTP surface: public catalog reads, account
// routes, authenticated cart and transaction routes, and the gateway webhook.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"shop-api/internal/apperr"
	"shop-api/internal/auth"
	"shop-api/internal/carts"
	"shop-api/internal/checkout"
	"shop-api/internal/orders"
	"shop-api/internal/products"
	"shop-api/internal/reconcile"
	"shop-api/internal/users"
	"shop-api/middleware"
	"shop-api/pkg/ctxmanage"
	"shop-api/pkg/logkey"
)

// UserAccounts is the account store surface the handlers use.
type UserAccounts interface {
	InsertUser(ctx context.Context, nu users.NewUser) (users.User, error)
	Authenticate(ctx context.Context, email, password string) (users.User, error)
	TopCustomers(ctx context.Context, period string) ([]users.TopCustomer, error)
}

// Catalog is the public product read surface.
type Catalog interface {
	List(ctx context.Context, search string) ([]products.Product, error)
	GetByID(ctx context.Context, id int64) (products.Product, error)
}

// CartStore is the cart CRUD surface.
type CartStore interface {
	ItemsByUser(ctx context.Context, userID int64) ([]carts.Item, error)
	Add(ctx context.Context, userID, productID int64, quantity int) (carts.Item, bool, error)
	UpdateQuantity(ctx context.Context, userID, itemID int64, quantity int) (carts.Item, error)
	Remove(ctx context.Context, userID, itemID int64) error
	Clear(ctx context.Context, userID int64) error
}

// OrderLedger is the order history and admin surface.
type OrderLedger interface {
	Transaction(ctx context.Context, userID, orderID int64) (orders.Transaction, error)
	TransactionsByUser(ctx context.Context, userID int64) ([]orders.Transaction, error)
	GetByID(ctx context.Context, id int64) (orders.Order, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
}

// Checkouter runs the checkout workflow.
type Checkouter interface {
	Checkout(ctx context.Context, userID int64) (checkout.Result, error)
}

// Reconciler applies gateway notifications.
type Reconciler interface {
	Process(ctx context.Context, n reconcile.Notification) (reconcile.Outcome, error)
}

// EventProducer publishes order lifecycle events. May be nil when no broker
// is configured.
type EventProducer interface {
	ProduceMessage(topic string, key, value []byte) error
}

type Handler struct {
	users     UserAccounts
	catalog   Catalog
	carts     CartStore
	ledger    OrderLedger
	checkout  Checkouter
	reconcile Reconciler
	events    EventProducer
	keys      *auth.Keys
	validate  *validator.Validate
}

func NewHandler(u UserAccounts, cat Catalog, ct CartStore, l OrderLedger,
	chk Checkouter, rec Reconciler, events EventProducer, keys *auth.Keys) *Handler {
	return &Handler{
		users:     u,
		catalog:   cat,
		carts:     ct,
		ledger:    l,
		checkout:  chk,
		reconcile: rec,
		events:    events,
		keys:      keys,
		validate:  validator.New(),
	}
}

// API builds the gin engine with the full route table.
func API(ginMode string, h *Handler) *gin.Engine {
	if ginMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.Logger(), gin.Recovery())

	m, err := middleware.NewMid(h.keys)
	if err != nil {
		panic(err)
	}

	r.GET("/ping", HealthCheck)

	api := r.Group("/api")
	{
		api.POST("/register", h.Register)
		api.POST("/login", h.Login)
		api.POST("/midtrans/notification", h.MidtransNotification)

		api.GET("/products", h.ListProducts)
		api.GET("/products/:id", h.GetProduct)

		authed := api.Group("")
		authed.Use(m.Authentication())
		{
			authed.GET("/user/toptransactions", h.TopCustomers)

			authed.GET("/carts", h.GetCart)
			authed.POST("/carts", h.AddToCart)
			authed.PUT("/carts/:id", h.UpdateCartItem)
			authed.DELETE("/carts/:id", h.RemoveCartItem)
			authed.DELETE("/carts", h.ClearCart)

			authed.GET("/transactions", h.ListTransactions)
			authed.GET("/transactions/:id", h.GetTransaction)
			authed.POST("/transactions", h.Checkout)
			authed.PUT("/transactions/:id/status", m.Authorize(h.UpdateTransactionStatus, auth.RoleAdmin))
		}
	}

	return r
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// currentUserID pulls the authenticated user id out of the request claims.
func currentUserID(c *gin.Context) (int64, bool) {
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		return 0, false
	}
	id, err := claims.UserID()
	if err != nil {
		return 0, false
	}
	return id, true
}

// respondError maps the tagged error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, traceID string, err error) {
	kind := apperr.KindOf(err)
	switch kind {
	case apperr.KindValidation, apperr.KindInvalidState, apperr.KindInsufficientStock:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
	case apperr.KindNotFound:
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": err.Error()})
	case apperr.KindUnauthenticated:
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthentication"})
	case apperr.KindGateway:
		slog.Error("gateway call failed", slog.String(logkey.TraceID, traceID),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"message": "payment gateway unavailable"})
	default:
		slog.Error("internal error", slog.String(logkey.TraceID, traceID),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			gin.H{"message": http.StatusText(http.StatusInternalServerError)})
	}
}

func abortUnauthenticated(c *gin.Context) {
	traceID := ctxmanage.GetTraceIdOfRequest(c)
	slog.Error("claims not found", slog.String(logkey.TraceID, traceID))
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthentication"})
}
