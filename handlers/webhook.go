package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"shop-api/internal/orders"
	"shop-api/internal/reconcile"
	"shop-api/internal/stores/kafka"
	"shop-api/pkg/ctxmanage"
	"shop-api/pkg/logkey"
)

// MidtransNotification ingests the gateway webhook. It always acknowledges
// with 200 so the gateway stops retrying; failures are logged, not surfaced.
func (h *Handler) MidtransNotification(c *gin.Context) {
	traceID := ctxmanage.GetTraceIdOfRequest(c)

	var n reconcile.Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		slog.Error("invalid notification payload", slog.String(logkey.TraceID, traceID),
			slog.String(logkey.ERROR, err.Error()))
		c.JSON(http.StatusOK, gin.H{"message": "notification received"})
		return
	}

	out, err := h.reconcile.Process(c.Request.Context(), n)
	if err != nil {
		if reconcile.IsNoOp(err) {
			slog.Warn("notification matched no order", slog.String(logkey.TraceID, traceID),
				slog.String("order_id", n.OrderID))
		} else {
			slog.Error("notification processing failed", slog.String(logkey.TraceID, traceID),
				slog.String(logkey.ERROR, err.Error()))
		}
		c.JSON(http.StatusOK, gin.H{"message": "notification received"})
		return
	}

	slog.Info("notification applied", slog.String(logkey.TraceID, traceID),
		slog.Int64(logkey.OrderID, out.OrderID),
		slog.String("payment_status", out.PaymentStatus),
		slog.String("order_status", out.OrderStatus))

	h.publishOutcome(c.Request.Context(), traceID, out)

	c.JSON(http.StatusOK, gin.H{"message": "notification received"})
}

// publishOutcome emits the order lifecycle event for settled or cancelled
// payments. Best effort: the webhook response never waits on the broker.
func (h *Handler) publishOutcome(ctx context.Context, traceID string, out reconcile.Outcome) {
	if h.events == nil {
		return
	}

	var topic string
	var payload any
	switch out.PaymentStatus {
	case orders.PaymentSuccess:
		amount := amountOf(ctx, h.ledger, out.OrderID)
		topic = kafka.TopicOrderPaid
		payload = kafka.OrderPaidEvent{
			OrderID:   out.OrderID,
			UserID:    out.UserID,
			Amount:    amount,
			CreatedAt: time.Now().UTC(),
		}
	case orders.PaymentFailure:
		topic = kafka.TopicOrderCancelled
		payload = kafka.OrderCancelledEvent{
			OrderID:   out.OrderID,
			UserID:    out.UserID,
			CreatedAt: time.Now().UTC(),
		}
	default:
		return
	}

	value, err := json.Marshal(payload)
	if err != nil {
		slog.Error("event marshal failed", slog.String(logkey.TraceID, traceID),
			slog.String(logkey.ERROR, err.Error()))
		return
	}
	key := []byte(strconv.FormatInt(out.OrderID, 10))

	go func() {
		if err := h.events.ProduceMessage(topic, key, value); err != nil {
			slog.Error("event publish failed", slog.String(logkey.TraceID, traceID),
				slog.String("topic", topic), slog.String(logkey.ERROR, err.Error()))
		}
	}()
}

func amountOf(ctx context.Context, ledger OrderLedger, orderID int64) decimal.Decimal {
	order, err := ledger.GetByID(ctx, orderID)
	if err != nil {
		return decimal.Zero
	}
	return order.Total
}
