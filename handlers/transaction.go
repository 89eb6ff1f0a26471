package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"shop-api/internal/orders"
	"shop-api/pkg/ctxmanage"
	"shop-api/pkg/logkey"
)

// Checkout converts the user's cart into an order and returns the gateway
// payment token.
func (h *Handler) Checkout(c *gin.Context) {
	traceID := ctxmanage.GetTraceIdOfRequest(c)
	userID, ok := currentUserID(c)
	if !ok {
		abortUnauthenticated(c)
		return
	}

	res, err := h.checkout.Checkout(c.Request.Context(), userID)
	if err != nil {
		respondError(c, traceID, err)
		return
	}

	slog.Info("checkout completed", slog.String(logkey.TraceID, traceID),
		slog.Int64(logkey.UserID, userID), slog.Int64(logkey.OrderID, res.Order.ID))
	c.JSON(http.StatusCreated, gin.H{
		"message": "order created",
		"order":   res.Order,
		"payment": gin.H{
			"status":       res.Payment.Status,
			"token":        res.Token,
			"redirect_url": res.RedirectURL,
		},
	})
}

// ListTransactions returns the user's order history, newest first.
func (h *Handler) ListTransactions(c *gin.Context) {
	traceID := ctxmanage.GetTraceIdOfRequest(c)
	userID, ok := currentUserID(c)
	if !ok {
		abortUnauthenticated(c)
		return
	}

	txs, err := h.ledger.TransactionsByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, traceID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// GetTransaction returns one of the user's orders with lines and payment.
func (h *Handler) GetTransaction(c *gin.Context) {
	traceID := ctxmanage.GetTraceIdOfRequest(c)
	userID, ok := currentUserID(c)
	if !ok {
		abortUnauthenticated(c)
		return
	}

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid transaction id"})
		return
	}

	tx, err := h.ledger.Transaction(c.Request.Context(), userID, orderID)
	if err != nil {
		respondError(c, traceID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateTransactionStatus lets an admin move an order through its lifecycle.
func (h *Handler) UpdateTransactionStatus(c *gin.Context) {
	traceID := ctxmanage.GetTraceIdOfRequest(c)

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid transaction id"})
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if !orders.ValidStatus(req.Status) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid status"})
		return
	}

	if _, err := h.ledger.GetByID(c.Request.Context(), orderID); err != nil {
		respondError(c, traceID, err)
		return
	}
	if err := h.ledger.UpdateStatus(c.Request.Context(), orderID, req.Status); err != nil {
		respondError(c, traceID, err)
		return
	}

	slog.Info("order status updated", slog.String(logkey.TraceID, traceID),
		slog.Int64(logkey.OrderID, orderID), slog.String("status", req.Status))
	c.JSON(http.StatusOK, gin.H{"message": "status updated", "status": req.Status})
}
