package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"shop-api/internal/products"
	"shop-api/pkg/ctxmanage"
)

// GetCart returns the user's cart with per-line subtotals and the cart total.
func (h *Handler) GetCart(c *gin.Context) {
	traceID := ctxmanage.GetTraceIdOfRequest(c)
	userID, ok := currentUserID(c)
	if !ok {
		abortUnauthenticated(c)
		return
	}

	items, err := h.carts.ItemsByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, traceID, err)
		return
	}

	type line struct {
		ID          int64           `json:"id"`
		ProductID   int64           `json:"product_id"`
		ProductName string          `json:"product_name"`
		Quantity    int             `json:"quantity"`
		UnitPrice   decimal.Decimal `json:"unit_price"`
		Subtotal    decimal.Decimal `json:"subtotal"`
	}

	total := decimal.Zero
	lines := make([]line, 0, len(items))
	for _, it := range items {
		sub := it.Subtotal()
		total = total.Add(sub)
		lines = append(lines, line{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Subtotal:    sub,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"items": lines,
		"total": total,
	})
}

type addToCartRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"omitempty,gte=1"`
}

// AddToCart puts a product into the cart, merging with an existing line for
// the same product.
func (h *Handler) AddToCart(c *gin.Context) {
	traceID := ctxmanage.GetTraceIdOfRequest(c)
	userID, ok := currentUserID(c)
	if !ok {
		abortUnauthenticated(c)
		return
	}

	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	p, err := h.catalog.GetByID(c.Request.Context(), req.ProductID)
	if err != nil {
		respondError(c, traceID, err)
		return
	}
	if p.Status == products.StatusSoldOut || p.Stock < req.Quantity {
		c.AbortWithStatusJSON(http.StatusBadRequest,
			gin.H{"message": "insufficient stock for " + p.Name})
		return
	}

	item, created, err := h.carts.Add(c.Request.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		respondError(c, traceID, err)
		return
	}

	status := http.StatusOK
	msg := "cart item updated"
	if created {
		status = http.StatusCreated
		msg = "item added to cart"
	}
	c.JSON(status, gin.H{"message": msg, "item": item})
}

type updateCartRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

// UpdateCartItem changes the quantity of one cart line.
func (h *Handler) UpdateCartItem(c *gin.Context) {
	traceID := ctxmanage.GetTraceIdOfRequest(c)
	userID, ok := currentUserID(c)
	if !ok {
		abortUnauthenticated(c)
		return
	}

	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid cart item id"})
		return
	}

	var req updateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	// Validate against current stock before touching the row.
	items, err := h.carts.ItemsByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, traceID, err)
		return
	}
	for _, it := range items {
		if it.ID == itemID && req.Quantity > it.Stock {
			c.AbortWithStatusJSON(http.StatusBadRequest,
				gin.H{"message": "insufficient stock for " + it.ProductName})
			return
		}
	}

	item, err := h.carts.UpdateQuantity(c.Request.Context(), userID, itemID, req.Quantity)
	if err != nil {
		respondError(c, traceID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "cart item updated", "item": item})
}

// RemoveCartItem deletes one cart line.
func (h *Handler) RemoveCartItem(c *gin.Context) {
	traceID := ctxmanage.GetTraceIdOfRequest(c)
	userID, ok := currentUserID(c)
	if !ok {
		abortUnauthenticated(c)
		return
	}

	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid cart item id"})
		return
	}

	if err := h.carts.Remove(c.Request.Context(), userID, itemID); err != nil {
		respondError(c, traceID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "item removed from cart"})
}

// ClearCart empties the user's cart.
func (h *Handler) ClearCart(c *gin.Context) {
	traceID := ctxmanage.GetTraceIdOfRequest(c)
	userID, ok := currentUserID(c)
	if !ok {
		abortUnauthenticated(c)
		return
	}

	if err := h.carts.Clear(c.Request.Context(), userID); err != nil {
		respondError(c, traceID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "cart cleared"})
}
