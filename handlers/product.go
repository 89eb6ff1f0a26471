package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"shop-api/pkg/ctxmanage"
)

// ListProducts returns the catalog, optionally filtered by a case-insensitive
// name search.
func (h *Handler) ListProducts(c *gin.Context) {
	traceID := ctxmanage.GetTraceIdOfRequest(c)

	list, err := h.catalog.List(c.Request.Context(), c.Query("search"))
	if err != nil {
		respondError(c, traceID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": list})
}

// GetProduct returns a single catalog entry.
func (h *Handler) GetProduct(c *gin.Context) {
	traceID := ctxmanage.GetTraceIdOfRequest(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid product id"})
		return
	}

	p, err := h.catalog.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, traceID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"product": p})
}
