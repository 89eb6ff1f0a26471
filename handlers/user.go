package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"shop-api/internal/users"
	"shop-api/pkg/ctxmanage"
	"shop-api/pkg/logkey"
)

// Register creates an account and returns the public profile.
func (h *Handler) Register(c *gin.Context) {
	traceID := ctxmanage.GetTraceIdOfRequest(c)

	var nu users.NewUser
	if err := c.ShouldBindJSON(&nu); err != nil {
		slog.Error("invalid register payload", slog.String(logkey.TraceID, traceID),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	if err := h.validate.Struct(nu); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	user, err := h.users.InsertUser(c.Request.Context(), nu)
	if err != nil {
		respondError(c, traceID, err)
		return
	}

	slog.Info("user registered", slog.String(logkey.TraceID, traceID),
		slog.Int64(logkey.UserID, user.ID))
	c.JSON(http.StatusCreated, gin.H{
		"message": "user registered",
		"user":    user,
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login verifies credentials and issues a signed token.
func (h *Handler) Login(c *gin.Context) {
	traceID := ctxmanage.GetTraceIdOfRequest(c)

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, traceID, err)
		return
	}

	token, err := h.keys.GenerateToken(user.ID, user.Role)
	if err != nil {
		respondError(c, traceID, err)
		return
	}

	slog.Info("user logged in", slog.String(logkey.TraceID, traceID),
		slog.Int64(logkey.UserID, user.ID))
	c.JSON(http.StatusOK, gin.H{"access_token": token})
}

// TopCustomers returns the five highest spending customers for the requested
// period.
func (h *Handler) TopCustomers(c *gin.Context) {
	traceID := ctxmanage.GetTraceIdOfRequest(c)

	period := c.DefaultQuery("period", "1 month")
	if !users.ValidPeriod(period) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid period"})
		return
	}

	top, err := h.users.TopCustomers(c.Request.Context(), period)
	if err != nil {
		respondError(c, traceID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"period":        period,
		"top_customers": top,
	})
}
