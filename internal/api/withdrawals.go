package api

import (
	"net/http"

	"tornado_miniapp/internal/middleware"
	"tornado_miniapp/internal/model"
	"tornado_miniapp/internal/money"
	"tornado_miniapp/internal/service"
	"tornado_miniapp/pkg/auth"
	"tornado_miniapp/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type withdrawalRoutes struct {
	ws service.WithdrawalServiceI
}

func NewWithdrawalRoutes(handler *gin.RouterGroup, ws service.WithdrawalServiceI, a *auth.TelegramAuth, authz *middleware.Authorization) {
	r := &withdrawalRoutes{ws: ws}
	h := handler.Group("/withdrawals")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.POST("/", r.CreateWithdrawal)
		h.GET("/", r.GetUserWithdrawals)
		h.PATCH("/:withdrawal_id", authz.AdminOnly(), r.ResolveWithdrawal)
	}
}

// CreateWithdrawalRequest takes amount_ton as a number or a numeric string;
// mini-app clients send both.
type CreateWithdrawalRequest struct {
	WalletAddress string      `json:"wallet_address" binding:"required"`
	AmountTON     interface{} `json:"amount_ton" binding:"required"`
}

func (r *withdrawalRoutes) CreateWithdrawal(c *gin.Context) {
	log := logger.Logger()

	var req CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	amount := money.FromTON(money.SafeNumber(req.AmountTON))
	if amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	user, ok := currentUser(c)
	if !ok {
		return
	}

	w, err := r.ws.CreateWithdrawal(c.Request.Context(), user.ID, req.WalletAddress, amount)
	if err != nil {
		respondClaimError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":     w.ID,
		"amount": w.Amount.String(),
		"status": w.Status,
	})
}

func (r *withdrawalRoutes) GetUserWithdrawals(c *gin.Context) {
	log := logger.Logger()

	user, ok := currentUser(c)
	if !ok {
		return
	}

	withdrawals, err := r.ws.GetUserWithdrawals(c.Request.Context(), user.ID)
	if err != nil {
		log.Error("failed to get withdrawals", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get withdrawals"})
		return
	}

	out := make([]gin.H, len(withdrawals))
	for i, w := range withdrawals {
		out[i] = gin.H{
			"id":             w.ID,
			"wallet_address": w.WalletAddress,
			"amount":         w.Amount.String(),
			"status":         w.Status,
			"created_at":     w.CreatedAt,
		}
	}

	c.JSON(http.StatusOK, out)
}

type ResolveWithdrawalRequest struct {
	Status string `json:"status" binding:"required"`
}

func (r *withdrawalRoutes) ResolveWithdrawal(c *gin.Context) {
	log := logger.Logger()

	id, err := uuid.Parse(c.Param("withdrawal_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid withdrawal_id"})
		return
	}

	var req ResolveWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	status := model.WithdrawalStatus(req.Status)
	if status != model.WithdrawalStatusCompleted && status != model.WithdrawalStatusRejected {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be completed or rejected"})
		return
	}

	if err := r.ws.ResolveWithdrawal(c.Request.Context(), id, status); err != nil {
		respondClaimError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": status})
}
