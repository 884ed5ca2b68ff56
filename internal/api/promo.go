package api

import (
	"net/http"

	"tornado_miniapp/internal/middleware"
	"tornado_miniapp/internal/money"
	"tornado_miniapp/internal/service"
	"tornado_miniapp/pkg/auth"
	"tornado_miniapp/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
)

type promoRoutes struct {
	ps service.PromoServiceI
}

func NewPromoRoutes(handler *gin.RouterGroup, ps service.PromoServiceI, a *auth.TelegramAuth, authz *middleware.Authorization) {
	r := &promoRoutes{ps: ps}
	h := handler.Group("/promo")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.POST("/redeem", r.Redeem)
		h.POST("/", authz.AdminOnly(), r.CreatePromoCode)
	}
}

type RedeemPromoRequest struct {
	Code string `json:"code" binding:"required"`
}

func (r *promoRoutes) Redeem(c *gin.Context) {
	log := logger.Logger()

	var req RedeemPromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, ok := currentUser(c)
	if !ok {
		return
	}

	reward, err := r.ps.Redeem(c.Request.Context(), user.ID, req.Code)
	if err != nil {
		respondClaimError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "redeemed",
		"reward": reward.String(),
	})
}

type CreatePromoCodeRequest struct {
	Code      string  `json:"code" binding:"required"`
	RewardTON float64 `json:"reward_ton" binding:"required"`
	MaxUses   int     `json:"max_uses"`
}

func (r *promoRoutes) CreatePromoCode(c *gin.Context) {
	log := logger.Logger()

	var req CreatePromoCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	promo, err := r.ps.CreatePromoCode(c.Request.Context(), req.Code, money.FromTON(req.RewardTON), req.MaxUses)
	if err != nil {
		log.Error("failed to create promo code", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":   promo.ID,
		"code": promo.Code,
	})
}
