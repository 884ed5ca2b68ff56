package api

import (
	"net/http"

	"tornado_miniapp/internal/service"
	"tornado_miniapp/pkg/auth"

	"github.com/gin-gonic/gin"
)

type adsRoutes struct {
	as service.AdsServiceI
}

func NewAdsRoutes(handler *gin.RouterGroup, as service.AdsServiceI, a *auth.TelegramAuth) {
	r := &adsRoutes{as: as}
	h := handler.Group("/ads")
	h.Use(a.TelegramAuthMiddleware())
	h.POST("/claim", r.ClaimAdReward)
}

func (r *adsRoutes) ClaimAdReward(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	reward, err := r.as.ClaimAdReward(c.Request.Context(), user.ID)
	if err != nil {
		respondClaimError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "claimed",
		"reward": reward.String(),
	})
}
