package api

import (
	"net/http"
	"strconv"

	"tornado_miniapp/internal/model"
	"tornado_miniapp/internal/service"
	"tornado_miniapp/pkg/auth"
	"tornado_miniapp/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
)

type userRoutes struct {
	us service.UserServiceI
	a  *auth.TelegramAuth
}

func NewUserRoutes(handler *gin.RouterGroup, us service.UserServiceI, a *auth.TelegramAuth) {
	r := &userRoutes{us: us, a: a}
	h := handler.Group("/users")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.POST("/", r.RegisterUser)
		h.GET("/:telegram_id", r.GetUserByTelegramID)
		h.GET("/:telegram_id/referrals", r.GetUserReferrals)
		h.GET("/leaderboard", r.GetLeaderboard)
		h.POST("/welcome/verify", r.VerifyWelcome)
	}

	s := handler.Group("/stats")
	s.Use(a.TelegramAuthMiddleware())
	s.GET("/", r.GetAppStats)
}

type RegisterUserRequest struct {
	ReferredBy *int64 `json:"referred_by"`
}

func (r *userRoutes) RegisterUser(c *gin.Context) {
	log := logger.Logger()

	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, ok := currentUser(c)
	if !ok {
		return
	}

	u := &model.User{
		TelegramID: user.ID,
		Username:   user.Username,
		FirstName:  user.FirstName,
		PhotoURL:   user.PhotoURL,
		ReferredBy: req.ReferredBy,
	}

	if err := r.us.RegisterUser(c.Request.Context(), u); err != nil {
		log.Error("failed to register user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register user"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"telegram_id":   u.TelegramID,
		"referral_code": u.ReferralCode,
	})
}

func (r *userRoutes) GetUserByTelegramID(c *gin.Context) {
	log := logger.Logger()

	id, err := strconv.ParseInt(c.Param("telegram_id"), 10, 64)
	if err != nil {
		log.Error("failed to parse telegram_id", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid telegram_id"})
		return
	}

	user, err := r.us.GetUserByTelegramID(c.Request.Context(), id)
	if err != nil {
		log.Error("failed to get user", zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"error": "no user associated with the provided telegram_id"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"telegram_id":             user.TelegramID,
		"username":                user.Username,
		"first_name":              user.FirstName,
		"photo_url":               user.PhotoURL,
		"balance":                 user.Balance.String(),
		"total_earned":            user.TotalEarned.String(),
		"total_withdrawn":         user.TotalWithdrawn.String(),
		"total_tasks":             user.TotalTasks,
		"total_ads":               user.TotalAds,
		"total_promo_codes":       user.TotalPromoCodes,
		"referral_code":           user.ReferralCode,
		"referrals":               user.Referrals,
		"referral_earnings":       user.ReferralEarnings.String(),
		"welcome_tasks_completed": user.WelcomeTasksCompleted,
		"created_at":              user.CreatedAt,
	})
}

func (r *userRoutes) GetUserReferrals(c *gin.Context) {
	log := logger.Logger()

	id, err := strconv.ParseInt(c.Param("telegram_id"), 10, 64)
	if err != nil {
		log.Error("failed to parse telegram_id", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid telegram_id"})
		return
	}

	referrals, err := r.us.GetUserReferrals(c.Request.Context(), id)
	if err != nil {
		log.Error("failed to get user referrals", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user referrals"})
		return
	}

	out := make([]gin.H, len(referrals))
	for i, ref := range referrals {
		out[i] = gin.H{
			"telegram_id": ref.TelegramID,
			"username":    ref.Username,
			"first_name":  ref.FirstName,
			"photo_url":   ref.PhotoURL,
			"state":       ref.State,
			"bonus_given": ref.BonusGiven,
			"joined_at":   ref.JoinedAt,
		}
	}

	c.JSON(http.StatusOK, out)
}

func (r *userRoutes) GetLeaderboard(c *gin.Context) {
	log := logger.Logger()

	users, err := r.us.GetLeaderboard(c.Request.Context())
	if err != nil {
		log.Error("failed to get leaderboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get leaderboard"})
		return
	}

	var response []gin.H
	for _, user := range users {
		response = append(response, gin.H{
			"telegram_id":  user.TelegramID,
			"username":     user.Username,
			"first_name":   user.FirstName,
			"photo_url":    user.PhotoURL,
			"total_earned": user.TotalEarned.String(),
			"referrals":    user.Referrals,
		})
	}

	c.JSON(http.StatusOK, response)
}

func (r *userRoutes) VerifyWelcome(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if err := r.us.VerifyWelcome(c.Request.Context(), user.ID); err != nil {
		respondClaimError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "verified"})
}

func (r *userRoutes) GetAppStats(c *gin.Context) {
	log := logger.Logger()

	stats, err := r.us.GetAppStats(c.Request.Context())
	if err != nil {
		log.Error("failed to get app stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get app stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_users":       stats.TotalUsers,
		"total_withdrawals": stats.TotalWithdrawals,
		"total_payments":    stats.TotalPayments.String(),
	})
}
