package api

import (
	"net/http"

	"tornado_miniapp/internal/repository"
	"tornado_miniapp/internal/service"
	"tornado_miniapp/pkg/auth"
	"tornado_miniapp/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// currentUser pulls the authenticated identity set by the auth middleware,
// aborting the request when it is missing.
func currentUser(c *gin.Context) (*auth.TelegramUserData, bool) {
	log := logger.Logger()

	user, ok := auth.UserFromContext(c)
	if !ok {
		log.Error("telegram user data not found in context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return nil, false
	}
	return user, true
}

// respondClaimError translates the claim pipeline's failure modes to HTTP.
// An already-claimed repeat is reported as success with a notice so clients
// treat retries as benign.
func respondClaimError(c *gin.Context, err error) {
	log := logger.Logger()

	var rateErr *service.RateLimitedError
	switch {
	case errors.As(err, &rateErr):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":               "rate limited",
			"action":              rateErr.Action,
			"retry_after_seconds": int(rateErr.RetryAfter.Seconds()),
		})
	case errors.Is(err, service.ErrClaimInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "claim already in progress"})
	case errors.Is(err, service.ErrAdNotShown):
		c.JSON(http.StatusBadRequest, gin.H{"error": "ad was not watched"})
	case errors.Is(err, service.ErrUserBanned):
		c.JSON(http.StatusForbidden, gin.H{"error": "account is banned"})
	case errors.Is(err, service.ErrNotMember):
		c.JSON(http.StatusForbidden, gin.H{"error": "join the required chat first"})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, repository.ErrAlreadyClaimed):
		c.JSON(http.StatusOK, gin.H{"status": "already_claimed"})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, repository.ErrTaskInactive), errors.Is(err, repository.ErrTaskCapReached):
		c.JSON(http.StatusGone, gin.H{"error": "task is no longer available"})
	case errors.Is(err, repository.ErrPromoExhausted):
		c.JSON(http.StatusGone, gin.H{"error": "promo code is no longer available"})
	case errors.Is(err, repository.ErrInsufficientBalance):
		c.JSON(http.StatusBadRequest, gin.H{"error": "insufficient balance"})
	case errors.Is(err, repository.ErrWithdrawalCooldown):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "withdrawal cooldown active"})
	case errors.Is(err, service.ErrBelowMinimum):
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount below minimum withdrawal"})
	case errors.Is(err, service.ErrInvalidWallet):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet address"})
	default:
		log.Error("claim failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
