package service

import (
	"context"
	"strings"
	"time"

	"tornado_miniapp/internal/ads"
	"tornado_miniapp/internal/cache"
	"tornado_miniapp/internal/model"
	"tornado_miniapp/internal/money"
	"tornado_miniapp/internal/ratelimit"
	"tornado_miniapp/internal/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrEmptyPromoCode = errors.New("promo code is empty")

type PromoService struct {
	repo     PromoRepository
	gate     *ClaimGate
	cache    *cache.Cache
	notifier Notifier
}

func NewPromoService(repo PromoRepository, gate *ClaimGate, c *cache.Cache, notifier Notifier) *PromoService {
	return &PromoService{
		repo:     repo,
		gate:     gate,
		cache:    c,
		notifier: notifier,
	}
}

func (s *PromoService) CreatePromoCode(ctx context.Context, code string, reward money.Amount, maxUses int) (*model.PromoCode, error) {
	code = normalizePromoCode(code)
	if code == "" {
		return nil, ErrEmptyPromoCode
	}

	promo := &model.PromoCode{
		ID:        uuid.New(),
		Code:      code,
		Reward:    reward,
		MaxUses:   maxUses,
		Status:    model.PromoCodeStatusActive,
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreatePromoCode(ctx, promo); err != nil {
		return nil, err
	}
	return promo, nil
}

// Redeem runs the promo claim pipeline and credits the code's reward.
func (s *PromoService) Redeem(ctx context.Context, userID int64, code string) (money.Amount, error) {
	code = normalizePromoCode(code)
	if code == "" {
		return 0, ErrEmptyPromoCode
	}

	user, err := s.repo.GetUserByTelegramID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	if user.Banned() {
		return 0, ErrUserBanned
	}

	release, err := s.gate.Acquire(userID, "promo_code")
	if err != nil {
		return 0, err
	}
	defer release()

	if err := s.gate.Allow(userID, ratelimit.ActionPromoCode); err != nil {
		return 0, err
	}
	if err := s.gate.ShowAd(ctx, userID, ads.SlotPromoCode); err != nil {
		return 0, err
	}

	reward, err := s.repo.RedeemPromo(ctx, userID, code, time.Now())
	if err != nil {
		return 0, err
	}

	s.cache.Delete(userCacheKey(userID))
	s.notifier.Notify(userID, model.Notification{
		Type: "promo_redeemed",
		Payload: map[string]interface{}{
			"code":   code,
			"reward": reward.String(),
		},
	})
	return reward, nil
}

func normalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
