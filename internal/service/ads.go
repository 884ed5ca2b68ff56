package service

import (
	"context"

	"tornado_miniapp/internal/ads"
	"tornado_miniapp/internal/cache"
	"tornado_miniapp/internal/model"
	"tornado_miniapp/internal/money"
	"tornado_miniapp/internal/ratelimit"
	"tornado_miniapp/internal/repository"

	"github.com/pkg/errors"
)

type AdsService struct {
	repo     AdsRepository
	gate     *ClaimGate
	cache    *cache.Cache
	notifier Notifier
	rewards  Rewards
}

func NewAdsService(repo AdsRepository, gate *ClaimGate, c *cache.Cache, notifier Notifier, rewards Rewards) *AdsService {
	return &AdsService{
		repo:     repo,
		gate:     gate,
		cache:    c,
		notifier: notifier,
		rewards:  rewards,
	}
}

// ClaimAdReward credits the watch-to-earn reward after a verified ad view.
func (s *AdsService) ClaimAdReward(ctx context.Context, userID int64) (money.Amount, error) {
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

	release, err := s.gate.Acquire(userID, "ad_reward")
	if err != nil {
		return 0, err
	}
	defer release()

	if err := s.gate.Check(userID, ratelimit.ActionAdReward); err != nil {
		return 0, err
	}
	if err := s.gate.ShowAd(ctx, userID, ads.SlotWatch); err != nil {
		return 0, err
	}

	if err := s.repo.CreditAdWatch(ctx, userID, s.rewards.WatchAd); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}

	// The window slot is spent only on a credited view; a skipped or failed
	// ad leaves the user's allowance untouched.
	s.gate.Record(userID, ratelimit.ActionAdReward)

	s.cache.Delete(userCacheKey(userID))
	s.notifier.Notify(userID, model.Notification{
		Type:    "ad_reward_claimed",
		Payload: map[string]interface{}{"reward": s.rewards.WatchAd.String()},
	})

	return s.rewards.WatchAd, nil
}
