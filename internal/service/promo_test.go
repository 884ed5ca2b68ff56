package service

import (
	"context"
	"testing"
	"time"

	"tornado_miniapp/internal/ads"
	"tornado_miniapp/internal/cache"
	"tornado_miniapp/internal/model"
	"tornado_miniapp/internal/money"
	"tornado_miniapp/internal/ratelimit"
	"tornado_miniapp/internal/repository"
	"tornado_miniapp/internal/service/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type promoTestDeps struct {
	repo     *mocks.MockPromoRepository
	provider *mocks.MockAdProvider
	notifier *mocks.MockNotifier
	gate     *ClaimGate
	service  *PromoService
}

func newPromoTestDeps(clock func() time.Time) *promoTestDeps {
	d := &promoTestDeps{
		repo:     &mocks.MockPromoRepository{},
		provider: &mocks.MockAdProvider{},
		notifier: &mocks.MockNotifier{},
	}
	d.gate = NewClaimGate(ratelimit.New(nil, clock), d.provider)
	d.service = NewPromoService(d.repo, d.gate, cache.New(nil), d.notifier)
	return d
}

func TestPromoService_Redeem(t *testing.T) {
	t.Run("valid code is credited once", func(t *testing.T) {
		d := newPromoTestDeps(nil)
		d.repo.On("GetUserByTelegramID", mock.Anything, int64(1)).Return(freeUser(1), nil)
		d.provider.On("Show", mock.Anything, int64(1), ads.SlotPromoCode).Return(true, nil)
		d.repo.On("RedeemPromo", mock.Anything, int64(1), "SPRING25", mock.Anything).
			Return(money.FromTON(0.25), nil)
		d.notifier.On("Notify", int64(1), mock.MatchedBy(func(msg model.Notification) bool {
			return msg.Type == "promo_redeemed"
		})).Return()

		reward, err := d.service.Redeem(context.Background(), 1, "  spring25 ")
		assert.NoError(t, err)
		assert.Equal(t, money.FromTON(0.25), reward)
		d.repo.AssertExpectations(t)
	})

	t.Run("empty code is rejected", func(t *testing.T) {
		d := newPromoTestDeps(nil)
		_, err := d.service.Redeem(context.Background(), 1, "   ")
		assert.ErrorIs(t, err, ErrEmptyPromoCode)
	})

	t.Run("repeat redemption surfaces already claimed", func(t *testing.T) {
		d := newPromoTestDeps(nil)
		d.repo.On("GetUserByTelegramID", mock.Anything, int64(1)).Return(freeUser(1), nil)
		d.provider.On("Show", mock.Anything, int64(1), ads.SlotPromoCode).Return(true, nil)
		d.repo.On("RedeemPromo", mock.Anything, int64(1), "SPRING25", mock.Anything).
			Return(money.Amount(0), repository.ErrAlreadyClaimed)

		_, err := d.service.Redeem(context.Background(), 1, "SPRING25")
		assert.ErrorIs(t, err, repository.ErrAlreadyClaimed)
	})

	t.Run("exhausted code is refused", func(t *testing.T) {
		d := newPromoTestDeps(nil)
		d.repo.On("GetUserByTelegramID", mock.Anything, int64(1)).Return(freeUser(1), nil)
		d.provider.On("Show", mock.Anything, int64(1), ads.SlotPromoCode).Return(true, nil)
		d.repo.On("RedeemPromo", mock.Anything, int64(1), "GONE", mock.Anything).
			Return(money.Amount(0), repository.ErrPromoExhausted)

		_, err := d.service.Redeem(context.Background(), 1, "GONE")
		assert.ErrorIs(t, err, repository.ErrPromoExhausted)
	})

	t.Run("redemptions are rate limited", func(t *testing.T) {
		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		d := newPromoTestDeps(func() time.Time { return now })
		d.repo.On("GetUserByTelegramID", mock.Anything, int64(1)).Return(freeUser(1), nil)
		d.provider.On("Show", mock.Anything, int64(1), ads.SlotPromoCode).Return(true, nil)
		d.repo.On("RedeemPromo", mock.Anything, int64(1), mock.Anything, mock.Anything).
			Return(money.FromTON(0.01), nil)
		d.notifier.On("Notify", int64(1), mock.Anything).Return()

		// Five per five minutes.
		for i := 0; i < 5; i++ {
			_, err := d.service.Redeem(context.Background(), 1, "CODE")
			assert.NoError(t, err)
		}

		_, err := d.service.Redeem(context.Background(), 1, "CODE")
		var rateErr *RateLimitedError
		assert.ErrorAs(t, err, &rateErr)
		assert.Equal(t, string(ratelimit.ActionPromoCode), rateErr.Action)
	})
}

func TestAdsService_ClaimAdReward(t *testing.T) {
	newDeps := func() (*mocks.MockAdsRepository, *mocks.MockAdProvider, *mocks.MockNotifier, *AdsService) {
		repo := &mocks.MockAdsRepository{}
		provider := &mocks.MockAdProvider{}
		notifier := &mocks.MockNotifier{}
		gate := NewClaimGate(ratelimit.New(nil, nil), provider)
		svc := NewAdsService(repo, gate, cache.New(nil), notifier, Rewards{WatchAd: money.FromTON(0.001)})
		return repo, provider, notifier, svc
	}

	t.Run("verified view is credited", func(t *testing.T) {
		repo, provider, notifier, svc := newDeps()
		repo.On("GetUserByTelegramID", mock.Anything, int64(1)).Return(freeUser(1), nil)
		provider.On("Show", mock.Anything, int64(1), ads.SlotWatch).Return(true, nil)
		repo.On("CreditAdWatch", mock.Anything, int64(1), money.FromTON(0.001)).Return(nil)
		notifier.On("Notify", int64(1), mock.MatchedBy(func(msg model.Notification) bool {
			return msg.Type == "ad_reward_claimed"
		})).Return()

		reward, err := svc.ClaimAdReward(context.Background(), 1)
		assert.NoError(t, err)
		assert.Equal(t, money.FromTON(0.001), reward)
		repo.AssertExpectations(t)
	})

	t.Run("skipped ad pays nothing", func(t *testing.T) {
		repo, provider, _, svc := newDeps()
		repo.On("GetUserByTelegramID", mock.Anything, int64(1)).Return(freeUser(1), nil)
		provider.On("Show", mock.Anything, int64(1), ads.SlotWatch).Return(false, nil)

		_, err := svc.ClaimAdReward(context.Background(), 1)
		assert.ErrorIs(t, err, ErrAdNotShown)
		repo.AssertNotCalled(t, "CreditAdWatch", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("skipped ads do not spend the reward window", func(t *testing.T) {
		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		repo := &mocks.MockAdsRepository{}
		provider := &mocks.MockAdProvider{}
		notifier := &mocks.MockNotifier{}
		gate := NewClaimGate(ratelimit.New(nil, func() time.Time { return now }), provider)
		svc := NewAdsService(repo, gate, cache.New(nil), notifier, Rewards{WatchAd: money.FromTON(0.001)})

		repo.On("GetUserByTelegramID", mock.Anything, int64(1)).Return(freeUser(1), nil)
		provider.On("Show", mock.Anything, int64(1), ads.SlotWatch).Return(false, nil).Times(10)
		provider.On("Show", mock.Anything, int64(1), ads.SlotWatch).Return(true, nil)
		repo.On("CreditAdWatch", mock.Anything, int64(1), money.FromTON(0.001)).Return(nil)
		notifier.On("Notify", int64(1), mock.Anything).Return()

		// Ten skipped views in a row; the ten-per-window limit must still
		// leave room for the one that actually completes.
		for i := 0; i < 10; i++ {
			_, err := svc.ClaimAdReward(context.Background(), 1)
			assert.ErrorIs(t, err, ErrAdNotShown)
		}

		reward, err := svc.ClaimAdReward(context.Background(), 1)
		assert.NoError(t, err)
		assert.Equal(t, money.FromTON(0.001), reward)
		repo.AssertExpectations(t)
	})
}
