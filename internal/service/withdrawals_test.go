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

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

const testWallet = "EQD4FPq-PRD4YtG87wgL7AErgQwHUMFQ-JxyYw8jzBPhqsm3"

type withdrawalTestDeps struct {
	repo     *mocks.MockWithdrawalRepository
	provider *mocks.MockAdProvider
	notifier *mocks.MockNotifier
	service  *WithdrawalService
}

func newWithdrawalTestDeps() *withdrawalTestDeps {
	d := &withdrawalTestDeps{
		repo:     &mocks.MockWithdrawalRepository{},
		provider: &mocks.MockAdProvider{},
		notifier: &mocks.MockNotifier{},
	}
	gate := NewClaimGate(ratelimit.New(nil, nil), d.provider)
	d.service = NewWithdrawalService(d.repo, gate, cache.New(nil), d.notifier, Rewards{
		MinimumWithdraw:    money.FromTON(0.10),
		WithdrawalCooldown: 24 * time.Hour,
	})
	return d
}

func TestWithdrawalService_CreateWithdrawal(t *testing.T) {
	t.Run("opens a pending withdrawal", func(t *testing.T) {
		d := newWithdrawalTestDeps()
		d.repo.On("GetUserByTelegramID", mock.Anything, int64(1)).Return(freeUser(1), nil)
		d.provider.On("Show", mock.Anything, int64(1), ads.SlotWithdrawal).Return(true, nil)
		d.repo.On("CreateWithdrawal", mock.Anything, mock.MatchedBy(func(w *model.Withdrawal) bool {
			return w.UserTelegramID == 1 &&
				w.WalletAddress == testWallet &&
				w.Amount == money.FromTON(0.25) &&
				w.Status == model.WithdrawalStatusPending
		}), 24*time.Hour).Return(nil)
		d.notifier.On("Notify", int64(1), mock.MatchedBy(func(msg model.Notification) bool {
			return msg.Type == "withdrawal_created"
		})).Return()

		w, err := d.service.CreateWithdrawal(context.Background(), 1, testWallet, money.FromTON(0.25))
		assert.NoError(t, err)
		assert.Equal(t, model.WithdrawalStatusPending, w.Status)
		d.repo.AssertExpectations(t)
	})

	t.Run("amount below the minimum is rejected", func(t *testing.T) {
		d := newWithdrawalTestDeps()
		_, err := d.service.CreateWithdrawal(context.Background(), 1, testWallet, money.FromTON(0.05))
		assert.ErrorIs(t, err, ErrBelowMinimum)
		d.repo.AssertNotCalled(t, "CreateWithdrawal", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed wallet address is rejected", func(t *testing.T) {
		d := newWithdrawalTestDeps()
		_, err := d.service.CreateWithdrawal(context.Background(), 1, "not-a-wallet", money.FromTON(0.25))
		assert.ErrorIs(t, err, ErrInvalidWallet)
	})

	t.Run("store cooldown verdict wins over the limiter", func(t *testing.T) {
		d := newWithdrawalTestDeps()
		d.repo.On("GetUserByTelegramID", mock.Anything, int64(1)).Return(freeUser(1), nil)
		d.provider.On("Show", mock.Anything, int64(1), ads.SlotWithdrawal).Return(true, nil)
		d.repo.On("CreateWithdrawal", mock.Anything, mock.Anything, mock.Anything).
			Return(repository.ErrWithdrawalCooldown)

		_, err := d.service.CreateWithdrawal(context.Background(), 1, testWallet, money.FromTON(0.25))
		assert.ErrorIs(t, err, repository.ErrWithdrawalCooldown)
	})

	t.Run("insufficient balance surfaces from the debit", func(t *testing.T) {
		d := newWithdrawalTestDeps()
		d.repo.On("GetUserByTelegramID", mock.Anything, int64(1)).Return(freeUser(1), nil)
		d.provider.On("Show", mock.Anything, int64(1), ads.SlotWithdrawal).Return(true, nil)
		d.repo.On("CreateWithdrawal", mock.Anything, mock.Anything, mock.Anything).
			Return(repository.ErrInsufficientBalance)

		_, err := d.service.CreateWithdrawal(context.Background(), 1, testWallet, money.FromTON(0.25))
		assert.ErrorIs(t, err, repository.ErrInsufficientBalance)
	})

	t.Run("unwatched ad aborts the withdrawal", func(t *testing.T) {
		d := newWithdrawalTestDeps()
		d.repo.On("GetUserByTelegramID", mock.Anything, int64(1)).Return(freeUser(1), nil)
		d.provider.On("Show", mock.Anything, int64(1), ads.SlotWithdrawal).Return(false, nil)

		_, err := d.service.CreateWithdrawal(context.Background(), 1, testWallet, money.FromTON(0.25))
		assert.ErrorIs(t, err, ErrAdNotShown)
		d.repo.AssertNotCalled(t, "CreateWithdrawal", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestWithdrawalService_ResolveWithdrawal(t *testing.T) {
	d := newWithdrawalTestDeps()

	id := uuid.New()
	d.repo.On("ResolveWithdrawal", mock.Anything, id, model.WithdrawalStatusCompleted).
		Return(int64(1), nil)
	d.notifier.On("Notify", int64(1), mock.MatchedBy(func(msg model.Notification) bool {
		return msg.Type == "withdrawal_resolved"
	})).Return()

	err := d.service.ResolveWithdrawal(context.Background(), id, model.WithdrawalStatusCompleted)
	assert.NoError(t, err)
	d.repo.AssertExpectations(t)
	d.notifier.AssertExpectations(t)
}
