package service

import (
	"context"
	"time"

	"tornado_miniapp/internal/ads"
	"tornado_miniapp/internal/cache"
	"tornado_miniapp/internal/model"
	"tornado_miniapp/internal/money"
	"tornado_miniapp/internal/ratelimit"
	"tornado_miniapp/internal/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/xssnick/tonutils-go/address"
)

type WithdrawalService struct {
	repo     WithdrawalRepository
	gate     *ClaimGate
	cache    *cache.Cache
	notifier Notifier
	rewards  Rewards
}

func NewWithdrawalService(repo WithdrawalRepository, gate *ClaimGate, c *cache.Cache, notifier Notifier, rewards Rewards) *WithdrawalService {
	return &WithdrawalService{
		repo:     repo,
		gate:     gate,
		cache:    c,
		notifier: notifier,
		rewards:  rewards,
	}
}

// CreateWithdrawal opens a pending payout after the claim gate passes. The
// balance and cooldown checks both live in the debit statement, so a stale
// in-memory view can never overdraw an account.
func (s *WithdrawalService) CreateWithdrawal(ctx context.Context, userID int64, wallet string, amount money.Amount) (*model.Withdrawal, error) {
	if amount < s.rewards.MinimumWithdraw {
		return nil, ErrBelowMinimum
	}
	if _, err := address.ParseAddr(wallet); err != nil {
		return nil, ErrInvalidWallet
	}

	user, err := s.repo.GetUserByTelegramID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user.Banned() {
		return nil, ErrUserBanned
	}

	release, err := s.gate.Acquire(userID, "withdrawal")
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.gate.Allow(userID, ratelimit.ActionWithdrawal); err != nil {
		return nil, err
	}
	if err := s.gate.ShowAd(ctx, userID, ads.SlotWithdrawal); err != nil {
		return nil, err
	}

	w := &model.Withdrawal{
		ID:             uuid.New(),
		UserTelegramID: userID,
		WalletAddress:  wallet,
		Amount:         amount,
		Status:         model.WithdrawalStatusPending,
		CreatedAt:      time.Now(),
	}
	if err := s.repo.CreateWithdrawal(ctx, w, s.rewards.WithdrawalCooldown); err != nil {
		return nil, err
	}

	s.cache.Delete(userCacheKey(userID))
	s.cache.Delete(statsCacheKey)
	s.notifier.Notify(userID, model.Notification{
		Type: "withdrawal_created",
		Payload: map[string]interface{}{
			"withdrawal_id": w.ID.String(),
			"amount":        amount.String(),
		},
	})
	return w, nil
}

func (s *WithdrawalService) GetUserWithdrawals(ctx context.Context, userID int64) ([]*model.Withdrawal, error) {
	withdrawals, err := s.repo.GetUserWithdrawals(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get withdrawals")
	}
	return withdrawals, nil
}

// ResolveWithdrawal settles a pending request from the admin side.
func (s *WithdrawalService) ResolveWithdrawal(ctx context.Context, id uuid.UUID, status model.WithdrawalStatus) error {
	userID, err := s.repo.ResolveWithdrawal(ctx, id, status)
	if err != nil {
		return err
	}

	s.cache.Delete(userCacheKey(userID))
	s.cache.Delete(statsCacheKey)
	s.notifier.Notify(userID, model.Notification{
		Type: "withdrawal_resolved",
		Payload: map[string]interface{}{
			"withdrawal_id": id.String(),
			"status":        string(status),
		},
	})
	return nil
}
