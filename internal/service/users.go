package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tornado_miniapp/internal/cache"
	"tornado_miniapp/internal/model"
	"tornado_miniapp/internal/repository"
	"tornado_miniapp/internal/telegram"
	"tornado_miniapp/pkg/logger"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type UserService struct {
	repo      UserRepository
	referrals ReferralRepository
	cache     *cache.Cache
	tg        TelegramClient
	notifier  Notifier
	rewards   Rewards

	welcomeChats   []string
	welcomeMessage telegram.WelcomeMessage
}

func NewUserService(
	repo UserRepository,
	referrals ReferralRepository,
	c *cache.Cache,
	tg TelegramClient,
	notifier Notifier,
	rewards Rewards,
	welcomeChats []string,
	welcomeMessage telegram.WelcomeMessage,
) *UserService {
	return &UserService{
		repo:           repo,
		referrals:      referrals,
		cache:          c,
		tg:             tg,
		notifier:       notifier,
		rewards:        rewards,
		welcomeChats:   welcomeChats,
		welcomeMessage: welcomeMessage,
	}
}

// RegisterUser creates the account on first contact and refreshes identity
// fields on every later one. A referral parameter on first contact opens a
// pending referral edge; the bonus waits for welcome verification.
func (s *UserService) RegisterUser(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.LastActive = now
	user.Status = model.UserStatusFree
	if user.ReferralCode == "" {
		user.ReferralCode = newReferralCode()
	}
	if user.ReferredBy != nil {
		if *user.ReferredBy == user.TelegramID {
			user.ReferredBy = nil
		} else {
			state := model.ReferralStatePending
			user.ReferralState = &state
		}
	}

	err := s.repo.CreateUser(ctx, user, s.rewards.ReferralSignup)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			if err := s.repo.TouchUser(ctx, user.TelegramID, user.Username, user.FirstName, now); err != nil {
				return fmt.Errorf("failed to refresh user: %w", err)
			}
			s.cache.Delete(userCacheKey(user.TelegramID))
			return nil
		}
		return fmt.Errorf("failed to register user: %w", err)
	}

	s.cache.Delete(statsCacheKey)
	s.sendWelcomeMessage(user.TelegramID)
	return nil
}

// sendWelcomeMessage delivers the one-shot onboarding message off the
// request path. The flag flip in the store decides the winner, so retries
// and races cannot double-send.
func (s *UserService) sendWelcomeMessage(userID int64) {
	go func() {
		log := logger.Logger()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		won, err := s.repo.MarkWelcomeMessageSent(ctx, userID)
		if err != nil {
			log.Warn("failed to mark welcome message", zap.Int64("user_id", userID), zap.Error(err))
			return
		}
		if !won {
			return
		}
		if err := s.tg.SendWelcome(userID, s.welcomeMessage); err != nil {
			log.Warn("failed to send welcome message", zap.Int64("user_id", userID), zap.Error(err))
		}
	}()
}

func (s *UserService) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	if cached := s.cache.Get(userCacheKey(telegramID)); cached != nil {
		if user, ok := cached.(*model.User); ok {
			return user, nil
		}
	}

	user, err := s.repo.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by telegram ID: %w", err)
	}

	s.cache.Set(userCacheKey(telegramID), user, cache.UserTTL)
	return user, nil
}

func (s *UserService) GetLeaderboard(ctx context.Context) ([]*model.User, error) {
	if cached := s.cache.Get(leaderboardCacheKey); cached != nil {
		if users, ok := cached.([]*model.User); ok {
			return users, nil
		}
	}

	users, err := s.repo.GetTopUsers(ctx, 100)
	if err != nil {
		return nil, fmt.Errorf("failed to get top users: %w", err)
	}

	s.cache.Set(leaderboardCacheKey, users, cache.DefaultTTL)
	return users, nil
}

func (s *UserService) GetUserReferrals(ctx context.Context, telegramID int64) ([]*model.UserReferral, error) {
	refs, err := s.repo.GetUserReferrals(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user referrals: %w", err)
	}
	return refs, nil
}

func (s *UserService) GetAppStats(ctx context.Context) (*model.AppStats, error) {
	if cached := s.cache.Get(statsCacheKey); cached != nil {
		if stats, ok := cached.(*model.AppStats); ok {
			return stats, nil
		}
	}

	stats, err := s.repo.GetAppStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get app stats: %w", err)
	}

	s.cache.Set(statsCacheKey, stats, cache.DefaultTTL)
	return stats, nil
}

// VerifyWelcome checks membership in every onboarding chat and credits the
// welcome reward once. Verification also settles the signup referral bonus
// for the user's referrer, exactly once.
func (s *UserService) VerifyWelcome(ctx context.Context, telegramID int64) error {
	user, err := s.repo.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if user.Banned() {
		return ErrUserBanned
	}
	if user.WelcomeTasksCompleted {
		return repository.ErrAlreadyClaimed
	}

	for _, chat := range s.welcomeChats {
		member, err := s.tg.IsChatMember(chat, telegramID)
		if err != nil {
			return fmt.Errorf("failed to check membership in %s: %w", chat, err)
		}
		if !member {
			return ErrNotMember
		}
	}

	now := time.Now()
	// Only referred users have a referral state to flip; everyone else keeps
	// a clean record.
	hasReferrer := user.ReferredBy != nil
	if err := s.repo.CompleteWelcomeTasks(ctx, telegramID, s.rewards.Welcome, hasReferrer, now); err != nil {
		return err
	}

	s.cache.Delete(userCacheKey(telegramID))
	s.notifier.Notify(telegramID, model.Notification{
		Type:    "welcome_completed",
		Payload: map[string]interface{}{"reward": s.rewards.Welcome.String()},
	})

	s.settleReferralBonus(ctx, telegramID, now)
	return nil
}

func (s *UserService) settleReferralBonus(ctx context.Context, referredID int64, now time.Time) {
	log := logger.Logger()

	edge, err := s.referrals.GetReferralEdge(ctx, referredID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Warn("failed to look up referral edge", zap.Int64("referred_id", referredID), zap.Error(err))
		}
		return
	}
	if edge.BonusGiven {
		return
	}

	bonus, err := s.referrals.VerifyReferral(ctx, edge.ReferrerID, referredID, now)
	if err != nil {
		if !errors.Is(err, repository.ErrAlreadyClaimed) {
			log.Warn("failed to settle referral bonus",
				zap.Int64("referrer_id", edge.ReferrerID),
				zap.Int64("referred_id", referredID),
				zap.Error(err))
		}
		return
	}

	s.cache.Delete(userCacheKey(edge.ReferrerID))
	s.notifier.Notify(edge.ReferrerID, model.Notification{
		Type: "referral_verified",
		Payload: map[string]interface{}{
			"referred_id": referredID,
			"bonus":       bonus.String(),
		},
	})
}

func newReferralCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func userCacheKey(telegramID int64) string {
	return fmt.Sprintf("user:%d", telegramID)
}

const (
	leaderboardCacheKey = "leaderboard"
	statsCacheKey       = "app_stats"
	tasksCacheKeyPrefix = "tasks"
)
