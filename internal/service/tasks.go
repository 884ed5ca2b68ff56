package service

import (
	"context"
	"fmt"
	"time"

	"tornado_miniapp/internal/ads"
	"tornado_miniapp/internal/cache"
	"tornado_miniapp/internal/model"
	"tornado_miniapp/internal/money"
	"tornado_miniapp/internal/ratelimit"
	"tornado_miniapp/internal/repository"
	"tornado_miniapp/internal/telegram"
	"tornado_miniapp/pkg/logger"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var ErrInvalidTaskTier = errors.New("unsupported max completions tier")

type TaskService struct {
	repo      TaskRepository
	referrals ReferralRepository
	gate      *ClaimGate
	cache     *cache.Cache
	tg        TelegramClient
	notifier  Notifier
	rewards   Rewards
}

func NewTaskService(
	repo TaskRepository,
	referrals ReferralRepository,
	gate *ClaimGate,
	c *cache.Cache,
	tg TelegramClient,
	notifier Notifier,
	rewards Rewards,
) *TaskService {
	return &TaskService{
		repo:      repo,
		referrals: referrals,
		gate:      gate,
		cache:     c,
		tg:        tg,
		notifier:  notifier,
		rewards:   rewards,
	}
}

// CreateTask publishes a user-funded task. The completion tier fixes the
// price the creator pays; the debit and the insert land in one transaction
// so a task can never go live unpaid.
func (s *TaskService) CreateTask(ctx context.Context, task *model.Task) error {
	price, ok := s.rewards.TaskPrices[task.MaxCompletions]
	if !ok {
		return ErrInvalidTaskTier
	}
	if _, err := telegram.ChatFromURL(task.URL); err != nil {
		return fmt.Errorf("invalid task url: %w", err)
	}
	if task.CreatedBy == nil {
		return ErrUserNotFound
	}

	creator, err := s.repo.GetUserByTelegramID(ctx, *task.CreatedBy)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if creator.Banned() {
		return ErrUserBanned
	}
	if creator.Balance < price {
		return repository.ErrInsufficientBalance
	}

	task.ID = uuid.New()
	task.Status = model.TaskStatusActive
	task.CreatedAt = time.Now()

	if err := s.repo.CreateTask(ctx, task, price); err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	s.cache.Delete(userCacheKey(*task.CreatedBy))
	s.cache.Delete(tasksCacheKey(nil))
	s.cache.Delete(tasksCacheKey(&task.Category))
	return nil
}

// GetTasks returns the active task list plus the IDs the user already
// claimed. The list is cached briefly; the per-user completion set is not.
func (s *TaskService) GetTasks(ctx context.Context, userID int64, category *model.TaskCategory) ([]*model.Task, []uuid.UUID, error) {
	var tasks []*model.Task
	if cached := s.cache.Get(tasksCacheKey(category)); cached != nil {
		tasks, _ = cached.([]*model.Task)
	}
	if tasks == nil {
		var err error
		tasks, err = s.repo.GetTasks(ctx, category)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get tasks: %w", err)
		}
		s.cache.Set(tasksCacheKey(category), tasks, cache.TaskListTTL)
	}

	completed, err := s.repo.GetCompletedTaskIDs(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get completed tasks: %w", err)
	}
	return tasks, completed, nil
}

// StartTask paces link-opening and hands back the task so the client can
// open its URL. Nothing is persisted; the claim happens later.
func (s *TaskService) StartTask(ctx context.Context, userID int64, taskID uuid.UUID) (*model.Task, error) {
	if err := s.gate.Allow(userID, ratelimit.ActionTaskStart); err != nil {
		return nil, err
	}

	task, err := s.repo.GetTaskByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if task.Status != model.TaskStatusActive {
		return nil, repository.ErrTaskInactive
	}
	return task, nil
}

// ClaimTask runs the full claim pipeline: single-flight, membership check,
// rewarded ad, then the transactional credit. A referral share fans out
// asynchronously after the credit lands.
func (s *TaskService) ClaimTask(ctx context.Context, userID int64, taskID uuid.UUID) (money.Amount, error) {
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

	release, err := s.gate.Acquire(userID, "task:"+taskID.String())
	if err != nil {
		return 0, err
	}
	defer release()

	task, err := s.repo.GetTaskByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, repository.ErrNotFound
		}
		return 0, err
	}

	if task.CheckEnabled {
		if err := s.checkMembership(userID, task); err != nil {
			return 0, err
		}
	}

	if err := s.gate.ShowAd(ctx, userID, ads.SlotTask); err != nil {
		return 0, err
	}

	claimed, err := s.repo.ClaimTask(ctx, userID, taskID, time.Now())
	if err != nil {
		return 0, err
	}

	s.cache.Delete(userCacheKey(userID))
	s.cache.Delete(tasksCacheKey(nil))
	s.cache.Delete(tasksCacheKey(&claimed.Category))

	s.notifier.Notify(userID, model.Notification{
		Type: "task_claimed",
		Payload: map[string]interface{}{
			"task_id": taskID.String(),
			"reward":  claimed.Reward.String(),
		},
	})

	go s.fanOutReferralShare(userID, claimed.Reward)
	return claimed.Reward, nil
}

// checkMembership blocks the claim only on a definite "not a member". An
// unverifiable check, because the bot is not admin of the chat or the Bot
// API failed, lets the claim through so real members are never punished
// for a misconfigured task.
func (s *TaskService) checkMembership(userID int64, task *model.Task) error {
	log := logger.Logger()

	chat, err := telegram.ChatFromURL(task.URL)
	if err != nil {
		log.Warn("task url not checkable, crediting without verification",
			zap.String("task_id", task.ID.String()), zap.Error(err))
		return nil
	}

	admin, err := s.tg.IsBotAdmin(chat)
	if err != nil || !admin {
		log.Warn("bot cannot verify membership, crediting without verification",
			zap.String("chat", chat), zap.Error(err))
		return nil
	}

	member, err := s.tg.IsChatMember(chat, userID)
	if err != nil {
		log.Warn("membership check failed, crediting without verification",
			zap.String("chat", chat), zap.Int64("user_id", userID), zap.Error(err))
		return nil
	}
	if !member {
		return ErrNotMember
	}
	return nil
}

// fanOutReferralShare pays the referrer their percentage of the task reward.
// It runs detached from the claim: a failure here is logged and never rolls
// the claim back.
func (s *TaskService) fanOutReferralShare(userID int64, reward money.Amount) {
	log := logger.Logger()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	edge, err := s.referrals.GetReferralEdge(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Warn("failed to look up referral edge", zap.Int64("referred_id", userID), zap.Error(err))
		}
		return
	}
	if edge.State != model.ReferralStateVerified {
		return
	}

	bonus := reward.Percent(s.rewards.ReferralPercentage)
	if bonus <= 0 {
		return
	}

	err = s.referrals.RecordReferralPayout(ctx, &model.ReferralPayout{
		ReferrerID: edge.ReferrerID,
		ReferredID: userID,
		TaskReward: reward,
		Bonus:      bonus,
		Percentage: s.rewards.ReferralPercentage,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		// ErrNotFound here means the referrer is banned or gone; skip quietly.
		if !errors.Is(err, repository.ErrNotFound) {
			log.Warn("failed to record referral payout",
				zap.Int64("referrer_id", edge.ReferrerID),
				zap.Int64("referred_id", userID),
				zap.Error(err))
		}
		return
	}

	s.cache.Delete(userCacheKey(edge.ReferrerID))
	s.notifier.Notify(edge.ReferrerID, model.Notification{
		Type: "referral_payout",
		Payload: map[string]interface{}{
			"referred_id": userID,
			"bonus":       bonus.String(),
		},
	})
}

func tasksCacheKey(category *model.TaskCategory) string {
	if category == nil {
		return tasksCacheKeyPrefix + ":all"
	}
	return tasksCacheKeyPrefix + ":" + string(*category)
}
