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

type taskTestDeps struct {
	repo      *mocks.MockTaskRepository
	referrals *mocks.MockReferralRepository
	tg        *mocks.MockTelegramClient
	provider  *mocks.MockAdProvider
	notifier  *mocks.MockNotifier
	gate      *ClaimGate
	service   *TaskService
}

func newTaskTestDeps() *taskTestDeps {
	d := &taskTestDeps{
		repo:      &mocks.MockTaskRepository{},
		referrals: &mocks.MockReferralRepository{},
		tg:        &mocks.MockTelegramClient{},
		provider:  &mocks.MockAdProvider{},
		notifier:  &mocks.MockNotifier{},
	}
	d.gate = NewClaimGate(ratelimit.New(nil, nil), d.provider)
	d.service = NewTaskService(d.repo, d.referrals, d.gate, cache.New(nil), d.tg, d.notifier,
		Rewards{ReferralPercentage: 10, TaskPrices: DefaultTaskPrices()})
	return d
}

func activeTask(id uuid.UUID) *model.Task {
	return &model.Task{
		ID:             id,
		Name:           "Join channel",
		URL:            "https://t.me/somechannel",
		Kind:           model.TaskKindChannel,
		Category:       model.TaskCategorySocial,
		Reward:         money.FromTON(0.1),
		MaxCompletions: 100,
		Status:         model.TaskStatusActive,
	}
}

func freeUser(id int64) *model.User {
	return &model.User{TelegramID: id, Status: model.UserStatusFree}
}

func TestTaskService_ClaimTask(t *testing.T) {
	taskID := uuid.New()

	t.Run("successful claim credits and notifies", func(t *testing.T) {
		d := newTaskTestDeps()
		task := activeTask(taskID)

		d.repo.On("GetUserByTelegramID", mock.Anything, int64(1)).Return(freeUser(1), nil)
		d.repo.On("GetTaskByID", mock.Anything, taskID).Return(task, nil)
		d.provider.On("Show", mock.Anything, int64(1), ads.SlotTask).Return(true, nil)
		d.repo.On("ClaimTask", mock.Anything, int64(1), taskID, mock.Anything).Return(task, nil)
		d.notifier.On("Notify", int64(1), mock.MatchedBy(func(msg model.Notification) bool {
			return msg.Type == "task_claimed"
		})).Return()
		d.referrals.On("GetReferralEdge", mock.Anything, int64(1)).
			Return(nil, repository.ErrNotFound).Maybe()

		reward, err := d.service.ClaimTask(context.Background(), 1, taskID)
		assert.NoError(t, err)
		assert.Equal(t, task.Reward, reward)
		d.repo.AssertExpectations(t)
		d.notifier.AssertExpectations(t)
	})

	t.Run("banned user is rejected before any work", func(t *testing.T) {
		d := newTaskTestDeps()
		reason := "fraud"
		d.repo.On("GetUserByTelegramID", mock.Anything, int64(2)).
			Return(&model.User{TelegramID: 2, Status: model.UserStatusBanned, BanReason: &reason}, nil)

		_, err := d.service.ClaimTask(context.Background(), 2, taskID)
		assert.ErrorIs(t, err, ErrUserBanned)
		d.repo.AssertNotCalled(t, "ClaimTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unwatched ad aborts before the store is touched", func(t *testing.T) {
		d := newTaskTestDeps()
		d.repo.On("GetUserByTelegramID", mock.Anything, int64(1)).Return(freeUser(1), nil)
		d.repo.On("GetTaskByID", mock.Anything, taskID).Return(activeTask(taskID), nil)
		d.provider.On("Show", mock.Anything, int64(1), ads.SlotTask).Return(false, nil)

		_, err := d.service.ClaimTask(context.Background(), 1, taskID)
		assert.ErrorIs(t, err, ErrAdNotShown)
		d.repo.AssertNotCalled(t, "ClaimTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("second claim of the same task reports busy", func(t *testing.T) {
		d := newTaskTestDeps()
		release, err := d.gate.Acquire(1, "task:"+taskID.String())
		assert.NoError(t, err)
		defer release()

		d.repo.On("GetUserByTelegramID", mock.Anything, int64(1)).Return(freeUser(1), nil)

		_, err = d.service.ClaimTask(context.Background(), 1, taskID)
		assert.ErrorIs(t, err, ErrClaimInProgress)
	})

	t.Run("repeat claim surfaces the idempotence sentinel", func(t *testing.T) {
		d := newTaskTestDeps()
		d.repo.On("GetUserByTelegramID", mock.Anything, int64(1)).Return(freeUser(1), nil)
		d.repo.On("GetTaskByID", mock.Anything, taskID).Return(activeTask(taskID), nil)
		d.provider.On("Show", mock.Anything, int64(1), ads.SlotTask).Return(true, nil)
		d.repo.On("ClaimTask", mock.Anything, int64(1), taskID, mock.Anything).
			Return(nil, repository.ErrAlreadyClaimed)

		_, err := d.service.ClaimTask(context.Background(), 1, taskID)
		assert.ErrorIs(t, err, repository.ErrAlreadyClaimed)
	})

	t.Run("explicit non-member is blocked", func(t *testing.T) {
		d := newTaskTestDeps()
		task := activeTask(taskID)
		task.CheckEnabled = true

		d.repo.On("GetUserByTelegramID", mock.Anything, int64(1)).Return(freeUser(1), nil)
		d.repo.On("GetTaskByID", mock.Anything, taskID).Return(task, nil)
		d.tg.On("IsBotAdmin", "@somechannel").Return(true, nil)
		d.tg.On("IsChatMember", "@somechannel", int64(1)).Return(false, nil)

		_, err := d.service.ClaimTask(context.Background(), 1, taskID)
		assert.ErrorIs(t, err, ErrNotMember)
		d.repo.AssertNotCalled(t, "ClaimTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unverifiable membership still credits", func(t *testing.T) {
		d := newTaskTestDeps()
		task := activeTask(taskID)
		task.CheckEnabled = true

		d.repo.On("GetUserByTelegramID", mock.Anything, int64(1)).Return(freeUser(1), nil)
		d.repo.On("GetTaskByID", mock.Anything, taskID).Return(task, nil)
		d.tg.On("IsBotAdmin", "@somechannel").Return(false, nil)
		d.provider.On("Show", mock.Anything, int64(1), ads.SlotTask).Return(true, nil)
		d.repo.On("ClaimTask", mock.Anything, int64(1), taskID, mock.Anything).Return(task, nil)
		d.notifier.On("Notify", int64(1), mock.Anything).Return()
		d.referrals.On("GetReferralEdge", mock.Anything, int64(1)).
			Return(nil, repository.ErrNotFound).Maybe()

		reward, err := d.service.ClaimTask(context.Background(), 1, taskID)
		assert.NoError(t, err)
		assert.Equal(t, task.Reward, reward)
		d.tg.AssertNotCalled(t, "IsChatMember", mock.Anything, mock.Anything)
	})
}

func TestTaskService_ReferralFanOut(t *testing.T) {
	reward := money.FromTON(0.5)

	t.Run("verified referral gets its share", func(t *testing.T) {
		d := newTaskTestDeps()
		d.referrals.On("GetReferralEdge", mock.Anything, int64(7)).Return(&model.ReferralEdge{
			ReferrerID: 3,
			ReferredID: 7,
			State:      model.ReferralStateVerified,
			BonusGiven: true,
		}, nil)
		d.referrals.On("RecordReferralPayout", mock.Anything, mock.MatchedBy(func(p *model.ReferralPayout) bool {
			return p.ReferrerID == 3 &&
				p.ReferredID == 7 &&
				p.TaskReward == reward &&
				p.Bonus == reward.Percent(10) &&
				p.Percentage == 10
		})).Return(nil)
		d.notifier.On("Notify", int64(3), mock.MatchedBy(func(msg model.Notification) bool {
			return msg.Type == "referral_payout"
		})).Return()

		d.service.fanOutReferralShare(7, reward)
		d.referrals.AssertExpectations(t)
		d.notifier.AssertExpectations(t)
	})

	t.Run("pending referral earns nothing", func(t *testing.T) {
		d := newTaskTestDeps()
		d.referrals.On("GetReferralEdge", mock.Anything, int64(7)).Return(&model.ReferralEdge{
			ReferrerID: 3,
			ReferredID: 7,
			State:      model.ReferralStatePending,
		}, nil)

		d.service.fanOutReferralShare(7, reward)
		d.referrals.AssertNotCalled(t, "RecordReferralPayout", mock.Anything, mock.Anything)
	})

	t.Run("banned referrer is skipped quietly", func(t *testing.T) {
		d := newTaskTestDeps()
		d.referrals.On("GetReferralEdge", mock.Anything, int64(7)).Return(&model.ReferralEdge{
			ReferrerID: 3,
			ReferredID: 7,
			State:      model.ReferralStateVerified,
		}, nil)
		d.referrals.On("RecordReferralPayout", mock.Anything, mock.Anything).
			Return(repository.ErrNotFound)

		d.service.fanOutReferralShare(7, reward)
		d.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
	})
}

func TestTaskService_StartTask(t *testing.T) {
	taskID := uuid.New()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	d := newTaskTestDeps()
	limiter := ratelimit.New(nil, func() time.Time { return now })
	d.gate = NewClaimGate(limiter, d.provider)
	d.service = NewTaskService(d.repo, d.referrals, d.gate, cache.New(nil), d.tg, d.notifier, Rewards{})

	d.repo.On("GetTaskByID", mock.Anything, taskID).Return(activeTask(taskID), nil)

	task, err := d.service.StartTask(context.Background(), 1, taskID)
	assert.NoError(t, err)
	assert.Equal(t, "https://t.me/somechannel", task.URL)

	// One start per three seconds.
	_, err = d.service.StartTask(context.Background(), 1, taskID)
	var rateErr *RateLimitedError
	assert.ErrorAs(t, err, &rateErr)
	assert.Equal(t, string(ratelimit.ActionTaskStart), rateErr.Action)
}

func TestTaskService_CreateTask(t *testing.T) {
	creator := int64(1)
	validTask := func() *model.Task {
		return &model.Task{
			Name:           "Join channel",
			URL:            "https://t.me/somechannel",
			Kind:           model.TaskKindChannel,
			Category:       model.TaskCategorySocial,
			Reward:         money.FromTON(0.1),
			MaxCompletions: 100,
			CreatedBy:      &creator,
		}
	}

	t.Run("rejects unsupported completion tier", func(t *testing.T) {
		d := newTaskTestDeps()
		task := validTask()
		task.MaxCompletions = 123

		err := d.service.CreateTask(context.Background(), task)
		assert.ErrorIs(t, err, ErrInvalidTaskTier)
	})

	t.Run("rejects non-telegram url", func(t *testing.T) {
		d := newTaskTestDeps()
		task := validTask()
		task.URL = "https://example.com/join"

		err := d.service.CreateTask(context.Background(), task)
		assert.Error(t, err)
	})

	t.Run("creator without funds cannot publish", func(t *testing.T) {
		d := newTaskTestDeps()
		d.repo.On("GetUserByTelegramID", mock.Anything, creator).Return(freeUser(creator), nil)

		err := d.service.CreateTask(context.Background(), validTask())
		assert.ErrorIs(t, err, repository.ErrInsufficientBalance)
		d.repo.AssertNotCalled(t, "CreateTask", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("banned creator cannot publish", func(t *testing.T) {
		d := newTaskTestDeps()
		banned := freeUser(creator)
		banned.Status = model.UserStatusBanned
		banned.Balance = money.FromTON(10)
		d.repo.On("GetUserByTelegramID", mock.Anything, creator).Return(banned, nil)

		err := d.service.CreateTask(context.Background(), validTask())
		assert.ErrorIs(t, err, ErrUserBanned)
		d.repo.AssertNotCalled(t, "CreateTask", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("publishing charges the tier price", func(t *testing.T) {
		d := newTaskTestDeps()
		funded := freeUser(creator)
		funded.Balance = money.FromTON(1)
		d.repo.On("GetUserByTelegramID", mock.Anything, creator).Return(funded, nil)
		d.repo.On("CreateTask", mock.Anything, mock.MatchedBy(func(task *model.Task) bool {
			return task.ID != uuid.Nil && task.Status == model.TaskStatusActive
		}), money.FromTON(0.1)).Return(nil)

		err := d.service.CreateTask(context.Background(), validTask())
		assert.NoError(t, err)
		d.repo.AssertExpectations(t)
	})

	t.Run("larger tier charges its own price", func(t *testing.T) {
		d := newTaskTestDeps()
		funded := freeUser(creator)
		funded.Balance = money.FromTON(5)
		task := validTask()
		task.MaxCompletions = 5000
		d.repo.On("GetUserByTelegramID", mock.Anything, creator).Return(funded, nil)
		d.repo.On("CreateTask", mock.Anything, mock.Anything, money.FromTON(5.0)).Return(nil)

		err := d.service.CreateTask(context.Background(), task)
		assert.NoError(t, err)
		d.repo.AssertExpectations(t)
	})
}
