package mocks

import (
	"context"
	"time"

	"tornado_miniapp/internal/ads"
	"tornado_miniapp/internal/model"
	"tornado_miniapp/internal/money"
	"tornado_miniapp/internal/telegram"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, user *model.User, referralBonus money.Amount) error {
	args := m.Called(ctx, user, referralBonus)
	return args.Error(0)
}

func (m *MockUserRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) TouchUser(ctx context.Context, telegramID int64, username, firstName string, now time.Time) error {
	args := m.Called(ctx, telegramID, username, firstName, now)
	return args.Error(0)
}

func (m *MockUserRepository) GetTopUsers(ctx context.Context, limit int) ([]*model.User, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.User), args.Error(1)
}

func (m *MockUserRepository) GetUserReferrals(ctx context.Context, telegramID int64) ([]*model.UserReferral, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.UserReferral), args.Error(1)
}

func (m *MockUserRepository) CompleteWelcomeTasks(ctx context.Context, telegramID int64, reward money.Amount, verifyReferral bool, now time.Time) error {
	args := m.Called(ctx, telegramID, reward, verifyReferral, now)
	return args.Error(0)
}

func (m *MockUserRepository) MarkWelcomeMessageSent(ctx context.Context, telegramID int64) (bool, error) {
	args := m.Called(ctx, telegramID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) GetAppStats(ctx context.Context) (*model.AppStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AppStats), args.Error(1)
}

type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) CreateTask(ctx context.Context, task *model.Task, price money.Amount) error {
	args := m.Called(ctx, task, price)
	return args.Error(0)
}

func (m *MockTaskRepository) GetTasks(ctx context.Context, category *model.TaskCategory) ([]*model.Task, error) {
	args := m.Called(ctx, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Task), args.Error(1)
}

func (m *MockTaskRepository) GetTaskByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

func (m *MockTaskRepository) ClaimTask(ctx context.Context, userID int64, taskID uuid.UUID, now time.Time) (*model.Task, error) {
	args := m.Called(ctx, userID, taskID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

func (m *MockTaskRepository) GetCompletedTaskIDs(ctx context.Context, telegramID int64) ([]uuid.UUID, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockTaskRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

type MockReferralRepository struct {
	mock.Mock
}

func (m *MockReferralRepository) GetReferralEdge(ctx context.Context, referredID int64) (*model.ReferralEdge, error) {
	args := m.Called(ctx, referredID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReferralEdge), args.Error(1)
}

func (m *MockReferralRepository) VerifyReferral(ctx context.Context, referrerID, referredID int64, now time.Time) (money.Amount, error) {
	args := m.Called(ctx, referrerID, referredID, now)
	return args.Get(0).(money.Amount), args.Error(1)
}

func (m *MockReferralRepository) RecordReferralPayout(ctx context.Context, payout *model.ReferralPayout) error {
	args := m.Called(ctx, payout)
	return args.Error(0)
}

type MockAdsRepository struct {
	mock.Mock
}

func (m *MockAdsRepository) CreditAdWatch(ctx context.Context, telegramID int64, reward money.Amount) error {
	args := m.Called(ctx, telegramID, reward)
	return args.Error(0)
}

func (m *MockAdsRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

type MockPromoRepository struct {
	mock.Mock
}

func (m *MockPromoRepository) CreatePromoCode(ctx context.Context, promo *model.PromoCode) error {
	args := m.Called(ctx, promo)
	return args.Error(0)
}

func (m *MockPromoRepository) RedeemPromo(ctx context.Context, userID int64, code string, now time.Time) (money.Amount, error) {
	args := m.Called(ctx, userID, code, now)
	return args.Get(0).(money.Amount), args.Error(1)
}

func (m *MockPromoRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

type MockWithdrawalRepository struct {
	mock.Mock
}

func (m *MockWithdrawalRepository) CreateWithdrawal(ctx context.Context, w *model.Withdrawal, cooldown time.Duration) error {
	args := m.Called(ctx, w, cooldown)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) GetUserWithdrawals(ctx context.Context, userID int64) ([]*model.Withdrawal, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) ResolveWithdrawal(ctx context.Context, id uuid.UUID, status model.WithdrawalStatus) (int64, error) {
	args := m.Called(ctx, id, status)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWithdrawalRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

type MockTelegramClient struct {
	mock.Mock
}

func (m *MockTelegramClient) IsChatMember(chat string, userID int64) (bool, error) {
	args := m.Called(chat, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTelegramClient) IsBotAdmin(chat string) (bool, error) {
	args := m.Called(chat)
	return args.Bool(0), args.Error(1)
}

func (m *MockTelegramClient) SendWelcome(userID int64, msg telegram.WelcomeMessage) error {
	args := m.Called(userID, msg)
	return args.Error(0)
}

type MockAdProvider struct {
	mock.Mock
}

func (m *MockAdProvider) Show(ctx context.Context, userID int64, slot ads.Slot) (bool, error) {
	args := m.Called(ctx, userID, slot)
	return args.Bool(0), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(userID int64, msg model.Notification) {
	m.Called(userID, msg)
}
