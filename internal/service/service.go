package service

import (
	"context"
	"fmt"
	"time"

	"tornado_miniapp/internal/model"
	"tornado_miniapp/internal/money"
	"tornado_miniapp/internal/telegram"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserBanned      = errors.New("user is banned")
	ErrClaimInProgress = errors.New("another claim is already in progress")
	ErrAdNotShown      = errors.New("ad was not shown")
	ErrNotMember       = errors.New("not a member of the required chat")
	ErrInvalidWallet   = errors.New("invalid wallet address")
	ErrBelowMinimum    = errors.New("amount below minimum withdrawal")
)

// RateLimitedError carries the retry hint the limiter produced so handlers
// can surface it to the client.
type RateLimitedError struct {
	Action     string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited on %s, retry in %s", e.Action, e.RetryAfter)
}

// Rewards bundles the payout knobs shared by the claim flows.
type Rewards struct {
	WatchAd            money.Amount
	Welcome            money.Amount
	ReferralSignup     money.Amount
	ReferralPercentage int
	MinimumWithdraw    money.Amount
	WithdrawalCooldown time.Duration

	// TaskPrices maps a completion tier to what publishing a task of that
	// size costs the creator.
	TaskPrices map[int]money.Amount
}

// DefaultTaskPrices is the stock completions-to-price table.
func DefaultTaskPrices() map[int]money.Amount {
	return map[int]money.Amount{
		100:  money.FromTON(0.1),
		250:  money.FromTON(0.25),
		500:  money.FromTON(0.5),
		1000: money.FromTON(1.0),
		2500: money.FromTON(2.5),
		5000: money.FromTON(5.0),
	}
}

type Service struct {
	*UserService
	*TaskService
	*AdsService
	*PromoService
	*WithdrawalService
}

func NewService(
	userService *UserService,
	taskService *TaskService,
	adsService *AdsService,
	promoService *PromoService,
	withdrawalService *WithdrawalService,
) *Service {
	return &Service{
		UserService:       userService,
		TaskService:       taskService,
		AdsService:        adsService,
		PromoService:      promoService,
		WithdrawalService: withdrawalService,
	}
}

// Notifier delivers best-effort notifications to a user's open connections.
type Notifier interface {
	Notify(userID int64, msg model.Notification)
}

// NopNotifier drops every notification. Used until the socket hub is attached.
type NopNotifier struct{}

func (NopNotifier) Notify(int64, model.Notification) {}

// TelegramClient is the slice of the Bot API the claim flows depend on.
type TelegramClient interface {
	IsChatMember(chat string, userID int64) (bool, error)
	IsBotAdmin(chat string) (bool, error)
	SendWelcome(userID int64, msg telegram.WelcomeMessage) error
}

type UserServiceI interface {
	RegisterUser(ctx context.Context, user *model.User) error
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	GetLeaderboard(ctx context.Context) ([]*model.User, error)
	GetUserReferrals(ctx context.Context, telegramID int64) ([]*model.UserReferral, error)
	GetAppStats(ctx context.Context) (*model.AppStats, error)
	VerifyWelcome(ctx context.Context, telegramID int64) error
}

type TaskServiceI interface {
	CreateTask(ctx context.Context, task *model.Task) error
	GetTasks(ctx context.Context, userID int64, category *model.TaskCategory) ([]*model.Task, []uuid.UUID, error)
	StartTask(ctx context.Context, userID int64, taskID uuid.UUID) (*model.Task, error)
	ClaimTask(ctx context.Context, userID int64, taskID uuid.UUID) (money.Amount, error)
}

type AdsServiceI interface {
	ClaimAdReward(ctx context.Context, userID int64) (money.Amount, error)
}

type PromoServiceI interface {
	CreatePromoCode(ctx context.Context, code string, reward money.Amount, maxUses int) (*model.PromoCode, error)
	Redeem(ctx context.Context, userID int64, code string) (money.Amount, error)
}

type WithdrawalServiceI interface {
	CreateWithdrawal(ctx context.Context, userID int64, wallet string, amount money.Amount) (*model.Withdrawal, error)
	GetUserWithdrawals(ctx context.Context, userID int64) ([]*model.Withdrawal, error)
	ResolveWithdrawal(ctx context.Context, id uuid.UUID, status model.WithdrawalStatus) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User, referralBonus money.Amount) error
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	TouchUser(ctx context.Context, telegramID int64, username, firstName string, now time.Time) error
	GetTopUsers(ctx context.Context, limit int) ([]*model.User, error)
	GetUserReferrals(ctx context.Context, telegramID int64) ([]*model.UserReferral, error)
	CompleteWelcomeTasks(ctx context.Context, telegramID int64, reward money.Amount, verifyReferral bool, now time.Time) error
	MarkWelcomeMessageSent(ctx context.Context, telegramID int64) (bool, error)
	GetAppStats(ctx context.Context) (*model.AppStats, error)
}

type TaskRepository interface {
	CreateTask(ctx context.Context, task *model.Task, price money.Amount) error
	GetTasks(ctx context.Context, category *model.TaskCategory) ([]*model.Task, error)
	GetTaskByID(ctx context.Context, id uuid.UUID) (*model.Task, error)
	ClaimTask(ctx context.Context, userID int64, taskID uuid.UUID, now time.Time) (*model.Task, error)
	GetCompletedTaskIDs(ctx context.Context, telegramID int64) ([]uuid.UUID, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
}

type ReferralRepository interface {
	GetReferralEdge(ctx context.Context, referredID int64) (*model.ReferralEdge, error)
	VerifyReferral(ctx context.Context, referrerID, referredID int64, now time.Time) (money.Amount, error)
	RecordReferralPayout(ctx context.Context, payout *model.ReferralPayout) error
}

type AdsRepository interface {
	CreditAdWatch(ctx context.Context, telegramID int64, reward money.Amount) error
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
}

type PromoRepository interface {
	CreatePromoCode(ctx context.Context, promo *model.PromoCode) error
	RedeemPromo(ctx context.Context, userID int64, code string, now time.Time) (money.Amount, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
}

type WithdrawalRepository interface {
	CreateWithdrawal(ctx context.Context, w *model.Withdrawal, cooldown time.Duration) error
	GetUserWithdrawals(ctx context.Context, userID int64) ([]*model.Withdrawal, error)
	ResolveWithdrawal(ctx context.Context, id uuid.UUID, status model.WithdrawalStatus) (int64, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
}
