package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tornado_miniapp/internal/model"
	"tornado_miniapp/internal/money"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type User struct {
	TelegramID              int64                `db:"telegram_id"`
	Username                string               `db:"username"`
	FirstName               string               `db:"first_name"`
	PhotoURL                string               `db:"photo_url"`
	Balance                 money.Amount         `db:"balance"`
	TotalEarned             money.Amount         `db:"total_earned"`
	TotalWithdrawn          money.Amount         `db:"total_withdrawn"`
	TotalTasks              int                  `db:"total_tasks"`
	TotalAds                int                  `db:"total_ads"`
	TotalPromoCodes         int                  `db:"total_promo_codes"`
	ReferredBy              *int64               `db:"referred_by"`
	ReferralCode            string               `db:"referral_code"`
	Referrals               int                  `db:"referrals"`
	ReferralEarnings        money.Amount         `db:"referral_earnings"`
	ReferralState           *model.ReferralState `db:"referral_state"`
	Status                  model.UserStatus     `db:"status"`
	BanReason               *string              `db:"ban_reason"`
	WelcomeTasksCompleted   bool                 `db:"welcome_tasks_completed"`
	WelcomeTasksCompletedAt *time.Time           `db:"welcome_tasks_completed_at"`
	WelcomeMessageSent      bool                 `db:"welcome_message_sent"`
	LastWithdrawalAt        *time.Time           `db:"last_withdrawal_at"`
	CreatedAt               time.Time            `db:"created_at"`
	LastActive              time.Time            `db:"last_active"`
}

func (u *User) toModel() *model.User {
	return &model.User{
		TelegramID:              u.TelegramID,
		Username:                u.Username,
		FirstName:               u.FirstName,
		PhotoURL:                u.PhotoURL,
		Balance:                 u.Balance,
		TotalEarned:             u.TotalEarned,
		TotalWithdrawn:          u.TotalWithdrawn,
		TotalTasks:              u.TotalTasks,
		TotalAds:                u.TotalAds,
		TotalPromoCodes:         u.TotalPromoCodes,
		ReferredBy:              u.ReferredBy,
		ReferralCode:            u.ReferralCode,
		Referrals:               u.Referrals,
		ReferralEarnings:        u.ReferralEarnings,
		ReferralState:           u.ReferralState,
		Status:                  u.Status,
		BanReason:               u.BanReason,
		WelcomeTasksCompleted:   u.WelcomeTasksCompleted,
		WelcomeTasksCompletedAt: u.WelcomeTasksCompletedAt,
		WelcomeMessageSent:      u.WelcomeMessageSent,
		LastWithdrawalAt:        u.LastWithdrawalAt,
		CreatedAt:               u.CreatedAt,
		LastActive:              u.LastActive,
	}
}

// CreateUser inserts the user row together with the pending referral edge
// when the registration carried a referral parameter. The referrer's counters
// are untouched here; they move only when the edge is verified.
func (r *Repository) CreateUser(ctx context.Context, user *model.User, referralBonus money.Amount) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Insert("users").
			SetMap(map[string]interface{}{
				"telegram_id":    user.TelegramID,
				"username":       user.Username,
				"first_name":     user.FirstName,
				"photo_url":      user.PhotoURL,
				"referred_by":    user.ReferredBy,
				"referral_code":  user.ReferralCode,
				"referral_state": user.ReferralState,
				"status":         model.UserStatusFree,
				"created_at":     user.CreatedAt,
				"last_active":    user.CreatedAt,
			}).
			Suffix("ON CONFLICT (telegram_id) DO NOTHING").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build user insert query: %w", err)
		}

		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrUserExists
		}

		if user.ReferredBy != nil {
			edgeQuery, edgeArgs, err := squirrel.
				Insert("referrals").
				SetMap(map[string]interface{}{
					"referrer_id":  *user.ReferredBy,
					"referred_id":  user.TelegramID,
					"state":        model.ReferralStatePending,
					"bonus_given":  false,
					"bonus_amount": referralBonus,
					"joined_at":    user.CreatedAt,
				}).
				Suffix("ON CONFLICT (referrer_id, referred_id) DO NOTHING").
				PlaceholderFormat(squirrel.Dollar).
				ToSql()
			if err != nil {
				return fmt.Errorf("failed to build referral insert query: %w", err)
			}

			if _, err := tx.ExecContext(ctx, edgeQuery, edgeArgs...); err != nil {
				return fmt.Errorf("failed to insert referral edge: %w", err)
			}
		}

		return incrementStatTx(ctx, tx, StatTotalUsers, 1)
	})
}

func (r *Repository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	var user User
	query, args, err := squirrel.
		Select("*").
		From("users").
		Where(squirrel.Eq{"telegram_id": telegramID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &user, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return user.toModel(), nil
}

// TouchUser refreshes the identity fields Telegram may have changed and
// bumps last_active.
func (r *Repository) TouchUser(ctx context.Context, telegramID int64, username, firstName string, now time.Time) error {
	query, args, err := squirrel.
		Update("users").
		Set("username", username).
		Set("first_name", firstName).
		Set("last_active", now).
		Where(squirrel.Eq{"telegram_id": telegramID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetCompletedTaskIDs returns the set of task IDs the user has claimed.
func (r *Repository) GetCompletedTaskIDs(ctx context.Context, telegramID int64) ([]uuid.UUID, error) {
	query, args, err := squirrel.
		Select("COALESCE(array_agg(task_id::text), '{}') AS task_ids").
		From("completed_tasks").
		Where(squirrel.Eq{"user_telegram_id": telegramID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var raw pq.StringArray
	if err := r.db.GetContext(ctx, &raw, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get completed tasks: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("corrupt task id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// CreditAdWatch applies the rewarded-ad credit in one statement: balance,
// total earned and the ad counter move together.
func (r *Repository) CreditAdWatch(ctx context.Context, telegramID int64, reward money.Amount) error {
	query, args, err := squirrel.
		Update("users").
		Set("balance", squirrel.Expr("balance + ?", reward)).
		Set("total_earned", squirrel.Expr("total_earned + ?", reward)).
		Set("total_ads", squirrel.Expr("total_ads + 1")).
		Where(squirrel.Eq{"telegram_id": telegramID, "status": model.UserStatusFree}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteWelcomeTasks credits the welcome reward and marks the flow done.
// The WHERE clause on welcome_tasks_completed is the idempotence record.
// verifyReferral flips the referral state; callers pass it only for users
// that actually arrived through a referral.
func (r *Repository) CompleteWelcomeTasks(ctx context.Context, telegramID int64, reward money.Amount, verifyReferral bool, now time.Time) error {
	builder := squirrel.
		Update("users").
		Set("balance", squirrel.Expr("balance + ?", reward)).
		Set("total_earned", squirrel.Expr("total_earned + ?", reward)).
		Set("total_tasks", squirrel.Expr("total_tasks + 1")).
		Set("welcome_tasks_completed", true).
		Set("welcome_tasks_completed_at", now).
		Where(squirrel.Eq{
			"telegram_id":             telegramID,
			"welcome_tasks_completed": false,
		}).
		PlaceholderFormat(squirrel.Dollar)
	if verifyReferral {
		builder = builder.Set("referral_state", model.ReferralStateVerified)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := r.GetUserByTelegramID(ctx, telegramID); err != nil {
			return err
		}
		return ErrAlreadyClaimed
	}
	return nil
}

// MarkWelcomeMessageSent flips the one-shot flag; reports whether this call
// won the flip.
func (r *Repository) MarkWelcomeMessageSent(ctx context.Context, telegramID int64) (bool, error) {
	query, args, err := squirrel.
		Update("users").
		Set("welcome_message_sent", true).
		Where(squirrel.Eq{
			"telegram_id":          telegramID,
			"welcome_message_sent": false,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return false, err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *Repository) BanUser(ctx context.Context, telegramID int64, reason string) error {
	query, args, err := squirrel.
		Update("users").
		Set("status", model.UserStatusBanned).
		Set("ban_reason", reason).
		Where(squirrel.Eq{"telegram_id": telegramID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *Repository) GetTopUsers(ctx context.Context, limit int) ([]*model.User, error) {
	query, args, err := squirrel.
		Select("telegram_id", "username", "first_name", "photo_url", "total_earned", "referrals").
		From("users").
		Where(squirrel.Eq{"status": model.UserStatusFree}).
		OrderBy("total_earned DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var users []struct {
		TelegramID  int64        `db:"telegram_id"`
		Username    string       `db:"username"`
		FirstName   string       `db:"first_name"`
		PhotoURL    string       `db:"photo_url"`
		TotalEarned money.Amount `db:"total_earned"`
		Referrals   int          `db:"referrals"`
	}
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, err
	}

	out := make([]*model.User, len(users))
	for i, u := range users {
		out[i] = &model.User{
			TelegramID:  u.TelegramID,
			Username:    u.Username,
			FirstName:   u.FirstName,
			PhotoURL:    u.PhotoURL,
			TotalEarned: u.TotalEarned,
			Referrals:   u.Referrals,
		}
	}
	return out, nil
}

func (r *Repository) GetUserReferrals(ctx context.Context, telegramID int64) ([]*model.UserReferral, error) {
	query, args, err := squirrel.
		Select("u.telegram_id", "u.username", "u.first_name", "u.photo_url",
			"r.state", "r.bonus_given", "r.joined_at").
		From("referrals r").
		Join("users u ON u.telegram_id = r.referred_id").
		Where(squirrel.Eq{"r.referrer_id": telegramID}).
		OrderBy("r.joined_at DESC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var refs []struct {
		TelegramID int64               `db:"telegram_id"`
		Username   string              `db:"username"`
		FirstName  string              `db:"first_name"`
		PhotoURL   string              `db:"photo_url"`
		State      model.ReferralState `db:"state"`
		BonusGiven bool                `db:"bonus_given"`
		JoinedAt   time.Time           `db:"joined_at"`
	}
	if err := r.db.SelectContext(ctx, &refs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get user referrals: %w", err)
	}

	out := make([]*model.UserReferral, len(refs))
	for i, ref := range refs {
		out[i] = &model.UserReferral{
			TelegramID: ref.TelegramID,
			Username:   ref.Username,
			FirstName:  ref.FirstName,
			PhotoURL:   ref.PhotoURL,
			State:      ref.State,
			BonusGiven: ref.BonusGiven,
			JoinedAt:   ref.JoinedAt,
		}
	}
	return out, nil
}
