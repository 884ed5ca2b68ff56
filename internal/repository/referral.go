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
	"github.com/jmoiron/sqlx"
)

type ReferralEdge struct {
	ReferrerID  int64               `db:"referrer_id"`
	ReferredID  int64               `db:"referred_id"`
	State       model.ReferralState `db:"state"`
	BonusGiven  bool                `db:"bonus_given"`
	BonusAmount money.Amount        `db:"bonus_amount"`
	JoinedAt    time.Time           `db:"joined_at"`
	VerifiedAt  *time.Time          `db:"verified_at"`
}

func (e *ReferralEdge) toModel() *model.ReferralEdge {
	return &model.ReferralEdge{
		ReferrerID:  e.ReferrerID,
		ReferredID:  e.ReferredID,
		State:       e.State,
		BonusGiven:  e.BonusGiven,
		BonusAmount: e.BonusAmount,
		JoinedAt:    e.JoinedAt,
		VerifiedAt:  e.VerifiedAt,
	}
}

// GetReferralEdge returns the edge that brought the given user in, if any.
func (r *Repository) GetReferralEdge(ctx context.Context, referredID int64) (*model.ReferralEdge, error) {
	query, args, err := squirrel.
		Select("*").
		From("referrals").
		Where(squirrel.Eq{"referred_id": referredID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var edge ReferralEdge
	if err := r.db.GetContext(ctx, &edge, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return edge.toModel(), nil
}

// VerifyReferral flips the edge to verified and pays the signup bonus to the
// referrer. The bonus_given guard in the WHERE clause guarantees the credit
// lands at most once no matter how many verification attempts race.
func (r *Repository) VerifyReferral(ctx context.Context, referrerID, referredID int64, now time.Time) (money.Amount, error) {
	var bonus money.Amount
	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Update("referrals").
			Set("state", model.ReferralStateVerified).
			Set("bonus_given", true).
			Set("verified_at", now).
			Where(squirrel.Eq{
				"referrer_id": referrerID,
				"referred_id": referredID,
				"bonus_given": false,
			}).
			Suffix("RETURNING bonus_amount").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		if err := tx.GetContext(ctx, &bonus, query, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrAlreadyClaimed
			}
			return fmt.Errorf("failed to verify referral: %w", err)
		}

		credit, creditArgs, err := squirrel.
			Update("users").
			Set("balance", squirrel.Expr("balance + ?", bonus)).
			Set("total_earned", squirrel.Expr("total_earned + ?", bonus)).
			Set("referral_earnings", squirrel.Expr("referral_earnings + ?", bonus)).
			Set("referrals", squirrel.Expr("referrals + 1")).
			Where(squirrel.Eq{"telegram_id": referrerID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, credit, creditArgs...); err != nil {
			return fmt.Errorf("failed to credit referrer: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return bonus, nil
}

// RecordReferralPayout credits a percentage of a referral's task reward to
// the referrer and logs the payout. Banned referrers are skipped.
func (r *Repository) RecordReferralPayout(ctx context.Context, payout *model.ReferralPayout) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		credit, creditArgs, err := squirrel.
			Update("users").
			Set("balance", squirrel.Expr("balance + ?", payout.Bonus)).
			Set("total_earned", squirrel.Expr("total_earned + ?", payout.Bonus)).
			Set("referral_earnings", squirrel.Expr("referral_earnings + ?", payout.Bonus)).
			Where(squirrel.Eq{
				"telegram_id": payout.ReferrerID,
				"status":      model.UserStatusFree,
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, credit, creditArgs...)
		if err != nil {
			return fmt.Errorf("failed to credit referrer: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrNotFound
		}

		insert, insertArgs, err := squirrel.
			Insert("referral_payouts").
			SetMap(map[string]interface{}{
				"referrer_id": payout.ReferrerID,
				"referred_id": payout.ReferredID,
				"task_reward": payout.TaskReward,
				"bonus":       payout.Bonus,
				"percentage":  payout.Percentage,
				"created_at":  payout.CreatedAt,
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insert, insertArgs...); err != nil {
			return fmt.Errorf("failed to record referral payout: %w", err)
		}
		return nil
	})
}
