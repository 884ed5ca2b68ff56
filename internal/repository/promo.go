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
)

type PromoCode struct {
	ID        uuid.UUID             `db:"id"`
	Code      string                `db:"code"`
	Reward    money.Amount          `db:"reward"`
	MaxUses   int                   `db:"max_uses"`
	UsedCount int                   `db:"used_count"`
	Status    model.PromoCodeStatus `db:"status"`
	CreatedAt time.Time             `db:"created_at"`
}

func (p *PromoCode) toModel() *model.PromoCode {
	return &model.PromoCode{
		ID:        p.ID,
		Code:      p.Code,
		Reward:    p.Reward,
		MaxUses:   p.MaxUses,
		UsedCount: p.UsedCount,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
	}
}

func (r *Repository) CreatePromoCode(ctx context.Context, promo *model.PromoCode) error {
	query, args, err := squirrel.
		Insert("promo_codes").
		SetMap(map[string]interface{}{
			"id":         promo.ID,
			"code":       promo.Code,
			"reward":     promo.Reward,
			"max_uses":   promo.MaxUses,
			"used_count": 0,
			"status":     model.PromoCodeStatusActive,
			"created_at": promo.CreatedAt,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build promo insert query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert promo code: %w", err)
	}
	return nil
}

// RedeemPromo marks the code as used by the user and credits the reward.
// The used_promo_codes primary key blocks repeat redemptions; the guarded
// counter update enforces max_uses under concurrency.
func (r *Repository) RedeemPromo(ctx context.Context, userID int64, code string, now time.Time) (money.Amount, error) {
	var reward money.Amount
	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		var promo PromoCode
		query, args, err := squirrel.
			Select("*").
			From("promo_codes").
			Where(squirrel.Eq{"code": code}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &promo, query, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if promo.Status != model.PromoCodeStatusActive {
			return ErrPromoExhausted
		}

		insert, insertArgs, err := squirrel.
			Insert("used_promo_codes").
			SetMap(map[string]interface{}{
				"user_telegram_id": userID,
				"promo_id":         promo.ID,
				"code":             promo.Code,
				"reward":           promo.Reward,
				"claimed_at":       now,
			}).
			Suffix("ON CONFLICT (user_telegram_id, promo_id) DO NOTHING").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, insert, insertArgs...)
		if err != nil {
			return fmt.Errorf("failed to record promo use: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrAlreadyClaimed
		}

		bump, bumpArgs, err := squirrel.
			Update("promo_codes").
			Set("used_count", squirrel.Expr("used_count + 1")).
			Where(squirrel.Eq{"id": promo.ID, "status": model.PromoCodeStatusActive}).
			Where("(max_uses = 0 OR used_count < max_uses)").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		result, err = tx.ExecContext(ctx, bump, bumpArgs...)
		if err != nil {
			return fmt.Errorf("failed to bump promo use count: %w", err)
		}
		rows, err = result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrPromoExhausted
		}

		disable, disableArgs, err := squirrel.
			Update("promo_codes").
			Set("status", model.PromoCodeStatusDisabled).
			Where(squirrel.Eq{"id": promo.ID}).
			Where("max_uses > 0 AND used_count >= max_uses").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, disable, disableArgs...); err != nil {
			return fmt.Errorf("failed to disable promo code: %w", err)
		}

		credit, creditArgs, err := squirrel.
			Update("users").
			Set("balance", squirrel.Expr("balance + ?", promo.Reward)).
			Set("total_earned", squirrel.Expr("total_earned + ?", promo.Reward)).
			Set("total_promo_codes", squirrel.Expr("total_promo_codes + 1")).
			Where(squirrel.Eq{"telegram_id": userID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		result, err = tx.ExecContext(ctx, credit, creditArgs...)
		if err != nil {
			return fmt.Errorf("failed to credit user: %w", err)
		}
		rows, err = result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrNotFound
		}

		reward = promo.Reward
		return nil
	})
	if err != nil {
		return 0, err
	}
	return reward, nil
}
