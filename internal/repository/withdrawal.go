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

type Withdrawal struct {
	ID             uuid.UUID              `db:"id"`
	UserTelegramID int64                  `db:"user_telegram_id"`
	WalletAddress  string                 `db:"wallet_address"`
	Amount         money.Amount           `db:"amount"`
	Status         model.WithdrawalStatus `db:"status"`
	CreatedAt      time.Time              `db:"created_at"`
}

func (w *Withdrawal) toModel() *model.Withdrawal {
	return &model.Withdrawal{
		ID:             w.ID,
		UserTelegramID: w.UserTelegramID,
		WalletAddress:  w.WalletAddress,
		Amount:         w.Amount,
		Status:         w.Status,
		CreatedAt:      w.CreatedAt,
	}
}

// CreateWithdrawal debits the balance and opens a pending withdrawal. The
// debit statement carries both the balance and the cooldown condition, so
// the database is the authority on whether the request goes through.
func (r *Repository) CreateWithdrawal(ctx context.Context, w *model.Withdrawal, cooldown time.Duration) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		cutoff := w.CreatedAt.Add(-cooldown)
		debit, debitArgs, err := squirrel.
			Update("users").
			Set("balance", squirrel.Expr("balance - ?", w.Amount)).
			Set("total_withdrawn", squirrel.Expr("total_withdrawn + ?", w.Amount)).
			Set("last_withdrawal_at", w.CreatedAt).
			Where(squirrel.Eq{"telegram_id": w.UserTelegramID}).
			Where("balance >= ?", w.Amount).
			Where("(last_withdrawal_at IS NULL OR last_withdrawal_at <= ?)", cutoff).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, debit, debitArgs...)
		if err != nil {
			return fmt.Errorf("failed to debit balance: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return r.diagnoseWithdrawalFailure(ctx, tx, w, cutoff)
		}

		insert, insertArgs, err := squirrel.
			Insert("withdrawals").
			SetMap(map[string]interface{}{
				"id":               w.ID,
				"user_telegram_id": w.UserTelegramID,
				"wallet_address":   w.WalletAddress,
				"amount":           w.Amount,
				"status":           model.WithdrawalStatusPending,
				"created_at":       w.CreatedAt,
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insert, insertArgs...); err != nil {
			return fmt.Errorf("failed to insert withdrawal: %w", err)
		}

		return incrementStatTx(ctx, tx, StatTotalWithdrawals, 1)
	})
}

func (r *Repository) diagnoseWithdrawalFailure(ctx context.Context, tx *sqlx.Tx, w *model.Withdrawal, cutoff time.Time) error {
	var user struct {
		Balance          money.Amount `db:"balance"`
		LastWithdrawalAt *time.Time   `db:"last_withdrawal_at"`
	}
	query, args, err := squirrel.
		Select("balance", "last_withdrawal_at").
		From("users").
		Where(squirrel.Eq{"telegram_id": w.UserTelegramID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	if err := tx.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if user.LastWithdrawalAt != nil && user.LastWithdrawalAt.After(cutoff) {
		return ErrWithdrawalCooldown
	}
	if user.Balance < w.Amount {
		return ErrInsufficientBalance
	}
	return errors.New("withdrawal debit rejected")
}

func (r *Repository) GetUserWithdrawals(ctx context.Context, userID int64) ([]*model.Withdrawal, error) {
	query, args, err := squirrel.
		Select("*").
		From("withdrawals").
		Where(squirrel.Eq{"user_telegram_id": userID}).
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var withdrawals []Withdrawal
	if err := r.db.SelectContext(ctx, &withdrawals, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get withdrawals: %w", err)
	}

	out := make([]*model.Withdrawal, len(withdrawals))
	for i := range withdrawals {
		out[i] = withdrawals[i].toModel()
	}
	return out, nil
}

// ResolveWithdrawal settles a pending withdrawal and returns the owner's
// telegram ID. Completion counts the amount into the global payments total;
// rejection refunds the user.
func (r *Repository) ResolveWithdrawal(ctx context.Context, id uuid.UUID, status model.WithdrawalStatus) (int64, error) {
	if status != model.WithdrawalStatusCompleted && status != model.WithdrawalStatusRejected {
		return 0, fmt.Errorf("invalid resolution status %q", status)
	}

	var userID int64
	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Update("withdrawals").
			Set("status", status).
			Where(squirrel.Eq{"id": id, "status": model.WithdrawalStatusPending}).
			Suffix("RETURNING user_telegram_id, amount").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		var row struct {
			UserTelegramID int64        `db:"user_telegram_id"`
			Amount         money.Amount `db:"amount"`
		}
		if err := tx.GetContext(ctx, &row, query, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to resolve withdrawal: %w", err)
		}
		userID = row.UserTelegramID

		if status == model.WithdrawalStatusCompleted {
			return incrementStatTx(ctx, tx, StatTotalPayments, int64(row.Amount))
		}

		refund, refundArgs, err := squirrel.
			Update("users").
			Set("balance", squirrel.Expr("balance + ?", row.Amount)).
			Set("total_withdrawn", squirrel.Expr("total_withdrawn - ?", row.Amount)).
			Where(squirrel.Eq{"telegram_id": row.UserTelegramID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, refund, refundArgs...); err != nil {
			return fmt.Errorf("failed to refund user: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return userID, nil
}
