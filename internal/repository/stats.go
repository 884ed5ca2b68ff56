package repository

import (
	"context"
	"fmt"

	"tornado_miniapp/internal/model"
	"tornado_miniapp/internal/money"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

const (
	StatTotalUsers       = "total_users"
	StatTotalWithdrawals = "total_withdrawals"
	StatTotalPayments    = "total_payments"
)

func incrementStatTx(ctx context.Context, tx *sqlx.Tx, name string, delta int64) error {
	query, args, err := squirrel.
		Insert("app_stats").
		Columns("name", "value").
		Values(name, delta).
		Suffix("ON CONFLICT (name) DO UPDATE SET value = app_stats.value + EXCLUDED.value").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to increment stat %s: %w", name, err)
	}
	return nil
}

func (r *Repository) GetAppStats(ctx context.Context) (*model.AppStats, error) {
	query, args, err := squirrel.
		Select("name", "value").
		From("app_stats").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Name  string `db:"name"`
		Value int64  `db:"value"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get app stats: %w", err)
	}

	stats := &model.AppStats{}
	for _, row := range rows {
		switch row.Name {
		case StatTotalUsers:
			stats.TotalUsers = row.Value
		case StatTotalWithdrawals:
			stats.TotalWithdrawals = row.Value
		case StatTotalPayments:
			stats.TotalPayments = money.Amount(row.Value)
		}
	}
	return stats, nil
}
