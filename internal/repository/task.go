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

type Task struct {
	ID                 uuid.UUID          `db:"id"`
	Name               string             `db:"name"`
	URL                string             `db:"url"`
	Kind               model.TaskKind     `db:"kind"`
	Category           model.TaskCategory `db:"category"`
	Reward             money.Amount       `db:"reward"`
	CurrentCompletions int                `db:"current_completions"`
	MaxCompletions     int                `db:"max_completions"`
	Status             model.TaskStatus   `db:"status"`
	CheckEnabled       bool               `db:"check_enabled"`
	CreatedBy          *int64             `db:"created_by"`
	CreatedAt          time.Time          `db:"created_at"`
}

func (t *Task) toModel() *model.Task {
	return &model.Task{
		ID:                 t.ID,
		Name:               t.Name,
		URL:                t.URL,
		Kind:               t.Kind,
		Category:           t.Category,
		Reward:             t.Reward,
		CurrentCompletions: t.CurrentCompletions,
		MaxCompletions:     t.MaxCompletions,
		Status:             t.Status,
		CheckEnabled:       t.CheckEnabled,
		CreatedBy:          t.CreatedBy,
		CreatedAt:          t.CreatedAt,
	}
}

// CreateTask debits the creator the tier price and publishes the task in one
// transaction. The guarded debit is the funding verdict; a balance that
// cannot cover the price leaves no task behind.
func (r *Repository) CreateTask(ctx context.Context, task *model.Task, price money.Amount) error {
	if task.CreatedBy == nil {
		return fmt.Errorf("task has no creator")
	}
	creatorID := *task.CreatedBy

	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		debit, debitArgs, err := squirrel.
			Update("users").
			Set("balance", squirrel.Expr("balance - ?", price)).
			Where(squirrel.Eq{"telegram_id": creatorID, "status": model.UserStatusFree}).
			Where("balance >= ?", price).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, debit, debitArgs...)
		if err != nil {
			return fmt.Errorf("failed to debit creator: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return r.diagnoseTaskFunding(ctx, tx, creatorID)
		}

		insert, insertArgs, err := squirrel.
			Insert("tasks").
			SetMap(map[string]interface{}{
				"id":                  task.ID,
				"name":                task.Name,
				"url":                 task.URL,
				"kind":                task.Kind,
				"category":            task.Category,
				"reward":              task.Reward,
				"current_completions": 0,
				"max_completions":     task.MaxCompletions,
				"status":              model.TaskStatusActive,
				"check_enabled":       task.CheckEnabled,
				"created_by":          task.CreatedBy,
				"created_at":          task.CreatedAt,
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build task insert query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insert, insertArgs...); err != nil {
			return fmt.Errorf("failed to insert task: %w", err)
		}
		return nil
	})
}

func (r *Repository) diagnoseTaskFunding(ctx context.Context, tx *sqlx.Tx, creatorID int64) error {
	var one int
	query, args, err := squirrel.
		Select("1").
		From("users").
		Where(squirrel.Eq{"telegram_id": creatorID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	if err := tx.GetContext(ctx, &one, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return ErrInsufficientBalance
}

// GetTasks lists active tasks, optionally filtered by category.
func (r *Repository) GetTasks(ctx context.Context, category *model.TaskCategory) ([]*model.Task, error) {
	builder := squirrel.
		Select("*").
		From("tasks").
		Where(squirrel.Eq{"status": model.TaskStatusActive}).
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar)
	if category != nil {
		builder = builder.Where(squirrel.Eq{"category": *category})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	var tasks []Task
	if err := r.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get tasks: %w", err)
	}

	out := make([]*model.Task, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].toModel()
	}
	return out, nil
}

func (r *Repository) GetTaskByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	query, args, err := squirrel.
		Select("*").
		From("tasks").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var task Task
	if err := r.db.GetContext(ctx, &task, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return task.toModel(), nil
}

// ClaimTask records the completion, bumps the task counter and credits the
// user in one transaction. The completed_tasks primary key makes the claim
// idempotent; the guarded counter update enforces the completion cap even
// under concurrent claims.
func (r *Repository) ClaimTask(ctx context.Context, userID int64, taskID uuid.UUID, now time.Time) (*model.Task, error) {
	var claimed *model.Task
	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		var task Task
		query, args, err := squirrel.
			Select("*").
			From("tasks").
			Where(squirrel.Eq{"id": taskID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &task, query, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		insert, insertArgs, err := squirrel.
			Insert("completed_tasks").
			SetMap(map[string]interface{}{
				"user_telegram_id": userID,
				"task_id":          taskID,
				"reward":           task.Reward,
				"completed_at":     now,
			}).
			Suffix("ON CONFLICT (user_telegram_id, task_id) DO NOTHING").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, insert, insertArgs...)
		if err != nil {
			return fmt.Errorf("failed to record completion: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrAlreadyClaimed
		}

		bump, bumpArgs, err := squirrel.
			Update("tasks").
			Set("current_completions", squirrel.Expr("current_completions + 1")).
			Where(squirrel.Eq{"id": taskID, "status": model.TaskStatusActive}).
			Where("(max_completions = 0 OR current_completions < max_completions)").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		result, err = tx.ExecContext(ctx, bump, bumpArgs...)
		if err != nil {
			return fmt.Errorf("failed to bump task completions: %w", err)
		}
		rows, err = result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			if task.Status != model.TaskStatusActive {
				return ErrTaskInactive
			}
			return ErrTaskCapReached
		}

		finish, finishArgs, err := squirrel.
			Update("tasks").
			Set("status", model.TaskStatusCompleted).
			Where(squirrel.Eq{"id": taskID}).
			Where("max_completions > 0 AND current_completions >= max_completions").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, finish, finishArgs...); err != nil {
			return fmt.Errorf("failed to finish task: %w", err)
		}

		credit, creditArgs, err := squirrel.
			Update("users").
			Set("balance", squirrel.Expr("balance + ?", task.Reward)).
			Set("total_earned", squirrel.Expr("total_earned + ?", task.Reward)).
			Set("total_tasks", squirrel.Expr("total_tasks + 1")).
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

		claimed = task.toModel()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}
