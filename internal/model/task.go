package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"tornado_miniapp/internal/money"
)

type TaskKind string

const (
	TaskKindChannel TaskKind = "channel"
	TaskKindGroup   TaskKind = "group"
)

func ParseTaskKind(s string) (TaskKind, error) {
	switch TaskKind(s) {
	case TaskKindChannel, TaskKindGroup:
		return TaskKind(s), nil
	}
	return "", fmt.Errorf("unknown task kind %q", s)
}

type TaskCategory string

const (
	TaskCategoryMain    TaskCategory = "main"
	TaskCategorySocial  TaskCategory = "social"
	TaskCategoryPartner TaskCategory = "partner"
)

func ParseTaskCategory(s string) (TaskCategory, error) {
	switch TaskCategory(s) {
	case TaskCategoryMain, TaskCategorySocial, TaskCategoryPartner:
		return TaskCategory(s), nil
	}
	return "", fmt.Errorf("unknown task category %q", s)
}

type TaskStatus string

const (
	TaskStatusActive    TaskStatus = "active"
	TaskStatusCompleted TaskStatus = "completed"
)

type Task struct {
	ID                 uuid.UUID
	Name               string
	URL                string
	Kind               TaskKind
	Category           TaskCategory
	Reward             money.Amount
	CurrentCompletions int
	MaxCompletions     int
	Status             TaskStatus
	CheckEnabled       bool
	CreatedBy          *int64
	CreatedAt          time.Time
}

// CapReached reports whether the completion budget is exhausted.
func (t *Task) CapReached() bool {
	return t.MaxCompletions > 0 && t.CurrentCompletions >= t.MaxCompletions
}

type CompletedTask struct {
	UserTelegramID int64
	TaskID         uuid.UUID
	Reward         money.Amount
	CompletedAt    time.Time
}
