package model

import (
	"time"

	"github.com/google/uuid"

	"tornado_miniapp/internal/money"
)

type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusCompleted WithdrawalStatus = "completed"
	WithdrawalStatusRejected  WithdrawalStatus = "rejected"
)

type Withdrawal struct {
	ID             uuid.UUID
	UserTelegramID int64
	WalletAddress  string
	Amount         money.Amount
	Status         WithdrawalStatus
	CreatedAt      time.Time
}

// AppStats is the global counter set shown on the stats page. Counters are
// maintained with atomic increments in the store.
type AppStats struct {
	TotalUsers       int64
	TotalWithdrawals int64
	TotalPayments    money.Amount
}
