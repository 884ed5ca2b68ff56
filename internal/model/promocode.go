package model

import (
	"time"

	"github.com/google/uuid"

	"tornado_miniapp/internal/money"
)

type PromoCodeStatus string

const (
	PromoCodeStatusActive   PromoCodeStatus = "active"
	PromoCodeStatusDisabled PromoCodeStatus = "disabled"
)

type PromoCode struct {
	ID        uuid.UUID
	Code      string
	Reward    money.Amount
	MaxUses   int // 0 means unlimited
	UsedCount int
	Status    PromoCodeStatus
	CreatedAt time.Time
}

type UsedPromoCode struct {
	UserTelegramID int64
	PromoID        uuid.UUID
	Code           string
	Reward         money.Amount
	ClaimedAt      time.Time
}
