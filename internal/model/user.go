package model

import (
	"time"

	"tornado_miniapp/internal/money"
)

type UserStatus string

const (
	UserStatusFree   UserStatus = "free"
	UserStatusBanned UserStatus = "ban"
)

type ReferralState string

const (
	ReferralStatePending  ReferralState = "pending"
	ReferralStateVerified ReferralState = "verified"
)

type User struct {
	TelegramID int64
	Username   string
	FirstName  string
	PhotoURL   string

	Balance         money.Amount
	TotalEarned     money.Amount
	TotalWithdrawn  money.Amount
	TotalTasks      int
	TotalAds        int
	TotalPromoCodes int

	ReferredBy       *int64
	ReferralCode     string
	Referrals        int
	ReferralEarnings money.Amount
	ReferralState    *ReferralState

	Status    UserStatus
	BanReason *string

	WelcomeTasksCompleted   bool
	WelcomeTasksCompletedAt *time.Time
	WelcomeMessageSent      bool

	LastWithdrawalAt *time.Time
	CreatedAt        time.Time
	LastActive       time.Time
}

func (u *User) Banned() bool {
	return u.Status == UserStatusBanned
}

type UserReferral struct {
	TelegramID int64
	Username   string
	FirstName  string
	PhotoURL   string
	State      ReferralState
	BonusGiven bool
	JoinedAt   time.Time
}
