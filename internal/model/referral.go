package model

import (
	"time"

	"tornado_miniapp/internal/money"
)

// ReferralEdge links a referrer to a user who joined through their link.
// BonusGiven flips false->true exactly once, together with the
// pending->verified state transition.
type ReferralEdge struct {
	ReferrerID  int64
	ReferredID  int64
	State       ReferralState
	BonusGiven  bool
	BonusAmount money.Amount
	JoinedAt    time.Time
	VerifiedAt  *time.Time
}

// ReferralPayout records a percentage bonus fanned out to a referrer after
// one of their referrals completed a task.
type ReferralPayout struct {
	ReferrerID int64
	ReferredID int64
	TaskReward money.Amount
	Bonus      money.Amount
	Percentage int
	CreatedAt  time.Time
}
