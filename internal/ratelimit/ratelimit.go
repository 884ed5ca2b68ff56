// Package ratelimit implements a per-(user, action) sliding window request
// counter. State is process-local and lost on restart; it throttles bursts
// but is not the one-time-claim guarantee, which the store enforces.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

type Action string

const (
	ActionTaskStart  Action = "task_start"
	ActionWithdrawal Action = "withdrawal"
	ActionAdReward   Action = "ad_reward"
	ActionPromoCode  Action = "promo_code"
)

type Policy struct {
	Limit  int
	Window time.Duration
}

// DefaultPolicy applies to actions without a configured policy.
var DefaultPolicy = Policy{Limit: 5, Window: time.Minute}

// DefaultPolicies mirrors the app's claim gating rules.
func DefaultPolicies() map[Action]Policy {
	return map[Action]Policy{
		ActionTaskStart:  {Limit: 1, Window: 3 * time.Second},
		ActionWithdrawal: {Limit: 1, Window: 24 * time.Hour},
		ActionAdReward:   {Limit: 10, Window: 5 * time.Minute},
		ActionPromoCode:  {Limit: 5, Window: 5 * time.Minute},
	}
}

// Clock supplies the limiter's time source so tests and server-synchronized
// clocks can be injected.
type Clock func() time.Time

type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RemainingSeconds is the user-facing wait time, rounded up.
func (r Result) RemainingSeconds() int {
	return int(math.Ceil(r.RetryAfter.Seconds()))
}

type key struct {
	userID int64
	action Action
}

type Limiter struct {
	mu       sync.Mutex
	requests map[key][]time.Time
	policies map[Action]Policy
	now      Clock
}

func New(policies map[Action]Policy, clock Clock) *Limiter {
	if policies == nil {
		policies = DefaultPolicies()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Limiter{
		requests: make(map[key][]time.Time),
		policies: policies,
		now:      clock,
	}
}

func (l *Limiter) policy(action Action) Policy {
	if p, ok := l.policies[action]; ok {
		return p
	}
	return DefaultPolicy
}

// Check reports whether another request for (userID, action) fits in the
// window. It prunes timestamps older than the window but records nothing;
// call Add after the gated operation is actually attempted.
func (l *Limiter) Check(userID int64, action Action) Result {
	p := l.policy(action)
	now := l.now()
	windowStart := now.Add(-p.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{userID, action}
	recent := l.requests[k][:0]
	for _, t := range l.requests[k] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}
	l.requests[k] = recent

	if len(recent) >= p.Limit {
		return Result{
			Allowed:    false,
			RetryAfter: recent[0].Add(p.Window).Sub(now),
		}
	}
	return Result{Allowed: true}
}

// Add records a request timestamp for (userID, action).
func (l *Limiter) Add(userID int64, action Action) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{userID, action}
	l.requests[k] = append(l.requests[k], l.now())
}
