package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time            { return c.now }
func (c *fakeClock) Advance(d time.Duration)   { c.now = c.now.Add(d) }
func newFakeClock() *fakeClock                 { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }
func newLimiter(c *fakeClock) *Limiter         { return New(nil, c.Now) }

func TestCheckBlocksAtLimit(t *testing.T) {
	clock := newFakeClock()
	l := newLimiter(clock)

	// ad_reward: 10 per 5 minutes
	for i := 0; i < 10; i++ {
		res := l.Check(1, ActionAdReward)
		assert.True(t, res.Allowed, "request %d should pass", i+1)
		l.Add(1, ActionAdReward)
		clock.Advance(time.Second)
	}

	res := l.Check(1, ActionAdReward)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RemainingSeconds(), 0)
}

func TestWindowRecovery(t *testing.T) {
	clock := newFakeClock()
	l := newLimiter(clock)

	res := l.Check(1, ActionTaskStart)
	assert.True(t, res.Allowed)
	l.Add(1, ActionTaskStart)

	res = l.Check(1, ActionTaskStart)
	assert.False(t, res.Allowed)
	assert.Equal(t, 3, res.RemainingSeconds())

	// allowed again only once the oldest timestamp ages past the window
	clock.Advance(2 * time.Second)
	assert.False(t, l.Check(1, ActionTaskStart).Allowed)

	clock.Advance(1500 * time.Millisecond)
	assert.True(t, l.Check(1, ActionTaskStart).Allowed)
}

func TestActionsAreIndependent(t *testing.T) {
	clock := newFakeClock()
	l := newLimiter(clock)

	l.Add(1, ActionWithdrawal)
	assert.False(t, l.Check(1, ActionWithdrawal).Allowed)
	assert.True(t, l.Check(1, ActionPromoCode).Allowed)
	assert.True(t, l.Check(1, ActionAdReward).Allowed)
}

func TestUsersAreIndependent(t *testing.T) {
	clock := newFakeClock()
	l := newLimiter(clock)

	l.Add(1, ActionWithdrawal)
	assert.False(t, l.Check(1, ActionWithdrawal).Allowed)
	assert.True(t, l.Check(2, ActionWithdrawal).Allowed)
}

func TestUnknownActionUsesDefaultPolicy(t *testing.T) {
	clock := newFakeClock()
	l := newLimiter(clock)

	for i := 0; i < DefaultPolicy.Limit; i++ {
		assert.True(t, l.Check(1, Action("daily_checkin")).Allowed)
		l.Add(1, Action("daily_checkin"))
	}
	assert.False(t, l.Check(1, Action("daily_checkin")).Allowed)
}

func TestRetryAfterCountsFromOldestRetained(t *testing.T) {
	clock := newFakeClock()
	l := New(map[Action]Policy{ActionPromoCode: {Limit: 2, Window: 10 * time.Second}}, clock.Now)

	l.Add(1, ActionPromoCode)
	clock.Advance(4 * time.Second)
	l.Add(1, ActionPromoCode)

	res := l.Check(1, ActionPromoCode)
	assert.False(t, res.Allowed)
	// oldest entry is 4s old in a 10s window
	assert.Equal(t, 6*time.Second, res.RetryAfter)
}
