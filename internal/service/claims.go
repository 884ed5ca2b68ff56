package service

import (
	"context"
	"fmt"
	"sync"

	"tornado_miniapp/internal/ads"
	"tornado_miniapp/internal/ratelimit"
)

// ClaimGate is the shared front of every reward claim: a per-user
// single-flight guard, the rate limiter, and the ad provider. Each claim
// flow composes the three checks in order before it touches the store.
type ClaimGate struct {
	limiter *ratelimit.Limiter
	ads     ads.Provider

	mu       sync.Mutex
	inFlight map[claimKey]struct{}
}

type claimKey struct {
	userID int64
	kind   string
}

func NewClaimGate(limiter *ratelimit.Limiter, provider ads.Provider) *ClaimGate {
	return &ClaimGate{
		limiter:  limiter,
		ads:      provider,
		inFlight: make(map[claimKey]struct{}),
	}
}

// Acquire takes the single-flight slot for a user and claim kind. The
// returned release function must be called when the claim settles, success
// or not. A second claim of the same kind while one is in flight fails
// with ErrClaimInProgress instead of queueing.
func (g *ClaimGate) Acquire(userID int64, kind string) (func(), error) {
	key := claimKey{userID: userID, kind: kind}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[key]; busy {
		return nil, ErrClaimInProgress
	}
	g.inFlight[key] = struct{}{}

	var once sync.Once
	release := func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, key)
			g.mu.Unlock()
		})
	}
	return release, nil
}

// Allow consumes one rate-limit slot for the action, or reports how long
// the caller has to wait.
func (g *ClaimGate) Allow(userID int64, action ratelimit.Action) error {
	if err := g.Check(userID, action); err != nil {
		return err
	}
	g.Record(userID, action)
	return nil
}

// Check reports whether the action has a free slot without consuming it.
// Flows that only charge the window on success pair it with Record.
func (g *ClaimGate) Check(userID int64, action ratelimit.Action) error {
	res := g.limiter.Check(userID, action)
	if !res.Allowed {
		return &RateLimitedError{Action: string(action), RetryAfter: res.RetryAfter}
	}
	return nil
}

// Record consumes one rate-limit slot for the action.
func (g *ClaimGate) Record(userID int64, action ratelimit.Action) {
	g.limiter.Add(userID, action)
}

// ShowAd runs the rewarded ad for the slot and fails the claim unless the
// ad was fully watched. Provider errors abort the claim the same way an
// unwatched ad does; no credit moves on an unverified impression.
func (g *ClaimGate) ShowAd(ctx context.Context, userID int64, slot ads.Slot) error {
	shown, err := g.ads.Show(ctx, userID, slot)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAdNotShown, err)
	}
	if !shown {
		return ErrAdNotShown
	}
	return nil
}
