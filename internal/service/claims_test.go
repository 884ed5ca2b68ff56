package service

import (
	"context"
	"testing"
	"time"

	"tornado_miniapp/internal/ads"
	"tornado_miniapp/internal/ratelimit"
	"tornado_miniapp/internal/service/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestClaimGate_Acquire(t *testing.T) {
	gate := NewClaimGate(ratelimit.New(nil, nil), ads.NopProvider{})

	release, err := gate.Acquire(1, "task:abc")
	assert.NoError(t, err)

	_, err = gate.Acquire(1, "task:abc")
	assert.ErrorIs(t, err, ErrClaimInProgress)

	// Other users and other claim kinds are unaffected.
	otherKind, err := gate.Acquire(1, "withdrawal")
	assert.NoError(t, err)
	otherKind()

	otherUser, err := gate.Acquire(2, "task:abc")
	assert.NoError(t, err)
	otherUser()

	release()
	again, err := gate.Acquire(1, "task:abc")
	assert.NoError(t, err)
	again()

	// Releasing twice is harmless even after the slot was retaken.
	release()
	retaken, err := gate.Acquire(1, "task:abc")
	assert.NoError(t, err)
	retaken()
}

func TestClaimGate_Allow(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := ratelimit.New(map[ratelimit.Action]ratelimit.Policy{
		ratelimit.ActionAdReward: {Limit: 2, Window: time.Minute},
	}, func() time.Time { return now })
	gate := NewClaimGate(limiter, ads.NopProvider{})

	assert.NoError(t, gate.Allow(1, ratelimit.ActionAdReward))
	assert.NoError(t, gate.Allow(1, ratelimit.ActionAdReward))

	err := gate.Allow(1, ratelimit.ActionAdReward)
	var rateErr *RateLimitedError
	assert.ErrorAs(t, err, &rateErr)
	assert.Equal(t, string(ratelimit.ActionAdReward), rateErr.Action)
	assert.Equal(t, time.Minute, rateErr.RetryAfter)

	// A different user still has a full window.
	assert.NoError(t, gate.Allow(2, ratelimit.ActionAdReward))
}

func TestClaimGate_CheckAndRecord(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := ratelimit.New(map[ratelimit.Action]ratelimit.Policy{
		ratelimit.ActionAdReward: {Limit: 1, Window: time.Minute},
	}, func() time.Time { return now })
	gate := NewClaimGate(limiter, ads.NopProvider{})

	// Check alone never spends the slot.
	for i := 0; i < 3; i++ {
		assert.NoError(t, gate.Check(1, ratelimit.ActionAdReward))
	}

	gate.Record(1, ratelimit.ActionAdReward)

	err := gate.Check(1, ratelimit.ActionAdReward)
	var rateErr *RateLimitedError
	assert.ErrorAs(t, err, &rateErr)
	assert.Equal(t, time.Minute, rateErr.RetryAfter)
}

func TestClaimGate_ShowAd(t *testing.T) {
	tests := []struct {
		name        string
		shown       bool
		providerErr error
		expectErr   error
	}{
		{
			name:  "ad fully watched",
			shown: true,
		},
		{
			name:      "ad skipped",
			shown:     false,
			expectErr: ErrAdNotShown,
		},
		{
			name:        "provider failure aborts the claim",
			providerErr: assert.AnError,
			expectErr:   ErrAdNotShown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mocks.MockAdProvider{}
			provider.On("Show", mock.Anything, int64(1), ads.SlotWatch).
				Return(tt.shown, tt.providerErr)

			gate := NewClaimGate(ratelimit.New(nil, nil), provider)
			err := gate.ShowAd(context.Background(), 1, ads.SlotWatch)

			if tt.expectErr != nil {
				assert.ErrorIs(t, err, tt.expectErr)
			} else {
				assert.NoError(t, err)
			}
			provider.AssertExpectations(t)
		})
	}
}
