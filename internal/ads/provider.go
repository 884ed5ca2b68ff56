// Package ads wraps the rewarded-ad network behind a single-operation
// capability: show an ad in a named slot, report whether it was fully
// watched. Claims gated on an ad abort when the provider reports false.
package ads

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

type Slot string

const (
	SlotInterval   Slot = "interval"
	SlotWatch      Slot = "watch"
	SlotTask       Slot = "task"
	SlotPromoCode  Slot = "promo_code"
	SlotWithdrawal Slot = "withdrawal"
)

type Provider interface {
	// Show resolves true only when the user fully watched the ad.
	Show(ctx context.Context, userID int64, slot Slot) (bool, error)
}

// HTTPProvider verifies ad impressions against the ad network's server-side
// callback endpoint.
type HTTPProvider struct {
	url    string
	client *http.Client
}

func NewHTTPProvider(url string) *HTTPProvider {
	return &HTTPProvider{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *HTTPProvider) Show(ctx context.Context, userID int64, slot Slot) (bool, error) {
	payload, err := json.Marshal(struct {
		UserID int64  `json:"user_id"`
		Slot   string `json:"slot"`
	}{UserID: userID, Slot: string(slot)})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("ad verification returned status %d", resp.StatusCode)
	}

	var out struct {
		Shown bool `json:"shown"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, err
	}
	return out.Shown, nil
}

// NopProvider approves every ad request. Used when no ad network is
// configured so claim flows stay usable in development.
type NopProvider struct{}

func (NopProvider) Show(ctx context.Context, userID int64, slot Slot) (bool, error) {
	return true, nil
}
