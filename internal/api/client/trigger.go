package client

import (
	"context"
	"time"

	"github.com/donaldgifford/ebay-seller-sync/internal/engine"
	"github.com/donaldgifford/ebay-seller-sync/internal/tokens"
	"github.com/donaldgifford/ebay-seller-sync/internal/worker"
)

// Quota is the eBay API call budget of the current 24-hour window.
type Quota struct {
	DailyLimit int64         `json:"daily_limit"`
	DailyUsed  int64         `json:"daily_used"`
	Remaining  int64         `json:"remaining"`
	Exhausted  bool          `json:"exhausted"`
	ResetAt    time.Time     `json:"reset_at"`
	Families   []FamilyQuota `json:"families"`
}

// FamilyQuota is one API family's usage in the window.
type FamilyQuota struct {
	APIFamily string  `json:"api_family"`
	Calls     int64   `json:"calls"`
	Share     float64 `json:"share"`
}

// TriggerRefresh runs a token refresh sweep on the server.
func (c *Client) TriggerRefresh(ctx context.Context) (*tokens.SweepSummary, error) {
	var sum tokens.SweepSummary
	if err := c.post(ctx, "/api/v1/tokens/refresh", nil, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

// TriggerSync runs a sync cycle on the server.
func (c *Client) TriggerSync(ctx context.Context) (*engine.CycleSummary, error) {
	var sum engine.CycleSummary
	if err := c.post(ctx, "/api/v1/sync/run", nil, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

// TriggerCleanup prunes old worker runs and refresh logs on the server.
func (c *Client) TriggerCleanup(ctx context.Context) (*worker.CleanupSummary, error) {
	var sum worker.CleanupSummary
	if err := c.post(ctx, "/api/v1/runs/cleanup", nil, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

// GetQuota returns the eBay API quota.
func (c *Client) GetQuota(ctx context.Context) (*Quota, error) {
	var q Quota
	if err := c.get(ctx, "/api/v1/quota", &q); err != nil {
		return nil, err
	}
	return &q, nil
}
