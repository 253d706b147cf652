package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/donaldgifford/ebay-seller-sync/internal/engine"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

// ListSyncStates returns the sync state of every api family of an account.
func (c *Client) ListSyncStates(ctx context.Context, accountID string) ([]domain.SyncState, error) {
	var states []domain.SyncState
	if err := c.get(ctx, fmt.Sprintf("/api/v1/accounts/%s/sync", url.PathEscape(accountID)), &states); err != nil {
		return nil, err
	}
	return states, nil
}

// SetSyncEnabled enables or disables one api family of an account.
func (c *Client) SetSyncEnabled(ctx context.Context, accountID, family string, enabled bool) error {
	path := fmt.Sprintf("/api/v1/accounts/%s/sync/%s", url.PathEscape(accountID), url.PathEscape(family))
	return c.put(ctx, path, map[string]bool{"enabled": enabled}, nil)
}

// RunSync runs one api family of an account now.
func (c *Client) RunSync(ctx context.Context, accountID, family string) (*engine.PairResult, error) {
	path := fmt.Sprintf("/api/v1/accounts/%s/sync/%s/run", url.PathEscape(accountID), url.PathEscape(family))
	var res engine.PairResult
	if err := c.post(ctx, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
