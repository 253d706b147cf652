package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/donaldgifford/ebay-seller-sync/internal/tokens"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

// RefreshToken resolves an account's access token, refreshing it when
// needed or when force is set. A failed refresh is reported in the result,
// not as an error.
func (c *Client) RefreshToken(ctx context.Context, accountID string, force bool) (*tokens.Result, error) {
	body := map[string]any{"force": force}
	var res tokens.Result
	path := fmt.Sprintf("/api/v1/accounts/%s/token/refresh", url.PathEscape(accountID))
	if err := c.post(ctx, path, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListRefreshLogs returns the most recent refresh attempts of an account.
func (c *Client) ListRefreshLogs(ctx context.Context, accountID string, limit int) ([]domain.TokenRefreshLog, error) {
	path := fmt.Sprintf("/api/v1/accounts/%s/token/logs", url.PathEscape(accountID))
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var logs []domain.TokenRefreshLog
	if err := c.get(ctx, path, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
