package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/donaldgifford/ebay-seller-sync/internal/api/handlers"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

// ListAccounts returns connected accounts.
func (c *Client) ListAccounts(ctx context.Context, activeOnly bool) ([]domain.Account, error) {
	path := "/api/v1/accounts"
	if activeOnly {
		path += "?active_only=true"
	}
	var accounts []domain.Account
	if err := c.get(ctx, path, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetAccount returns an account with the status of its stored token.
func (c *Client) GetAccount(ctx context.Context, id string) (*handlers.AccountDetail, error) {
	var detail handlers.AccountDetail
	if err := c.get(ctx, "/api/v1/accounts/"+url.PathEscape(id), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// SetAccountActive activates or deactivates an account.
func (c *Client) SetAccountActive(ctx context.Context, id string, active bool) (*handlers.AccountDetail, error) {
	body := map[string]bool{"active": active}
	var detail handlers.AccountDetail
	if err := c.patch(ctx, fmt.Sprintf("/api/v1/accounts/%s", url.PathEscape(id)), body, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}
