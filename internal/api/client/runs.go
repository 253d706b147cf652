package client

import (
	"context"
	"net/url"
	"strconv"

	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

// RunsQuery filters worker runs.
type RunsQuery struct {
	AccountID string
	APIFamily string
	Status    string
	Limit     int
	Offset    int
}

// ListRuns returns worker runs, newest first.
func (c *Client) ListRuns(ctx context.Context, q RunsQuery) ([]domain.WorkerRun, error) {
	v := url.Values{}
	if q.AccountID != "" {
		v.Set("account_id", q.AccountID)
	}
	if q.APIFamily != "" {
		v.Set("api_family", q.APIFamily)
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}

	path := "/api/v1/runs"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}
	var runs []domain.WorkerRun
	if err := c.get(ctx, path, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}
