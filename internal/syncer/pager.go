// Package syncer implements the built-in per api family sync routines.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/donaldgifford/ebay-seller-sync/internal/ebay"
	"github.com/donaldgifford/ebay-seller-sync/internal/worker"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

const (
	defaultPageSize       = 50
	defaultMaxPages       = 20
	defaultBackfillWindow = 90 * 24 * time.Hour
)

// Stop reasons.
const (
	stopNoMoreResults = "no_more_results"
	stopMaxPages      = "max_pages"
)

// position is the decoded form of a routine cursor. Since is the lower
// bound of the current pass, Offset the next page to read in it and
// HighWater the newest record time seen so far.
type position struct {
	Since     time.Time `json:"since"`
	Offset    int       `json:"offset,omitempty"`
	HighWater time.Time `json:"high_water,omitzero"`
}

func decodePosition(c domain.Cursor, cursorType string) (position, bool) {
	if c.IsZero() || c.Type != cursorType {
		return position{}, false
	}
	var p position
	if err := json.Unmarshal([]byte(c.Value), &p); err != nil {
		return position{}, false
	}
	return p, true
}

func (p position) cursor(cursorType string) *domain.Cursor {
	b, _ := json.Marshal(p) //nolint:errcheck // plain struct never fails
	return &domain.Cursor{Type: cursorType, Value: string(b)}
}

// Options tune pagination.
type Options struct {
	PageSize       int
	MaxPages       int
	BackfillWindow time.Duration
	Logger         *slog.Logger
	NowFunc        func() time.Time
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.PageSize <= 0 {
		out.PageSize = defaultPageSize
	}
	if out.MaxPages <= 0 {
		out.MaxPages = defaultMaxPages
	}
	if out.BackfillWindow <= 0 {
		out.BackfillWindow = defaultBackfillWindow
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.NowFunc == nil {
		out.NowFunc = time.Now
	}
	return out
}

// pager walks one incremental query page by page.
type pager[T any] struct {
	family     domain.APIFamily
	cursorType string
	opts       Options
	fetch      func(ctx context.Context, token string, req ebay.PageRequest) ([]T, bool, error)
	store      func(ctx context.Context, accountID string, items []T) (int, error)
	modifiedAt func(item *T) time.Time
}

// run reads up to MaxPages pages. The cursor in the returned summary
// reflects progress even when an error is returned, so a later run resumes
// after the last stored page.
func (p *pager[T]) run(ctx context.Context, in worker.SyncInput) (worker.Summary, error) {
	var sum worker.Summary
	log := p.opts.Logger.With("account_id", in.AccountID, "api_family", string(p.family))

	pos, ok := decodePosition(in.Cursor, p.cursorType)
	if !ok {
		pos = position{Since: p.opts.NowFunc().Add(-p.opts.BackfillWindow).UTC()}
	}

	stoppedAt := stopMaxPages
	for page := range p.opts.MaxPages {
		items, hasMore, err := p.fetch(ctx, in.AccessToken, ebay.PageRequest{
			Since:  pos.Since,
			Limit:  p.opts.PageSize,
			Offset: pos.Offset,
		})
		if err != nil {
			return sum, fmt.Errorf("fetching page %d: %w", page, err)
		}
		sum.Fetched += len(items)

		if len(items) > 0 {
			stored, err := p.store(ctx, in.AccountID, items)
			if err != nil {
				return sum, fmt.Errorf("storing page %d: %w", page, err)
			}
			sum.Stored += stored
		}

		for i := range items {
			if t := p.modifiedAt(&items[i]); t.After(pos.HighWater) {
				pos.HighWater = t
			}
		}
		pos.Offset += len(items)
		sum.NextCursor = pos.cursor(p.cursorType)

		if in.Heartbeat != nil {
			if err := in.Heartbeat(ctx); err != nil {
				return sum, fmt.Errorf("heartbeat after page %d: %w", page, err)
			}
		}

		if !hasMore || len(items) == 0 {
			stoppedAt = stopNoMoreResults
			break
		}
	}

	if stoppedAt == stopNoMoreResults {
		next := position{Since: pos.Since}
		if !pos.HighWater.IsZero() {
			next.Since = pos.HighWater
		}
		sum.NextCursor = next.cursor(p.cursorType)
		sum.BackfillCompleted = true
	}

	log.Debug("sync pass complete",
		"fetched", sum.Fetched,
		"stored", sum.Stored,
		"stopped_at", stoppedAt,
	)
	return sum, nil
}
